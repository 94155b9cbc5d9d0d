package broadphase

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/go-gl/mathgl/mgl64"

	"x-physics/backend/internal/geometry"
)

// Kind - закрытый набор стратегий широкой фазы
type Kind int

const (
	BruteForce Kind = iota
	UniformGrid
)

// maxCellsPerVolume - объемы, покрывающие больше ячеек, не раскладываются
// по сетке и проверяются со всеми остальными
const maxCellsPerVolume = 4096

var ErrUnknownStrategy = errors.New("broadphase: unknown strategy")

// String возвращает имя стратегии в формате конфигурации
func (k Kind) String() string {
	switch k {
	case BruteForce:
		return "brute_force"
	case UniformGrid:
		return "uniform_grid"
	default:
		return "unknown"
	}
}

// ParseKind разбирает имя стратегии
func ParseKind(name string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "brute_force", "bruteforce", "brute-force":
		return BruteForce, nil
	case "uniform_grid", "uniformgrid", "uniform-grid", "grid":
		return UniformGrid, nil
	default:
		return 0, fmt.Errorf("%q: %w", name, ErrUnknownStrategy)
	}
}

// Pair - неупорядоченная пара индексов, A < B
type Pair struct {
	A, B int
}

func makePair(i, j int) Pair {
	if i > j {
		i, j = j, i
	}
	return Pair{A: i, B: j}
}

// Strategy - выбранная стратегия широкой фазы. Значение, а не интерфейс:
// варианты перечислены в Kind.
type Strategy struct {
	kind     Kind
	cellSize mgl64.Vec3
}

// NewBruteForce возвращает попарную проверку O(n²)
func NewBruteForce() Strategy {
	return Strategy{kind: BruteForce}
}

// NewUniformGrid возвращает равномерную сетку с размером ячейки cellSize.
// Неположительные компоненты заменяются на 1.
func NewUniformGrid(cellSize mgl64.Vec3) Strategy {
	for i := 0; i < 3; i++ {
		if !(cellSize[i] > 0) {
			cellSize[i] = 1
		}
	}
	return Strategy{kind: UniformGrid, cellSize: cellSize}
}

// Kind возвращает вариант стратегии
func (s Strategy) Kind() Kind {
	return s.kind
}

// CellSize возвращает размер ячейки (нулевой для brute force)
func (s Strategy) CellSize() mgl64.Vec3 {
	return s.cellSize
}

func (s Strategy) String() string {
	if s.kind == UniformGrid {
		return fmt.Sprintf("%s(%.2f, %.2f, %.2f)", s.kind, s.cellSize[0], s.cellSize[1], s.cellSize[2])
	}
	return s.kind.String()
}

// CollectPairs возвращает все пары пересекающихся объемов, отсортированные
// по (A, B). Невалидные объемы не участвуют.
func (s Strategy) CollectPairs(volumes []geometry.AABB) []Pair {
	var pairs []Pair
	switch s.kind {
	case UniformGrid:
		pairs = collectGrid(volumes, s.cellSize)
	default:
		pairs = collectBruteForce(volumes)
	}

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].A != pairs[j].A {
			return pairs[i].A < pairs[j].A
		}
		return pairs[i].B < pairs[j].B
	})
	return pairs
}

func collectBruteForce(volumes []geometry.AABB) []Pair {
	var pairs []Pair
	for i := 0; i < len(volumes); i++ {
		if !volumes[i].IsValid() {
			continue
		}
		for j := i + 1; j < len(volumes); j++ {
			if volumes[i].Overlaps(volumes[j]) {
				pairs = append(pairs, Pair{A: i, B: j})
			}
		}
	}
	return pairs
}

// cellKey - целочисленные координаты ячейки
type cellKey struct {
	X, Y, Z int
}

// cellRange возвращает диапазон ячеек, покрываемых объемом
func cellRange(box geometry.AABB, cellSize mgl64.Vec3) (lo, hi cellKey) {
	lo = cellKey{
		X: int(math.Floor(box.Min[0] / cellSize[0])),
		Y: int(math.Floor(box.Min[1] / cellSize[1])),
		Z: int(math.Floor(box.Min[2] / cellSize[2])),
	}
	hi = cellKey{
		X: int(math.Floor(box.Max[0] / cellSize[0])),
		Y: int(math.Floor(box.Max[1] / cellSize[1])),
		Z: int(math.Floor(box.Max[2] / cellSize[2])),
	}
	return lo, hi
}

func collectGrid(volumes []geometry.AABB, cellSize mgl64.Vec3) []Pair {
	grid := make(map[cellKey][]int)
	var oversized []int

	for i, box := range volumes {
		if !box.IsValid() {
			continue
		}

		lo, hi := cellRange(box, cellSize)
		cells := float64(hi.X-lo.X+1) * float64(hi.Y-lo.Y+1) * float64(hi.Z-lo.Z+1)
		if cells > maxCellsPerVolume {
			oversized = append(oversized, i)
			continue
		}

		for x := lo.X; x <= hi.X; x++ {
			for y := lo.Y; y <= hi.Y; y++ {
				for z := lo.Z; z <= hi.Z; z++ {
					key := cellKey{x, y, z}
					grid[key] = append(grid[key], i)
				}
			}
		}
	}

	seen := make(map[Pair]struct{})
	var pairs []Pair
	consider := func(i, j int) {
		p := makePair(i, j)
		if _, dup := seen[p]; dup {
			return
		}
		seen[p] = struct{}{}
		if volumes[i].Overlaps(volumes[j]) {
			pairs = append(pairs, p)
		}
	}

	for _, bucket := range grid {
		for a := 0; a < len(bucket); a++ {
			for b := a + 1; b < len(bucket); b++ {
				consider(bucket[a], bucket[b])
			}
		}
	}

	for _, i := range oversized {
		for j := range volumes {
			if j != i && volumes[j].IsValid() {
				consider(i, j)
			}
		}
	}

	return pairs
}
