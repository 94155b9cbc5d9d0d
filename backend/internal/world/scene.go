package world

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"x-physics/backend/internal/geometry"
)

// SceneConfig - параметры демонстрационной сцены
type SceneConfig struct {
	FloorHalfExtents mgl64.Vec3
	StackHeight      int
	BoxHalfExtents   mgl64.Vec3
	BoxMass          float64
	// StackGap - зазор между ящиками стопки
	StackGap float64
	// WithTrigger добавляет триггерный объем рядом со стопкой
	WithTrigger bool
	// WithHull добавляет падающую пирамиду
	WithHull bool
}

// DefaultSceneConfig возвращает сцену по умолчанию
func DefaultSceneConfig() SceneConfig {
	return SceneConfig{
		FloorHalfExtents: mgl64.Vec3{20, 0.5, 20},
		StackHeight:      5,
		BoxHalfExtents:   mgl64.Vec3{0.5, 0.5, 0.5},
		BoxMass:          1,
		StackGap:         0.05,
		WithTrigger:      true,
		WithHull:         true,
	}
}

// SceneBuilder наполняет мир демонстрационными объектами
type SceneBuilder struct {
	factory *Factory
}

// NewSceneBuilder создает новый экземпляр SceneBuilder
func NewSceneBuilder(factory *Factory) *SceneBuilder {
	return &SceneBuilder{
		factory: factory,
	}
}

// Build создает пол, стопку ящиков и, по желанию, триггер и пирамиду
func (s *SceneBuilder) Build(config SceneConfig) error {
	if _, err := s.factory.CreateFloor(config.FloorHalfExtents, 0); err != nil {
		return fmt.Errorf("scene floor: %w", err)
	}

	if err := s.CreateStack(mgl64.Vec3{}, config); err != nil {
		return err
	}

	if config.WithTrigger {
		center := mgl64.Vec3{3, 1, 0}
		if _, err := s.factory.CreateTrigger(center, mgl64.Vec3{1, 1, 1}); err != nil {
			return fmt.Errorf("scene trigger: %w", err)
		}
	}

	if config.WithHull {
		vertices, indices := pyramidTriangles(0.75, 1.0)
		rotation := mgl64.QuatRotate(math.Pi/6, mgl64.Vec3{1, 0, 1}.Normalize())
		if _, err := s.factory.CreateHull(mgl64.Vec3{3, 4, 0}, rotation, vertices, indices, 2, "#ffaa00"); err != nil {
			return fmt.Errorf("scene hull: %w", err)
		}
	}

	s.factory.logger.Printf("[World] Сцена создана: %d сущностей с физикой", s.factory.world.EntityCount())
	return nil
}

// CreateStack ставит столбик ящиков на пол начиная с base
func (s *SceneBuilder) CreateStack(base mgl64.Vec3, config SceneConfig) error {
	h := config.BoxHalfExtents[1]
	for i := 0; i < config.StackHeight; i++ {
		y := base[1] + h + float64(i)*(2*h+config.StackGap)
		position := mgl64.Vec3{base[0], y, base[2]}
		color := stackColor(i)
		if _, err := s.factory.CreateBox(position, mgl64.QuatIdent(), config.BoxHalfExtents, config.BoxMass, color); err != nil {
			return fmt.Errorf("scene stack box %d: %w", i, err)
		}
	}
	return nil
}

func stackColor(i int) string {
	colors := []string{"#e6194b", "#3cb44b", "#4363d8", "#f58231", "#911eb4"}
	return colors[i%len(colors)]
}

// pyramidTriangles - четырехугольная пирамида; основание из двух
// треугольников сливается в одну грань
func pyramidTriangles(halfBase, height float64) ([]mgl64.Vec3, []int) {
	vertices := []mgl64.Vec3{
		{-halfBase, 0, -halfBase},
		{halfBase, 0, -halfBase},
		{halfBase, 0, halfBase},
		{-halfBase, 0, halfBase},
		{0, height, 0},
	}
	indices := []int{
		0, 1, 2, 0, 2, 3, // основание, нормаль вниз
		0, 4, 1,
		1, 4, 2,
		2, 4, 3,
		3, 4, 0,
	}

	// Порядок обхода зависит от соглашения меша, выравниваем по нормали наружу
	center := mgl64.Vec3{0, height / 4, 0}
	for t := 0; t < len(indices); t += 3 {
		a, b, c := vertices[indices[t]], vertices[indices[t+1]], vertices[indices[t+2]]
		n, _ := geometry.NewellPlane([]mgl64.Vec3{a, b, c})
		if n.Dot(a.Sub(center)) < 0 {
			indices[t+1], indices[t+2] = indices[t+2], indices[t+1]
		}
	}
	return vertices, indices
}
