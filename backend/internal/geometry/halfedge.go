package geometry

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
)

// FaceID - индекс грани в пуле
type FaceID int32

// EdgeID - индекс полуребра в пуле
type EdgeID int32

const (
	InvalidFace FaceID = -1
	InvalidEdge EdgeID = -1
)

var (
	ErrInvalidIndices = errors.New("geometry: index count is not a multiple of 3")
	ErrIndexRange     = errors.New("geometry: vertex index out of range")
	ErrOpenMesh       = errors.New("geometry: mesh is not closed")
	ErrNonManifold    = errors.New("geometry: directed edge used by more than one face")
	ErrNoFaces        = errors.New("geometry: mesh has no non-degenerate faces")
	ErrDeadEdge       = errors.New("geometry: edge handle is not alive")
	ErrSelfMerge      = errors.New("geometry: edge and its pair belong to the same face")
)

// Edge - направленное полуребро. Вершина Vertex - его начало, конец берется
// из начала следующего ребра в петле грани.
type Edge struct {
	Vertex int
	Face   FaceID
	Next   EdgeID
	Prev   EdgeID
	Pair   EdgeID
	alive  bool
}

// Face - грань выпуклого многогранника
type Face struct {
	Normal   mgl64.Vec3
	Centroid mgl64.Vec3
	Start    EdgeID
	alive    bool
}

// Mesh хранит грани и ребра в пулах, связи между ними - индексы.
// Разрушающие слияния только помечают слоты мертвыми, Compact их убирает.
type Mesh struct {
	vertices []mgl64.Vec3
	faces    []Face
	edges    []Edge
}

// Vertices возвращает вершины меша (не копию)
func (m *Mesh) Vertices() []mgl64.Vec3 {
	return m.vertices
}

// FaceSlots возвращает размер пула граней, включая мертвые слоты
func (m *Mesh) FaceSlots() int {
	return len(m.faces)
}

// EdgeSlots возвращает размер пула ребер, включая мертвые слоты
func (m *Mesh) EdgeSlots() int {
	return len(m.edges)
}

// FaceCount возвращает число живых граней
func (m *Mesh) FaceCount() int {
	n := 0
	for i := range m.faces {
		if m.faces[i].alive {
			n++
		}
	}
	return n
}

// EdgeCount возвращает число живых полуребер
func (m *Mesh) EdgeCount() int {
	n := 0
	for i := range m.edges {
		if m.edges[i].alive {
			n++
		}
	}
	return n
}

// FaceAlive сообщает, что слот грани занят
func (m *Mesh) FaceAlive(f FaceID) bool {
	return f >= 0 && int(f) < len(m.faces) && m.faces[f].alive
}

// EdgeAlive сообщает, что слот ребра занят
func (m *Mesh) EdgeAlive(e EdgeID) bool {
	return e >= 0 && int(e) < len(m.edges) && m.edges[e].alive
}

// Face возвращает копию грани
func (m *Mesh) Face(f FaceID) Face {
	return m.faces[f]
}

// Edge возвращает копию ребра
func (m *Mesh) Edge(e EdgeID) Edge {
	return m.edges[e]
}

// Pair возвращает парное полуребро соседней грани
func (m *Mesh) Pair(e EdgeID) EdgeID {
	return m.edges[e].Pair
}

// Next возвращает следующее ребро петли
func (m *Mesh) Next(e EdgeID) EdgeID {
	return m.edges[e].Next
}

// Prev возвращает предыдущее ребро петли
func (m *Mesh) Prev(e EdgeID) EdgeID {
	return m.edges[e].Prev
}

// Origin возвращает начало ребра
func (m *Mesh) Origin(e EdgeID) mgl64.Vec3 {
	return m.vertices[m.edges[e].Vertex]
}

// Destination возвращает конец ребра
func (m *Mesh) Destination(e EdgeID) mgl64.Vec3 {
	return m.vertices[m.edges[m.edges[e].Next].Vertex]
}

// Direction возвращает вектор ребра
func (m *Mesh) Direction(e EdgeID) mgl64.Vec3 {
	return m.Destination(e).Sub(m.Origin(e))
}

// ForEachEdge обходит петлю грани, начиная со Start. Обход прекращается,
// если fn вернула false. Защита от испорченной топологии - не больше
// EdgeSlots шагов.
func (m *Mesh) ForEachEdge(f FaceID, fn func(e EdgeID) bool) {
	start := m.faces[f].Start
	e := start
	for steps := 0; steps < len(m.edges); steps++ {
		next := m.edges[e].Next
		if !fn(e) {
			return
		}
		e = next
		if e == start {
			return
		}
	}
}

// FaceEdgeCount возвращает длину петли грани
func (m *Mesh) FaceEdgeCount(f FaceID) int {
	n := 0
	m.ForEachEdge(f, func(EdgeID) bool {
		n++
		return true
	})
	return n
}

// FaceVertices возвращает вершины грани в порядке обхода
func (m *Mesh) FaceVertices(f FaceID) []mgl64.Vec3 {
	points := make([]mgl64.Vec3, 0, 4)
	m.ForEachEdge(f, func(e EdgeID) bool {
		points = append(points, m.Origin(e))
		return true
	})
	return points
}

// FaceVertexIndices возвращает индексы вершин грани в порядке обхода
func (m *Mesh) FaceVertexIndices(f FaceID) []int {
	indices := make([]int, 0, 4)
	m.ForEachEdge(f, func(e EdgeID) bool {
		indices = append(indices, m.edges[e].Vertex)
		return true
	})
	return indices
}

// UniqueEdges возвращает по одному полуребру на каждое неориентированное ребро
func (m *Mesh) UniqueEdges() []EdgeID {
	result := make([]EdgeID, 0, len(m.edges)/2)
	for i := range m.edges {
		e := EdgeID(i)
		if m.edges[i].alive && e < m.edges[i].Pair {
			result = append(result, e)
		}
	}
	return result
}

// PlaneDistance возвращает знаковое расстояние от точки до плоскости грани
func (m *Mesh) PlaneDistance(f FaceID, p mgl64.Vec3) float64 {
	face := &m.faces[f]
	return face.Normal.Dot(p.Sub(face.Centroid))
}

// IsVertexVisible - точка видна с грани ребра e, если лежит над ее
// плоскостью дальше eps
func (m *Mesh) IsVertexVisible(e EdgeID, p mgl64.Vec3, eps float64) bool {
	return m.PlaneDistance(m.edges[e].Face, p) > eps
}

// IsHorizonEdge - ребро на силуэте: его грань видна из точки, а грань
// парного ребра нет
func (m *Mesh) IsHorizonEdge(e EdgeID, p mgl64.Vec3, eps float64) bool {
	return m.IsVertexVisible(e, p, eps) && !m.IsVertexVisible(m.edges[e].Pair, p, eps)
}

// SupportPoint возвращает точку набора, самую дальнюю вдоль dir.
// Набор не должен быть пустым.
func SupportPoint(points []mgl64.Vec3, dir mgl64.Vec3) mgl64.Vec3 {
	best := points[0]
	bestDot := best.Dot(dir)
	for _, v := range points[1:] {
		if d := v.Dot(dir); d > bestDot {
			best, bestDot = v, d
		}
	}
	return best
}

// FaceIndices возвращает индексы вершин всех живых граней
func (m *Mesh) FaceIndices() [][]int {
	faces := make([][]int, 0, m.FaceCount())
	for i := range m.faces {
		if m.faces[i].alive {
			faces = append(faces, m.FaceVertexIndices(FaceID(i)))
		}
	}
	return faces
}

// Bounds возвращает локальный AABB меша
func (m *Mesh) Bounds() AABB {
	return AABBFromPoints(m.vertices)
}

func (m *Mesh) addFace() FaceID {
	m.faces = append(m.faces, Face{Start: InvalidEdge, alive: true})
	return FaceID(len(m.faces) - 1)
}

func (m *Mesh) addEdge(vertex int, face FaceID) EdgeID {
	m.edges = append(m.edges, Edge{
		Vertex: vertex,
		Face:   face,
		Next:   InvalidEdge,
		Prev:   InvalidEdge,
		Pair:   InvalidEdge,
		alive:  true,
	})
	return EdgeID(len(m.edges) - 1)
}

func (m *Mesh) link(from, to EdgeID) {
	m.edges[from].Next = to
	m.edges[to].Prev = from
}

func (m *Mesh) killEdge(e EdgeID) {
	m.edges[e].alive = false
	m.edges[e].Face = InvalidFace
}

func (m *Mesh) killFace(f FaceID) {
	m.faces[f].alive = false
	m.faces[f].Start = InvalidEdge
}

// refreshFace переназначает ребра петли на грань и пересчитывает плоскость
func (m *Mesh) refreshFace(f FaceID) {
	points := make([]mgl64.Vec3, 0, 8)
	m.ForEachEdge(f, func(e EdgeID) bool {
		m.edges[e].Face = f
		points = append(points, m.Origin(e))
		return true
	})
	m.faces[f].Normal, m.faces[f].Centroid = NewellPlane(points)
}

// Compact удаляет мертвые слоты и неиспользуемые вершины, переписывая индексы
func (m *Mesh) Compact() {
	faceMap := make([]FaceID, len(m.faces))
	faces := make([]Face, 0, len(m.faces))
	for i, f := range m.faces {
		faceMap[i] = InvalidFace
		if f.alive {
			faceMap[i] = FaceID(len(faces))
			faces = append(faces, f)
		}
	}

	edgeMap := make([]EdgeID, len(m.edges))
	edges := make([]Edge, 0, len(m.edges))
	for i, e := range m.edges {
		edgeMap[i] = InvalidEdge
		if e.alive {
			edgeMap[i] = EdgeID(len(edges))
			edges = append(edges, e)
		}
	}

	vertexMap := make([]int, len(m.vertices))
	for i := range vertexMap {
		vertexMap[i] = -1
	}
	vertices := make([]mgl64.Vec3, 0, len(m.vertices))
	for i := range edges {
		v := edges[i].Vertex
		if vertexMap[v] < 0 {
			vertexMap[v] = len(vertices)
			vertices = append(vertices, m.vertices[v])
		}
	}

	for i := range edges {
		e := &edges[i]
		e.Vertex = vertexMap[e.Vertex]
		e.Face = faceMap[e.Face]
		e.Next = edgeMap[e.Next]
		e.Prev = edgeMap[e.Prev]
		e.Pair = edgeMap[e.Pair]
	}
	for i := range faces {
		faces[i].Start = edgeMap[faces[i].Start]
	}

	m.vertices = vertices
	m.faces = faces
	m.edges = edges
}

// Validate проверяет инварианты топологии: симметрию пар, замкнутость петель
// и принадлежность каждого ребра ровно одной петле
func (m *Mesh) Validate() error {
	alive := 0
	for i := range m.edges {
		e := &m.edges[i]
		if !e.alive {
			continue
		}
		alive++
		id := EdgeID(i)

		if !m.EdgeAlive(e.Pair) || e.Pair == id {
			return fmt.Errorf("edge %d: invalid pair %d", id, e.Pair)
		}
		if m.edges[e.Pair].Pair != id {
			return fmt.Errorf("edge %d: pair of pair is %d", id, m.edges[e.Pair].Pair)
		}
		if !m.EdgeAlive(e.Next) || m.edges[e.Next].Prev != id {
			return fmt.Errorf("edge %d: broken next link", id)
		}
		if !m.EdgeAlive(e.Prev) || m.edges[e.Prev].Next != id {
			return fmt.Errorf("edge %d: broken prev link", id)
		}
		if !m.FaceAlive(e.Face) {
			return fmt.Errorf("edge %d: dead face %d", id, e.Face)
		}
		// Пара идет в обратном направлении
		if m.edges[e.Pair].Vertex != m.edges[e.Next].Vertex {
			return fmt.Errorf("edge %d: pair is not reversed", id)
		}
	}

	visited := 0
	for i := range m.faces {
		if !m.faces[i].alive {
			continue
		}
		f := FaceID(i)
		start := m.faces[i].Start
		if !m.EdgeAlive(start) {
			return fmt.Errorf("face %d: dead start edge %d", f, start)
		}

		e := start
		count := 0
		for {
			if m.edges[e].Face != f {
				return fmt.Errorf("face %d: edge %d belongs to face %d", f, e, m.edges[e].Face)
			}
			count++
			if count > len(m.edges) {
				return fmt.Errorf("face %d: loop does not close", f)
			}
			e = m.edges[e].Next
			if e == start {
				break
			}
		}
		if count < 3 {
			return fmt.Errorf("face %d: only %d edges", f, count)
		}
		visited += count
	}

	if visited != alive {
		return fmt.Errorf("face loops cover %d of %d edges", visited, alive)
	}
	return nil
}
