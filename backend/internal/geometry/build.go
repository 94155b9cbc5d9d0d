package geometry

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// DefaultEpsilon - допуск сварки вершин и слияния компланарных граней
const DefaultEpsilon = 1e-6

// NewMeshFromTriangles строит выпуклый half-edge меш из треугольников
// (обход против часовой стрелки при взгляде снаружи). Близкие вершины
// свариваются, вырожденные треугольники пропускаются, соседние
// компланарные грани сливаются в минимальное представление.
func NewMeshFromTriangles(vertices []mgl64.Vec3, indices []int, eps float64) (*Mesh, error) {
	if eps <= 0 {
		eps = DefaultEpsilon
	}

	m, err := newTriangleMesh(vertices, indices, eps)
	if err != nil {
		return nil, err
	}

	if err := m.mergeCoplanarFaces(eps); err != nil {
		return nil, fmt.Errorf("merge coplanar faces: %w", err)
	}
	m.Compact()

	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid hull topology: %w", err)
	}
	return m, nil
}

// newTriangleMesh строит связанный треугольный меш без слияния граней
func newTriangleMesh(vertices []mgl64.Vec3, indices []int, eps float64) (*Mesh, error) {
	if len(indices)%3 != 0 {
		return nil, ErrInvalidIndices
	}

	welded, remap := weldVertices(vertices, eps)
	m := &Mesh{vertices: welded}

	type directed struct{ from, to int }
	edgeMap := make(map[directed]EdgeID, len(indices))

	for t := 0; t < len(indices); t += 3 {
		var tri [3]int
		for k := 0; k < 3; k++ {
			idx := indices[t+k]
			if idx < 0 || idx >= len(vertices) {
				return nil, fmt.Errorf("triangle %d: %w", t/3, ErrIndexRange)
			}
			tri[k] = remap[idx]
		}

		if tri[0] == tri[1] || tri[1] == tri[2] || tri[0] == tri[2] {
			continue
		}
		a, b, c := welded[tri[0]], welded[tri[1]], welded[tri[2]]
		if b.Sub(a).Cross(c.Sub(a)).Len() <= eps {
			continue
		}

		f := m.addFace()
		var ids [3]EdgeID
		for k := 0; k < 3; k++ {
			ids[k] = m.addEdge(tri[k], f)
		}
		for k := 0; k < 3; k++ {
			m.link(ids[k], ids[(k+1)%3])

			key := directed{tri[k], tri[(k+1)%3]}
			if _, dup := edgeMap[key]; dup {
				return nil, fmt.Errorf("edge %d->%d: %w", key.from, key.to, ErrNonManifold)
			}
			edgeMap[key] = ids[k]
		}
		m.faces[f].Start = ids[0]
		m.refreshFace(f)
	}

	if len(m.faces) == 0 {
		return nil, ErrNoFaces
	}

	for key, e := range edgeMap {
		twin, ok := edgeMap[directed{key.to, key.from}]
		if !ok {
			return nil, fmt.Errorf("edge %d->%d has no twin: %w", key.from, key.to, ErrOpenMesh)
		}
		m.edges[e].Pair = twin
	}
	return m, nil
}

// weldVertices объединяет вершины ближе eps друг к другу
func weldVertices(vertices []mgl64.Vec3, eps float64) ([]mgl64.Vec3, []int) {
	welded := make([]mgl64.Vec3, 0, len(vertices))
	remap := make([]int, len(vertices))

	for i, v := range vertices {
		remap[i] = -1
		for j, w := range welded {
			if v.ApproxEqualThreshold(w, eps) {
				remap[i] = j
				break
			}
		}
		if remap[i] < 0 {
			remap[i] = len(welded)
			welded = append(welded, v)
		}
	}
	return welded, remap
}

// boxQuads - грани куба по битам вершин (x=1, y=2, z=4), обход наружу
var boxQuads = [6][4]int{
	{0, 4, 6, 2}, // -X
	{1, 3, 7, 5}, // +X
	{0, 1, 5, 4}, // -Y
	{2, 6, 7, 3}, // +Y
	{0, 2, 3, 1}, // -Z
	{4, 5, 7, 6}, // +Z
}

// BoxTriangles возвращает вершины и индексы треугольников параллелепипеда
func BoxTriangles(halfExtents mgl64.Vec3) ([]mgl64.Vec3, []int) {
	h := mgl64.Vec3{math.Abs(halfExtents[0]), math.Abs(halfExtents[1]), math.Abs(halfExtents[2])}

	vertices := make([]mgl64.Vec3, 8)
	for i := range vertices {
		v := mgl64.Vec3{-h[0], -h[1], -h[2]}
		if i&1 != 0 {
			v[0] = h[0]
		}
		if i&2 != 0 {
			v[1] = h[1]
		}
		if i&4 != 0 {
			v[2] = h[2]
		}
		vertices[i] = v
	}

	indices := make([]int, 0, 36)
	for _, q := range boxQuads {
		indices = append(indices, q[0], q[1], q[2], q[0], q[2], q[3])
	}
	return vertices, indices
}

// NewBoxMesh строит параллелепипед: 12 треугольников сливаются в 6 граней.
// eps <= 0 означает DefaultEpsilon.
func NewBoxMesh(halfExtents mgl64.Vec3, eps float64) (*Mesh, error) {
	vertices, indices := BoxTriangles(halfExtents)
	m, err := NewMeshFromTriangles(vertices, indices, eps)
	if err != nil {
		return nil, fmt.Errorf("box %v: %w", halfExtents, err)
	}
	return m, nil
}
