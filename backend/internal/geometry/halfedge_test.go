package geometry

import (
	"errors"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func vec3AlmostEqual(a, b mgl64.Vec3, tol float64) bool {
	return math.Abs(a[0]-b[0]) <= tol && math.Abs(a[1]-b[1]) <= tol && math.Abs(a[2]-b[2]) <= tol
}

// findEdge ищет живое полуребро по координатам концов
func findEdge(t *testing.T, m *Mesh, from, to mgl64.Vec3) EdgeID {
	t.Helper()
	for i := range m.edges {
		e := EdgeID(i)
		if !m.edges[i].alive {
			continue
		}
		if vec3AlmostEqual(m.Origin(e), from, 1e-9) && vec3AlmostEqual(m.Destination(e), to, 1e-9) {
			return e
		}
	}
	t.Fatalf("edge %v -> %v not found", from, to)
	return InvalidEdge
}

func assertHullInvariants(t *testing.T, m *Mesh) {
	t.Helper()

	if err := m.Validate(); err != nil {
		t.Fatalf("Validate() error: %v", err)
	}

	for i := 0; i < m.EdgeSlots(); i++ {
		e := EdgeID(i)
		if !m.EdgeAlive(e) {
			continue
		}
		if m.Pair(m.Pair(e)) != e {
			t.Errorf("edge %d: twin of twin is %d", e, m.Pair(m.Pair(e)))
		}
	}

	for i := 0; i < m.FaceSlots(); i++ {
		f := FaceID(i)
		if !m.FaceAlive(f) {
			continue
		}
		count := m.FaceEdgeCount(f)
		start := m.Face(f).Start
		e := start
		for step := 0; step < count; step++ {
			e = m.Next(e)
			if e == start && step != count-1 {
				t.Errorf("face %d: loop closed after %d steps, expected %d", f, step+1, count)
			}
		}
		if e != start {
			t.Errorf("face %d: loop did not return to start after %d steps", f, count)
		}
	}
}

func TestNewBoxMesh(t *testing.T) {
	m, err := NewBoxMesh(mgl64.Vec3{0.5, 1, 2}, DefaultEpsilon)
	if err != nil {
		t.Fatalf("NewBoxMesh() error: %v", err)
	}

	assertHullInvariants(t, m)

	if got := m.FaceCount(); got != 6 {
		t.Errorf("Expected 6 faces, got %d", got)
	}
	if got := m.EdgeCount(); got != 24 {
		t.Errorf("Expected 24 half-edges, got %d", got)
	}
	if got := len(m.Vertices()); got != 8 {
		t.Errorf("Expected 8 vertices, got %d", got)
	}
	if got := len(m.UniqueEdges()); got != 12 {
		t.Errorf("Expected 12 unique edges, got %d", got)
	}

	for i := 0; i < m.FaceSlots(); i++ {
		f := FaceID(i)
		face := m.Face(f)
		if m.FaceEdgeCount(f) != 4 {
			t.Errorf("face %d: expected quad, got %d edges", f, m.FaceEdgeCount(f))
		}
		if face.Normal.Dot(face.Centroid) <= 0 {
			t.Errorf("face %d: normal %v does not point outward", f, face.Normal)
		}
		if math.Abs(face.Normal.Len()-1) > 1e-9 {
			t.Errorf("face %d: normal not unit length: %v", f, face.Normal)
		}
	}

	bounds := m.Bounds()
	if !vec3AlmostEqual(bounds.Max, mgl64.Vec3{0.5, 1, 2}, 1e-12) {
		t.Errorf("Unexpected bounds max %v", bounds.Max)
	}
}

func TestNewMeshFromTriangles_Tetrahedron(t *testing.T) {
	vertices := []mgl64.Vec3{
		{0, 0, 0},
		{1, 0, 0},
		{0, 1, 0},
		{0, 0, 1},
	}
	indices := []int{
		0, 2, 1,
		0, 1, 3,
		0, 3, 2,
		1, 2, 3,
	}

	m, err := NewMeshFromTriangles(vertices, indices, DefaultEpsilon)
	if err != nil {
		t.Fatalf("NewMeshFromTriangles() error: %v", err)
	}
	assertHullInvariants(t, m)

	if m.FaceCount() != 4 || m.EdgeCount() != 12 {
		t.Errorf("Expected 4 faces / 12 half-edges, got %d / %d", m.FaceCount(), m.EdgeCount())
	}

	// Эйлерова характеристика выпуклого многогранника
	v, e, f := len(m.Vertices()), m.EdgeCount()/2, m.FaceCount()
	if v-e+f != 2 {
		t.Errorf("Euler characteristic %d, expected 2", v-e+f)
	}
}

func TestNewMeshFromTriangles_WeldsDuplicateVertices(t *testing.T) {
	vertices, indices := BoxTriangles(mgl64.Vec3{1, 1, 1})

	// Каждый треугольник получает собственные копии вершин
	var soup []mgl64.Vec3
	var soupIndices []int
	for _, idx := range indices {
		soupIndices = append(soupIndices, len(soup))
		soup = append(soup, vertices[idx].Add(mgl64.Vec3{1e-9, 0, 0}))
	}

	m, err := NewMeshFromTriangles(soup, soupIndices, 1e-6)
	if err != nil {
		t.Fatalf("NewMeshFromTriangles() error: %v", err)
	}
	assertHullInvariants(t, m)

	if m.FaceCount() != 6 {
		t.Errorf("Expected 6 faces after welding and merging, got %d", m.FaceCount())
	}
}

func TestNewMeshFromTriangles_Errors(t *testing.T) {
	tri := []mgl64.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}}

	tests := []struct {
		name     string
		vertices []mgl64.Vec3
		indices  []int
		want     error
	}{
		{"bad index count", tri, []int{0, 1}, ErrInvalidIndices},
		{"index out of range", tri, []int{0, 1, 5}, ErrIndexRange},
		{"open surface", tri, []int{0, 1, 2}, ErrOpenMesh},
		{"only degenerate triangles", tri, []int{0, 0, 1, 1, 2, 2}, ErrNoFaces},
		{"duplicated directed edge", tri, []int{0, 1, 2, 0, 1, 2}, ErrNonManifold},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewMeshFromTriangles(tt.vertices, tt.indices, DefaultEpsilon)
			if !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}

// tiltedBoxTriangles - куб со слегка приподнятой вершиной (1, 1, 1):
// верхняя грань перестает быть плоской на lift
func tiltedBoxTriangles(lift float64) ([]mgl64.Vec3, []int) {
	vertices, indices := BoxTriangles(mgl64.Vec3{1, 1, 1})
	vertices[7][1] += lift
	return vertices, indices
}

func TestNewMeshFromTriangles_EpsilonControlsMerge(t *testing.T) {
	tests := []struct {
		name  string
		eps   float64
		faces int
	}{
		{"default keeps tilted top split", DefaultEpsilon, 7},
		{"large epsilon merges tilted top", 1e-2, 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vertices, indices := tiltedBoxTriangles(1e-3)
			m, err := NewMeshFromTriangles(vertices, indices, tt.eps)
			if err != nil {
				t.Fatalf("NewMeshFromTriangles() error: %v", err)
			}
			assertHullInvariants(t, m)

			if got := m.FaceCount(); got != tt.faces {
				t.Errorf("Expected %d faces, got %d", tt.faces, got)
			}
		})
	}
}

func TestMesh_FaceIndices(t *testing.T) {
	m, err := NewBoxMesh(mgl64.Vec3{1, 1, 1}, DefaultEpsilon)
	if err != nil {
		t.Fatalf("NewBoxMesh() error: %v", err)
	}

	faces := m.FaceIndices()
	if len(faces) != 6 {
		t.Fatalf("Expected 6 faces, got %d", len(faces))
	}
	for i, face := range faces {
		if len(face) != 4 {
			t.Errorf("face %d: expected 4 indices, got %v", i, face)
		}
		for _, idx := range face {
			if idx < 0 || idx >= len(m.Vertices()) {
				t.Errorf("face %d: index %d out of range", i, idx)
			}
		}
		// Все вершины лежат в плоскости своей грани
		for _, idx := range face {
			if d := m.PlaneDistance(FaceID(i), m.Vertices()[idx]); math.Abs(d) > 1e-9 {
				t.Errorf("face %d: vertex %d off plane by %v", i, idx, d)
			}
		}
	}
}

func TestSupportPoint(t *testing.T) {
	m, err := NewBoxMesh(mgl64.Vec3{1, 2, 3}, DefaultEpsilon)
	if err != nil {
		t.Fatalf("NewBoxMesh() error: %v", err)
	}

	tests := []struct {
		dir  mgl64.Vec3
		want mgl64.Vec3
	}{
		{mgl64.Vec3{1, 1, 1}, mgl64.Vec3{1, 2, 3}},
		{mgl64.Vec3{-1, -1, -1}, mgl64.Vec3{-1, -2, -3}},
		{mgl64.Vec3{1, -0.1, 0.2}, mgl64.Vec3{1, -2, 3}},
	}
	for _, tt := range tests {
		if got := SupportPoint(m.Vertices(), tt.dir); got != tt.want {
			t.Errorf("SupportPoint(%v) = %v, want %v", tt.dir, got, tt.want)
		}
	}
}

func TestNewBoxMesh_ZeroExtentRejected(t *testing.T) {
	if _, err := NewBoxMesh(mgl64.Vec3{}, DefaultEpsilon); !errors.Is(err, ErrNoFaces) {
		t.Errorf("Expected ErrNoFaces for zero box, got %v", err)
	}
	if _, err := NewBoxMesh(mgl64.Vec3{0, 1, 1}, DefaultEpsilon); err == nil {
		t.Error("Expected error for flat box")
	}
}

func TestVisibilityAndHorizon(t *testing.T) {
	m, err := NewBoxMesh(mgl64.Vec3{1, 1, 1}, DefaultEpsilon)
	if err != nil {
		t.Fatalf("NewBoxMesh() error: %v", err)
	}

	eye := mgl64.Vec3{3, 0, 0}
	visible := 0
	horizon := 0
	for i := 0; i < m.EdgeSlots(); i++ {
		e := EdgeID(i)
		if m.IsVertexVisible(e, eye, 1e-9) {
			visible++
			if m.Face(m.Edge(e).Face).Normal[0] < 0.99 {
				t.Errorf("edge %d: visible from +X but face normal is %v", e, m.Face(m.Edge(e).Face).Normal)
			}
		}
		if m.IsHorizonEdge(e, eye, 1e-9) {
			horizon++
		}
	}

	// Видна только грань +X: 4 ребра, и все они на горизонте
	if visible != 4 {
		t.Errorf("Expected 4 visible edges, got %d", visible)
	}
	if horizon != 4 {
		t.Errorf("Expected 4 horizon edges, got %d", horizon)
	}

	inside := mgl64.Vec3{0, 0, 0}
	for i := 0; i < m.EdgeSlots(); i++ {
		if m.IsVertexVisible(EdgeID(i), inside, 1e-9) {
			t.Fatalf("Interior point must not be visible from edge %d", i)
		}
	}
}

func TestMergeWithPairing_RepairsDoubleAdjacency(t *testing.T) {
	vertices, indices := BoxTriangles(mgl64.Vec3{1, 1, 1})
	m, err := newTriangleMesh(vertices, indices, DefaultEpsilon)
	if err != nil {
		t.Fatalf("newTriangleMesh() error: %v", err)
	}
	if m.FaceCount() != 12 {
		t.Fatalf("Expected 12 triangles, got %d", m.FaceCount())
	}

	v := func(i int) mgl64.Vec3 { return vertices[i] }

	// Две половины грани -X по диагонали
	if err := m.MergeWithPairing(findEdge(t, m, v(6), v(0)), DefaultEpsilon); err != nil {
		t.Fatalf("first merge: %v", err)
	}
	// Принудительное слияние с треугольником грани +Z оставляет вершину 6
	// валентности 2 между новой гранью и треугольником грани +Y
	merged := findEdge(t, m, v(4), v(6))
	face := m.Edge(merged).Face
	if err := m.MergeWithPairing(merged, DefaultEpsilon); err != nil {
		t.Fatalf("second merge: %v", err)
	}

	if err := m.Validate(); err != nil {
		t.Fatalf("Validate() after merges: %v", err)
	}
	if got := m.FaceCount(); got != 9 {
		t.Errorf("Expected 9 faces after repair, got %d", got)
	}
	if got := m.FaceEdgeCount(face); got != 4 {
		t.Errorf("Expected repaired face with 4 edges, got %d", got)
	}

	for i := 0; i < m.FaceSlots(); i++ {
		f := FaceID(i)
		if !m.FaceAlive(f) {
			continue
		}
		if _, _, found := m.findDoubleAdjacent(f); found {
			t.Errorf("face %d still double-adjacent", f)
		}
	}

	slots := m.FaceSlots()
	m.Compact()
	assertHullInvariants(t, m)
	if m.FaceSlots() >= slots {
		t.Errorf("Compact did not shrink face pool: %d -> %d", slots, m.FaceSlots())
	}

	vCount, eCount, fCount := len(m.Vertices()), m.EdgeCount()/2, m.FaceCount()
	if vCount != 7 {
		t.Errorf("Expected vertex 6 to be dropped, got %d vertices", vCount)
	}
	if vCount-eCount+fCount != 2 {
		t.Errorf("Euler characteristic %d, expected 2", vCount-eCount+fCount)
	}
}

func TestMergeWithPairing_CollapsesVertexOnNonCoplanarNeighbour(t *testing.T) {
	// Слияние двух граней куба по ребру оставляет две вершины валентности 2
	// между новой гранью и четырехугольниками -Z и +Z. Их нельзя влить,
	// поэтому вершины схлопываются, и получается треугольная призма.
	m, err := NewBoxMesh(mgl64.Vec3{1, 1, 1}, DefaultEpsilon)
	if err != nil {
		t.Fatalf("NewBoxMesh() error: %v", err)
	}

	e := findEdge(t, m, mgl64.Vec3{1, 1, -1}, mgl64.Vec3{1, 1, 1})
	if err := m.MergeWithPairing(e, DefaultEpsilon); err != nil {
		t.Fatalf("merge: %v", err)
	}
	if err := m.Validate(); err != nil {
		t.Fatalf("Validate() after merge: %v", err)
	}

	for i := 0; i < m.FaceSlots(); i++ {
		f := FaceID(i)
		if m.FaceAlive(f) {
			if _, _, found := m.findDoubleAdjacent(f); found {
				t.Errorf("face %d still double-adjacent", f)
			}
		}
	}

	m.Compact()
	assertHullInvariants(t, m)
	if got := m.FaceCount(); got != 5 {
		t.Errorf("Expected 5 faces, got %d", got)
	}
	if got := len(m.Vertices()); got != 6 {
		t.Errorf("Expected 6 vertices, got %d", got)
	}
}

func TestNewellPlane(t *testing.T) {
	points := []mgl64.Vec3{{0, 0, 1}, {2, 0, 1}, {2, 2, 1}, {0, 2, 1}}
	n, c := NewellPlane(points)

	if !vec3AlmostEqual(n, mgl64.Vec3{0, 0, 1}, 1e-12) {
		t.Errorf("Expected +Z normal, got %v", n)
	}
	if !vec3AlmostEqual(c, mgl64.Vec3{1, 1, 1}, 1e-12) {
		t.Errorf("Expected centroid (1,1,1), got %v", c)
	}

	n, _ = NewellPlane([]mgl64.Vec3{{0, 0, 0}, {1, 1, 1}, {2, 2, 2}})
	if n.Len() != 0 {
		t.Errorf("Expected zero normal for collinear points, got %v", n)
	}
}

func TestAABB(t *testing.T) {
	a := NewAABB(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{1, 1, 1})
	b := NewAABB(mgl64.Vec3{1.5, 0, 0}, mgl64.Vec3{0.5, 0.5, 0.5})
	c := NewAABB(mgl64.Vec3{3, 0, 0}, mgl64.Vec3{0.5, 0.5, 0.5})

	if !a.Overlaps(b) {
		t.Error("Expected touching boxes to overlap")
	}
	if a.Overlaps(c) {
		t.Error("Expected separated boxes not to overlap")
	}
	if EmptyAABB().Overlaps(a) {
		t.Error("Empty box must not overlap anything")
	}
	if got := a.Union(c).Volume(); math.Abs(got-4.5*2*2) > 1e-12 {
		t.Errorf("Unexpected union volume %f", got)
	}
}
