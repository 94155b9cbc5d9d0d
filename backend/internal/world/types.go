package world

import (
	"github.com/go-gl/mathgl/mgl64"
)

// ShapeDescriptor описывает форму сущности для клиентов
type ShapeDescriptor struct {
	Type  ShapeType
	Box   *BoxData
	Plane *PlaneData
	Hull  *HullData
	Color string
}

type ShapeType int

const (
	BOX ShapeType = iota
	PLANE
	HULL
)

func (t ShapeType) String() string {
	switch t {
	case BOX:
		return "box"
	case PLANE:
		return "plane"
	case HULL:
		return "hull"
	default:
		return "unknown"
	}
}

type BoxData struct {
	HalfExtents mgl64.Vec3
	Mass        float64
}

type PlaneData struct {
	Normal mgl64.Vec3
	Offset float64
}

type HullData struct {
	Vertices []mgl64.Vec3
	// Faces - индексы вершин каждой грани в порядке обхода
	Faces [][]int
	Mass  float64
}
