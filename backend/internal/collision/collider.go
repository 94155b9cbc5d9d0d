package collision

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"x-physics/backend/internal/geometry"
)

// Kind - закрытый набор форм коллайдеров
type Kind int

const (
	ConvexHull Kind = iota
	Plane
)

func (k Kind) String() string {
	switch k {
	case ConvexHull:
		return "convex_hull"
	case Plane:
		return "plane"
	default:
		return "unknown"
	}
}

// planeHalfExtent - полуразмер AABB бесконечной плоскости для широкой фазы
const planeHalfExtent = 1e4

// Collider - форма, прикрепленная к PhysicsComponent. Меш хранится в
// локальных координатах, мировые данные кэшируются в UpdateTransform.
type Collider struct {
	Kind  Kind
	Mesh  *geometry.Mesh
	Owner *PhysicsComponent

	// Для Kind == Plane: плоскость dot(n, p) = offset в локальных координатах
	PlaneNormal mgl64.Vec3
	PlaneOffset float64

	// Bounds - плотный мировой AABB после последнего UpdateTransform
	Bounds geometry.AABB

	worldVertices    []mgl64.Vec3
	worldNormals     []mgl64.Vec3
	worldCentroids   []mgl64.Vec3
	worldPlaneNormal mgl64.Vec3
	worldPlaneOffset float64
	degenerate       bool
}

// NewConvexCollider создает коллайдер выпуклой оболочки
func NewConvexCollider(mesh *geometry.Mesh) *Collider {
	c := &Collider{Kind: ConvexHull, Mesh: mesh}
	c.UpdateTransform(mgl64.Ident4())
	return c
}

// NewBoxCollider создает коллайдер-параллелепипед. eps - допуск слияния
// граней, <= 0 означает geometry.DefaultEpsilon.
func NewBoxCollider(halfExtents mgl64.Vec3, eps float64) (*Collider, error) {
	mesh, err := geometry.NewBoxMesh(halfExtents, eps)
	if err != nil {
		return nil, fmt.Errorf("box collider: %w", err)
	}
	return NewConvexCollider(mesh), nil
}

// NewPlaneCollider создает бесконечную плоскость dot(normal, p) = offset
func NewPlaneCollider(normal mgl64.Vec3, offset float64) *Collider {
	c := &Collider{Kind: Plane, PlaneNormal: normal, PlaneOffset: offset}
	c.UpdateTransform(mgl64.Ident4())
	return c
}

// IsDegenerate - коллайдер не может участвовать в столкновениях
func (c *Collider) IsDegenerate() bool {
	return c.degenerate
}

// WorldVertices возвращает вершины в мировых координатах
func (c *Collider) WorldVertices() []mgl64.Vec3 {
	return c.worldVertices
}

// WorldFaceNormal возвращает мировую нормаль грани
func (c *Collider) WorldFaceNormal(f geometry.FaceID) mgl64.Vec3 {
	return c.worldNormals[f]
}

// UpdateTransform пересчитывает мировые вершины, нормали граней и AABB
func (c *Collider) UpdateTransform(transform mgl64.Mat4) {
	linear := transform.Mat3()
	c.degenerate = false

	if math.Abs(linear.Det()) < 1e-12 {
		c.degenerate = true
		c.Bounds = geometry.EmptyAABB()
		return
	}
	normalMatrix := linear.Inv().Transpose()

	switch c.Kind {
	case Plane:
		n := normalMatrix.Mul3x1(c.PlaneNormal)
		if n.Len() == 0 {
			c.degenerate = true
			c.Bounds = geometry.EmptyAABB()
			return
		}
		n = n.Normalize()
		point := mgl64.TransformCoordinate(c.PlaneNormal.Mul(c.PlaneOffset/lenSqr(c.PlaneNormal)), transform)
		c.worldPlaneNormal = n
		c.worldPlaneOffset = n.Dot(point)

		c.Bounds = geometry.NewAABB(point, mgl64.Vec3{planeHalfExtent, planeHalfExtent, planeHalfExtent})

	default:
		if c.Mesh == nil || c.Mesh.FaceCount() == 0 {
			c.degenerate = true
			c.Bounds = geometry.EmptyAABB()
			return
		}

		local := c.Mesh.Vertices()
		c.worldVertices = resize(c.worldVertices, len(local))
		for i, v := range local {
			c.worldVertices[i] = mgl64.TransformCoordinate(v, transform)
		}

		slots := c.Mesh.FaceSlots()
		c.worldNormals = resize(c.worldNormals, slots)
		c.worldCentroids = resize(c.worldCentroids, slots)
		for i := 0; i < slots; i++ {
			face := c.Mesh.Face(geometry.FaceID(i))
			n := normalMatrix.Mul3x1(face.Normal)
			if l := n.Len(); l > 0 {
				n = n.Mul(1 / l)
			}
			c.worldNormals[i] = n
			c.worldCentroids[i] = mgl64.TransformCoordinate(face.Centroid, transform)
		}

		c.Bounds = geometry.AABBFromPoints(c.worldVertices)
		if c.Bounds.Volume() <= 0 {
			c.degenerate = true
		}
	}
}

func lenSqr(v mgl64.Vec3) float64 {
	l := v.Dot(v)
	if l == 0 {
		return 1
	}
	return l
}

func resize(buf []mgl64.Vec3, n int) []mgl64.Vec3 {
	if cap(buf) >= n {
		return buf[:n]
	}
	return make([]mgl64.Vec3, n)
}

// PhysicsComponent - упорядоченный набор коллайдеров одной сущности
type PhysicsComponent struct {
	Colliders []*Collider
	// IsTrigger подавляет разрешение контактов, но события все равно рассылаются
	IsTrigger bool
}

// NewPhysicsComponent создает компонент и привязывает к нему коллайдеры
func NewPhysicsComponent(colliders ...*Collider) *PhysicsComponent {
	pc := &PhysicsComponent{}
	for _, c := range colliders {
		pc.AddCollider(c)
	}
	return pc
}

// AddCollider добавляет коллайдер и назначает ему владельца
func (pc *PhysicsComponent) AddCollider(c *Collider) {
	if c == nil {
		return
	}
	c.Owner = pc
	pc.Colliders = append(pc.Colliders, c)
}

// UpdateTransform обновляет все коллайдеры компонента
func (pc *PhysicsComponent) UpdateTransform(transform mgl64.Mat4) {
	for _, c := range pc.Colliders {
		if c != nil {
			c.UpdateTransform(transform)
		}
	}
}

// Bounds возвращает объединение мировых AABB коллайдеров
func (pc *PhysicsComponent) Bounds() geometry.AABB {
	box := geometry.EmptyAABB()
	for _, c := range pc.Colliders {
		if c != nil && !c.degenerate {
			box = box.Union(c.Bounds)
		}
	}
	return box
}

// Transform собирает мировую матрицу из позиции, ориентации и масштаба
func Transform(position mgl64.Vec3, rotation mgl64.Quat, scale mgl64.Vec3) mgl64.Mat4 {
	return mgl64.Translate3D(position[0], position[1], position[2]).
		Mul4(rotation.Mat4()).
		Mul4(mgl64.Scale3D(scale[0], scale[1], scale[2]))
}
