package world

import (
	"fmt"
	"log"

	"github.com/go-gl/mathgl/mgl64"

	"x-physics/backend/internal/collision"
	"x-physics/backend/internal/ecs"
	"x-physics/backend/internal/geometry"
	"x-physics/backend/internal/rigidbody"
)

// Factory создает сущности с физикой в мире
type Factory struct {
	world  *World
	eps    float64
	logger *log.Logger
}

// NewFactory создает новый экземпляр Factory. eps - допуск сварки вершин и
// слияния копланарных граней мешей, <= 0 означает geometry.DefaultEpsilon.
func NewFactory(world *World, eps float64, logger *log.Logger) *Factory {
	if logger == nil {
		logger = log.Default()
	}
	if eps <= 0 {
		eps = geometry.DefaultEpsilon
	}
	return &Factory{
		world:  world,
		eps:    eps,
		logger: logger,
	}
}

func (f *Factory) World() *World {
	return f.world
}

// Epsilon возвращает допуск построения мешей
func (f *Factory) Epsilon() float64 {
	return f.eps
}

// CreateBox создает ящик. mass <= 0 дает статический ящик без Rigidbody.
func (f *Factory) CreateBox(position mgl64.Vec3, rotation mgl64.Quat, halfExtents mgl64.Vec3, mass float64, color string) (ecs.Entity, error) {
	collider, err := collision.NewBoxCollider(halfExtents, f.eps)
	if err != nil {
		return 0, fmt.Errorf("create box: %w", err)
	}

	e := f.world.CreateEntity()
	f.world.SetTransform(e, position, rotation)
	f.world.Physics.Set(e, collision.NewPhysicsComponent(collider))
	f.world.Shapes.Set(e, &ShapeDescriptor{
		Type:  BOX,
		Box:   &BoxData{HalfExtents: halfExtents, Mass: mass},
		Color: color,
	})

	if mass > 0 {
		f.world.Rigidbodies.Set(e, newBody(mass, rigidbody.BoxInertia(mass, halfExtents), position, rotation))
	}

	f.logger.Printf("[World] Создан ящик %d в координатах (%.2f, %.2f, %.2f), масса %.2f",
		e, position[0], position[1], position[2], mass)
	return e, nil
}

// CreateFloor создает статический пол с верхней гранью на высоте top
func (f *Factory) CreateFloor(halfExtents mgl64.Vec3, top float64) (ecs.Entity, error) {
	position := mgl64.Vec3{0, top - halfExtents[1], 0}
	return f.CreateBox(position, mgl64.QuatIdent(), halfExtents, 0, "#808080")
}

// CreatePlane создает бесконечную статическую плоскость dot(normal, p) = offset
func (f *Factory) CreatePlane(normal mgl64.Vec3, offset float64) ecs.Entity {
	e := f.world.CreateEntity()
	f.world.SetTransform(e, mgl64.Vec3{}, mgl64.QuatIdent())
	f.world.Physics.Set(e, collision.NewPhysicsComponent(collision.NewPlaneCollider(normal, offset)))
	f.world.Shapes.Set(e, &ShapeDescriptor{
		Type:  PLANE,
		Plane: &PlaneData{Normal: normal, Offset: offset},
		Color: "#606060",
	})

	f.logger.Printf("[World] Создана плоскость %d: n=(%.2f, %.2f, %.2f), d=%.2f",
		e, normal[0], normal[1], normal[2], offset)
	return e
}

// CreateTrigger создает триггерный объем: события есть, разрешения контактов нет
func (f *Factory) CreateTrigger(position, halfExtents mgl64.Vec3) (ecs.Entity, error) {
	collider, err := collision.NewBoxCollider(halfExtents, f.eps)
	if err != nil {
		return 0, fmt.Errorf("create trigger: %w", err)
	}

	pc := collision.NewPhysicsComponent(collider)
	pc.IsTrigger = true

	e := f.world.CreateEntity()
	f.world.SetTransform(e, position, mgl64.QuatIdent())
	f.world.Physics.Set(e, pc)
	f.world.Shapes.Set(e, &ShapeDescriptor{
		Type:  BOX,
		Box:   &BoxData{HalfExtents: halfExtents},
		Color: "#00ff0040",
	})

	f.logger.Printf("[World] Создан триггер %d в координатах (%.2f, %.2f, %.2f)",
		e, position[0], position[1], position[2])
	return e, nil
}

// CreateHull создает выпуклое тело из треугольников. Инерция берется по
// локальному AABB.
func (f *Factory) CreateHull(position mgl64.Vec3, rotation mgl64.Quat, vertices []mgl64.Vec3, indices []int, mass float64, color string) (ecs.Entity, error) {
	mesh, err := geometry.NewMeshFromTriangles(vertices, indices, f.eps)
	if err != nil {
		return 0, fmt.Errorf("create hull: %w", err)
	}

	e := f.world.CreateEntity()
	f.world.SetTransform(e, position, rotation)
	f.world.Physics.Set(e, collision.NewPhysicsComponent(collision.NewConvexCollider(mesh)))
	f.world.Shapes.Set(e, &ShapeDescriptor{
		Type:  HULL,
		Hull:  &HullData{Vertices: mesh.Vertices(), Faces: mesh.FaceIndices(), Mass: mass},
		Color: color,
	})

	if mass > 0 {
		half := mesh.Bounds().Extents()
		f.world.Rigidbodies.Set(e, newBody(mass, rigidbody.BoxInertia(mass, half), position, rotation))
	}

	f.logger.Printf("[World] Создана оболочка %d: %d граней, %d вершин",
		e, mesh.FaceCount(), len(mesh.Vertices()))
	return e, nil
}

func newBody(mass float64, inertia mgl64.Mat3, position mgl64.Vec3, rotation mgl64.Quat) rigidbody.Rigidbody {
	rb := rigidbody.New(mass, inertia)
	rb.GlobalCentreOfMass = position
	rb.UpdateInertiaTensor(rotation)
	return rb
}
