package world

import (
	"slices"
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl64"

	"x-physics/backend/internal/collision"
	"x-physics/backend/internal/ecs"
	"x-physics/backend/internal/rigidbody"
)

// World владеет хранилищами компонентов
type World struct {
	Positions   *ecs.Store[mgl64.Vec3]
	Rotations   *ecs.Store[mgl64.Quat]
	Scales      *ecs.Store[mgl64.Vec3]
	Physics     *ecs.Store[*collision.PhysicsComponent]
	Rigidbodies *ecs.Store[rigidbody.Rigidbody]
	Shapes      *ecs.Store[*ShapeDescriptor]

	nextID atomic.Uint64
}

func NewWorld() *World {
	return &World{
		Positions:   ecs.NewStore[mgl64.Vec3](),
		Rotations:   ecs.NewStore[mgl64.Quat](),
		Scales:      ecs.NewStore[mgl64.Vec3](),
		Physics:     ecs.NewStore[*collision.PhysicsComponent](),
		Rigidbodies: ecs.NewStore[rigidbody.Rigidbody](),
		Shapes:      ecs.NewStore[*ShapeDescriptor](),
	}
}

// CreateEntity выдает новый идентификатор, начиная с 1
func (w *World) CreateEntity() ecs.Entity {
	return ecs.Entity(w.nextID.Add(1))
}

// RemoveEntity удаляет все компоненты сущности
func (w *World) RemoveEntity(e ecs.Entity) {
	w.Positions.Remove(e)
	w.Rotations.Remove(e)
	w.Scales.Remove(e)
	w.Physics.Remove(e)
	w.Rigidbodies.Remove(e)
	w.Shapes.Remove(e)
}

// SetTransform задает позицию и ориентацию, масштаб по умолчанию единичный
func (w *World) SetTransform(e ecs.Entity, position mgl64.Vec3, rotation mgl64.Quat) {
	w.Positions.Set(e, position)
	w.Rotations.Set(e, rotation)
	if !w.Scales.Has(e) {
		w.Scales.Set(e, mgl64.Vec3{1, 1, 1})
	}
}

// Query возвращает отсортированные сущности с позицией и PhysicsComponent
func (w *World) Query() []ecs.Entity {
	entities := w.Physics.Entities()
	return slices.DeleteFunc(entities, func(e ecs.Entity) bool {
		return !w.Positions.Has(e)
	})
}

// EntityCount - число сущностей с физикой
func (w *World) EntityCount() int {
	return w.Physics.Len()
}
