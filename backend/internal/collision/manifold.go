package collision

import (
	"github.com/go-gl/mathgl/mgl64"

	"x-physics/backend/internal/ecs"
	"x-physics/backend/internal/rigidbody"
)

// Contact - точка контакта. Поля решателя живут только в пределах одного шага.
type Contact struct {
	Position    mgl64.Vec3
	Normal      mgl64.Vec3
	Penetration float64

	// Накопленные импульсы для теплого старта внутри итераций решателя
	NormalImpulse  float64
	TangentImpulse [2]float64

	// Кэш решателя
	Tangents    [2]mgl64.Vec3
	NormalMass  float64
	TangentMass [2]float64
	Bias        float64
	RA, RB      mgl64.Vec3
}

// Manifold - столкновение двух коллайдеров за один шаг. Создается узкой
// фазой и выбрасывается после решателя.
type Manifold struct {
	ColliderA, ColliderB *Collider
	EntityA, EntityB     ecs.Entity

	// nil для статических тел
	RigidbodyA, RigidbodyB *rigidbody.Rigidbody

	// Normal направлена от A к B
	Normal      mgl64.Vec3
	Penetration float64
	Contacts    []Contact

	IsTrigger bool
}

// Result - результат узкой фазы для пары коллайдеров
type Result struct {
	Normal      mgl64.Vec3
	Penetration float64
	Contacts    []Contact
}

// NewManifold создает манифолд из результата узкой фазы
func NewManifold(a, b *Collider, result Result) *Manifold {
	return &Manifold{
		ColliderA:   a,
		ColliderB:   b,
		Normal:      result.Normal,
		Penetration: result.Penetration,
		Contacts:    result.Contacts,
	}
}

// InvolvesRigidbody сообщает, что хотя бы одна сторона - динамическое тело
func (m *Manifold) InvolvesRigidbody() bool {
	return m.RigidbodyA != nil || m.RigidbodyB != nil
}
