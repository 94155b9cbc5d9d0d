package rigidbody

import (
	"github.com/go-gl/mathgl/mgl64"
)

// Rigidbody - динамическое состояние тела. InverseMass == 0 означает
// статическое или кинематическое тело.
type Rigidbody struct {
	Mass        float64
	InverseMass float64

	Velocity        mgl64.Vec3
	AngularVelocity mgl64.Vec3

	// Накопители сбрасываются после интегрирования скоростей
	Force  mgl64.Vec3
	Torque mgl64.Vec3

	LocalInverseInertia  mgl64.Mat3
	GlobalInverseInertia mgl64.Mat3

	// GlobalCentreOfMass обновляется вместе с позицией тела
	GlobalCentreOfMass mgl64.Vec3
}

// New создает тело с массой mass и локальным тензором инерции.
// mass <= 0 дает неподвижное тело.
func New(mass float64, localInertia mgl64.Mat3) Rigidbody {
	rb := Rigidbody{}
	rb.SetMass(mass, localInertia)
	return rb
}

// NewBox создает тело-параллелепипед с равномерной плотностью
func NewBox(mass float64, halfExtents mgl64.Vec3) Rigidbody {
	return New(mass, BoxInertia(mass, halfExtents))
}

// SetMass задает массу и инерцию, пересчитывая обратные величины
func (rb *Rigidbody) SetMass(mass float64, localInertia mgl64.Mat3) {
	if mass <= 0 {
		rb.Mass = 0
		rb.InverseMass = 0
		rb.LocalInverseInertia = mgl64.Mat3{}
		rb.GlobalInverseInertia = mgl64.Mat3{}
		return
	}

	rb.Mass = mass
	rb.InverseMass = 1 / mass

	if localInertia.Det() != 0 {
		rb.LocalInverseInertia = localInertia.Inv()
	} else {
		rb.LocalInverseInertia = mgl64.Mat3{}
	}
	rb.GlobalInverseInertia = rb.LocalInverseInertia
}

// IsStatic сообщает, что тело не участвует в интегрировании
func (rb *Rigidbody) IsStatic() bool {
	return rb.InverseMass == 0
}

// BoxInertia возвращает тензор инерции сплошного параллелепипеда
func BoxInertia(mass float64, halfExtents mgl64.Vec3) mgl64.Mat3 {
	w := 2 * halfExtents[0]
	h := 2 * halfExtents[1]
	d := 2 * halfExtents[2]
	k := mass / 12

	return mgl64.Diag3(mgl64.Vec3{
		k * (h*h + d*d),
		k * (w*w + d*d),
		k * (w*w + h*h),
	})
}

// ApplyForce добавляет силу к центру масс
func (rb *Rigidbody) ApplyForce(force mgl64.Vec3) {
	rb.Force = rb.Force.Add(force)
}

// ApplyForceAtPoint добавляет силу в мировой точке, порождая момент
func (rb *Rigidbody) ApplyForceAtPoint(force, point mgl64.Vec3) {
	rb.Force = rb.Force.Add(force)
	rb.Torque = rb.Torque.Add(point.Sub(rb.GlobalCentreOfMass).Cross(force))
}

// ApplyTorque добавляет момент
func (rb *Rigidbody) ApplyTorque(torque mgl64.Vec3) {
	rb.Torque = rb.Torque.Add(torque)
}

// ApplyImpulse мгновенно меняет скорости от импульса в мировой точке
func (rb *Rigidbody) ApplyImpulse(impulse, point mgl64.Vec3) {
	if rb.IsStatic() {
		return
	}
	rb.Velocity = rb.Velocity.Add(impulse.Mul(rb.InverseMass))
	r := point.Sub(rb.GlobalCentreOfMass)
	rb.AngularVelocity = rb.AngularVelocity.Add(rb.GlobalInverseInertia.Mul3x1(r.Cross(impulse)))
}

// UpdateInertiaTensor пересчитывает мировой обратный тензор I⁻¹ = R·I⁻¹·Rᵀ
func (rb *Rigidbody) UpdateInertiaTensor(rotation mgl64.Quat) {
	r := rotation.Mat4().Mat3()
	rb.GlobalInverseInertia = r.Mul3(rb.LocalInverseInertia).Mul3(r.Transpose())
}
