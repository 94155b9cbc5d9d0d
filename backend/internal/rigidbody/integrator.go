package rigidbody

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// DefaultMaxAngularSpeed ограничивает угловую скорость при интегрировании позы
const DefaultMaxAngularSpeed = 32.0

// angularEpsilon - угол поворота за шаг, ниже которого ориентация не меняется
const angularEpsilon = 1e-12

// IntegrateVelocity - полунеявный Эйлер для скоростей:
// v += (F·m⁻¹ + g)·dt, ω += I⁻¹·T·dt. Накопители обнуляются.
func IntegrateVelocity(rb *Rigidbody, gravity mgl64.Vec3, dt float64) {
	if rb.IsStatic() {
		return
	}

	acceleration := rb.Force.Mul(rb.InverseMass).Add(gravity)
	rb.Velocity = rb.Velocity.Add(acceleration.Mul(dt))

	angularAcceleration := rb.GlobalInverseInertia.Mul3x1(rb.Torque)
	rb.AngularVelocity = rb.AngularVelocity.Add(angularAcceleration.Mul(dt))

	rb.Force = mgl64.Vec3{}
	rb.Torque = mgl64.Vec3{}
}

// IntegratePose сдвигает позицию на v·dt и поворачивает ориентацию
// экспоненциальным отображением ω·dt. Модуль ω ограничивается
// maxAngularSpeed. После шага кватернион нормализуется, а мировой тензор
// инерции пересчитывается.
func IntegratePose(rb *Rigidbody, position *mgl64.Vec3, rotation *mgl64.Quat, dt, maxAngularSpeed float64) {
	if rb.IsStatic() {
		return
	}
	if maxAngularSpeed <= 0 {
		maxAngularSpeed = DefaultMaxAngularSpeed
	}

	*position = position.Add(rb.Velocity.Mul(dt))

	speed := rb.AngularVelocity.Len()
	if speed > maxAngularSpeed {
		rb.AngularVelocity = rb.AngularVelocity.Mul(maxAngularSpeed / speed)
		speed = maxAngularSpeed
	}

	angle := speed * dt
	if angle > angularEpsilon && !math.IsNaN(angle) {
		axis := rb.AngularVelocity.Mul(1 / speed)
		delta := mgl64.QuatRotate(angle, axis)
		*rotation = delta.Mul(*rotation).Normalize()
	}

	rb.GlobalCentreOfMass = *position
	rb.UpdateInertiaTensor(*rotation)
}
