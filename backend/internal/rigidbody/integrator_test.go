package rigidbody

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

const timeStep = 1.0 / 50.0

func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func vec3AlmostEqual(a, b mgl64.Vec3, tol float64) bool {
	return almostEqual(a[0], b[0], tol) && almostEqual(a[1], b[1], tol) && almostEqual(a[2], b[2], tol)
}

func TestFreeFall(t *testing.T) {
	g := -9.81
	rb := NewBox(1, mgl64.Vec3{0.5, 0.5, 0.5})
	pos := mgl64.Vec3{}
	rot := mgl64.QuatIdent()

	const steps = 50
	for i := 0; i < steps; i++ {
		IntegrateVelocity(&rb, mgl64.Vec3{0, g, 0}, timeStep)
		IntegratePose(&rb, &pos, &rot, timeStep, DefaultMaxAngularSpeed)
	}

	elapsed := steps * timeStep
	analytic := 0.5 * g * elapsed * elapsed

	// Полунеявный Эйлер опережает аналитику на g·dt·t/2 ≈ 0.098 за секунду
	if diff := math.Abs(pos.Y() - analytic); diff >= 0.11 {
		t.Errorf("Free fall error too large: y=%.4f analytic=%.4f diff=%.4f", pos.Y(), analytic, diff)
	}
	if !almostEqual(rb.Velocity.Y(), g*elapsed, 1e-9) {
		t.Errorf("Expected vy=%.4f, got %.4f", g*elapsed, rb.Velocity.Y())
	}
	if pos.X() != 0 || pos.Z() != 0 {
		t.Errorf("Free fall drifted sideways: %v", pos)
	}
}

func TestStaticBodyIsNotIntegrated(t *testing.T) {
	rb := New(0, mgl64.Ident3())
	rb.Velocity = mgl64.Vec3{1, 2, 3}
	rb.ApplyForce(mgl64.Vec3{10, 0, 0})

	pos := mgl64.Vec3{5, 5, 5}
	rot := mgl64.QuatIdent()

	IntegrateVelocity(&rb, mgl64.Vec3{0, -9.81, 0}, timeStep)
	IntegratePose(&rb, &pos, &rot, timeStep, DefaultMaxAngularSpeed)

	if rb.Velocity != (mgl64.Vec3{1, 2, 3}) {
		t.Errorf("Static body velocity changed: %v", rb.Velocity)
	}
	if pos != (mgl64.Vec3{5, 5, 5}) {
		t.Errorf("Static body moved: %v", pos)
	}
	if !rb.IsStatic() {
		t.Error("Expected static body")
	}
}

func TestIntegrateVelocity_ResetsAccumulators(t *testing.T) {
	rb := NewBox(2, mgl64.Vec3{1, 1, 1})
	rb.ApplyForce(mgl64.Vec3{4, 0, 0})
	rb.ApplyTorque(mgl64.Vec3{0, 0, 1})

	IntegrateVelocity(&rb, mgl64.Vec3{}, 0.5)

	if !vec3AlmostEqual(rb.Velocity, mgl64.Vec3{1, 0, 0}, 1e-12) {
		t.Errorf("Expected v=(1,0,0), got %v", rb.Velocity)
	}
	// Iz = m/12·(w²+h²) = 2/12·8 = 4/3
	if !almostEqual(rb.AngularVelocity.Z(), 0.5*0.75, 1e-12) {
		t.Errorf("Expected wz=0.375, got %v", rb.AngularVelocity.Z())
	}
	if rb.Force != (mgl64.Vec3{}) || rb.Torque != (mgl64.Vec3{}) {
		t.Errorf("Accumulators not reset: F=%v T=%v", rb.Force, rb.Torque)
	}
}

func TestIntegratePose_ClampsAngularSpeed(t *testing.T) {
	rb := NewBox(1, mgl64.Vec3{0.5, 0.5, 0.5})
	rb.AngularVelocity = mgl64.Vec3{0, 1000, 0}

	pos := mgl64.Vec3{}
	rot := mgl64.QuatIdent()
	IntegratePose(&rb, &pos, &rot, timeStep, DefaultMaxAngularSpeed)

	if !almostEqual(rb.AngularVelocity.Len(), DefaultMaxAngularSpeed, 1e-9) {
		t.Errorf("Expected clamped speed %.1f, got %.4f", DefaultMaxAngularSpeed, rb.AngularVelocity.Len())
	}

	expected := mgl64.QuatRotate(DefaultMaxAngularSpeed*timeStep, mgl64.Vec3{0, 1, 0})
	if !rot.ApproxEqualThreshold(expected, 1e-9) {
		t.Errorf("Expected rotation %v, got %v", expected, rot)
	}
	if !almostEqual(rot.Len(), 1, 1e-12) {
		t.Errorf("Rotation not normalized: |q|=%v", rot.Len())
	}
}

func TestIntegratePose_KeepsUnitQuaternion(t *testing.T) {
	rb := NewBox(1, mgl64.Vec3{0.5, 1, 2})
	rb.AngularVelocity = mgl64.Vec3{3, -2, 5}

	pos := mgl64.Vec3{}
	rot := mgl64.QuatIdent()
	for i := 0; i < 1000; i++ {
		IntegratePose(&rb, &pos, &rot, timeStep, DefaultMaxAngularSpeed)
	}

	if !almostEqual(rot.Len(), 1, 1e-9) {
		t.Errorf("Quaternion drifted from unit length: %v", rot.Len())
	}
}

func TestUpdateInertiaTensor(t *testing.T) {
	rb := NewBox(12, mgl64.Vec3{1, 2, 3})
	local := rb.LocalInverseInertia

	// Поворот на 90° вокруг Z меняет местами оси X и Y
	rb.UpdateInertiaTensor(mgl64.QuatRotate(math.Pi/2, mgl64.Vec3{0, 0, 1}))

	if !almostEqual(rb.GlobalInverseInertia.At(0, 0), local.At(1, 1), 1e-12) {
		t.Errorf("Expected Ixx⁻¹=%v, got %v", local.At(1, 1), rb.GlobalInverseInertia.At(0, 0))
	}
	if !almostEqual(rb.GlobalInverseInertia.At(1, 1), local.At(0, 0), 1e-12) {
		t.Errorf("Expected Iyy⁻¹=%v, got %v", local.At(0, 0), rb.GlobalInverseInertia.At(1, 1))
	}
	if !almostEqual(rb.GlobalInverseInertia.At(2, 2), local.At(2, 2), 1e-12) {
		t.Errorf("Izz⁻¹ changed: %v", rb.GlobalInverseInertia.At(2, 2))
	}
}

func TestApplyImpulse(t *testing.T) {
	rb := NewBox(2, mgl64.Vec3{1, 1, 1})

	rb.ApplyImpulse(mgl64.Vec3{0, 4, 0}, mgl64.Vec3{1, 0, 0})

	if !vec3AlmostEqual(rb.Velocity, mgl64.Vec3{0, 2, 0}, 1e-12) {
		t.Errorf("Expected v=(0,2,0), got %v", rb.Velocity)
	}
	// r × J = (1,0,0) × (0,4,0) = (0,0,4); I⁻¹ = 3/4
	if !vec3AlmostEqual(rb.AngularVelocity, mgl64.Vec3{0, 0, 3}, 1e-12) {
		t.Errorf("Expected w=(0,0,3), got %v", rb.AngularVelocity)
	}
}

func TestApplyForceAtPoint_ProducesTorque(t *testing.T) {
	tests := []struct {
		name   string
		offset mgl64.Vec3
		force  mgl64.Vec3
		torque mgl64.Vec3
	}{
		{"through centre", mgl64.Vec3{}, mgl64.Vec3{0, 10, 0}, mgl64.Vec3{}},
		{"offset along x", mgl64.Vec3{1, 0, 0}, mgl64.Vec3{0, 10, 0}, mgl64.Vec3{0, 0, 10}},
		{"offset along z", mgl64.Vec3{0, 0, 0.5}, mgl64.Vec3{4, 0, 0}, mgl64.Vec3{0, 2, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Куб 1x1x1 массой 2: I = 1/3, I⁻¹ = 3 по каждой оси
			rb := NewBox(2, mgl64.Vec3{0.5, 0.5, 0.5})
			rb.GlobalCentreOfMass = mgl64.Vec3{1, 2, 3}

			rb.ApplyForceAtPoint(tt.force, rb.GlobalCentreOfMass.Add(tt.offset))

			if !vec3AlmostEqual(rb.Torque, tt.torque, 1e-12) {
				t.Errorf("Expected torque %v, got %v", tt.torque, rb.Torque)
			}
			if rb.Force != tt.force {
				t.Errorf("Expected force %v, got %v", tt.force, rb.Force)
			}

			IntegrateVelocity(&rb, mgl64.Vec3{}, timeStep)

			if want := tt.force.Mul(timeStep / 2); !vec3AlmostEqual(rb.Velocity, want, 1e-12) {
				t.Errorf("Expected velocity %v, got %v", want, rb.Velocity)
			}
			if want := tt.torque.Mul(3 * timeStep); !vec3AlmostEqual(rb.AngularVelocity, want, 1e-9) {
				t.Errorf("Expected angular velocity %v, got %v", want, rb.AngularVelocity)
			}
			if rb.Force != (mgl64.Vec3{}) || rb.Torque != (mgl64.Vec3{}) {
				t.Errorf("Accumulators not reset: %v %v", rb.Force, rb.Torque)
			}
		})
	}
}
