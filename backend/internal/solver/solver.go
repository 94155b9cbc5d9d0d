package solver

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"x-physics/backend/internal/collision"
	"x-physics/backend/internal/rigidbody"
)

// Settings - параметры последовательных импульсов
type Settings struct {
	Iterations int
	// Baumgarte - доля проникновения, исправляемая за шаг
	Baumgarte       float64
	PenetrationSlop float64
	Restitution     float64
	// RestitutionThreshold - скорость сближения, ниже которой отскока нет
	RestitutionThreshold float64
	Friction             float64
}

// DefaultSettings возвращает параметры решателя по умолчанию
func DefaultSettings() Settings {
	return Settings{
		Iterations:           10,
		Baumgarte:            0.2,
		PenetrationSlop:      0.005,
		Restitution:          0,
		RestitutionThreshold: 1.0,
		Friction:             0.5,
	}
}

// Stats - итоги последнего Solve
type Stats struct {
	Manifolds     int
	Contacts      int
	NormalImpulse float64
}

// Solver разрешает контакты манифолдов. Манифолды обрабатываются в порядке
// построения, результат зависит от этого порядка. Вызовы не потокобезопасны:
// два манифолда могут менять одно и то же тело.
type Solver struct {
	settings Settings
}

func New(settings Settings) *Solver {
	if settings.Iterations <= 0 {
		settings.Iterations = DefaultSettings().Iterations
	}
	return &Solver{settings: settings}
}

func (s *Solver) Settings() Settings {
	return s.settings
}

// Solve выполняет Initialize и Iterations раундов контактных и фрикционных
// ограничений
func (s *Solver) Solve(manifolds []*collision.Manifold, dt float64) Stats {
	active := s.Initialize(manifolds, dt)

	for i := 0; i < s.settings.Iterations; i++ {
		s.ResolveContactConstraints(active)
		s.ResolveFrictionConstraints(active)
	}

	stats := Stats{Manifolds: len(active)}
	for _, m := range active {
		stats.Contacts += len(m.Contacts)
		for _, c := range m.Contacts {
			stats.NormalImpulse += c.NormalImpulse
		}
	}
	return stats
}

// Initialize считает эффективные массы и смещения, затем применяет
// накопленные импульсы (теплый старт). Возвращает манифолды, которые надо
// решать: триггеры и пары без динамических тел отбрасываются.
func (s *Solver) Initialize(manifolds []*collision.Manifold, dt float64) []*collision.Manifold {
	active := make([]*collision.Manifold, 0, len(manifolds))

	for _, m := range manifolds {
		if m == nil || m.IsTrigger || !m.InvolvesRigidbody() {
			continue
		}
		a, b := m.RigidbodyA, m.RigidbodyB

		for i := range m.Contacts {
			c := &m.Contacts[i]
			n := c.Normal

			c.RA = c.Position.Sub(centre(a))
			c.RB = c.Position.Sub(centre(b))

			c.NormalMass = inverse(effectiveMass(a, b, c.RA, c.RB, n))

			c.Tangents[0], c.Tangents[1] = tangentBasis(n)
			for k := 0; k < 2; k++ {
				c.TangentMass[k] = inverse(effectiveMass(a, b, c.RA, c.RB, c.Tangents[k]))
			}

			c.Bias = 0
			if dt > 0 {
				if c.Penetration < 0 {
					// Упреждающий контакт: разрешено сближение, закрывающее зазор за шаг
					c.Bias = c.Penetration / dt
				} else {
					c.Bias = s.settings.Baumgarte / dt * math.Max(c.Penetration-s.settings.PenetrationSlop, 0)
				}
			}
			vn := relativeVelocity(a, b, c.RA, c.RB).Dot(n)
			if vn < -s.settings.RestitutionThreshold {
				c.Bias += -s.settings.Restitution * vn
			}

			// Теплый старт
			p := n.Mul(c.NormalImpulse).
				Add(c.Tangents[0].Mul(c.TangentImpulse[0])).
				Add(c.Tangents[1].Mul(c.TangentImpulse[1]))
			applyImpulse(a, b, c.RA, c.RB, p)
		}
		active = append(active, m)
	}
	return active
}

// ResolveContactConstraints - один проход по нормальным ограничениям.
// Накопленный нормальный импульс не бывает отрицательным.
func (s *Solver) ResolveContactConstraints(manifolds []*collision.Manifold) {
	for _, m := range manifolds {
		a, b := m.RigidbodyA, m.RigidbodyB
		for i := range m.Contacts {
			c := &m.Contacts[i]

			vn := relativeVelocity(a, b, c.RA, c.RB).Dot(c.Normal)
			lambda := c.NormalMass * (-vn + c.Bias)

			old := c.NormalImpulse
			c.NormalImpulse = math.Max(old+lambda, 0)
			lambda = c.NormalImpulse - old

			applyImpulse(a, b, c.RA, c.RB, c.Normal.Mul(lambda))
		}
	}
}

// ResolveFrictionConstraints - кулоновское трение по двум касательным,
// |λt| <= μ·λn
func (s *Solver) ResolveFrictionConstraints(manifolds []*collision.Manifold) {
	mu := s.settings.Friction
	for _, m := range manifolds {
		a, b := m.RigidbodyA, m.RigidbodyB
		for i := range m.Contacts {
			c := &m.Contacts[i]
			limit := mu * c.NormalImpulse

			for k := 0; k < 2; k++ {
				t := c.Tangents[k]
				vt := relativeVelocity(a, b, c.RA, c.RB).Dot(t)
				lambda := -c.TangentMass[k] * vt

				old := c.TangentImpulse[k]
				c.TangentImpulse[k] = clamp(old+lambda, -limit, limit)
				lambda = c.TangentImpulse[k] - old

				applyImpulse(a, b, c.RA, c.RB, t.Mul(lambda))
			}
		}
	}
}

func centre(rb *rigidbody.Rigidbody) mgl64.Vec3 {
	if rb == nil {
		return mgl64.Vec3{}
	}
	return rb.GlobalCentreOfMass
}

func inverseMass(rb *rigidbody.Rigidbody) float64 {
	if rb == nil {
		return 0
	}
	return rb.InverseMass
}

// angularTerm = (I⁻¹(r×n)×r)·n
func angularTerm(rb *rigidbody.Rigidbody, r, n mgl64.Vec3) float64 {
	if rb == nil || rb.IsStatic() {
		return 0
	}
	return rb.GlobalInverseInertia.Mul3x1(r.Cross(n)).Cross(r).Dot(n)
}

func effectiveMass(a, b *rigidbody.Rigidbody, ra, rb, n mgl64.Vec3) float64 {
	return inverseMass(a) + inverseMass(b) + angularTerm(a, ra, n) + angularTerm(b, rb, n)
}

func inverse(k float64) float64 {
	if k <= 1e-12 {
		return 0
	}
	return 1 / k
}

// relativeVelocity - скорость точки контакта B относительно A
func relativeVelocity(a, b *rigidbody.Rigidbody, ra, rb mgl64.Vec3) mgl64.Vec3 {
	return pointVelocity(b, rb).Sub(pointVelocity(a, ra))
}

func pointVelocity(rb *rigidbody.Rigidbody, r mgl64.Vec3) mgl64.Vec3 {
	if rb == nil {
		return mgl64.Vec3{}
	}
	return rb.Velocity.Add(rb.AngularVelocity.Cross(r))
}

// applyImpulse прикладывает -p к A и +p к B
func applyImpulse(a, b *rigidbody.Rigidbody, ra, rb, p mgl64.Vec3) {
	if a != nil && !a.IsStatic() {
		a.Velocity = a.Velocity.Sub(p.Mul(a.InverseMass))
		a.AngularVelocity = a.AngularVelocity.Sub(a.GlobalInverseInertia.Mul3x1(ra.Cross(p)))
	}
	if b != nil && !b.IsStatic() {
		b.Velocity = b.Velocity.Add(p.Mul(b.InverseMass))
		b.AngularVelocity = b.AngularVelocity.Add(b.GlobalInverseInertia.Mul3x1(rb.Cross(p)))
	}
}

// tangentBasis строит ортонормированный базис касательной плоскости
func tangentBasis(n mgl64.Vec3) (mgl64.Vec3, mgl64.Vec3) {
	var t mgl64.Vec3
	if math.Abs(n.X()) >= 0.57735 {
		t = mgl64.Vec3{n.Y(), -n.X(), 0}
	} else {
		t = mgl64.Vec3{0, n.Z(), -n.Y()}
	}
	t = t.Normalize()
	return t, n.Cross(t)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
