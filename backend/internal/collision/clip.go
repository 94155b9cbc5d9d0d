package collision

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// clipTolerance - допуск боковых плоскостей при отсечении
const clipTolerance = 1e-6

// maxContacts - максимальное число точек в манифолде
const maxContacts = 4

// clipIncidentAgainstReference отсекает инцидентный многоугольник боковыми
// плоскостями опорной грани (Сазерленд-Ходжмен). Боковая плоскость проходит
// через ребро опорной грани, ее внутренняя сторона refNormal × edge.
func clipIncidentAgainstReference(incident, reference []mgl64.Vec3, refNormal mgl64.Vec3) []mgl64.Vec3 {
	output := append([]mgl64.Vec3(nil), incident...)

	for i := range reference {
		if len(output) == 0 {
			break
		}
		a := reference[i]
		b := reference[(i+1)%len(reference)]
		inward := refNormal.Cross(b.Sub(a))
		if l := inward.Len(); l > 0 {
			inward = inward.Mul(1 / l)
		} else {
			continue
		}

		output = clipPolygon(output, a, inward)
	}
	return output
}

// clipPolygon оставляет часть многоугольника с dot(p - origin, inward) >= -tol
func clipPolygon(polygon []mgl64.Vec3, origin, inward mgl64.Vec3) []mgl64.Vec3 {
	result := make([]mgl64.Vec3, 0, len(polygon)+1)

	prev := polygon[len(polygon)-1]
	prevDist := inward.Dot(prev.Sub(origin))

	for _, cur := range polygon {
		curDist := inward.Dot(cur.Sub(origin))

		prevIn := prevDist >= -clipTolerance
		curIn := curDist >= -clipTolerance

		switch {
		case prevIn && curIn:
			result = append(result, cur)
		case prevIn && !curIn:
			result = append(result, intersect(prev, cur, prevDist, curDist))
		case !prevIn && curIn:
			result = append(result, intersect(prev, cur, prevDist, curDist), cur)
		}

		prev, prevDist = cur, curDist
	}
	return result
}

func intersect(a, b mgl64.Vec3, da, db float64) mgl64.Vec3 {
	denom := da - db
	if denom == 0 {
		return a
	}
	t := da / denom
	return a.Add(b.Sub(a).Mul(t))
}

// reduceContacts оставляет не больше четырех точек: самую глубокую, самую
// далекую от нее, точку максимальной площади треугольника и точку,
// сильнее всего выходящую за этот треугольник
func reduceContacts(contacts []Contact, normal mgl64.Vec3) []Contact {
	if len(contacts) <= maxContacts {
		return contacts
	}

	used := make([]bool, len(contacts))
	pick := func(score func(c Contact) float64) int {
		best, bestScore := -1, math.Inf(-1)
		for i, c := range contacts {
			if used[i] {
				continue
			}
			if s := score(c); s > bestScore {
				best, bestScore = i, s
			}
		}
		if best >= 0 {
			used[best] = true
		}
		return best
	}

	i0 := pick(func(c Contact) float64 { return c.Penetration })
	a := contacts[i0].Position

	i1 := pick(func(c Contact) float64 { return c.Position.Sub(a).LenSqr() })
	b := contacts[i1].Position

	signedArea := func(p, q, r mgl64.Vec3) float64 {
		return q.Sub(p).Cross(r.Sub(p)).Dot(normal)
	}

	i2 := pick(func(c Contact) float64 { return math.Abs(signedArea(a, b, c.Position)) })
	c := contacts[i2].Position

	// Ориентируем треугольник против часовой стрелки относительно нормали
	if signedArea(a, b, c) < 0 {
		b, c = c, b
	}

	i3 := pick(func(ct Contact) float64 {
		p := ct.Position
		return -math.Min(signedArea(a, b, p), math.Min(signedArea(b, c, p), signedArea(c, a, p)))
	})

	result := []Contact{contacts[i0], contacts[i1], contacts[i2]}
	if i3 >= 0 {
		result = append(result, contacts[i3])
	}
	return result
}
