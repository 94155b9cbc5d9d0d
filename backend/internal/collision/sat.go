package collision

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"x-physics/backend/internal/geometry"
)

// Settings - допуски узкой фазы
type Settings struct {
	// TieEpsilon: ось грани предпочитается оси ребер, а грань A - грани B,
	// если разница разделений меньше этого значения
	TieEpsilon float64
	// ContactTolerance: точки инцидентной грани выше опорной плоскости
	// на это расстояние все еще считаются контактами
	ContactTolerance float64
	// ParallelEpsilon отсекает почти параллельные пары ребер
	ParallelEpsilon float64
}

// DefaultSettings возвращает допуски по умолчанию
func DefaultSettings() Settings {
	return Settings{
		TieEpsilon:       1e-3,
		ContactTolerance: 5e-3,
		ParallelEpsilon:  1e-6,
	}
}

type faceQuery struct {
	separation float64
	face       geometry.FaceID
}

type edgeQuery struct {
	separation float64
	normal     mgl64.Vec3
	edgeA      geometry.EdgeID
	edgeB      geometry.EdgeID
}

// queryFaceDirections ищет грань a с наибольшим разделением до b.
// Поиск прекращается, как только разделение превысило margin.
func queryFaceDirections(a, b *Collider, margin float64) faceQuery {
	best := faceQuery{separation: math.Inf(-1), face: geometry.InvalidFace}

	for i := 0; i < a.Mesh.FaceSlots(); i++ {
		n := a.worldNormals[i]
		p := a.worldCentroids[i]

		s := n.Dot(geometry.SupportPoint(b.worldVertices, n.Mul(-1)).Sub(p))
		if s > best.separation {
			best = faceQuery{separation: s, face: geometry.FaceID(i)}
		}
		if s > margin {
			return best
		}
	}
	return best
}

// queryEdgeDirections проверяет векторные произведения пар ребер. Пара
// учитывается, только если ее дуги на гауссовой сфере пересекаются, то есть
// ребра образуют грань разности Минковского.
func queryEdgeDirections(a, b *Collider, parallelEps, margin float64) edgeQuery {
	best := edgeQuery{separation: math.Inf(-1), edgeA: geometry.InvalidEdge, edgeB: geometry.InvalidEdge}

	centerA := centroid(a.worldVertices)

	for _, ea := range a.Mesh.UniqueEdges() {
		pa := a.edgeOrigin(ea)
		da := a.edgeDirection(ea)
		na1, na2 := a.edgeFaceNormals(ea)

		for _, eb := range b.Mesh.UniqueEdges() {
			nb1, nb2 := b.edgeFaceNormals(eb)
			if !isMinkowskiFace(na1, na2, nb1.Mul(-1), nb2.Mul(-1)) {
				continue
			}

			pb := b.edgeOrigin(eb)
			db := b.edgeDirection(eb)

			axis := da.Cross(db)
			l := axis.Len()
			if l <= parallelEps*da.Len()*db.Len() {
				continue
			}
			axis = axis.Mul(1 / l)

			// Нормаль ориентируется от A к B
			if axis.Dot(pa.Sub(centerA)) < 0 {
				axis = axis.Mul(-1)
			}
			sep := axis.Dot(pb.Sub(pa))

			if sep > best.separation {
				best = edgeQuery{separation: sep, normal: axis, edgeA: ea, edgeB: eb}
			}
			if sep > margin {
				return best
			}
		}
	}
	return best
}

// isMinkowskiFace - пересекаются ли дуги ab и cd на гауссовой сфере
func isMinkowskiFace(a, b, c, d mgl64.Vec3) bool {
	bxa := b.Cross(a)
	dxc := d.Cross(c)

	cba := c.Dot(bxa)
	dba := d.Dot(bxa)
	adc := a.Dot(dxc)
	bdc := b.Dot(dxc)

	return cba*dba < 0 && adc*bdc < 0 && cba*bdc > 0
}

func centroid(points []mgl64.Vec3) mgl64.Vec3 {
	var sum mgl64.Vec3
	for _, p := range points {
		sum = sum.Add(p)
	}
	if len(points) == 0 {
		return sum
	}
	return sum.Mul(1 / float64(len(points)))
}

// edgeFaceNormals - мировые нормали двух граней, смежных с ребром
func (c *Collider) edgeFaceNormals(e geometry.EdgeID) (mgl64.Vec3, mgl64.Vec3) {
	return c.worldNormals[c.Mesh.Edge(e).Face], c.worldNormals[c.Mesh.Edge(c.Mesh.Pair(e)).Face]
}

func (c *Collider) edgeOrigin(e geometry.EdgeID) mgl64.Vec3 {
	return c.worldVertices[c.Mesh.Edge(e).Vertex]
}

func (c *Collider) edgeDestination(e geometry.EdgeID) mgl64.Vec3 {
	return c.worldVertices[c.Mesh.Edge(c.Mesh.Next(e)).Vertex]
}

func (c *Collider) edgeDirection(e geometry.EdgeID) mgl64.Vec3 {
	return c.edgeDestination(e).Sub(c.edgeOrigin(e))
}

func (c *Collider) faceWorldVertices(f geometry.FaceID) []mgl64.Vec3 {
	points := make([]mgl64.Vec3, 0, 4)
	c.Mesh.ForEachEdge(f, func(e geometry.EdgeID) bool {
		points = append(points, c.edgeOrigin(e))
		return true
	})
	return points
}

// collideConvex - SAT для двух выпуклых оболочек. Оси граней A и B и оси
// ребер проверяются полностью, выбирается ось наименьшего проникновения.
// Пары с зазором не больше ContactTolerance дают упреждающие контакты с
// отрицательным проникновением.
func collideConvex(a, b *Collider, s Settings) (Result, bool) {
	margin := s.ContactTolerance

	faceA := queryFaceDirections(a, b, margin)
	if faceA.separation > margin {
		return Result{}, false
	}

	faceB := queryFaceDirections(b, a, margin)
	if faceB.separation > margin {
		return Result{}, false
	}

	edge := queryEdgeDirections(a, b, s.ParallelEpsilon, margin)
	if edge.separation > margin {
		return Result{}, false
	}

	bestFace := math.Max(faceA.separation, faceB.separation)
	if edge.edgeA != geometry.InvalidEdge && edge.separation > bestFace+s.TieEpsilon {
		return edgeContact(a, b, edge), true
	}

	if faceB.separation > faceA.separation+s.TieEpsilon {
		return faceContact(b, faceB.face, a, true, s)
	}
	return faceContact(a, faceA.face, b, false, s)
}

// faceContact строит контакты отсечением инцидентной грани по боковым
// плоскостям опорной. flip означает, что опорная грань принадлежит B.
func faceContact(ref *Collider, refFace geometry.FaceID, inc *Collider, flip bool, s Settings) (Result, bool) {
	refNormal := ref.worldNormals[refFace]
	refCentroid := ref.worldCentroids[refFace]

	incFace := geometry.InvalidFace
	minDot := math.Inf(1)
	for i := 0; i < inc.Mesh.FaceSlots(); i++ {
		if d := inc.worldNormals[i].Dot(refNormal); d < minDot {
			minDot = d
			incFace = geometry.FaceID(i)
		}
	}

	refPolygon := ref.faceWorldVertices(refFace)
	incident := inc.faceWorldVertices(incFace)

	clipped := clipIncidentAgainstReference(incident, refPolygon, refNormal)

	normal := refNormal
	if flip {
		normal = refNormal.Mul(-1)
	}

	contacts := make([]Contact, 0, len(clipped))
	for _, p := range clipped {
		d := refNormal.Dot(p.Sub(refCentroid))
		if d > s.ContactTolerance {
			continue
		}
		contacts = append(contacts, Contact{
			Position:    p.Sub(refNormal.Mul(d)),
			Normal:      normal,
			Penetration: -d,
		})
	}

	if len(contacts) == 0 {
		return Result{}, false
	}
	contacts = reduceContacts(contacts, normal)

	return Result{
		Normal:      normal,
		Penetration: maxPenetration(contacts),
		Contacts:    contacts,
	}, true
}

// edgeContact - одна точка посередине между ближайшими точками ребер
func edgeContact(a, b *Collider, q edgeQuery) Result {
	p1, q1 := a.edgeOrigin(q.edgeA), a.edgeDestination(q.edgeA)
	p2, q2 := b.edgeOrigin(q.edgeB), b.edgeDestination(q.edgeB)

	c1, c2 := closestPointsSegments(p1, q1, p2, q2)
	penetration := -q.separation

	return Result{
		Normal:      q.normal,
		Penetration: penetration,
		Contacts: []Contact{{
			Position:    c1.Add(c2).Mul(0.5),
			Normal:      q.normal,
			Penetration: penetration,
		}},
	}
}

// closestPointsSegments возвращает ближайшие точки отрезков p1q1 и p2q2
func closestPointsSegments(p1, q1, p2, q2 mgl64.Vec3) (mgl64.Vec3, mgl64.Vec3) {
	const eps = 1e-12

	d1 := q1.Sub(p1)
	d2 := q2.Sub(p2)
	r := p1.Sub(p2)
	a := d1.Dot(d1)
	e := d2.Dot(d2)
	f := d2.Dot(r)

	var s, t float64
	switch {
	case a <= eps && e <= eps:
		return p1, p2
	case a <= eps:
		t = clamp01(f / e)
	default:
		c := d1.Dot(r)
		if e <= eps {
			s = clamp01(-c / a)
		} else {
			b := d1.Dot(d2)
			denom := a*e - b*b
			if denom > eps {
				s = clamp01((b*f - c*e) / denom)
			}
			t = (b*s + f) / e
			if t < 0 {
				t = 0
				s = clamp01(-c / a)
			} else if t > 1 {
				t = 1
				s = clamp01((b - c) / a)
			}
		}
	}

	return p1.Add(d1.Mul(s)), p2.Add(d2.Mul(t))
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func maxPenetration(contacts []Contact) float64 {
	best := math.Inf(-1)
	for _, c := range contacts {
		best = math.Max(best, c.Penetration)
	}
	return best
}
