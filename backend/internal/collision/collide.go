package collision

import (
	"math"
)

// Collide - узкая фаза для пары коллайдеров. Выбор алгоритма по закрытому
// набору форм. Вырожденные коллайдеры никогда не сталкиваются.
func Collide(a, b *Collider, s Settings) (Result, bool) {
	if a == nil || b == nil || a.degenerate || b.degenerate {
		return Result{}, false
	}

	switch {
	case a.Kind == ConvexHull && b.Kind == ConvexHull:
		return collideConvex(a, b, s)
	case a.Kind == Plane && b.Kind == ConvexHull:
		return collidePlane(a, b, s, false)
	case a.Kind == ConvexHull && b.Kind == Plane:
		return collidePlane(b, a, s, true)
	default:
		// Две бесконечные плоскости не разрешаются
		return Result{}, false
	}
}

// collidePlane - каждая вершина оболочки не выше ContactTolerance над
// плоскостью дает контакт.
// Нормаль плоскости смотрит в сторону оболочки, flip переворачивает ее,
// когда плоскость - это B.
func collidePlane(plane, hull *Collider, s Settings, flip bool) (Result, bool) {
	n := plane.worldPlaneNormal
	offset := plane.worldPlaneOffset

	normal := n
	if flip {
		normal = n.Mul(-1)
	}

	minDist := math.Inf(1)
	contacts := make([]Contact, 0, 8)
	for _, v := range hull.worldVertices {
		d := n.Dot(v) - offset
		minDist = math.Min(minDist, d)
		if d > s.ContactTolerance {
			continue
		}
		contacts = append(contacts, Contact{
			Position:    v.Sub(n.Mul(d)),
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
		Penetration: -minDist,
		Contacts:    contacts,
	}, true
}
