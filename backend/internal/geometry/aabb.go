package geometry

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// AABB - выровненный по осям ограничивающий объем
type AABB struct {
	Min mgl64.Vec3
	Max mgl64.Vec3
}

// EmptyAABB возвращает пустой объем, который расширяется через Extend
func EmptyAABB() AABB {
	inf := math.Inf(1)
	return AABB{
		Min: mgl64.Vec3{inf, inf, inf},
		Max: mgl64.Vec3{-inf, -inf, -inf},
	}
}

// NewAABB строит объем по центру и полуразмерам
func NewAABB(center, halfExtents mgl64.Vec3) AABB {
	return AABB{Min: center.Sub(halfExtents), Max: center.Add(halfExtents)}
}

// AABBFromPoints возвращает минимальный объем, содержащий все точки
func AABBFromPoints(points []mgl64.Vec3) AABB {
	box := EmptyAABB()
	for _, p := range points {
		box = box.Extend(p)
	}
	return box
}

// IsValid сообщает, что объем не пуст
func (a AABB) IsValid() bool {
	return a.Min[0] <= a.Max[0] && a.Min[1] <= a.Max[1] && a.Min[2] <= a.Max[2]
}

// Extend возвращает объем, расширенный до точки p
func (a AABB) Extend(p mgl64.Vec3) AABB {
	for i := 0; i < 3; i++ {
		a.Min[i] = math.Min(a.Min[i], p[i])
		a.Max[i] = math.Max(a.Max[i], p[i])
	}
	return a
}

// Union возвращает объем, содержащий оба объема
func (a AABB) Union(b AABB) AABB {
	if !b.IsValid() {
		return a
	}
	if !a.IsValid() {
		return b
	}
	return a.Extend(b.Min).Extend(b.Max)
}

// Overlaps проверяет пересечение по всем трем осям (касание считается пересечением)
func (a AABB) Overlaps(b AABB) bool {
	if !a.IsValid() || !b.IsValid() {
		return false
	}
	return a.Min[0] <= b.Max[0] && b.Min[0] <= a.Max[0] &&
		a.Min[1] <= b.Max[1] && b.Min[1] <= a.Max[1] &&
		a.Min[2] <= b.Max[2] && b.Min[2] <= a.Max[2]
}

// Extents возвращает полуразмеры объема
func (a AABB) Extents() mgl64.Vec3 {
	return a.Max.Sub(a.Min).Mul(0.5)
}

// Volume возвращает объем (0 для пустого)
func (a AABB) Volume() float64 {
	if !a.IsValid() {
		return 0
	}
	d := a.Max.Sub(a.Min)
	return d[0] * d[1] * d[2]
}
