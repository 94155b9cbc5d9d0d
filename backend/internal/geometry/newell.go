package geometry

import "github.com/go-gl/mathgl/mgl64"

// NewellPlane вычисляет нормаль плоскости наилучшего приближения для
// замкнутого многоугольника (метод Ньюэлла) и его центроид.
// Для вырожденного многоугольника нормаль нулевая.
func NewellPlane(points []mgl64.Vec3) (normal, centroid mgl64.Vec3) {
	n := len(points)
	if n == 0 {
		return normal, centroid
	}

	for i := 0; i < n; i++ {
		cur := points[i]
		next := points[(i+1)%n]

		normal[0] += (cur[1] - next[1]) * (cur[2] + next[2])
		normal[1] += (cur[2] - next[2]) * (cur[0] + next[0])
		normal[2] += (cur[0] - next[0]) * (cur[1] + next[1])

		centroid = centroid.Add(cur)
	}

	centroid = centroid.Mul(1 / float64(n))
	if l := normal.Len(); l > 0 {
		normal = normal.Mul(1 / l)
	}
	return normal, centroid
}
