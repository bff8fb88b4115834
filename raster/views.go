package raster

import (
	"github.com/go-gl/mathgl/mgl32"
)

// ViewSize is the framebuffer edge length used for importance views.
const ViewSize = 512

// ViewDirections returns the canonical viewpoints: the 6 axial
// directions plus the 8 cube-corner diagonals. Accumulation over views
// is commutative, so the analyzer's result does not depend on order.
func ViewDirections() []mgl32.Vec3 {
	dirs := []mgl32.Vec3{
		{1, 0, 0}, {-1, 0, 0},
		{0, 1, 0}, {0, -1, 0},
		{0, 0, 1}, {0, 0, -1},
	}
	for _, x := range []float32{1, -1} {
		for _, y := range []float32{1, -1} {
			for _, z := range []float32{1, -1} {
				dirs = append(dirs, mgl32.Vec3{x, y, z}.Normalize())
			}
		}
	}
	return dirs
}

// ViewProjection builds an orthographic view-projection looking at the
// origin from direction dir. The scene is expected to be normalized into
// the unit cube centered at the origin.
func ViewProjection(dir mgl32.Vec3) mgl32.Mat4 {
	eye := dir.Mul(2)
	up := mgl32.Vec3{0, 1, 0}
	if abs32(dir.Y()) > 0.99 {
		up = mgl32.Vec3{0, 0, 1}
	}
	view := mgl32.LookAtV(eye, mgl32.Vec3{}, up)
	proj := mgl32.Ortho(-1, 1, -1, 1, 0.1, 4)
	return proj.Mul4(view)
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
