// Package raster is a small deterministic CPU rasterizer. The
// view-space importance analyzer uses it to render a shaded pass and a
// triangle-id pass from canonical viewpoints; it has no external
// dependencies beyond the math library and produces identical output
// for identical input.
package raster

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Framebuffer holds the two per-pixel channels the importance analyzer
// consumes: shaded luminance and triangle id (0 means no triangle;
// otherwise id+1).
type Framebuffer struct {
	W, H  int
	Luma  []float32
	Depth []float32
	ID    []int32
}

func NewFramebuffer(w, h int) *Framebuffer {
	return &Framebuffer{
		W:     w,
		H:     h,
		Luma:  make([]float32, w*h),
		Depth: make([]float32, w*h),
		ID:    make([]int32, w*h),
	}
}

// Clear resets all channels; depth clears to +inf.
func (f *Framebuffer) Clear() {
	inf := float32(math.Inf(1))
	for i := range f.Depth {
		f.Luma[i] = 0
		f.Depth[i] = inf
		f.ID[i] = 0
	}
}

// Triangle is one rasterization job in world space (the caller
// pre-normalizes the scene into the unit cube).
type Triangle struct {
	P  [3]mgl32.Vec3
	UV [3][2]float32
	ID int32

	// Sample returns luminance at a UV coordinate; nil falls back to
	// N.L shading with a fixed light.
	Sample func(u, v float32) float32
}

var lightDir = mgl32.Vec3{0.5, 0.7, 0.6}.Normalize()

// Draw rasterizes one triangle with the given view-projection, writing
// luma, depth and id.
func (f *Framebuffer) Draw(viewProj mgl32.Mat4, t *Triangle) {
	var clip [3]mgl32.Vec4
	var screen [3]mgl32.Vec3
	for k := 0; k < 3; k++ {
		clip[k] = viewProj.Mul4x1(t.P[k].Vec4(1))
		w := clip[k].W()
		if w == 0 {
			return
		}
		ndc := clip[k].Mul(1 / w)
		screen[k] = mgl32.Vec3{
			(ndc.X() + 1) / 2 * float32(f.W),
			(1 - ndc.Y()) / 2 * float32(f.H),
			ndc.Z(),
		}
	}

	area := edgeFn(screen[0], screen[1], screen[2])
	if area == 0 {
		return
	}

	// Face normal for unshaded triangles.
	faceN := t.P[1].Sub(t.P[0]).Cross(t.P[2].Sub(t.P[0]))
	if l := faceN.Len(); l > 0 {
		faceN = faceN.Mul(1 / l)
	}
	flatLuma := float32(0.25 + 0.75*math.Abs(float64(faceN.Dot(lightDir))))

	minX := int(floor3(screen[0].X(), screen[1].X(), screen[2].X()))
	maxX := int(ceil3(screen[0].X(), screen[1].X(), screen[2].X()))
	minY := int(floor3(screen[0].Y(), screen[1].Y(), screen[2].Y()))
	maxY := int(ceil3(screen[0].Y(), screen[1].Y(), screen[2].Y()))
	if minX < 0 {
		minX = 0
	}
	if minY < 0 {
		minY = 0
	}
	if maxX > f.W-1 {
		maxX = f.W - 1
	}
	if maxY > f.H-1 {
		maxY = f.H - 1
	}

	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			p := mgl32.Vec3{float32(x) + 0.5, float32(y) + 0.5, 0}
			// Double sided: accept either winding.
			w0 := edgeFn(screen[1], screen[2], p) / area
			w1 := edgeFn(screen[2], screen[0], p) / area
			w2 := edgeFn(screen[0], screen[1], p) / area
			if w0 < 0 || w1 < 0 || w2 < 0 {
				continue
			}
			z := w0*screen[0].Z() + w1*screen[1].Z() + w2*screen[2].Z()
			idx := y*f.W + x
			if z >= f.Depth[idx] {
				continue
			}
			f.Depth[idx] = z
			f.ID[idx] = t.ID + 1
			if t.Sample != nil {
				u := w0*t.UV[0][0] + w1*t.UV[1][0] + w2*t.UV[2][0]
				v := w0*t.UV[0][1] + w1*t.UV[1][1] + w2*t.UV[2][1]
				f.Luma[idx] = t.Sample(u, v)
			} else {
				f.Luma[idx] = flatLuma
			}
		}
	}
}

// edgeFn is twice the signed area of (a, b, p) in screen space.
func edgeFn(a, b, p mgl32.Vec3) float32 {
	return (b.X()-a.X())*(p.Y()-a.Y()) - (b.Y()-a.Y())*(p.X()-a.X())
}

// Sobel returns the gradient magnitude of a float grid at (x, y),
// clamped to [0,1]. Border pixels clamp their taps.
func Sobel(grid []float32, w, h, x, y int) float32 {
	at := func(px, py int) float32 {
		if px < 0 {
			px = 0
		}
		if py < 0 {
			py = 0
		}
		if px > w-1 {
			px = w - 1
		}
		if py > h-1 {
			py = h - 1
		}
		return grid[py*w+px]
	}
	gx := -at(x-1, y-1) + at(x+1, y-1) +
		-2*at(x-1, y) + 2*at(x+1, y) +
		-at(x-1, y+1) + at(x+1, y+1)
	gy := -at(x-1, y-1) - 2*at(x, y-1) - at(x+1, y-1) +
		at(x-1, y+1) + 2*at(x, y+1) + at(x+1, y+1)
	mag := float32(math.Sqrt(float64(gx*gx + gy*gy)))
	if mag > 1 {
		mag = 1
	}
	return mag
}

func floor3(a, b, c float32) float64 {
	return math.Floor(float64(min3(a, b, c)))
}

func ceil3(a, b, c float32) float64 {
	return math.Ceil(float64(max3(a, b, c)))
}

func min3(a, b, c float32) float32 {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}

func max3(a, b, c float32) float32 {
	m := a
	if b > m {
		m = b
	}
	if c > m {
		m = c
	}
	return m
}
