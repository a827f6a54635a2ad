// Package mask builds the anti-aliased circular clip used for plate photos.
package mask

import (
	"image"
	"image/draw"

	"golang.org/x/image/vector"
)

// kappa places cubic Bézier control points so four segments approximate a circle.
const kappa = 0.5522847498

// Circle returns an alpha mask of the given bounds with a filled circle of
// radius r centered at (cx, cy), both relative to bounds.Min.
func Circle(bounds image.Rectangle, cx, cy, r float64) *image.Alpha {
	m := image.NewAlpha(bounds)
	if r <= 0 || bounds.Empty() {
		return m
	}

	z := vector.NewRasterizer(bounds.Dx(), bounds.Dy())
	x, y, rr, k := float32(cx), float32(cy), float32(r), float32(r*kappa)

	z.MoveTo(x+rr, y)
	z.CubeTo(x+rr, y+k, x+k, y+rr, x, y+rr)
	z.CubeTo(x-k, y+rr, x-rr, y+k, x-rr, y)
	z.CubeTo(x-rr, y-k, x-k, y-rr, x, y-rr)
	z.CubeTo(x+k, y-rr, x+rr, y-k, x+rr, y)
	z.ClosePath()

	z.DrawOp = draw.Src
	z.Draw(m, m.Bounds(), image.Opaque, image.Point{})
	return m
}

// Inscribed returns a size x size mask holding the circle that touches all four edges.
func Inscribed(size int) *image.Alpha {
	half := float64(size) / 2
	return Circle(image.Rect(0, 0, size, size), half, half, half)
}

// Apply draws src into dst's rect r through m, leaving pixels outside the
// circle untouched. m must have the same size as r.
func Apply(dst draw.Image, r image.Rectangle, src image.Image, m *image.Alpha) {
	draw.DrawMask(dst, r, src, src.Bounds().Min, m, m.Bounds().Min, draw.Over)
}
