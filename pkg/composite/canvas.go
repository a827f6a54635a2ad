package composite

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"

	"github.com/menta2k/plate-roaster/pkg/mask"
)

// canvas is a device-pixel RGBA surface addressed in logical coordinates
type canvas struct {
	img   *image.RGBA
	scale float64
}

func newCanvas(vp Viewport) *canvas {
	w, h := vp.DeviceSize()
	return &canvas{img: image.NewRGBA(image.Rect(0, 0, w, h)), scale: vp.Density}
}

func (c *canvas) px(v float64) int {
	return int(math.Round(v * c.scale))
}

func (c *canvas) fixedPx(v float64) fixed.Int26_6 {
	return fixed.Int26_6(math.Round(v * c.scale * 64))
}

// logical converts a device length to logical pixels
func (c *canvas) logical(v fixed.Int26_6) float64 {
	return float64(v) / 64 / c.scale
}

// cover fills the whole canvas with img, cropping overflow around the center
func (c *canvas) cover(img image.Image) {
	b := c.img.Bounds()
	filled := imaging.Fill(img, b.Dx(), b.Dy(), imaging.Center, imaging.Lanczos)
	draw.Draw(c.img, b, filled, image.Point{}, draw.Src)
}

// scrim composites the vertical black gradient over the canvas
func (c *canvas) scrim() {
	b := c.img.Bounds()
	h := b.Dy()
	for y := 0; y < h; y++ {
		t := 0.0
		if h > 1 {
			t = float64(y) / float64(h-1)
		}
		a := uint8(math.Round(scrimAlpha(t) * 255))
		row := image.Rect(b.Min.X, y, b.Max.X, y+1)
		draw.Draw(c.img, row, image.NewUniform(color.NRGBA{A: a}), image.Point{}, draw.Over)
	}
}

// drawImage scales img into the logical rect at (x, y) with size (w, h)
func (c *canvas) drawImage(img image.Image, x, y, w, h float64) {
	r := image.Rect(c.px(x), c.px(y), c.px(x+w), c.px(y+h))
	if r.Empty() {
		return
	}
	scaled := imaging.Resize(img, r.Dx(), r.Dy(), imaging.Lanczos)
	draw.Draw(c.img, r, scaled, image.Point{}, draw.Over)
}

// drawCircle draws img scaled to a square of logical size through a circular clip
func (c *canvas) drawCircle(img image.Image, x, y, size float64) {
	side := c.px(size)
	if side <= 0 {
		return
	}
	scaled := imaging.Resize(img, side, side, imaging.Lanczos)
	r := image.Rect(c.px(x), c.px(y), c.px(x)+side, c.px(y)+side)
	mask.Apply(c.img, r, scaled, mask.Inscribed(side))
}

// measure returns the logical width of s in face
func (c *canvas) measure(face font.Face, s string) float64 {
	return c.logical(font.MeasureString(face, s))
}

// textLine is one line of text placed by its top edge in logical coordinates
type textLine struct {
	text string
	x, y float64
}

// drawText draws lines top-aligned at their positions
func (c *canvas) drawText(dst draw.Image, face font.Face, col color.Color, lines []textLine, dx, dy float64) {
	ascent := face.Metrics().Ascent
	d := &font.Drawer{Dst: dst, Src: image.NewUniform(col), Face: face}
	for _, l := range lines {
		d.Dot = fixed.Point26_6{X: c.fixedPx(l.x + dx), Y: c.fixedPx(l.y+dy) + ascent}
		d.DrawString(l.text)
	}
}

// drawShadowedText draws lines with a blurred drop shadow below them
func (c *canvas) drawShadowedText(face font.Face, col, shadow color.Color, lines []textLine) {
	layer := image.NewNRGBA(c.img.Bounds())
	c.drawText(layer, face, shadow, lines, 0, ShadowOffsetY)
	blurred := imaging.Blur(layer, ShadowBlur/2*c.scale)
	draw.Draw(c.img, c.img.Bounds(), blurred, image.Point{}, draw.Over)
	c.drawText(c.img, face, col, lines, 0, 0)
}

// drawCenteredBottom draws s centered on x with its descent resting on bottom
func (c *canvas) drawCenteredBottom(face font.Face, col color.Color, s string, x, bottom float64) {
	width := font.MeasureString(face, s)
	d := &font.Drawer{Dst: c.img, Src: image.NewUniform(col), Face: face}
	d.Dot = fixed.Point26_6{
		X: c.fixedPx(x) - width/2,
		Y: c.fixedPx(bottom) - face.Metrics().Descent,
	}
	d.DrawString(s)
}
