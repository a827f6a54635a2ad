package capture

import (
	"context"
	"image"
	"image/color"
	"image/draw"
	"math"

	xdraw "golang.org/x/image/draw"

	"github.com/menta2k/plate-roaster/pkg/geometry"
	"github.com/menta2k/plate-roaster/pkg/mask"
	"github.com/menta2k/plate-roaster/pkg/processing"
)

// CircularEncoder turns a frame region into a circular plate photo
type CircularEncoder struct {
	Quality int
}

// Render samples the guide square from frame and clips it to the inscribed
// circle. JPEG has no alpha, so everything outside the circle is black.
func (e *CircularEncoder) Render(frame image.Image, m geometry.Mapping) (image.Image, error) {
	size := m.CropSize()
	if size <= 0 {
		return nil, ErrEncodeFailed
	}

	fb := frame.Bounds()
	src := m.CaptureRect()
	sr := image.Rect(
		int(math.Round(src.X)), int(math.Round(src.Y)),
		int(math.Round(src.X+src.W)), int(math.Round(src.Y+src.H)),
	).Add(fb.Min)
	if sr.Dx() <= 0 {
		return nil, ErrEncodeFailed
	}

	sampled := image.NewRGBA(image.Rect(0, 0, size, size))
	visible := sr.Intersect(fb)
	if !visible.Empty() {
		// Map the visible part of the source square onto the matching part of
		// the output so guides reaching past the frame edge stay undistorted.
		scale := float64(size) / float64(sr.Dx())
		dr := image.Rect(
			int(math.Round(float64(visible.Min.X-sr.Min.X)*scale)),
			int(math.Round(float64(visible.Min.Y-sr.Min.Y)*scale)),
			int(math.Round(float64(visible.Max.X-sr.Min.X)*scale)),
			int(math.Round(float64(visible.Max.Y-sr.Min.Y)*scale)),
		)
		xdraw.CatmullRom.Scale(sampled, dr, frame, visible, xdraw.Src, nil)
	}

	out := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(out, out.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)
	mask.Apply(out, out.Bounds(), sampled, mask.Inscribed(size))
	return out, nil
}

// Encode renders and JPEG-encodes the circular capture
func (e *CircularEncoder) Encode(ctx context.Context, frame image.Image, m geometry.Mapping) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	img, err := e.Render(frame, m)
	if err != nil {
		return nil, err
	}
	data, err := processing.EncodeJPEG(img, e.Quality)
	if err != nil {
		return nil, ErrEncodeFailed
	}
	return data, nil
}
