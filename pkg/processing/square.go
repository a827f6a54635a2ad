package processing

import (
	"context"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"github.com/muesli/smartcrop"
)

// resizer implements the smartcrop.Resizer interface on top of imaging
type resizer struct {
	resampler imaging.ResampleFilter
}

func (r *resizer) Resize(img image.Image, width, height uint) image.Image {
	return imaging.Resize(img, int(width), int(height), r.resampler)
}

// SquareCrop picks the most interesting square of img, so uploads that are not
// already square can be shown through the circular plate clip without
// distortion. Square images are returned untouched.
func (p *Processor) SquareCrop(ctx context.Context, img image.Image) (image.Image, error) {
	b := img.Bounds()
	side := b.Dx()
	if b.Dy() < side {
		side = b.Dy()
	}
	if b.Dx() == b.Dy() || side == 0 {
		return img, nil
	}

	analyzer := smartcrop.NewAnalyzer(&resizer{resampler: imaging.Linear})

	type cropResult struct {
		crop image.Rectangle
		err  error
	}
	resultChan := make(chan cropResult, 1)

	go func() {
		crop, err := analyzer.FindBestCrop(img, side, side)
		resultChan <- cropResult{crop: crop, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case result := <-resultChan:
		if result.err != nil {
			return nil, fmt.Errorf("finding square crop: %w", result.err)
		}
		return imaging.Crop(img, result.crop), nil
	}
}
