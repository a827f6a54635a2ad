package composite

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"strings"

	"github.com/menta2k/plate-roaster/pkg/handle"
	"github.com/menta2k/plate-roaster/pkg/processing"
	"github.com/menta2k/plate-roaster/pkg/types"
)

// BuiltinScheme prefixes references to the procedurally drawn backgrounds
const BuiltinScheme = "builtin:"

// ErrAssetLoad is returned when a required asset cannot be fetched or decoded.
var ErrAssetLoad = errors.New("composite: asset failed to load")

// Loader resolves an asset reference to a decoded image
type Loader interface {
	Load(ctx context.Context, ref string) (image.Image, error)
}

// AssetLoader resolves builtin backgrounds, display handles, local files and
// http(s) URLs.
type AssetLoader struct {
	handles   *handle.Store
	processor *processing.Processor
}

// NewAssetLoader creates a loader. handles may be nil when no display handles
// are in use.
func NewAssetLoader(handles *handle.Store, processor *processing.Processor) *AssetLoader {
	return &AssetLoader{handles: handles, processor: processor}
}

// Load implements Loader
func (l *AssetLoader) Load(ctx context.Context, ref string) (image.Image, error) {
	if ref == "" {
		return nil, fmt.Errorf("%w: empty reference", ErrAssetLoad)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch {
	case strings.HasPrefix(ref, BuiltinScheme):
		img, ok := Builtin(strings.TrimPrefix(ref, BuiltinScheme))
		if !ok {
			return nil, fmt.Errorf("%w: unknown builtin %q", ErrAssetLoad, ref)
		}
		return img, nil

	case handle.IsHandle(ref):
		if l.handles == nil {
			return nil, fmt.Errorf("%w: %s: no handle store", ErrAssetLoad, ref)
		}
		data, _, err := l.handles.Resolve(ref)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrAssetLoad, err)
		}
		img, err := l.processor.Decode(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrAssetLoad, ref, err)
		}
		return img, nil
	}

	img, err := l.processor.LoadImageSmart(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAssetLoad, err)
	}
	return img, nil
}

// builtin backgrounds are vertical two-tone gradients, one per severity
var builtinPalette = map[string][2]color.NRGBA{
	"low":    {{0x1f, 0x6f, 0x4a, 0xff}, {0x0b, 0x2a, 0x1c, 0xff}},
	"medium": {{0xd9, 0x77, 0x06, 0xff}, {0x45, 0x1a, 0x03, 0xff}},
	"high":   {{0xb9, 0x1c, 0x1c, 0xff}, {0x1c, 0x05, 0x05, 0xff}},
}

const builtinW, builtinH = 390, 844

// Builtin returns the named builtin background
func Builtin(name string) (image.Image, bool) {
	pal, ok := builtinPalette[strings.ToLower(name)]
	if !ok {
		return nil, false
	}

	img := image.NewNRGBA(image.Rect(0, 0, builtinW, builtinH))
	top, bottom := pal[0], pal[1]
	for y := 0; y < builtinH; y++ {
		t := float64(y) / float64(builtinH-1)
		c := color.NRGBA{
			R: lerp(top.R, bottom.R, t),
			G: lerp(top.G, bottom.G, t),
			B: lerp(top.B, bottom.B, t),
			A: 0xff,
		}
		row := img.Pix[y*img.Stride : y*img.Stride+builtinW*4]
		for x := 0; x < len(row); x += 4 {
			row[x], row[x+1], row[x+2], row[x+3] = c.R, c.G, c.B, c.A
		}
	}
	return img, true
}

func lerp(a, b uint8, t float64) uint8 {
	return uint8(float64(a) + (float64(b)-float64(a))*t + 0.5)
}

// DefaultBackgrounds maps each severity to its builtin background
func DefaultBackgrounds() map[types.Severity]string {
	return map[types.Severity]string{
		types.SeverityLow:    BuiltinScheme + "low",
		types.SeverityMedium: BuiltinScheme + "medium",
		types.SeverityHigh:   BuiltinScheme + "high",
	}
}
