// Package composite renders the shareable roast card: severity background,
// darkening scrim, rating and roast text, the circular plate photo and an
// optional watermark, encoded as a single JPEG.
package composite

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/sync/errgroup"

	"github.com/menta2k/plate-roaster/internal/log"
	"github.com/menta2k/plate-roaster/pkg/processing"
	"github.com/menta2k/plate-roaster/pkg/types"
)

// ErrEncode is returned when the finished canvas cannot be encoded.
var ErrEncode = errors.New("composite: failed to encode share image")

// ShareFileName is the file name the share image is handed off under
const ShareFileName = "roast-my-plate.jpg"

// DefaultWatermark is the line drawn at the bottom of shared images
const DefaultWatermark = "ROASTMYPLATE.APP"

var (
	ratingColor = color.NRGBA{R: 0xdc, G: 0x26, B: 0x26, A: 0xff}
	textColor   = color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	shadowColor = color.NRGBA{A: 0x80}
)

// Config controls the renderer output
type Config struct {
	Viewport    Viewport
	Quality     int
	RatingScale int
	Backgrounds map[types.Severity]string
	Logo        string
	Watermark   string
}

// DefaultConfig returns a 390x844 viewport at 2x density and maximum JPEG quality
func DefaultConfig() Config {
	return Config{
		Viewport:    Viewport{Width: 390, Height: 844, Density: 2},
		Quality:     100,
		RatingScale: 10,
		Backgrounds: DefaultBackgrounds(),
		Watermark:   DefaultWatermark,
	}
}

// Spec describes one composite. It is used for a single render.
type Spec struct {
	Severity types.Severity
	Rating   float64
	Roast    string
	// Plate references the plate photo: a display handle, file path or URL.
	Plate            string
	IncludeWatermark bool
}

// Renderer draws share composites
type Renderer struct {
	config  Config
	loader  Loader
	proc    *processing.Processor
	regular *sfnt.Font
	bold    *sfnt.Font
}

// NewRenderer creates a renderer. The processor is used to square-crop plate
// photos that are not already square.
func NewRenderer(config Config, loader Loader, proc *processing.Processor) (*Renderer, error) {
	if err := config.Viewport.validate(); err != nil {
		return nil, err
	}
	if config.RatingScale <= 0 {
		config.RatingScale = 10
	}
	if config.Quality <= 0 {
		config.Quality = 100
	}

	regular, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parsing regular font: %w", err)
	}
	bold, err := opentype.Parse(gobold.TTF)
	if err != nil {
		return nil, fmt.Errorf("parsing bold font: %w", err)
	}

	return &Renderer{
		config:  config,
		loader:  loader,
		proc:    proc,
		regular: regular,
		bold:    bold,
	}, nil
}

// Config returns the renderer configuration
func (r *Renderer) Config() Config {
	return r.config
}

// BackgroundRef returns the background reference for a severity, falling
// back to the MEDIUM variant for missing or unknown values.
func (r *Renderer) BackgroundRef(s types.Severity) string {
	sev, _ := types.ParseSeverity(string(s))
	if ref, ok := r.config.Backgrounds[sev]; ok && ref != "" {
		return ref
	}
	if ref, ok := r.config.Backgrounds[types.SeverityMedium]; ok && ref != "" {
		return ref
	}
	return BuiltinScheme + "medium"
}

// Render draws spec and encodes it as JPEG. Either the full encoded image or
// an error is returned, never partial data.
func (r *Renderer) Render(ctx context.Context, spec Spec) ([]byte, error) {
	img, err := r.RenderImage(ctx, spec)
	if err != nil {
		return nil, err
	}

	data, err := processing.EncodeJPEG(img, r.config.Quality)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}
	return data, nil
}

type assets struct {
	background image.Image
	plate      image.Image
	logo       image.Image
}

// load fetches every asset concurrently. Background and plate are required;
// the logo is optional and only logged when it fails.
func (r *Renderer) load(ctx context.Context, spec Spec) (assets, error) {
	var a assets
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		img, err := r.loader.Load(gctx, r.BackgroundRef(spec.Severity))
		if err != nil {
			return fmt.Errorf("%w: background: %v", ErrAssetLoad, err)
		}
		a.background = img
		return nil
	})

	g.Go(func() error {
		img, err := r.loader.Load(gctx, spec.Plate)
		if err != nil {
			return fmt.Errorf("%w: plate: %v", ErrAssetLoad, err)
		}
		if r.proc != nil {
			img, err = r.proc.SquareCrop(gctx, img)
			if err != nil {
				return fmt.Errorf("%w: plate: %v", ErrAssetLoad, err)
			}
		}
		a.plate = img
		return nil
	})

	if r.config.Logo != "" {
		g.Go(func() error {
			img, err := r.loader.Load(gctx, r.config.Logo)
			if err != nil {
				log.Printf("[composite] Warning: logo %s unavailable, skipping: %v", r.config.Logo, err)
				return nil
			}
			a.logo = img
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return assets{}, err
	}
	return a, nil
}

// RenderImage draws spec onto a device-pixel canvas
func (r *Renderer) RenderImage(ctx context.Context, spec Spec) (*image.RGBA, error) {
	a, err := r.load(ctx, spec)
	if err != nil {
		return nil, err
	}

	vp := r.config.Viewport
	c := newCanvas(vp)
	l := ComputeLayout(vp.Width, vp.Height)

	ratingFace, err := r.face(r.bold, RatingFontSize)
	if err != nil {
		return nil, err
	}
	defer ratingFace.Close()
	roastFace, err := r.face(r.regular, RoastFontSize)
	if err != nil {
		return nil, err
	}
	defer roastFace.Close()

	c.cover(a.background)
	c.scrim()

	if a.logo != nil {
		lb := a.logo.Bounds()
		if lb.Dy() > 0 {
			w := float64(lb.Dx()) * LogoHeight / float64(lb.Dy())
			c.drawImage(a.logo, LogoMargin, LogoMargin, w, LogoHeight)
		}
	}

	measureRating := func(s string) float64 { return c.measure(ratingFace, s) }
	ratingLines := WrapLines(FormatRating(spec.Rating, r.config.RatingScale), l.TextMaxWidth, measureRating)
	c.drawText(c.img, ratingFace, ratingColor, placeLines(ratingLines, l.RatingX, l.RatingY, RatingLineHeight), 0, 0)

	measureRoast := func(s string) float64 { return c.measure(roastFace, s) }
	roastLines := WrapLines(spec.Roast, l.TextMaxWidth, measureRoast)
	c.drawShadowedText(roastFace, textColor, shadowColor, placeLines(roastLines, l.RatingX, l.RoastY, RoastLineHeight))

	c.drawCircle(a.plate, l.PlateX, l.PlateY, l.PlateSize)

	if spec.IncludeWatermark && r.config.Watermark != "" {
		wmFace, err := r.face(r.regular, WatermarkFontSize)
		if err != nil {
			return nil, err
		}
		defer wmFace.Close()
		c.drawCenteredBottom(wmFace, textColor, r.config.Watermark, l.WatermarkX, l.WatermarkBottom)
	}

	return c.img, nil
}

// face creates a font face of the given logical size at the canvas density
func (r *Renderer) face(f *sfnt.Font, size float64) (font.Face, error) {
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size * r.config.Viewport.Density,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("creating %gpx font face: %w", size, err)
	}
	return face, nil
}

func placeLines(lines []string, x, y, lineHeight float64) []textLine {
	out := make([]textLine, len(lines))
	for i, s := range lines {
		out[i] = textLine{text: s, x: x, y: y + float64(i)*lineHeight}
	}
	return out
}
