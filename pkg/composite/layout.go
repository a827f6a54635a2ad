package composite

import (
	"fmt"
	"math"
	"strings"

	"github.com/menta2k/plate-roaster/pkg/geometry"
)

// Viewport is the logical size of the share image and its pixel density
type Viewport struct {
	Width   float64 `json:"width" yaml:"width"`
	Height  float64 `json:"height" yaml:"height"`
	Density float64 `json:"density" yaml:"density"`
}

// DeviceSize returns the pixel size of the output canvas
func (v Viewport) DeviceSize() (int, int) {
	return int(math.Round(v.Width * v.Density)), int(math.Round(v.Height * v.Density))
}

func (v Viewport) validate() error {
	if v.Width <= 0 || v.Height <= 0 {
		return fmt.Errorf("%w: viewport %gx%g", geometry.ErrLayoutNotReady, v.Width, v.Height)
	}
	if v.Density < 1 {
		return fmt.Errorf("%w: density %g is below 1", geometry.ErrLayoutNotReady, v.Density)
	}
	return nil
}

// Layout constants in logical pixels
const (
	RatingFontSize    = 48
	RatingLineHeight  = 56
	RoastFontSize     = 24
	RoastLineHeight   = 32
	RoastGap          = 60
	WatermarkFontSize = 16
	WatermarkBottom   = 20
	PlateMaxSize      = 420
	PlateWidthRatio   = 0.7
	CTAHeight         = 56
	CTAGap            = 40
	CTAPadding        = 40
	LogoMargin        = 16
	LogoHeight        = 32
	ShadowBlur        = 4
	ShadowOffsetY     = 2
)

// Layout holds the logical positions of every element of the composite
type Layout struct {
	RatingX, RatingY float64
	RoastY           float64
	TextMaxWidth     float64
	PlateX, PlateY   float64
	PlateSize        float64
	WatermarkX       float64
	WatermarkBottom  float64
}

// ComputeLayout places the rating at the upper left, the roast below it and
// the plate centered just above the bottom action area.
func ComputeLayout(w, h float64) Layout {
	l := Layout{
		RatingX: w * 0.1,
		RatingY: h * 0.15,
	}
	l.RoastY = l.RatingY + RoastGap
	l.TextMaxWidth = w - l.RatingX*2
	l.PlateSize = math.Min(PlateMaxSize, w*PlateWidthRatio)
	l.PlateX = w/2 - l.PlateSize/2
	l.PlateY = h - CTAHeight - CTAGap - CTAPadding - l.PlateSize
	l.WatermarkX = w / 2
	l.WatermarkBottom = h - WatermarkBottom
	return l
}

// WrapLines greedily packs the whitespace-separated words of text into lines
// whose measured width does not exceed maxWidth. A single word wider than
// maxWidth gets a line of its own. Word order is preserved.
func WrapLines(text string, maxWidth float64, measure func(string) float64) []string {
	var lines []string
	line := ""
	for _, word := range strings.Fields(text) {
		candidate := word
		if line != "" {
			candidate = line + " " + word
		}
		if line != "" && measure(candidate) > maxWidth {
			lines = append(lines, line)
			line = word
			continue
		}
		line = candidate
	}
	if line != "" {
		lines = append(lines, line)
	}
	return lines
}

// FormatRating renders a rating with exactly one decimal place over scale
func FormatRating(rating float64, scale int) string {
	return fmt.Sprintf("%.1f/%d", rating, scale)
}

type scrimStop struct {
	offset float64
	alpha  float64
}

// scrim darkens toward the bottom so text stays legible on any background
var scrim = []scrimStop{{0, 0.2}, {0.5, 0.4}, {1, 0.7}}

// scrimAlpha interpolates the scrim opacity at t in [0,1]
func scrimAlpha(t float64) float64 {
	if t <= scrim[0].offset {
		return scrim[0].alpha
	}
	for i := 1; i < len(scrim); i++ {
		a, b := scrim[i-1], scrim[i]
		if t <= b.offset {
			f := (t - a.offset) / (b.offset - a.offset)
			return a.alpha + (b.alpha-a.alpha)*f
		}
	}
	return scrim[len(scrim)-1].alpha
}
