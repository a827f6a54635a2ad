// Package geometry maps between a video frame's intrinsic pixels, the box it is
// displayed in under cover-fit, and the circular capture guide drawn on top.
package geometry

import (
	"errors"
	"math"
)

var (
	// ErrLayoutNotReady is returned when the display box has no size yet.
	ErrLayoutNotReady = errors.New("geometry: display size must be positive")
	// ErrFrameNotReady is returned while the frame source reports zero dimensions.
	ErrFrameNotReady = errors.New("geometry: frame dimensions not available")
	// ErrInvalidGuide is returned for a non-positive guide diameter.
	ErrInvalidGuide = errors.New("geometry: guide diameter must be positive")
)

// Size is a width/height pair in display pixels
type Size struct {
	Width  float64
	Height float64
}

// Rect is a rectangle in frame-source pixels
type Rect struct {
	X float64
	Y float64
	W float64
	H float64
}

// Contains reports whether r lies within [0,w]x[0,h], with a small tolerance
// for floating point error.
func (r Rect) Contains(w, h float64) bool {
	const eps = 1e-9
	return r.X >= -eps && r.Y >= -eps && r.X+r.W <= w+eps && r.Y+r.H <= h+eps
}

// Mapping is the result of projecting the on-screen guide into frame space.
type Mapping struct {
	// Visible is the part of the frame that covers the display box.
	Visible Rect
	// GuideRadius is the guide radius in frame pixels.
	GuideRadius float64
	CenterX     float64
	CenterY     float64
}

// CaptureRect is the square around the guide circle in frame pixels.
// It may extend past the frame when the guide is larger than the display box.
func (m Mapping) CaptureRect() Rect {
	return Rect{
		X: m.CenterX - m.GuideRadius,
		Y: m.CenterY - m.GuideRadius,
		W: m.GuideRadius * 2,
		H: m.GuideRadius * 2,
	}
}

// CropSize is the edge of the encoded capture: the guide diameter in frame
// pixels rounded to the nearest integer.
func (m Mapping) CropSize() int {
	return int(math.Round(m.GuideRadius * 2))
}

// CoverFit returns the region of a frameW x frameH frame that is visible when
// the frame is scaled uniformly to cover the display box and centered.
func CoverFit(frameW, frameH int, display Size) (Rect, error) {
	if frameW <= 0 || frameH <= 0 {
		return Rect{}, ErrFrameNotReady
	}
	if display.Width <= 0 || display.Height <= 0 {
		return Rect{}, ErrLayoutNotReady
	}

	fw, fh := float64(frameW), float64(frameH)
	frameAspect := fw / fh
	displayAspect := display.Width / display.Height

	if frameAspect > displayAspect {
		// Frame is wider than the box, crop the sides
		w := fh * displayAspect
		return Rect{X: (fw - w) / 2, Y: 0, W: w, H: fh}, nil
	}

	// Frame is taller (or equal), crop top and bottom
	h := fw / displayAspect
	return Rect{X: 0, Y: (fh - h) / 2, W: fw, H: h}, nil
}

// MapGuide projects a guide of the given diameter, centered in the display box,
// into frame-source coordinates.
func MapGuide(frameW, frameH int, display Size, guideDiameter float64) (Mapping, error) {
	if guideDiameter <= 0 {
		return Mapping{}, ErrInvalidGuide
	}

	visible, err := CoverFit(frameW, frameH, display)
	if err != nil {
		return Mapping{}, err
	}

	scale := visible.W / display.Width
	return Mapping{
		Visible:     visible,
		GuideRadius: guideDiameter / 2 * scale,
		CenterX:     visible.X + visible.W/2,
		CenterY:     visible.Y + visible.H/2,
	}, nil
}

// Downscale bounds the longest edge of a w x h image to maxDim while keeping
// the aspect ratio. Images already within bounds are returned unchanged.
func Downscale(w, h, maxDim int) (int, int) {
	if w <= 0 || h <= 0 || maxDim <= 0 {
		return w, h
	}
	scale := math.Min(math.Min(float64(maxDim)/float64(w), float64(maxDim)/float64(h)), 1)
	nw := int(math.Round(float64(w) * scale))
	nh := int(math.Round(float64(h) * scale))
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}
	return nw, nh
}
