package geometry

import (
	"errors"
	"math"
	"testing"
)

const tolerance = 1e-9

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

func TestCoverFitWideFrame(t *testing.T) {
	r, err := CoverFit(1920, 1080, Size{Width: 390, Height: 600})
	if err != nil {
		t.Fatalf("CoverFit failed: %v", err)
	}

	if !approx(r.H, 1080) || !approx(r.W, 702) {
		t.Errorf("Expected 702x1080, got %.3fx%.3f", r.W, r.H)
	}
	if !approx(r.X, 609) || r.Y != 0 {
		t.Errorf("Expected origin (609,0), got (%.3f,%.3f)", r.X, r.Y)
	}
}

func TestCoverFitTallFrame(t *testing.T) {
	r, err := CoverFit(1080, 1920, Size{Width: 400, Height: 400})
	if err != nil {
		t.Fatalf("CoverFit failed: %v", err)
	}

	if r.X != 0 || !approx(r.W, 1080) || !approx(r.H, 1080) {
		t.Errorf("Expected 1080x1080 at x=0, got %+v", r)
	}
	if !approx(r.Y, 420) {
		t.Errorf("Expected y=420, got %.3f", r.Y)
	}
}

func TestCoverFitContainmentAndAspect(t *testing.T) {
	tests := []struct {
		fw, fh int
		dw, dh float64
	}{
		{1920, 1080, 390, 600},
		{1080, 1920, 390, 844},
		{640, 480, 640, 480},
		{1, 1, 1000, 1},
		{3000, 17, 2, 900},
		{4032, 3024, 375.5, 667.25},
	}

	for _, tc := range tests {
		r, err := CoverFit(tc.fw, tc.fh, Size{Width: tc.dw, Height: tc.dh})
		if err != nil {
			t.Fatalf("CoverFit(%d,%d,%v,%v) failed: %v", tc.fw, tc.fh, tc.dw, tc.dh, err)
		}
		if !r.Contains(float64(tc.fw), float64(tc.fh)) {
			t.Errorf("rect %+v escapes frame %dx%d", r, tc.fw, tc.fh)
		}
		want := tc.dw / tc.dh
		got := r.W / r.H
		if math.Abs(got-want)/want > tolerance*1e3 {
			t.Errorf("aspect = %f, want %f", got, want)
		}
	}
}

func TestMapGuide(t *testing.T) {
	m, err := MapGuide(1920, 1080, Size{Width: 390, Height: 600}, 280)
	if err != nil {
		t.Fatalf("MapGuide failed: %v", err)
	}

	// scale = 702/390 = 1.8
	if !approx(m.GuideRadius, 140*1.8) {
		t.Errorf("Expected radius 252, got %f", m.GuideRadius)
	}
	if !approx(m.CenterX, 960) || !approx(m.CenterY, 540) {
		t.Errorf("Expected center (960,540), got (%f,%f)", m.CenterX, m.CenterY)
	}
	if m.CropSize() != 504 {
		t.Errorf("Expected crop size 504, got %d", m.CropSize())
	}

	c := m.CaptureRect()
	if !approx(c.X, 708) || !approx(c.Y, 288) || !approx(c.W, 504) {
		t.Errorf("unexpected capture rect %+v", c)
	}
}

func TestMapGuideIsPure(t *testing.T) {
	a, _ := MapGuide(1280, 720, Size{Width: 390, Height: 844}, 280)
	b, _ := MapGuide(1280, 720, Size{Width: 390, Height: 844}, 280)
	if a != b {
		t.Errorf("repeated mapping differs: %+v vs %+v", a, b)
	}
}

func TestPreconditions(t *testing.T) {
	if _, err := CoverFit(0, 1080, Size{Width: 390, Height: 600}); !errors.Is(err, ErrFrameNotReady) {
		t.Errorf("Expected ErrFrameNotReady, got %v", err)
	}
	if _, err := CoverFit(1920, 1080, Size{Width: 0, Height: 600}); !errors.Is(err, ErrLayoutNotReady) {
		t.Errorf("Expected ErrLayoutNotReady, got %v", err)
	}
	if _, err := CoverFit(1920, 1080, Size{Width: 390, Height: -1}); !errors.Is(err, ErrLayoutNotReady) {
		t.Errorf("Expected ErrLayoutNotReady, got %v", err)
	}
	if _, err := MapGuide(1920, 1080, Size{Width: 390, Height: 600}, 0); !errors.Is(err, ErrInvalidGuide) {
		t.Errorf("Expected ErrInvalidGuide, got %v", err)
	}
}

func TestDownscale(t *testing.T) {
	tests := []struct {
		w, h, max    int
		wantW, wantH int
	}{
		{2000, 1000, 1000, 1000, 500},
		{400, 300, 1000, 400, 300},
		{1000, 3000, 1000, 333, 1000},
		{1000, 1000, 1000, 1000, 1000},
		{4032, 3024, 1000, 1000, 750},
	}

	for _, tc := range tests {
		w, h := Downscale(tc.w, tc.h, tc.max)
		if w != tc.wantW || h != tc.wantH {
			t.Errorf("Downscale(%d,%d,%d) = %dx%d, want %dx%d", tc.w, tc.h, tc.max, w, h, tc.wantW, tc.wantH)
		}
		if w > tc.w || h > tc.h {
			t.Errorf("Downscale(%d,%d) grew the image to %dx%d", tc.w, tc.h, w, h)
		}
	}
}
