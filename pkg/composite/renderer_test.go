package composite

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/plate-roaster/pkg/handle"
	"github.com/menta2k/plate-roaster/pkg/processing"
	"github.com/menta2k/plate-roaster/pkg/types"
)

func solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

// mapLoader serves images by reference and fails for anything unknown
type mapLoader struct {
	images map[string]image.Image
	calls  atomic.Int32
}

func (l *mapLoader) Load(ctx context.Context, ref string) (image.Image, error) {
	l.calls.Add(1)
	if img, ok := l.images[ref]; ok {
		return img, nil
	}
	return nil, errors.New("not found: " + ref)
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Viewport = Viewport{Width: 200, Height: 400, Density: 2}
	cfg.Backgrounds = map[types.Severity]string{
		types.SeverityLow:    "bg-low",
		types.SeverityMedium: "bg-medium",
		types.SeverityHigh:   "bg-high",
	}
	return cfg
}

func testLoader() *mapLoader {
	blue := solid(50, 100, color.RGBA{B: 0xff, A: 0xff})
	return &mapLoader{images: map[string]image.Image{
		"bg-low":    blue,
		"bg-medium": blue,
		"bg-high":   blue,
		"plate":     solid(64, 64, color.RGBA{G: 0xff, A: 0xff}),
		"logo":      solid(20, 10, color.RGBA{R: 0xff, A: 0xff}),
	}}
}

func testSpec() Spec {
	return Spec{Severity: types.SeverityHigh, Rating: 1.8, Roast: "dry", Plate: "plate", IncludeWatermark: true}
}

func TestRenderOutputSize(t *testing.T) {
	r, err := NewRenderer(testConfig(), testLoader(), nil)
	require.NoError(t, err)

	data, err := r.Render(context.Background(), testSpec())
	require.NoError(t, err)

	img, err := jpeg.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 400, img.Bounds().Dx())
	assert.Equal(t, 800, img.Bounds().Dy())
}

func TestRenderIsDeterministic(t *testing.T) {
	r, err := NewRenderer(testConfig(), testLoader(), nil)
	require.NoError(t, err)

	first, err := r.RenderImage(context.Background(), testSpec())
	require.NoError(t, err)
	second, err := r.RenderImage(context.Background(), testSpec())
	require.NoError(t, err)

	assert.True(t, bytes.Equal(first.Pix, second.Pix))
}

func TestRenderDrawsPlateThroughCircle(t *testing.T) {
	r, err := NewRenderer(testConfig(), testLoader(), nil)
	require.NoError(t, err)

	img, err := r.RenderImage(context.Background(), testSpec())
	require.NoError(t, err)

	l := ComputeLayout(200, 400)
	center := img.RGBAAt(int((l.PlateX+l.PlateSize/2)*2), int((l.PlateY+l.PlateSize/2)*2))
	assert.Greater(t, center.G, uint8(200), "plate center shows the photo")

	corner := img.RGBAAt(int((l.PlateX+l.PlateSize)*2)-3, int((l.PlateY+l.PlateSize)*2)-3)
	assert.Less(t, corner.G, uint8(40), "plate square corner lies outside the circle")
	assert.Greater(t, corner.B, uint8(40), "background shows through outside the circle")
}

func TestRenderScrimDarkensTowardBottom(t *testing.T) {
	r, err := NewRenderer(testConfig(), testLoader(), nil)
	require.NoError(t, err)
	spec := testSpec()
	spec.IncludeWatermark = false

	img, err := r.RenderImage(context.Background(), spec)
	require.NoError(t, err)

	top := img.RGBAAt(2, 0)
	bottom := img.RGBAAt(2, 799)
	assert.Greater(t, top.B, bottom.B)
	assert.InDelta(t, 255*0.8, float64(top.B), 2)
	assert.InDelta(t, 255*0.3, float64(bottom.B), 2)
}

func TestRenderFailsWhenBackgroundMissing(t *testing.T) {
	loader := testLoader()
	delete(loader.images, "bg-high")
	r, err := NewRenderer(testConfig(), loader, nil)
	require.NoError(t, err)

	data, err := r.Render(context.Background(), testSpec())
	assert.ErrorIs(t, err, ErrAssetLoad)
	assert.Contains(t, err.Error(), "background: not found: bg-high")
	assert.Nil(t, data)
}

func TestRenderFailsWhenPlateMissing(t *testing.T) {
	r, err := NewRenderer(testConfig(), testLoader(), nil)
	require.NoError(t, err)
	spec := testSpec()
	spec.Plate = "gone"

	_, err = r.Render(context.Background(), spec)
	assert.ErrorIs(t, err, ErrAssetLoad)
	assert.Contains(t, err.Error(), "plate: not found: gone")
}

func TestLogoFailureIsSkipped(t *testing.T) {
	cfg := testConfig()
	cfg.Logo = "missing-logo"
	r, err := NewRenderer(cfg, testLoader(), nil)
	require.NoError(t, err)

	data, err := r.Render(context.Background(), testSpec())
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}

func TestLogoIsDrawnTopLeft(t *testing.T) {
	cfg := testConfig()
	cfg.Logo = "logo"
	r, err := NewRenderer(cfg, testLoader(), nil)
	require.NoError(t, err)

	img, err := r.RenderImage(context.Background(), testSpec())
	require.NoError(t, err)

	px := img.RGBAAt((LogoMargin+4)*2, (LogoMargin+4)*2)
	assert.Greater(t, px.R, uint8(200))
}

func TestBackgroundRefDefaultsToMedium(t *testing.T) {
	r, err := NewRenderer(testConfig(), testLoader(), nil)
	require.NoError(t, err)

	assert.Equal(t, "bg-low", r.BackgroundRef(types.SeverityLow))
	assert.Equal(t, "bg-high", r.BackgroundRef("high"))
	assert.Equal(t, "bg-medium", r.BackgroundRef(""))
	assert.Equal(t, "bg-medium", r.BackgroundRef("SCORCHED"))
}

func TestNewRendererRejectsBadViewport(t *testing.T) {
	cfg := testConfig()
	cfg.Viewport.Density = 0.5
	_, err := NewRenderer(cfg, testLoader(), nil)
	assert.Error(t, err)

	cfg = testConfig()
	cfg.Viewport.Width = 0
	_, err = NewRenderer(cfg, testLoader(), nil)
	assert.Error(t, err)
}

func TestRenderWithBuiltinBackgroundsAndHandles(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, solid(120, 80, color.RGBA{G: 0xff, A: 0xff})))

	store := handle.NewStore()
	h := store.Create(buf.Bytes(), "image/png")

	cfg := DefaultConfig()
	cfg.Viewport = Viewport{Width: 150, Height: 300, Density: 1}
	r, err := NewRenderer(cfg, NewAssetLoader(store, processing.NewProcessor()), processing.NewProcessor())
	require.NoError(t, err)

	data, err := r.Render(context.Background(), Spec{
		Severity: types.SeverityLow,
		Rating:   3.8,
		Roast:    strings.Repeat("overcooked ", 12),
		Plate:    h,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, data)

	store.Revoke(h)
	_, err = r.Render(context.Background(), Spec{Plate: h})
	assert.ErrorIs(t, err, ErrAssetLoad)
}
