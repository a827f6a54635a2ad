package plateroaster

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/plate-roaster/internal/config"
	"github.com/menta2k/plate-roaster/pkg/capture"
	"github.com/menta2k/plate-roaster/pkg/geometry"
	"github.com/menta2k/plate-roaster/pkg/roast"
	"github.com/menta2k/plate-roaster/pkg/session"
	"github.com/menta2k/plate-roaster/pkg/share"
	"github.com/menta2k/plate-roaster/pkg/types"
)

// createTestImage creates a plate-like image: a light disc on a dark table
func createTestImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	cx, cy := width/2, height/2
	r := min(width, height) / 3
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			dx, dy := x-cx, y-cy
			if dx*dx+dy*dy < r*r {
				img.Set(x, y, color.RGBA{240, 230, 210, 255})
			} else {
				img.Set(x, y, color.RGBA{60, 40, 30, 255})
			}
		}
	}
	return img
}

func writeTestJPEG(t *testing.T, width, height int) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, createTestImage(width, height), &jpeg.Options{Quality: 90}))
	path := filepath.Join(t.TempDir(), "dinner.jpg")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
	return path
}

type mockRoaster struct{ mock.Mock }

func (m *mockRoaster) DescribeAndRoast(ctx context.Context, data []byte, mimeType string) (types.Roast, error) {
	args := m.Called(ctx, data, mimeType)
	return args.Get(0).(types.Roast), args.Error(1)
}

type mockClipboard struct{ mock.Mock }

func (m *mockClipboard) WriteText(ctx context.Context, text string) error {
	return m.Called(ctx, text).Error(0)
}

var verdict = types.Roast{Target: "turkey", Roast: "This turkey died twice.", Rating: 1.8, Severity: types.SeverityHigh}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Roast.Backend = config.BackendStatic
	cfg.Roast.MinLoadingMs = 0
	cfg.Composite.Width = 120
	cfg.Composite.Height = 240
	cfg.Composite.Density = 1
	cfg.Compression.MaxDimension = 100
	return cfg
}

func newTestApp(t *testing.T, r roast.Roaster, caps share.Capabilities) *App {
	t.Helper()
	app, err := New(testConfig(), Options{Roaster: r, Share: caps})
	require.NoError(t, err)
	return app
}

func TestNewRoasterBackends(t *testing.T) {
	cfg := testConfig()

	r, err := NewRoaster(cfg)
	require.NoError(t, err)
	assert.IsType(t, &roast.Service{}, r)

	cfg.Roast.Backend = config.BackendOllama
	r, err = NewRoaster(cfg)
	require.NoError(t, err)
	assert.IsType(t, &roast.Service{}, r)

	cfg.Roast.Backend = config.BackendRemote
	cfg.Roast.URL = "http://localhost:8888/roast"
	r, err = NewRoaster(cfg)
	require.NoError(t, err)
	assert.IsType(t, &roast.RemoteClient{}, r)
}

func TestNewRequiresAPIKeyForOpenAI(t *testing.T) {
	cfg := testConfig()
	cfg.Roast.Backend = config.BackendOpenAI
	cfg.Roast.APIKeyEnv = "PLATE_ROASTER_TEST_KEY"
	t.Setenv("PLATE_ROASTER_TEST_KEY", "")

	_, err := New(cfg, Options{})
	assert.ErrorIs(t, err, ErrMissingAPIKey)

	t.Setenv("PLATE_ROASTER_TEST_KEY", "sk-test")
	_, err = New(cfg, Options{})
	assert.NoError(t, err)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Composite.Density = 0
	_, err := New(cfg, Options{})
	assert.Error(t, err)
}

func TestRoastFlow(t *testing.T) {
	r := new(mockRoaster)
	r.On("DescribeAndRoast", mock.Anything, mock.Anything, "image/jpeg").Return(verdict, nil)
	dir := t.TempDir()
	app := newTestApp(t, r, share.Capabilities{Downloader: share.DirDownloader{Dir: dir}})

	photo, err := app.SelectFile(context.Background(), writeTestJPEG(t, 400, 300))
	require.NoError(t, err)
	assert.Equal(t, session.PhaseReady, app.Session().Phase())
	assert.NotEmpty(t, photo.Handle)

	got, err := app.Roast(context.Background())
	require.NoError(t, err)
	assert.Equal(t, verdict, got)

	state := app.Session().Snapshot()
	assert.Equal(t, session.PhaseComplete, state.Phase)
	require.NotNil(t, state.Roast)
	assert.Equal(t, verdict, *state.Roast)

	// the roaster saw the compressed photo, not the original
	sent := r.Calls[0].Arguments.Get(1).([]byte)
	img, err := jpeg.Decode(bytes.NewReader(sent))
	require.NoError(t, err)
	assert.Equal(t, 100, img.Bounds().Dx())
	assert.Equal(t, 75, img.Bounds().Dy())

	res, err := app.Share(context.Background())
	require.NoError(t, err)
	assert.Equal(t, share.OutcomeDownloaded, res.Outcome)
	assert.Equal(t, "roast-my-plate.jpg", filepath.Base(res.Location))

	data, err := os.ReadFile(res.Location)
	require.NoError(t, err)
	out, err := jpeg.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 120, out.Bounds().Dx())
	assert.Equal(t, 240, out.Bounds().Dy())
}

func TestRoastFailureKeepsPlateForRetry(t *testing.T) {
	r := new(mockRoaster)
	r.On("DescribeAndRoast", mock.Anything, mock.Anything, mock.Anything).Return(types.Roast{}, errors.New("upstream down")).Once()
	r.On("DescribeAndRoast", mock.Anything, mock.Anything, mock.Anything).Return(verdict, nil).Once()
	app := newTestApp(t, r, share.Capabilities{})

	_, err := app.SelectFile(context.Background(), writeTestJPEG(t, 200, 200))
	require.NoError(t, err)

	_, err = app.Roast(context.Background())
	require.Error(t, err)

	state := app.Session().Snapshot()
	assert.Equal(t, session.PhaseError, state.Phase)
	assert.Equal(t, roast.FailureMessage, state.Error)
	require.NotNil(t, state.Plate)

	got, err := app.Roast(context.Background())
	require.NoError(t, err)
	assert.Equal(t, verdict, got)
	assert.Equal(t, session.PhaseComplete, app.Session().Phase())
}

func TestRoastWithoutPlate(t *testing.T) {
	app := newTestApp(t, new(mockRoaster), share.Capabilities{})
	_, err := app.Roast(context.Background())
	assert.ErrorIs(t, err, session.ErrNoPlate)

	_, err = app.RenderShareImage(context.Background(), false)
	assert.ErrorIs(t, err, session.ErrNoPlate)
}

func TestSelectFileRejectsUnsupportedType(t *testing.T) {
	app := newTestApp(t, new(mockRoaster), share.Capabilities{})
	path := filepath.Join(t.TempDir(), "menu")
	require.NoError(t, os.WriteFile(path, []byte("soup of the day"), 0644))

	_, err := app.SelectFile(context.Background(), path)
	assert.Error(t, err)
	assert.Equal(t, session.PhaseIdle, app.Session().Phase())
	assert.Zero(t, app.Handles().Len())
}

func TestSelectingNewPlateRevokesOldHandle(t *testing.T) {
	app := newTestApp(t, new(mockRoaster), share.Capabilities{})
	first, err := app.SelectFile(context.Background(), writeTestJPEG(t, 200, 200))
	require.NoError(t, err)
	_, err = app.SelectFile(context.Background(), writeTestJPEG(t, 300, 200))
	require.NoError(t, err)

	_, _, err = app.Handles().Resolve(first.Handle)
	assert.Error(t, err)
	assert.Equal(t, 1, app.Handles().Len())

	app.Reset()
	assert.Zero(t, app.Handles().Len())
	assert.Equal(t, session.PhaseIdle, app.Session().Phase())
}

func TestRenderShareImageUsesFallbackVerdict(t *testing.T) {
	app := newTestApp(t, new(mockRoaster), share.Capabilities{})
	_, err := app.SelectFile(context.Background(), writeTestJPEG(t, 200, 200))
	require.NoError(t, err)

	data, err := app.RenderShareImage(context.Background(), false)
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}

func TestShareText(t *testing.T) {
	r := new(mockRoaster)
	r.On("DescribeAndRoast", mock.Anything, mock.Anything, mock.Anything).Return(verdict, nil)
	clip := new(mockClipboard)
	clip.On("WriteText", mock.Anything, verdict.Roast).Return(nil)
	app := newTestApp(t, r, share.Capabilities{Clipboard: clip})

	_, err := app.ShareText(context.Background())
	assert.Error(t, err)

	_, err = app.SelectFile(context.Background(), writeTestJPEG(t, 200, 200))
	require.NoError(t, err)
	_, err = app.Roast(context.Background())
	require.NoError(t, err)

	res, err := app.ShareText(context.Background())
	require.NoError(t, err)
	assert.Equal(t, share.OutcomeCopied, res.Outcome)
	clip.AssertExpectations(t)
}

func TestCameraCaptureSelectsPlate(t *testing.T) {
	devices := &capture.StillDevices{Frame: createTestImage(640, 480)}
	app, err := New(testConfig(), Options{Roaster: new(mockRoaster), Devices: devices})
	require.NoError(t, err)

	var captured types.Photo
	modal := app.NewCamera(capture.Callbacks{OnCapture: func(p types.Photo) error { captured = p; return nil }})
	require.NoError(t, modal.Open(context.Background()))
	require.True(t, modal.Ready())

	photo, err := modal.Capture(context.Background(), geometry.Size{Width: 390, Height: 844})
	require.NoError(t, err)
	assert.Equal(t, photo.Handle, captured.Handle)
	assert.False(t, modal.IsOpen())

	state := app.Session().Snapshot()
	assert.Equal(t, session.PhaseReady, state.Phase)
	require.NotNil(t, state.Plate)
	assert.Equal(t, photo.Handle, state.Plate.Handle)
	assert.Equal(t, 1, devices.Streams()[0].StopCount())
}

// gatedRoaster blocks each call until a verdict is sent on its release channel
type gatedRoaster struct {
	started chan struct{}
	release chan types.Roast
}

func newGatedRoaster() *gatedRoaster {
	return &gatedRoaster{started: make(chan struct{}, 2), release: make(chan types.Roast)}
}

func (g *gatedRoaster) DescribeAndRoast(ctx context.Context, data []byte, mimeType string) (types.Roast, error) {
	g.started <- struct{}{}
	select {
	case r := <-g.release:
		return r, nil
	case <-ctx.Done():
		return types.Roast{}, ctx.Err()
	}
}

func TestStaleRoastDoesNotCompleteNextSession(t *testing.T) {
	r := newGatedRoaster()
	app := newTestApp(t, r, share.Capabilities{})

	_, err := app.SelectFile(context.Background(), writeTestJPEG(t, 200, 200))
	require.NoError(t, err)

	firstDone := make(chan error, 1)
	go func() {
		_, err := app.Roast(context.Background())
		firstDone <- err
	}()
	<-r.started

	app.Reset()
	second, err := app.SelectFile(context.Background(), writeTestJPEG(t, 300, 200))
	require.NoError(t, err)

	secondDone := make(chan error, 1)
	go func() {
		_, err := app.Roast(context.Background())
		secondDone <- err
	}()
	<-r.started

	// The first roast finishes while the second is still in flight
	r.release <- types.Roast{Target: "old plate", Roast: "stale", Rating: 5, Severity: types.SeverityLow}
	assert.ErrorIs(t, <-firstDone, session.ErrStale)
	assert.Equal(t, session.PhaseProcessing, app.Session().Phase())

	r.release <- verdict
	require.NoError(t, <-secondDone)

	state := app.Session().Snapshot()
	assert.Equal(t, session.PhaseComplete, state.Phase)
	require.NotNil(t, state.Roast)
	assert.Equal(t, verdict, *state.Roast)
	require.NotNil(t, state.Plate)
	assert.Equal(t, second.Handle, state.Plate.Handle)
}

func TestResetDuringRoastLeavesSessionIdle(t *testing.T) {
	r := newGatedRoaster()
	app := newTestApp(t, r, share.Capabilities{})

	_, err := app.SelectFile(context.Background(), writeTestJPEG(t, 200, 200))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := app.Roast(context.Background())
		done <- err
	}()
	<-r.started

	app.Reset()
	r.release <- verdict

	assert.ErrorIs(t, <-done, session.ErrStale)
	state := app.Session().Snapshot()
	assert.Equal(t, session.PhaseIdle, state.Phase)
	assert.Nil(t, state.Plate)
	assert.Nil(t, state.Roast)
}

func TestCameraCaptureRefusedWhileRoasting(t *testing.T) {
	r := newGatedRoaster()
	devices := &capture.StillDevices{Frame: createTestImage(640, 480)}
	app, err := New(testConfig(), Options{Roaster: r, Devices: devices})
	require.NoError(t, err)

	plate, err := app.SelectFile(context.Background(), writeTestJPEG(t, 200, 200))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := app.Roast(context.Background())
		done <- err
	}()
	<-r.started

	modal := app.NewCamera(capture.Callbacks{})
	require.NoError(t, modal.Open(context.Background()))

	photo, err := modal.Capture(context.Background(), geometry.Size{Width: 390, Height: 844})
	assert.ErrorIs(t, err, session.ErrInvalidTransition)
	assert.Empty(t, photo.Handle)
	assert.True(t, modal.IsOpen(), "camera stays open for a retry")
	assert.Equal(t, 0, devices.Streams()[0].StopCount())
	assert.Equal(t, 1, app.Handles().Len(), "only the selected plate holds a handle")

	r.release <- verdict
	require.NoError(t, <-done)
	assert.Equal(t, plate.Handle, app.Session().Snapshot().Plate.Handle)
	modal.Close()
}
