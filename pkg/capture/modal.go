// Package capture owns the live camera stream while the capture UI is open and
// turns the circular guide region of a frame into a plate photo.
package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/menta2k/plate-roaster/internal/log"
	"github.com/menta2k/plate-roaster/pkg/geometry"
	"github.com/menta2k/plate-roaster/pkg/handle"
	"github.com/menta2k/plate-roaster/pkg/processing"
	"github.com/menta2k/plate-roaster/pkg/types"
)

var (
	ErrCaptureInProgress = errors.New("capture: a capture is already in progress")
	ErrNotOpen           = errors.New("capture: camera is not open")
	ErrCancelled         = errors.New("capture: camera was closed before the photo was ready")
	ErrEncodeFailed      = errors.New("capture: failed to encode photo")
	ErrStreamEnded       = errors.New("capture: stream has ended")
	ErrNoCamera          = errors.New("capture: camera API not available")
)

// CameraErrorMessage is shown while the modal falls back to file selection.
const CameraErrorMessage = "Unable to access camera. Please use file upload instead."

// PhotoName is the file name given to captured stills
const PhotoName = "plate-photo.jpg"

// MediaAccessError reports that the camera could not be acquired
type MediaAccessError struct {
	Err error
}

func (e *MediaAccessError) Error() string {
	return fmt.Sprintf("camera access failed: %v", e.Err)
}

func (e *MediaAccessError) Unwrap() error { return e.Err }

// Encoder produces encoded stills from a frame and guide mapping
type Encoder interface {
	Encode(ctx context.Context, frame image.Image, m geometry.Mapping) ([]byte, error)
}

// Config holds capture settings
type Config struct {
	GuideDiameter     float64
	Quality           int
	ErrorDismissDelay time.Duration
	Constraints       Constraints
}

// DefaultConfig returns the standard 280px guide at JPEG quality 90
func DefaultConfig() Config {
	return Config{
		GuideDiameter:     280,
		Quality:           90,
		ErrorDismissDelay: 2 * time.Second,
		Constraints:       DefaultConstraints(),
	}
}

// Callbacks connect the modal to the screen hosting it. Accept is asked
// before a still is taken; OnCapture receives the still before the stream
// is stopped. An error from either is returned by Capture and leaves the
// camera live.
type Callbacks struct {
	Accept       func() error
	OnCapture    func(types.Photo) error
	OnClose      func()
	OnChooseFile func()
}

// Modal is the camera capture component. The stream it acquires is never
// shared; it is stopped on successful capture, on Close and on ChooseFile.
type Modal struct {
	devices   MediaDevices
	handles   *handle.Store
	encoder   Encoder
	config    Config
	callbacks Callbacks

	mu        sync.Mutex
	open      bool
	stream    Stream
	capturing bool
	errMsg    string
	dismiss   *time.Timer
}

// NewModal creates a closed capture modal
func NewModal(devices MediaDevices, handles *handle.Store, config Config, callbacks Callbacks) *Modal {
	return &Modal{
		devices:   devices,
		handles:   handles,
		encoder:   &CircularEncoder{Quality: config.Quality},
		config:    config,
		callbacks: callbacks,
	}
}

// SetEncoder replaces the still encoder
func (m *Modal) SetEncoder(e Encoder) {
	m.mu.Lock()
	m.encoder = e
	m.mu.Unlock()
}

// Open acquires the camera. When that fails the error message is kept for
// display and the modal closes itself after the configured delay.
func (m *Modal) Open(ctx context.Context) error {
	m.mu.Lock()
	if m.open {
		m.mu.Unlock()
		return nil
	}
	m.open = true
	m.errMsg = ""
	m.mu.Unlock()

	var stream Stream
	err := ErrNoCamera
	if m.devices != nil {
		stream, err = m.devices.Open(ctx, m.config.Constraints)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.open {
		// Closed while the camera was being acquired
		if stream != nil {
			stopTracks(stream)
		}
		return ErrNotOpen
	}

	if err != nil {
		log.Printf("[capture] error accessing camera: %v", err)
		m.errMsg = CameraErrorMessage
		m.dismiss = time.AfterFunc(m.config.ErrorDismissDelay, m.Close)
		return &MediaAccessError{Err: err}
	}

	m.stream = stream
	return nil
}

// IsOpen reports whether the modal is showing
func (m *Modal) IsOpen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.open
}

// ErrorMessage returns the message to display, if any
func (m *Modal) ErrorMessage() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errMsg
}

// Ready reports whether the capture control should be enabled: the camera is
// live, nothing is in flight and the frame reports real dimensions.
func (m *Modal) Ready() bool {
	m.mu.Lock()
	stream := m.stream
	ok := m.open && stream != nil && !m.capturing && m.errMsg == ""
	m.mu.Unlock()
	if !ok {
		return false
	}
	frame, err := stream.Frame()
	return err == nil && frame != nil && !frame.Bounds().Empty()
}

// Capture takes the circular still for a display box of the given size. A
// second call while one is pending returns ErrCaptureInProgress without side
// effects. On failure the stream stays live so the user can retry.
func (m *Modal) Capture(ctx context.Context, display geometry.Size) (types.Photo, error) {
	m.mu.Lock()
	if !m.open || m.stream == nil {
		m.mu.Unlock()
		return types.Photo{}, ErrNotOpen
	}
	if m.capturing {
		m.mu.Unlock()
		return types.Photo{}, ErrCaptureInProgress
	}
	m.capturing = true
	stream, encoder := m.stream, m.encoder
	m.mu.Unlock()

	photo, err := m.take(ctx, stream, encoder, display)
	if err != nil {
		m.mu.Lock()
		m.capturing = false
		m.mu.Unlock()
		log.Printf("[capture] capture failed: %v", err)
		return types.Photo{}, err
	}

	m.mu.Lock()
	m.capturing = false
	current := m.stream == stream
	if current {
		m.stopLocked()
	}
	m.mu.Unlock()

	if current {
		m.Close()
	}
	return photo, nil
}

// take produces the still and hands it to OnCapture while the stream is
// still live, so a refusal leaves the camera usable.
func (m *Modal) take(ctx context.Context, stream Stream, encoder Encoder, display geometry.Size) (types.Photo, error) {
	if m.callbacks.Accept != nil {
		if err := m.callbacks.Accept(); err != nil {
			return types.Photo{}, err
		}
	}

	photo, err := m.still(ctx, stream, encoder, display)
	if err != nil {
		return types.Photo{}, err
	}

	m.mu.Lock()
	current := m.open && m.stream == stream
	m.mu.Unlock()
	if !current {
		return types.Photo{}, ErrCancelled
	}

	if m.handles != nil {
		photo.Handle = m.handles.Create(photo.Data, photo.MimeType)
	}
	if m.callbacks.OnCapture != nil {
		if err := m.callbacks.OnCapture(photo); err != nil {
			if photo.Handle != "" {
				m.handles.Revoke(photo.Handle)
			}
			return types.Photo{}, err
		}
	}
	return photo, nil
}

func (m *Modal) still(ctx context.Context, stream Stream, encoder Encoder, display geometry.Size) (types.Photo, error) {
	frame, err := stream.Frame()
	if err != nil {
		return types.Photo{}, err
	}
	if frame == nil {
		return types.Photo{}, geometry.ErrFrameNotReady
	}

	b := frame.Bounds()
	mapping, err := geometry.MapGuide(b.Dx(), b.Dy(), display, m.config.GuideDiameter)
	if err != nil {
		return types.Photo{}, err
	}

	data, err := encoder.Encode(ctx, frame, mapping)
	if err != nil {
		return types.Photo{}, err
	}
	if len(data) == 0 {
		return types.Photo{}, ErrEncodeFailed
	}

	size := mapping.CropSize()
	return types.Photo{
		Name:     PhotoName,
		MimeType: processing.MimeJPEG,
		Data:     data,
		Width:    size,
		Height:   size,
	}, nil
}

// Close stops every track and dismisses the modal. It is safe to call repeatedly.
func (m *Modal) Close() {
	m.mu.Lock()
	if !m.open {
		m.mu.Unlock()
		return
	}
	m.open = false
	m.stopLocked()
	if m.dismiss != nil {
		m.dismiss.Stop()
		m.dismiss = nil
	}
	onClose := m.callbacks.OnClose
	m.mu.Unlock()

	if onClose != nil {
		onClose()
	}
}

// ChooseFile abandons the camera in favour of manual file selection
func (m *Modal) ChooseFile() {
	m.Close()
	if m.callbacks.OnChooseFile != nil {
		m.callbacks.OnChooseFile()
	}
}

func (m *Modal) stopLocked() {
	if m.stream == nil {
		return
	}
	stopTracks(m.stream)
	m.stream = nil
}

func stopTracks(s Stream) {
	for _, t := range s.Tracks() {
		t.Stop()
	}
}
