package capture

import (
	"context"
	"image"
	"sync"
)

// TrackState mirrors the lifecycle of a media track
type TrackState int

const (
	TrackLive TrackState = iota
	TrackEnded
)

func (s TrackState) String() string {
	if s == TrackLive {
		return "live"
	}
	return "ended"
}

// Track is one media track of a live stream
type Track interface {
	Stop()
	State() TrackState
}

// Stream is a live video source. Frame returns the current frame; its bounds
// are the intrinsic frame size and are empty while the source is initializing.
type Stream interface {
	Tracks() []Track
	Frame() (image.Image, error)
}

// Constraints are the preferred camera settings
type Constraints struct {
	FacingMode  string
	IdealWidth  int
	IdealHeight int
}

// DefaultConstraints asks for the rear camera at 1080p
func DefaultConstraints() Constraints {
	return Constraints{FacingMode: "environment", IdealWidth: 1920, IdealHeight: 1080}
}

// MediaDevices acquires camera streams. A nil MediaDevices means the platform
// has no camera API and callers should go straight to file selection.
type MediaDevices interface {
	Open(ctx context.Context, c Constraints) (Stream, error)
}

// StillStream serves a fixed image as a single-track stream. It backs the CLI
// and tests where no real camera exists.
type StillStream struct {
	frame image.Image
	track *stillTrack
}

// NewStillStream wraps img as a live stream
func NewStillStream(img image.Image) *StillStream {
	return &StillStream{frame: img, track: &stillTrack{}}
}

func (s *StillStream) Tracks() []Track { return []Track{s.track} }

func (s *StillStream) Frame() (image.Image, error) {
	if s.track.State() == TrackEnded {
		return nil, ErrStreamEnded
	}
	return s.frame, nil
}

// StopCount reports how many times the track was stopped while live
func (s *StillStream) StopCount() int {
	s.track.mu.Lock()
	defer s.track.mu.Unlock()
	return s.track.stops
}

type stillTrack struct {
	mu    sync.Mutex
	ended bool
	stops int
}

func (t *stillTrack) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.ended {
		t.ended = true
		t.stops++
	}
}

func (t *stillTrack) State() TrackState {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ended {
		return TrackEnded
	}
	return TrackLive
}

// StillDevices opens a StillStream over a fixed frame
type StillDevices struct {
	Frame image.Image

	mu     sync.Mutex
	opened []*StillStream
}

func (d *StillDevices) Open(ctx context.Context, c Constraints) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := NewStillStream(d.Frame)
	d.mu.Lock()
	d.opened = append(d.opened, s)
	d.mu.Unlock()
	return s, nil
}

// Streams returns every stream opened so far
func (d *StillDevices) Streams() []*StillStream {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*StillStream(nil), d.opened...)
}
