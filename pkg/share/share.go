// Package share hands a finished image or text to whatever the platform
// offers: a native share sheet first, then a deep link into the social app
// with a web fallback, then a plain download or the clipboard.
package share

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/menta2k/plate-roaster/internal/log"
)

var (
	// ErrAborted signals that the user dismissed the share sheet. It is not a failure.
	ErrAborted = errors.New("share: aborted by user")
	// ErrUnavailable is returned when no capability could take the content.
	ErrUnavailable = errors.New("share: no share target available")
)

// File is an encoded image ready to hand off
type File struct {
	Name     string
	MimeType string
	Data     []byte
}

// Sharer is a native share sheet
type Sharer interface {
	CanShare(f File) bool
	ShareFile(ctx context.Context, f File) error
	ShareText(ctx context.Context, text string) error
}

// URLOpener opens app deep links and web pages
type URLOpener interface {
	OpenURL(ctx context.Context, u *url.URL) error
}

// Downloader stores a file where the user can pick it up and returns its location
type Downloader interface {
	Save(ctx context.Context, f File) (string, error)
}

// Clipboard receives text when nothing else can share it
type Clipboard interface {
	WriteText(ctx context.Context, text string) error
}

// Capabilities lists what the platform supports. A nil field means the
// capability is absent.
type Capabilities struct {
	Sharer     Sharer
	Opener     URLOpener
	Downloader Downloader
	Clipboard  Clipboard
}

// Outcome says which path delivered the content
type Outcome string

const (
	OutcomeShared     Outcome = "shared"
	OutcomeCancelled  Outcome = "cancelled"
	OutcomeDeepLinked Outcome = "deep-linked"
	OutcomeWeb        Outcome = "web"
	OutcomeDownloaded Outcome = "downloaded"
	OutcomeCopied     Outcome = "copied"
)

// Result describes a completed hand-off
type Result struct {
	Outcome Outcome
	// Location is the saved file path for OutcomeDownloaded
	Location string
}

// Config holds the social app links
type Config struct {
	DeepLink      string        `json:"deep_link" yaml:"deep_link"`
	WebFallback   string        `json:"web_fallback" yaml:"web_fallback"`
	FallbackDelay time.Duration `json:"fallback_delay" yaml:"fallback_delay"`
}

// DefaultConfig targets Instagram stories with a one second web fallback
func DefaultConfig() Config {
	return Config{
		DeepLink:      "instagram://story-camera",
		WebFallback:   "https://www.instagram.com/",
		FallbackDelay: time.Second,
	}
}

// Dispatcher picks the best available share path
type Dispatcher struct {
	caps   Capabilities
	config Config
}

// NewDispatcher creates a dispatcher over the given capabilities
func NewDispatcher(caps Capabilities, config Config) *Dispatcher {
	return &Dispatcher{caps: caps, config: config}
}

// ShareImage hands f to the native share sheet when it accepts files. When
// it does not, or fails, the social app deep link is tried and, if that
// does not open, the web fallback after FallbackDelay. Without any URL
// opener the file is downloaded. A user abort ends the dispatch silently.
func (d *Dispatcher) ShareImage(ctx context.Context, f File) (Result, error) {
	if len(f.Data) == 0 {
		return Result{}, fmt.Errorf("share: empty file %q", f.Name)
	}

	if s := d.caps.Sharer; s != nil && s.CanShare(f) {
		err := s.ShareFile(ctx, f)
		switch {
		case err == nil:
			return Result{Outcome: OutcomeShared}, nil
		case errors.Is(err, ErrAborted):
			return Result{Outcome: OutcomeCancelled}, nil
		}
		log.Printf("[share] Native share failed, falling back: %v", err)
	}

	if d.caps.Opener != nil && d.config.DeepLink != "" {
		res, err := d.openApp(ctx)
		if err == nil {
			return res, nil
		}
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		log.Printf("[share] Links unavailable, downloading instead: %v", err)
	}

	if d.caps.Downloader != nil {
		loc, err := d.caps.Downloader.Save(ctx, f)
		if err != nil {
			return Result{}, fmt.Errorf("share: download failed: %w", err)
		}
		return Result{Outcome: OutcomeDownloaded, Location: loc}, nil
	}

	return Result{}, ErrUnavailable
}

func (d *Dispatcher) openApp(ctx context.Context) (Result, error) {
	deep, err := url.Parse(d.config.DeepLink)
	if err != nil {
		return Result{}, fmt.Errorf("invalid deep link: %w", err)
	}

	linkErr := d.caps.Opener.OpenURL(ctx, deep)
	if linkErr == nil {
		return Result{Outcome: OutcomeDeepLinked}, nil
	}
	if d.config.WebFallback == "" {
		return Result{}, linkErr
	}

	web, err := url.Parse(d.config.WebFallback)
	if err != nil {
		return Result{}, fmt.Errorf("invalid web fallback: %w", err)
	}

	if d.config.FallbackDelay > 0 {
		t := time.NewTimer(d.config.FallbackDelay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		case <-t.C:
		}
	}

	if err := d.caps.Opener.OpenURL(ctx, web); err != nil {
		return Result{}, errors.Join(linkErr, err)
	}
	return Result{Outcome: OutcomeWeb}, nil
}

// ShareText offers text to the native share sheet and otherwise copies it
// to the clipboard.
func (d *Dispatcher) ShareText(ctx context.Context, text string) (Result, error) {
	if s := d.caps.Sharer; s != nil {
		err := s.ShareText(ctx, text)
		switch {
		case err == nil:
			return Result{Outcome: OutcomeShared}, nil
		case errors.Is(err, ErrAborted):
			return Result{Outcome: OutcomeCancelled}, nil
		}
		log.Printf("[share] Native text share failed, copying instead: %v", err)
	}

	if d.caps.Clipboard != nil {
		if err := d.caps.Clipboard.WriteText(ctx, text); err != nil {
			return Result{}, fmt.Errorf("share: clipboard: %w", err)
		}
		return Result{Outcome: OutcomeCopied}, nil
	}

	return Result{}, ErrUnavailable
}
