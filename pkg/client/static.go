package client

import (
	"context"
	"encoding/json"
	"time"

	"github.com/menta2k/plate-roaster/pkg/types"
)

// CannedRoast is the verdict served by the static backend
var CannedRoast = types.Roast{
	Target:   "turkey",
	Roast:    "This turkey died twice.",
	Rating:   1.8,
	Severity: types.SeverityHigh,
}

// Static answers every request with a fixed verdict, for offline runs and demos
type Static struct {
	Roast types.Roast
	Delay time.Duration
}

// NewStatic returns a static client serving CannedRoast after a one second delay
func NewStatic() *Static {
	return &Static{Roast: CannedRoast, Delay: time.Second}
}

// Complete implements VisionClient
func (s *Static) Complete(ctx context.Context, model, prompt, imgB64, mimeType string) (string, error) {
	if s.Delay > 0 {
		t := time.NewTimer(s.Delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-t.C:
		}
	}

	out, err := json.Marshal(s.Roast)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
