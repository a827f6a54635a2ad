// Package roast turns a plate photo into a verdict: the target food, a one
// line roast, a rating and a severity.
package roast

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/menta2k/plate-roaster/internal/log"
	"github.com/menta2k/plate-roaster/pkg/client"
	"github.com/menta2k/plate-roaster/pkg/types"
)

// FailureMessage is shown to the user when a roast could not be produced
const FailureMessage = "Failed to generate roast. Please try again."

var (
	// ErrEmptyImage is returned when no image bytes were supplied.
	ErrEmptyImage = errors.New("roast: missing image data")
	// ErrNoRoast is returned when the model replied with nothing.
	ErrNoRoast = errors.New("roast: no roast generated")
)

// Roaster produces a verdict for an encoded plate photo
type Roaster interface {
	DescribeAndRoast(ctx context.Context, data []byte, mimeType string) (types.Roast, error)
}

// Config holds the model call parameters
type Config struct {
	Model     string
	Prompt    string
	RatingMax float64
	Timeout   time.Duration
}

// DefaultConfig returns gpt-4o with the Inspector prompt and a 3.8 rating cap
func DefaultConfig() Config {
	return Config{
		Model:     "gpt-4o",
		Prompt:    InspectorPrompt,
		RatingMax: 3.8,
		Timeout:   120 * time.Second,
	}
}

// Service asks a vision model for a roast and normalizes its reply
type Service struct {
	client client.VisionClient
	config Config
}

// NewService creates a roast service on top of a vision client
func NewService(c client.VisionClient, config Config) *Service {
	if config.Prompt == "" {
		config.Prompt = InspectorPrompt
	}
	if config.RatingMax <= 0 {
		config.RatingMax = 3.8
	}
	return &Service{client: c, config: config}
}

// DescribeAndRoast implements Roaster. Transport and model failures are
// returned as errors; malformed replies are repaired with fallbacks.
func (s *Service) DescribeAndRoast(ctx context.Context, data []byte, mimeType string) (types.Roast, error) {
	if len(data) == 0 {
		return types.Roast{}, ErrEmptyImage
	}
	return s.RoastBase64(ctx, base64.StdEncoding.EncodeToString(data), mimeType)
}

// RoastBase64 is DescribeAndRoast for an image that is already base64 encoded
func (s *Service) RoastBase64(ctx context.Context, imgB64, mimeType string) (types.Roast, error) {
	if imgB64 == "" || mimeType == "" {
		return types.Roast{}, ErrEmptyImage
	}

	if s.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.Timeout)
		defer cancel()
	}

	start := time.Now()
	raw, err := s.client.Complete(ctx, s.config.Model, s.config.Prompt, imgB64, mimeType)
	if err != nil {
		return types.Roast{}, fmt.Errorf("roast request failed: %w", err)
	}
	if strings.TrimSpace(raw) == "" {
		return types.Roast{}, ErrNoRoast
	}

	r := Parse(raw, s.config.RatingMax)
	log.Printf("[roast] %s rated %.1f (%s) in %v", r.Target, r.Rating, r.Severity, time.Since(start).Round(time.Millisecond))
	return r, nil
}
