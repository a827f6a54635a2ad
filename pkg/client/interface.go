package client

import (
	"context"
)

// VisionClient sends a prompt and one image to a vision model and returns
// the model's raw text reply. Parsing the reply is left to the caller.
type VisionClient interface {
	Complete(ctx context.Context, model, prompt, imgB64, mimeType string) (string, error)
}
