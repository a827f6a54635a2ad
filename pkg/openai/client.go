// Package openai talks to OpenAI-compatible chat completion endpoints with
// image input through the official SDK.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// DefaultBaseURL is the hosted OpenAI API
const DefaultBaseURL = "https://api.openai.com/v1"

// Client sends roast completions to an OpenAI-compatible server
type Client struct {
	client  openai.Client
	baseURL string
}

// NewClient creates a client for serverURL. An empty URL targets the hosted
// API and a URL without a path gets /v1 appended, as local servers expect.
// apiKey may be empty for local servers that do not check it.
func NewClient(serverURL, apiKey string) (*Client, error) {
	if serverURL == "" {
		serverURL = DefaultBaseURL
	}
	u, err := url.Parse(serverURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid URL %q: only http and https are supported", serverURL)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/v1"
	}
	base := strings.TrimSuffix(u.String(), "/")

	// Retries are left to the user, who sees the failure and can try again.
	opts := []option.RequestOption{
		option.WithBaseURL(base),
		option.WithMaxRetries(0),
		option.WithHTTPClient(&http.Client{Timeout: 2 * time.Minute}),
	}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}

	return &Client{client: openai.NewClient(opts...), baseURL: base}, nil
}

// Complete sends the prompt with the image attached as a data URL and asks
// for a JSON object reply.
func (c *Client) Complete(ctx context.Context, model, prompt, imgB64, mimeType string) (string, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 120*time.Second)
		defer cancel()
	}

	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	parts := []openai.ChatCompletionContentPartUnionParam{
		openai.TextContentPart(prompt),
	}
	if imgB64 != "" {
		parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
			URL: "data:" + mimeType + ";base64," + imgB64,
		}))
	}

	completion, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       model,
		Messages:    []openai.ChatCompletionMessageParamUnion{openai.UserMessage(parts)},
		Temperature: openai.Float(0.7),
		MaxTokens:   openai.Int(200),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
	})
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) && apiErr.Message != "" {
			return "", fmt.Errorf("server returned status %d: %s", apiErr.StatusCode, apiErr.Message)
		}
		return "", fmt.Errorf("request failed: %w", err)
	}

	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}

	text := strings.TrimSpace(completion.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("no roast generated: empty response content")
	}
	return text, nil
}
