package roast

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/menta2k/plate-roaster/pkg/types"
)

// RemoteClient calls a roast server's POST /roast endpoint
type RemoteClient struct {
	url        string
	ratingMax  float64
	httpClient *http.Client
}

// NewRemoteClient creates a client for the roast endpoint at url
func NewRemoteClient(url string, ratingMax float64) *RemoteClient {
	if ratingMax <= 0 {
		ratingMax = 3.8
	}
	return &RemoteClient{
		url:        url,
		ratingMax:  ratingMax,
		httpClient: &http.Client{Timeout: 2 * time.Minute},
	}
}

// DescribeAndRoast implements Roaster
func (c *RemoteClient) DescribeAndRoast(ctx context.Context, data []byte, mimeType string) (types.Roast, error) {
	if len(data) == 0 {
		return types.Roast{}, ErrEmptyImage
	}

	body, err := json.Marshal(types.RoastRequest{
		ImageBase64: base64.StdEncoding.EncodeToString(data),
		MimeType:    mimeType,
	})
	if err != nil {
		return types.Roast{}, fmt.Errorf("failed to marshal request: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return types.Roast{}, fmt.Errorf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return types.Roast{}, fmt.Errorf("roast request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return types.Roast{}, fmt.Errorf("failed to read response: %v", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var errBody struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(respBody, &errBody) == nil && errBody.Error != "" {
			return types.Roast{}, fmt.Errorf("roast server: %s", errBody.Error)
		}
		if len(respBody) > 0 {
			return types.Roast{}, fmt.Errorf("roast server: %s", string(respBody))
		}
		return types.Roast{}, fmt.Errorf("roast server: HTTP error! status: %d", resp.StatusCode)
	}

	return Parse(string(respBody), c.ratingMax), nil
}
