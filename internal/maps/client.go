// Package maps fetches satellite imagery for the roof analysis.
package maps

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// imageSize is the static-map resolution requested for roof analysis. Large
// enough for the vision model to count obstructions.
const imageSize = "640x640"

// Client is a client for a static-map satellite image service.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a new static-map client.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// FetchImage downloads a satellite image centered on the address at the given
// zoom level and returns the raw image bytes.
func (c *Client) FetchImage(ctx context.Context, address string, zoom int) ([]byte, error) {
	params := url.Values{}
	params.Set("center", address)
	params.Set("zoom", strconv.Itoa(zoom))
	params.Set("size", imageSize)
	params.Set("maptype", "satellite")
	if c.apiKey != "" {
		params.Set("key", c.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	image, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	if len(image) == 0 {
		return nil, fmt.Errorf("empty image for address %q at zoom %d", address, zoom)
	}
	return image, nil
}
