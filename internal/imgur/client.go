// Implements the Imgur image hosting API client.

// Package imgur uploads and deletes images on Imgur.
package imgur

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"
)

const (
	// BaseURL is the Imgur API base URL.
	BaseURL = "https://api.imgur.com/3"
	// MinInterval is the minimum time between requests on average.
	MinInterval = time.Second
)

// Upload kinds accepted by Imgur.
const (
	KindFile   = "file"
	KindBase64 = "base64"
	KindURL    = "url"
)

// Image is an uploaded image.
type Image struct {
	ID         string `json:"id"`
	Link       string `json:"link"`
	DeleteHash string `json:"deletehash"`
	Type       string `json:"type,omitempty"`
	Width      int    `json:"width,omitempty"`
	Height     int    `json:"height,omitempty"`
}

// ErrUnsupportedType is returned by Upload for an unknown image type.
var ErrUnsupportedType = errors.New("unsupported image type")

// Error is an error returned by the Imgur API.
type Error struct {
	Status  int
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("imgur: %s (status %d)", e.Message, e.Status)
}

// envelope wraps every Imgur response.
type envelope struct {
	Data    json.RawMessage `json:"data"`
	Success bool            `json:"success"`
	Status  int             `json:"status"`
}

// Client is a rate-limited Imgur API client authenticated with an
// application client ID.
type Client struct {
	clientID   string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient creates a new Imgur API client.
func NewClient(clientID string) *Client {
	return &Client{
		clientID: clientID,
		baseURL:  BaseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Every(MinInterval), 5),
	}
}

// WithBaseURL returns a copy of c sending requests to baseURL.
func (c *Client) WithBaseURL(baseURL string) *Client {
	c2 := *c
	c2.baseURL = baseURL
	return &c2
}

// do performs an HTTP request and returns the data field of the response.
func (c *Client) do(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Client-ID "+c.clientID)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		if resp.StatusCode >= 400 {
			return nil, &Error{Status: resp.StatusCode, Message: string(respBody)}
		}
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if resp.StatusCode >= 400 || !env.Success {
		var detail struct {
			Error any `json:"error"`
		}
		msg := http.StatusText(resp.StatusCode)
		if err := json.Unmarshal(env.Data, &detail); err == nil && detail.Error != nil {
			msg = fmt.Sprint(detail.Error)
		}
		return nil, &Error{Status: resp.StatusCode, Message: msg}
	}
	return env.Data, nil
}

// Upload uploads an image. kind is one of KindFile, KindBase64 or KindURL
// and data is the image content or its URL accordingly.
func (c *Client) Upload(ctx context.Context, kind, data string) (*Image, error) {
	switch kind {
	case KindFile, KindBase64, KindURL:
	default:
		return nil, fmt.Errorf("%w %q, must be %q, %q or %q", ErrUnsupportedType, kind, KindFile, KindBase64, KindURL)
	}
	raw, err := c.do(ctx, http.MethodPost, "/image", map[string]string{"type": kind, "image": data})
	if err != nil {
		return nil, err
	}
	var img Image
	if err := json.Unmarshal(raw, &img); err != nil {
		return nil, fmt.Errorf("failed to parse upload response: %w", err)
	}
	return &img, nil
}

// Delete deletes an uploaded image using the delete hash returned by Upload.
func (c *Client) Delete(ctx context.Context, deleteHash string) error {
	if deleteHash == "" {
		return errors.New("delete hash is required")
	}
	_, err := c.do(ctx, http.MethodDelete, "/image/"+url.PathEscape(deleteHash), nil)
	return err
}
