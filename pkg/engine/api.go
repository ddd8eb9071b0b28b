package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	enhance "github.com/goliatone/go-enhance"
)

const (
	// DefaultPushAttempts is how often a reload is retried before giving
	// up.
	DefaultPushAttempts = 3
	// DefaultRetryDelay separates reload attempts.
	DefaultRetryDelay = 100 * time.Millisecond

	maxResponseBody = 1 << 20
)

// APIOption configures an APIController.
type APIOption func(*APIController)

// WithSecret sets the bearer token sent with every request.
func WithSecret(secret string) APIOption {
	return func(c *APIController) {
		c.secret = secret
	}
}

// WithHTTPClient overrides the HTTP client used for control API calls.
func WithHTTPClient(client *http.Client) APIOption {
	return func(c *APIController) {
		if client != nil {
			c.client = client
		}
	}
}

// WithRetry tunes how often and how quickly Push retries.
func WithRetry(attempts int, delay time.Duration) APIOption {
	return func(c *APIController) {
		if attempts > 0 {
			c.attempts = attempts
		}
		if delay > 0 {
			c.delay = delay
		}
	}
}

// APIController drives the engine through its HTTP control API.
type APIController struct {
	base     string
	secret   string
	client   *http.Client
	attempts int
	delay    time.Duration
}

// NewAPIController constructs a controller for the control API at baseURL,
// such as http://127.0.0.1:9090.
func NewAPIController(baseURL string, opts ...APIOption) *APIController {
	controller := &APIController{
		base:     strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: 10 * time.Second},
		attempts: DefaultPushAttempts,
		delay:    DefaultRetryDelay,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(controller)
		}
	}
	return controller
}

// Push asks the engine to reload its configuration from path, retrying a
// few times since the engine briefly refuses requests while restarting.
func (c *APIController) Push(ctx context.Context, path string) error {
	payload := struct {
		Path string `json:"path"`
	}{Path: path}

	var err error
	for attempt := 0; attempt < c.attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.delay):
			}
		}
		if err = c.do(ctx, http.MethodPut, "/configs", payload); err == nil {
			return nil
		}
	}
	return fmt.Errorf("engine: push config: %w", err)
}

// Patch applies a partial configuration to the running engine.
func (c *APIController) Patch(ctx context.Context, patch enhance.Document) error {
	if err := c.do(ctx, http.MethodPatch, "/configs", patch); err != nil {
		return fmt.Errorf("engine: patch config: %w", err)
	}
	return nil
}

// Healthcheck probes the engine's version endpoint.
func (c *APIController) Healthcheck(ctx context.Context) error {
	if _, err := c.Version(ctx); err != nil {
		return err
	}
	return nil
}

// Version returns the engine's reported version.
func (c *APIController) Version(ctx context.Context) (string, error) {
	body, err := c.get(ctx, "/version")
	if err != nil {
		return "", err
	}
	var payload struct {
		Version string `json:"version"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("engine: decode version: %w", err)
	}
	return payload.Version, nil
}

func (c *APIController) do(ctx context.Context, method, path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("engine: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("engine: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return readAPIError(resp)
}

func (c *APIController) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return nil, fmt.Errorf("engine: build request: %w", err)
	}
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, readAPIError(resp)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("engine: read response: %w", err)
	}
	return body, nil
}

func (c *APIController) authorize(req *http.Request) {
	if c.secret != "" {
		req.Header.Set("Authorization", "Bearer "+c.secret)
	}
}

func readAPIError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	return &APIError{
		Status: resp.StatusCode,
		Body:   strings.TrimSpace(string(body)),
	}
}
