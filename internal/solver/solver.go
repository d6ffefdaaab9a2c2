// Package solver is the HTTP client for the remote solving endpoint.
package solver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"screensolve/internal/imagedata"
	"screensolve/internal/logging"
)

// DefaultTimeout is the hard deadline for one solve request, measured from send.
const DefaultTimeout = 12000 * time.Millisecond

// ErrTimeout reports a request that exceeded its deadline.
var ErrTimeout = errors.New("request timed out")

// StatusError reports a non-2xx response.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("Backend returned %d", e.Code)
}

// Answer is the decoded solver response.
type Answer struct {
	Answer     string  `json:"answer"`
	Confidence float64 `json:"confidence"`
	Rationale  string  `json:"rationale,omitempty"`
}

// Request is the body posted to the endpoint.
type Request struct {
	ImageDataURL string `json:"image_data_url"`
}

// Health is the endpoint's health report.
type Health struct {
	Status          string `json:"status"`
	ModelConfigured bool   `json:"model_configured"`
}

// Client posts images to the solver.
type Client struct {
	url     string
	http    *http.Client
	timeout time.Duration
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New returns a client for the endpoint at url.
func New(endpoint string, opts ...Option) *Client {
	c := &Client{
		url:     endpoint,
		http:    &http.Client{},
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.NewComponentLogger(c.logger, "solver")
	return c
}

// URL returns the endpoint URL.
func (c *Client) URL() string { return c.url }

// Solve posts img and decodes the answer. A deadline expiry yields ErrTimeout;
// a non-2xx status yields *StatusError.
func (c *Client) Solve(ctx context.Context, img imagedata.Image) (Answer, error) {
	body, err := json.Marshal(Request{ImageDataURL: img.DataURL()})
	if err != nil {
		return Answer{}, fmt.Errorf("encode solve request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return Answer{}, fmt.Errorf("build solve request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return Answer{}, c.classify(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return Answer{}, &StatusError{Code: resp.StatusCode}
	}

	var out Answer
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		if ctx.Err() != nil {
			return Answer{}, c.classify(ctx, err)
		}
		return Answer{}, fmt.Errorf("decode solve response: %w", err)
	}
	logging.WithContext(ctx, c.logger).Debug("solve response received",
		logging.Duration("elapsed", time.Since(started)),
		logging.Int("request_bytes", len(body)),
	)
	return out, nil
}

func (c *Client) classify(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s", ErrTimeout, c.timeout)
	}
	return fmt.Errorf("solve request: %w", err)
}

// Health queries the /health route on the endpoint's host.
func (c *Client) Health(ctx context.Context) (Health, error) {
	u, err := url.Parse(c.url)
	if err != nil {
		return Health{}, fmt.Errorf("parse solver url: %w", err)
	}
	u.Path = "/health"
	u.RawQuery = ""

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Health{}, fmt.Errorf("build health request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return Health{}, c.classify(ctx, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Health{}, &StatusError{Code: resp.StatusCode}
	}
	var h Health
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		return Health{}, fmt.Errorf("decode health response: %w", err)
	}
	return h, nil
}
