// Package answer implements the HTTP client for the presentation
// question-answering service. Failures here are always soft: playback
// resumes whether or not an answer came back.
package answer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"
)

var (
	// ErrRateLimited indicates the local limiter rejected the request before
	// it reached the network.
	ErrRateLimited = errors.New("answer request rate limited")

	// ErrBadStatus indicates a non-200 response from the service.
	ErrBadStatus = errors.New("answer service returned non-OK status")
)

const defaultTimeout = 30 * time.Second

// Client asks questions against a remote answer endpoint. A token-bucket
// limiter keeps a key held down in the question field from hammering the
// service.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithRateLimit sets the request rate limit and burst.
func WithRateLimit(r rate.Limit, burst int) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(r, burst) }
}

// NewClient creates an answer client for the given base URL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
		limiter: rate.NewLimiter(rate.Every(2*time.Second), 3),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type askRequest struct {
	SlideText string `json:"slide_text"`
	Question  string `json:"question"`
}

type askResponse struct {
	Answer string `json:"answer"`
}

// Ask submits the deck transcript and question, returning the spoken answer
// text. It satisfies the engine's answer service interface.
func (c *Client) Ask(ctx context.Context, slideText, question string) (string, error) {
	if !c.limiter.Allow() {
		return "", ErrRateLimited
	}

	body, err := json.Marshal(askRequest{SlideText: slideText, Question: question})
	if err != nil {
		return "", fmt.Errorf("encoding question: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/answer", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("asking question: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: %d", ErrBadStatus, resp.StatusCode)
	}

	var parsed askResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decoding answer: %w", err)
	}

	log.Debug("question answered", "elapsed", time.Since(start), "chars", len(parsed.Answer))
	return strings.TrimSpace(parsed.Answer), nil
}
