// Package script talks to the narration-script generation service and caches
// its results on disk. Generated scripts become per-slide narration
// overrides.
package script

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
)

var (
	// ErrBadStatus indicates a non-200 response from the generation service.
	ErrBadStatus = errors.New("script service returned non-OK status")

	// ErrEmptyScript indicates the service returned no usable text.
	ErrEmptyScript = errors.New("script service returned empty script")
)

const defaultTimeout = 60 * time.Second

// Client generates narration scripts for slides.
type Client struct {
	baseURL string
	http    *http.Client
	cache   *Cache
	tone    string
}

// NewClient creates a script client. cache may be nil to disable caching.
func NewClient(baseURL string, cache *Cache) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
		cache:   cache,
	}
}

// SetHTTPClient replaces the underlying HTTP client.
func (c *Client) SetHTTPClient(hc *http.Client) { c.http = hc }

// SetTone sets the delivery tone sent with generation requests. Tone is part
// of the cache key, so switching tones does not serve stale scripts.
func (c *Client) SetTone(tone string) { c.tone = tone }

type slideRef struct {
	Text string `json:"text"`
}

type generateRequest struct {
	PreviousSlides []slideRef `json:"previous_slides"`
	CurrentSlide   slideRef   `json:"current_slide"`
	SlideIndex     int        `json:"slide_index"`
	Tone           string     `json:"tone,omitempty"`
}

type generateResponse struct {
	Speech string `json:"speech"`
}

// Generate produces a narration script for the slide at index, giving the
// service the preceding slides as context. Cached results are returned
// without a network round trip.
func (c *Client) Generate(ctx context.Context, previous []string, current string, index int) (string, error) {
	key := Key(c.tone + "\x00" + current)
	if c.cache != nil {
		if script, ok := c.cache.Get(key); ok {
			log.Debug("script cache hit", "slide", index)
			return script, nil
		}
	}

	refs := make([]slideRef, len(previous))
	for i, text := range previous {
		refs[i] = slideRef{Text: text}
	}
	body, err := json.Marshal(generateRequest{
		PreviousSlides: refs,
		CurrentSlide:   slideRef{Text: current},
		SlideIndex:     index,
		Tone:           c.tone,
	})
	if err != nil {
		return "", fmt.Errorf("encoding generation request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate_speech", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("generating script: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: %d", ErrBadStatus, resp.StatusCode)
	}

	var parsed generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decoding script: %w", err)
	}
	script := strings.TrimSpace(parsed.Speech)
	if script == "" {
		return "", ErrEmptyScript
	}
	log.Debug("script generated", "slide", index, "elapsed", time.Since(start), "chars", len(script))

	if c.cache != nil {
		if err := c.cache.Put(key, script); err != nil {
			log.Debug("script cache write failed", "error", err)
		}
	}
	return script, nil
}
