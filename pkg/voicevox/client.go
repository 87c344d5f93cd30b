package voicevox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/midorin-Linux/discord-parrot/pkg/logger"
)

// Client is a stateless façade over the VOICEVOX engine HTTP API. All
// calls are plain request/response; nothing is cached locally.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
}

// NewClient creates a VOICEVOX client with a single shared connection
// pool and a per-request timeout.
func NewClient(rawURL string, timeout time.Duration) (*Client, error) {
	base, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid voicevox url: %w", err)
	}

	logger.InfoCF("voicevox", "Creating VOICEVOX client", map[string]any{
		"url":     rawURL,
		"timeout": timeout.String(),
	})

	return &Client{
		baseURL: base,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = path
	if query != nil {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// do runs a request and returns the response body on 2xx. Transport
// failures wrap ErrEngineUnavailable, non-2xx statuses ErrEngineRejected.
func (c *Client) do(ctx context.Context, method, url string, body io.Reader, action string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s request: %w", action, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.ErrorCF("voicevox", "Request failed", map[string]any{
			"action": action,
			"error":  err.Error(),
		})
		return nil, fmt.Errorf("%w: %s: %v", ErrEngineUnavailable, action, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		logger.WarnCF("voicevox", "Request rejected", map[string]any{
			"action": action,
			"status": resp.StatusCode,
		})
		return nil, fmt.Errorf("%w: %s returned status %d", ErrEngineRejected, action, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: failed to read response body: %v", ErrEngineUnavailable, action, err)
	}
	return data, nil
}

// CreateQuery requests a synthesis plan for text from the engine, then
// overwrites the plan's speedScale field before returning it as an
// opaque serialized document.
func (c *Client) CreateQuery(ctx context.Context, text string, speakerID int, speedScale float64) ([]byte, error) {
	logger.DebugCF("voicevox", "Creating audio query", map[string]any{
		"text_length": len(text),
		"speaker_id":  speakerID,
		"speed_scale": speedScale,
	})

	query := url.Values{}
	query.Set("text", text)
	query.Set("speaker", strconv.Itoa(speakerID))

	raw, err := c.do(ctx, http.MethodPost, c.endpoint("/audio_query", query), nil, "audio query")
	if err != nil {
		return nil, err
	}

	var plan map[string]any
	if err := json.Unmarshal(raw, &plan); err != nil {
		return nil, fmt.Errorf("%w: audio query: malformed plan: %v", ErrEngineRejected, err)
	}
	plan["speedScale"] = speedScale

	doc, err := json.Marshal(plan)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize audio query: %w", err)
	}
	return doc, nil
}

// Synthesize posts a query document and returns the engine's raw audio
// bytes unmodified.
func (c *Client) Synthesize(ctx context.Context, queryDoc []byte, speakerID int) ([]byte, error) {
	logger.DebugCF("voicevox", "Synthesizing audio", map[string]any{
		"speaker_id": speakerID,
	})

	query := url.Values{}
	query.Set("speaker", strconv.Itoa(speakerID))

	audio, err := c.do(ctx, http.MethodPost, c.endpoint("/synthesis", query), bytes.NewReader(queryDoc), "synthesis")
	if err != nil {
		return nil, err
	}

	logger.DebugCF("voicevox", "Synthesis complete", map[string]any{
		"size_bytes": len(audio),
	})
	return audio, nil
}
