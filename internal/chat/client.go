// Package chat reads the backend's streaming chat endpoint: a chunked HTTP
// response of "data: <chunk>" lines closed by a [DONE] sentinel, with an
// in-band __SOURCES__ side channel for citations.
package chat

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
)

const (
	streamPath    = "/api/chat/stream"
	doneSentinel  = "[DONE]"
	sourcesMarker = "__SOURCES__:"
)

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *log.Logger
}

type Option func(*Client)

func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithLogger(l *log.Logger) Option {
	return func(c *Client) { c.logger = l }
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		// No timeout: the stream stays open as long as the agent talks.
		httpClient: &http.Client{Timeout: 0},
		logger:     log.New(io.Discard, "", 0),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Request is the chat prompt payload.
type Request struct {
	SessionID string `json:"session_id,omitempty"`
	Message   string `json:"message"`
}

// Source is one citation delivered on the side channel.
type Source struct {
	ID      string `json:"id,omitempty"`
	Title   string `json:"title,omitempty"`
	URL     string `json:"url,omitempty"`
	Snippet string `json:"snippet,omitempty"`
}

// Result is the accumulated outcome of a completed stream.
type Result struct {
	Content string
	Sources []Source
}

// Handlers receives incremental stream progress. Either field may be nil.
type Handlers struct {
	OnDelta   func(string)
	OnSources func([]Source)
}

// Stream posts the prompt and consumes the response stream. Cancellation is
// cooperative and is not a failure: when ctx is cancelled mid-stream the
// return is (nil, nil) — no outcome, neither completion nor error.
func (c *Client) Stream(ctx context.Context, req Request, h Handlers) (*Result, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+streamPath, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, nil
		}
		return nil, fmt.Errorf("chat request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, decodeAPIError(resp)
	}

	var (
		content strings.Builder
		sources []Source
	)

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		chunk := strings.TrimPrefix(line, "data:")
		// A single leading space is delimiter, not content.
		chunk = strings.TrimPrefix(chunk, " ")
		if chunk == "" {
			continue
		}
		if chunk == doneSentinel {
			break
		}
		if rest, ok := strings.CutPrefix(chunk, sourcesMarker); ok {
			var batch []Source
			if err := json.Unmarshal([]byte(rest), &batch); err != nil {
				c.logger.Printf("chat: dropping malformed sources payload: %v", err)
				continue
			}
			sources = append(sources, batch...)
			if h.OnSources != nil {
				h.OnSources(batch)
			}
			continue
		}
		content.WriteString(chunk)
		if h.OnDelta != nil {
			h.OnDelta(chunk)
		}
	}

	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return nil, nil
		}
		return nil, fmt.Errorf("read chat stream: %w", err)
	}
	if ctx.Err() != nil {
		return nil, nil
	}

	return &Result{Content: content.String(), Sources: sources}, nil
}

// decodeAPIError extracts a human-readable message from an error response
// body, falling back to the raw status.
func decodeAPIError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	var apiErr struct {
		Error   string `json:"error"`
		Message string `json:"message"`
		Detail  string `json:"detail"`
	}
	if json.Unmarshal(body, &apiErr) == nil {
		for _, msg := range []string{apiErr.Error, apiErr.Message, apiErr.Detail} {
			if strings.TrimSpace(msg) != "" {
				return fmt.Errorf("chat backend: %s (%s)", msg, resp.Status)
			}
		}
	}
	if len(bytes.TrimSpace(body)) > 0 {
		return fmt.Errorf("chat backend: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	return fmt.Errorf("chat backend: unexpected status %s", resp.Status)
}
