// Package renderer talks to the subtitle rendering engine. The engine is
// opaque to the worker: it takes a source reference in, event stream out.
package renderer

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Request describes one render to the engine.
type Request struct {
	JobID     string `json:"job_id"`
	UserID    string `json:"user_id"`
	VideoID   string `json:"video_id"`
	SourceKey string `json:"source_key"`
}

// Result is the terminal event of a successful render.
type Result struct {
	OutputKey      string `json:"output_key"`
	ProjectFileRef string `json:"project_file_ref,omitempty"`
}

// ProgressFunc receives percent values as the engine reports them. The
// engine owns the scale; callers should treat values defensively.
type ProgressFunc func(percent int)

type Client interface {
	Render(ctx context.Context, req Request, onProgress ProgressFunc) (Result, error)
}

// event is one NDJSON line of the engine's response stream.
type event struct {
	Type    string `json:"type"`
	Percent int    `json:"percent,omitempty"`
	Message string `json:"message,omitempty"`
	Result
}

type HTTPClient struct {
	baseURL string
	client  *http.Client
}

func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Minute},
	}
}

// Render posts the job and consumes the engine's event stream until a
// completed or failed event arrives. A stream that ends without a
// terminal event is an error.
func (c *HTTPClient) Render(ctx context.Context, req Request, onProgress ProgressFunc) (Result, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return Result{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/render", bytes.NewReader(body))
	if err != nil {
		return Result{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/x-ndjson")

	res, err := c.client.Do(httpReq)
	if err != nil {
		return Result{}, err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return Result{}, fmt.Errorf("renderer http %d", res.StatusCode)
	}

	sc := bufio.NewScanner(res.Body)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}

		var ev event
		if err := json.Unmarshal(line, &ev); err != nil {
			return Result{}, fmt.Errorf("renderer stream: %w", err)
		}

		switch ev.Type {
		case "progress":
			if onProgress != nil {
				onProgress(ev.Percent)
			}
		case "completed":
			return ev.Result, nil
		case "failed":
			if ev.Message == "" {
				ev.Message = "render failed"
			}
			return Result{}, fmt.Errorf("renderer: %s", ev.Message)
		}
	}
	if err := sc.Err(); err != nil {
		return Result{}, fmt.Errorf("renderer stream: %w", err)
	}
	return Result{}, fmt.Errorf("renderer stream ended without a terminal event")
}
