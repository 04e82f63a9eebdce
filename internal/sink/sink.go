// Package sink delivers finished survey payloads.
package sink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pavelanni/eqarena/internal/model"
)

// DefaultTimeout bounds a single submission POST.
const DefaultTimeout = 15 * time.Second

// Result is the JSON body a sheet endpoint replies with.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ErrRejected means the endpoint replied with success=false.
var ErrRejected = errors.New("submission rejected")

// HTTPSink posts payloads as a form field named data.
type HTTPSink struct {
	URL     string
	Client  *http.Client
	Timeout time.Duration
}

// NewHTTPSink creates a sink for endpoint.
func NewHTTPSink(endpoint string, timeout time.Duration) *HTTPSink {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPSink{URL: endpoint, Client: &http.Client{}, Timeout: timeout}
}

// Send implements survey.Sink. Transport errors, non-2xx statuses and a
// success=false body are all errors.
func (s *HTTPSink) Send(ctx context.Context, p model.Payload) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	form := url.Values{"data": {string(data)}}

	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	slog.Debug("posting submission", "url", s.URL, "questions", len(p.Questions))
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("post submission: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("post submission: status %d", resp.StatusCode)
	}

	var reply struct {
		Success *bool  `json:"success"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(body, &reply) == nil && reply.Success != nil && !*reply.Success {
		if reply.Error != "" {
			return fmt.Errorf("%w: %s", ErrRejected, reply.Error)
		}
		return ErrRejected
	}
	slog.Debug("submission accepted", "url", s.URL, "status", resp.StatusCode)
	return nil
}

// Archive persists payloads locally.
type Archive interface {
	InsertResponse(ctx context.Context, p model.Payload) (int64, error)
}

// StoreSink writes payloads straight into the local archive.
type StoreSink struct {
	Archive Archive
}

// Send implements survey.Sink.
func (s StoreSink) Send(ctx context.Context, p model.Payload) error {
	if _, err := s.Archive.InsertResponse(ctx, p); err != nil {
		return fmt.Errorf("archive submission: %w", err)
	}
	return nil
}
