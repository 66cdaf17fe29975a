// Package httpexec is the default domain.Task payload executor: it treats
// the task's payload as a webhook request description and performs it over
// HTTP. It is one possible worker.PayloadExecutor, not a requirement of the
// dispatch core (spec §1 places payload execution out of the core's scope).
package httpexec

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/elwyn-b/pgqueue/internal/domain"
)

const defaultTimeout = 30 * time.Second

// taskPayload is the subset of a task's payload this executor understands.
type taskPayload struct {
	URL            string            `json:"url"`
	Method         string            `json:"method"`
	Headers        map[string]string `json:"headers"`
	Body           string            `json:"body"`
	TimeoutSeconds int               `json:"timeout_seconds"`
}

type Executor struct {
	client *http.Client
	logger *slog.Logger
}

func NewExecutor(logger *slog.Logger) *Executor {
	return &Executor{
		client: &http.Client{
			Timeout: 5 * time.Minute,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					MinVersion: tls.VersionTLS12,
				},
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
			},
			CheckRedirect: func(_ *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("stopped after 10 redirects")
				}
				return nil
			},
		},
		logger: logger.With("component", "httpexec"),
	}
}

func (e *Executor) Execute(ctx context.Context, task *domain.Task) (json.RawMessage, error) {
	var p taskPayload
	if err := json.Unmarshal(task.Payload, &p); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	if p.URL == "" {
		return nil, fmt.Errorf("payload missing url")
	}
	if p.Method == "" {
		p.Method = http.MethodPost
	}

	timeout := defaultTimeout
	if p.TimeoutSeconds > 0 {
		timeout = time.Duration(p.TimeoutSeconds) * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var bodyReader io.Reader
	if p.Body != "" {
		bodyReader = strings.NewReader(p.Body)
	}

	req, err := http.NewRequestWithContext(ctx, p.Method, p.URL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, v := range p.Headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	e.logger.InfoContext(ctx, "sending request", "task_id", task.ID, "method", p.Method, "url", p.URL)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	duration := time.Since(start)

	e.logger.InfoContext(ctx, "received response", "task_id", task.ID, "status", resp.StatusCode, "duration", duration)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	result := map[string]any{
		"status_code": resp.StatusCode,
		"duration_ms": duration.Milliseconds(),
	}
	if len(respBody) > 0 && json.Valid(respBody) {
		result["body"] = json.RawMessage(respBody)
	}
	return json.Marshal(result)
}
