// Package cloud talks to the external analysis, render and chat services.
package cloud

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	defaultTimeout = 60 * time.Second
	maxErrorBody   = 4096
	maxBody        = 32 << 20
)

// ErrTransport wraps failures to reach a service at all. The operation is
// treated as not started and is safe to retry.
var ErrTransport = errors.New("service unreachable")

// ServiceError is a non-2xx response from an external service.
type ServiceError struct {
	Service    string
	StatusCode int
	Body       string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s service: HTTP %d: %s", e.Service, e.StatusCode, e.Body)
}

// IsRetryable is true for server errors. Client errors are permanent.
func (e *ServiceError) IsRetryable() bool {
	return e.StatusCode >= 500
}

// IsNotFound reports whether err is a 404 from a service.
func IsNotFound(err error) bool {
	var se *ServiceError
	return errors.As(err, &se) && se.StatusCode == http.StatusNotFound
}

// IsUpstream reports whether err came from talking to an external service.
func IsUpstream(err error) bool {
	var se *ServiceError
	return errors.Is(err, ErrTransport) || errors.As(err, &se)
}

// Options configures a service client.
type Options struct {
	BaseURL string
	Token   string
	Timeout time.Duration
	Logger  *slog.Logger
	HTTP    *http.Client
}

type client struct {
	service    string
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

func newClient(service string, opts Options) *client {
	hc := opts.HTTP
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &client{
		service:    service,
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		token:      opts.Token,
		httpClient: hc,
		logger:     logger.With("service", service),
	}
}

// do sends a request and returns the response body of a 2xx reply.
func (c *client) do(ctx context.Context, method, path string, in any) ([]byte, error) {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("marshal %s request: %w", c.service, err)
		}
		body = bytes.NewReader(data)
	}

	url := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	reqID := uuid.NewString()
	req.Header.Set("X-Request-Id", reqID)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %s %s: %v", ErrTransport, method, url, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("service request",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"request_id", reqID,
		"elapsed", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &ServiceError{Service: c.service, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s response: %v", ErrTransport, c.service, err)
	}
	return data, nil
}

func (c *client) doJSON(ctx context.Context, method, path string, in, out any) error {
	data, err := c.do(ctx, method, path, in)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("unmarshal %s response: %w", c.service, err)
	}
	return nil
}
