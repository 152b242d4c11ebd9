// Package rcsb downloads structure files from the RCSB file service, with a
// per-fetch deadline and a hard size limit enforced while reading the body.
package rcsb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	pkgerrors "github.com/sjando/jolecule/pkg/errors"
	"github.com/sjando/jolecule/pkg/metrics"
	"github.com/sjando/jolecule/pkg/resilience"
)

// Client fetches raw structure files over HTTP. A circuit breaker trips
// after repeated remote failures so an RCSB outage fails fast instead of
// holding every request for the full fetch timeout.
type Client struct {
	baseURL string
	timeout time.Duration
	maxSize int
	http    *http.Client
	breaker *resilience.CircuitBreaker
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New creates a Client. The metrics argument may be nil.
func New(baseURL string, timeout time.Duration, maxSize int, m *metrics.Metrics) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		maxSize: maxSize,
		http:    &http.Client{},
		breaker: resilience.NewCircuitBreaker("rcsb-fetch", resilience.CircuitBreakerConfig{}),
		metrics: m,
		logger:  slog.Default().With("component", "rcsb-client"),
	}
}

// URL returns the download URL for a structure id.
func (c *Client) URL(structureID string) string {
	return fmt.Sprintf("%s/%s.pdb", c.baseURL, structureID)
}

// Fetch downloads the structure file for a structure id. It fails with
// ErrFetchTimeout when the deadline passes, ErrStructureNotFound on a 404,
// ErrFetchFailed on any other non-200 response, a transport error, or an
// open circuit, and ErrContentTooLarge when the body exceeds the size limit.
func (c *Client) Fetch(ctx context.Context, structureID string) ([]byte, error) {
	var body []byte
	var fetchErr error
	err := c.breaker.Execute(func() error {
		body, fetchErr = c.fetch(ctx, structureID)
		if errors.Is(fetchErr, pkgerrors.ErrContentTooLarge) ||
			errors.Is(fetchErr, pkgerrors.ErrStructureNotFound) {
			// An oversized file or a missing id means the remote is healthy.
			return nil
		}
		return fetchErr
	})
	if err != nil && fetchErr == nil {
		c.count("circuit_open")
		return nil, pkgerrors.Newf(pkgerrors.ErrFetchFailed, http.StatusServiceUnavailable,
			"fetching %s: %v", c.URL(structureID), err)
	}
	return body, fetchErr
}

func (c *Client) fetch(ctx context.Context, structureID string) ([]byte, error) {
	url := c.URL(structureID)
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", url, err)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			c.count("timeout")
			return nil, pkgerrors.Newf(pkgerrors.ErrFetchTimeout, http.StatusGatewayTimeout,
				"fetching %s: deadline %v exceeded", url, c.timeout)
		}
		c.count("error")
		return nil, pkgerrors.Newf(pkgerrors.ErrFetchFailed, http.StatusBadGateway,
			"fetching %s: %v", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		c.count("not_found")
		return nil, pkgerrors.Newf(pkgerrors.ErrStructureNotFound, http.StatusNotFound,
			"fetching %s: status 404", url)
	}
	if resp.StatusCode != http.StatusOK {
		c.count("error")
		return nil, pkgerrors.Newf(pkgerrors.ErrFetchFailed, http.StatusBadGateway,
			"fetching %s: status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, int64(c.maxSize)+1))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			c.count("timeout")
			return nil, pkgerrors.Newf(pkgerrors.ErrFetchTimeout, http.StatusGatewayTimeout,
				"reading %s: deadline %v exceeded", url, c.timeout)
		}
		c.count("error")
		return nil, pkgerrors.Newf(pkgerrors.ErrFetchFailed, http.StatusBadGateway,
			"reading %s: %v", url, err)
	}
	if len(body) > c.maxSize {
		c.count("too_large")
		return nil, pkgerrors.Newf(pkgerrors.ErrContentTooLarge, http.StatusRequestEntityTooLarge,
			"fetching %s: body exceeds %d bytes", url, c.maxSize)
	}

	c.count("ok")
	if c.metrics != nil {
		c.metrics.FetchBytes.Observe(float64(len(body)))
	}
	c.logger.Debug("structure fetched",
		"structure_id", structureID,
		"bytes", len(body),
		"latency_ms", time.Since(start).Milliseconds(),
	)
	return body, nil
}

func (c *Client) count(status string) {
	if c.metrics != nil {
		c.metrics.FetchesTotal.WithLabelValues(status).Inc()
	}
}
