// Package httpretry provides an HTTP client with retry, exponential backoff
// and jitter, used by the CLI to talk to a running report server.
package httpretry

import (
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"time"

	"github.com/orsg/prisme/internal/pkg/logger"
)

// HTTPDoer is the interface for executing HTTP requests.
// Both *http.Client and *RetryClient satisfy this interface.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// RetryClient wraps an HTTPDoer with retry logic using exponential backoff and jitter.
type RetryClient struct {
	client     HTTPDoer
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

// NewRetryClient creates a new RetryClient that wraps the given HTTPDoer.
// If client is nil, a default http.Client without timeout is used: report
// generation has no upper bound. maxRetries defaults to 3.
func NewRetryClient(client HTTPDoer, maxRetries int) *RetryClient {
	if client == nil {
		client = &http.Client{}
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &RetryClient{
		client:     client,
		maxRetries: maxRetries,
		baseDelay:  500 * time.Millisecond,
		maxDelay:   10 * time.Second,
	}
}

// WithBackoff overrides the delay bounds.
func (rc *RetryClient) WithBackoff(base, max time.Duration) *RetryClient {
	rc.baseDelay = base
	rc.maxDelay = max
	return rc
}

// Do executes the request with retries.
//
// Connection errors are retried for every request. Retryable statuses
// (429, 502, 503, 504) are retried only for requests that are safe to
// repeat: GET, and POSTs flagged with the Idempotency header. A 500 is never
// retried since the server uses it for failed generations. The final
// response is returned as-is so the caller can read its body.
func (rc *RetryClient) Do(req *http.Request) (*http.Response, error) {
	var lastErr error
	repeatable := req.Method == http.MethodGet || req.Header.Get(IdempotentHeader) != ""

	for attempt := 0; attempt <= rc.maxRetries; attempt++ {
		if req.Context().Err() != nil {
			if lastErr != nil {
				return nil, lastErr
			}
			return nil, req.Context().Err()
		}

		if attempt > 0 {
			if req.GetBody != nil {
				body, err := req.GetBody()
				if err != nil {
					return nil, fmt.Errorf("httpretry: failed to reset request body: %w", err)
				}
				req.Body = body
			}

			delay := rc.calculateDelay(attempt)
			logger.Warn("retrying request", "attempt", attempt, "max", rc.maxRetries,
				"method", req.Method, "host", req.URL.Host, "path", req.URL.Path, "wait", delay.String())

			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-req.Context().Done():
				timer.Stop()
				if lastErr != nil {
					return nil, lastErr
				}
				return nil, req.Context().Err()
			}
		}

		resp, err := rc.client.Do(req)
		if err != nil {
			lastErr = err
			if req.Context().Err() != nil {
				return nil, err
			}
			continue
		}

		if !repeatable || !isRetryableStatus(resp.StatusCode) || attempt == rc.maxRetries {
			return resp, nil
		}

		// Drain for connection reuse.
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		lastErr = fmt.Errorf("httpretry: server returned retryable status %d", resp.StatusCode)
	}

	return nil, lastErr
}

// IdempotentHeader marks a non-GET request as safe to repeat.
const IdempotentHeader = "X-Idempotent"

// calculateDelay returns random(0, min(maxDelay, baseDelay * 2^(attempt-1))),
// floored at baseDelay/5.
func (rc *RetryClient) calculateDelay(attempt int) time.Duration {
	expDelay := float64(rc.baseDelay) * math.Pow(2, float64(attempt-1))
	if expDelay > float64(rc.maxDelay) {
		expDelay = float64(rc.maxDelay)
	}

	jittered := time.Duration(rand.Float64() * expDelay)
	if floor := rc.baseDelay / 5; jittered < floor {
		jittered = floor
	}
	return jittered
}

// isRetryableStatus reports transient gateway-level failures.
func isRetryableStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusTooManyRequests,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
