package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"k8s.io/klog/v2"
)

// Backoff controls the retry schedule: InitialInterval doubles per attempt,
// capped at MaxInterval when set.
type Backoff struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func (b Backoff) delay(attempt int) time.Duration {
	d := b.InitialInterval << uint(attempt)
	if b.MaxInterval > 0 && (d > b.MaxInterval || d <= 0) {
		return b.MaxInterval
	}
	return d
}

var (
	errRateLimited   = errors.New("rate limited")
	errServerError   = errors.New("server error")
	errBadRequest    = errors.New("forecaster rejected request")
	errCircuitOpen   = errors.New("circuit breaker open")
	errNoHTTPClient  = errors.New("http client not configured")
	errInvalidConfig = errors.New("invalid backoff configuration")
)

// caller sends requests to the model service through a circuit breaker and
// retries transient failures.
type caller struct {
	client  *http.Client
	backoff Backoff
	circuit *gobreaker.CircuitBreaker
}

// checkStatus converts non-2xx responses into errors. Only rate limiting and
// server errors are retryable; the body is closed for every rejected response.
func checkStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		resp.Body.Close()
		return errRateLimited
	case resp.StatusCode >= 500:
		resp.Body.Close()
		return fmt.Errorf("%w: %d", errServerError, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		resp.Body.Close()
		return fmt.Errorf("%w: %d", errBadRequest, resp.StatusCode)
	}
	return nil
}

// retryable reports whether err is transient. Transport errors count as transient.
func retryable(err error) bool {
	return !errors.Is(err, errBadRequest)
}

// do builds and sends a fresh request per attempt until one succeeds, a
// non-retryable error occurs, the breaker opens or retries run out.
func (c *caller) do(ctx context.Context, build func() (*http.Request, error)) (*http.Response, error) {
	if c.client == nil {
		return nil, errNoHTTPClient
	}
	if c.backoff.MaxRetries < 0 || c.backoff.InitialInterval <= 0 {
		return nil, errInvalidConfig
	}

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		req, err := build()
		if err != nil {
			return nil, err
		}
		req = req.WithContext(ctx)

		result, err := c.circuit.Execute(func() (interface{}, error) {
			resp, err := c.client.Do(req)
			if err != nil {
				return nil, err
			}
			if err := checkStatus(resp); err != nil {
				return nil, err
			}
			return resp, nil
		})
		if err == nil {
			return result.(*http.Response), nil
		}

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", errCircuitOpen, err)
		}
		if !retryable(err) || attempt >= c.backoff.MaxRetries {
			return nil, err
		}

		wait := c.backoff.delay(attempt)
		klog.V(3).InfoS("Retrying forecaster request", "attempt", attempt+1, "wait", wait, "err", err)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}
