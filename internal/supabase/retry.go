package supabase

import (
	"bytes"
	"io"
	"math"
	"math/rand"
	"net/http"
	"time"
)

// RetryConfig controls transient-failure retries for backend requests.
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
	// Jitter randomizes each backoff by up to this fraction.
	Jitter float64
}

// DefaultRetryConfig retries three times with exponential backoff from
// 100ms, capped at 5s.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		Multiplier:     2.0,
		Jitter:         0.1,
	}
}

// retryTransport retries requests that failed at the network layer or came
// back with a throttling or server error status. Request bodies are buffered
// so attempts can be replayed. Writes are only retried after a 429, where
// the server has not processed the request; a network error or 5xx on a
// write may have landed after the row was committed, and replaying it would
// surface a bogus conflict.
type retryTransport struct {
	base http.RoundTripper
	cfg  RetryConfig
}

func newRetryTransport(base http.RoundTripper, cfg RetryConfig) *retryTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &retryTransport{base: base, cfg: cfg}
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var body []byte
	if req.Body != nil {
		var err error
		body, err = io.ReadAll(req.Body)
		req.Body.Close()
		if err != nil {
			return nil, err
		}
	}

	var resp *http.Response
	var err error
	for attempt := 0; ; attempt++ {
		if body != nil {
			req.Body = io.NopCloser(bytes.NewReader(body))
		}
		resp, err = t.base.RoundTrip(req)

		if !t.shouldRetry(req, resp, err) || attempt >= t.cfg.MaxRetries {
			return resp, err
		}
		if resp != nil {
			// Drain so the connection can be reused.
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}

		select {
		case <-req.Context().Done():
			return nil, req.Context().Err()
		case <-time.After(t.backoff(attempt)):
		}
	}
}

func (t *retryTransport) shouldRetry(req *http.Request, resp *http.Response, err error) bool {
	if err != nil {
		return idempotent(req.Method)
	}
	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		return true
	case http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return idempotent(req.Method)
	}
	return false
}

func idempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

func (t *retryTransport) backoff(attempt int) time.Duration {
	d := float64(t.cfg.InitialBackoff) * math.Pow(t.cfg.Multiplier, float64(attempt))
	if max := float64(t.cfg.MaxBackoff); d > max {
		d = max
	}
	if t.cfg.Jitter > 0 {
		d += d * t.cfg.Jitter * (rand.Float64()*2 - 1)
	}
	return time.Duration(d)
}
