package catalog

import (
	"context"
	"io"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// retryCounter tracks every retried outbound catalog call, broken down by HTTP path, so an
// operator scraping /metrics can see which endpoint is drawing the most backoff.
var retryCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "playlistimport_catalog_retries_total",
	Help: "Total number of retried outbound catalog requests, by request path.",
}, []string{"path"})

// RetryPolicy carries the tunables from Config.Catalog that govern the retry transport.
type RetryPolicy struct {
	MaxRetries       int
	BaseDelay        time.Duration
	MaxDelay         time.Duration
	TotalCallBudget  time.Duration
	ConcurrencyLimit int
}

// retryingTransport wraps an authenticated http.RoundTripper with the exponential-backoff,
// full-jitter retry policy and the process-wide concurrency semaphore. One instance is shared
// across every worker's outbound calls, so the slot is acquired once per logical call and held
// across that call's retries, per the shared-client-handle and semaphore designs.
type retryingTransport struct {
	base   http.RoundTripper
	policy RetryPolicy
	sem    *semaphore.Weighted
	logger *zap.Logger

	// rngMu serializes access to rng, which is not safe for concurrent use.
	rngMu sync.Mutex
	rng   *rand.Rand
}

// newRetryingTransport builds a transport that retries base's responses per policy. #nosec
// G404 -- jitter does not need to be cryptographically secure.
func newRetryingTransport(base http.RoundTripper, policy RetryPolicy, logger *zap.Logger) *retryingTransport {
	return &retryingTransport{
		base:   base,
		policy: policy,
		sem:    semaphore.NewWeighted(int64(policy.ConcurrencyLimit)),
		logger: logger,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// RoundTrip implements http.RoundTripper. It acquires one request slot for the whole logical
// call (including its retries), bounds the call by TotalCallBudget, and retries transient
// failures with exponential backoff and full jitter, honoring a server Retry-After on 429.
func (t *retryingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.sem.Acquire(req.Context(), 1); err != nil {
		return nil, &Error{Kind: ErrorKindPermanent, Op: req.URL.Path, Err: err}
	}
	defer t.sem.Release(1)

	ctx, cancel := context.WithTimeout(req.Context(), t.policy.TotalCallBudget)
	defer cancel()
	req = req.WithContext(ctx)

	bodyBytes, err := bufferBody(req)
	if err != nil {
		return nil, &Error{Kind: ErrorKindPermanent, Op: req.URL.Path, Err: err}
	}

	maxRetries := t.policy.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, &Error{Kind: ErrorKindPermanent, Op: req.URL.Path, Err: err}
		}

		if bodyBytes != nil {
			req.Body = io.NopCloser(newByteReader(bodyBytes))
		}

		resp, doErr := t.base.RoundTrip(req)
		kind, retryAfter, retryable := classify(resp, doErr)
		if !retryable {
			if doErr != nil {
				return nil, &Error{Kind: kind, Op: req.URL.Path, Err: doErr}
			}
			if kind != ErrorKindTransient && resp.StatusCode >= 400 {
				_ = resp.Body.Close()
				return nil, &Error{Kind: kind, StatusCode: resp.StatusCode, Op: req.URL.Path, Err: httpStatusError(resp.StatusCode)}
			}
			return resp, nil
		}

		lastErr = doErr
		if resp != nil {
			lastErr = httpStatusError(resp.StatusCode)
			_ = resp.Body.Close()
		}

		if attempt == maxRetries {
			break
		}

		delay := t.backoff(attempt)
		if retryAfter > 0 {
			delay = retryAfter
		}

		retryCounter.WithLabelValues(req.URL.Path).Inc()
		t.logger.Warn("catalog request retrying",
			zap.String("path", req.URL.Path),
			zap.Int("attempt", attempt+1),
			zap.Int("maxRetries", maxRetries),
			zap.Duration("delay", delay),
			zap.Error(lastErr))

		if err := sleepWithContext(ctx, delay); err != nil {
			return nil, &Error{Kind: ErrorKindPermanent, Op: req.URL.Path, Err: err}
		}
	}

	return nil, &Error{Kind: ErrorKindPermanent, Op: req.URL.Path, Err: lastErr}
}

// backoff computes the full-jitter exponential delay for the given zero-based attempt number.
func (t *retryingTransport) backoff(attempt int) time.Duration {
	base := t.policy.BaseDelay
	maxDelay := t.policy.MaxDelay

	scaled := float64(base) * math.Pow(2, float64(attempt))
	capped := math.Min(float64(maxDelay), scaled)

	t.rngMu.Lock()
	jitter := 0.5 + t.rng.Float64()
	t.rngMu.Unlock()

	return time.Duration(capped * jitter)
}

// classify decides whether a response/error pair is retryable and, if so, what ErrorKind and
// server-requested delay apply. Connection errors and read timeouts are always retryable.
func classify(resp *http.Response, err error) (kind ErrorKind, retryAfter time.Duration, retryable bool) {
	if err != nil {
		return ErrorKindTransient, 0, true
	}
	if resp == nil {
		return ErrorKindTransient, 0, true
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return ErrorKindTransient, parseRetryAfter(resp), true
	case resp.StatusCode >= http.StatusInternalServerError:
		return ErrorKindTransient, 0, true
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ErrorKindAuth, 0, false
	case resp.StatusCode >= 400:
		return ErrorKindPermanent, 0, false
	default:
		return ErrorKindTransient, 0, false
	}
}

func parseRetryAfter(resp *http.Response) time.Duration {
	raw := resp.Header.Get("Retry-After")
	if raw == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(raw); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if when, err := http.ParseTime(raw); err == nil {
		if until := time.Until(when); until > 0 {
			return until
		}
	}
	return 0
}

func sleepWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// bufferBody reads req.Body into memory so it can be replayed across retry attempts.
func bufferBody(req *http.Request) ([]byte, error) {
	if req.Body == nil {
		return nil, nil
	}
	data, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, err
	}
	_ = req.Body.Close()
	return data, nil
}

func newByteReader(b []byte) io.Reader {
	return &byteReader{data: b}
}

type byteReader struct {
	data []byte
	pos  int
}

func (r *byteReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}
	n := copy(p, r.data[r.pos:])
	r.pos += n
	return n, nil
}

func httpStatusError(code int) error {
	return &url.Error{Op: "catalog", Err: statusError(code)}
}

type statusError int

func (s statusError) Error() string {
	return "unexpected status " + strconv.Itoa(int(s))
}
