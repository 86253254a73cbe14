package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Fetcher is the transport seam the core consumes: raw bytes or a failure.
// Payload interpretation (sanity checks included) happens in the feed layer.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// userAgent identifies the widget to the feed hosts.
const userAgent = "vrijeme-widget/1.0"

// acceptHeader covers both feed shapes: the national feed is an XML
// document, the amateur feed an HTML page with an embedded script.
const acceptHeader = "application/xml, text/html;q=0.9, text/plain;q=0.8"

// FeedFetcher retrieves feed payloads over HTTP with retry and a circuit
// breaker, so a flapping upstream does not get hammered on every refresh.
// Requests are conditional: the validators of the last successful response
// per URL are replayed, and a 304 serves the cached body. The feeds update
// hourly at best while the widget polls every few minutes, so most polls
// move no payload at all.
type FeedFetcher struct {
	client         HTTPClient
	logger         *zap.Logger
	circuitBreaker *gobreaker.CircuitBreaker
	maxRetries     int
	retryDelay     time.Duration
	multiplier     float64

	mu    sync.Mutex
	cache map[string]*cachedResponse
}

// cachedResponse holds the last successful body for a URL together with the
// validators the origin attached to it.
type cachedResponse struct {
	body         []byte
	etag         string
	lastModified string
}

type Config struct {
	Timeout        time.Duration
	MaxRetries     int
	RetryDelay     time.Duration
	Multiplier     float64
	BreakerTimeout time.Duration
}

func NewFeedFetcher(name string, config Config, logger *zap.Logger) *FeedFetcher {
	httpClient := &http.Client{
		Timeout: config.Timeout,
	}

	// Circuit breaker settings
	breakerSettings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    0,
		Timeout:     config.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Info("Circuit breaker state changed",
				zap.String("fetcher", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}

	return &FeedFetcher{
		client:         httpClient,
		logger:         logger,
		circuitBreaker: gobreaker.NewCircuitBreaker(breakerSettings),
		maxRetries:     config.MaxRetries,
		retryDelay:     config.RetryDelay,
		multiplier:     config.Multiplier,
		cache:          make(map[string]*cachedResponse),
	}
}

// Fetch retrieves one payload, retrying transient failures with exponential
// backoff behind the circuit breaker. An unchanged feed (304) counts as a
// success and yields the previously fetched body.
func (f *FeedFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	var response []byte
	var err error

	_, execErr := f.circuitBreaker.Execute(func() (interface{}, error) {
		response, err = f.fetchWithRetry(ctx, url)
		return response, err
	})

	if execErr != nil {
		return nil, execErr
	}

	return response, err
}

func (f *FeedFetcher) fetchWithRetry(ctx context.Context, url string) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt <= f.maxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(float64(f.retryDelay) * math.Pow(f.multiplier, float64(attempt-1)))
			f.logger.Debug("Retrying feed fetch",
				zap.String("url", url),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay))

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		body, err := f.doConditionalGet(ctx, url)
		if err == nil {
			return body, nil
		}
		lastErr = err

		var httpErr *statusError
		if errors.As(err, &httpErr) {
			// Don't retry on client errors (4xx) except 429 (rate limiting)
			if httpErr.code >= 400 && httpErr.code < 500 && httpErr.code != 429 {
				break
			}
			continue
		}

		f.logger.Warn("Feed fetch failed",
			zap.String("url", url),
			zap.Int("attempt", attempt),
			zap.Error(err))
	}

	return nil, fmt.Errorf("max retries exceeded, last error: %w", lastErr)
}

// doConditionalGet performs one GET, replaying cached validators and
// resolving a 304 from the cache.
func (f *FeedFetcher) doConditionalGet(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request failed: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", acceptHeader)

	f.mu.Lock()
	cached := f.cache[url]
	f.mu.Unlock()
	if cached != nil {
		if cached.etag != "" {
			req.Header.Set("If-None-Match", cached.etag)
		}
		if cached.lastModified != "" {
			req.Header.Set("If-Modified-Since", cached.lastModified)
		}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified && cached != nil {
		f.logger.Debug("Feed unchanged since last fetch",
			zap.String("url", url),
			zap.Int("cached_size", len(cached.body)))
		return cached.body, nil
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}

		f.mu.Lock()
		f.cache[url] = &cachedResponse{
			body:         body,
			etag:         resp.Header.Get("ETag"),
			lastModified: resp.Header.Get("Last-Modified"),
		}
		f.mu.Unlock()

		f.logger.Debug("Feed fetch successful",
			zap.String("url", url),
			zap.Int("status", resp.StatusCode),
			zap.Int("body_size", len(body)))
		return body, nil
	}

	return nil, &statusError{code: resp.StatusCode}
}

// statusError carries a non-2xx HTTP status through the retry loop.
type statusError struct {
	code int
}

func (e *statusError) Error() string { return fmt.Sprintf("HTTP %d", e.code) }
