package assets

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPDoer describes the HTTP client used by the fetcher.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Payload is a downloaded response body.
type Payload struct {
	Data        []byte
	ContentType string
}

// Fetcher downloads a URL.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (Payload, error)
}

// HTTPFetcher issues bounded GET requests.
type HTTPFetcher struct {
	client    HTTPDoer
	timeout   time.Duration
	userAgent string
	maxBytes  int64
}

// FetcherOption configures an HTTPFetcher.
type FetcherOption func(*HTTPFetcher)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client HTTPDoer) FetcherOption {
	return func(f *HTTPFetcher) {
		if client != nil {
			f.client = client
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) FetcherOption {
	return func(f *HTTPFetcher) {
		f.userAgent = strings.TrimSpace(ua)
	}
}

// WithMaxBytes caps the accepted body size. Zero disables the cap.
func WithMaxBytes(n int64) FetcherOption {
	return func(f *HTTPFetcher) {
		f.maxBytes = n
	}
}

// NewHTTPFetcher constructs a fetcher whose every request is bounded by timeout.
func NewHTTPFetcher(timeout time.Duration, opts ...FetcherOption) *HTTPFetcher {
	f := &HTTPFetcher{
		client:  &http.Client{},
		timeout: timeout,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch implements Fetcher. Any failure is wrapped with ErrFetch.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (Payload, error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Payload{}, fmt.Errorf("%w: build request: %w", ErrFetch, err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	req.Header.Set("Accept", "image/*,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return Payload{}, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return Payload{}, fmt.Errorf("%w: unexpected status %d", ErrFetch, resp.StatusCode)
	}

	reader := io.Reader(resp.Body)
	if f.maxBytes > 0 {
		if resp.ContentLength > f.maxBytes {
			return Payload{}, fmt.Errorf("%w: body of %d bytes exceeds limit of %d", ErrFetch, resp.ContentLength, f.maxBytes)
		}
		reader = io.LimitReader(resp.Body, f.maxBytes+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return Payload{}, fmt.Errorf("%w: read body: %w", ErrFetch, err)
	}
	if f.maxBytes > 0 && int64(len(data)) > f.maxBytes {
		return Payload{}, fmt.Errorf("%w: body exceeds limit of %d bytes", ErrFetch, f.maxBytes)
	}

	return Payload{Data: data, ContentType: resp.Header.Get("Content-Type")}, nil
}
