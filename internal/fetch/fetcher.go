// Package fetch downloads individual URLs to local files.
//
// The Fetcher makes exactly one attempt per call. Retry policy belongs
// to callers; in practice the mirror treats a failed resource as "skip
// and continue with the rest of the page".
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// Default fetcher settings.
const (
	// DefaultTimeout bounds a single request including body read.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxBodySize caps how many bytes are read from one response.
	// Protects against unexpectedly large responses; mirrored sites
	// rarely serve single assets beyond this.
	DefaultMaxBodySize = 50 * 1024 * 1024 // 50MB

	// DefaultUserAgent identifies webmirror in HTTP requests.
	DefaultUserAgent = "webmirror/1.0 (+https://github.com/webmirror/webmirror)"
)

// StatusError reports a non-2xx HTTP response.
type StatusError struct {
	// URL is the requested URL.
	URL string

	// StatusCode is the HTTP status code received.
	StatusCode int
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
}

// Fetcher retrieves URLs into files on disk.
type Fetcher struct {
	// client performs the HTTP requests.
	client *http.Client

	// userAgent is sent with every request.
	userAgent string

	// headers are extra headers applied to every request (site config).
	headers map[string]string

	// cookie is an optional raw Cookie header value.
	cookie string

	// maxBodySize limits response body reads.
	maxBodySize int64
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithClient sets a custom HTTP client. Useful for tests and for
// callers that need proxy or TLS configuration.
func WithClient(client *http.Client) Option {
	return func(f *Fetcher) {
		f.client = client
	}
}

// WithUserAgent sets a custom User-Agent header.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) {
		f.userAgent = ua
	}
}

// WithHeaders sets extra headers applied to every request.
func WithHeaders(headers map[string]string) Option {
	return func(f *Fetcher) {
		f.headers = headers
	}
}

// WithCookie sets a raw Cookie header sent with every request.
func WithCookie(cookie string) Option {
	return func(f *Fetcher) {
		f.cookie = cookie
	}
}

// WithMaxBodySize sets the maximum response body size in bytes.
func WithMaxBodySize(size int64) Option {
	return func(f *Fetcher) {
		if size > 0 {
			f.maxBodySize = size
		}
	}
}

// WithTimeout sets the per-request timeout.
// Ignored when a custom client is supplied via WithClient.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		if f.client != nil && d > 0 {
			f.client.Timeout = d
		}
	}
}

// NewFetcher creates a Fetcher with the given options.
func NewFetcher(opts ...Option) *Fetcher {
	f := &Fetcher{
		client:      &http.Client{Timeout: DefaultTimeout},
		userAgent:   DefaultUserAgent,
		maxBodySize: DefaultMaxBodySize,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Get retrieves a URL and returns the body bytes. Used for pages and
// stylesheets whose content must be transformed before hitting disk.
func (f *Fetcher) Get(ctx context.Context, rawURL string) ([]byte, error) {
	resp, err := f.do(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("fetch %s: read body: %w", rawURL, err)
	}
	return body, nil
}

// Fetch retrieves a URL into dest, creating parent directories as
// needed. One attempt only; on any transport error, non-2xx status, or
// write failure it returns an error and leaves no partial file at dest.
//
// Design decision: We download to dest+".part" and rename on success
// because a half-written asset that looks complete is worse for an
// offline mirror than a missing one.
func (f *Fetcher) Fetch(ctx context.Context, rawURL, dest string) error {
	resp, err := f.do(ctx, rawURL)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := os.MkdirAll(filepath.Dir(dest), 0750); err != nil {
		return fmt.Errorf("fetch %s: create directory: %w", rawURL, err)
	}

	part := dest + ".part"
	out, err := os.Create(part) //nolint:gosec // dest is derived from the allocator, not raw user input
	if err != nil {
		return fmt.Errorf("fetch %s: create file: %w", rawURL, err)
	}

	if _, err := io.Copy(out, io.LimitReader(resp.Body, f.maxBodySize)); err != nil {
		_ = out.Close()       //nolint:errcheck // best effort cleanup
		_ = os.Remove(part)   //nolint:errcheck // best effort cleanup
		return fmt.Errorf("fetch %s: write body: %w", rawURL, err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(part) //nolint:errcheck // best effort cleanup
		return fmt.Errorf("fetch %s: close file: %w", rawURL, err)
	}

	if err := os.Rename(part, dest); err != nil {
		_ = os.Remove(part) //nolint:errcheck // best effort cleanup
		return fmt.Errorf("fetch %s: finalize file: %w", rawURL, err)
	}
	return nil
}

// do performs the HTTP GET and checks the response status.
func (f *Fetcher) do(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "*/*")
	for k, v := range f.headers {
		req.Header.Set(k, v)
	}
	if f.cookie != "" {
		req.Header.Set("Cookie", f.cookie)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_ = resp.Body.Close() //nolint:errcheck // response is discarded
		return nil, &StatusError{URL: rawURL, StatusCode: resp.StatusCode}
	}
	return resp, nil
}
