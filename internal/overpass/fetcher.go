package overpass

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/wegman-software/osmpatch/internal/logger"
)

// DefaultURL is the public Overpass API interpreter endpoint
const DefaultURL = "https://overpass-api.de/api/interpreter"

// ErrStatus is returned when the server answers with a non-retryable status
var ErrStatus = errors.New("unexpected overpass status")

// Fetcher downloads an Overpass query result into a local cache file
type Fetcher struct {
	endpoint   string
	client     *http.Client
	cacheFile  string
	maxRetries int
	retryDelay time.Duration
	create     func(name string) (io.WriteCloser, error)
}

// Option customizes a Fetcher
type Option func(*Fetcher)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

// WithRetries sets the retry count and delay between attempts
func WithRetries(n int, delay time.Duration) Option {
	return func(f *Fetcher) {
		f.maxRetries = n
		f.retryDelay = delay
	}
}

// NewFetcher creates a fetcher posting to endpoint and caching into cacheFile
func NewFetcher(endpoint, cacheFile string, opts ...Option) *Fetcher {
	if endpoint == "" {
		endpoint = DefaultURL
	}
	f := &Fetcher{
		endpoint: endpoint,
		client: &http.Client{
			// Large country extracts take a long time server side.
			Timeout: 45 * time.Minute,
		},
		cacheFile:  cacheFile,
		maxRetries: 3,
		retryDelay: 30 * time.Second,
		create:     createFile,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CacheFile returns the path of the cached result
func (f *Fetcher) CacheFile() string {
	return f.cacheFile
}

// Fetch runs the query unless a cached result exists and refresh is false.
// Returns the cache file path.
func (f *Fetcher) Fetch(ctx context.Context, query string, refresh bool) (string, error) {
	log := logger.Named("overpass")

	if !refresh {
		if info, err := os.Stat(f.cacheFile); err == nil && info.Size() > 0 {
			log.Info("Using cached Overpass result",
				zap.String("path", f.cacheFile),
				zap.Int64("bytes", info.Size()),
				zap.Time("modified", info.ModTime()))
			return f.cacheFile, nil
		}
	}

	if dir := filepath.Dir(f.cacheFile); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("failed to create cache directory: %w", err)
		}
	}

	log.Info("Querying Overpass", zap.String("url", f.endpoint))
	start := time.Now()

	resp, err := f.postWithRetry(ctx, query)
	if err != nil {
		return "", fmt.Errorf("failed to fetch overpass data: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("%w: %d: %s", ErrStatus, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	tmpFile := f.cacheFile + ".tmp"
	out, err := f.create(tmpFile)
	if err != nil {
		return "", fmt.Errorf("failed to create cache file: %w", err)
	}

	n, err := io.Copy(out, resp.Body)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmpFile)
		return "", fmt.Errorf("failed to write cache file: %w", err)
	}

	if err := os.Rename(tmpFile, f.cacheFile); err != nil {
		os.Remove(tmpFile)
		return "", fmt.Errorf("failed to rename cache file: %w", err)
	}

	log.Info("Downloaded Overpass result",
		zap.String("path", f.cacheFile),
		zap.Int64("bytes", n),
		zap.Duration("duration", time.Since(start).Round(time.Millisecond)))
	return f.cacheFile, nil
}

func createFile(name string) (io.WriteCloser, error) {
	return os.Create(name)
}

// postWithRetry posts the query, retrying on transport errors, 429 and 5xx
func (f *Fetcher) postWithRetry(ctx context.Context, query string) (*http.Response, error) {
	log := logger.Named("overpass")
	form := url.Values{"data": {query}}.Encode()
	var lastErr error

	for attempt := 0; attempt <= f.maxRetries; attempt++ {
		if attempt > 0 {
			log.Warn("Retrying Overpass query",
				zap.Int("attempt", attempt),
				zap.Duration("delay", f.retryDelay),
				zap.Error(lastErr))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(f.retryDelay):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.endpoint, strings.NewReader(form))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("User-Agent", "osmpatch/1.0")

		resp, err := f.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = fmt.Errorf("server error: %d", resp.StatusCode)
			continue
		}

		return resp, nil
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}
