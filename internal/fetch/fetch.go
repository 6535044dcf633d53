// Package fetch streams remote or local resources while reporting progress.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

const (
	chunkSize = 32 * 1024
	// maxPrealloc bounds the buffer reserved up front from an announced
	// length; larger bodies grow as they arrive.
	maxPrealloc = 64 << 20
)

// ErrLengthMismatch is returned when a body runs past its announced length.
var ErrLengthMismatch = errors.New("body exceeds announced length")

// ProgressFunc receives the fraction of the resource read so far.
type ProgressFunc func(fraction float64)

// Fetcher streams the resource at locator into memory.
type Fetcher interface {
	Stream(ctx context.Context, locator string, onProgress ProgressFunc) ([]byte, error)
}

// StatusError is returned for non-2xx HTTP responses.
type StatusError struct {
	Locator    string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch %s: unexpected status %d %s", e.Locator, e.StatusCode, http.StatusText(e.StatusCode))
}

// HTTP fetches http(s) locators.
type HTTP struct {
	Client *http.Client
}

// NewHTTP returns an HTTP fetcher with a default client. Large checkpoints
// rely on context cancellation rather than a client timeout.
func NewHTTP() *HTTP {
	return &HTTP{Client: &http.Client{Transport: http.DefaultTransport}}
}

// Stream issues a GET for locator and reads the body, reporting progress
// when the server announces a content length.
func (f *HTTP) Stream(ctx context.Context, locator string, onProgress ProgressFunc) ([]byte, error) {
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, locator, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", locator, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", locator, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Locator: locator, StatusCode: resp.StatusCode}
	}

	data, err := readAll(ctx, resp.Body, resp.ContentLength, onProgress)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", locator, err)
	}
	return data, nil
}

// File reads local paths and file:// locators.
type File struct{}

// Stream reads the file at locator.
func (File) Stream(ctx context.Context, locator string, onProgress ProgressFunc) ([]byte, error) {
	path, err := localPath(locator)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", locator, err)
	}
	defer f.Close()

	var size int64 = -1
	if info, err := f.Stat(); err == nil {
		size = info.Size()
	}

	data, err := readAll(ctx, f, size, onProgress)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", locator, err)
	}
	return data, nil
}

// Router dispatches on the locator scheme: http and https go to Remote,
// everything else to Local.
type Router struct {
	Remote Fetcher
	Local  Fetcher
}

// NewRouter returns a Router with the default HTTP and file fetchers.
func NewRouter() *Router {
	return &Router{Remote: NewHTTP(), Local: File{}}
}

// Stream implements Fetcher.
func (r *Router) Stream(ctx context.Context, locator string, onProgress ProgressFunc) ([]byte, error) {
	if isRemote(locator) {
		return r.Remote.Stream(ctx, locator, onProgress)
	}
	return r.Local.Stream(ctx, locator, onProgress)
}

func isRemote(locator string) bool {
	l := strings.ToLower(locator)
	return strings.HasPrefix(l, "http://") || strings.HasPrefix(l, "https://")
}

func localPath(locator string) (string, error) {
	if !strings.HasPrefix(strings.ToLower(locator), "file://") {
		return locator, nil
	}
	u, err := url.Parse(locator)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", locator, err)
	}
	if u.Path == "" {
		return "", fmt.Errorf("fetch %s: empty file path", locator)
	}
	return u.Path, nil
}

// readAll reads r in chunks, checking ctx between reads and reporting the
// fraction read when total is known. A known total only sizes the initial
// buffer up to maxPrealloc and caps how much is read.
func readAll(ctx context.Context, r io.Reader, total int64, onProgress ProgressFunc) ([]byte, error) {
	report := func(float64) {}
	if onProgress != nil {
		report = onProgress
	}

	var buf []byte
	if total > 0 {
		buf = make([]byte, 0, min(total, maxPrealloc))
	}
	chunk := make([]byte, chunkSize)
	lastReport := time.Time{}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, err := r.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
			if total > 0 && int64(len(buf)) > total {
				return nil, fmt.Errorf("%w %d", ErrLengthMismatch, total)
			}
			if total > 0 && time.Since(lastReport) > 50*time.Millisecond {
				report(float64(len(buf)) / float64(total))
				lastReport = time.Now()
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, err
		}
	}

	report(1)
	return buf, nil
}
