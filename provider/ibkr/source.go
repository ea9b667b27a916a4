package ibkr

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// Source yields the raw HTML of a pricing page
type Source interface {
	// Open opens the page for reading. The caller closes it
	Open(context.Context) (io.ReadCloser, error)

	// String returns the page location, for logging
	String() string
}

// HTTPSource fetches the page over HTTP
type HTTPSource struct {
	client    *http.Client
	url       string
	userAgent string
}

// NewHTTPSource creates a new HTTP page source
func NewHTTPSource(url string, timeout time.Duration, userAgent string) *HTTPSource {
	return &HTTPSource{
		client: &http.Client{
			Timeout: timeout,
		},
		url:       url,
		userAgent: userAgent,
	}
}

func (s *HTTPSource) Open(ctx context.Context) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("unable to create new GET request: %w", err)
	}

	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("unable to execute GET request: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()

		return nil, fmt.Errorf("invalid status code received: %d", resp.StatusCode)
	}

	return resp.Body, nil
}

func (s *HTTPSource) String() string {
	return s.url
}

// FileSource reads the page from a local file
type FileSource struct {
	path string
}

// NewFileSource creates a new local file page source
func NewFileSource(path string) *FileSource {
	return &FileSource{
		path: path,
	}
}

func (s *FileSource) Open(_ context.Context) (io.ReadCloser, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("unable to open page file: %w", err)
	}

	return f, nil
}

func (s *FileSource) String() string {
	return s.path
}
