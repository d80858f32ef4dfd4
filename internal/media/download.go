package media

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultDownloadTimeout is the default timeout for image downloads
	DefaultDownloadTimeout = 30 * time.Second
	// DefaultMaxImageSize is the default maximum image size (10MB)
	DefaultMaxImageSize = 10 * 1024 * 1024
)

// Loader reads photo bytes from the URLs stored on photo assets. It
// understands http(s) and file URLs as well as plain paths.
type Loader struct {
	client  *http.Client
	timeout time.Duration
	maxSize int64
}

func NewLoader() *Loader {
	return &Loader{
		client: &http.Client{
			Timeout: DefaultDownloadTimeout,
		},
		timeout: DefaultDownloadTimeout,
		maxSize: DefaultMaxImageSize,
	}
}

// WithTimeout sets a custom timeout for downloads.
func (l *Loader) WithTimeout(timeout time.Duration) *Loader {
	l.timeout = timeout
	l.client.Timeout = timeout
	return l
}

// WithMaxSize sets a custom maximum image size.
func (l *Loader) WithMaxSize(maxSize int64) *Loader {
	l.maxSize = maxSize
	return l
}

// Load returns the bytes behind rawURL.
func (l *Loader) Load(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse photo url: %w", err)
	}

	switch u.Scheme {
	case "http", "https":
		return l.download(ctx, rawURL)
	case "file":
		return l.readFile(u.Path)
	case "":
		return l.readFile(rawURL)
	}
	return nil, fmt.Errorf("unsupported photo url scheme %q", u.Scheme)
}

func (l *Loader) download(ctx context.Context, imageURL string) ([]byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download failed: status %d", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType != "" && !strings.HasPrefix(contentType, "image/") {
		return nil, fmt.Errorf("invalid content type: expected image/*, got %s", contentType)
	}

	if resp.ContentLength > l.maxSize {
		return nil, fmt.Errorf("image too large: %d bytes exceeds limit of %d bytes", resp.ContentLength, l.maxSize)
	}

	// Content-Length may be missing or wrong
	return l.readLimited(resp.Body)
}

func (l *Loader) readFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open photo: %w", err)
	}
	defer f.Close()
	return l.readLimited(f)
}

func (l *Loader) readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, l.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}
	if int64(len(data)) > l.maxSize {
		return nil, fmt.Errorf("image too large: exceeds limit of %d bytes", l.maxSize)
	}
	return data, nil
}

// SaveFile writes data into dir under a fresh name and returns its file URL.
func SaveFile(dir string, data []byte) (string, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create photo directory: %w", err)
	}

	ext := ".jpg"
	if format, err := Format(data); err == nil && format == "png" {
		ext = ".png"
	}

	path := filepath.Join(dir, uuid.New().String()+ext)
	if err := os.WriteFile(path, data, 0600); err != nil {
		return "", fmt.Errorf("failed to write photo: %w", err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve photo path: %w", err)
	}
	return (&url.URL{Scheme: "file", Path: abs}).String(), nil
}
