package dataset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// ErrNoData is returned when the backing dataset does not exist (not generated
// yet, or deleted on teardown).
var ErrNoData = errors.New("no dataset available")

// Source fetches the raw JSON dataset document.
type Source interface {
	Fetch(ctx context.Context) ([]byte, error)
}

// FileSource reads the dataset from the generated JSON file.
type FileSource struct {
	Path string
}

// NewFileSource creates a Source backed by path.
func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path}
}

func (s *FileSource) Fetch(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNoData, s.Path)
	}
	if err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}
	return data, nil
}

// Remove deletes the backing file. A missing file is reported as ErrNoData.
func (s *FileSource) Remove() error {
	err := os.Remove(s.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNoData, s.Path)
	}
	if err != nil {
		return fmt.Errorf("remove dataset: %w", err)
	}
	return nil
}

// Name returns the base name of the backing file.
func (s *FileSource) Name() string {
	return filepath.Base(s.Path)
}

// HTTPSource fetches the dataset from a URL, as the browser client does.
type HTTPSource struct {
	URL        string
	httpClient *http.Client
}

// NewHTTPSource creates a Source that GETs url with the given timeout.
func NewHTTPSource(url string, timeout time.Duration) *HTTPSource {
	return &HTTPSource{
		URL:        url,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (s *HTTPSource) Fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch dataset: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrNoData, s.URL)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("fetch dataset: status %d: %s", resp.StatusCode, body)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read dataset body: %w", err)
	}
	return data, nil
}
