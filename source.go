package citybed

import (
	"bytes"
	"compress/bzip2"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Table identifies one of the source tables.
type Table string

const (
	TableCities    Table = "cities"
	TableAdmin1    Table = "admin1"
	TableAdmin2    Table = "admin2"
	TableCountries Table = "countries"
)

// tables is the load order.
var tables = []Table{TableCities, TableAdmin1, TableAdmin2, TableCountries}

// FileName returns the file name a table is stored under.
func (t Table) FileName() string {
	if t == TableCountries {
		return "countryInfo.txt"
	}
	return string(t) + ".txt"
}

const (
	DefaultBaseURL      = "https://raw.githubusercontent.com/GlutenFreeGrapes/cities-chain/refs/heads/main/data"
	DefaultCountriesURL = "https://download.geonames.org/export/dump/countryInfo.txt"
)

// DefaultURLs returns the table URLs for a base URL and a country table URL.
func DefaultURLs(baseURL, countriesURL string) map[Table]string {
	baseURL = strings.TrimSuffix(baseURL, "/")
	return map[Table]string{
		TableCities:    baseURL + "/" + TableCities.FileName(),
		TableAdmin1:    baseURL + "/" + TableAdmin1.FileName(),
		TableAdmin2:    baseURL + "/" + TableAdmin2.FileName(),
		TableCountries: countriesURL,
	}
}

// Source provides the raw text of each table.
type Source interface {
	Open(ctx context.Context, t Table) (io.ReadCloser, error)
}

// DirSource reads tables from files in Dir. A compressed sibling
// (".zst", ".gz" or ".bz2") is preferred over the plain file.
type DirSource struct {
	Dir string
}

func (s DirSource) Open(_ context.Context, t Table) (io.ReadCloser, error) {
	return openOptionallyCompressed(filepath.Join(s.Dir, t.FileName()))
}

// openOptionallyCompressed opens path, or the first compressed variant of
// it that exists, and returns a reader over the decompressed content.
func openOptionallyCompressed(path string) (io.ReadCloser, error) {
	for _, ext := range []string{".zst", ".gz", ".bz2"} {
		fh, err := os.Open(path + ext)
		if err != nil {
			continue
		}
		r, err := decompress(fh, ext)
		if err != nil {
			fh.Close()
			return nil, fmt.Errorf("opening %s%s: %w", path, ext, err)
		}
		return r, nil
	}
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	return fh, nil
}

func decompress(fh *os.File, ext string) (io.ReadCloser, error) {
	switch ext {
	case ".zst":
		zr, err := zstd.NewReader(fh)
		if err != nil {
			return nil, err
		}
		return &stackedCloser{Reader: zr, closers: []func() error{
			func() error { zr.Close(); return nil },
			fh.Close,
		}}, nil
	case ".gz":
		gr, err := gzip.NewReader(fh)
		if err != nil {
			return nil, err
		}
		return &stackedCloser{Reader: gr, closers: []func() error{gr.Close, fh.Close}}, nil
	case ".bz2":
		return &stackedCloser{Reader: bzip2.NewReader(fh), closers: []func() error{fh.Close}}, nil
	}
	return nil, fmt.Errorf("unsupported compression %q", ext)
}

// stackedCloser closes a decompressor and the file under it.
type stackedCloser struct {
	io.Reader
	closers []func() error
}

func (s *stackedCloser) Close() error {
	var errs []error
	for _, c := range s.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

// httpClient is a shared HTTP client with reasonable timeouts.
var httpClient = &http.Client{
	Timeout: 60 * time.Second,
}

const defaultMaxTries = 3

// HTTPSource downloads tables over HTTP. With a DataDir, each download is
// persisted there and later loads reuse the file instead of fetching again.
type HTTPSource struct {
	URLs     map[Table]string
	Client   *http.Client
	DataDir  string
	Logger   *slog.Logger
	MaxTries uint            // attempts per table, default 3
	BackOff  backoff.BackOff // default exponential
}

func (s *HTTPSource) Open(ctx context.Context, t Table) (io.ReadCloser, error) {
	url, ok := s.URLs[t]
	if !ok || url == "" {
		return nil, fmt.Errorf("no URL configured for %s", t)
	}

	if s.DataDir == "" {
		body, err := s.fetch(ctx, url, t)
		if err != nil {
			return nil, err
		}
		return io.NopCloser(bytes.NewReader(body)), nil
	}

	localPath := filepath.Join(s.DataDir, t.FileName())
	if r, err := openOptionallyCompressed(localPath); err == nil {
		return r, nil
	}
	// 0755 keeps the data directory unwritable by other users.
	if err := os.MkdirAll(s.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	body, err := s.fetch(ctx, url, t)
	if err != nil {
		return nil, err
	}
	if err := writeFileAtomic(localPath, body); err != nil {
		s.logger().Warn("failed to persist download", "table", t, "path", localPath, "error", err)
	}
	return io.NopCloser(bytes.NewReader(body)), nil
}

func (s *HTTPSource) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

// fetch downloads url with bounded retries. Client errors (4xx) are not
// retried.
func (s *HTTPSource) fetch(ctx context.Context, url string, t Table) ([]byte, error) {
	client := s.Client
	if client == nil {
		client = httpClient
	}
	maxTries := s.MaxTries
	if maxTries == 0 {
		maxTries = defaultMaxTries
	}
	b := s.BackOff
	if b == nil {
		b = backoff.NewExponentialBackOff()
	}

	attempt := 0
	body, err := backoff.Retry(ctx, func() ([]byte, error) {
		attempt++
		if attempt > 1 {
			s.logger().Warn("retrying download", "table", t, "url", url, "attempt", attempt)
		}
		return download(ctx, client, url)
	}, backoff.WithBackOff(b), backoff.WithMaxTries(maxTries))
	if err != nil {
		return nil, fmt.Errorf("downloading %s: %w", t, err)
	}
	return body, nil
}

func download(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP GET %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("HTTP GET %s: status %d", url, resp.StatusCode)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", url, err)
	}
	return body, nil
}

// writeFileAtomic writes data to a temporary file next to path and renames
// it into place, so readers never see a partial file.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	success := false
	defer func() {
		if !success {
			tmp.Close()
			os.Remove(tmp.Name()) // best-effort cleanup of partial file
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("writing %s: %w", tmp.Name(), err)
	}
	// Explicitly close to catch flush errors (e.g., on NFS)
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", tmp.Name(), err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return fmt.Errorf("chmod %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("renaming to %s: %w", path, err)
	}
	success = true
	return nil
}
