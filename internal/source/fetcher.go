package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultFileName is used when a URL path has no usable basename.
const DefaultFileName = "document.pdf"

// Fetcher downloads documents into a local cache directory. A file already
// present under the derived name is reused without any network access.
type Fetcher struct {
	client *http.Client
	log    *zap.Logger
}

// NewFetcher creates a fetcher whose downloads are bounded by timeout.
func NewFetcher(timeout time.Duration, log *zap.Logger) *Fetcher {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Fetcher{
		client: &http.Client{Timeout: timeout},
		log:    log,
	}
}

// Fetch makes every URL available under dir and returns the local paths in
// input order. URLs that fail to download are logged and left out.
func (f *Fetcher) Fetch(ctx context.Context, urls []string, dir string) []string {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		f.log.Error("create document directory", zap.String("dir", dir), zap.Error(err))
		return nil
	}
	paths := make([]string, 0, len(urls))
	for _, u := range urls {
		name, err := FileName(u)
		if err != nil {
			f.log.Warn("skip malformed url", zap.String("url", u), zap.Error(err))
			continue
		}
		local := filepath.Join(dir, name)
		if _, err := os.Stat(local); err == nil {
			f.log.Debug("cached", zap.String("url", u), zap.String("path", local))
			paths = append(paths, local)
			continue
		}
		f.log.Info("downloading", zap.String("url", u))
		if err := f.download(ctx, u, local); err != nil {
			f.log.Warn("download failed", zap.String("url", u), zap.Error(err))
			continue
		}
		paths = append(paths, local)
	}
	return paths
}

// FileName derives the cache file name from the URL's escaped path, so
// percent-encoded names stay as they appear in the URL. Names that would
// leave the cache directory fall back to DefaultFileName.
func FileName(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	name := path.Base(u.EscapedPath())
	switch {
	case name == "", name == ".", name == "..", name == "/":
		return DefaultFileName, nil
	case strings.ContainsAny(name, `/\`):
		return DefaultFileName, nil
	}
	return name, nil
}

func (f *Fetcher) download(ctx context.Context, rawURL, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("GET %s: %s", rawURL, resp.Status)
	}

	// Write beside the destination and rename so a partial body is never cached.
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".download-*")
	if err != nil {
		return err
	}
	_, copyErr := io.Copy(tmp, resp.Body)
	closeErr := tmp.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return nil
}
