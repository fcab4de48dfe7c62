package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Downloader streams remote images into a FileStore.
type Downloader struct {
	Client *http.Client
	Store  *FileStore
}

// Download fetches url and stores the body under key. It returns the written
// path and byte count.
func (d *Downloader) Download(ctx context.Context, url, key string) (string, int64, error) {
	if d.Store == nil {
		return "", 0, errors.New("storage: downloader has no store")
	}
	if strings.TrimSpace(url) == "" {
		return "", 0, errors.New("storage: url is required")
	}
	client := d.Client
	if client == nil {
		client = &http.Client{Timeout: 120 * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", 0, fmt.Errorf("storage: build download request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("storage: download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", 0, fmt.Errorf("storage: download status %d", resp.StatusCode)
	}
	return d.Store.WriteStream(ctx, key, resp.Body)
}
