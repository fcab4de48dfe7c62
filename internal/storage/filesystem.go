// Package storage writes generated assets below the output directory.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
)

// FileStore persists assets onto the local filesystem below basePath.
type FileStore struct {
	basePath string
}

// NewFileStore creates basePath if needed. Calling it for an existing
// directory is a no-op.
func NewFileStore(basePath string) (*FileStore, error) {
	basePath = strings.TrimSpace(basePath)
	if basePath == "" {
		return nil, errors.New("storage: base path is required")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("storage: ensure base path: %w", err)
	}
	return &FileStore{basePath: basePath}, nil
}

// BasePath returns the configured root directory.
func (s *FileStore) BasePath() string {
	if s == nil {
		return ""
	}
	return s.basePath
}

// AssetKey builds the relative key of one generated image:
// <brief>/<region>/<product>/<ratio>/<seedOrIndex>-<brief>-<region>-<product>-<ratio>.jpg
func AssetKey(briefName, region, product, ratio string, seedOrIndex int64) string {
	briefName, region = Segment(briefName), Segment(region)
	product, ratio = Segment(product), Segment(ratio)
	file := strconv.FormatInt(seedOrIndex, 10) + "-" + strings.Join([]string{briefName, region, product, ratio}, "-") + ".jpg"
	return path.Join(briefName, region, product, ratio, file)
}

// SeedOrIndex names a file after its seed, or after its output index when the
// service reported no seed.
func SeedOrIndex(seed int64, index int) int64 {
	if seed != 0 {
		return seed
	}
	return int64(index)
}

// Path resolves key to a location inside the store.
func (s *FileStore) Path(key string) (string, error) {
	if s == nil {
		return "", errors.New("storage: no store configured")
	}
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.basePath, filepath.FromSlash(cleanKey)), nil
}

// WriteStream copies r to key through a temporary file in the same directory,
// so a failed copy never leaves a partial file under the final name.
func (s *FileStore) WriteStream(ctx context.Context, key string, r io.Reader) (string, int64, error) {
	if err := ctx.Err(); err != nil {
		return "", 0, err
	}
	fullPath, err := s.Path(key)
	if err != nil {
		return "", 0, err
	}
	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", 0, fmt.Errorf("storage: ensure directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".partial-*")
	if err != nil {
		return "", 0, fmt.Errorf("storage: create temp file: %w", err)
	}
	n, copyErr := io.Copy(tmp, r)
	closeErr := tmp.Close()
	if copyErr != nil || closeErr != nil {
		_ = os.Remove(tmp.Name())
		if copyErr != nil {
			return "", n, fmt.Errorf("storage: write file: %w", copyErr)
		}
		return "", n, fmt.Errorf("storage: close file: %w", closeErr)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		_ = os.Remove(tmp.Name())
		return "", n, fmt.Errorf("storage: chmod: %w", err)
	}
	if err := os.Rename(tmp.Name(), fullPath); err != nil {
		_ = os.Remove(tmp.Name())
		return "", n, fmt.Errorf("storage: rename: %w", err)
	}
	return fullPath, n, nil
}

// Segment keeps a name on a single path level.
func Segment(name string) string {
	name = strings.TrimSpace(name)
	name = strings.NewReplacer("/", "_", "\\", "_").Replace(name)
	if name == "" || name == "." || name == ".." {
		return "_"
	}
	return name
}

// sanitizeKey normalizes a key and prevents escaping the storage root.
func sanitizeKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", errors.New("storage: key is required")
	}
	key = strings.ReplaceAll(key, "\\", "/")
	key = strings.TrimPrefix(key, "./")
	key = strings.TrimLeft(key, "/")
	cleaned := path.Clean(key)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", errors.New("storage: invalid key")
	}
	return cleaned, nil
}
