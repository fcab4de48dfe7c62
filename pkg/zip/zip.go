// Package zip bundles a finished output tree into a single archive.
package zip

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ArchiveDir writes every regular file below root into a zip at dest, using
// slash-separated paths relative to root. dest itself and unfinished
// ".partial-*" downloads are skipped. It returns the number of archived files.
func ArchiveDir(ctx context.Context, root, dest string) (int, error) {
	absDest, err := filepath.Abs(dest)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(absDest), 0o755); err != nil {
		return 0, fmt.Errorf("zip: ensure directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(absDest), ".partial-*.zip")
	if err != nil {
		return 0, fmt.Errorf("zip: create archive: %w", err)
	}
	defer os.Remove(tmp.Name())

	zw := zip.NewWriter(tmp)
	count := 0
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if !d.Type().IsRegular() || strings.HasPrefix(d.Name(), ".partial-") {
			return nil
		}
		if abs, err := filepath.Abs(path); err == nil && abs == absDest {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if err := addFile(zw, path, filepath.ToSlash(rel)); err != nil {
			return err
		}
		count++
		return nil
	})
	closeErr := zw.Close()
	fileErr := tmp.Close()
	switch {
	case walkErr != nil:
		return 0, fmt.Errorf("zip: %w", walkErr)
	case closeErr != nil:
		return 0, fmt.Errorf("zip: finish archive: %w", closeErr)
	case fileErr != nil:
		return 0, fmt.Errorf("zip: close archive: %w", fileErr)
	}
	if err := os.Rename(tmp.Name(), absDest); err != nil {
		return 0, fmt.Errorf("zip: rename: %w", err)
	}
	return count, nil
}

func addFile(zw *zip.Writer, path, name string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return err
	}
	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	hdr.Name = name
	// JPEG data does not compress further.
	hdr.Method = zip.Store
	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, f)
	return err
}
