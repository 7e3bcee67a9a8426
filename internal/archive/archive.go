// Package archive unpacks downloaded dataset archives.
package archive

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnsafePath is returned when an archive entry would land outside the
// destination directory.
var ErrUnsafePath = errors.New("archive entry escapes destination")

// Extract unpacks zipPath into destDir and returns the number of files written.
//
// Directories are created as needed. Symlinks and other non-regular entries
// are skipped.
func Extract(zipPath, destDir string) (int, error) {
	// #nosec G304 - controlled path from CLI
	r, err := zip.OpenReader(zipPath)
	if errors.Is(err, zip.ErrInsecurePath) {
		_ = r.Close()
		return 0, fmt.Errorf("%w: %v", ErrUnsafePath, err)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to open archive: %w", err)
	}
	defer r.Close()

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return 0, fmt.Errorf("failed to create destination: %w", err)
	}

	count := 0
	for _, f := range r.File {
		target, err := safeJoin(destDir, f.Name)
		if err != nil {
			return count, err
		}

		mode := f.Mode()
		switch {
		case mode.IsDir():
			if err := os.MkdirAll(target, 0755); err != nil {
				return count, fmt.Errorf("failed to create directory %s: %w", f.Name, err)
			}
			continue
		case !mode.IsRegular():
			continue
		}

		if err := extractFile(f, target); err != nil {
			return count, err
		}
		count++
	}

	return count, nil
}

func extractFile(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", f.Name, err)
	}

	src, err := f.Open()
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", f.Name, err)
	}
	defer src.Close()

	perm := f.Mode().Perm()
	if perm == 0 {
		perm = 0644
	}

	// #nosec G304 - target validated by safeJoin
	dst, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", target, err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return fmt.Errorf("failed to write %s: %w", target, err)
	}
	return dst.Close()
}

// safeJoin resolves name under dir, rejecting absolute paths and ".." escapes.
func safeJoin(dir, name string) (string, error) {
	if filepath.IsAbs(name) || strings.HasPrefix(name, "/") {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, name)
	}
	target := filepath.Join(dir, filepath.FromSlash(name))
	rel, err := filepath.Rel(dir, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, name)
	}
	return target, nil
}
