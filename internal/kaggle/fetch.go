package kaggle

import (
	"context"
	"fmt"
	"os"

	"github.com/mschirtzinger/yoloprep/internal/archive"
)

// Downloader is the part of Client that Fetch needs.
type Downloader interface {
	DownloadDataset(ctx context.Context, slug Slug, destDir string) (string, int64, error)
}

// FetchResult describes what Fetch did.
type FetchResult struct {
	Skipped    bool
	Archive    string
	Bytes      int64
	FilesTotal int
}

// Fetch downloads the dataset into baseDir and unzips it there, removing the
// archive afterwards. When imagesDir already exists and force is false the
// download is skipped.
func Fetch(ctx context.Context, d Downloader, slug Slug, baseDir, imagesDir string, force bool) (*FetchResult, error) {
	if !force {
		if info, err := os.Stat(imagesDir); err == nil && info.IsDir() {
			return &FetchResult{Skipped: true}, nil
		}
	}

	zipPath, n, err := d.DownloadDataset(ctx, slug, baseDir)
	if err != nil {
		return nil, err
	}

	files, err := archive.Extract(zipPath, baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to unzip %s: %w", zipPath, err)
	}

	if err := os.Remove(zipPath); err != nil {
		return nil, fmt.Errorf("failed to remove archive: %w", err)
	}

	return &FetchResult{Archive: zipPath, Bytes: n, FilesTotal: files}, nil
}
