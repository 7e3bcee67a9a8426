// Package index builds, splits, reads and writes the tabular label index.
//
// The index is three CSV files (Train.csv, Validation.csv, Test.csv) with a
// header of filename, <label column>, filepath. When a dataset ships without
// one, Build infers labels from file names shaped like
// age_gender_race_date.jpg and Split partitions them 80/10/10.
package index

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Index file names, in processing order.
const (
	TrainFile      = "Train.csv"
	ValidationFile = "Validation.csv"
	TestFile       = "Test.csv"
)

// Record is one row of the index.
type Record struct {
	Filename string
	Label    string
	Filepath string
}

// BuildOptions control label inference from file names.
type BuildOptions struct {
	// LabelField is the 0-based position of the label among the
	// underscore-separated parts of the file name.
	LabelField int

	// Binarize collapses the token to "0" when it is "0" and "1" otherwise.
	Binarize bool
}

// DefaultBuildOptions matches the UTKFace naming scheme, labelling by gender.
func DefaultBuildOptions() BuildOptions {
	return BuildOptions{LabelField: 1, Binarize: true}
}

// ParseFilename extracts the label token from name. ok is false when the
// name has too few parts.
func ParseFilename(name string, opts BuildOptions) (label string, ok bool) {
	parts := strings.Split(name, "_")
	if opts.LabelField < 0 || len(parts) <= opts.LabelField || len(parts) < 2 {
		return "", false
	}
	token := parts[opts.LabelField]
	if opts.Binarize {
		if token == "0" {
			return "0", true
		}
		return "1", true
	}
	if token == "" {
		return "", false
	}
	return token, true
}

// Build lists imagesDir and returns one record per file whose name parses.
// Records are sorted by filename so Split sees a stable input.
func Build(imagesDir string, opts BuildOptions) ([]Record, error) {
	entries, err := os.ReadDir(imagesDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list images: %w", err)
	}

	records := make([]Record, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		label, ok := ParseFilename(e.Name(), opts)
		if !ok {
			continue
		}
		records = append(records, Record{
			Filename: e.Name(),
			Label:    label,
			Filepath: filepath.Join(imagesDir, e.Name()),
		})
	}

	if len(records) == 0 {
		return nil, ErrNoImages
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].Filename < records[j].Filename
	})
	return records, nil
}

// EnsureOptions bundle everything EnsureIndex needs.
type EnsureOptions struct {
	Build       BuildOptions
	Split       SplitOptions
	LabelColumn string
	Rebuild     bool
}

// EnsureResult reports what EnsureIndex did.
type EnsureResult struct {
	Created bool
	Splits  Splits
}

// EnsureIndex leaves an existing indexDir alone unless opts.Rebuild is set;
// otherwise it builds the index from imagesDir, splits it and writes the
// three CSV files.
func EnsureIndex(imagesDir, indexDir string, opts EnsureOptions) (*EnsureResult, error) {
	if !opts.Rebuild {
		if _, err := os.Stat(indexDir); err == nil {
			return &EnsureResult{}, nil
		}
	}

	records, err := Build(imagesDir, opts.Build)
	if err != nil {
		return nil, err
	}

	splits, err := Split(records, opts.Split)
	if err != nil {
		return nil, err
	}

	if err := Write(indexDir, opts.LabelColumn, splits); err != nil {
		return nil, err
	}
	return &EnsureResult{Created: true, Splits: splits}, nil
}
