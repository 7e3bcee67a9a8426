package index

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func touch(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, n := range names {
		if err := os.WriteFile(filepath.Join(dir, n), []byte("x"), 0644); err != nil {
			t.Fatalf("failed to create %s: %v", n, err)
		}
	}
}

func TestParseFilename(t *testing.T) {
	tests := []struct {
		name      string
		file      string
		opts      BuildOptions
		wantLabel string
		wantOK    bool
	}{
		{"male", "25_0_1_20170116174525125.jpg", DefaultBuildOptions(), "0", true},
		{"female", "31_1_2_20170116174525125.jpg", DefaultBuildOptions(), "1", true},
		{"binarized other", "31_3_2_2017.jpg", DefaultBuildOptions(), "1", true},
		{"two parts", "25_0.jpg", DefaultBuildOptions(), "1", true},
		{"no underscore", "face.jpg", DefaultBuildOptions(), "", false},
		{"raw token", "31_2_4_2017.jpg", BuildOptions{LabelField: 2}, "4", true},
		{"field out of range", "31_2.jpg", BuildOptions{LabelField: 3}, "", false},
		{"empty raw token", "31__4.jpg", BuildOptions{LabelField: 1}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			label, ok := ParseFilename(tt.file, tt.opts)
			if ok != tt.wantOK || label != tt.wantLabel {
				t.Errorf("ParseFilename(%q) = (%q, %v), want (%q, %v)", tt.file, label, ok, tt.wantLabel, tt.wantOK)
			}
		})
	}
}

func TestBuild(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "40_1_0_2017.jpg", "25_0_1_2017.jpg", "README")
	if err := os.Mkdir(filepath.Join(dir, "Train"), 0755); err != nil {
		t.Fatalf("failed to create subdir: %v", err)
	}

	records, err := Build(dir, DefaultBuildOptions())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	want := []Record{
		{Filename: "25_0_1_2017.jpg", Label: "0", Filepath: filepath.Join(dir, "25_0_1_2017.jpg")},
		{Filename: "40_1_0_2017.jpg", Label: "1", Filepath: filepath.Join(dir, "40_1_0_2017.jpg")},
	}
	if diff := cmp.Diff(want, records); diff != "" {
		t.Errorf("Build mismatch (-want +got):\n%s", diff)
	}
}

func TestBuild_NoImages(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "README", "notes.txt")

	_, err := Build(dir, DefaultBuildOptions())
	if !errors.Is(err, ErrNoImages) {
		t.Fatalf("expected ErrNoImages, got %v", err)
	}
}

func TestBuild_MissingDir(t *testing.T) {
	if _, err := Build("/nonexistent/images", DefaultBuildOptions()); err == nil {
		t.Error("expected error for missing directory")
	}
}

func TestEnsureIndex(t *testing.T) {
	root := t.TempDir()
	images := filepath.Join(root, "Images")
	indexDir := filepath.Join(root, "Index")
	if err := os.MkdirAll(images, 0755); err != nil {
		t.Fatalf("failed to create images dir: %v", err)
	}
	for i := 0; i < 10; i++ {
		touch(t, images, fmt.Sprintf("%d_%d_0_2017.jpg", 20+i, i%2))
	}

	opts := EnsureOptions{
		Build:       DefaultBuildOptions(),
		Split:       DefaultSplitOptions(),
		LabelColumn: "gender",
	}

	res, err := EnsureIndex(images, indexDir, opts)
	if err != nil {
		t.Fatalf("EnsureIndex failed: %v", err)
	}
	if !res.Created {
		t.Fatal("expected index to be created")
	}
	if len(res.Splits.Train) != 8 || len(res.Splits.Validation) != 1 || len(res.Splits.Test) != 1 {
		t.Errorf("unexpected split sizes %d/%d/%d",
			len(res.Splits.Train), len(res.Splits.Validation), len(res.Splits.Test))
	}

	for _, name := range []string{TrainFile, ValidationFile, TestFile} {
		if _, err := os.Stat(filepath.Join(indexDir, name)); err != nil {
			t.Errorf("expected %s to exist: %v", name, err)
		}
	}

	// An existing index directory is left alone.
	res, err = EnsureIndex(images, indexDir, opts)
	if err != nil {
		t.Fatalf("second EnsureIndex failed: %v", err)
	}
	if res.Created {
		t.Error("existing index should not be rebuilt")
	}

	opts.Rebuild = true
	res, err = EnsureIndex(images, indexDir, opts)
	if err != nil {
		t.Fatalf("rebuild failed: %v", err)
	}
	if !res.Created {
		t.Error("expected rebuild to recreate the index")
	}
}

func TestEnsureIndex_NoImagesLeavesNoIndex(t *testing.T) {
	root := t.TempDir()
	images := filepath.Join(root, "Images")
	indexDir := filepath.Join(root, "Index")
	if err := os.MkdirAll(images, 0755); err != nil {
		t.Fatalf("failed to create images dir: %v", err)
	}

	_, err := EnsureIndex(images, indexDir, EnsureOptions{
		Build:       DefaultBuildOptions(),
		Split:       DefaultSplitOptions(),
		LabelColumn: "gender",
	})
	if !errors.Is(err, ErrNoImages) {
		t.Fatalf("expected ErrNoImages, got %v", err)
	}
	if _, err := os.Stat(indexDir); !os.IsNotExist(err) {
		t.Error("index directory should not be created without images")
	}
}
