package index

import (
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestWriteRead_Roundtrip(t *testing.T) {
	dir := t.TempDir()
	splits := Splits{
		Train:      []Record{{"25_0_1_2017.jpg", "0", "/data/25_0_1_2017.jpg"}},
		Validation: []Record{{"31_1_2_2017.jpg", "1", "/data/31_1_2_2017.jpg"}},
	}

	if err := Write(dir, "gender", splits); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	got, err := Read(filepath.Join(dir, TrainFile), "gender")
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if diff := cmp.Diff(splits.Train, got.Records); diff != "" {
		t.Errorf("train mismatch (-want +got):\n%s", diff)
	}

	// Test.csv has only a header.
	got, err = Read(filepath.Join(dir, TestFile), "gender")
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(got.Records) != 0 {
		t.Errorf("expected empty test split, got %d records", len(got.Records))
	}
}

func TestRead_EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), TrainFile)
	if err := os.WriteFile(path, nil, 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	_, err := Read(path, "gender")
	if !errors.Is(err, ErrEmptyIndex) {
		t.Fatalf("expected ErrEmptyIndex, got %v", err)
	}
}

func TestRead_Missing(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), TrainFile), "gender")
	if !errors.Is(err, ErrIndexMissing) {
		t.Fatalf("expected ErrIndexMissing, got %v", err)
	}
}

func TestParse_SkipsMalformedRows(t *testing.T) {
	input := strings.Join([]string{
		"\ufefffilename,gender,filepath",
		"25_0_1_2017.jpg,0,/a",
		",1,/b",
		"31_1_2_2017.jpg,,/c",
		"only-one-field",
		"40_1_0_2017.jpg, 1 ,/d",
		"",
	}, "\n")

	res, err := parse(strings.NewReader(input), "gender")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	want := []Record{
		{"25_0_1_2017.jpg", "0", "/a"},
		{"40_1_0_2017.jpg", "1", "/d"},
	}
	if diff := cmp.Diff(want, res.Records); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}
	if res.Skipped != 3 {
		t.Errorf("expected 3 skipped rows, got %d", res.Skipped)
	}
}

func TestParse_HeaderWithoutFilepath(t *testing.T) {
	res, err := parse(strings.NewReader("gender,filename\n1,a_1.jpg\n"), "gender")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(res.Records) != 1 || res.Records[0].Filename != "a_1.jpg" || res.Records[0].Filepath != "" {
		t.Errorf("unexpected records %+v", res.Records)
	}
}

func TestParse_BadHeader(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"no filename", "name,gender\nx,1\n"},
		{"no label", "filename,age\nx,1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parse(strings.NewReader(tt.input), "gender")
			if !errors.Is(err, ErrBadHeader) {
				t.Errorf("expected ErrBadHeader, got %v", err)
			}
		})
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestWriteRecords_ReportsWriterError(t *testing.T) {
	records := []Record{{"25_0_1_2017.jpg", "0", "/data/25_0_1_2017.jpg"}}
	err := writeRecords(csv.NewWriter(failingWriter{}), "gender", records)
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("expected writer error, got %v", err)
	}
}

func TestWriteFile_MissingDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", TrainFile)
	if err := WriteFile(path, "gender", nil); err == nil {
		t.Fatal("expected error writing into a missing directory")
	}
}
