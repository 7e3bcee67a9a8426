package index

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Write stores splits as Train.csv, Validation.csv and Test.csv in dir.
func Write(dir, labelColumn string, splits Splits) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create index directory: %w", err)
	}

	files := []struct {
		name    string
		records []Record
	}{
		{TrainFile, splits.Train},
		{ValidationFile, splits.Validation},
		{TestFile, splits.Test},
	}
	for _, f := range files {
		if err := WriteFile(filepath.Join(dir, f.name), labelColumn, f.records); err != nil {
			return err
		}
	}
	return nil
}

// WriteFile writes a single index CSV.
func WriteFile(path, labelColumn string, records []Record) error {
	// #nosec G304 - controlled path
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	if err := writeRecords(csv.NewWriter(f), labelColumn, records); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

func writeRecords(w *csv.Writer, labelColumn string, records []Record) error {
	if err := w.Write([]string{"filename", labelColumn, "filepath"}); err != nil {
		return err
	}
	for _, r := range records {
		if err := w.Write([]string{r.Filename, r.Label, r.Filepath}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// ReadResult is a parsed index file.
type ReadResult struct {
	Records []Record
	Skipped int
}

// Read parses one index CSV. The header must name "filename" and
// labelColumn; "filepath" is optional. Rows with an empty filename or label,
// or too few fields, are skipped and counted.
func Read(path, labelColumn string) (*ReadResult, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrIndexMissing, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.Size() == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyIndex, path)
	}

	// #nosec G304 - controlled path
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	return parse(f, labelColumn)
}

func parse(r io.Reader, labelColumn string) (*ReadResult, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return &ReadResult{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	cols := map[string]int{}
	for i, h := range header {
		cols[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	nameIdx, ok := cols["filename"]
	if !ok {
		return nil, fmt.Errorf("%w: filename", ErrBadHeader)
	}
	labelIdx, ok := cols[labelColumn]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrBadHeader, labelColumn)
	}
	pathIdx, hasPath := cols["filepath"]

	res := &ReadResult{}
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			res.Skipped++
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row: %w", err)
		}

		if nameIdx >= len(row) || labelIdx >= len(row) {
			res.Skipped++
			continue
		}
		rec := Record{
			Filename: strings.TrimSpace(row[nameIdx]),
			Label:    strings.TrimSpace(row[labelIdx]),
		}
		if hasPath && pathIdx < len(row) {
			rec.Filepath = strings.TrimSpace(row[pathIdx])
		}
		if rec.Filename == "" || rec.Label == "" {
			res.Skipped++
			continue
		}
		res.Records = append(res.Records, rec)
	}
	return res, nil
}
