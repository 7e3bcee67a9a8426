package yolo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/mschirtzinger/yoloprep/internal/index"
	"golang.org/x/sync/errgroup"
)

// Config holds configuration for the organizer.
type Config struct {
	// OutputDir is the root of the YOLO layout
	OutputDir string

	// ImagesDir is where the downloaded dataset keeps its images
	ImagesDir string

	// LabelColumn names the index column holding the raw label
	LabelColumn string

	// ClassMap maps raw labels to YOLO class ids
	ClassMap map[string]int

	// ClassNames are written to data.yaml, indexed by class id
	ClassNames []string

	// Workers bounds concurrent copies (default: 4)
	Workers int

	// Observer receives progress events (optional)
	Observer Observer

	// Logger for per-row activity
	Logger *log.Logger
}

// DefaultConfig returns the settings for a gender-labelled UTKFace run.
func DefaultConfig() *Config {
	return &Config{
		OutputDir:   "output_yolo",
		ImagesDir:   "datasets/Dataset/Images",
		LabelColumn: "gender",
		ClassMap:    map[string]int{"0": 0, "1": 1},
		ClassNames:  []string{"male", "female"},
		Workers:     4,
		Logger:      log.New(io.Discard, "", 0),
	}
}

// SplitResult counts what happened to one split.
type SplitResult struct {
	Split         Split `json:"split"`
	Total         int   `json:"total"`
	Copied        int   `json:"copied"`
	UnknownLabel  int   `json:"unknown_label"`
	MissingSource int   `json:"missing_source"`
	Duplicate     int   `json:"duplicate"`
	Malformed     int   `json:"malformed"`
	Empty         bool  `json:"empty,omitempty"`
}

// RunResult aggregates every split.
type RunResult struct {
	Splits   []SplitResult
	DataYAML string
}

// Copied returns the number of images copied across all splits.
func (r *RunResult) Copied() int {
	n := 0
	for _, s := range r.Splits {
		n += s.Copied
	}
	return n
}

// Organizer copies indexed images into the YOLO layout.
type Organizer struct {
	config *Config
}

// NewOrganizer validates config and returns an organizer.
func NewOrganizer(config *Config) (*Organizer, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.OutputDir == "" {
		return nil, fmt.Errorf("output directory cannot be empty")
	}
	if len(config.ClassMap) == 0 {
		return nil, fmt.Errorf("class map cannot be empty")
	}
	if config.LabelColumn == "" {
		config.LabelColumn = "gender"
	}
	if config.Workers < 1 {
		config.Workers = 1
	}
	if config.Observer == nil {
		config.Observer = nopObserver{}
	}
	if config.Logger == nil {
		config.Logger = log.New(io.Discard, "", 0)
	}
	return &Organizer{config: config}, nil
}

// Run creates the layout, processes Train.csv, Validation.csv and Test.csv
// from indexDir in that order, and writes data.yaml.
//
// A zero-byte index file is logged and skipped. A missing one is an error.
func (o *Organizer) Run(ctx context.Context, indexDir string) (*RunResult, error) {
	if err := CreateLayout(o.config.OutputDir); err != nil {
		return nil, err
	}

	result := &RunResult{}
	for _, split := range Splits {
		path := filepath.Join(indexDir, split.IndexFile())

		read, err := index.Read(path, o.config.LabelColumn)
		if errors.Is(err, index.ErrEmptyIndex) {
			o.config.Logger.Printf("index file %s is empty, check its contents", path)
			sr := SplitResult{Split: split, Empty: true}
			o.config.Observer.SplitStarted(split, 0)
			o.config.Observer.SplitFinished(sr)
			result.Splits = append(result.Splits, sr)
			continue
		}
		if err != nil {
			return nil, err
		}

		sr, err := o.ProcessSplit(ctx, split, read.Records)
		if err != nil {
			return nil, err
		}
		sr.Malformed = read.Skipped
		result.Splits = append(result.Splits, *sr)
	}

	yamlPath, err := WriteDataYAML(o.config.OutputDir, o.config.ClassNames)
	if err != nil {
		return nil, err
	}
	result.DataYAML = yamlPath
	return result, nil
}

// ProcessSplit copies each record's image into images/<split> and writes its
// label file. Records whose label is not in the class map, or whose source
// image cannot be found, are skipped and counted. When several records share
// a destination file name only the first is processed.
func (o *Organizer) ProcessSplit(ctx context.Context, split Split, records []index.Record) (*SplitResult, error) {
	obs := o.config.Observer
	obs.SplitStarted(split, len(records))

	var copied, unknown, missing atomic.Int64
	duplicate := 0
	seen := make(map[string]struct{}, len(records))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.config.Workers)

	for _, rec := range records {
		if gctx.Err() != nil {
			break
		}
		name := filepath.Base(rec.Filename)
		if _, dup := seen[name]; dup {
			o.config.Logger.Printf("%s already listed in %s, skipping", rec.Filename, split)
			duplicate++
			obs.SampleDone(split, Sample{Filename: rec.Filename, Label: rec.Label, ClassID: -1, Outcome: OutcomeDuplicate})
			continue
		}
		seen[name] = struct{}{}

		g.Go(func() error {
			sample, err := o.processRecord(split, rec)
			if err != nil {
				return err
			}
			switch sample.Outcome {
			case OutcomeCopied:
				copied.Add(1)
			case OutcomeUnknownLabel:
				unknown.Add(1)
			case OutcomeMissingSource:
				missing.Add(1)
			}
			obs.SampleDone(split, sample)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := SplitResult{
		Split:         split,
		Total:         len(records),
		Copied:        int(copied.Load()),
		UnknownLabel:  int(unknown.Load()),
		MissingSource: int(missing.Load()),
		Duplicate:     duplicate,
	}
	obs.SplitFinished(result)
	return &result, nil
}

func (o *Organizer) processRecord(split Split, rec index.Record) (Sample, error) {
	sample := Sample{Filename: rec.Filename, Label: rec.Label, ClassID: -1}
	o.config.Logger.Printf("processing image %s, %s %s", rec.Filename, o.config.LabelColumn, rec.Label)

	classID, ok := o.config.ClassMap[rec.Label]
	if !ok {
		o.config.Logger.Printf("label %q is not in the class map, skipping %s", rec.Label, rec.Filename)
		sample.Outcome = OutcomeUnknownLabel
		return sample, nil
	}
	sample.ClassID = classID

	src, ok := o.resolveSource(split, rec)
	if !ok {
		sample.Outcome = OutcomeMissingSource
		return sample, nil
	}
	sample.Source = src

	// Index rows come from user-editable CSVs; keep names inside the layout.
	name := filepath.Base(rec.Filename)
	dst := filepath.Join(ImagesDir(o.config.OutputDir, split), name)
	if err := copyFile(src, dst); err != nil {
		return sample, err
	}

	labelPath := LabelPath(o.config.OutputDir, split, name)
	if err := os.WriteFile(labelPath, []byte(LabelLine(classID)), 0644); err != nil {
		return sample, fmt.Errorf("failed to write label %s: %w", labelPath, err)
	}

	sample.Dest = dst
	sample.Outcome = OutcomeCopied
	return sample, nil
}

// resolveSource finds the image for rec. It looks in the per-split directory
// under ImagesDir first, then at the path recorded in the index, then
// directly under ImagesDir.
func (o *Organizer) resolveSource(split Split, rec index.Record) (string, bool) {
	candidates := []string{
		filepath.Join(o.config.ImagesDir, split.SourceDir(), rec.Filename),
	}
	if rec.Filepath != "" {
		candidates = append(candidates, rec.Filepath)
	}
	candidates = append(candidates, filepath.Join(o.config.ImagesDir, rec.Filename))

	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && info.Mode().IsRegular() {
			return c, true
		}
	}
	return "", false
}

func copyFile(src, dst string) error {
	// #nosec G304 - path resolved from the index
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	// #nosec G304 - path inside the output layout
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	return out.Close()
}
