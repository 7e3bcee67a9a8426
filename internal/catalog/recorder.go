package catalog

import (
	"context"
	"log"
	"sync"

	"github.com/mschirtzinger/yoloprep/internal/yolo"
)

// Recorder writes organizer events into the catalog under one run.
type Recorder struct {
	db     *DB
	runID  string
	logger *log.Logger

	mu       sync.Mutex
	firstErr error
}

// NewRecorder returns an observer bound to runID.
func NewRecorder(db *DB, runID string, logger *log.Logger) *Recorder {
	if logger == nil {
		logger = log.Default()
	}
	return &Recorder{db: db, runID: runID, logger: logger}
}

func (r *Recorder) SplitStarted(split yolo.Split, total int) {}

func (r *Recorder) SplitFinished(result yolo.SplitResult) {}

// SampleDone records the sample. Failures are logged and kept for Err.
// Duplicate rows are not recorded; the row that was processed owns the key.
func (r *Recorder) SampleDone(split yolo.Split, s yolo.Sample) {
	if s.Outcome == yolo.OutcomeDuplicate {
		return
	}
	err := r.db.RecordSample(context.Background(), r.runID, string(split),
		s.Filename, s.Label, s.ClassID, string(s.Outcome), s.Dest)
	if err == nil {
		return
	}
	r.logger.Printf("catalog: %v", err)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.firstErr == nil {
		r.firstErr = err
	}
}

// Err returns the first recording failure, if any.
func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.firstErr
}
