package catalog

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/mschirtzinger/yoloprep/internal/yolo"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestOpen_CreatesTables(t *testing.T) {
	db := testDB(t)

	for _, table := range []string{"runs", "samples"} {
		var count int
		err := db.conn.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&count)
		if err != nil {
			t.Fatalf("failed to query table %s: %v", table, err)
		}
		if count != 1 {
			t.Errorf("table %s does not exist", table)
		}
	}
}

func TestLastRun_Empty(t *testing.T) {
	db := testDB(t)
	if _, err := db.LastRun(context.Background()); !errors.Is(err, ErrNoRuns) {
		t.Fatalf("expected ErrNoRuns, got %v", err)
	}
}

func TestRunLifecycle(t *testing.T) {
	ctx := context.Background()
	db := testDB(t)

	run, err := db.BeginRun(ctx, "chiragsaipanuganti/utkface", "output_yolo")
	if err != nil {
		t.Fatalf("BeginRun failed: %v", err)
	}

	rec := NewRecorder(db, run.ID, nil)
	rec.SampleDone(yolo.SplitTrain, yolo.Sample{Filename: "a.jpg", Label: "0", ClassID: 0, Outcome: yolo.OutcomeCopied, Dest: "out/a.jpg"})
	rec.SampleDone(yolo.SplitTrain, yolo.Sample{Filename: "b.jpg", Label: "1", ClassID: 1, Outcome: yolo.OutcomeCopied, Dest: "out/b.jpg"})
	rec.SampleDone(yolo.SplitTrain, yolo.Sample{Filename: "c.jpg", Label: "7", ClassID: -1, Outcome: yolo.OutcomeUnknownLabel})
	rec.SampleDone(yolo.SplitVal, yolo.Sample{Filename: "d.jpg", Label: "1", ClassID: 1, Outcome: yolo.OutcomeMissingSource})
	if err := rec.Err(); err != nil {
		t.Fatalf("recorder error: %v", err)
	}

	if err := db.FinishRun(ctx, run.ID, StatusComplete); err != nil {
		t.Fatalf("FinishRun failed: %v", err)
	}

	last, err := db.LastRun(ctx)
	if err != nil {
		t.Fatalf("LastRun failed: %v", err)
	}
	if last.ID != run.ID || last.Status != StatusComplete || last.FinishedAt == nil {
		t.Errorf("unexpected last run %+v", last)
	}

	counts, err := db.SplitCounts(ctx, run.ID)
	if err != nil {
		t.Fatalf("SplitCounts failed: %v", err)
	}
	if counts["train"]["copied"] != 2 || counts["train"]["unknown_label"] != 1 || counts["val"]["missing_source"] != 1 {
		t.Errorf("unexpected counts %v", counts)
	}
}

func TestFinishRun_Unknown(t *testing.T) {
	db := testDB(t)
	if err := db.FinishRun(context.Background(), "missing", StatusFailed); err == nil {
		t.Error("expected error for unknown run")
	}
}

func TestRecorder_KeepsFirstError(t *testing.T) {
	db := testDB(t)
	rec := NewRecorder(db, "no-such-run", nil)

	// Foreign keys are on, so samples for an unknown run are rejected.
	rec.SampleDone(yolo.SplitTrain, yolo.Sample{Filename: "a.jpg", Label: "0", Outcome: yolo.OutcomeCopied})
	if rec.Err() == nil {
		t.Error("expected recorder to keep the insert failure")
	}
}

func TestRecorder_DuplicateDoesNotOverwrite(t *testing.T) {
	ctx := context.Background()
	db := testDB(t)

	run, err := db.BeginRun(ctx, "chiragsaipanuganti/utkface", "output_yolo")
	if err != nil {
		t.Fatalf("BeginRun failed: %v", err)
	}

	rec := NewRecorder(db, run.ID, nil)
	rec.SampleDone(yolo.SplitTrain, yolo.Sample{Filename: "a.jpg", Label: "0", ClassID: 0, Outcome: yolo.OutcomeCopied, Dest: "out/a.jpg"})
	rec.SampleDone(yolo.SplitTrain, yolo.Sample{Filename: "a.jpg", Label: "1", ClassID: -1, Outcome: yolo.OutcomeDuplicate})

	counts, err := db.SplitCounts(ctx, run.ID)
	if err != nil {
		t.Fatalf("SplitCounts failed: %v", err)
	}
	if counts["train"]["copied"] != 1 || counts["train"]["duplicate"] != 0 {
		t.Errorf("unexpected counts %v", counts)
	}
}
