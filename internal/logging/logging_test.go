package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNew_ConsoleLevels(t *testing.T) {
	var buf bytes.Buffer
	logger, cleanup := New(Options{Console: &buf})

	logger.Debug("hidden")
	logger.Info("shown")
	cleanup()

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("debug entry should be filtered without --verbose")
	}
	if !strings.Contains(out, "shown") {
		t.Errorf("info entry missing from %q", out)
	}
}

func TestNew_VerboseAndFile(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "logs", "yoloprep.log")
	logger, cleanup := New(Options{Console: &buf, Verbose: true, File: path, MaxSizeMB: 1, MaxBackups: 1})

	Std(logger, "organize").Printf("processing image %s", "25_0_1_2017.jpg")
	cleanup()

	if !strings.Contains(buf.String(), "25_0_1_2017.jpg") {
		t.Errorf("console missing std logger line: %q", buf.String())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("log file not written: %v", err)
	}
	if !strings.Contains(string(data), `"logger":"organize"`) {
		t.Errorf("log file missing named JSON entry: %s", data)
	}
}
