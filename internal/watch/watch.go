// Package watch re-runs work when index CSV files change on disk.
package watch

import (
	"context"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Config holds watcher configuration.
type Config struct {
	// Debounce is how long the directory must stay quiet before OnChange
	// runs; bursts of writes to the three CSVs collapse into one call.
	Debounce time.Duration

	// Logger for watcher activity
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Debounce: 500 * time.Millisecond,
		Logger:   log.New(io.Discard, "", 0),
	}
}

// ChangeFunc receives the sorted paths that changed since the last call.
type ChangeFunc func(ctx context.Context, changed []string) error

// Watcher watches a single index directory.
type Watcher struct {
	dir      string
	onChange ChangeFunc
	config   *Config
}

// New creates a watcher for dir. A nil config uses DefaultConfig().
func New(dir string, onChange ChangeFunc, config *Config) (*Watcher, error) {
	if dir == "" {
		return nil, fmt.Errorf("dir cannot be empty")
	}
	if onChange == nil {
		return nil, fmt.Errorf("onChange cannot be nil")
	}
	defaults := DefaultConfig()
	if config == nil {
		config = defaults
	}
	if config.Debounce <= 0 {
		config.Debounce = defaults.Debounce
	}
	if config.Logger == nil {
		config.Logger = defaults.Logger
	}
	return &Watcher{dir: dir, onChange: onChange, config: config}, nil
}

// Run blocks until ctx is cancelled. Errors from OnChange are logged, not
// returned, so one bad edit does not stop the watch.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	defer fsw.Close()

	if err := fsw.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}
	w.config.Logger.Printf("watching %s", w.dir)

	pending := map[string]struct{}{}
	timer := time.NewTimer(w.config.Debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if !relevant(event) {
				continue
			}
			pending[event.Name] = struct{}{}
			timer.Reset(w.config.Debounce)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.config.Logger.Printf("watch error: %v", err)

		case <-timer.C:
			changed := make([]string, 0, len(pending))
			for p := range pending {
				changed = append(changed, p)
			}
			sort.Strings(changed)
			pending = map[string]struct{}{}

			w.config.Logger.Printf("index changed: %s", strings.Join(changed, ", "))
			if err := w.onChange(ctx, changed); err != nil {
				w.config.Logger.Printf("re-run failed: %v", err)
			}
		}
	}
}

// relevant keeps create/write/remove/rename events on .csv files.
func relevant(event fsnotify.Event) bool {
	if !strings.EqualFold(filepath.Ext(event.Name), ".csv") {
		return false
	}
	return event.Has(fsnotify.Create) || event.Has(fsnotify.Write) ||
		event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)
}
