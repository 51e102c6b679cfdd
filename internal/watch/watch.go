// Package watch re-runs the pipeline whenever the bronze directory
// changes, debouncing bursts of file events into one run.
package watch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Runner is the action triggered on changes; in production it is the
// pipeline's Run.
type Runner func(ctx context.Context) error

// Watcher debounces filesystem events into pipeline runs.
type Watcher struct {
	dir      string
	debounce time.Duration
	run      Runner
	logger   *zap.Logger
}

// New creates a watcher over dir.
func New(dir string, debounce time.Duration, run Runner, logger *zap.Logger) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if debounce <= 0 {
		debounce = 2 * time.Second
	}
	return &Watcher{dir: dir, debounce: debounce, run: run, logger: logger}
}

// Watch blocks until ctx is done, triggering a run after each settled
// burst of CSV changes. A failed run is logged and watching continues.
func (w *Watcher) Watch(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: create watcher: %w", err)
	}
	defer func() { _ = fw.Close() }()

	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("watch: add %s: %w", w.dir, err)
	}
	w.logger.Info("watching bronze directory", zap.String("dir", w.dir))

	var timer *time.Timer
	var timerC <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !relevant(event) {
				continue
			}
			w.logger.Debug("bronze changed", zap.String("file", event.Name), zap.String("op", event.Op.String()))
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				if !timer.Stop() {
					<-timerC
				}
				timer.Reset(w.debounce)
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watch error", zap.Error(err))

		case <-timerC:
			timer = nil
			timerC = nil
			if err := w.run(ctx); err != nil {
				w.logger.Error("triggered run failed", zap.Error(err))
			}
		}
	}
}

// relevant filters for CSV writes; editors and exporters produce
// chmod/rename noise we do not care about.
func relevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return false
	}
	return strings.HasSuffix(strings.ToLower(event.Name), ".csv")
}
