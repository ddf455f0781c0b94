package watcher

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/probelab/webprobe/internal/suite"
)

// ScenarioWatcher monitors a scenario directory and reloads its YAML files
// when they change, so a running server picks up edited scenarios without a
// restart. Changes are debounced: a burst of writes triggers one reload.
type ScenarioWatcher struct {
	dir      string
	debounce time.Duration
	watcher  *fsnotify.Watcher
	log      *logrus.Logger

	mu       sync.Mutex
	running  bool
	onReload func(scenarios []suite.Scenario)
}

func NewScenarioWatcher(dir string, log *logrus.Logger) (*ScenarioWatcher, error) {
	if log == nil {
		log = logrus.New()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	return &ScenarioWatcher{
		dir:      dir,
		debounce: 500 * time.Millisecond,
		watcher:  fsw,
		log:      log,
	}, nil
}

// OnReload registers the callback invoked with the freshly loaded scenario
// set after each debounced change. Must be called before Start.
func (w *ScenarioWatcher) OnReload(fn func(scenarios []suite.Scenario)) {
	w.mu.Lock()
	w.onReload = fn
	w.mu.Unlock()
}

// Start watches until ctx is cancelled. It blocks, so callers usually run it
// in a goroutine.
func (w *ScenarioWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("watcher already running")
	}
	w.running = true
	w.mu.Unlock()
	defer w.watcher.Close()

	if err := w.watcher.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}
	w.log.WithField("dir", w.dir).Info("watching scenario directory")

	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if !isScenarioFile(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			w.log.WithError(err).Warn("watch error")

		case <-timerC:
			timer = nil
			timerC = nil
			w.reload()
		}
	}
}

func (w *ScenarioWatcher) reload() {
	scenarios, err := suite.LoadDir(w.dir)
	if err != nil {
		w.log.WithError(err).Warn("scenario reload failed, keeping previous set")
		return
	}
	w.log.WithField("scenarios", len(scenarios)).Info("scenarios reloaded")

	w.mu.Lock()
	fn := w.onReload
	w.mu.Unlock()
	if fn != nil {
		fn(scenarios)
	}
}

func isScenarioFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}
