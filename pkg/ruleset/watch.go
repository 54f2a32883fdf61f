package ruleset

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jingkaihe/httpintercept/internal/errx"
	"github.com/jingkaihe/httpintercept/pkg/intercept"
)

// DefaultDebounce collapses the burst of events an editor save produces.
const DefaultDebounce = 200 * time.Millisecond

// Watcher keeps an Interceptor in sync with a rules file.
//
// A reload registers the new rules before removing the old ones, so there
// is no window where neither set is active. A rules file that fails to load
// leaves the previous rules in place.
//
// Reloaded rules are registered after everything already on the
// Interceptor. Interceptors and mappings added by other code before a
// reload therefore take precedence over the file's rules once it reloads.
type Watcher struct {
	path     string
	ic       *intercept.Interceptor
	logger   *slog.Logger
	debounce time.Duration

	mu      sync.Mutex
	current *Set

	// OnReload, if set, is called after every reload attempt.
	OnReload func(set *Set, err error)
}

// NewWatcher creates a Watcher for the rules file at path.
func NewWatcher(path string, ic *intercept.Interceptor, logger *slog.Logger) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errx.Wrap(ErrLoadRules, err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		path:     abs,
		ic:       ic,
		logger:   logger.With("component", "ruleset", "path", abs),
		debounce: DefaultDebounce,
	}, nil
}

// SetDebounce overrides DefaultDebounce.
func (w *Watcher) SetDebounce(d time.Duration) { w.debounce = d }

// Path returns the absolute path of the watched rules file.
func (w *Watcher) Path() string { return w.path }

// Current returns the active rule set, or nil before the first load.
func (w *Watcher) Current() *Set {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Reload loads the rules file and swaps it in.
func (w *Watcher) Reload() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	set, err := LoadAndApply(w.path, w.ic, w.logger)
	if err != nil {
		w.logger.Warn("rules reload failed, keeping previous rules", "error", err)
		w.notify(nil, err)
		return err
	}

	prev := w.current
	w.current = set
	prev.Remove()

	w.logger.Info("rules loaded", "rules", set.Len())
	w.notify(set, nil)
	return nil
}

func (w *Watcher) notify(set *Set, err error) {
	if w.OnReload != nil {
		w.OnReload(set, err)
	}
}

// Run watches the rules file until ctx is done. The directory is watched
// rather than the file so atomic replace-by-rename is seen.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return errx.Wrap(ErrWatchRules, err)
	}
	defer fw.Close()

	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return errx.Wrap(ErrWatchRules, err)
	}
	w.logger.Debug("watching rules file")

	var (
		timer  *time.Timer
		timerC <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			w.logger.Debug("rules file changed", "op", ev.Op.String())
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			timerC = timer.C

		case <-timerC:
			timerC = nil
			_ = w.Reload()

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("rules watcher error", "error", err)
		}
	}
}

// Close removes the active rules from the Interceptor.
func (w *Watcher) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.current.Remove()
	w.current = nil
}
