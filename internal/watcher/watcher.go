package watcher

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Event represents a file change detected by the watcher.
type Event struct {
	Path string
	Op   fsnotify.Op
}

// Watcher monitors log files for changes using OS-level notifications.
// It watches the parent directory of every file and filters by path, so a
// file that is renamed away and recreated (log rotation) keeps reporting.
type Watcher struct {
	fsw     *fsnotify.Watcher
	Events  chan Event
	paths   []string
	tracked map[string]bool
	log     *zap.Logger
}

// New creates a Watcher for the given glob patterns.
// Patterns are expanded at startup; files that exist then are watched.
func New(patterns []string, logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		fsw:     fsw,
		Events:  make(chan Event, 256),
		tracked: make(map[string]bool),
		log:     logger,
	}

	dirs := make(map[string]error)
	for _, m := range Expand(patterns, logger) {
		if _, err := os.Stat(m); err != nil {
			logger.Warn("cannot watch file", zap.String("path", m), zap.Error(err))
			continue
		}
		dir := filepath.Dir(m)
		err, seen := dirs[dir]
		if !seen {
			err = fsw.Add(dir)
			dirs[dir] = err
		}
		if err != nil {
			logger.Warn("cannot watch directory", zap.String("dir", dir), zap.String("path", m), zap.Error(err))
			continue
		}
		w.tracked[m] = true
		w.paths = append(w.paths, m)
	}

	return w, nil
}

// Start begins listening for file events. It blocks until the context is cancelled.
func (w *Watcher) Start(ctx context.Context) {
	defer w.fsw.Close()
	defer close(w.Events)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			path := filepath.Clean(ev.Name)
			if !w.tracked[path] {
				continue
			}
			switch {
			case ev.Op&(fsnotify.Write|fsnotify.Create) != 0:
				w.send(ctx, Event{Path: path, Op: ev.Op})
			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				// Rotated logs are usually recreated under the same name;
				// the directory watch reports the Create.
				w.log.Debug("watched file moved or removed", zap.String("path", path), zap.Stringer("op", ev.Op))
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn("watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) send(ctx context.Context, ev Event) {
	select {
	case w.Events <- ev:
	case <-ctx.Done():
	}
}

// Paths returns the list of files currently being watched.
func (w *Watcher) Paths() []string {
	return w.paths
}

// Expand resolves glob patterns to absolute file paths, in pattern order
// and without duplicates. Supports recursive patterns like
// /var/log/**/*.log via doublestar. A pattern without glob metacharacters
// is kept even if it does not exist, so the caller can report it.
func Expand(patterns []string, logger *zap.Logger) []string {
	if logger == nil {
		logger = zap.NewNop()
	}
	seen := make(map[string]bool)
	var out []string
	add := func(p string) {
		abs, err := filepath.Abs(p)
		if err != nil {
			abs = p
		}
		if !seen[abs] {
			seen[abs] = true
			out = append(out, abs)
		}
	}

	for _, pattern := range patterns {
		if !hasMeta(pattern) {
			add(pattern)
			continue
		}
		matches, err := expandGlob(pattern)
		if err != nil {
			logger.Warn("failed to expand pattern", zap.String("pattern", pattern), zap.Error(err))
			continue
		}
		if len(matches) == 0 {
			logger.Warn("pattern matched no files", zap.String("pattern", pattern))
		}
		slices.Sort(matches)
		for _, m := range matches {
			add(m)
		}
	}
	return out
}

func hasMeta(pattern string) bool {
	for _, c := range pattern {
		switch c {
		case '*', '?', '[', '{':
			return true
		}
	}
	return false
}

// expandGlob resolves a glob pattern to matching file paths.
func expandGlob(pattern string) ([]string, error) {
	return doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly(), doublestar.WithFailOnIOErrors())
}

// Debounce collapses bursts of events per path. A path is emitted once no
// further event for it has arrived for d. The returned channel is closed
// after in is closed and pending paths are flushed, or when ctx ends.
func Debounce(ctx context.Context, in <-chan Event, d time.Duration) <-chan string {
	out := make(chan string, 64)

	go func() {
		defer close(out)

		// timers is only touched by this goroutine; callbacks report back
		// through fire.
		timers := make(map[string]*time.Timer)
		fire := make(chan string)

		emit := func(p string) bool {
			select {
			case out <- p:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for {
			select {
			case <-ctx.Done():
				for _, t := range timers {
					t.Stop()
				}
				return
			case ev, ok := <-in:
				if !ok {
					inFlight := 0
					var pending []string
					for p, t := range timers {
						if t.Stop() {
							pending = append(pending, p)
						} else {
							inFlight++
						}
					}
					for ; inFlight > 0; inFlight-- {
						select {
						case p := <-fire:
							pending = append(pending, p)
						case <-ctx.Done():
							return
						}
					}
					slices.Sort(pending)
					for _, p := range pending {
						if !emit(p) {
							return
						}
					}
					return
				}
				if d <= 0 {
					if !emit(ev.Path) {
						return
					}
					continue
				}
				if t, ok := timers[ev.Path]; ok && t.Stop() {
					t.Reset(d)
					continue
				}
				if _, ok := timers[ev.Path]; ok {
					// Already fired; the path is on its way through fire.
					continue
				}
				p := ev.Path
				timers[p] = time.AfterFunc(d, func() {
					select {
					case fire <- p:
					case <-ctx.Done():
					}
				})
			case p := <-fire:
				delete(timers, p)
				if !emit(p) {
					return
				}
			}
		}
	}()

	return out
}
