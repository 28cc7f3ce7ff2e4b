// Package watch triggers ingestion when PDFs land in a directory.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/plasmarag/plasmarag/internal/logger"
)

// DefaultSettle is how long a file must stay quiet before it is handed off.
const DefaultSettle = 2 * time.Second

// Handler processes one settled file.
type Handler func(ctx context.Context, path string)

// Options configures a Watcher.
type Options struct {
	Extensions []string      // Defaults to .pdf
	Settle     time.Duration // Defaults to DefaultSettle
}

// Watcher reports files that were created or rewritten, once each write burst
// has settled.
type Watcher struct {
	watcher    *fsnotify.Watcher
	extensions []string
	settle     time.Duration
	log        *zap.Logger
}

// New creates a Watcher with no directories registered.
func New(opts Options) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}

	if len(opts.Extensions) == 0 {
		opts.Extensions = []string{".pdf"}
	}
	if opts.Settle <= 0 {
		opts.Settle = DefaultSettle
	}

	return &Watcher{
		watcher:    w,
		extensions: opts.Extensions,
		settle:     opts.Settle,
		log:        logger.Named("watch"),
	}, nil
}

// Add registers a directory. Subdirectories are not followed.
func (w *Watcher) Add(dir string) error {
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}
	return nil
}

// Run dispatches settled files to handle until ctx is cancelled. handle runs
// on a single worker goroutine, one file at a time, while the event loop
// keeps draining filesystem events. A path already queued is not queued
// twice. Run returns only after the worker has finished.
func (w *Watcher) Run(ctx context.Context, handle Handler) error {
	tick := w.settle / 4
	if tick <= 0 {
		tick = w.settle
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	work := make(chan string)
	stop := make(chan struct{})
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		for {
			select {
			case <-stop:
				return
			case path := <-work:
				handle(ctx, path)
			}
		}
	}()
	defer func() {
		close(stop)
		<-workerDone
	}()

	pending := make(map[string]time.Time)
	var ready []string
	queued := make(map[string]bool)

	for {
		// A nil channel disables the send case while nothing is ready.
		var send chan<- string
		var next string
		if len(ready) > 0 {
			send, next = work, ready[0]
		}

		select {
		case <-ctx.Done():
			return ctx.Err()

		case send <- next:
			ready = ready[1:]
			delete(queued, next)
			w.log.Debug("file handed off", zap.String("path", next))

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !w.isWatched(event.Name) {
				continue
			}
			switch {
			case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
				pending[event.Name] = time.Now()
			case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
				delete(pending, event.Name)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watch error", zap.Error(err))

		case now := <-ticker.C:
			for _, path := range settled(pending, now, w.settle) {
				delete(pending, path)
				if queued[path] {
					continue
				}
				w.log.Debug("file settled", zap.String("path", path))
				queued[path] = true
				ready = append(ready, path)
			}
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

// settled returns the paths quiet for at least d, oldest first.
func settled(pending map[string]time.Time, now time.Time, d time.Duration) []string {
	var out []string
	for path, last := range pending {
		if now.Sub(last) >= d {
			out = append(out, path)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := pending[out[i]], pending[out[j]]
		if a.Equal(b) {
			return out[i] < out[j]
		}
		return a.Before(b)
	})
	return out
}

// isWatched skips hidden and partial files and filters by extension.
func (w *Watcher) isWatched(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") || strings.HasPrefix(base, "~$") {
		return false
	}
	ext := filepath.Ext(base)
	for _, e := range w.extensions {
		if strings.EqualFold(ext, e) {
			return true
		}
	}
	return false
}
