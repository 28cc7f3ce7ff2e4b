// Package lock provides named writer locks shared by goroutines and processes.
package lock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// ErrTimeout is returned when a lock cannot be acquired before the context ends.
var ErrTimeout = errors.New("timed out waiting for lock")

// DefaultPollInterval is how often a contended file lock is retried.
const DefaultPollInterval = 25 * time.Millisecond

// Registry hands out named locks. Each name is guarded by an in-process
// semaphore and, when dir is set, an advisory lock on dir/<name>.lock so
// separate processes sharing a knowledge base also exclude each other.
type Registry struct {
	dir  string
	poll time.Duration

	mu    sync.Mutex
	slots map[string]chan struct{}
}

// New creates a Registry. An empty dir gives in-process locking only.
func New(dir string) *Registry {
	return &Registry{
		dir:   dir,
		poll:  DefaultPollInterval,
		slots: make(map[string]chan struct{}),
	}
}

// Release unlocks everything taken by one Acquire. It is safe to call twice.
type Release func()

// Acquire takes every named lock, in sorted order to avoid lock-order
// inversion between writers. On failure nothing is left held.
func (r *Registry) Acquire(ctx context.Context, names ...string) (Release, error) {
	names = uniqueSorted(names)

	var held []func()
	unwind := func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i]()
		}
	}

	for _, name := range names {
		slot := r.slot(name)
		select {
		case slot <- struct{}{}:
		case <-ctx.Done():
			unwind()
			return nil, fmt.Errorf("%w %q: %w", ErrTimeout, name, ctx.Err())
		}
		held = append(held, func() { <-slot })

		if r.dir == "" {
			continue
		}
		f, err := r.lockFile(ctx, name)
		if err != nil {
			unwind()
			return nil, err
		}
		held = append(held, func() {
			_ = unlockFile(f)
			f.Close()
		})
	}

	var once sync.Once
	return func() { once.Do(unwind) }, nil
}

func (r *Registry) slot(name string) chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.slots[name]
	if !ok {
		s = make(chan struct{}, 1)
		r.slots[name] = s
	}
	return s
}

// lockFile opens dir/<name>.lock and polls for an exclusive lock.
func (r *Registry) lockFile(ctx context.Context, name string) (*os.File, error) {
	if err := os.MkdirAll(r.dir, 0755); err != nil {
		return nil, fmt.Errorf("creating lock directory: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(r.dir, name+".lock"), os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening lock file: %w", err)
	}

	ticker := time.NewTicker(r.poll)
	defer ticker.Stop()
	for {
		locked, err := tryLockFile(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("locking %s: %w", name, err)
		}
		if locked {
			return f, nil
		}
		select {
		case <-ctx.Done():
			f.Close()
			return nil, fmt.Errorf("%w %q: %w", ErrTimeout, name, ctx.Err())
		case <-ticker.C:
		}
	}
}

func uniqueSorted(names []string) []string {
	out := append([]string(nil), names...)
	sort.Strings(out)
	j := 0
	for i, n := range out {
		if i > 0 && n == out[j-1] {
			continue
		}
		out[j] = n
		j++
	}
	return out[:j]
}
