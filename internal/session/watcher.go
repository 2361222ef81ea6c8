package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/docshare/docsync/internal/record"
)

// Watcher mirrors a session file into the Manager. The file holds the
// signed-in identity as JSON; an auth frontend rewrites it on sign-in
// and removes it on sign-out, and the daemon follows along without a
// direct channel to the frontend.
type Watcher struct {
	path    string
	manager *Manager
	logger  *log.Logger

	watcher *fsnotify.Watcher
	done    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// NewWatcher creates a watcher for the session file at path. The
// watcher must be started with Start before it applies changes.
func NewWatcher(path string, manager *Manager, logger *log.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if logger == nil {
		logger = log.New(os.Stderr, "[session] ", log.LstdFlags)
	}

	return &Watcher{
		path:    filepath.Clean(path),
		manager: manager,
		logger:  logger,
		watcher: fsw,
		done:    make(chan struct{}),
	}, nil
}

// Start applies the current file state, then begins following changes.
// The parent directory is watched rather than the file itself so that
// atomic rename-over-replace writes are seen.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return fmt.Errorf("session watcher already running")
	}

	dir := filepath.Dir(w.path)
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch session directory %s: %w", dir, err)
	}

	w.apply(ctx)

	w.running = true
	w.wg.Add(1)
	go w.processEvents(ctx)

	return nil
}

// Stop stops following the session file. It blocks until the event
// loop has exited. The active identity is left as-is.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	w.mu.Unlock()

	close(w.done)
	if err := w.watcher.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}
	w.wg.Wait()
	return nil
}

// IsRunning reports whether the watcher is currently running.
func (w *Watcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *Watcher) processEvents(ctx context.Context) {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) ||
				event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				w.apply(ctx)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Printf("session watch error: %v", err)
		}
	}
}

// apply reads the session file and signs in or out accordingly. A
// missing file means signed out; an unreadable or invalid file is
// logged and skipped so a half-written file cannot sign the user out.
func (w *Watcher) apply(ctx context.Context) {
	data, err := os.ReadFile(w.path)
	if os.IsNotExist(err) {
		w.manager.SignOut()
		return
	}
	if err != nil {
		w.logger.Printf("failed to read session file: %v", err)
		return
	}
	if len(data) == 0 {
		// Mid-rewrite; the follow-up write event will land shortly.
		return
	}

	var identity record.Identity
	if err := json.Unmarshal(data, &identity); err != nil {
		w.logger.Printf("invalid session file, keeping current identity: %v", err)
		return
	}
	if err := identity.Validate(); err != nil {
		w.logger.Printf("invalid session file, keeping current identity: %v", err)
		return
	}

	if err := w.manager.SignIn(ctx, identity); err != nil {
		w.logger.Printf("failed to apply session change: %v", err)
	}
}
