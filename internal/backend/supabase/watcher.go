package supabase

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// sessionWatcher reports changes to the session file made by any process.
// The directory is watched rather than the file so atomic replacements and
// re-creation after removal are seen.
type sessionWatcher struct {
	w    *fsnotify.Watcher
	done chan struct{}
	wg   sync.WaitGroup
}

func newSessionWatcher(path string, onChange func(), logger *zap.Logger) (*sessionWatcher, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create session watcher: %w", err)
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	sw := &sessionWatcher{w: w, done: make(chan struct{})}
	target := filepath.Clean(path)
	sw.wg.Add(1)
	go func() {
		defer sw.wg.Done()
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target {
					continue
				}
				if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
					continue
				}
				onChange()
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Warn("session watcher error", zap.Error(err))
			case <-sw.done:
				return
			}
		}
	}()
	return sw, nil
}

// Close stops the watcher and waits for its goroutine.
func (sw *sessionWatcher) Close() {
	close(sw.done)
	sw.w.Close()
	sw.wg.Wait()
}
