package triviareview

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// ConfigWatcher reloads code labels when the config file is rewritten by
// another process (a second reviewer window, a text editor). The directory
// is watched rather than the file because atomic saves replace the inode.
type ConfigWatcher struct {
	cfg      *Config
	watcher  *fsnotify.Watcher
	logger   *zap.Logger
	debounce time.Duration
	onChange func()

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewConfigWatcher creates a watcher for cfg. onChange runs on the watcher
// goroutine after labels were reloaded with a different result; it may be
// nil.
func NewConfigWatcher(cfg *Config, logger *zap.Logger, onChange func()) (*ConfigWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConfigWatcher{
		cfg:      cfg,
		watcher:  w,
		logger:   logger,
		debounce: 200 * time.Millisecond,
		onChange: onChange,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Start begins watching. It does not block.
func (cw *ConfigWatcher) Start(ctx context.Context) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	if cw.running {
		return nil
	}
	dir := filepath.Dir(cw.cfg.Path())
	if err := cw.watcher.Add(dir); err != nil {
		return err
	}
	cw.running = true
	go cw.run(ctx)
	return nil
}

// Stop ends the watch loop, waits for it and releases the watcher.
func (cw *ConfigWatcher) Stop() {
	cw.mu.Lock()
	wasRunning := cw.running
	cw.running = false
	cw.mu.Unlock()

	if wasRunning {
		close(cw.stopCh)
		<-cw.doneCh
	}
	if err := cw.watcher.Close(); err != nil {
		cw.logger.Warn("closing config watcher", zap.Error(err))
	}
}

func (cw *ConfigWatcher) run(ctx context.Context) {
	defer close(cw.doneCh)

	target := filepath.Clean(cw.cfg.Path())
	timer := time.NewTimer(cw.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-cw.stopCh:
			return
		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			timer.Reset(cw.debounce)
		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			cw.logger.Warn("config watcher error", zap.Error(err))
		case <-timer.C:
			cw.reload()
		}
	}
}

func (cw *ConfigWatcher) reload() {
	changed, err := cw.cfg.ReloadLabels()
	if err != nil {
		// A half-written file from a non-atomic editor; the next write
		// event retries.
		cw.logger.Debug("config reload skipped", zap.Error(err))
		return
	}
	if !changed {
		return
	}
	cw.logger.Info("code labels reloaded", zap.String("path", cw.cfg.Path()))
	if cw.onChange != nil {
		cw.onChange()
	}
}
