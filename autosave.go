package triviareview

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultAutosaveInterval is how often unsaved changes are written.
const DefaultAutosaveInterval = 30 * time.Second

// Autosaver periodically writes the progress file while the store has
// unsaved changes. It is the only goroutine besides the UI that touches the
// store, and it only reads.
type Autosaver struct {
	store    *Store
	dir      func() string
	interval time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
	saves   int
}

// NewAutosaver creates an autosaver for store. dir is asked for the output
// folder at each tick so a folder chosen later is picked up. A non-positive
// interval uses DefaultAutosaveInterval.
func NewAutosaver(store *Store, dir func() string, interval time.Duration, logger *zap.Logger) *Autosaver {
	if interval <= 0 {
		interval = DefaultAutosaveInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Autosaver{store: store, dir: dir, interval: interval, logger: logger}
}

// Start launches the loop. It is a no-op if already running.
func (a *Autosaver) Start(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.running {
		return
	}
	a.running = true
	a.stopCh = make(chan struct{})
	a.doneCh = make(chan struct{})
	go a.run(ctx, a.stopCh, a.doneCh)
}

// Stop ends the loop and waits for it to exit.
func (a *Autosaver) Stop() {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return
	}
	a.running = false
	stopCh, doneCh := a.stopCh, a.doneCh
	a.mu.Unlock()

	close(stopCh)
	<-doneCh
}

// Saves returns how many times the loop has written the progress file.
func (a *Autosaver) Saves() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.saves
}

func (a *Autosaver) run(ctx context.Context, stopCh, doneCh chan struct{}) {
	defer close(doneCh)
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-ticker.C:
			a.tick()
		}
	}
}

func (a *Autosaver) tick() {
	if !a.store.Dirty() || a.store.Len() == 0 {
		return
	}
	dir := a.dir()
	if dir == "" {
		return
	}
	if err := SaveProgress(dir, a.store); err != nil {
		a.logger.Warn("autosave failed", zap.String("dir", dir), zap.Error(err))
		return
	}
	a.mu.Lock()
	a.saves++
	a.mu.Unlock()
	a.logger.Debug("autosaved progress", zap.String("dir", dir))
}
