package triviareview

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// ErrNotLoaded is returned by session operations before a file is open.
var ErrNotLoaded = errors.New("no questions loaded")

// Reviewer is one review session: the loaded questions, the view over them,
// the assignment tracker, the code files and the background autosave and
// config watch. The terminal and web front ends both drive it.
//
// Mutating methods must be called from one goroutine at a time. The
// autosaver only reads the store and the config watcher only touches labels.
type Reviewer struct {
	cfg    *Config
	logger *zap.Logger
	loader *Loader
	now    func() time.Time

	path    string
	outDir  string // set for this session only, never saved
	result  *LoadResult
	store   *Store
	view    *View
	files   *CodeFiles
	tracker *Tracker

	autosaver *Autosaver
	watcher   *ConfigWatcher
}

// NewReviewer creates a session using cfg for labels and folders.
func NewReviewer(cfg *Config, logger *zap.Logger) *Reviewer {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Reviewer{
		cfg:    cfg,
		logger: logger,
		loader: NewLoader(logger),
		now:    time.Now,
		files:  NewCodeFiles(cfg.OutputFolder(), logger),
	}
	r.reset(nil)
	return r
}

func (r *Reviewer) reset(questions []*Question) {
	r.store = NewStore(questions)
	r.view = NewView(r.store)
	r.tracker = NewTracker(r.store, r.view, r.files, r.logger)
}

// Config returns the session settings.
func (r *Reviewer) Config() *Config { return r.cfg }

// Open loads a questions file. Code files go next to it unless
// SetOutputFolder was called for this session. last_file and output_folder
// are remembered for resume and backup. Questions already present in a code
// file of that folder come back with that code.
func (r *Reviewer) Open(path string) (*LoadResult, error) {
	res, err := r.loader.LoadFile(path)
	if err != nil {
		return nil, err
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	dir := r.outDir
	if dir == "" {
		dir = filepath.Dir(path)
	}
	r.files.Dir = dir
	r.cfg.SetLastFile(path)
	r.cfg.SetOutputFolder(dir)
	r.install(path, res)
	r.restoreCodes()
	return res, nil
}

// restoreCodes gives unassigned questions the code of the code file that
// already holds them, so earlier sessions on the same file are not
// duplicated into a second code file. An unreadable code file is skipped;
// the next write to it quarantines it.
func (r *Reviewer) restoreCodes() {
	if !r.files.Enabled() {
		return
	}
	codes := make(map[QuestionKey]int)
	for code := MinCode; code <= MaxCode; code++ {
		stored, err := r.files.Read(code)
		if err != nil {
			r.logger.Warn("code file unreadable", zap.Int("code", code), zap.Error(err))
			continue
		}
		for _, q := range stored {
			k := q.Key()
			if prev, ok := codes[k]; ok {
				r.logger.Warn("question in two code files",
					zap.String("question", q.Question),
					zap.Int("kept", prev),
					zap.Int("also", code))
				continue
			}
			codes[k] = code
		}
	}
	if len(codes) == 0 {
		return
	}

	restored := 0
	for i := range r.store.Len() {
		q := r.store.At(i)
		if q.Assigned() {
			continue
		}
		if code, ok := codes[q.Key()]; ok {
			r.store.Update(i, func(q *Question) { q.AssignedCode = intPtr(code) })
			restored++
		}
	}
	if restored > 0 {
		r.view.Refresh()
		r.logger.Info("codes restored from code files", zap.Int("count", restored))
	}
}

// OpenResume loads the progress file of the output folder, restoring every
// assignment made in an earlier session.
func (r *Reviewer) OpenResume() (*LoadResult, error) {
	dir := r.OutputFolder()
	if !HasProgress(dir) {
		return nil, fmt.Errorf("no progress file in %q", dir)
	}
	path := ResumePath(dir)
	res, err := r.loader.LoadFile(path)
	if err != nil {
		return nil, err
	}
	r.files.Dir = dir
	r.cfg.SetOutputFolder(dir)
	r.install(path, res)
	return res, nil
}

func (r *Reviewer) install(path string, res *LoadResult) {
	r.path = path
	r.result = res
	r.reset(res.Questions)
	r.logger.Info("questions loaded",
		zap.String("path", path),
		zap.Int("accepted", res.Accepted()),
		zap.Int("skipped", res.Skipped()),
		zap.Int("assigned", r.view.AssignedCount()))
}

// Loaded reports whether a file is open and has questions.
func (r *Reviewer) Loaded() bool { return r.store.Len() > 0 }

// Path is the file the questions came from.
func (r *Reviewer) Path() string { return r.path }

// LoadResult is the report of the last load, or nil.
func (r *Reviewer) LoadResult() *LoadResult { return r.result }

// Store returns the loaded questions.
func (r *Reviewer) Store() *Store { return r.store }

// View returns the navigation view.
func (r *Reviewer) View() *View { return r.view }

// Tracker returns the assignment tracker.
func (r *Reviewer) Tracker() *Tracker { return r.tracker }

// OutputFolder is where code files and progress are written.
func (r *Reviewer) OutputFolder() string {
	if r.outDir != "" {
		return r.outDir
	}
	return r.cfg.OutputFolder()
}

// SetOutputFolder fixes the output folder for this session, overriding the
// folder of the files opened later.
func (r *Reviewer) SetOutputFolder(dir string) {
	r.outDir = dir
	r.files.Dir = dir
}

// Current is the question under the cursor.
func (r *Reviewer) Current() (int, *Question, bool) { return r.view.Current() }

func (r *Reviewer) Next() bool { return r.view.Next() }
func (r *Reviewer) Prev() bool { return r.view.Prev() }

// JumpTo moves to the 1-based position n of the view.
func (r *Reviewer) JumpTo(n int) error { return r.view.JumpTo(n) }

// SetFilter switches the view filter and returns to the first question.
func (r *Reviewer) SetFilter(mode FilterMode) { r.view.SetFilter(mode) }

// SetSearch filters the view by text.
func (r *Reviewer) SetSearch(term string) { r.view.SetSearch(term) }

// Assign gives the current question code.
func (r *Reviewer) Assign(code int) error {
	if !r.Loaded() {
		return ErrNotLoaded
	}
	return r.tracker.Assign(code)
}

func (r *Reviewer) Undo() error { return r.tracker.Undo() }
func (r *Reviewer) Redo() error { return r.tracker.Redo() }

// Skip flags the current question and moves on.
func (r *Reviewer) Skip() error {
	if !r.Loaded() {
		return ErrNotLoaded
	}
	return r.tracker.Skip()
}

// Edit changes the content of the question at index.
func (r *Reviewer) Edit(index int, e QuestionEdit) error { return r.tracker.Edit(index, e) }

// BulkAssign gives code to every question in indices.
func (r *Reviewer) BulkAssign(indices []int, code int) (int, error) {
	return r.tracker.BulkAssign(indices, code)
}

// Label names code for display.
func (r *Reviewer) Label(code int) string { return r.cfg.Label(code) }

// SetLabel renames code and saves the config.
func (r *Reviewer) SetLabel(code int, text string) error {
	if err := r.cfg.SetLabel(code, text); err != nil {
		return err
	}
	return r.cfg.Save()
}

// Stats computes statistics over the loaded questions.
func (r *Reviewer) Stats() *Stats { return ComputeStats(r.store.Snapshot()) }

// Save writes the progress file.
func (r *Reviewer) Save() error {
	if !r.Loaded() {
		return ErrNotLoaded
	}
	return SaveProgress(r.OutputFolder(), r.store)
}

// Backup snapshots the output folder and returns the backup path.
func (r *Reviewer) Backup() (string, error) {
	return CreateBackup(r.OutputFolder(), r.now())
}

// Rebuild rewrites every code file from the loaded questions.
func (r *Reviewer) Rebuild() error {
	if !r.Loaded() {
		return ErrNotLoaded
	}
	return r.files.Rebuild(r.store.Snapshot())
}

// Start launches the autosaver and the config watcher for the questions
// loaded now, so call it after Open. onLabels runs on the watcher goroutine
// when another process changed the labels; it may be nil. A watcher that
// cannot start is logged and the session continues.
func (r *Reviewer) Start(ctx context.Context, onLabels func()) {
	r.autosaver = NewAutosaver(r.store, r.OutputFolder, r.cfg.AutosaveInterval(), r.logger)
	r.autosaver.Start(ctx)

	w, err := NewConfigWatcher(r.cfg, r.logger, onLabels)
	if err != nil {
		r.logger.Warn("config watch disabled", zap.Error(err))
		return
	}
	if err := w.Start(ctx); err != nil {
		w.Stop()
		r.logger.Warn("config watch disabled", zap.Error(err))
		return
	}
	r.watcher = w
}

// Close stops background work, saves progress if anything changed and
// saves the config.
func (r *Reviewer) Close() error {
	if r.autosaver != nil {
		r.autosaver.Stop()
	}
	if r.watcher != nil {
		r.watcher.Stop()
	}
	var errs []error
	if r.store.Dirty() && r.Loaded() && r.OutputFolder() != "" {
		if err := r.Save(); err != nil {
			errs = append(errs, fmt.Errorf("final save: %w", err))
		}
	}
	if err := r.cfg.Save(); err != nil {
		errs = append(errs, fmt.Errorf("config save: %w", err))
	}
	return errors.Join(errs...)
}
