package triviareview

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// LLMLogger writes a plain transcript of every model exchange in one
// generation or verification run. A nil *LLMLogger discards everything.
type LLMLogger struct {
	mu    sync.Mutex
	w     io.Writer
	close func() error
	now   func() time.Time
}

// NewLLMLogger creates dir/<runID>.log and writes the run header.
func NewLLMLogger(dir, runID string, header map[string]string) (*LLMLogger, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	file, err := os.Create(filepath.Join(dir, runID+".log"))
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}
	ll := newLLMLogger(file, file.Close)
	ll.writeHeader(runID, header)
	return ll, nil
}

func newLLMLogger(w io.Writer, closeFn func() error) *LLMLogger {
	return &LLMLogger{w: w, close: closeFn, now: time.Now}
}

func (ll *LLMLogger) writeHeader(runID string, header map[string]string) {
	ll.Logf("=== Run %s ===\n", runID)
	for _, key := range sortedKeys(header) {
		ll.Logf("%s: %s\n", key, header[key])
	}
	ll.Logf("Started: %s\n\n", ll.now().Format(time.RFC3339))
}

// Logf writes one timestamped entry.
func (ll *LLMLogger) Logf(format string, args ...any) {
	if ll == nil {
		return
	}
	ll.mu.Lock()
	defer ll.mu.Unlock()
	ll.logf(format, args...)
}

// logf expects ll.mu to be held.
func (ll *LLMLogger) logf(format string, args ...any) {
	if ll.w == nil {
		return
	}
	fmt.Fprintf(ll.w, "[%s] %s", ll.now().Format("15:04:05.000"), fmt.Sprintf(format, args...))
	if f, ok := ll.w.(*os.File); ok {
		_ = f.Sync()
	}
}

// LogRequest records a prompt sent by the named component.
func (ll *LLMLogger) LogRequest(component, prompt string) {
	if ll == nil {
		return
	}
	ll.mu.Lock()
	defer ll.mu.Unlock()
	ll.logf("--- request (%s) ---\n%s\n\n", component, prompt)
}

// LogResponse records the raw reply for the named component.
func (ll *LLMLogger) LogResponse(component, response string) {
	if ll == nil {
		return
	}
	ll.mu.Lock()
	defer ll.mu.Unlock()
	ll.logf("--- response (%s) ---\n%s\n\n", component, response)
}

// LogResult records what happened to one question.
func (ll *LLMLogger) LogResult(question, outcome, reason string) {
	ll.Logf("%s: %s (%s)\n", outcome, preview(question), reason)
}

// Close writes the footer and closes the file. Later calls are no-ops.
func (ll *LLMLogger) Close() error {
	if ll == nil {
		return nil
	}
	ll.mu.Lock()
	defer ll.mu.Unlock()
	if ll.w == nil {
		return nil
	}
	ll.logf("Completed: %s\n", ll.now().Format(time.RFC3339))
	ll.w = nil
	if ll.close != nil {
		return ll.close()
	}
	return nil
}
