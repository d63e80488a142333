package triviareview

import (
	"errors"
	"fmt"
)

var (
	// ErrParse means the input text could not be turned into JSON even after
	// cleanup. Nothing is loaded when it is returned.
	ErrParse = errors.New("questions file is not valid JSON after cleanup")

	ErrNoCurrent     = errors.New("no current question")
	ErrInvalidCode   = fmt.Errorf("code must be between %d and %d", MinCode, MaxCode)
	ErrNothingToUndo = errors.New("nothing to undo")
	ErrNothingToRedo = errors.New("nothing to redo")
)

// RejectError explains why a flattened candidate was not admitted.
type RejectError struct {
	Index  int // 0-based position among the flattened candidates
	Reason string
}

func (e *RejectError) Error() string {
	return fmt.Sprintf("question %d: %s", e.Index+1, e.Reason)
}

// InputError is a user input problem. The operation that returns it made no
// state change.
type InputError struct {
	Msg string
}

func (e *InputError) Error() string {
	return e.Msg
}

func inputErrorf(format string, args ...any) *InputError {
	return &InputError{Msg: fmt.Sprintf(format, args...)}
}

// FileError reports a failed read or write of an output file. When it comes
// back from an assignment operation the in-memory change has already been
// applied; the file side needs attention.
type FileError struct {
	Op   string
	Path string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}
