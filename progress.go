package triviareview

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// ProgressFileName is the full-state backup written to the output folder.
const ProgressFileName = "progress_backup.json"

// ResumePath returns the progress file inside dir.
func ResumePath(dir string) string {
	return filepath.Join(dir, ProgressFileName)
}

// SaveProgress writes every question, with its assignment state, to the
// progress file in dir and marks the store saved. Changes made while the
// file was being written keep the store dirty.
func SaveProgress(dir string, store *Store) error {
	if dir == "" {
		return errors.New("no output folder selected")
	}
	questions, rev := store.SnapshotRev()
	path := ResumePath(dir)

	data, err := encodeQuestions(questions)
	if err != nil {
		return &FileError{Op: "encode", Path: path, Err: err}
	}
	if err := writeFileAtomic(path, data); err != nil {
		return &FileError{Op: "write", Path: path, Err: err}
	}
	store.MarkSaved(rev)
	return nil
}

// encodeQuestions renders questions as an indented JSON array without HTML
// escaping.
func encodeQuestions(questions []*Question) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(questions); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// HasProgress reports whether dir holds a progress file.
func HasProgress(dir string) bool {
	if dir == "" {
		return false
	}
	_, err := os.Stat(ResumePath(dir))
	return err == nil
}

// CreateBackup copies every code file and the progress file from dir into a
// new backup_YYYYmmdd_HHMMSS folder and returns its path.
func CreateBackup(dir string, now time.Time) (string, error) {
	if dir == "" {
		return "", errors.New("no output folder selected")
	}
	target := filepath.Join(dir, "backup_"+now.Format("20060102_150405"))
	if err := os.MkdirAll(target, 0o755); err != nil {
		return "", fmt.Errorf("failed to create backup folder: %w", err)
	}

	names := make([]string, 0, MaxCode-MinCode+2)
	for code := MinCode; code <= MaxCode; code++ {
		names = append(names, fmt.Sprintf("code_%d.json", code))
	}
	names = append(names, ProgressFileName)

	for _, name := range names {
		err := copyFile(filepath.Join(dir, name), filepath.Join(target, name))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return target, fmt.Errorf("failed to back up %s: %w", name, err)
		}
	}
	return target, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Chtimes(dst, info.ModTime(), info.ModTime())
}
