package triviareview

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
)

// CodeFiles mirrors assignments into one JSON array file per code inside
// Dir. An empty Dir turns mirroring off and every method becomes a no-op.
type CodeFiles struct {
	Dir    string
	logger *zap.Logger
	now    func() time.Time
}

// NewCodeFiles creates a writer for dir.
func NewCodeFiles(dir string, logger *zap.Logger) *CodeFiles {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CodeFiles{Dir: dir, logger: logger, now: time.Now}
}

// Enabled reports whether an output folder is set.
func (c *CodeFiles) Enabled() bool {
	return c != nil && c.Dir != ""
}

// Path returns the file for code.
func (c *CodeFiles) Path(code int) string {
	return filepath.Join(c.Dir, fmt.Sprintf("code_%d.json", code))
}

// Upsert writes q into the file for code, replacing any record with the
// same key.
func (c *CodeFiles) Upsert(q *Question, code int) error {
	if !c.Enabled() {
		return nil
	}
	path := c.Path(code)
	records, _, err := c.readRecords(path)
	if err != nil {
		return err
	}
	data, err := marshalNoEscape(q)
	if err != nil {
		return &FileError{Op: "encode", Path: path, Err: err}
	}
	records = append(withoutKey(records, q.Key()), data)
	return c.writeRecords(path, records)
}

// Remove deletes the record with q's key from the file for code. A missing
// file is left missing.
func (c *CodeFiles) Remove(q *Question, code int) error {
	if !c.Enabled() {
		return nil
	}
	path := c.Path(code)
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	records, quarantined, err := c.readRecords(path)
	if err != nil {
		return err
	}
	kept := withoutKey(records, q.Key())
	if len(kept) == len(records) && !quarantined {
		return nil
	}
	return c.writeRecords(path, kept)
}

// Read returns the questions stored in the file for code. A missing file
// reads as empty.
func (c *CodeFiles) Read(code int) ([]*Question, error) {
	if !c.Enabled() {
		return nil, nil
	}
	path := c.Path(code)
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return []*Question{}, nil
	}
	if err != nil {
		return nil, &FileError{Op: "read", Path: path, Err: err}
	}
	var out []*Question
	if len(bytes.TrimSpace(raw)) == 0 {
		return []*Question{}, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, &FileError{Op: "decode", Path: path, Err: err}
	}
	return out, nil
}

// Rebuild rewrites every code file from questions. Files for codes with no
// assigned questions are emptied if they exist.
func (c *CodeFiles) Rebuild(questions []*Question) error {
	if !c.Enabled() {
		return nil
	}
	byCode := make(map[int][]json.RawMessage)
	for _, q := range questions {
		code, ok := q.Code()
		if !ok || !ValidCode(code) {
			continue
		}
		data, err := marshalNoEscape(q)
		if err != nil {
			return &FileError{Op: "encode", Path: c.Path(code), Err: err}
		}
		byCode[code] = append(withoutKey(byCode[code], q.Key()), data)
	}
	var errs []error
	for code := MinCode; code <= MaxCode; code++ {
		path := c.Path(code)
		records, ok := byCode[code]
		if !ok {
			if _, err := os.Stat(path); err != nil {
				continue
			}
			records = []json.RawMessage{}
		}
		if err := c.writeRecords(path, records); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// readRecords loads the array at path as raw records. A corrupt file is
// copied aside with a timestamp suffix and treated as empty; the second
// result reports that this happened.
func (c *CodeFiles) readRecords(path string) ([]json.RawMessage, bool, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return []json.RawMessage{}, false, nil
	}
	if err != nil {
		return nil, false, &FileError{Op: "read", Path: path, Err: err}
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return []json.RawMessage{}, false, nil
	}
	var records []json.RawMessage
	if err := json.Unmarshal(raw, &records); err != nil {
		backup := path + ".backup_" + c.now().Format("20060102_150405")
		if werr := os.WriteFile(backup, raw, 0o644); werr != nil {
			return nil, false, &FileError{Op: "quarantine", Path: path, Err: werr}
		}
		c.logger.Warn("code file was corrupt, backed it up and started a new list",
			zap.String("path", path), zap.String("backup", backup), zap.Error(err))
		return []json.RawMessage{}, true, nil
	}
	return records, false, nil
}

func (c *CodeFiles) writeRecords(path string, records []json.RawMessage) error {
	if records == nil {
		records = []json.RawMessage{}
	}
	data, err := encodeRecords(records)
	if err != nil {
		return &FileError{Op: "encode", Path: path, Err: err}
	}
	if err := writeFileAtomic(path, data); err != nil {
		return &FileError{Op: "write", Path: path, Err: err}
	}
	return nil
}

func withoutKey(records []json.RawMessage, key QuestionKey) []json.RawMessage {
	out := make([]json.RawMessage, 0, len(records))
	for _, r := range records {
		if k, ok := recordKey(r); ok && k == key {
			continue
		}
		out = append(out, r)
	}
	return out
}

// recordKey extracts the (question, answer) pair from a raw record. Records
// that are not objects have no key and are kept as they are.
func recordKey(raw json.RawMessage) (QuestionKey, bool) {
	var fields struct {
		Question json.RawMessage `json:"question"`
		Answer   json.RawMessage `json:"answer"`
	}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return QuestionKey{}, false
	}
	var k QuestionKey
	if decodeText(fields.Question, &k.Question) != nil || decodeText(fields.Answer, &k.Answer) != nil {
		return QuestionKey{}, false
	}
	return k, true
}

var (
	reStringArray = regexp.MustCompile(`\[\s*\n\s*"(?:[^"\\]|\\.)*"(?:\s*,\s*\n\s*"(?:[^"\\]|\\.)*")*\s*\n\s*\]`)
	reStringLit   = regexp.MustCompile(`"(?:[^"\\]|\\.)*"`)
)

// encodeRecords renders records as an indented array with every array of
// strings kept on one line.
func encodeRecords(records []json.RawMessage) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return nil, err
	}
	return collapseStringArrays(buf.Bytes()), nil
}

func collapseStringArrays(data []byte) []byte {
	return reStringArray.ReplaceAllFunc(data, func(m []byte) []byte {
		lits := reStringLit.FindAll(m, -1)
		parts := make([]string, len(lits))
		for i, l := range lits {
			parts[i] = string(l)
		}
		return []byte("[" + strings.Join(parts, ", ") + "]")
	})
}

// writeFileAtomic writes data to a temporary sibling of path and renames it
// into place. The temporary file is removed on any failure.
func writeFileAtomic(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()
	if _, err = tmp.Write(data); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
