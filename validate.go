package triviareview

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"

	"go.uber.org/zap"
)

var requiredFields = []string{fieldQuestion, fieldAnswer, fieldOptions, fieldCategory, fieldDifficulty}

// ValidateCandidate admits or rejects one flattened candidate. index is its
// position among the candidates and is only used for the reason text.
// Accepted candidates come back unchanged as a Question.
func ValidateCandidate(index int, candidate any) (*Question, error) {
	var obj *Object
	switch t := candidate.(type) {
	case *Object:
		obj = t
	case map[string]any:
		obj = objectFromMap(t)
	default:
		return nil, &RejectError{Index: index, Reason: "not an object"}
	}

	for _, field := range requiredFields {
		if !obj.Has(field) {
			return nil, &RejectError{Index: index, Reason: fmt.Sprintf("missing field '%s'", field)}
		}
	}

	rawOptions, _ := obj.Get(fieldOptions)
	options, ok := rawOptions.([]any)
	if !ok {
		return nil, &RejectError{Index: index, Reason: "options is not a list"}
	}
	answer, _ := obj.Get(fieldAnswer)
	if !containsScalar(options, answer) {
		shown, _ := marshalNoEscape(answer)
		return nil, &RejectError{Index: index, Reason: fmt.Sprintf("answer %s not in options", shown)}
	}

	data, err := json.Marshal(obj)
	if err != nil {
		return nil, &RejectError{Index: index, Reason: err.Error()}
	}
	var q Question
	if err := json.Unmarshal(data, &q); err != nil {
		return nil, &RejectError{Index: index, Reason: err.Error()}
	}
	return &q, nil
}

// containsScalar reports whether want is among items. A number never
// matches a string, so 2010 is not found in ["2010"].
func containsScalar(items []any, want any) bool {
	for _, item := range items {
		if sameScalar(item, want) {
			return true
		}
	}
	return false
}

func sameScalar(a, b any) bool {
	at, ok := scalarText(a)
	if !ok {
		return false
	}
	bt, ok := scalarText(b)
	if !ok || scalarKind(a) != scalarKind(b) {
		return false
	}
	if scalarKind(a) == "number" {
		af, aerr := strconv.ParseFloat(at, 64)
		bf, berr := strconv.ParseFloat(bt, 64)
		return aerr == nil && berr == nil && af == bf
	}
	return at == bt
}

func scalarKind(v any) string {
	switch v.(type) {
	case string:
		return "string"
	case json.Number, float64:
		return "number"
	case bool:
		return "bool"
	}
	return ""
}

func objectFromMap(m map[string]any) *Object {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	obj := NewObject()
	for _, k := range keys {
		obj.Set(k, m[k])
	}
	return obj
}

// LoadResult is the outcome of reading one questions file.
type LoadResult struct {
	Path       string
	Format     Format
	Questions  []*Question
	Candidates int
	Rejected   []*RejectError
	Dropped    []error
}

// Accepted is the number of questions admitted.
func (r *LoadResult) Accepted() int {
	return len(r.Questions)
}

// Skipped is the number of flattened candidates that failed validation.
func (r *LoadResult) Skipped() int {
	return len(r.Rejected)
}

// Loader reads questions files.
type Loader struct {
	logger *zap.Logger
}

// NewLoader creates a loader. A nil logger discards diagnostics.
func NewLoader(logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{logger: logger}
}

// LoadFile reads path and loads it.
func (l *Loader) LoadFile(path string) (*LoadResult, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read questions file: %w", err)
	}
	res, err := l.Load(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	res.Path = path
	return res, nil
}

// Load normalizes, flattens and validates raw file content. Only a parse
// failure of the whole text is an error; bad records are counted.
func (l *Loader) Load(raw []byte) (*LoadResult, error) {
	norm, err := Normalize(raw)
	if err != nil {
		return nil, err
	}
	for _, d := range norm.Dropped {
		l.logger.Warn("dropped malformed object", zap.Error(d))
	}

	res := &LoadResult{Format: norm.Format, Dropped: norm.Dropped, Questions: []*Question{}}
	index := 0
	for candidate := range Candidates(norm.Value) {
		q, err := ValidateCandidate(index, candidate)
		index++
		if err != nil {
			rej := err.(*RejectError)
			l.logger.Warn("skipping question", zap.Int("number", rej.Index+1), zap.String("reason", rej.Reason))
			res.Rejected = append(res.Rejected, rej)
			continue
		}
		res.Questions = append(res.Questions, q)
	}
	res.Candidates = index

	l.logger.Debug("questions loaded",
		zap.Stringer("format", norm.Format),
		zap.Int("candidates", res.Candidates),
		zap.Int("accepted", res.Accepted()),
		zap.Int("skipped", res.Skipped()),
		zap.Int("dropped", len(res.Dropped)))
	return res, nil
}

// LoadFile loads path without logging.
func LoadFile(path string) (*LoadResult, error) {
	return NewLoader(nil).LoadFile(path)
}

// Load loads raw content without logging.
func Load(raw []byte) (*LoadResult, error) {
	return NewLoader(nil).Load(raw)
}
