package triviareview

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
)

// AuditIssue lists the problems found in one question.
type AuditIssue struct {
	Index    int // position in the audited list, 0-based
	Problems []string
}

func (a AuditIssue) String() string {
	return fmt.Sprintf("Question %d: %s", a.Index+1, strings.Join(a.Problems, ", "))
}

// auditRecord is the shape a question must have to be usable in a quiz.
type auditRecord struct {
	Question   string   `json:"question" validate:"required"`
	Answer     string   `json:"answer" validate:"required"`
	Options    []string `json:"options" validate:"min=2,unique"`
	Category   string   `json:"category" validate:"required"`
	Difficulty string   `json:"difficulty" validate:"required"`
}

// Auditor checks loaded questions for completeness and consistency. Unlike
// the load-time validator it looks at content: blank fields, too few or
// repeated options.
type Auditor struct {
	validate *validator.Validate
}

// NewAuditor creates an auditor with its rules registered.
func NewAuditor() *Auditor {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterStructValidation(func(sl validator.StructLevel) {
		r := sl.Current().Interface().(auditRecord)
		if len(r.Options) == 0 {
			sl.ReportError(r.Options, "options", "Options", "required", "")
		}
		if !slices.Contains(r.Options, r.Answer) {
			sl.ReportError(r.Answer, "answer", "Answer", "in_options", "")
		}
	}, auditRecord{})
	return &Auditor{validate: v}
}

// problem texts in the order they are reported.
var auditOrder = []string{
	"Missing question",
	"Missing answer",
	"Missing options",
	"Missing category",
	"Missing difficulty",
	"Answer not in options",
	"Less than 2 options",
	"Duplicate options",
}

// Check returns the problems of one question, or nil.
func (a *Auditor) Check(q *Question) []string {
	rec := auditRecord{
		Question:   strings.TrimSpace(q.Question),
		Answer:     q.Answer,
		Options:    q.Options,
		Category:   strings.TrimSpace(q.Category.String()),
		Difficulty: strings.TrimSpace(q.Difficulty),
	}
	err := a.validate.Struct(rec)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}

	found := map[string]bool{}
	for _, fe := range verrs {
		found[problemText(fe)] = true
	}
	var out []string
	for _, p := range auditOrder {
		if found[p] {
			out = append(out, p)
			delete(found, p)
		}
	}
	for _, p := range sortedKeys(found) {
		out = append(out, p)
	}
	return out
}

func problemText(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "Missing " + fe.Field()
	case "min":
		return "Less than 2 options"
	case "unique":
		return "Duplicate options"
	case "in_options":
		return "Answer not in options"
	}
	return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
}

// Audit checks every question and returns the ones with problems.
func (a *Auditor) Audit(questions []*Question) []AuditIssue {
	var issues []AuditIssue
	for i, q := range questions {
		if problems := a.Check(q); len(problems) > 0 {
			issues = append(issues, AuditIssue{Index: i, Problems: problems})
		}
	}
	return issues
}

// Audit runs a fresh Auditor over questions.
func Audit(questions []*Question) []AuditIssue {
	return NewAuditor().Audit(questions)
}
