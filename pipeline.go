package triviareview

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultBatchSize is how many questions are requested per model call.
const DefaultBatchSize = 20

// Generator produces raw question candidates. QuestionMaker implements it.
type Generator interface {
	GenerateQuestions(ctx context.Context, req GenerationRequest, n int, facts []string) ([]*Object, error)
}

// Checker judges a single question. QuestionChecker implements it.
type Checker interface {
	CheckQuestion(ctx context.Context, q *Question) (*Verdict, error)
}

// Discard records one generated question that was not kept.
type Discard struct {
	Question string
	Reason   string
}

// GenerationResult is the outcome of Pipeline.Run.
type GenerationResult struct {
	Questions []*Question
	Discarded []Discard
	// BatchErrors holds the failures of batches that were skipped.
	BatchErrors []error
}

// Pipeline generates questions in batches and keeps the ones that pass
// structural validation, concept-tag dedup and, when a Checker is set, the
// model's accuracy check.
type Pipeline struct {
	gen        Generator
	checker    Checker
	dedup      *Deduper
	logger     *zap.Logger
	transcript *LLMLogger
	batchSize  int
	rand       *rand.Rand
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithChecker verifies each question with c.
func WithChecker(c Checker) PipelineOption {
	return func(p *Pipeline) { p.checker = c }
}

// WithDeduper uses d, for example one seeded with a master file.
func WithDeduper(d *Deduper) PipelineOption {
	return func(p *Pipeline) { p.dedup = d }
}

// WithBatchSize overrides DefaultBatchSize.
func WithBatchSize(n int) PipelineOption {
	return func(p *Pipeline) {
		if n > 0 {
			p.batchSize = n
		}
	}
}

// WithRand sets the source used to shuffle options.
func WithRand(r *rand.Rand) PipelineOption {
	return func(p *Pipeline) { p.rand = r }
}

// WithTranscript records per-question outcomes in ll.
func WithTranscript(ll *LLMLogger) PipelineOption {
	return func(p *Pipeline) { p.transcript = ll }
}

// NewPipeline creates a pipeline around gen.
func NewPipeline(gen Generator, logger *zap.Logger, opts ...PipelineOption) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Pipeline{
		gen:       gen,
		logger:    logger,
		batchSize: DefaultBatchSize,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.dedup == nil {
		p.dedup = NewDeduper(logger)
	}
	if p.rand == nil {
		p.rand = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0))
	}
	return p
}

// Run requests req.Count questions in batches. A failed batch is logged and
// skipped; Run only returns an error when the request is invalid or ctx is
// done. With facts, each batch gets the next slice of facts and generation
// stops when they run out.
func (p *Pipeline) Run(ctx context.Context, req GenerationRequest) (*GenerationResult, error) {
	if req.Count <= 0 {
		return nil, inputErrorf("question count must be positive")
	}
	if strings.TrimSpace(req.Category) == "" {
		return nil, inputErrorf("category is required")
	}

	res := &GenerationResult{}
	batches := (req.Count + p.batchSize - 1) / p.batchSize
	factPos := 0
	for i := range batches {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		n := min(p.batchSize, req.Count-i*p.batchSize)

		var facts []string
		if len(req.Facts) > 0 {
			if factPos >= len(req.Facts) {
				p.logger.Warn("ran out of facts", zap.Int("batch", i+1))
				break
			}
			end := min(factPos+n, len(req.Facts))
			facts = req.Facts[factPos:end]
			factPos = end
		}

		start := time.Now()
		candidates, err := p.gen.GenerateQuestions(ctx, req, n, facts)
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			p.logger.Warn("batch failed", zap.Int("batch", i+1), zap.Error(err))
			res.BatchErrors = append(res.BatchErrors, fmt.Errorf("batch %d: %w", i+1, err))
			continue
		}

		kept := 0
		for j, obj := range candidates {
			q, reason, err := p.admit(ctx, j, obj)
			if err != nil {
				return res, err
			}
			if reason != "" {
				res.Discarded = append(res.Discarded, Discard{Question: objectText(obj), Reason: reason})
				p.transcript.LogResult(objectText(obj), "DISCARDED", reason)
				continue
			}
			res.Questions = append(res.Questions, q)
			p.transcript.LogResult(q.Question, "KEPT", QuestionTag(q))
			kept++
		}
		p.logger.Info("batch done",
			zap.Int("batch", i+1),
			zap.Int("of", batches),
			zap.Int("received", len(candidates)),
			zap.Int("kept", kept),
			zap.Duration("took", time.Since(start)))
	}
	return res, nil
}

// admit returns the question, or a reason it was discarded. err is only set
// when ctx is done.
func (p *Pipeline) admit(ctx context.Context, index int, obj *Object) (*Question, string, error) {
	q, err := ValidateCandidate(index, obj)
	if err != nil {
		var rej *RejectError
		if errors.As(err, &rej) {
			return nil, rej.Reason, nil
		}
		return nil, err.Error(), nil
	}

	p.rand.Shuffle(len(q.Options), func(a, b int) {
		q.Options[a], q.Options[b] = q.Options[b], q.Options[a]
	})

	if p.checker != nil {
		v, err := p.checker.CheckQuestion(ctx, q)
		if err != nil {
			if ctx.Err() != nil {
				return nil, "", ctx.Err()
			}
			return nil, "check failed: " + err.Error(), nil
		}
		if !v.Pass {
			return nil, "failed check: " + v.Reason, nil
		}
	}

	dup, tag := p.dedup.Check(q)
	if dup {
		return nil, "duplicate concept: " + tag, nil
	}
	SetQuestionTag(q, tag)
	return q, "", nil
}

func objectText(obj *Object) string {
	v, _ := obj.Get(fieldQuestion)
	s, _ := scalarText(v)
	return s
}

// OutputName is the file name a generation run is saved under.
func OutputName(req GenerationRequest, now time.Time) string {
	name := fmt.Sprintf("trivia_%s_%s_%s_%s.json", req.Category, req.Subcategory, req.Difficulty, now.Format("20060102_150405"))
	return strings.ReplaceAll(name, " ", "_")
}

// SaveQuestions writes questions to path as an indented JSON array.
func SaveQuestions(path string, questions []*Question) error {
	data, err := encodeQuestions(questions)
	if err != nil {
		return err
	}
	if err := writeFileAtomic(path, data); err != nil {
		return &FileError{Op: "write", Path: path, Err: err}
	}
	return nil
}

// AppendMaster adds questions to the master file at path, creating it when
// missing. The existing content is read with the normal loader, so a master
// file in any supported layout is accepted.
func AppendMaster(path string, questions []*Question, logger *zap.Logger) error {
	existing, err := LoadMaster(path, logger)
	if err != nil {
		return err
	}
	return SaveQuestions(path, append(existing, questions...))
}

// LoadMaster reads the master file. A missing file is empty.
func LoadMaster(path string, logger *zap.Logger) ([]*Question, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	res, err := NewLoader(logger).LoadFile(path)
	if err != nil {
		return nil, err
	}
	return res.Questions, nil
}

// SaveRun writes the result of a run into dir under OutputName and returns
// the path.
func SaveRun(dir string, req GenerationRequest, questions []*Question, now time.Time) (string, error) {
	path := filepath.Join(dir, OutputName(req, now))
	return path, SaveQuestions(path, questions)
}
