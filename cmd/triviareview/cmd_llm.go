package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"triviareview"
)

var (
	llmModel   string
	llmBaseURL string
	llmLogDir  string
	llmTimeout time.Duration

	verifyFailCode    int
	verifyConcurrency int

	genReq    triviareview.GenerationRequest
	genFacts  string
	genOut    string
	genMaster string
	genCheck  bool
	genDB     string
	genBatch  int
)

// signalContext is cancelled by SIGINT/SIGTERM or after llmTimeout.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	ctx, cancel := context.WithTimeout(ctx, llmTimeout)
	return ctx, func() {
		cancel()
		stop()
	}
}

func llmOptions(transcript *triviareview.LLMLogger) triviareview.LLMOptions {
	baseURL := llmBaseURL
	if baseURL == "" {
		baseURL = os.Getenv("OPENAI_BASE_URL")
	}
	return triviareview.LLMOptions{
		APIKey:     os.Getenv("OPENAI_API_KEY"),
		BaseURL:    baseURL,
		Model:      llmModel,
		Logger:     logger,
		Transcript: transcript,
	}
}

// openTranscript starts a run log, or returns nil when logs are disabled.
// A log that cannot be created only costs the transcript.
func openTranscript(kind string, header map[string]string) *triviareview.LLMLogger {
	if llmLogDir == "" {
		return nil
	}
	runID := fmt.Sprintf("%s_%s_%s", kind, time.Now().Format("20060102_150405"), uuid.NewString()[:8])
	ll, err := triviareview.NewLLMLogger(llmLogDir, runID, header)
	if err != nil {
		logger.Warn("transcript disabled", zap.Error(err))
		return nil
	}
	return ll
}

var verifyCmd = &cobra.Command{
	Use:   "verify <file>",
	Short: "Ask the model to fact-check every question",
	Long: `Sends each question to the model and prints the ones that fail. With
--fail-code the failing questions that have no code yet are assigned that
code, exactly as if a reviewer had selected them.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		res, err := loadQuestions(cmd, args[0])
		if err != nil {
			return err
		}
		transcript := openTranscript("verify", map[string]string{"File": args[0]})
		defer transcript.Close()

		checker, err := triviareview.NewQuestionChecker(llmOptions(transcript))
		if err != nil {
			return err
		}

		verdicts := make([]*triviareview.Verdict, len(res.Questions))
		g, gCtx := errgroup.WithContext(ctx)
		g.SetLimit(max(verifyConcurrency, 1))
		for i, q := range res.Questions {
			g.Go(func() error {
				v, err := checker.CheckQuestion(gCtx, q)
				if err != nil {
					return fmt.Errorf("question %d: %w", i+1, err)
				}
				verdicts[i] = v
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		var failed []int
		for i, v := range verdicts {
			if v.Pass {
				continue
			}
			failed = append(failed, i)
			transcript.LogResult(res.Questions[i].Question, "FAIL", v.Reason)
			fmt.Fprintf(out, "%4d  FAIL  %s\n      %s\n", i+1, strings.TrimSpace(res.Questions[i].Question), v.Reason)
		}
		fmt.Fprintf(out, "%d of %d questions passed\n", len(verdicts)-len(failed), len(verdicts))

		if verifyFailCode < 0 || len(failed) == 0 {
			return nil
		}
		return assignFailed(cmd, args[0], failed)
	},
}

// assignFailed gives the unassigned failing questions verifyFailCode.
func assignFailed(cmd *cobra.Command, path string, failed []int) error {
	r := triviareview.NewReviewer(cfg, logger)
	if _, err := r.Open(path); err != nil {
		return err
	}
	var todo []int
	for _, i := range failed {
		if q := r.Store().At(i); q != nil && !q.Assigned() {
			todo = append(todo, i)
		}
	}
	if len(todo) == 0 {
		return r.Close()
	}
	n, err := r.BulkAssign(todo, verifyFailCode)
	var fileErr *triviareview.FileError
	if err != nil && !errors.As(err, &fileErr) {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Assigned %d failing questions to %s\n", n, r.Label(verifyFailCode))
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
	}
	return r.Close()
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate new questions with the model",
	Long: `Generates --count questions in batches. Every question must have its
answer among the options and a concept not seen before (in this run, the
--master file or the --db archive). With --facts the model may only use the
given facts. The result is written as a JSON array that review and check
read directly.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		if genFacts != "" {
			facts, err := triviareview.LoadFacts(genFacts)
			if err != nil {
				return err
			}
			genReq.Facts = facts
		}

		var tags []string
		if genDB != "" {
			var err error
			if tags, err = archiveTags(ctx, genDB); err != nil {
				return err
			}
		}
		dedup := triviareview.NewDeduper(logger, tags...)
		if genMaster != "" {
			master, err := triviareview.LoadMaster(genMaster, logger)
			if err != nil {
				return err
			}
			dedup.Seed(master)
		}

		transcript := openTranscript("generate", genReq.TranscriptHeader())
		defer transcript.Close()

		maker, err := triviareview.NewQuestionMaker(llmOptions(transcript))
		if err != nil {
			return err
		}
		opts := []triviareview.PipelineOption{
			triviareview.WithDeduper(dedup),
			triviareview.WithBatchSize(genBatch),
			triviareview.WithTranscript(transcript),
		}
		if genCheck {
			checker, err := triviareview.NewQuestionChecker(llmOptions(transcript))
			if err != nil {
				return err
			}
			opts = append(opts, triviareview.WithChecker(checker))
		}

		res, err := triviareview.NewPipeline(maker, logger, opts...).Run(ctx, genReq)
		if err != nil && res == nil {
			return err
		}
		if len(res.Questions) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No new trivia questions were saved.")
			return errors.Join(append(res.BatchErrors, err)...)
		}

		path, saveErr := triviareview.SaveRun(genOut, genReq, res.Questions, time.Now())
		if saveErr != nil {
			return saveErr
		}
		if genMaster != "" {
			if err := triviareview.AppendMaster(genMaster, res.Questions, logger); err != nil {
				return err
			}
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Saved %d questions to %s\n", len(res.Questions), path)
		fmt.Fprintf(out, "Discarded %d, failed batches %d\n", len(res.Discarded), len(res.BatchErrors))
		return err
	},
}

func archiveTags(ctx context.Context, path string) ([]string, error) {
	db, err := triviareview.OpenDB(path)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	if err := db.CreateTables(); err != nil {
		return nil, err
	}
	return db.ConceptTags(ctx)
}

func init() {
	for _, c := range []*cobra.Command{verifyCmd, generateCmd} {
		c.Flags().StringVar(&llmModel, "model", triviareview.DefaultModel, "Model name")
		c.Flags().StringVar(&llmBaseURL, "base-url", "", "API base URL (default: $OPENAI_BASE_URL, then OpenAI)")
		c.Flags().StringVar(&llmLogDir, "log-dir", "log", "Folder for run transcripts (empty disables them)")
		c.Flags().DurationVar(&llmTimeout, "timeout", 30*time.Minute, "Give up after this long")
	}

	verifyCmd.Flags().IntVar(&verifyFailCode, "fail-code", -1, "Assign failing questions this code (0-9)")
	verifyCmd.Flags().IntVar(&verifyConcurrency, "concurrency", 4, "Questions checked in parallel")

	generateCmd.Flags().StringVar(&genReq.Category, "category", "", "Category, e.g. \"Leagues\" (required)")
	generateCmd.Flags().StringVar(&genReq.Subcategory, "subcategory", "", "Subcategory, e.g. \"Premier League\"")
	generateCmd.Flags().StringVar(&genReq.Difficulty, "difficulty", "easy", "Difficulty written on every question")
	generateCmd.Flags().IntVar(&genReq.Count, "count", 20, "Number of questions to request")
	generateCmd.Flags().StringVar(&genReq.Focus, "focus", "", "Narrower topic inside the category")
	generateCmd.Flags().StringVar(&genFacts, "facts", "", "JSON file of verified facts to build questions from")
	generateCmd.Flags().StringVar(&genOut, "out", ".", "Folder for the generated file")
	generateCmd.Flags().StringVar(&genMaster, "master", "", "Master file to dedup against and append to")
	generateCmd.Flags().BoolVar(&genCheck, "check", false, "Fact-check each question before keeping it")
	generateCmd.Flags().StringVar(&genDB, "db", "", "Review archive to dedup against")
	generateCmd.Flags().IntVar(&genBatch, "batch-size", triviareview.DefaultBatchSize, "Questions per request")
	generateCmd.MarkFlagRequired("category")
}
