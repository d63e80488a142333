package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"triviareview"
)

var (
	dbPath      string
	archiveCode int
	archiveN    int
)

var importDBCmd = &cobra.Command{
	Use:   "import-db <file>",
	Short: "Archive a reviewed questions file in the SQLite review database",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := loadQuestions(cmd, args[0])
		if err != nil {
			return err
		}

		db, err := triviareview.OpenDB(dbPath)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.CreateTables(); err != nil {
			return err
		}

		ctx := cmd.Context()
		batchID, err := db.ImportQuestions(ctx, filepath.Base(args[0]), res.Questions, time.Now())
		if err != nil {
			return err
		}
		counts, err := db.CountByCode(ctx)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Imported %d questions as batch %s\n", res.Accepted(), batchID)
		fmt.Fprintln(out, "Archive by code:")
		for code := triviareview.MinCode; code <= triviareview.MaxCode; code++ {
			if n := counts[code]; n > 0 {
				fmt.Fprintf(out, "  %s: %d\n", cfg.Label(code), n)
			}
		}
		return nil
	},
}

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "List imported batches, or the archived questions with one code",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := triviareview.OpenDB(dbPath)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.CreateTables(); err != nil {
			return err
		}

		ctx := cmd.Context()
		out := cmd.OutOrStdout()
		if archiveCode >= 0 {
			stored, err := db.QuestionsByCode(ctx, archiveCode)
			if err != nil {
				return err
			}
			for _, sq := range stored {
				fmt.Fprintf(out, "%s  %s\n", sq.BatchID[:8], sq.Record.Question)
			}
			fmt.Fprintf(out, "%d questions with %s\n", len(stored), cfg.Label(archiveCode))
			return nil
		}

		batches, err := db.Batches(ctx, archiveN)
		if err != nil {
			return err
		}
		for _, b := range batches {
			fmt.Fprintf(out, "%s  %s  %4d  %s\n", b.ID, b.ImportedAt.Format(time.DateTime), b.Count, b.Source)
		}
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{importDBCmd, archiveCmd} {
		c.Flags().StringVar(&dbPath, "db", "trivia_review.db", "SQLite database file")
	}
	archiveCmd.Flags().IntVar(&archiveCode, "code", -1, "Show the questions archived with this code")
	archiveCmd.Flags().IntVar(&archiveN, "limit", 20, "Number of batches to list (0 for all)")
}
