package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"triviareview"
)

var (
	assignCode    int
	assignIndices []int
	assignOut     string
	rebuildOut    string
	backupDir     string
)

var assignCmd = &cobra.Command{
	Use:   "assign <file>",
	Short: "Give a code to questions by number, updating the code files",
	Long: `Assigns --code to every question listed with --index (1-based, as shown
by check and dedup). Questions that already have a code, including those
found in the code files of the output folder, are refused. The progress
file is saved afterwards.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r := triviareview.NewReviewer(cfg, logger)
		if assignOut != "" {
			r.SetOutputFolder(assignOut)
		}
		if _, err := r.Open(args[0]); err != nil {
			return err
		}

		indices := make([]int, len(assignIndices))
		for i, n := range assignIndices {
			indices[i] = n - 1
		}
		n, err := r.BulkAssign(indices, assignCode)
		var fileErr *triviareview.FileError
		if err != nil && !errors.As(err, &fileErr) {
			return errors.Join(err, r.Close())
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Assigned %d questions to %s\n", n, r.Label(assignCode))
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
		}
		return r.Close()
	},
}

var rebuildCmd = &cobra.Command{
	Use:   "rebuild <file>",
	Short: "Regenerate every code file from a progress or questions file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := loadQuestions(cmd, args[0])
		if err != nil {
			return err
		}
		dir := outputFolder(rebuildOut, args[0])
		files := triviareview.NewCodeFiles(dir, logger)
		if err := files.Rebuild(res.Questions); err != nil {
			return err
		}
		s := triviareview.ComputeStats(res.Questions)
		fmt.Fprintf(cmd.OutOrStdout(), "Rebuilt code files in %s (%d assigned questions)\n", dir, s.Assigned)
		return nil
	},
}

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Copy the code files and progress file into a timestamped folder",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := outputFolder(backupDir, "")
		path, err := triviareview.CreateBackup(dir, time.Now())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Backup created: %s\n", path)
		return nil
	},
}

var labelsCmd = &cobra.Command{
	Use:   "labels [code label...]",
	Short: "Show the code labels, or set one",
	Long: `Without arguments prints the label of every code. With a code and text
sets that label; an empty text ("") restores the default.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			for code := triviareview.MinCode; code <= triviareview.MaxCode; code++ {
				fmt.Fprintf(cmd.OutOrStdout(), "%d  %s\n", code, cfg.Label(code))
			}
			return nil
		}
		code, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid code %q", args[0])
		}
		if err := cfg.SetLabel(code, strings.Join(args[1:], " ")); err != nil {
			return err
		}
		if err := cfg.Save(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d  %s\n", code, cfg.Label(code))
		return nil
	},
}

func init() {
	assignCmd.Flags().IntVar(&assignCode, "code", -1, "Code to assign (0-9)")
	assignCmd.Flags().IntSliceVar(&assignIndices, "index", nil, "Question numbers, 1-based (repeat or comma separate)")
	assignCmd.Flags().StringVar(&assignOut, "out", "", "Output folder for this run (default: the file's folder)")
	assignCmd.MarkFlagRequired("code")
	assignCmd.MarkFlagRequired("index")

	rebuildCmd.Flags().StringVar(&rebuildOut, "out", "", "Output folder for this run (default: the file's folder)")
	backupCmd.Flags().StringVar(&backupDir, "dir", "", "Output folder to back up (default: the last session's)")
}
