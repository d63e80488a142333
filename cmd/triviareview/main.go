package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"triviareview"
)

var (
	// Global flags
	configPath string
	verbose    bool
	logFile    string

	logger *zap.Logger
	cfg    *triviareview.Config
)

var rootCmd = &cobra.Command{
	Use:   "triviareview",
	Short: "Review, assign and curate trivia question sets",
	Long: `triviareview loads trivia question files in any of the layouts the
generators produce (a JSON array, concatenated or commented objects, wrapped
records), lets a reviewer give each question a code from 0 to 9 and keeps
one code_N.json file per code in the output folder.

Run "triviareview review <file>" for the interactive reviewer.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load .env: %w", err)
		}

		var paths []string
		if logFile != "" {
			paths = []string{logFile}
		} else if cmd == reviewCmd {
			// stderr would draw over the full screen UI
			paths = []string{filepath.Join(os.TempDir(), "triviareview.log")}
		}
		var err error
		logger, err = triviareview.NewLogger(verbose, paths...)
		if err != nil {
			return err
		}

		cfg, err = triviareview.LoadConfig(configPath, logger)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", triviareview.DefaultConfigFile, "Settings file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Write logs to this file instead of stderr")

	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(dedupCmd)
	rootCmd.AddCommand(assignCmd)
	rootCmd.AddCommand(rebuildCmd)
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(labelsCmd)
	rootCmd.AddCommand(reviewCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(importDBCmd)
	rootCmd.AddCommand(archiveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadQuestions reads a questions file and prints the load summary.
func loadQuestions(cmd *cobra.Command, path string) (*triviareview.LoadResult, error) {
	res, err := triviareview.NewLoader(logger).LoadFile(path)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Loaded %d questions from %s (%s)", res.Accepted(), path, res.Format)
	if res.Skipped() > 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), ", skipped %d", res.Skipped())
	}
	fmt.Fprintln(cmd.ErrOrStderr())
	return res, nil
}

// outputFolder picks the folder for code files: the flag, then the
// directory of the input file, then the folder of the last session.
func outputFolder(flag, input string) string {
	if flag != "" {
		return flag
	}
	if input != "" {
		return filepath.Dir(input)
	}
	if dir := cfg.OutputFolder(); dir != "" {
		return dir
	}
	return "."
}

func labelFunc() triviareview.LabelFunc {
	return cfg.Label
}
