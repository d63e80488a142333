package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"triviareview"
)

var statsExport string

var checkCmd = &cobra.Command{
	Use:   "check <file>",
	Short: "Load a questions file and report what was accepted",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := loadQuestions(cmd, args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Format:     %s\n", res.Format)
		fmt.Fprintf(out, "Candidates: %d\n", res.Candidates)
		fmt.Fprintf(out, "Accepted:   %d\n", res.Accepted())
		fmt.Fprintf(out, "Skipped:    %d\n", res.Skipped())
		for _, rej := range res.Rejected {
			fmt.Fprintf(out, "  - %s\n", rej)
		}
		if len(res.Dropped) > 0 {
			fmt.Fprintf(out, "Dropped:    %d malformed objects\n", len(res.Dropped))
			for _, d := range res.Dropped {
				fmt.Fprintf(out, "  - %v\n", d)
			}
		}
		return nil
	},
}

var auditCmd = &cobra.Command{
	Use:   "audit <file>",
	Short: "List questions with missing fields, bad options or a stray answer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := loadQuestions(cmd, args[0])
		if err != nil {
			return err
		}
		issues := triviareview.Audit(res.Questions)
		out := cmd.OutOrStdout()
		if len(issues) == 0 {
			fmt.Fprintf(out, "All %d questions passed validation.\n", res.Accepted())
			return nil
		}
		fmt.Fprintf(out, "Found %d questions with issues:\n", len(issues))
		for _, issue := range issues {
			fmt.Fprintln(out, issue)
		}
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats <file>",
	Short: "Show assignment statistics, optionally exported to .txt, .json or .xlsx",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := loadQuestions(cmd, args[0])
		if err != nil {
			return err
		}
		s := triviareview.ComputeStats(res.Questions)
		if statsExport != "" {
			if err := triviareview.ExportStats(statsExport, s, labelFunc()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Statistics exported to %s\n", statsExport)
			return nil
		}
		return s.WriteText(cmd.OutOrStdout(), labelFunc())
	},
}

var dedupCmd = &cobra.Command{
	Use:   "dedup <file>",
	Short: "Group questions that ask about the same concept",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := loadQuestions(cmd, args[0])
		if err != nil {
			return err
		}
		groups := triviareview.FindDuplicates(res.Questions)
		out := cmd.OutOrStdout()
		if len(groups) == 0 {
			fmt.Fprintln(out, "No duplicate concepts found.")
			return nil
		}
		for _, group := range groups {
			fmt.Fprintf(out, "[%s]\n", triviareview.QuestionTag(res.Questions[group[0]]))
			for _, idx := range group {
				fmt.Fprintf(out, "  %4d  %s\n", idx+1, strings.TrimSpace(res.Questions[idx].Question))
			}
		}
		fmt.Fprintf(out, "%d duplicate groups\n", len(groups))
		return nil
	},
}

func init() {
	statsCmd.Flags().StringVar(&statsExport, "export", "", "Write statistics to this file instead of stdout")
}
