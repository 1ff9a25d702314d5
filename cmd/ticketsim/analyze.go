package main

import (
	"github.com/spf13/cobra"

	"github.com/thebtf/ticketsim/internal/analysis"
	"github.com/thebtf/ticketsim/pkg/client"
)

var (
	analyzeThreshold  float64
	analyzeMaxResults int
	analyzeOutput     string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <key> [key...]",
	Short: "Find tickets similar to one or more reference tickets",
	Long: `Analyze a reference ticket: gather candidates from the configured
projects, score them and print the ranked matches as JSON.

With several keys the references are analyzed in batches and one item is
printed per key, including keys that failed.

Examples:
  ticketsim analyze PLAT-1234
  ticketsim analyze PLAT-1234 --threshold 0.4 --max-results 5
  ticketsim analyze PLAT-1 PLAT-2 XOP-7 --output results.json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().Float64Var(&analyzeThreshold, "threshold", 0, "Minimum overall score (default from settings)")
	analyzeCmd.Flags().IntVar(&analyzeMaxResults, "max-results", 0, "Maximum ranked results (default from settings)")
	analyzeCmd.Flags().StringVarP(&analyzeOutput, "output", "o", "", "Write JSON to a file instead of stdout")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx := withLogger(cmd.Context())

	remote, err := remoteClient()
	if err != nil {
		return err
	}
	if remote != nil {
		return analyzeRemote(cmd, remote, args)
	}

	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	opts := analysis.Options{
		Threshold:  analyzeThreshold,
		MaxResults: analyzeMaxResults,
	}

	if len(args) == 1 {
		run, err := a.Analyzer.Analyze(ctx, args[0], opts)
		if err != nil {
			return err
		}
		return writeOutput(cmd.OutOrStdout(), analyzeOutput, run)
	}

	items := a.Analyzer.AnalyzeBatch(ctx, args, opts)
	return writeOutput(cmd.OutOrStdout(), analyzeOutput, items)
}

func analyzeRemote(cmd *cobra.Command, c *client.Client, args []string) error {
	opts := client.Options{Threshold: analyzeThreshold, MaxResults: analyzeMaxResults}

	if len(args) == 1 {
		run, err := c.Analyze(cmd.Context(), args[0], opts)
		if err != nil {
			return err
		}
		return writeOutput(cmd.OutOrStdout(), analyzeOutput, run)
	}

	res, err := c.AnalyzeBatch(cmd.Context(), args, opts)
	if err != nil {
		return err
	}
	return writeOutput(cmd.OutOrStdout(), analyzeOutput, res.Items)
}
