package main

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/thebtf/ticketsim/internal/analysis"
	"github.com/thebtf/ticketsim/internal/source"
	"github.com/thebtf/ticketsim/pkg/client"
)

var (
	groupProjects   []string
	groupIssueTypes []string
	groupText       string
	groupThreshold  float64
	groupMax        int
	groupOutput     string
)

var groupCmd = &cobra.Command{
	Use:   "group --project <key> [--issue-type <type>] [--text <query>]",
	Short: "Cluster tickets into groups of similar issues",
	Long: `Fetch the tickets matching a filter and partition them into groups of
similar tickets. Each group carries its shared keywords and a category.

Examples:
  ticketsim group --project PLAT
  ticketsim group --project PLAT --project XOP --issue-type Bug --text "login"
  ticketsim group --project PLAT --threshold 0.4 --output groups.json`,
	Args: cobra.NoArgs,
	RunE: runGroup,
}

func init() {
	groupCmd.Flags().StringSliceVarP(&groupProjects, "project", "p", nil, "Project key (repeatable, required)")
	groupCmd.Flags().StringSliceVarP(&groupIssueTypes, "issue-type", "t", nil, "Issue type filter (repeatable)")
	groupCmd.Flags().StringVar(&groupText, "text", "", "Free-text filter")
	groupCmd.Flags().Float64Var(&groupThreshold, "threshold", 0, "Grouping threshold (default from settings)")
	groupCmd.Flags().IntVar(&groupMax, "max-tickets", 0, "Maximum tickets to fetch (default from settings)")
	groupCmd.Flags().StringVarP(&groupOutput, "output", "o", "", "Write JSON to a file instead of stdout")
	_ = groupCmd.MarkFlagRequired("project")
}

func runGroup(cmd *cobra.Command, args []string) error {
	q := source.Query{
		Text:       strings.TrimSpace(groupText),
		IssueTypes: groupIssueTypes,
	}
	for _, p := range groupProjects {
		if p = strings.ToUpper(strings.TrimSpace(p)); p != "" {
			q.Projects = append(q.Projects, p)
		}
	}
	if len(q.Projects) == 0 {
		return errors.New("at least one --project is required")
	}

	remote, err := remoteClient()
	if err != nil {
		return err
	}
	if remote != nil {
		run, err := remote.Group(cmd.Context(), client.GroupRequest{
			Query:      &client.Query{Text: q.Text, Projects: q.Projects, IssueTypes: q.IssueTypes},
			Threshold:  groupThreshold,
			MaxTickets: groupMax,
		})
		if err != nil {
			return err
		}
		return writeOutput(cmd.OutOrStdout(), groupOutput, run)
	}

	ctx := withLogger(cmd.Context())
	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	run, err := a.Analyzer.Group(ctx, analysis.GroupRequest{
		Query:      &q,
		Threshold:  groupThreshold,
		MaxTickets: groupMax,
	})
	if err != nil {
		return err
	}
	return writeOutput(cmd.OutOrStdout(), groupOutput, run)
}
