package main

import (
	"errors"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show statistics of a running worker",
	Long: `Print the analysis, cache and rate limiter statistics of the worker
given by --worker.

Examples:
  ticketsim stats --worker http://127.0.0.1:37780`,
	Args: cobra.NoArgs,
	RunE: runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	remote, err := remoteClient()
	if err != nil {
		return err
	}
	if remote == nil {
		return errors.New("stats requires --worker")
	}

	stats, err := remote.Stats(cmd.Context())
	if err != nil {
		return err
	}
	return writeOutput(cmd.OutOrStdout(), "", stats)
}
