// Package main provides the ticketsim command line tool.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/thebtf/ticketsim/internal/app"
	"github.com/thebtf/ticketsim/internal/config"
	"github.com/thebtf/ticketsim/pkg/client"
)

var Version = "dev"

// Global flags
var (
	settingsPath string
	ticketsFile  string
	workerURL    string
	verbose      bool
)

var rootCmd = &cobra.Command{
	Use:   "ticketsim",
	Short: "Find tickets similar to a reference ticket",
	Long: `ticketsim searches the ticket tracker for tickets similar to a reference
ticket, ranks them and suggests fixes drawn from resolved matches.

Settings are read from ~/.ticketsim/settings.json and TICKETSIM_* environment
variables. JIRA_URL, JIRA_USERNAME and JIRA_API_TOKEN select the Jira instance.

Examples:
  ticketsim analyze PLAT-1234                      # Similar tickets for PLAT-1234
  ticketsim analyze PLAT-1234 --threshold 0.4      # Stricter inclusion
  ticketsim group --project PLAT --text timeout    # Cluster matching tickets`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := zerolog.WarnLevel
		if verbose {
			level = zerolog.DebugLevel
		}
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr()}).
			Level(level).With().Timestamp().Logger()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&settingsPath, "config", "", "Settings file (default ~/.ticketsim/settings.json)")
	rootCmd.PersistentFlags().StringVar(&ticketsFile, "tickets", "", "Read tickets from a JSON file instead of Jira")
	rootCmd.PersistentFlags().StringVar(&workerURL, "worker", "", "Send requests to a running worker (e.g. http://127.0.0.1:37780)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(groupCmd)
	rootCmd.AddCommand(statsCmd)
}

// loadConfig loads settings and applies global flags.
func loadConfig() (*config.Config, error) {
	path := settingsPath
	if path == "" {
		path = config.SettingsPath()
	}
	cfg, err := config.LoadFrom(path)
	if err != nil {
		return nil, err
	}
	if ticketsFile != "" {
		cfg.TicketsFile = ticketsFile
	}
	return cfg, nil
}

// buildApp wires components for in-process analysis.
func buildApp(ctx context.Context) (*app.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return app.Build(ctx, cfg)
}

// remoteClient returns a worker client when --worker is set.
func remoteClient() (*client.Client, error) {
	if workerURL == "" {
		return nil, nil
	}
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return client.New(workerURL, cfg.AuthToken), nil
}

// writeOutput writes v as indented JSON to path, or to w when path is empty.
func writeOutput(w io.Writer, path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	data = append(data, '\n')

	if path == "" {
		_, err = w.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// withLogger attaches the CLI logger so the analysis core logs through it.
func withLogger(ctx context.Context) context.Context {
	return log.Logger.WithContext(ctx)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error: "+err.Error())
		os.Exit(1)
	}
}
