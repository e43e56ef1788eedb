package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mohamedzouaghi/jira-scripts/internal/config"
	"github.com/mohamedzouaghi/jira-scripts/internal/domain"
	"github.com/mohamedzouaghi/jira-scripts/internal/engine"
	"github.com/mohamedzouaghi/jira-scripts/internal/jira"
)

var rootCmd = &cobra.Command{
	Use:   "jirasync",
	Short: "Sync parent issue statuses from their subtasks",
	Long: `jirasync keeps the status of level-two Jira issues (stories, bugs,
spikes) consistent with the aggregate status of their subtasks. For each
project listed in config/config.yaml it fetches the issues in the current
open sprint and applies a prioritized rule table: for instance, when all
subtasks of a story are Done or Accepted, the story is moved to Done.

The tool authenticates with a robot account and is meant to run from cron
or a CI scheduler. It defaults to dry-run: decisions are computed and
reported but nothing is updated until --dry-run=false is passed.`,
	SilenceUsage: true,
	RunE:         runSync,
}

func main() {
	cobra.OnInitialize(initConfig)
	addFlags()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("JIRA_SYNC")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addFlags() {
	rootCmd.Flags().StringP("account", "a", "", "Jira robot account used to interact with issues, e.g. robot@example.com")
	rootCmd.Flags().StringP("key", "k", "", "Jira API token for the robot account (prefer JIRA_SYNC_KEY)")
	rootCmd.Flags().String("server", "", "Jira base URL (overrides config)")
	rootCmd.Flags().String("config", config.DefaultPath, "path to the projects config file")
	rootCmd.Flags().Bool("dry-run", true, "compute and report transitions without applying them")
	rootCmd.Flags().Bool("json", false, "print the summary as JSON")
	rootCmd.Flags().BoolP("verbose", "v", false, "enable debug logging")
	_ = viper.BindPFlag("account", rootCmd.Flags().Lookup("account"))
	_ = viper.BindPFlag("key", rootCmd.Flags().Lookup("key"))
	_ = viper.BindPFlag("server", rootCmd.Flags().Lookup("server"))
	_ = viper.BindPFlag("config", rootCmd.Flags().Lookup("config"))
	_ = viper.BindPFlag("dry-run", rootCmd.Flags().Lookup("dry-run"))
	_ = viper.BindPFlag("json", rootCmd.Flags().Lookup("json"))
	_ = viper.BindPFlag("verbose", rootCmd.Flags().Lookup("verbose"))
}

func runSync(cmd *cobra.Command, args []string) error {
	account := viper.GetString("account")
	if account == "" {
		return fmt.Errorf("--account (or JIRA_SYNC_ACCOUNT) is required")
	}
	key := viper.GetString("key")
	if key == "" {
		return fmt.Errorf("--key (or JIRA_SYNC_KEY) is required")
	}

	cfg, err := config.Load(viper.GetString("config"))
	if err != nil {
		return err
	}

	server := viper.GetString("server")
	if server == "" {
		server = cfg.Server
	}
	if server == "" {
		server = jira.DefaultServer
	}

	logger := newLogger(viper.GetBool("verbose"))
	dryRun := viper.GetBool("dry-run")
	logger.Info("starting sync", "server", server, "dry_run", dryRun, "projects", cfg.Projects)

	eng := engine.New(jira.NewClient(server, account, key), logger)
	eng.DryRun = dryRun
	if err := domain.ValidateRules(eng.Rules); err != nil {
		return fmt.Errorf("rule table: %w", err)
	}

	summaries := eng.Run(cmd.Context(), cfg.ProjectIDs())
	return printSummaries(summaries)
}

// newLogger builds the run's logger. The run ID makes interleaved cron
// output attributable to a single invocation.
func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return slog.New(h).With("run_id", uuid.New().String()[:8])
}

func printSummaries(items []engine.ProjectSummary) error {
	if viper.GetBool("json") {
		return printJSON(items)
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"Project", "Examined", "Changed", "Applied", "Failed"})
	for _, s := range items {
		if s.SearchFailed {
			tw.AppendRow(table.Row{s.Project, "-", "-", "-", "search failed"})
			continue
		}
		tw.AppendRow(table.Row{s.Project, s.Examined, s.Changed, s.Applied, s.Failed})
	}
	tw.Render()
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
