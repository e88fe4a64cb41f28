package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/GaaneshT/codex/internal/config"
	"github.com/GaaneshT/codex/internal/observability"
	"github.com/GaaneshT/codex/pkg/rollout"
	"github.com/spf13/cobra"
)

var (
	sessionsJSON      bool
	sessionsOlderThan time.Duration
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage recorded conversations",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded conversations, oldest first",
	Args:  cobra.NoArgs,
	RunE:  runSessionsList,
}

var sessionsPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete recorded conversations that have not changed recently",
	Args:  cobra.NoArgs,
	RunE:  runSessionsPrune,
}

func init() {
	sessionsListCmd.Flags().BoolVar(&sessionsJSON, "json", false, "print the list as JSON")
	sessionsPruneCmd.Flags().DurationVar(&sessionsOlderThan, "older-than", rollout.DefaultCleanupAge, "delete rollouts untouched for this long")

	sessionsCmd.AddCommand(sessionsListCmd, sessionsPruneCmd)
	rootCmd.AddCommand(sessionsCmd)
}

func runSessionsList(cmd *cobra.Command, _ []string) error {
	codexHome, _ := config.FindCodexHome(nil, env)

	summaries, err := rollout.Summaries(cmd.Context(), codexHome)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if sessionsJSON {
		data, err := json.MarshalIndent(summaries, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode sessions: %w", err)
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTARTED\tMODEL\tMESSAGES")
	for _, s := range summaries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", s.ID, s.Timestamp.Format(time.RFC3339), s.Model, s.Messages)
	}
	return w.Flush()
}

func runSessionsPrune(cmd *cobra.Command, _ []string) error {
	if sessionsOlderThan <= 0 {
		return fmt.Errorf("--older-than must be positive")
	}
	codexHome, _ := config.FindCodexHome(nil, env)

	deleted, err := rollout.Cleanup(codexHome, sessionsOlderThan, time.Now())
	if err != nil {
		return err
	}

	observability.RecordConfigAudit(cmd.Context(), "sessions.pruned", "cli", map[string]interface{}{
		"deleted":    deleted,
		"older_than": sessionsOlderThan.String(),
	})
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d rollout(s)\n", deleted)
	return nil
}
