package cli

import (
	"encoding/json"
	"fmt"

	"github.com/GaaneshT/codex/internal/config"
	"github.com/GaaneshT/codex/internal/observability"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	Long: `Resolve the configuration exactly as a session would and print it as JSON,
together with where each setting came from. Nothing is written.`,
	Args: cobra.NoArgs,
	RunE: runConfig,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config.toml path",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		codexHome, _ := config.FindCodexHome(nil, env)
		fmt.Fprintln(cmd.OutOrStdout(), config.NewLoader(codexHome).GetConfigPath())
		return nil
	},
}

func init() {
	configCmd.AddCommand(configPathCmd)
	rootCmd.AddCommand(configCmd)
}

type configReport struct {
	Config  *config.Config                `json:"config"`
	Sources map[string]config.ValueSource `json:"sources"`
}

func runConfig(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(config.ConfigOverrides{})
	if err != nil {
		return err
	}

	observability.RecordConfigAudit(cmd.Context(), "config.inspected", "cli", map[string]interface{}{
		"model":    cfg.Model,
		"provider": cfg.ModelProviderID,
		"profile":  cfg.ActiveProfile,
	})

	data, err := json.MarshalIndent(configReport{Config: cfg, Sources: cfg.Sources()}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
