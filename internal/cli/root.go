package cli

import (
	"fmt"
	"path/filepath"

	"github.com/GaaneshT/codex/internal/config"
	"github.com/GaaneshT/codex/internal/logger"
	"github.com/GaaneshT/codex/internal/observability"
	"github.com/GaaneshT/codex/pkg/provider"
	"github.com/spf13/cobra"
)

const version = "0.1.0"

var (
	configOverrides []string
	profile         string
	logLevel        string
	logConsole      bool

	// Replaced in tests.
	env             config.EnvLookup = config.OSEnv
	providerFactory provider.Factory = provider.DefaultFactory{}

	appLogger *logger.Logger
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "codex",
	Short: "Codex - coding agent sessions",
	Long: `Codex runs conversations with a coding model. Settings come from
$CODEX_HOME/config.toml, the environment and command-line overrides; running a
session never writes config.toml.`,
	Version:            version,
	SilenceUsage:       true,
	PersistentPreRunE:  setupLogging,
	PersistentPostRunE: closeLogging,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringArrayVarP(&configOverrides, "config", "c", nil, "override a config.toml value (key=value, repeatable)")
	rootCmd.PersistentFlags().StringVarP(&profile, "profile", "p", "", "config profile to use")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&logConsole, "log-console", false, "also write logs to stderr")

	rootCmd.SetVersionTemplate(`{{with .Name}}{{printf "%s " .}}{{end}}{{printf "version %s" .Version}}
`)
}

// setupLogging writes logs under the codex home and records audit events
// next to them.
func setupLogging(cmd *cobra.Command, _ []string) error {
	codexHome, _ := config.FindCodexHome(nil, env)

	cfg := logger.DefaultConfig(codexHome)
	cfg.Level = logLevel
	cfg.Console = logConsole
	cfg.Pretty = logConsole

	l, err := logger.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	appLogger = l

	if codexHome != "" {
		auditPath := filepath.Join(codexHome, logger.LogDir, "audit.log")
		if err := observability.InitAuditLogger(auditPath); err != nil {
			l.Warn().Err(err).Msg("Audit logging disabled")
		}
	}
	return nil
}

func closeLogging(*cobra.Command, []string) error {
	_ = observability.GetAuditLogger().Close()
	if appLogger != nil {
		err := appLogger.Close()
		appLogger = nil
		return err
	}
	return nil
}

// loadConfig resolves the effective config for a command, layering the
// global -c and --profile flags over overrides.
func loadConfig(overrides config.ConfigOverrides) (*config.Config, error) {
	if profile != "" {
		overrides.ConfigProfile = &profile
	}
	cfg, err := config.LoadWithOverrides(overrides, env, configOverrides...)
	if err != nil {
		return nil, err
	}
	observability.RecordConfigResolution(cfg.ModelProviderID, string(cfg.Source("model_provider")))
	return cfg, nil
}

// GetRootCmd returns the root command for testing
func GetRootCmd() *cobra.Command {
	return rootCmd
}

// GetVersion returns the current version
func GetVersion() string {
	return version
}
