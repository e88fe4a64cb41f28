package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/GaaneshT/codex/internal/appserver"
	"github.com/GaaneshT/codex/internal/config"
	"github.com/GaaneshT/codex/internal/tracing"
	"github.com/GaaneshT/codex/pkg/auth"
	"github.com/GaaneshT/codex/pkg/conversation"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	serveAddr    string
	serveSecret  string
	serveTracing bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve conversations over websocket",
	Long: `Start the app server. Each websocket connection on /ws gets its own
conversation; /metrics exposes Prometheus metrics and /healthz reports status.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "127.0.0.1:8765", "listen address")
	serveCmd.Flags().StringVar(&serveSecret, "secret", "", "shared secret clients send in X-Codex-Secret")
	serveCmd.Flags().BoolVar(&serveTracing, "trace", false, "print OpenTelemetry spans to stderr")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(config.ConfigOverrides{})
	if err != nil {
		return err
	}

	if serveTracing {
		exporter, err := tracing.NewWriterExporter(cmd.ErrOrStderr())
		if err != nil {
			return fmt.Errorf("failed to create span exporter: %w", err)
		}
		if err := tracing.InitOpenTelemetry(tracing.DefaultServiceName, exporter); err != nil {
			return fmt.Errorf("failed to initialize tracing: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = tracing.ShutdownOpenTelemetry(shutdownCtx)
		}()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	manager := conversation.WithAuth(auth.FromEnv(env),
		conversation.WithProviderFactory(providerFactory),
		conversation.WithEnv(env),
		conversation.WithLogger(log.Logger),
	)

	srv, err := appserver.NewServer(appserver.Config{
		Addr:          serveAddr,
		SharedSecret:  serveSecret,
		Manager:       manager,
		SessionConfig: cfg,
		Logger:        log.Logger,
	})
	if err != nil {
		return err
	}
	if err := srv.Start(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Listening on ws://%s/ws (model %s via %s)\n", srv.Addr(), cfg.Model, cfg.ModelProviderID)

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Stop(shutdownCtx)
}
