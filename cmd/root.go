// Package cmd defines the CLI commands for the dossier executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/player-dossier/internal/app"
	"github.com/JakeFAU/player-dossier/internal/config"
	"github.com/JakeFAU/player-dossier/internal/logging"
	"github.com/JakeFAU/player-dossier/internal/telemetry"
)

// Version is stamped at link time.
var Version = "dev"

type envKeyType string

const envKey envKeyType = "env"

// env carries what PersistentPreRunE prepared for a subcommand.
type env struct {
	cfg      config.Config
	logger   *zap.Logger
	shutdown func(context.Context) error
}

// Services is the subset of the application container commands use.
type Services interface {
	Loader() app.SubjectLoader
	Runner(out io.Writer) app.BuildRunner
	Close()
}

// newServices is the container factory. Tests replace it.
var newServices = func(ctx context.Context, cfg config.Config, logger *zap.Logger) (Services, error) {
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// newRootCmd builds the command tree. The returned func releases what
// PersistentPreRunE set up and must run after Execute, even on error.
func newRootCmd() (*cobra.Command, func()) {
	var (
		cfgFile string
		state   *env
	)
	cmd := &cobra.Command{
		Use:   "dossier",
		Short: "Builds one-page PDF profiles of cricketers from public sources.",
		Long: `dossier resolves each player against Wikipedia, Wikidata and ESPN
Cricinfo Statsguru, renders a PDF profile per player and keeps a metadata
snapshot of what was built. Requests share one throttle so upstream sites
see a steady, polite request rate.`,
		SilenceUsage:  true,
		SilenceErrors: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile, cmd.Flags())
			if err != nil {
				return err
			}
			logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
			if err != nil {
				return err
			}
			tcfg := telemetry.Config{ServiceName: telemetry.ServiceName, Version: Version}
			if cfg.Tracing.Stderr {
				exp, err := telemetry.NewWriterExporter(cmd.ErrOrStderr())
				if err != nil {
					return err
				}
				tcfg.Exporter = exp
			}
			tp, err := telemetry.InitTracerProvider(cmd.Context(), tcfg)
			if err != nil {
				return fmt.Errorf("init tracing: %w", err)
			}
			state = &env{cfg: cfg, logger: logger, shutdown: tp.Shutdown}
			cmd.SetContext(context.WithValue(cmd.Context(), envKey, state))
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "YAML config file")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.Bool("dev", true, "human-readable development logging")
	flags.Bool("trace", false, "export trace spans to stderr")

	cmd.AddCommand(newBuildCmd(), newRosterCmd(), newServeCmd())

	cleanup := func() {
		if state == nil {
			return
		}
		if err := state.shutdown(context.Background()); err != nil {
			state.logger.Warn("tracer shutdown failed", zap.Error(err))
		}
		_ = state.logger.Sync()
	}
	return cmd, cleanup
}

func resolveEnv(ctx context.Context) (*env, error) {
	e, ok := ctx.Value(envKey).(*env)
	if !ok || e == nil {
		return nil, errors.New("command environment not initialized")
	}
	return e, nil
}

// Execute runs the root command until ctx is canceled or the command ends.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	root, cleanup := newRootCmd()
	defer cleanup()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root.ExecuteContext(ctx)
}
