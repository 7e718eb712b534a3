package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/JakeFAU/player-dossier/internal/pipeline"
	"github.com/JakeFAU/player-dossier/internal/policy/ratelimit"
)

// sourceFlags are the subject selection flags shared by build and roster.
type sourceFlags struct {
	players     []string
	playersFile string
	listingFile string
	playerURL   string
}

func (s *sourceFlags) register(flags *pflag.FlagSet) {
	flags.StringSliceVar(&s.players, "players", nil, "player names to build, comma separated")
	flags.StringVar(&s.playersFile, "players-file", "", "file of player names (.txt one per line, or .yaml list)")
	flags.StringVar(&s.listingFile, "auction-html-file", "", "saved auction listing HTML to read instead of fetching")
	flags.StringVar(&s.playerURL, "player-url", "", "ESPN Cricinfo player page URL to build a single profile")
	flags.String("auction-url", pipeline.DefaultListingURL, "auction listing page to discover players from")
	flags.Int("limit", 0, "build at most this many players (0 = all)")
	flags.Bool("headless", false, "render the listing page in a headless browser when plain fetches come back empty")
}

func (s *sourceFlags) sources(listingURL string, limit int) pipeline.Sources {
	return pipeline.Sources{
		PlayerURL:   s.playerURL,
		Players:     s.players,
		PlayersFile: s.playersFile,
		ListingFile: s.listingFile,
		ListingURL:  listingURL,
		Limit:       limit,
	}
}

func newBuildCmd() *cobra.Command {
	src := &sourceFlags{}
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build PDF profiles and update the metadata snapshot",
		Long: `Resolves every selected player, writes <output-dir>/<Name>.pdf with an
optional portrait under <output-dir>/images/, and merges the results into
the metadata snapshot. Each player prints one status line. A run that built
nothing leaves the previous snapshot untouched.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBuild(cmd, src)
		},
	}

	src.register(cmd.Flags())
	flags := cmd.Flags()
	flags.String("output-dir", "data", "directory for PDFs, images and metadata")
	flags.Duration("request-interval", ratelimit.DefaultInterval, "minimum spacing between outbound requests (floor 200ms)")
	flags.Int("max-attempts", 4, "attempts per request before giving up")
	flags.String("cache", "", "sqlite file caching successful responses")
	flags.Bool("skip-images", false, "do not download portraits")
	flags.String("metadata-backend", "file", "metadata backend (file or postgres)")
	flags.String("postgres-dsn", "", "Postgres DSN for the postgres metadata backend")
	flags.String("gcs-bucket", "", "mirror built artifacts to this GCS bucket")
	flags.String("pubsub-project", "", "GCP project for profile-built events")
	flags.String("pubsub-topic", "", "Pub/Sub topic for profile-built events")
	return cmd
}

func runBuild(cmd *cobra.Command, src *sourceFlags) error {
	e, err := resolveEnv(cmd.Context())
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	services, err := newServices(ctx, e.cfg, e.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize application services: %w", err)
	}
	defer services.Close()

	subjects, err := services.Loader().Load(ctx, src.sources(e.cfg.Sources.ListingURL, e.cfg.Build.Limit))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Building %d player profile(s) into %s\n", len(subjects), e.cfg.Build.OutputDir)

	start := time.Now()
	summary, err := services.Runner(out).Run(ctx, subjects)
	e.logger.Info("build finished",
		zap.String("run_id", summary.RunID),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed),
		zap.Duration("elapsed", time.Since(start)),
	)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("run build: %w", err)
	}
	fmt.Fprintf(out, "Done: %d succeeded, %d failed\n", summary.Succeeded, summary.Failed)
	return nil
}
