// Package app initializes and holds long-lived services, acting as the
// dependency container the commands draw from.
package app

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"

	gpubsub "cloud.google.com/go/pubsub"
	gstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/player-dossier/internal/cache/sqlite"
	"github.com/JakeFAU/player-dossier/internal/client"
	"github.com/JakeFAU/player-dossier/internal/clock/system"
	"github.com/JakeFAU/player-dossier/internal/config"
	"github.com/JakeFAU/player-dossier/internal/dossier"
	"github.com/JakeFAU/player-dossier/internal/extract/statsguru"
	"github.com/JakeFAU/player-dossier/internal/extract/wiki"
	"github.com/JakeFAU/player-dossier/internal/extract/wikidata"
	collyfetcher "github.com/JakeFAU/player-dossier/internal/fetcher/colly"
	headlessfetcher "github.com/JakeFAU/player-dossier/internal/fetcher/headless"
	"github.com/JakeFAU/player-dossier/internal/hash/sha256"
	"github.com/JakeFAU/player-dossier/internal/headless/detector"
	"github.com/JakeFAU/player-dossier/internal/id/uuid"
	"github.com/JakeFAU/player-dossier/internal/metastore"
	pgmetastore "github.com/JakeFAU/player-dossier/internal/metastore/postgres"
	"github.com/JakeFAU/player-dossier/internal/pipeline"
	"github.com/JakeFAU/player-dossier/internal/policy/ratelimit"
	"github.com/JakeFAU/player-dossier/internal/policy/retry"
	pubsubpublisher "github.com/JakeFAU/player-dossier/internal/publisher/pubsub"
	"github.com/JakeFAU/player-dossier/internal/render"
	"github.com/JakeFAU/player-dossier/internal/resolve"
	gcsstorage "github.com/JakeFAU/player-dossier/internal/storage/gcs"
	"github.com/JakeFAU/player-dossier/internal/storage/local"
)

// Accept is sent with every request; the sources serve both JSON and HTML.
const Accept = "application/json,text/html;q=0.9,*/*;q=0.8"

// MetricsFileName is the Prometheus textfile written next to the documents.
const MetricsFileName = "metrics.prom"

// SubjectLoader resolves the configured subject sources.
type SubjectLoader interface {
	Load(ctx context.Context, src pipeline.Sources) ([]dossier.Subject, error)
}

// BuildRunner builds documents for an ordered subject list.
type BuildRunner interface {
	Run(ctx context.Context, subjects []dossier.Subject) (pipeline.Summary, error)
}

// App holds the shared services for one command invocation.
type App struct {
	cfg    config.Config
	logger *zap.Logger

	client    *client.Client
	headless  dossier.Fetcher
	detector  dossier.HeadlessDetector
	resolver  *resolve.Resolver
	renderer  *render.Renderer
	artifacts *local.BlobStore
	mirror    dossier.BlobStore
	metadata  dossier.MetadataStore
	publisher dossier.Publisher
	clock     *system.Clock

	closers []func()
}

// New wires every service a build needs from cfg. It fails fast when a
// configured backend cannot be reached.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{cfg: cfg, logger: logger, clock: system.New()}
	if err := a.init(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	cfg := a.cfg
	limiter := ratelimit.New(ratelimit.Config{Interval: cfg.HTTP.RequestInterval})
	headers := http.Header{
		"User-Agent": {cfg.HTTP.UserAgent},
		"Accept":     {Accept},
	}
	opts := []client.Option{client.WithHeaders(headers), client.WithLogger(a.logger)}

	if cfg.Cache.Path != "" {
		cache, err := sqlite.Open(sqlite.Config{Path: cfg.Cache.Path, TTL: cfg.Cache.TTL}, a.clock, a.logger)
		if err != nil {
			return fmt.Errorf("init cache: %w", err)
		}
		a.closers = append(a.closers, func() { _ = cache.Close() })
		purged, err := cache.Purge(ctx)
		if err != nil {
			a.logger.Warn("cache purge failed", zap.Error(err))
		}
		opts = append(opts, client.WithCache(cache))
		a.logger.Info("response cache enabled", zap.String("path", cfg.Cache.Path), zap.Int64("expired_purged", purged))
	}

	transport := collyfetcher.New(collyfetcher.Config{UserAgent: cfg.HTTP.UserAgent, Timeout: cfg.HTTP.Timeout})
	policy := retry.NewLinearPolicy(cfg.HTTP.MaxAttempts, cfg.HTTP.BackoffStep)
	a.client = client.New(transport, limiter, policy, a.clock, opts...)

	if cfg.Headless.Enabled {
		browser, err := headlessfetcher.NewChromedp(headlessfetcher.Config{
			UserAgent:         cfg.HTTP.UserAgent,
			NavigationTimeout: cfg.Headless.NavTimeout,
		})
		if err != nil {
			return fmt.Errorf("init headless: %w", err)
		}
		a.closers = append(a.closers, browser.Close)
		// A browser render is expensive; it is tried once and shares the throttle.
		a.headless = client.New(browser, limiter, retry.NewLinearPolicy(1, 0), a.clock,
			client.WithHeaders(headers), client.WithLogger(a.logger))
		a.detector = detector.NewHeuristic(cfg.Headless.MinVisibleText)
		a.logger.Info("headless promotion enabled")
	}

	a.resolver = resolve.New(
		wiki.New(a.client, cfg.Sources.WikipediaAPI, a.logger),
		wikidata.New(a.client, cfg.Sources.WikidataAPI),
		statsguru.New(a.client, cfg.Sources.StatsguruBase),
		a.clock,
		a.logger,
	)
	a.renderer = render.New(render.WithLogger(a.logger))

	artifacts, err := local.New(local.Config{BaseDir: cfg.Build.OutputDir})
	if err != nil {
		return fmt.Errorf("init output dir: %w", err)
	}
	a.artifacts = artifacts

	if a.metadata, err = a.openMetadata(ctx); err != nil {
		return err
	}
	if err := a.initMirror(ctx); err != nil {
		return err
	}
	return a.initPublisher(ctx)
}

func (a *App) openMetadata(ctx context.Context) (dossier.MetadataStore, error) {
	store, closeFn, err := OpenMetadata(ctx, a.cfg, a.logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, closeFn)
	return store, nil
}

// OpenMetadata opens the configured metadata backend. The returned func
// releases it.
func OpenMetadata(ctx context.Context, cfg config.Config, logger *zap.Logger) (dossier.MetadataStore, func(), error) {
	switch cfg.Metadata.Backend {
	case config.BackendPostgres:
		store, err := pgmetastore.NewStore(ctx, pgmetastore.Config{
			DSN:   cfg.Metadata.PostgresDSN,
			Table: cfg.Metadata.Table,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("init metadata: %w", err)
		}
		if err := store.EnsureSchema(ctx); err != nil {
			store.Close()
			return nil, nil, fmt.Errorf("init metadata: %w", err)
		}
		logger.Info("using postgres metadata store", zap.String("table", cfg.Metadata.Table))
		return store, store.Close, nil
	case config.BackendFile, "":
		path := cfg.Metadata.File
		if path == "" {
			path = filepath.Join(cfg.Build.OutputDir, metastore.DefaultFileName)
		}
		logger.Info("using file metadata store", zap.String("path", path))
		return metastore.NewFileStore(path, logger), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown metadata backend: %s", cfg.Metadata.Backend)
	}
}

func (a *App) initMirror(ctx context.Context) error {
	if a.cfg.Storage.GCSBucket == "" {
		return nil
	}
	gcsClient, err := gstorage.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("init gcs client: %w", err)
	}
	a.closers = append(a.closers, func() { _ = gcsClient.Close() })
	mirror, err := gcsstorage.New(gcsClient, gcsstorage.Config{
		Bucket: a.cfg.Storage.GCSBucket,
		Prefix: a.cfg.Storage.Prefix,
	})
	if err != nil {
		return fmt.Errorf("init gcs mirror: %w", err)
	}
	a.mirror = mirror
	a.logger.Info("mirroring artifacts to gcs", zap.String("bucket", a.cfg.Storage.GCSBucket))
	return nil
}

func (a *App) initPublisher(ctx context.Context) error {
	if a.cfg.PubSub.ProjectID == "" || a.cfg.PubSub.Topic == "" {
		return nil
	}
	psClient, err := gpubsub.NewClient(ctx, a.cfg.PubSub.ProjectID)
	if err != nil {
		return fmt.Errorf("init pubsub client: %w", err)
	}
	publisher := pubsubpublisher.New(psClient)
	a.closers = append(a.closers, func() {
		publisher.Close()
		_ = psClient.Close()
	})
	a.publisher = publisher
	a.logger.Info("publishing profile events", zap.String("topic", a.cfg.PubSub.Topic))
	return nil
}

// Logger returns the shared logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Metadata returns the metadata store.
func (a *App) Metadata() dossier.MetadataStore {
	return a.metadata
}

// Loader returns a subject loader over the shared client.
func (a *App) Loader() SubjectLoader {
	return pipeline.NewLoader(a.client, a.headless, a.detector, a.logger)
}

// Runner returns a build runner writing status lines to out.
func (a *App) Runner(out io.Writer) BuildRunner {
	cfg := pipeline.Config{
		Topic:      a.cfg.PubSub.Topic,
		ImageCDN:   a.cfg.Build.ImageCDN,
		SkipImages: a.cfg.Build.SkipImages,
	}
	if a.cfg.Build.WriteMetrics {
		cfg.MetricsFile = filepath.Join(a.cfg.Build.OutputDir, MetricsFileName)
	}
	return pipeline.New(
		a.resolver,
		a.renderer,
		a.client,
		a.artifacts,
		a.mirror,
		a.metadata,
		a.publisher,
		sha256.New(),
		uuid.New(),
		a.clock,
		out,
		cfg,
		a.logger,
	)
}

// Close releases services in reverse order of creation.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
