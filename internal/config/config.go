// Package config loads and validates build and serve configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/JakeFAU/player-dossier/internal/policy/ratelimit"
)

// EnvPrefix namespaces environment overrides, e.g. DOSSIER_HTTP_REQUEST_INTERVAL.
const EnvPrefix = "DOSSIER"

// Metadata backends.
const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
)

// Config captures every configuration knob loaded via Viper.
type Config struct {
	Build    BuildConfig    `mapstructure:"build"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Sources  SourcesConfig  `mapstructure:"sources"`
	Headless HeadlessConfig `mapstructure:"headless"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Metadata MetadataConfig `mapstructure:"metadata"`
	Storage  StorageConfig  `mapstructure:"storage"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
}

// BuildConfig controls output of the build command.
type BuildConfig struct {
	OutputDir    string `mapstructure:"output_dir"`
	Limit        int    `mapstructure:"limit"`
	SkipImages   bool   `mapstructure:"skip_images"`
	ImageCDN     string `mapstructure:"image_cdn"`
	WriteMetrics bool   `mapstructure:"write_metrics"`
}

// HTTPConfig configures the shared client's throttle and retries.
type HTTPConfig struct {
	RequestInterval time.Duration `mapstructure:"request_interval"`
	MaxAttempts     int           `mapstructure:"max_attempts"`
	BackoffStep     time.Duration `mapstructure:"backoff_step"`
	Timeout         time.Duration `mapstructure:"timeout"`
	UserAgent       string        `mapstructure:"user_agent"`
}

// SourcesConfig points the extractors at their upstream endpoints.
type SourcesConfig struct {
	WikipediaAPI  string `mapstructure:"wikipedia_api"`
	WikidataAPI   string `mapstructure:"wikidata_api"`
	StatsguruBase string `mapstructure:"statsguru_base"`
	ListingURL    string `mapstructure:"listing_url"`
}

// HeadlessConfig configures browser promotion of the listing page.
type HeadlessConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	NavTimeout     time.Duration `mapstructure:"nav_timeout"`
	MinVisibleText int           `mapstructure:"min_visible_text"`
}

// CacheConfig enables the on-disk response cache when Path is set.
type CacheConfig struct {
	Path string        `mapstructure:"path"`
	TTL  time.Duration `mapstructure:"ttl"`
}

// MetadataConfig selects where the metadata snapshot lives.
type MetadataConfig struct {
	Backend     string `mapstructure:"backend"`
	File        string `mapstructure:"file"`
	PostgresDSN string `mapstructure:"postgres_dsn"`
	Table       string `mapstructure:"table"`
}

// StorageConfig enables mirroring artifacts to GCS when GCSBucket is set.
type StorageConfig struct {
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// PubSubConfig enables completion events when both fields are set.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// TracingConfig controls span export. Spans go to stderr when Stderr is set.
type TracingConfig struct {
	Stderr bool `mapstructure:"stderr"`
}

// flagKeys maps command-line flag names to configuration keys. Flags a
// command does not define are skipped.
var flagKeys = map[string]string{
	"output-dir":       "build.output_dir",
	"limit":            "build.limit",
	"skip-images":      "build.skip_images",
	"request-interval": "http.request_interval",
	"max-attempts":     "http.max_attempts",
	"auction-url":      "sources.listing_url",
	"headless":         "headless.enabled",
	"cache":            "cache.path",
	"metadata-backend": "metadata.backend",
	"postgres-dsn":     "metadata.postgres_dsn",
	"gcs-bucket":       "storage.gcs_bucket",
	"pubsub-project":   "pubsub.project_id",
	"pubsub-topic":     "pubsub.topic",
	"port":             "server.port",
	"log-level":        "logging.level",
	"dev":              "logging.development",
	"trace":            "tracing.stderr",
}

// Load builds a Config from defaults, an optional file, DOSSIER_* env vars
// and flags, in increasing order of precedence.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if flags != nil {
		for name, key := range flagKeys {
			flag := flags.Lookup(name)
			if flag == nil {
				continue
			}
			if err := v.BindPFlag(key, flag); err != nil {
				return Config{}, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.HTTP.RequestInterval = ratelimit.Clamp(cfg.HTTP.RequestInterval)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("build.output_dir", "data")
	v.SetDefault("build.limit", 0)
	v.SetDefault("build.skip_images", false)
	v.SetDefault("build.image_cdn", "https://img1.hscicdn.com/image/upload/f_auto,q_auto/lsci/db/PICTURES/CMS/%s.jpg")
	v.SetDefault("build.write_metrics", true)
	v.SetDefault("http.request_interval", ratelimit.DefaultInterval)
	v.SetDefault("http.max_attempts", 4)
	v.SetDefault("http.backoff_step", time.Second)
	v.SetDefault("http.timeout", 30*time.Second)
	v.SetDefault("http.user_agent", "CricketRAG-IPLBuilder/1.0 (local project; public data usage)")
	v.SetDefault("sources.wikipedia_api", "https://en.wikipedia.org/w/api.php")
	v.SetDefault("sources.wikidata_api", "https://www.wikidata.org/w/api.php")
	v.SetDefault("sources.statsguru_base", "https://stats.espncricinfo.com/ci/engine/player")
	v.SetDefault("sources.listing_url", "")
	v.SetDefault("headless.enabled", false)
	v.SetDefault("headless.nav_timeout", 45*time.Second)
	v.SetDefault("headless.min_visible_text", 512)
	v.SetDefault("cache.path", "")
	v.SetDefault("cache.ttl", 24*time.Hour)
	v.SetDefault("metadata.backend", BackendFile)
	v.SetDefault("metadata.file", "")
	v.SetDefault("metadata.postgres_dsn", "")
	v.SetDefault("metadata.table", "player_metadata")
	v.SetDefault("storage.gcs_bucket", "")
	v.SetDefault("storage.prefix", "dossiers")
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic", "")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("tracing.stderr", false)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Build.OutputDir) == "" {
		return fmt.Errorf("build.output_dir must be set")
	}
	if c.Build.Limit < 0 {
		return fmt.Errorf("build.limit must be >= 0")
	}
	if c.HTTP.RequestInterval < ratelimit.MinInterval {
		return fmt.Errorf("http.request_interval must be >= %s", ratelimit.MinInterval)
	}
	if c.HTTP.MaxAttempts < 1 {
		return fmt.Errorf("http.max_attempts must be >= 1")
	}
	if c.HTTP.Timeout <= 0 {
		return fmt.Errorf("http.timeout must be > 0")
	}
	switch c.Metadata.Backend {
	case BackendFile:
	case BackendPostgres:
		if c.Metadata.PostgresDSN == "" {
			return fmt.Errorf("metadata.postgres_dsn must be set when metadata.backend is postgres")
		}
	default:
		return fmt.Errorf("metadata.backend must be %q or %q, got %q", BackendFile, BackendPostgres, c.Metadata.Backend)
	}
	if (c.PubSub.ProjectID == "") != (c.PubSub.Topic == "") {
		return fmt.Errorf("pubsub.project_id and pubsub.topic must be set together")
	}
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	return nil
}
