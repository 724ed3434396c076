package config

import (
	"flag"
	"os"
	"path/filepath"
	"regexp"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

type Config struct {
	// Server-side settings (remoted)
	Addr        string `env:"ADDR"`
	AuthSecret  string `env:"AUTH_SECRET"`
	DatabaseDSN string `env:"DATABASE_URI"`

	// Shared settings
	BaseURL     string `env:"BASE_URL"`
	EnableHTTPS bool   `env:"ENABLE_HTTPS"`
	LogLevel    string `env:"LOG_LEVEL"`

	// Client-side settings (engine, importer)
	RemoteURL   string `env:"-"`
	RemoteToken string `env:"REMOTE_TOKEN"`
	CacheDBPath string `env:"CACHE_DB_PATH"`
	BundleDir   string `env:"BUNDLE_DIR"`

	// Importer run flags (flag only)
	DryRun    bool `env:"-"`
	Overwrite bool `env:"-"`
	Prune     bool `env:"-"`
}

func NewConfig() *Config {
	_ = godotenv.Load()

	cfg := &Config{}
	_ = env.Parse(cfg)

	// flags apply only when the env variables are unset
	// Server flags
	flag.StringVar(&cfg.Addr, "a", cfg.Addr, "listen address of the document server")
	flag.StringVar(&cfg.AuthSecret, "auth-secret", cfg.AuthSecret, "secret for signing/verifying access tokens")
	flag.StringVar(&cfg.DatabaseDSN, "d", cfg.DatabaseDSN, "postgres DSN for document persistence (empty: in-memory only)")
	// Shared/client flags
	flag.StringVar(&cfg.BaseURL, "base-url", cfg.BaseURL, "document server base (host:port)")
	flag.BoolVar(&cfg.EnableHTTPS, "https", cfg.EnableHTTPS, "prefer https scheme for the remote URL")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn, error")
	// Client flags
	flag.StringVar(&cfg.RemoteToken, "token", cfg.RemoteToken, "bearer token for the document server")
	flag.StringVar(&cfg.CacheDBPath, "cache-db", cfg.CacheDBPath, "path to the local cache database")
	flag.StringVar(&cfg.BundleDir, "bundle", cfg.BundleDir, "directory with the catalog bundle files")
	// Importer flags
	flag.BoolVar(&cfg.DryRun, "dry-run", cfg.DryRun, "compute the diff report without writing")
	flag.BoolVar(&cfg.Overwrite, "overwrite", cfg.Overwrite, "rewrite documents that already exist remotely")
	flag.BoolVar(&cfg.Prune, "prune", cfg.Prune, "delete remote documents missing from the bundle")

	flag.Parse()

	applyDefaults(cfg)
	return cfg
}

var hostPortRe = regexp.MustCompile(`^[A-Za-z0-9\.\-]+:\d{1,5}$`)

func applyDefaults(cfg *Config) {
	if cfg.AuthSecret == "" {
		cfg.AuthSecret = "dev-secret-key"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	// BaseURL must be "address:port" without scheme or path.
	if !hostPortRe.MatchString(cfg.BaseURL) {
		cfg.BaseURL = "localhost:8090"
	}
	if cfg.Addr == "" {
		cfg.Addr = cfg.BaseURL
	}

	if cfg.EnableHTTPS {
		cfg.RemoteURL = "https://" + cfg.BaseURL
	} else {
		cfg.RemoteURL = "http://" + cfg.BaseURL
	}

	if cfg.CacheDBPath == "" {
		home, _ := os.UserHomeDir()
		cfg.CacheDBPath = filepath.Join(home, ".shopsync", "cache.db")
	}
	if cfg.BundleDir == "" {
		cfg.BundleDir = "bundle"
	}
}
