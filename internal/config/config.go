package config

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/sethvargo/go-envconfig"
	log "github.com/sirupsen/logrus"
)

const envPrefix = "KRATOS_"

type (
	Config struct {
		TelegramAPIToken string `env:"TOKEN"`
		LogLevel         int    `env:"LOG_LEVEL,default=4"`
		DotPath          string `env:"DOT_PATH,default=~/.kratos"`
		DBName           string `env:"DB_NAME,default=sanctions.db"`
		MetricsAddr      string `env:"METRICS_ADDR,default=:2112"`
		Reconciler       Reconciler
	}

	Reconciler struct {
		Interval           time.Duration `env:"RECONCILE_INTERVAL,default=30s"`
		EnforcementTimeout time.Duration `env:"ENFORCEMENT_TIMEOUT,default=10s"`
		Workers            int           `env:"RECONCILE_WORKERS,default=4"`
	}
)

var (
	once         sync.Once
	globalConfig = &Config{}
	globalErr    error
)

// Load reads the process environment once and caches the result.
func Load() (Config, error) {
	once.Do(func() {
		cfg, err := LoadFrom(context.Background(), envconfig.OsLookuper())
		if err != nil {
			globalErr = err
			return
		}
		log.Traceln("loaded config")
		globalConfig = cfg
	})
	return *globalConfig, globalErr
}

// LoadFrom reads KRATOS_ prefixed variables from lookuper.
func LoadFrom(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	cfg := &Config{}
	envcfg := envconfig.Config{
		Lookuper: envconfig.PrefixLookuper(envPrefix, lookuper),
		Target:   cfg,
	}
	if err := envconfig.ProcessWith(ctx, &envcfg); err != nil {
		return nil, fmt.Errorf("process env config: %w", err)
	}
	dotPath, err := homedir.Expand(cfg.DotPath)
	if err != nil {
		return nil, fmt.Errorf("expand dot path: %w", err)
	}
	cfg.DotPath = dotPath
	if cfg.Reconciler.Interval <= 0 {
		return nil, fmt.Errorf("reconcile interval must be positive, got %s", cfg.Reconciler.Interval)
	}
	if cfg.Reconciler.Workers < 1 {
		cfg.Reconciler.Workers = 1
	}
	return cfg, nil
}

func Get() Config {
	cfg, err := Load()
	if err != nil {
		log.WithField("error", err.Error()).Error("cant load config")
	}
	return cfg
}
