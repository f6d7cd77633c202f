// Package config assembles runtime settings for the ingestor CLI from
// flags, the optional config file and INGESTOR_* environment variables.
package config

import (
	"github.com/spf13/viper"

	"ifood-ingestion-service/internal/storage"
	ingerrors "ifood-ingestion-service/pkg/errors"
	"ifood-ingestion-service/pkg/logger"
)

// Settings is the resolved runtime configuration.
type Settings struct {
	DatabaseURL string

	FinancialBucket    string
	ConciliationBucket string

	LogLevel  string
	LogFormat string

	// LocalKpiFallback enables recomputing daily KPIs from the ingested
	// rows when the database-side function fails.
	LocalKpiFallback bool
}

// Load resolves settings from viper. Call after flags are bound and the
// config file is read.
func Load() (*Settings, error) {
	viper.SetDefault("storage.financial-bucket", storage.BucketFinancial)
	viper.SetDefault("storage.conciliation-bucket", storage.BucketConciliation)
	viper.SetDefault("log.level", string(logger.InfoLevel))
	viper.SetDefault("log.format", string(logger.JSONFormat))
	viper.SetDefault("kpi.local-fallback", true)

	settings := &Settings{
		DatabaseURL:        viper.GetString("database.url"),
		FinancialBucket:    viper.GetString("storage.financial-bucket"),
		ConciliationBucket: viper.GetString("storage.conciliation-bucket"),
		LogLevel:           viper.GetString("log.level"),
		LogFormat:          viper.GetString("log.format"),
		LocalKpiFallback:   viper.GetBool("kpi.local-fallback"),
	}

	if settings.DatabaseURL == "" {
		return nil, ingerrors.ConfigurationError(ingerrors.CodeMissingConfig, "database.url", nil)
	}
	return settings, nil
}

// CreateLoggerConfig builds the logger configuration, letting --verbose win
// over the configured level.
func (s *Settings) CreateLoggerConfig(verbose bool) *logger.Config {
	cfg := logger.DefaultConfig()
	cfg.Level = logger.Level(s.LogLevel)
	cfg.Format = logger.Format(s.LogFormat)
	if verbose {
		cfg.Level = logger.DebugLevel
	}
	return cfg
}
