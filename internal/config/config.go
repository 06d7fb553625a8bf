// Package config loads prgload configuration and initializes logging.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Split SplitConfig `yaml:"split" mapstructure:"split"`
	Load  LoadConfig  `yaml:"load" mapstructure:"load"`
	DB    DBConfig    `yaml:"db" mapstructure:"db"`
	Log   LogConfig   `yaml:"log" mapstructure:"log"`
}

// SplitConfig configures chunk splitting.
type SplitConfig struct {
	ChunkSize int    `yaml:"chunk_size" mapstructure:"chunk_size"` // max records per fragment
	RecordTag string `yaml:"record_tag" mapstructure:"record_tag"`
	TempDir   string `yaml:"temp_dir" mapstructure:"temp_dir"` // root for per-run workdirs; empty = os temp
}

// LoadConfig configures batching and concurrency.
type LoadConfig struct {
	BatchSize   int `yaml:"batch_size" mapstructure:"batch_size"` // max records per insert
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
}

// DBConfig holds connection settings not covered by the positional CLI
// arguments (host, user, password and schema come from the command line).
type DBConfig struct {
	Port     int    `yaml:"port" mapstructure:"port"`
	Name     string `yaml:"name" mapstructure:"name"`
	SSLMode  string `yaml:"sslmode" mapstructure:"sslmode"`
	MaxConns int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PRGLOAD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("split.chunk_size", 100000)
	v.SetDefault("split.record_tag", "prg-ad:PRG_PunktAdresowy")
	v.SetDefault("split.temp_dir", "")
	v.SetDefault("load.batch_size", 10000)
	v.SetDefault("load.concurrency", 4)
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.name", "prg")
	v.SetDefault("db.sslmode", "prefer")
	v.SetDefault("db.max_conns", 10)
	v.SetDefault("db.min_conns", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if cfg.Split.ChunkSize <= 0 {
		return nil, eris.Errorf("config: split.chunk_size must be positive, got %d", cfg.Split.ChunkSize)
	}
	if cfg.Load.BatchSize <= 0 {
		return nil, eris.Errorf("config: load.batch_size must be positive, got %d", cfg.Load.BatchSize)
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
