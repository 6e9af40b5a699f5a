package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Env                string        `mapstructure:"ENV"`
	Port               string        `mapstructure:"PORT"`
	LogLevel           string        `mapstructure:"LOG_LEVEL"`
	LogFile            string        `mapstructure:"LOG_FILE"`
	DatabaseURL        string        `mapstructure:"DATABASE_URL"`
	DBMaxConns         int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns         int32         `mapstructure:"DB_MIN_CONNS"`
	IngestAddr         string        `mapstructure:"INGEST_ADDR"`
	IngestWorkers      int           `mapstructure:"INGEST_WORKERS"`
	IngestMaxRead      int           `mapstructure:"INGEST_MAX_READ"`
	IngestReadTimeout  time.Duration `mapstructure:"INGEST_READ_TIMEOUT"`
	ShutdownTimeout    time.Duration `mapstructure:"SHUTDOWN_TIMEOUT"`
	OutputDir          string        `mapstructure:"OUTPUT_DIR"`
	CSVExpectedColumns int           `mapstructure:"CSV_EXPECTED_COLUMNS"`
	AuthSigningKey     string        `mapstructure:"AUTH_SIGNING_KEY"`
	CORSOrigins        []string      `mapstructure:"CORS_ORIGINS"`
}

var keys = []string{
	"ENV", "PORT", "LOG_LEVEL", "LOG_FILE",
	"DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"INGEST_ADDR", "INGEST_WORKERS", "INGEST_MAX_READ", "INGEST_READ_TIMEOUT",
	"SHUTDOWN_TIMEOUT", "OUTPUT_DIR", "CSV_EXPECTED_COLUMNS", "AUTH_SIGNING_KEY", "CORS_ORIGINS",
}

// Load reads configuration from the environment, an optional .env file in
// the working directory, and the YAML file named by CONFIG_FILE if set.
// Environment variables take precedence over both files.
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("ENV", "development")
	v.SetDefault("PORT", "8000")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FILE", "interchange.log")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 1)
	v.SetDefault("INGEST_ADDR", ":12345")
	v.SetDefault("INGEST_WORKERS", 1)
	v.SetDefault("INGEST_MAX_READ", 4096)
	v.SetDefault("INGEST_READ_TIMEOUT", "30s")
	v.SetDefault("SHUTDOWN_TIMEOUT", "10s")
	v.SetDefault("OUTPUT_DIR", ".")
	v.SetDefault("CSV_EXPECTED_COLUMNS", 16)
	v.SetDefault("CORS_ORIGINS", []string{"*"})

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	} else {
		// Try reading .env file, but don't fail if missing
		v.SetConfigFile(".env")
		_ = v.ReadInConfig()
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when running with ENV=production.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// HasDatabase reports whether persistence is enabled.
func (c *Config) HasDatabase() bool {
	return c.DatabaseURL != ""
}

// Validate checks that the configuration is usable. In production the API
// must be able to verify bearer tokens, so AUTH_SIGNING_KEY is required.
func (c *Config) Validate() error {
	if c.IngestWorkers < 1 {
		return fmt.Errorf("INGEST_WORKERS must be at least 1, got %d", c.IngestWorkers)
	}
	if c.IngestMaxRead < 1 {
		return fmt.Errorf("INGEST_MAX_READ must be positive, got %d", c.IngestMaxRead)
	}
	if c.IngestReadTimeout <= 0 {
		return fmt.Errorf("INGEST_READ_TIMEOUT must be positive, got %s", c.IngestReadTimeout)
	}
	if c.CSVExpectedColumns < 1 {
		return fmt.Errorf("CSV_EXPECTED_COLUMNS must be positive, got %d", c.CSVExpectedColumns)
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if c.IsProduction() && c.AuthSigningKey == "" {
		return fmt.Errorf("AUTH_SIGNING_KEY is required in production")
	}
	return nil
}
