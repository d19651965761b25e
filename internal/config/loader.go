package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/rpattn/shortreg/internal/db"
	"github.com/rpattn/shortreg/internal/diff"
)

// SourceConfig points at one register stream: the page carrying the
// publication timestamp and the snapshot file download.
type SourceConfig struct {
	PageURL string
	FileURL string
}

// Config is the full daemon configuration.
type Config struct {
	Database db.Config

	HTTPAddr string

	PollInterval     time.Duration
	UnpublishedRetry time.Duration

	FetchMaxAttempts int
	FetchBaseDelay   time.Duration
	FetchMaxDelay    time.Duration

	Epsilon float64

	Aggregate SourceConfig
	Positions SourceConfig

	TrackedCompanies []string
}

// Default returns the built-in configuration, pointing at the public FI
// register endpoints.
func Default() Config {
	return Config{
		Database:         db.DefaultConfig(),
		HTTPAddr:         ":8080",
		PollInterval:     15 * time.Minute,
		UnpublishedRetry: 30 * time.Second,
		FetchMaxAttempts: 4,
		FetchBaseDelay:   time.Second,
		FetchMaxDelay:    time.Minute,
		Epsilon:          diff.DefaultEpsilon,
		Aggregate: SourceConfig{
			PageURL: "https://www.fi.se/sv/vara-register/blankningsregistret/",
			FileURL: "https://www.fi.se/sv/vara-register/blankningsregistret/GetBlankningsregisterAggregat/",
		},
		Positions: SourceConfig{
			PageURL: "https://www.fi.se/sv/vara-register/blankningsregistret/",
			FileURL: "https://www.fi.se/sv/vara-register/blankningsregistret/GetAktuellFil/",
		},
	}
}

// Load reads config.yaml from configPath, falling back to defaults plus
// environment overrides (DB_DATABASE_HOST, DB_DATABASE_PORT, ...).
func Load(configPath string) (Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AutomaticEnv()     // allow environment overrides
	v.SetEnvPrefix("DB") // map env vars like DB_HOST, DB_PORT

	v.BindEnv("database.host")
	v.BindEnv("database.port")
	v.BindEnv("database.user")
	v.BindEnv("database.password")
	v.BindEnv("database.dbname")
	v.BindEnv("database.sslmode")

	if err := v.ReadInConfig(); err != nil {
		// Config file not found? Just log it, use defaults + env
		fmt.Println("No config.yaml found, using defaults and env vars")
	} else {
		fmt.Println("Loaded config.yaml")
	}

	// Override defaults if values exist
	if v.IsSet("database.host") {
		cfg.Database.Host = v.GetString("database.host")
	}
	if v.IsSet("database.port") {
		cfg.Database.Port = v.GetInt("database.port")
	}
	if v.IsSet("database.user") {
		cfg.Database.User = v.GetString("database.user")
	}
	if v.IsSet("database.password") {
		cfg.Database.Password = v.GetString("database.password")
	}
	if v.IsSet("database.dbname") {
		cfg.Database.DBName = v.GetString("database.dbname")
	}
	if v.IsSet("database.sslmode") {
		cfg.Database.SSLMode = v.GetString("database.sslmode")
	}

	if v.IsSet("http.addr") {
		cfg.HTTPAddr = v.GetString("http.addr")
	}

	if v.IsSet("poll.interval") {
		cfg.PollInterval = v.GetDuration("poll.interval")
	}
	if v.IsSet("poll.unpublished_retry") {
		cfg.UnpublishedRetry = v.GetDuration("poll.unpublished_retry")
	}

	if v.IsSet("fetch.max_attempts") {
		cfg.FetchMaxAttempts = v.GetInt("fetch.max_attempts")
	}
	if v.IsSet("fetch.base_delay") {
		cfg.FetchBaseDelay = v.GetDuration("fetch.base_delay")
	}
	if v.IsSet("fetch.max_delay") {
		cfg.FetchMaxDelay = v.GetDuration("fetch.max_delay")
	}

	if v.IsSet("diff.epsilon") {
		cfg.Epsilon = v.GetFloat64("diff.epsilon")
	}

	if v.IsSet("sources.aggregate.page_url") {
		cfg.Aggregate.PageURL = v.GetString("sources.aggregate.page_url")
	}
	if v.IsSet("sources.aggregate.file_url") {
		cfg.Aggregate.FileURL = v.GetString("sources.aggregate.file_url")
	}
	if v.IsSet("sources.positions.page_url") {
		cfg.Positions.PageURL = v.GetString("sources.positions.page_url")
	}
	if v.IsSet("sources.positions.file_url") {
		cfg.Positions.FileURL = v.GetString("sources.positions.file_url")
	}

	if v.IsSet("tracked_companies") {
		cfg.TrackedCompanies = v.GetStringSlice("tracked_companies")
	}

	return cfg, nil
}
