package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds the application configuration loaded from environment
// variables. Shared by the API server and the batch commands.
type Config struct {
	Port         string `env:"CRIMEMAP_PORT" envDefault:":8080"`
	DBPath       string `env:"CRIMEMAP_DB_PATH" envDefault:"./data/events.db"`
	DataDir      string `env:"CRIMEMAP_DATA_DIR" envDefault:"./data"`
	StaticDir    string `env:"CRIMEMAP_STATIC_DIR" envDefault:"./static"`
	TilesDir     string `env:"CRIMEMAP_TILES_DIR" envDefault:"./data/tiles/pmtiles"`
	TaxonomyPath string `env:"CRIMEMAP_TAXONOMY_PATH" envDefault:"./data/event_types.yaml"`

	// H3 resolutions the pipeline aggregates at (each 4..6).
	Resolutions []int `env:"CRIMEMAP_RESOLUTIONS" envDefault:"4,5,6"`

	// MinPopulation is the denominator floor below which per-capita rates
	// are reported as 0 to avoid noise from tiny populations.
	MinPopulation int `env:"CRIMEMAP_MIN_POPULATION" envDefault:"100"`

	// PrivacyThreshold is the minimum matching event count below which
	// drill-down responses withhold individual events. Independent of
	// MinPopulation.
	PrivacyThreshold int `env:"CRIMEMAP_PRIVACY_THRESHOLD" envDefault:"3"`

	TippecanoePath string `env:"CRIMEMAP_TIPPECANOE_PATH" envDefault:"tippecanoe"`
	LogLevel       string `env:"CRIMEMAP_LOG_LEVEL" envDefault:"info"`
}

// Load reads configuration from the environment, after loading an
// optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations no run could satisfy.
func (c *Config) Validate() error {
	if len(c.Resolutions) == 0 {
		return fmt.Errorf("at least one H3 resolution is required")
	}
	for _, r := range c.Resolutions {
		if r < 4 || r > 6 {
			return fmt.Errorf("resolution %d out of range [4, 6]", r)
		}
	}
	if c.MinPopulation < 0 {
		return fmt.Errorf("minimum population threshold must be non-negative")
	}
	if c.PrivacyThreshold < 0 {
		return fmt.Errorf("privacy threshold must be non-negative")
	}
	return nil
}
