package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"rentscout/extract"
	"rentscout/fetcher"
	"rentscout/models"
)

type Config struct {
	API       APIConfig
	Search    SearchConfig
	Proxy     ProxyConfig
	Scheduler SchedulerConfig
	Server    ServerConfig
	S3        S3Config

	DBPath      string `env:"DB_PATH" envDefault:"rentscout.db"`
	DatabaseURL string `env:"DATABASE_URL"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	LogFile     string `env:"LOG_FILE" envDefault:"rentscout.log"`
	ProfilePath string `env:"PROFILE_PATH" envDefault:"config/profile.yaml"`

	Profile *Profile `env:"-"`
}

type APIConfig struct {
	BaseURL     string        `env:"RENTSCOUT_API_BASE" envDefault:"http://localhost:5000/api"`
	Admin       bool          `env:"RENTSCOUT_ADMIN" envDefault:"false"`
	Token       string        `env:"RENTSCOUT_API_TOKEN"`
	HTTPTimeout time.Duration `env:"RENTSCOUT_HTTP_TIMEOUT" envDefault:"30s"`
}

type SearchConfig struct {
	PageSize int           `env:"RENTSCOUT_PAGE_SIZE" envDefault:"100"`
	MaxPages int           `env:"RENTSCOUT_MAX_PAGES" envDefault:"50"`
	Timeout  time.Duration `env:"RENTSCOUT_SEARCH_TIMEOUT" envDefault:"45s"`
}

type ProxyConfig struct {
	URL string `env:"RENTSCOUT_PROXY_URL"`
}

type SchedulerConfig struct {
	Cron          string        `env:"SEARCH_CRON"`
	Interval      time.Duration `env:"SEARCH_INTERVAL"`
	SeenRetention time.Duration `env:"SEEN_RETENTION" envDefault:"720h"`
}

type ServerConfig struct {
	Addr        string   `env:"LISTEN_ADDR" envDefault:":8088"`
	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173"`
}

type S3Config struct {
	Bucket          string `env:"S3_BUCKET"`
	Region          string `env:"S3_REGION" envDefault:"us-east-1"`
	Endpoint        string `env:"S3_ENDPOINT"`
	Prefix          string `env:"S3_PREFIX" envDefault:"exports"`
	AccessKeyID     string `env:"S3_ACCESS_KEY_ID"`
	SecretAccessKey string `env:"S3_SECRET_ACCESS_KEY"`
}

// Enabled reports whether exports can be uploaded.
func (c S3Config) Enabled() bool {
	return c.Bucket != "" && c.AccessKeyID != "" && c.SecretAccessKey != ""
}

// Profile is the search vocabulary and the saved searches, read from YAML.
type Profile struct {
	Types         extract.Labels       `yaml:"types"`
	PriceRange    models.Range         `yaml:"price_range"`
	AreaRange     models.Range         `yaml:"area_range"`
	SavedSearches []models.SavedSearch `yaml:"saved_searches"`
}

// Bounds returns the absolute filter limits of the profile.
func (p *Profile) Bounds() fetcher.Bounds {
	return fetcher.Bounds{Price: p.PriceRange, Area: p.AreaRange}
}

// DefaultProfile is used when no profile file exists.
func DefaultProfile() *Profile {
	return &Profile{
		Types:      extract.DefaultLabels,
		PriceRange: fetcher.DefaultBounds.Price,
		AreaRange:  fetcher.DefaultBounds.Area,
	}
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	profile, err := LoadProfile(cfg.ProfilePath)
	if err != nil {
		return nil, err
	}
	cfg.Profile = profile

	return cfg, nil
}

// LoadProfile reads path, filling anything it leaves out from
// DefaultProfile. A missing file is not an error.
func LoadProfile(path string) (*Profile, error) {
	profile := DefaultProfile()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return profile, nil
		}
		return nil, fmt.Errorf("read profile %s: %w", path, err)
	}

	var loaded Profile
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("parse profile %s: %w", path, err)
	}

	if len(loaded.Types) > 0 {
		profile.Types = loaded.Types
	}
	if !loaded.PriceRange.IsZero() {
		profile.PriceRange = loaded.PriceRange
	}
	if !loaded.AreaRange.IsZero() {
		profile.AreaRange = loaded.AreaRange
	}

	seen := make(map[string]bool)
	for _, s := range loaded.SavedSearches {
		if s.ID == "" {
			return nil, fmt.Errorf("profile %s: saved search %q has no id", path, s.Name)
		}
		if seen[s.ID] {
			return nil, fmt.Errorf("profile %s: duplicate saved search id %q", path, s.ID)
		}
		seen[s.ID] = true
		profile.SavedSearches = append(profile.SavedSearches, s)
	}

	return profile, nil
}
