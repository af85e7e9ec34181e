package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	commoncfg "obra-data/internal/common/config"
)

// Allocation policies applied after an assignment change.
const (
	AllocationAdvisory = "advisory"
	AllocationStrict   = "strict"
)

// DefaultEnvFiles are loaded in order when present; later files do not
// override variables already set.
var DefaultEnvFiles = []string{".env", ".env.local"}

// Config obra-data (HTTP API) settings
type Config struct {
	HTTP struct {
		Addr string `env:"ADDR" envDefault:":8080"`
	} `envPrefix:"HTTP_"`
	Database commoncfg.DatabaseConfig `envPrefix:"DB_"`
	Redis    commoncfg.RedisConfig    `envPrefix:"REDIS_"`
	Events   struct {
		Enabled bool   `env:"ENABLED" envDefault:"false"`
		Stream  string `env:"STREAM" envDefault:"obra:events"`
		MaxLen  int64  `env:"MAXLEN" envDefault:"10000"`
	} `envPrefix:"EVENTS_"`
	Log struct {
		Level  string `env:"LEVEL" envDefault:"info"`
		Format string `env:"FORMAT" envDefault:"json"`
	} `envPrefix:"LOG_"`
	AllocationPolicy string `env:"ALLOCATION_POLICY" envDefault:"advisory"`
	ListPageSize     int    `env:"LIST_PAGE_SIZE" envDefault:"100"`
	MigrateOnStart   bool   `env:"MIGRATE_ON_START" envDefault:"false"`
}

// LoadEnvFiles loads the dotenv files that exist and reports how many did.
func LoadEnvFiles(files []string) (int, error) {
	existing := make([]string, 0, len(files))
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return 0, nil
	}
	return len(existing), godotenv.Load(existing...)
}

// Load reads dotenv files then the environment.
func Load() (*Config, error) {
	if _, err := LoadEnvFiles(DefaultEnvFiles); err != nil {
		return nil, fmt.Errorf("failed to load env files: %w", err)
	}
	return Parse()
}

// Parse builds the config from the current environment only.
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	c.AllocationPolicy = strings.ToLower(strings.TrimSpace(c.AllocationPolicy))
	var errs []error
	switch c.AllocationPolicy {
	case AllocationAdvisory, AllocationStrict:
	default:
		errs = append(errs, fmt.Errorf("ALLOCATION_POLICY must be %q or %q, got %q", AllocationAdvisory, AllocationStrict, c.AllocationPolicy))
	}
	if c.ListPageSize <= 0 {
		errs = append(errs, fmt.Errorf("LIST_PAGE_SIZE must be positive, got %d", c.ListPageSize))
	}
	if c.Events.Enabled && c.Events.Stream == "" {
		errs = append(errs, errors.New("EVENTS_STREAM is required when EVENTS_ENABLED=true"))
	}
	return errors.Join(errs...)
}
