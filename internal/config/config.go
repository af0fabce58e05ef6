// Package config loads the shop configuration from a YAML file with
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
	"go.yaml.in/yaml/v4"
)

// EnvPrefix prefixes every override, e.g. CBH_GITHUB_TOKEN.
const EnvPrefix = "CBH"

type Config struct {
	Data    DataConfig    `yaml:"data" envconfig:"DATA"`
	Site    SiteConfig    `yaml:"site" envconfig:"SITE"`
	GitHub  GitHubConfig  `yaml:"github" envconfig:"GITHUB"`
	Weather WeatherConfig `yaml:"weather" envconfig:"WEATHER"`
	Redis   RedisConfig   `yaml:"redis" envconfig:"REDIS"`
	Kafka   KafkaConfig   `yaml:"kafka" envconfig:"KAFKA"`
	Server  ServerConfig  `yaml:"server" envconfig:"SERVER"`
}

// DataConfig locates the persisted collections. Relative file names are
// resolved against Dir.
type DataConfig struct {
	Dir               string `yaml:"dir" envconfig:"DIR"`
	InventoryFile     string `yaml:"inventory_file" envconfig:"INVENTORY_FILE"`
	SubscriptionsFile string `yaml:"subscriptions_file" envconfig:"SUBSCRIPTIONS_FILE"`
	LeadsFile         string `yaml:"leads_file" envconfig:"LEADS_FILE"`
	AccountsDB        string `yaml:"accounts_db" envconfig:"ACCOUNTS_DB"`
}

// SiteConfig describes the static storefront: where item images are
// written locally and where the catalog lives in the published repo.
type SiteConfig struct {
	AssetsDir       string `yaml:"assets_dir" envconfig:"ASSETS_DIR"`
	RepoCatalogPath string `yaml:"repo_catalog_path" envconfig:"REPO_CATALOG_PATH"`
	RepoAssetsDir   string `yaml:"repo_assets_dir" envconfig:"REPO_ASSETS_DIR"`
}

type GitHubConfig struct {
	BaseURL string `yaml:"base_url" envconfig:"BASE_URL"`
	Token   string `yaml:"token" envconfig:"TOKEN"`
	Owner   string `yaml:"owner" envconfig:"OWNER"`
	Repo    string `yaml:"repo" envconfig:"REPO"`
	Branch  string `yaml:"branch" envconfig:"BRANCH"`
}

type WeatherConfig struct {
	Provider string        `yaml:"provider" envconfig:"PROVIDER"` // "placeholder" | "openweather"
	BaseURL  string        `yaml:"base_url" envconfig:"BASE_URL"`
	APIKey   string        `yaml:"api_key" envconfig:"API_KEY"`
	CacheTTL time.Duration `yaml:"cache_ttl" envconfig:"CACHE_TTL"`
}

// RedisConfig enables temperature caching and login rate limiting when
// Addr is set.
type RedisConfig struct {
	Addr string `yaml:"addr" envconfig:"ADDR"`
}

// KafkaConfig enables sale events when Brokers is non-empty.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers" envconfig:"BROKERS"`
}

type ServerConfig struct {
	Addr string `yaml:"addr" envconfig:"ADDR"`

	// LoginAttemptsPerMinute caps logins per client address; 0 disables.
	LoginAttemptsPerMinute int `yaml:"login_attempts_per_minute" envconfig:"LOGIN_ATTEMPTS_PER_MINUTE"`
}

// Weather providers.
const (
	ProviderPlaceholder = "placeholder"
	ProviderOpenWeather = "openweather"
)

// LoadConfig reads filename, applies CBH_* environment overrides and fills
// defaults. A missing file is not an error.
func LoadConfig(filename string) (*Config, error) {
	var config Config

	if filename != "" {
		data, err := os.ReadFile(filename)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, &config); err != nil {
				return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
			}
		}
	}

	if err := envconfig.Process(EnvPrefix, &config); err != nil {
		return nil, fmt.Errorf("failed to process env config: %w", err)
	}

	config.applyDefaults()
	if err := config.validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Default returns the configuration used when no file or overrides exist.
func Default() *Config {
	var c Config
	c.applyDefaults()
	return &c
}

func (c *Config) applyDefaults() {
	if c.Data.Dir == "" {
		c.Data.Dir = "data"
	}
	if c.Data.InventoryFile == "" {
		c.Data.InventoryFile = "inventory.json"
	}
	if c.Data.SubscriptionsFile == "" {
		c.Data.SubscriptionsFile = "subscriptions.json"
	}
	if c.Data.LeadsFile == "" {
		c.Data.LeadsFile = "leads.json"
	}
	if c.Data.AccountsDB == "" {
		c.Data.AccountsDB = "accounts.db"
	}
	if c.Site.AssetsDir == "" {
		c.Site.AssetsDir = filepath.Join("docs", "Assets")
	}
	if c.Site.RepoCatalogPath == "" {
		c.Site.RepoCatalogPath = "docs/inventory.json"
	}
	if c.Site.RepoAssetsDir == "" {
		c.Site.RepoAssetsDir = "docs/Assets"
	}
	if c.GitHub.Branch == "" {
		c.GitHub.Branch = "main"
	}
	if c.Weather.Provider == "" {
		c.Weather.Provider = ProviderPlaceholder
	}
	if c.Weather.CacheTTL == 0 {
		c.Weather.CacheTTL = 15 * time.Minute
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
}

func (c *Config) validate() error {
	switch c.Weather.Provider {
	case ProviderPlaceholder:
	case ProviderOpenWeather:
		if c.Weather.APIKey == "" {
			return errors.New("weather.api_key is required for the openweather provider")
		}
	default:
		return fmt.Errorf("unknown weather provider %q", c.Weather.Provider)
	}
	if c.Weather.CacheTTL < 0 {
		return errors.New("weather.cache_ttl must not be negative")
	}
	if c.Server.LoginAttemptsPerMinute < 0 {
		return errors.New("server.login_attempts_per_minute must not be negative")
	}
	return nil
}

func (d DataConfig) InventoryPath() string     { return d.resolve(d.InventoryFile) }
func (d DataConfig) SubscriptionsPath() string { return d.resolve(d.SubscriptionsFile) }
func (d DataConfig) LeadsPath() string         { return d.resolve(d.LeadsFile) }
func (d DataConfig) AccountsPath() string      { return d.resolve(d.AccountsDB) }

func (d DataConfig) resolve(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(d.Dir, name)
}
