package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"marksweep/internal/models"
	"marksweep/internal/retry"
	"marksweep/internal/services"
)

// EnvPrefix namespaces every environment override, e.g. MARKSWEEP_STORE_DSN.
const EnvPrefix = "MARKSWEEP"

type Config struct {
	Store struct {
		Driver string `mapstructure:"driver"` // "sqlite" or "postgres"
		DSN    string `mapstructure:"dsn"`
	} `mapstructure:"store"`

	Classifier struct {
		Provider       string `mapstructure:"provider"` // "openai" or "gemini"
		APIBaseURL     string `mapstructure:"api_base_url"`
		APIKey         string `mapstructure:"api_key"`
		Model          string `mapstructure:"model"`
		Enabled        bool   `mapstructure:"enabled"`
		PromptTemplate string `mapstructure:"prompt_template"` // path to a prompt file, optional
	} `mapstructure:"classifier"`

	Organize struct {
		AutoRemoveBroken bool   `mapstructure:"auto_remove_broken"`
		CreateFolders    bool   `mapstructure:"create_folders"`
		RootFolderID     string `mapstructure:"root_folder_id"`
		FolderTitle      string `mapstructure:"folder_title"`
	} `mapstructure:"organize"`

	Scan struct {
		ItemDelay         time.Duration `mapstructure:"item_delay"`
		ProbeCeiling      time.Duration `mapstructure:"probe_ceiling"`
		CategorizeCeiling time.Duration `mapstructure:"categorize_ceiling"`
	} `mapstructure:"scan"`

	Retry struct {
		BaseDelay     time.Duration `mapstructure:"base_delay"`
		MaxDelay      time.Duration `mapstructure:"max_delay"`
		BackoffFactor float64       `mapstructure:"backoff_factor"`
		MaxAttempts   int           `mapstructure:"max_attempts"`
	} `mapstructure:"retry"`

	Diagnostics struct {
		Capacity int `mapstructure:"capacity"`
	} `mapstructure:"diagnostics"`

	Server struct {
		Addr string `mapstructure:"addr"`
		Port int    `mapstructure:"port"`
	} `mapstructure:"server"`

	Redis struct {
		Address  string `mapstructure:"address"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
	} `mapstructure:"redis"`

	Worker struct {
		Concurrency int            `mapstructure:"concurrency"`
		Queues      map[string]int `mapstructure:"queues"`
	} `mapstructure:"worker"`

	Log struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"log"`

	Language string `mapstructure:"language"`
}

func setDefaults(v *viper.Viper) {
	home, _ := os.UserHomeDir()
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.dsn", filepath.Join(home, ".config", "marksweep", "bookmarks.db"))

	v.SetDefault("classifier.provider", "openai")
	v.SetDefault("classifier.api_base_url", "")
	v.SetDefault("classifier.api_key", "")
	v.SetDefault("classifier.model", "gpt-4o-mini")
	v.SetDefault("classifier.enabled", false)
	v.SetDefault("classifier.prompt_template", "")

	v.SetDefault("organize.auto_remove_broken", false)
	v.SetDefault("organize.create_folders", true)
	v.SetDefault("organize.root_folder_id", "1")
	v.SetDefault("organize.folder_title", services.DefaultFolderTitle)

	v.SetDefault("scan.item_delay", services.DefaultItemDelay)
	v.SetDefault("scan.probe_ceiling", services.DefaultProbeCeiling)
	v.SetDefault("scan.categorize_ceiling", services.DefaultCategorizeCeiling)

	def := retry.DefaultPolicy()
	v.SetDefault("retry.base_delay", def.BaseDelay)
	v.SetDefault("retry.max_delay", def.MaxDelay)
	v.SetDefault("retry.backoff_factor", def.BackoffFactor)
	v.SetDefault("retry.max_attempts", def.MaxAttempts)

	v.SetDefault("diagnostics.capacity", 50)
	v.SetDefault("server.addr", "127.0.0.1")
	v.SetDefault("server.port", 8080)
	v.SetDefault("redis.address", "127.0.0.1:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("worker.concurrency", 1)
	v.SetDefault("worker.queues", map[string]int{"default": 1})
	v.SetDefault("log.level", "info")
	v.SetDefault("language", "en")
}

// LoadConfig reads .env, then config.yaml from the working directory or
// ~/.config/marksweep, then MARKSWEEP_* environment overrides.
func LoadConfig() (*Config, error) {
	// A missing .env is normal.
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "marksweep"))
	}
	return load(v)
}

// LoadConfigFile reads an explicit config file instead of searching for one.
func LoadConfigFile(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}
	_ = godotenv.Load()
	v := viper.New()
	v.SetConfigFile(path)
	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Provider keys are honoured without the prefix.
	_ = v.BindEnv("classifier.api_key", EnvPrefix+"_CLASSIFIER_API_KEY", "OPENAI_API_KEY", "GEMINI_API_KEY")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error decoding config: %w", err)
	}
	config.Language = NormalizeLanguage(config.Language)
	return &config, nil
}

// Settings is the per-run view handed to the pipeline.
func (c *Config) Settings() models.Settings {
	return models.Settings{
		Provider:                     c.Classifier.Provider,
		APIBaseURL:                   c.Classifier.APIBaseURL,
		APIKey:                       c.Classifier.APIKey,
		ModelName:                    c.Classifier.Model,
		EnableExternalClassification: c.Classifier.Enabled,
		AutoRemoveBroken:             c.Organize.AutoRemoveBroken,
		CreateFolders:                c.Organize.CreateFolders,
		SelectedLanguage:             c.Language,
	}
}

func (c *Config) RetryPolicy() retry.Policy {
	return retry.Policy{
		BaseDelay:     c.Retry.BaseDelay,
		MaxDelay:      c.Retry.MaxDelay,
		BackoffFactor: c.Retry.BackoffFactor,
		MaxAttempts:   c.Retry.MaxAttempts,
	}
}

func (c *Config) ScanOptions() services.ScanOptions {
	return services.ScanOptions{
		ItemDelay:         c.Scan.ItemDelay,
		ProbeCeiling:      c.Scan.ProbeCeiling,
		CategorizeCeiling: c.Scan.CategorizeCeiling,
	}
}

func (c *Config) OrganizeOptions() services.OrganizeOptions {
	return services.OrganizeOptions{
		RootFolderID: c.Organize.RootFolderID,
		FolderTitle:  c.Organize.FolderTitle,
	}
}

// ServerAddress is the host:port the HTTP API listens on.
func (c *Config) ServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Addr, c.Server.Port)
}

// Default returns the built-in configuration without reading files or the environment.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		panic(fmt.Sprintf("config: invalid defaults: %v", err))
	}
	c.Language = NormalizeLanguage(c.Language)
	return &c
}
