// Package config loads the service configuration from YAML with environment
// variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"news-digest/pkg/sources"
)

var (
	ErrInvalidWorkers    = errors.New("collector.workers must be positive")
	ErrInvalidInterval   = errors.New("scheduler.interval must be positive")
	ErrInvalidMaxRetries = errors.New("scheduler.max_retries must be at least 1")
	ErrInvalidBulletin   = errors.New("bulletin hours and limit must be positive")
	ErrInvalidSource     = errors.New("invalid source")
	ErrMissingSecret     = errors.New("auth.secret (JWT_SECRET) must be set")
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Mongo     MongoConfig     `yaml:"mongo"`
	Auth      AuthConfig      `yaml:"auth"`
	Collector CollectorConfig `yaml:"collector"`
	Bulletin  BulletinConfig  `yaml:"bulletin"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Gemini    GeminiConfig    `yaml:"gemini"`
	Mirror    MirrorConfig    `yaml:"mirror"`
	Log       LogConfig       `yaml:"log"`
}

type ServerConfig struct {
	Addr string `yaml:"addr" env:"SERVER_ADDR"`
}

type MongoConfig struct {
	URI                string `yaml:"uri" env:"MONGO_URI"`
	Database           string `yaml:"database" env:"MONGO_DB_NAME"`
	NewsCollection     string `yaml:"news_collection" env:"MONGO_COLLECTION_NEWS"`
	BulletinCollection string `yaml:"bulletin_collection" env:"MONGO_COLLECTION_BULLETIN"`
}

type AuthConfig struct {
	Secret        string        `yaml:"secret" env:"JWT_SECRET"`
	AdminUsername string        `yaml:"admin_username" env:"ADMIN_USERNAME"`
	AdminPassword string        `yaml:"admin_password" env:"ADMIN_PASSWORD"`
	TokenTTL      time.Duration `yaml:"token_ttl"`
}

type CollectorConfig struct {
	Workers int           `yaml:"workers" env:"COLLECTOR_WORKERS"`
	Timeout time.Duration `yaml:"timeout"`
	Sources []Source      `yaml:"sources"`
}

// Source is one configured news source.
type Source struct {
	Name        string `yaml:"name"`
	Kind        string `yaml:"kind"`
	URL         string `yaml:"url"`
	Avatar      string `yaml:"avatar"`
	Client      string `yaml:"client"`
	MaxArticles int    `yaml:"max_articles"`
}

type BulletinConfig struct {
	DefaultHours int `yaml:"default_hours"`
	DefaultLimit int `yaml:"default_limit"`
	NewsHours    int `yaml:"news_hours"`
	NewsLimit    int `yaml:"news_limit"`
}

type SchedulerConfig struct {
	BaseURL           string        `yaml:"base_url" env:"SCHEDULER_BASE_URL"`
	Interval          time.Duration `yaml:"interval"`
	RunOnStartup      bool          `yaml:"run_on_startup" env:"SCHEDULER_RUN_ON_STARTUP"`
	DelayBetweenTasks time.Duration `yaml:"delay_between_tasks"`
	MaxRetries        int           `yaml:"max_retries" env:"SCHEDULER_MAX_RETRIES"`
	RetryDelay        time.Duration `yaml:"retry_delay"`
	Timeout           time.Duration `yaml:"timeout"`
	ErrorPause        time.Duration `yaml:"error_pause"`
	BulletinHours     int           `yaml:"bulletin_hours"`
	BulletinLimit     int           `yaml:"bulletin_limit"`
	BulletinSources   []string      `yaml:"bulletin_sources"`
	AdminToken        string        `yaml:"admin_token" env:"SCHEDULER_ADMIN_TOKEN"`
}

type GeminiConfig struct {
	APIKey  string        `yaml:"api_key" env:"GEMINI_API_KEY"`
	Model   string        `yaml:"model" env:"GEMINI_MODEL"`
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`

	// zero leaves the model's own default
	MaxTokens   int     `yaml:"max_tokens" env:"GEMINI_MAX_TOKENS"`
	Temperature float64 `yaml:"temperature" env:"GEMINI_TEMPERATURE"`
}

type MirrorConfig struct {
	PostgresDSN      string `yaml:"postgres_dsn" env:"POSTGRES_DSN"`
	SupabaseURL      string `yaml:"supabase_url" env:"SUPABASE_URL"`
	SupabaseKey      string `yaml:"supabase_key" env:"SUPABASE_KEY"`
	SupabasePassword string `yaml:"supabase_password" env:"SUPABASE_PASSWORD"`
	BatchSize        int    `yaml:"batch_size"`
	Workers          int    `yaml:"workers"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL"`
	Format string `yaml:"format" env:"LOG_FORMAT"`
}

// Default returns the configuration used when no file overrides a value.
func Default() Config {
	return Config{
		Server: ServerConfig{Addr: ":8000"},
		Mongo: MongoConfig{
			URI:                "mongodb://localhost:27017",
			Database:           "crypto_news",
			NewsCollection:     "news",
			BulletinCollection: "bulletin",
		},
		Auth: AuthConfig{
			AdminUsername: "admin",
			AdminPassword: "admin123",
			TokenTTL:      24 * time.Hour,
		},
		Collector: CollectorConfig{
			Workers: 6,
			Timeout: 60 * time.Second,
		},
		Bulletin: BulletinConfig{
			DefaultHours: 8,
			DefaultLimit: 20,
			NewsHours:    24,
			NewsLimit:    50,
		},
		Scheduler: SchedulerConfig{
			BaseURL:           "http://localhost:8000",
			Interval:          2 * time.Minute,
			RunOnStartup:      true,
			DelayBetweenTasks: time.Second,
			MaxRetries:        3,
			RetryDelay:        60 * time.Second,
			Timeout:           300 * time.Second,
			ErrorPause:        60 * time.Second,
			BulletinHours:     3,
			BulletinLimit:     30,
		},
		Gemini: GeminiConfig{
			Model:   "gemini-1.5-flash",
			Timeout: 60 * time.Second,
		},
		Mirror: MirrorConfig{
			BatchSize: 500,
			Workers:   4,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// LoadDotenv loads KEY=VALUE pairs from the given files into the environment
// without overriding variables that are already set. Missing files are ignored.
func LoadDotenv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Load reads the YAML file at path on top of Default, then applies environment
// overrides. An empty path or a missing file yields defaults plus environment.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return cfg, fmt.Errorf("read config file %s: %w", path, err)
		default:
			// Expand environment variables in the YAML
			expanded := os.ExpandEnv(string(data))
			if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
				return cfg, fmt.Errorf("parse config file %s: %w", path, err)
			}
		}
	}

	applyEnvOverrides(&cfg)
	return cfg, cfg.Validate()
}

// Validate checks the values the pipeline cannot run without.
func (c Config) Validate() error {
	if c.Collector.Workers <= 0 {
		return ErrInvalidWorkers
	}
	if c.Scheduler.Interval <= 0 {
		return ErrInvalidInterval
	}
	if c.Scheduler.MaxRetries < 1 {
		return ErrInvalidMaxRetries
	}
	if c.Bulletin.DefaultHours <= 0 || c.Bulletin.DefaultLimit <= 0 ||
		c.Scheduler.BulletinHours <= 0 || c.Scheduler.BulletinLimit <= 0 {
		return ErrInvalidBulletin
	}

	seen := make(map[string]bool)
	for i, s := range c.Collector.Sources {
		switch {
		case strings.TrimSpace(s.Name) == "":
			return fmt.Errorf("%w: sources[%d] has no name", ErrInvalidSource, i)
		case seen[s.Name]:
			return fmt.Errorf("%w: duplicate source %q", ErrInvalidSource, s.Name)
		case strings.TrimSpace(s.URL) == "":
			return fmt.Errorf("%w: source %q has no url", ErrInvalidSource, s.Name)
		}
		if !sources.ValidKind(s.Kind) {
			return fmt.Errorf("%w: source %q has unknown kind %q", ErrInvalidSource, s.Name, s.Kind)
		}
		seen[s.Name] = true
	}
	return nil
}

// ValidateServer checks what the API server needs on top of Validate.
func (c Config) ValidateServer() error {
	if strings.TrimSpace(c.Auth.Secret) == "" {
		return ErrMissingSecret
	}
	return nil
}

// applyEnvOverrides sets struct fields from environment variables.
// It uses the `env` struct tag to determine the env var name.
func applyEnvOverrides(v any) {
	val := reflect.ValueOf(v)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}
	if val.Kind() != reflect.Struct {
		return
	}

	t := val.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldVal := val.Field(i)

		// Recurse into struct fields
		if fieldVal.Kind() == reflect.Struct {
			if fieldVal.CanAddr() {
				applyEnvOverrides(fieldVal.Addr().Interface())
			}
			continue
		}

		envTag := field.Tag.Get("env")
		if envTag == "" {
			continue
		}

		envVal, ok := os.LookupEnv(envTag)
		if !ok || !fieldVal.CanSet() {
			continue
		}

		switch fieldVal.Kind() {
		case reflect.String:
			fieldVal.SetString(envVal)
		case reflect.Int, reflect.Int64:
			var n int64
			if _, err := fmt.Sscanf(envVal, "%d", &n); err == nil {
				fieldVal.SetInt(n)
			}
		case reflect.Float64:
			if f, err := strconv.ParseFloat(envVal, 64); err == nil {
				fieldVal.SetFloat(f)
			}
		case reflect.Bool:
			fieldVal.SetBool(strings.EqualFold(envVal, "true") || envVal == "1")
		}
	}
}
