package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	CacheNone   = "none"
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

const (
	DefaultAzureAPIVersion = "2024-02-15-preview"
	DefaultOllamaBaseURL   = "http://localhost:11434"
)

// Config holds application configuration
type Config struct {
	Backends Backends
	Server   Server
	Session  Session
	Log      Log
	Archive  Archive
	Cache    Cache
	Reply    Reply
}

// Backends carries the raw inputs of backend selection. Empty means unset.
type Backends struct {
	AzureAPIKey     string
	AzureEndpoint   string
	AzureDeployment string
	AzureAPIVersion string
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	ModelName       string // optional override for every backend
	OllamaBaseURL   string
	Timeout         time.Duration // transport-level limit for one backend call
}

type Server struct {
	Host string
	Port int
}

// Addr returns the listen address
func (s Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type Session struct {
	Window int
}

type Log struct {
	Dir   string
	Level slog.Level
}

// Archive configures the sqlite exchange archive. An empty Path disables it.
type Archive struct {
	Path string
}

// Reply controls backend reply normalization. Repair enables the
// jsonrepair stage for replies that neither parse nor match extraction.
type Reply struct {
	Repair bool
}

type Cache struct {
	Mode          string
	TTL           time.Duration
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("azure_openai_api_version", DefaultAzureAPIVersion)
	v.SetDefault("ollama_base_url", DefaultOllamaBaseURL)
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("port", 8000)
	v.SetDefault("invchat_history_window", 20)
	v.SetDefault("invchat_backend_timeout", "120s")
	v.SetDefault("invchat_log_dir", "logs")
	v.SetDefault("invchat_log_level", "info")
	v.SetDefault("invchat_cache", CacheNone)
	v.SetDefault("invchat_cache_ttl", "10m")
	v.SetDefault("redis_addr", "localhost:6379")
	v.SetDefault("redis_db", 0)
	v.SetDefault("invchat_json_repair", false)
}

// Load reads configuration from the environment, layered over an optional
// dotenv file. Variables already present in the environment take
// precedence over the file, and a missing file is not an error.
func Load(envFile string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	if envFile != "" {
		v.SetConfigFile(envFile)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
				return Config{}, fmt.Errorf("failed to read env file %s: %w", envFile, err)
			}
		}
	}
	v.AutomaticEnv()

	level, err := parseLevel(v.GetString("invchat_log_level"))
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Backends: Backends{
			AzureAPIKey:     strings.TrimSpace(v.GetString("azure_openai_api_key")),
			AzureEndpoint:   strings.TrimSpace(v.GetString("azure_openai_endpoint")),
			AzureDeployment: strings.TrimSpace(v.GetString("azure_openai_deployment")),
			AzureAPIVersion: strings.TrimSpace(v.GetString("azure_openai_api_version")),
			OpenAIAPIKey:    strings.TrimSpace(v.GetString("openai_api_key")),
			OpenAIBaseURL:   strings.TrimSpace(v.GetString("openai_base_url")),
			ModelName:       strings.TrimSpace(v.GetString("model_name")),
			OllamaBaseURL:   strings.TrimSpace(v.GetString("ollama_base_url")),
			Timeout:         v.GetDuration("invchat_backend_timeout"),
		},
		Server: Server{
			Host: v.GetString("host"),
			Port: v.GetInt("port"),
		},
		Session: Session{
			Window: v.GetInt("invchat_history_window"),
		},
		Log: Log{
			Dir:   v.GetString("invchat_log_dir"),
			Level: level,
		},
		Archive: Archive{
			Path: strings.TrimSpace(v.GetString("invchat_archive_path")),
		},
		Cache: Cache{
			Mode:          strings.ToLower(strings.TrimSpace(v.GetString("invchat_cache"))),
			TTL:           v.GetDuration("invchat_cache_ttl"),
			RedisAddr:     v.GetString("redis_addr"),
			RedisPassword: v.GetString("redis_password"),
			RedisDB:       v.GetInt("redis_db"),
		},
		Reply: Reply{
			Repair: v.GetBool("invchat_json_repair"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the values that cannot be repaired with a default
func (c Config) Validate() error {
	if c.Session.Window < 2 {
		return fmt.Errorf("INVCHAT_HISTORY_WINDOW must be at least 2, got %d", c.Session.Window)
	}
	if c.Backends.Timeout <= 0 {
		return fmt.Errorf("INVCHAT_BACKEND_TIMEOUT must be positive, got %s", c.Backends.Timeout)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("PORT out of range: %d", c.Server.Port)
	}
	switch c.Cache.Mode {
	case CacheNone, CacheMemory:
	case CacheRedis:
		if c.Cache.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is required when INVCHAT_CACHE=redis")
		}
	default:
		return fmt.Errorf("unknown INVCHAT_CACHE mode: %q (none|memory|redis)", c.Cache.Mode)
	}
	if c.Cache.Mode != CacheNone && c.Cache.TTL <= 0 {
		return fmt.Errorf("INVCHAT_CACHE_TTL must be positive, got %s", c.Cache.TTL)
	}
	return nil
}

func parseLevel(raw string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(raw))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid INVCHAT_LOG_LEVEL %q: %w", raw, err)
	}
	return level, nil
}
