// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type HTTPConfig struct {
	Port           int           `yaml:"port"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	AllowedOrigins []string      `yaml:"allowed_origins"` // websocket origins; empty = any
}

type AIConfig struct {
	GeminiKey       string            `yaml:"gemini_key"`
	GeminiURL       string            `yaml:"gemini_url"`
	OpenAIKey       string            `yaml:"openai_key"`
	OpenAIBaseURL   string            `yaml:"openai_base_url"`
	DefaultModel    string            `yaml:"default_model"` // logical model id, e.g. void-4
	ImageModel      string            `yaml:"image_model"`
	ModelMap        map[string]string `yaml:"model_map"` // logical id -> provider model name
	Temperature     float32           `yaml:"temperature"`
	MaxOutputTokens int               `yaml:"max_output_tokens"`
	ArchitectTokens int               `yaml:"architect_tokens"`
	ThinkingBudget  int               `yaml:"thinking_budget"`
	Grounding       bool              `yaml:"grounding"`
	Timeout         time.Duration     `yaml:"timeout"`
	ConcurrentLimit int               `yaml:"concurrent_limit"` // max concurrent AI calls
}

type CreditsConfig struct {
	BasicChat       int `yaml:"basic_chat"`
	CodeGeneration  int `yaml:"code_generation"`
	ImageGeneration int `yaml:"image_generation"`
}

type ProfileConfig struct {
	Name    string `yaml:"name"`
	Credits int    `yaml:"credits"`
	Tier    string `yaml:"tier"` // free|pro
}

type ChatConfig struct {
	TitleLimit         int `yaml:"title_limit"`
	HistoryTokenBudget int `yaml:"history_token_budget"`
}

type StorageConfig struct {
	Driver     string `yaml:"driver"` // sqlite|redis|postgres|memory
	Path       string `yaml:"path"`   // sqlite file
	KeyPrefix  string `yaml:"key_prefix"`
	WriteQueue int    `yaml:"write_queue"`
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type SecurityConfig struct {
	EncryptionKey string `yaml:"encryption_key"`
}

type TelegramConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Token    string `yaml:"token"`
	OwnerID  int64  `yaml:"owner_id"` // the single chat allowed to drive the instance
	Workers  int    `yaml:"workers"`
	Language string `yaml:"language"` // locales/<language>.yaml, default en
}

type Config struct {
	Log      LogConfig      `yaml:"log"`
	HTTP     HTTPConfig     `yaml:"http"`
	AI       AIConfig       `yaml:"ai"`
	Credits  CreditsConfig  `yaml:"credits"`
	Profile  ProfileConfig  `yaml:"profile"`
	Chat     ChatConfig     `yaml:"chat"`
	Storage  StorageConfig  `yaml:"storage"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Security SecurityConfig `yaml:"security"`
	Telegram TelegramConfig `yaml:"telegram"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the YAML file at path, fills defaults and applies env overrides.
// A missing file is not an error: the client runs on defaults plus API_KEY.
func LoadConfig(path string, dev bool) (*Config, error) {
	cfg := seeded()
	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
		// defaults only
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)
	cfg.Runtime.Dev = dev

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// seeded returns the values that must survive an explicit zero in the file,
// so they are set before unmarshalling rather than filled afterwards.
func seeded() Config {
	return Config{
		Credits: CreditsConfig{ImageGeneration: 1},
		Profile: ProfileConfig{Credits: 5000},
	}
}

func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("API_KEY")); v != "" {
		cfg.AI.GeminiKey = v
	}
	if v := strings.TrimSpace(os.Getenv("OPENAI_API_KEY")); v != "" {
		cfg.AI.OpenAIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("TELEGRAM_TOKEN")); v != "" {
		cfg.Telegram.Token = v
	}
	if v := strings.TrimSpace(os.Getenv("DATABASE_URL")); v != "" {
		cfg.Database.URL = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 8080
	}
	if cfg.HTTP.RequestTimeout <= 0 {
		cfg.HTTP.RequestTimeout = 15 * time.Second
	}

	if cfg.AI.DefaultModel == "" {
		cfg.AI.DefaultModel = "void-4"
	}
	if cfg.AI.ImageModel == "" {
		cfg.AI.ImageModel = "gemini-2.5-flash-image"
	}
	if cfg.AI.ModelMap == nil {
		cfg.AI.ModelMap = map[string]string{}
	}
	for id, name := range defaultModelMap {
		if _, ok := cfg.AI.ModelMap[id]; !ok {
			cfg.AI.ModelMap[id] = name
		}
	}
	if cfg.AI.Temperature == 0 {
		cfg.AI.Temperature = 0.7
	}
	if cfg.AI.MaxOutputTokens <= 0 {
		cfg.AI.MaxOutputTokens = 8192
	}
	if cfg.AI.ArchitectTokens <= 0 {
		cfg.AI.ArchitectTokens = 32768
	}
	if cfg.AI.ThinkingBudget < 0 {
		cfg.AI.ThinkingBudget = 0
	}
	if cfg.AI.Timeout <= 0 {
		cfg.AI.Timeout = 120 * time.Second
	}
	if cfg.AI.ConcurrentLimit <= 0 {
		cfg.AI.ConcurrentLimit = 4
	}

	if cfg.Profile.Name == "" {
		cfg.Profile.Name = "User"
	}
	if cfg.Profile.Tier == "" {
		cfg.Profile.Tier = "pro"
	}

	if cfg.Chat.TitleLimit <= 0 {
		cfg.Chat.TitleLimit = 40
	}
	if cfg.Chat.HistoryTokenBudget <= 0 {
		cfg.Chat.HistoryTokenBudget = 24000
	}

	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "sqlite"
	}
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = "void-ai.db"
	}
	if cfg.Storage.KeyPrefix == "" {
		cfg.Storage.KeyPrefix = "void_ai_"
	}
	if cfg.Storage.WriteQueue <= 0 {
		cfg.Storage.WriteQueue = 16
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 4
	}
	if cfg.Telegram.Workers <= 0 {
		cfg.Telegram.Workers = 1
	}
	if cfg.Telegram.Language == "" {
		cfg.Telegram.Language = "en"
	}
}

var defaultModelMap = map[string]string{
	"void-4":     "gemini-3-flash-preview",
	"gemini-pro": "gemini-3-flash-preview",
	"claude-3-5": "gemini-3-flash-preview",
	"gpt-4":      "gpt-4o",
}

// Validate performs minimal sanity checks. Dev mode may run without provider keys.
func (c *Config) Validate() error {
	if !c.Runtime.Dev && c.AI.GeminiKey == "" && c.AI.OpenAIKey == "" {
		return errors.New("ai: API_KEY (or ai.gemini_key / ai.openai_key) is required")
	}
	switch strings.ToLower(c.Storage.Driver) {
	case "sqlite", "memory":
	case "redis":
		if c.Redis.URL == "" {
			return errors.New("redis.url is required for storage.driver=redis")
		}
	case "postgres":
		if c.Database.URL == "" {
			return errors.New("database.url is required for storage.driver=postgres")
		}
	default:
		return fmt.Errorf("storage.driver %q is not supported", c.Storage.Driver)
	}
	if c.Profile.Credits < 0 {
		return fmt.Errorf("profile.credits must not be negative; got %d", c.Profile.Credits)
	}
	if c.Credits.BasicChat < 0 || c.Credits.CodeGeneration < 0 || c.Credits.ImageGeneration < 0 {
		return errors.New("credits: costs must not be negative")
	}
	switch c.Profile.Tier {
	case "free", "pro":
	default:
		return fmt.Errorf("profile.tier %q must be free or pro", c.Profile.Tier)
	}
	if n := len(c.Security.EncryptionKey); n != 0 && n != 16 && n != 24 && n != 32 {
		return fmt.Errorf("security.encryption_key must be 16, 24 or 32 bytes; got %d", n)
	}
	if c.Telegram.Enabled && (c.Telegram.Token == "" || c.Telegram.OwnerID == 0) {
		return errors.New("telegram.token and telegram.owner_id are required when telegram is enabled")
	}
	return nil
}
