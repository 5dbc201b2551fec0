package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/MimeLyc/linklingua/internal/errs"
	"github.com/MimeLyc/linklingua/internal/llm"
	"github.com/MimeLyc/linklingua/internal/study"
	"github.com/robfig/cron/v3"
)

// Config holds all application configuration
// Supports environment variables (optionally from a .env file) with sensible
// defaults, overridden by the YAML settings file.
//
// Environment Variables:
// LLM Configuration:
// - LLM_API_KEY: API key for the LLM provider (extraction falls back without it)
// - LLM_API_URL: API endpoint URL (default: https://openrouter.ai/api/v1)
// - LLM_MODEL: Model name to use (default: google/gemini-2.5-flash)
// - LLM_MAX_TOKENS: Maximum tokens for responses (default: 16000)
// - LLM_TEMPERATURE: Temperature for responses (default: 0.2)
// - LLM_TIMEOUT: Request timeout in seconds (default: 180)
// - LLM_RATE_PER_MIN: Requests per minute, 0 for unlimited (default: 10)
//
// Search Configuration:
// - SEARCH_API_KEY: Tavily API key, empty disables grounding
// - SEARCH_API_URL: Tavily API URL (default: https://api.tavily.com/search)
//
// Cache Configuration:
// - CACHE_TTL_HOURS: Lifetime of cached transcripts (default: 168)
// - CACHE_PRUNE_CRON: Schedule of expired entry removal (default: "@hourly")
//
// Study Configuration:
// - STUDY_PAIR: Initial language pair (default: jp-zh)
// - UI_LANGUAGE: Notification language, en or jp (default: en)
// - POLL_INTERVAL_MS: Player clock poll interval (default: 500)
// - AUTO_SPEAK: Speak each new sentence outside video mode (default: true)
// - TTS_COMMAND: Text-to-speech command template, e.g. "say -v {lang} {text}"
// - STT_COMMAND: Speech-to-text command template printing one line
//
// System Configuration:
// - DATA_DIR: Directory of the cache database (default: ~/.linklingua)
// - SETTINGS_FILE: YAML settings file (default: DATA_DIR/settings.yaml)
// - LOG_LEVEL: debug, info, warn or error (default: info)
// - LOG_FILE: Append log lines to this file instead of stderr
type Config struct {
	LLM    LLMConfig    `json:"llm"`
	Search SearchConfig `json:"search"`
	Cache  CacheConfig  `json:"cache"`
	Study  StudyConfig  `json:"study"`
	Speech SpeechConfig `json:"speech"`
	System SystemConfig `json:"system"`
}

// LLMConfig holds the configuration for LLM client
// Supports any OpenAI-compatible provider (OpenRouter, OpenAI, etc.)
type LLMConfig struct {
	APIKey        string  `json:"-"`
	APIURL        string  `json:"api_url"`
	Model         string  `json:"model"`
	MaxTokens     int     `json:"max_tokens"`
	Temperature   float64 `json:"temperature"`
	Timeout       int     `json:"timeout"`
	RatePerMinute int     `json:"rate_per_minute"`
	SiteURL       string  `json:"site_url"`
	AppName       string  `json:"app_name"`
}

// SearchConfig holds the configuration for search grounding
type SearchConfig struct {
	APIKey string `json:"-"`
	APIURL string `json:"api_url"`
}

type CacheConfig struct {
	TTL       time.Duration `json:"ttl"`
	PruneCron string        `json:"prune_cron"`
}

type StudyConfig struct {
	Pair         study.LanguagePair `json:"pair"`
	UILanguage   errs.UILanguage    `json:"ui_language"`
	PollInterval time.Duration      `json:"poll_interval"`
	AutoSpeak    bool               `json:"auto_speak"`
}

type SpeechConfig struct {
	TTSCommand string `json:"tts_command"`
	STTCommand string `json:"stt_command"`
}

type SystemConfig struct {
	DataDir      string `json:"data_dir"`
	SettingsFile string `json:"settings_file"`
	LogLevel     string `json:"log_level"`
	LogFile      string `json:"log_file"`
}

// Option is a function type for configuring Config
type Option func(*Config)

// NewFromEnv creates a new Config instance with values from environment variables and options
func NewFromEnv(opts ...Option) (*Config, error) {
	dataDir := getEnvString("DATA_DIR", defaultDataDir())
	config := &Config{
		LLM: LLMConfig{
			APIKey:        getEnvString("LLM_API_KEY", ""),
			APIURL:        getEnvString("LLM_API_URL", "https://openrouter.ai/api/v1"),
			Model:         getEnvString("LLM_MODEL", "google/gemini-2.5-flash"),
			MaxTokens:     getEnvInt("LLM_MAX_TOKENS", 16000),
			Temperature:   getEnvFloat("LLM_TEMPERATURE", 0.2),
			Timeout:       getEnvInt("LLM_TIMEOUT", 180),
			RatePerMinute: getEnvInt("LLM_RATE_PER_MIN", 10),
			SiteURL:       getEnvString("LLM_SITE_URL", ""),
			AppName:       getEnvString("LLM_APP_NAME", "linklingua"),
		},
		Search: SearchConfig{
			APIKey: getEnvString("SEARCH_API_KEY", ""),
			APIURL: getEnvString("SEARCH_API_URL", "https://api.tavily.com/search"),
		},
		Cache: CacheConfig{
			TTL:       time.Duration(getEnvInt("CACHE_TTL_HOURS", 168)) * time.Hour,
			PruneCron: getEnvString("CACHE_PRUNE_CRON", "@hourly"),
		},
		Study: StudyConfig{
			Pair:         study.LanguagePair(getEnvString("STUDY_PAIR", string(study.PairJPZH))),
			UILanguage:   errs.UILanguage(getEnvString("UI_LANGUAGE", string(errs.UIEnglish))),
			PollInterval: getEnvDuration("POLL_INTERVAL_MS", 500*time.Millisecond),
			AutoSpeak:    getEnvBool("AUTO_SPEAK", true),
		},
		Speech: SpeechConfig{
			TTSCommand: getEnvString("TTS_COMMAND", ""),
			STTCommand: getEnvString("STT_COMMAND", ""),
		},
		System: SystemConfig{
			DataDir:      dataDir,
			SettingsFile: getEnvString("SETTINGS_FILE", filepath.Join(dataDir, "settings.yaml")),
			LogLevel:     getEnvString("LOG_LEVEL", "info"),
			LogFile:      getEnvString("LOG_FILE", ""),
		},
	}

	// Apply custom options
	for _, opt := range opts {
		opt(config)
	}

	if err := config.validate(); err != nil {
		return nil, errs.Wrap(err, errs.ErrConfig, "invalid configuration")
	}

	return config, nil
}

// validate checks if all configuration values are usable
func (c *Config) validate() error {
	pair, err := study.ParsePair(string(c.Study.Pair))
	if err != nil {
		return err
	}
	c.Study.Pair = pair
	switch c.Study.UILanguage {
	case errs.UIEnglish, errs.UIJapanese:
	default:
		return fmt.Errorf("unsupported UI language %q", c.Study.UILanguage)
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("CACHE_TTL_HOURS must be positive")
	}
	if strings.TrimSpace(c.Cache.PruneCron) == "" {
		return fmt.Errorf("CACHE_PRUNE_CRON is required")
	}
	if _, err := cron.ParseStandard(c.Cache.PruneCron); err != nil {
		return fmt.Errorf("invalid CACHE_PRUNE_CRON: %w", err)
	}
	if c.Study.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL_MS must be positive")
	}
	if strings.TrimSpace(c.System.DataDir) == "" {
		return fmt.Errorf("DATA_DIR is required")
	}
	return nil
}

// LLMEnabled reports whether transcripts can be requested from the AI service.
func (c *Config) LLMEnabled() bool {
	return strings.TrimSpace(c.LLM.APIKey) != ""
}

// LLMClientConfig converts the LLM section for llm.NewClient.
func (c *Config) LLMClientConfig() *llm.Config {
	return &llm.Config{
		APIKey:        c.LLM.APIKey,
		APIURL:        c.LLM.APIURL,
		Model:         c.LLM.Model,
		MaxTokens:     c.LLM.MaxTokens,
		Temperature:   c.LLM.Temperature,
		Timeout:       c.LLM.Timeout,
		RatePerMinute: c.LLM.RatePerMinute,
		SiteURL:       c.LLM.SiteURL,
		AppName:       c.LLM.AppName,
	}
}

// DBPath is the transcript cache database inside DataDir.
func (c *Config) DBPath() string {
	return filepath.Join(c.System.DataDir, "linklingua.db")
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".linklingua"
	}
	return filepath.Join(home, ".linklingua")
}

// getEnvString gets a string value from environment variables with default
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer value from environment variables with default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat gets a float value from environment variables with default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getEnvBool gets a boolean value from environment variables with default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvDuration reads a millisecond count from environment variables with default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if ms, err := strconv.Atoi(value); err == nil {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return defaultValue
}
