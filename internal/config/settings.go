package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/MimeLyc/linklingua/internal/errs"
	"github.com/MimeLyc/linklingua/internal/study"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Settings is the user-editable YAML file. Empty fields keep the value from
// the environment.
type Settings struct {
	LLMAPIURL      string `yaml:"llm_api_url,omitempty"`
	LLMAPIKey      string `yaml:"llm_api_key,omitempty"`
	LLMModel       string `yaml:"llm_model,omitempty"`
	SearchAPIKey   string `yaml:"search_api_key,omitempty"`
	Pair           string `yaml:"pair,omitempty"`
	UILanguage     string `yaml:"ui_language,omitempty"`
	AutoSpeak      *bool  `yaml:"auto_speak,omitempty"`
	CacheTTLHours  int    `yaml:"cache_ttl_hours,omitempty"`
	CachePruneCron string `yaml:"cache_prune_cron,omitempty"`
	TTSCommand     string `yaml:"tts_command,omitempty"`
	STTCommand     string `yaml:"stt_command,omitempty"`
}

func (s Settings) Validate() error {
	if strings.TrimSpace(s.Pair) != "" {
		if _, err := study.ParsePair(s.Pair); err != nil {
			return err
		}
	}
	switch errs.UILanguage(s.UILanguage) {
	case "", errs.UIEnglish, errs.UIJapanese:
	default:
		return fmt.Errorf("invalid ui_language %q", s.UILanguage)
	}
	if s.CacheTTLHours < 0 {
		return fmt.Errorf("cache_ttl_hours cannot be negative")
	}
	if strings.TrimSpace(s.CachePruneCron) != "" {
		if _, err := cron.ParseStandard(s.CachePruneCron); err != nil {
			return fmt.Errorf("invalid cache_prune_cron: %w", err)
		}
	}
	return nil
}

// Settings returns the file view of c.
func (c *Config) Settings() Settings {
	autoSpeak := c.Study.AutoSpeak
	return Settings{
		LLMAPIURL:      c.LLM.APIURL,
		LLMModel:       c.LLM.Model,
		Pair:           string(c.Study.Pair),
		UILanguage:     string(c.Study.UILanguage),
		AutoSpeak:      &autoSpeak,
		CacheTTLHours:  int(c.Cache.TTL / time.Hour),
		CachePruneCron: c.Cache.PruneCron,
		TTSCommand:     c.Speech.TTSCommand,
		STTCommand:     c.Speech.STTCommand,
	}
}

func WithSettings(settings Settings) Option {
	return func(c *Config) {
		if strings.TrimSpace(settings.LLMAPIURL) != "" {
			c.LLM.APIURL = settings.LLMAPIURL
		}
		if strings.TrimSpace(settings.LLMAPIKey) != "" {
			c.LLM.APIKey = settings.LLMAPIKey
		}
		if strings.TrimSpace(settings.LLMModel) != "" {
			c.LLM.Model = settings.LLMModel
		}
		if strings.TrimSpace(settings.SearchAPIKey) != "" {
			c.Search.APIKey = settings.SearchAPIKey
		}
		if strings.TrimSpace(settings.Pair) != "" {
			c.Study.Pair = study.LanguagePair(strings.ToLower(strings.TrimSpace(settings.Pair)))
		}
		if strings.TrimSpace(settings.UILanguage) != "" {
			c.Study.UILanguage = errs.UILanguage(settings.UILanguage)
		}
		if settings.AutoSpeak != nil {
			c.Study.AutoSpeak = *settings.AutoSpeak
		}
		if settings.CacheTTLHours > 0 {
			c.Cache.TTL = time.Duration(settings.CacheTTLHours) * time.Hour
		}
		if strings.TrimSpace(settings.CachePruneCron) != "" {
			c.Cache.PruneCron = settings.CachePruneCron
		}
		if strings.TrimSpace(settings.TTSCommand) != "" {
			c.Speech.TTSCommand = settings.TTSCommand
		}
		if strings.TrimSpace(settings.STTCommand) != "" {
			c.Speech.STTCommand = settings.STTCommand
		}
	}
}

// LoadSettingsFile reads path. A missing file yields empty settings.
func LoadSettingsFile(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Settings{}, nil
		}
		return Settings{}, err
	}
	var settings Settings
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return Settings{}, fmt.Errorf("invalid settings file: %w", err)
	}
	if err := settings.Validate(); err != nil {
		return Settings{}, fmt.Errorf("invalid settings file: %w", err)
	}
	return settings, nil
}

// WriteSettingsFile validates settings and replaces path atomically.
func WriteSettingsFile(path string, settings Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	content, err := yaml.Marshal(settings)
	if err != nil {
		return err
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, content, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

// Load reads the environment, then applies the settings file named by
// SETTINGS_FILE (or DATA_DIR/settings.yaml).
func Load(opts ...Option) (*Config, error) {
	base, err := NewFromEnv()
	if err != nil {
		return nil, err
	}
	settings, err := LoadSettingsFile(base.System.SettingsFile)
	if err != nil {
		return nil, errs.Wrap(err, errs.ErrConfig, "cannot load settings").WithContext("path", base.System.SettingsFile)
	}
	return NewFromEnv(append([]Option{WithSettings(settings)}, opts...)...)
}
