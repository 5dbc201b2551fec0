package llm

import (
	"fmt"
)

// Config holds the configuration for the LLM client.
// Any OpenAI-compatible chat completions endpoint works (OpenRouter, OpenAI,
// a local gateway).
//
// Environment Variables (read by internal/config):
// - LLM_API_KEY: API key for the provider (required for extraction)
// - LLM_API_URL: API endpoint URL (default: https://openrouter.ai/api/v1)
// - LLM_MODEL: Model name to use
// - LLM_MAX_TOKENS: Maximum tokens for responses
// - LLM_TEMPERATURE: Sampling temperature
// - LLM_TIMEOUT: Request timeout in seconds
// - LLM_RATE_PER_MIN: Requests allowed per minute, 0 for unlimited
type Config struct {
	APIKey        string  `json:"api_key"`
	APIURL        string  `json:"api_url"`
	Model         string  `json:"model"`
	MaxTokens     int     `json:"max_tokens"`
	Temperature   float64 `json:"temperature"`
	Timeout       int     `json:"timeout"`
	RatePerMinute int     `json:"rate_per_minute"`
	SiteURL       string  `json:"site_url"`
	AppName       string  `json:"app_name"`
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("API key is required")
	}
	if c.APIURL == "" {
		return fmt.Errorf("API URL is required")
	}
	if c.Model == "" {
		return fmt.Errorf("model is required")
	}
	if c.MaxTokens < 1 {
		return fmt.Errorf("max tokens must be greater than 0")
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2")
	}
	if c.Timeout < 1 {
		return fmt.Errorf("timeout must be greater than 0")
	}
	if c.RatePerMinute < 0 {
		return fmt.Errorf("rate per minute cannot be negative")
	}
	return nil
}

// GetHeaders returns the headers for the LLM API request
func (c *Config) GetHeaders() map[string]string {
	headers := map[string]string{
		"Authorization": "Bearer " + c.APIKey,
		"Content-Type":  "application/json",
	}

	if c.SiteURL != "" {
		headers["HTTP-Referer"] = c.SiteURL
	}
	if c.AppName != "" {
		headers["X-Title"] = c.AppName
	}

	return headers
}
