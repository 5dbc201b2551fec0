package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Client talks to an OpenAI-compatible chat completions endpoint. It is safe
// for concurrent use; the optional limiter is shared by all callers.
type Client struct {
	config     *Config
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
}

// NewClient validates config and builds a client. RatePerMinute > 0 spaces
// requests evenly across the minute.
func NewClient(config *Config) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	client := &Client{
		config:  config,
		baseURL: strings.TrimRight(config.APIURL, "/"),
		httpClient: &http.Client{
			Timeout: time.Duration(config.Timeout) * time.Second,
		},
	}
	if config.RatePerMinute > 0 {
		client.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(config.RatePerMinute)), 1)
	}

	return client, nil
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.config.Model
}

// ChatCompletion posts messages, prefixed by the system prompt of opts, and
// waits for the rate limiter first. A JSON schema in opts is forwarded as the
// response format.
func (c *Client) ChatCompletion(ctx context.Context, messages []Message, opts *ChatCompletionOptions) (*ChatResponse, error) {
	if opts == nil {
		opts = NewChatCompletionOptions()
	}

	if opts.SystemPrompt != "" {
		systemMessage := Message{
			Role:    "system",
			Content: opts.SystemPrompt,
		}
		messages = append([]Message{systemMessage}, messages...)
	}

	request := ChatRequest{
		Model:          c.config.Model,
		Messages:       messages,
		MaxTokens:      c.getMaxTokens(opts),
		Temperature:    c.getTemperature(opts),
		ResponseFormat: opts.ResponseFormat,
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	response, err := c.makeRequest(ctx, http.MethodPost, "/chat/completions", request)
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}

	return response, nil
}

func (c *Client) makeRequest(ctx context.Context, method, path string, payload interface{}) (*ChatResponse, error) {
	url := c.baseURL + path

	var body io.Reader
	if payload != nil {
		jsonData, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for key, value := range c.config.GetHeaders() {
		req.Header.Set(key, value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if os.IsTimeout(err) {
			return nil, fmt.Errorf("request timed out: %w", err)
		}
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var chatResponse ChatResponse
	if err := json.Unmarshal(responseBody, &chatResponse); err != nil {
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(responseBody))
		}
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if chatResponse.Error != nil && chatResponse.Error.Message != "" {
		return &chatResponse, chatResponse.Error
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &chatResponse, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(responseBody))
	}

	return &chatResponse, nil
}

func (c *Client) getMaxTokens(opts *ChatCompletionOptions) int {
	if opts.MaxTokens > 0 {
		return opts.MaxTokens
	}
	return c.config.MaxTokens
}

// getTemperature prefers a per-call value in [0, 2] over the configured one.
func (c *Client) getTemperature(opts *ChatCompletionOptions) float64 {
	if opts.Temperature >= 0 && opts.Temperature <= 2 {
		return opts.Temperature
	}
	return c.config.Temperature
}
