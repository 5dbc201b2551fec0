package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const okResponse = `{
	"id": "test-id",
	"object": "chat.completion",
	"created": 1234567890,
	"model": "test-model",
	"choices": [{
		"index": 0,
		"message": {
			"role": "assistant",
			"content": "Hello! This is a test response."
		},
		"finish_reason": "stop"
	}],
	"usage": {
		"prompt_tokens": 10,
		"completion_tokens": 20,
		"total_tokens": 30
	}
}`

func testConfig(url string) *Config {
	return &Config{
		APIKey:      "test-key",
		APIURL:      url,
		Model:       "test-model",
		MaxTokens:   1000,
		Temperature: 0.7,
		Timeout:     30,
	}
}

func TestNewClient(t *testing.T) {
	config := testConfig("https://api.example.com/")

	client, err := NewClient(config)
	require.NoError(t, err)
	assert.Equal(t, config, client.config)
	assert.Equal(t, "https://api.example.com", client.baseURL)
	assert.NotNil(t, client.httpClient)
	assert.Nil(t, client.limiter)
	assert.Equal(t, "test-model", client.Model())

	_, err = NewClient(&Config{})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")

	limited := testConfig("https://api.example.com")
	limited.RatePerMinute = 30
	client, err = NewClient(limited)
	require.NoError(t, err)
	assert.NotNil(t, client.limiter)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"missing key", func(c *Config) { c.APIKey = "" }, "API key"},
		{"missing url", func(c *Config) { c.APIURL = "" }, "API URL"},
		{"missing model", func(c *Config) { c.Model = "" }, "model"},
		{"zero tokens", func(c *Config) { c.MaxTokens = 0 }, "max tokens"},
		{"hot temperature", func(c *Config) { c.Temperature = 2.5 }, "temperature"},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }, "timeout"},
		{"negative rate", func(c *Config) { c.RatePerMinute = -1 }, "rate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := testConfig("https://api.example.com")
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestGetHeaders(t *testing.T) {
	c := testConfig("https://api.example.com")
	c.SiteURL = "https://linklingua.local"
	c.AppName = "linklingua"

	headers := c.GetHeaders()
	assert.Equal(t, "Bearer test-key", headers["Authorization"])
	assert.Equal(t, "application/json", headers["Content-Type"])
	assert.Equal(t, "https://linklingua.local", headers["HTTP-Referer"])
	assert.Equal(t, "linklingua", headers["X-Title"])
}

func TestClientWithMockServer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req ChatRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		assert.Equal(t, 1000, req.MaxTokens)
		assert.InDelta(t, 0.7, req.Temperature, 1e-9)
		assert.Nil(t, req.ResponseFormat)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(okResponse))
	}))
	defer server.Close()

	client, err := NewClient(testConfig(server.URL))
	require.NoError(t, err)

	messages := []Message{{Role: "user", Content: "Hello, how are you?"}}
	response, err := client.ChatCompletion(context.Background(), messages, nil)
	require.NoError(t, err)
	assert.Equal(t, "test-id", response.ID)
	assert.Len(t, response.Choices, 1)
	assert.Equal(t, 30, response.Usage.TotalTokens)

	content, err := response.Content()
	require.NoError(t, err)
	assert.Equal(t, "Hello! This is a test response.", content)
}

func TestChatCompletionWithJSONSchema(t *testing.T) {
	schema := json.RawMessage(`{"type":"object","properties":{"ok":{"type":"boolean"}}}`)

	var req ChatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		_, _ = w.Write([]byte(okResponse))
	}))
	defer server.Close()

	client, err := NewClient(testConfig(server.URL))
	require.NoError(t, err)

	opts := NewChatCompletionOptions().
		WithSystemPrompt("Reply in JSON.").
		WithMaxTokens(500).
		WithTemperature(0.1).
		WithJSONSchema("result", schema)
	_, err = client.ChatCompletion(context.Background(), []Message{{Role: "user", Content: "go"}}, opts)
	require.NoError(t, err)

	require.Len(t, req.Messages, 2)
	assert.Equal(t, "system", req.Messages[0].Role)
	assert.Equal(t, "Reply in JSON.", req.Messages[0].Content)
	assert.Equal(t, 500, req.MaxTokens)
	assert.InDelta(t, 0.1, req.Temperature, 1e-9)

	require.NotNil(t, req.ResponseFormat)
	assert.Equal(t, "json_schema", req.ResponseFormat.Type)
	require.NotNil(t, req.ResponseFormat.JSONSchema)
	assert.Equal(t, "result", req.ResponseFormat.JSONSchema.Name)
	assert.True(t, req.ResponseFormat.JSONSchema.Strict)
	assert.JSONEq(t, string(schema), string(req.ResponseFormat.JSONSchema.Schema))
}

func TestClientErrorHandling(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{
			"error": {
				"message": "Invalid API key",
				"type": "authentication_error",
				"code": "401"
			}
		}`))
	}))
	defer server.Close()

	client, err := NewClient(testConfig(server.URL))
	require.NoError(t, err)

	response, err := client.ChatCompletion(context.Background(), []Message{{Role: "user", Content: "Hello"}}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	require.NotNil(t, response)
	assert.Equal(t, "Invalid API key", response.Error.Message)
}

func TestClientNonJSONErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer server.Close()

	client, err := NewClient(testConfig(server.URL))
	require.NoError(t, err)

	_, err = client.ChatCompletion(context.Background(), []Message{{Role: "user", Content: "Hello"}}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 502")
}

func TestChatCompletionPrependsSystemPrompt(t *testing.T) {
	var got ChatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"choices":[{"index":0,"message":{"role":"assistant","content":"Simple chat response"}}]}`))
	}))
	defer server.Close()

	client, err := NewClient(testConfig(server.URL))
	require.NoError(t, err)

	opts := NewChatCompletionOptions().WithSystemPrompt("You are a helpful assistant")
	resp, err := client.ChatCompletion(context.Background(), []Message{{Role: "user", Content: "Hello"}}, opts)
	require.NoError(t, err)
	content, err := resp.Content()
	require.NoError(t, err)
	assert.Equal(t, "Simple chat response", content)

	require.Len(t, got.Messages, 2)
	assert.Equal(t, Message{Role: "system", Content: "You are a helpful assistant"}, got.Messages[0])
	assert.Equal(t, "Hello", got.Messages[1].Content)
}

func TestChatCompletionNoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"empty","choices":[]}`))
	}))
	defer server.Close()

	client, err := NewClient(testConfig(server.URL))
	require.NoError(t, err)

	resp, err := client.ChatCompletion(context.Background(), []Message{{Role: "user", Content: "Hello"}}, nil)
	require.NoError(t, err)
	_, err = resp.Content()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no choices")
}

func TestClientConcurrentRequests(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(okResponse))
	}))
	defer server.Close()

	client, err := NewClient(testConfig(server.URL))
	require.NoError(t, err)

	messages := []Message{{Role: "user", Content: "Hello"}}
	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := client.ChatCompletion(context.Background(), messages, nil)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(10), calls.Load())
}

func TestRateLimitHonorsContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(okResponse))
	}))
	defer server.Close()

	config := testConfig(server.URL)
	config.RatePerMinute = 1
	client, err := NewClient(config)
	require.NoError(t, err)

	messages := []Message{{Role: "user", Content: "Hello"}}
	_, err = client.ChatCompletion(context.Background(), messages, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = client.ChatCompletion(ctx, messages, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit wait")
}

func TestInvalidJSONResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte("invalid json"))
	}))
	defer server.Close()

	client, err := NewClient(testConfig(server.URL))
	require.NoError(t, err)

	_, err = client.ChatCompletion(context.Background(), []Message{{Role: "user", Content: "Hello"}}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse response")
}

// TestOpenRouterIntegration talks to the real API when LLM_API_KEY is set.
func TestOpenRouterIntegration(t *testing.T) {
	_ = godotenv.Load("./.env")
	apiKey := os.Getenv("LLM_API_KEY")
	if apiKey == "" {
		t.Skip("Set LLM_API_KEY environment variable to run this test")
	}

	config := &Config{
		APIKey:      apiKey,
		APIURL:      "https://openrouter.ai/api/v1",
		Model:       "google/gemini-2.5-flash",
		MaxTokens:   100,
		Temperature: 0.2,
		Timeout:     30,
	}
	client, err := NewClient(config)
	require.NoError(t, err)

	opts := NewChatCompletionOptions().WithSystemPrompt("Reply briefly.")
	resp, err := client.ChatCompletion(context.Background(), []Message{{Role: "user", Content: "What is 2+2? Answer with the number only."}}, opts)
	require.NoError(t, err)
	content, err := resp.Content()
	require.NoError(t, err)
	assert.Contains(t, content, "4")
}
