package llm

import (
	"encoding/json"
	"fmt"
)

// Message represents a chat message
//
// Role: "system", "user", or "assistant"
// Content: Text content of the message
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest represents a chat completion request
// Compatible with OpenAI API format
type ChatRequest struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	Temperature    float64         `json:"temperature,omitempty"`
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`
}

// ResponseFormat asks the model for structured output.
//
// Type: "json_object" or "json_schema"
type ResponseFormat struct {
	Type       string      `json:"type"`
	JSONSchema *JSONSchema `json:"json_schema,omitempty"`
}

// JSONSchema names a schema the response must conform to.
type JSONSchema struct {
	Name   string          `json:"name"`
	Strict bool            `json:"strict"`
	Schema json.RawMessage `json:"schema"`
}

// ChatResponse represents a chat completion response
// Compatible with OpenAI API format
type ChatResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`
	Error   *Error   `json:"error,omitempty"`
}

// Content returns the first choice's message text.
func (r *ChatResponse) Content() (string, error) {
	if r == nil || len(r.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	return r.Choices[0].Message.Content, nil
}

// Choice represents a completion choice
//
// FinishReason values: "stop", "length", "content_filter"
type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

// Usage represents token usage statistics
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Error represents an API error
type Error struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Param   string `json:"param,omitempty"`
	Code    any    `json:"code,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("LLM API Error: %s (type: %s, code: %v)", e.Message, e.Type, e.Code)
}

// ChatCompletionOptions represents options for chat completion
//
// SystemPrompt: System prompt to set context
// MaxTokens: Maximum tokens for the response, 0 for the client default
// Temperature: Temperature for the response, negative for the client default
// ResponseFormat: Optional structured output request
type ChatCompletionOptions struct {
	SystemPrompt   string
	MaxTokens      int
	Temperature    float64
	ResponseFormat *ResponseFormat
}

// NewChatCompletionOptions creates a new chat completion options with defaults
func NewChatCompletionOptions() *ChatCompletionOptions {
	return &ChatCompletionOptions{
		Temperature: -1,
	}
}

// WithSystemPrompt sets the system prompt
func (o *ChatCompletionOptions) WithSystemPrompt(prompt string) *ChatCompletionOptions {
	o.SystemPrompt = prompt
	return o
}

// WithMaxTokens sets the max tokens
func (o *ChatCompletionOptions) WithMaxTokens(maxTokens int) *ChatCompletionOptions {
	o.MaxTokens = maxTokens
	return o
}

// WithTemperature sets the temperature
func (o *ChatCompletionOptions) WithTemperature(temperature float64) *ChatCompletionOptions {
	o.Temperature = temperature
	return o
}

// WithJSONSchema requests output matching schema.
func (o *ChatCompletionOptions) WithJSONSchema(name string, schema json.RawMessage) *ChatCompletionOptions {
	o.ResponseFormat = &ResponseFormat{
		Type:       "json_schema",
		JSONSchema: &JSONSchema{Name: name, Strict: true, Schema: schema},
	}
	return o
}
