// Package search grounds transcript extraction with web search snippets from
// the Tavily API.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/MimeLyc/linklingua/internal/source"
)

// DefaultURL is the Tavily search endpoint.
const DefaultURL = "https://api.tavily.com/search"

const maxSnippet = 500

// Client queries Tavily. A client without an API key is disabled and every
// lookup returns no results.
type Client struct {
	apiKey     string
	apiURL     string
	httpClient *http.Client
}

// Request is the Tavily request body.
type Request struct {
	APIKey            string   `json:"api_key"`
	Query             string   `json:"query"`
	SearchDepth       string   `json:"search_depth,omitempty"`
	IncludeAnswer     bool     `json:"include_answer,omitempty"`
	IncludeRawContent bool     `json:"include_raw_content,omitempty"`
	MaxResults        int      `json:"max_results,omitempty"`
	IncludeDomains    []string `json:"include_domains,omitempty"`
}

// Response is the Tavily response body.
type Response struct {
	Query   string   `json:"query"`
	Answer  string   `json:"answer,omitempty"`
	Results []Result `json:"results"`
}

// Result is a single search hit.
type Result struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

func New(apiKey, apiURL string) *Client {
	if apiURL == "" {
		apiURL = DefaultURL
	}
	return &Client{
		apiKey: apiKey,
		apiURL: apiURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Enabled reports whether lookups reach the API.
func (c *Client) Enabled() bool {
	return c != nil && c.apiKey != ""
}

// Query builds the search query for a video: its title-bearing page plus the
// words most likely to surface lyrics or a transcript.
func Query(src source.Source, rawURL string) string {
	switch src.Kind {
	case source.KindYouTube:
		return fmt.Sprintf("youtube %s video transcript lyrics", src.ID)
	case source.KindBilibili:
		return fmt.Sprintf("bilibili %s 字幕 文字稿", src.ID)
	default:
		return fmt.Sprintf("%s transcript", strings.TrimSpace(rawURL))
	}
}

// Search runs one basic-depth query.
func (c *Client) Search(ctx context.Context, query string) (*Response, error) {
	if !c.Enabled() {
		return &Response{Query: query}, nil
	}

	request := Request{
		APIKey:        c.apiKey,
		Query:         query,
		SearchDepth:   "basic",
		IncludeAnswer: true,
		MaxResults:    5,
	}

	jsonData, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	var out Response
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &out, nil
}

// Format renders results as prompt context. Empty results give "".
func Format(resp *Response) string {
	if resp == nil || (resp.Answer == "" && len(resp.Results) == 0) {
		return ""
	}

	var b strings.Builder
	if resp.Answer != "" {
		fmt.Fprintf(&b, "Summary: %s\n", resp.Answer)
	}
	for i, r := range resp.Results {
		content := r.Content
		if len(content) > maxSnippet {
			content = truncate(content, maxSnippet) + "..."
		}
		fmt.Fprintf(&b, "\n%d. %s\n   URL: %s\n   Content: %s\n", i+1, r.Title, r.URL, content)
	}
	return b.String()
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !isRuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
