// Package extract turns a video link into a trilingual transcript by asking an
// AI service, optionally grounded by web search, and caches the result.
package extract

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/MimeLyc/linklingua/internal/errs"
	"github.com/MimeLyc/linklingua/internal/llm"
	"github.com/MimeLyc/linklingua/internal/persistence"
	"github.com/MimeLyc/linklingua/internal/search"
	"github.com/MimeLyc/linklingua/internal/source"
	"github.com/MimeLyc/linklingua/internal/transcript"
	"github.com/MimeLyc/linklingua/pkg/log"
)

// Completer is the chat completion call the extractor needs.
type Completer interface {
	ChatCompletion(ctx context.Context, messages []llm.Message, opts *llm.ChatCompletionOptions) (*llm.ChatResponse, error)
}

// Searcher supplies grounding snippets.
type Searcher interface {
	Enabled() bool
	Search(ctx context.Context, query string) (*search.Response, error)
}

// Cache stores transcripts by link.
type Cache interface {
	GetTranscript(ctx context.Context, cacheKey string, now time.Time) (transcript.Set, bool, error)
	PutTranscript(ctx context.Context, entry persistence.TranscriptCacheEntry) error
}

// Result is one extraction outcome.
//
// Set: the transcript, possibly the fixed fallback
// Cached: served from the cache without calling the AI service
// Cause: why the fallback was served; nil otherwise
// Findings: column language audit of a freshly extracted set
type Result struct {
	Set      transcript.Set
	Source   source.Source
	Cached   bool
	Cause    error
	Findings []transcript.Finding
}

type Extractor struct {
	completer Completer
	searcher  Searcher
	cache     Cache
	ttl       time.Duration
	model     string
	now       func() time.Time
	logger    *log.Logger
	group     singleflight.Group
}

type Option func(*Extractor)

func WithSearcher(s Searcher) Option {
	return func(e *Extractor) { e.searcher = s }
}

// WithCache enables the transcript cache with entries valid for ttl.
func WithCache(c Cache, ttl time.Duration) Option {
	return func(e *Extractor) {
		e.cache = c
		e.ttl = ttl
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Extractor) { e.now = now }
}

func WithLogger(l *log.Logger) Option {
	return func(e *Extractor) { e.logger = l }
}

// New builds an extractor. A nil completer makes every uncached link fall back.
func New(completer Completer, opts ...Option) *Extractor {
	e := &Extractor{
		completer: completer,
		ttl:       persistence.DefaultTTL,
		now:       time.Now,
		logger:    log.GetLogger().Named("extract"),
	}
	for _, opt := range opts {
		opt(e)
	}
	// cached entries record the model that produced them
	if m, ok := completer.(interface{ Model() string }); ok {
		e.model = m.Model()
	}
	return e
}

// Extract classifies rawURL and returns its transcript. Fetch failures and
// empty answers are recovered with the fallback set; a non-empty answer that
// does not form a valid transcript is an ErrInvalidTranscript error.
// Concurrent calls for the same link share one request.
func (e *Extractor) Extract(ctx context.Context, rawURL string) (Result, error) {
	key := persistence.CacheKey(rawURL)
	if key == "" {
		return Result{}, errs.New(errs.ErrInvalidTranscript, "link is empty")
	}

	v, err, shared := e.group.Do(key, func() (any, error) {
		return e.extract(ctx, rawURL, key)
	})
	if shared {
		e.logger.Debug("shared extraction for %s", key)
	}
	if err != nil {
		return Result{}, err
	}
	return v.(Result), nil
}

func (e *Extractor) extract(ctx context.Context, rawURL, key string) (Result, error) {
	src := source.Parse(rawURL)

	if set, ok := e.lookup(ctx, key); ok {
		e.logger.Info("transcript for %s served from cache (%d sentences)", key, len(set.Sentences))
		return Result{Set: set, Source: src, Cached: true}, nil
	}

	if e.completer == nil {
		return e.fallback(src, errs.New(errs.ErrFetchFailed, "no AI service is configured")), nil
	}

	grounding := e.ground(ctx, src, rawURL)

	opts := llm.NewChatCompletionOptions().
		WithSystemPrompt(systemPrompt).
		WithJSONSchema("transcript", responseSchema)
	messages := []llm.Message{{Role: "user", Content: buildPrompt(rawURL, grounding)}}

	start := e.now()
	resp, err := e.completer.ChatCompletion(ctx, messages, opts)
	if err != nil {
		return e.fallback(src, errs.Wrap(err, errs.ErrFetchFailed, "AI request failed").WithContext("url", key)), nil
	}
	content, err := resp.Content()
	if err != nil {
		return e.fallback(src, errs.Wrap(err, errs.ErrFetchFailed, "AI response has no content").WithContext("url", key)), nil
	}
	e.logger.Debug("AI answered for %s in %v (%d tokens)", key, e.now().Sub(start), resp.Usage.TotalTokens)

	sentences, err := decodeSentences(content)
	if err != nil {
		return Result{}, errs.Wrap(err, errs.ErrInvalidTranscript, "AI response is not a transcript").WithContext("url", key)
	}
	if len(sentences) == 0 {
		return e.fallback(src, errs.New(errs.ErrFetchFailed, "AI returned no sentences").WithContext("url", key)), nil
	}

	set := transcript.Set{
		VideoID:   src.ID,
		SourceURL: src.Embed,
		Kind:      src.Kind,
		Sentences: sentences,
	}
	if err := transcript.Validate(set.Sentences); err != nil {
		return Result{}, err
	}

	findings := transcript.Audit(set)
	for _, f := range findings {
		e.logger.Warn("transcript %s: %s column %s (detected %q)", key, f.Lang, f.Reason, f.Detected)
	}

	e.store(ctx, key, set)
	e.logger.Info("extracted %d sentences for %s", len(set.Sentences), key)
	return Result{Set: set, Source: src, Findings: findings}, nil
}

func (e *Extractor) lookup(ctx context.Context, key string) (transcript.Set, bool) {
	if e.cache == nil {
		return transcript.Set{}, false
	}
	set, ok, err := e.cache.GetTranscript(ctx, key, e.now())
	if err != nil {
		e.logger.Warn("transcript cache lookup for %s failed: %v", key, err)
		return transcript.Set{}, false
	}
	if !ok {
		return transcript.Set{}, false
	}
	// an entry written by an older build may no longer validate
	if err := transcript.Validate(set.Sentences); err != nil {
		e.logger.Warn("ignoring cached transcript for %s: %v", key, err)
		return transcript.Set{}, false
	}
	return set, true
}

func (e *Extractor) store(ctx context.Context, key string, set transcript.Set) {
	if e.cache == nil {
		return
	}
	now := e.now()
	err := e.cache.PutTranscript(ctx, persistence.TranscriptCacheEntry{
		CacheKey:  key,
		Model:     e.model,
		Set:       set,
		UpdatedAt: now,
		ExpiresAt: now.Add(e.ttl),
	})
	if err != nil {
		e.logger.Warn("caching transcript for %s failed: %v", key, err)
	}
}

// ground fetches search snippets. Search problems only cost grounding.
func (e *Extractor) ground(ctx context.Context, src source.Source, rawURL string) string {
	if e.searcher == nil || !e.searcher.Enabled() {
		return ""
	}
	query := search.Query(src, rawURL)
	resp, err := e.searcher.Search(ctx, query)
	if err != nil {
		e.logger.Warn("search grounding for %q failed: %v", query, err)
		return ""
	}
	return search.Format(resp)
}

func (e *Extractor) fallback(src source.Source, cause error) Result {
	e.logger.Warn("serving fallback transcript: %v", cause)
	return Result{Set: FallbackSet(src), Source: src, Cause: cause}
}

// FallbackSet is the fixed one-sentence transcript served when extraction
// fails, so the study screen still opens.
func FallbackSet(src source.Source) transcript.Set {
	return transcript.Set{
		VideoID:   src.ID,
		SourceURL: src.Embed,
		Kind:      src.Kind,
		Sentences: []transcript.Sentence{{
			ID:    "1",
			Start: 0,
			End:   3 * time.Second,
			Text: transcript.Text{
				EN: "This is a test",
				ZH: "这是一个测试",
				JP: "これはテストです",
			},
		}},
		Fallback: true,
	}
}

// Describe is a one-line summary of a result for logs and the CLI.
func Describe(r Result) string {
	var parts []string
	parts = append(parts, fmt.Sprintf("%s %s", r.Set.Kind, r.Set.VideoID))
	parts = append(parts, fmt.Sprintf("%d sentences", len(r.Set.Sentences)))
	if r.Cached {
		parts = append(parts, "cached")
	}
	if r.Set.Fallback {
		parts = append(parts, "fallback")
	}
	return strings.Join(parts, ", ")
}
