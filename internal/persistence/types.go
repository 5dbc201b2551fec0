package persistence

import (
	"time"

	"github.com/MimeLyc/linklingua/internal/transcript"
)

// TranscriptCacheEntry is one fetched transcript keyed by its normalized link.
type TranscriptCacheEntry struct {
	CacheKey  string
	Model     string
	Set       transcript.Set
	ExpiresAt time.Time
	UpdatedAt time.Time
}

// TranscriptSummary lists a cached transcript without its sentences.
type TranscriptSummary struct {
	CacheKey      string
	VideoID       string
	Kind          string
	Model         string
	SentenceCount int
	ExpiresAt     time.Time
	UpdatedAt     time.Time
}
