package transcript

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/MimeLyc/linklingua/internal/errs"
	"github.com/MimeLyc/linklingua/internal/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sec(f float64) time.Duration { return Seconds(f) }

func twoSentenceSet() Set {
	return Set{
		VideoID: "dQw4w9WgXcQ",
		Kind:    source.KindYouTube,
		Sentences: []Sentence{
			{ID: "1", Start: sec(0), End: sec(5), Text: Text{EN: "Hello", ZH: "你好", JP: "こんにちは"}},
			{ID: "2", Start: sec(5), End: sec(10), Text: Text{EN: "Bye", ZH: "再见", JP: "さようなら"}},
		},
	}
}

func TestNewStore_Valid(t *testing.T) {
	store, err := NewStore(twoSentenceSet())
	require.NoError(t, err)
	assert.Equal(t, 2, store.Len())
	assert.Equal(t, "dQw4w9WgXcQ", store.Set().VideoID)
}

func TestNewStore_Invalid(t *testing.T) {
	tests := []struct {
		name      string
		sentences []Sentence
	}{
		{name: "empty", sentences: nil},
		{name: "start equals end", sentences: []Sentence{{ID: "1", Start: sec(3), End: sec(3)}}},
		{name: "start after end", sentences: []Sentence{{ID: "1", Start: sec(4), End: sec(3)}}},
		{name: "duplicate id", sentences: []Sentence{
			{ID: "1", Start: sec(0), End: sec(1)},
			{ID: "1", Start: sec(1), End: sec(2)},
		}},
		{name: "unordered", sentences: []Sentence{
			{ID: "1", Start: sec(5), End: sec(6)},
			{ID: "2", Start: sec(1), End: sec(2)},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewStore(Set{Sentences: tt.sentences})
			require.Error(t, err)
			assert.True(t, errs.Is(err, errs.ErrInvalidTranscript), "got %v", err)
		})
	}
}

func TestStore_IsImmutable(t *testing.T) {
	set := twoSentenceSet()
	store, err := NewStore(set)
	require.NoError(t, err)

	set.Sentences[0].Text.EN = "changed"
	got, err := store.At(0)
	require.NoError(t, err)
	assert.Equal(t, "Hello", got.Text.EN)

	copied := store.Set()
	copied.Sentences[1].ID = "x"
	got, err = store.At(1)
	require.NoError(t, err)
	assert.Equal(t, "2", got.ID)
}

func TestStore_At(t *testing.T) {
	store, err := NewStore(twoSentenceSet())
	require.NoError(t, err)

	s, err := store.At(1)
	require.NoError(t, err)
	assert.Equal(t, "2", s.ID)

	for _, idx := range []int{-1, 2, 100} {
		_, err := store.At(idx)
		assert.True(t, errs.Is(err, errs.ErrOutOfRange), "index %d", idx)
	}
}

func TestStore_LookupByTime(t *testing.T) {
	set := Set{Sentences: []Sentence{
		{ID: "a", Start: sec(0), End: sec(5)},
		{ID: "b", Start: sec(5), End: sec(10)},
		{ID: "c", Start: sec(12), End: sec(15)},
	}}
	store, err := NewStore(set)
	require.NoError(t, err)

	tests := []struct {
		name   string
		t      time.Duration
		want   int
		wantOK bool
	}{
		{name: "inside first", t: sec(2.5), want: 0, wantOK: true},
		{name: "start inclusive", t: sec(0), want: 0, wantOK: true},
		{name: "just before boundary", t: sec(4.9), want: 0, wantOK: true},
		// shared boundary: the later sentence wins
		{name: "shared boundary moves forward", t: sec(5), want: 1, wantOK: true},
		{name: "end inclusive before gap", t: sec(10), want: 1, wantOK: true},
		{name: "gap", t: sec(11), wantOK: false},
		{name: "last end inclusive", t: sec(15), want: 2, wantOK: true},
		{name: "past the end", t: sec(20), wantOK: false},
		{name: "negative", t: sec(-1), wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := store.LookupByTime(tt.t)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestSentence_JSONUsesSeconds(t *testing.T) {
	raw := `{"sentence_id":"s1","start":1.25,"end":3.5,"text":{"en":"Hi","zh":"嗨","jp":"やあ"}}`

	var s Sentence
	require.NoError(t, json.Unmarshal([]byte(raw), &s))
	assert.Equal(t, "s1", s.ID)
	assert.Equal(t, 1250*time.Millisecond, s.Start)
	assert.Equal(t, 3500*time.Millisecond, s.End)
	assert.Equal(t, "やあ", s.Text.In(LangJP))
	assert.Equal(t, "", s.Text.In(Lang("fr")))

	out, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, raw, string(out))
}
