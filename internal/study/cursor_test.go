package study

import (
	"testing"
	"time"

	"github.com/MimeLyc/linklingua/internal/errs"
	"github.com/MimeLyc/linklingua/internal/transcript"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSet() transcript.Set {
	return transcript.Set{
		VideoID: "dQw4w9WgXcQ",
		Sentences: []transcript.Sentence{
			{ID: "1", Start: 0, End: 5 * time.Second, Text: transcript.Text{EN: "Hello, world!", ZH: "你好，世界！", JP: "こんにちは、世界！"}},
			{ID: "2", Start: 5 * time.Second, End: 10 * time.Second, Text: transcript.Text{EN: "I am here", ZH: "我在这里", JP: "ここにいます"}},
			{ID: "3", Start: 12 * time.Second, End: 15 * time.Second, Text: transcript.Text{EN: "Goodbye", ZH: "再见", JP: "さようなら"}},
		},
	}
}

func newTestCursor(t *testing.T) *Cursor {
	t.Helper()
	store, err := transcript.NewStore(testSet())
	require.NoError(t, err)
	return NewCursor(store)
}

func TestCursor_InitialState(t *testing.T) {
	c := newTestCursor(t)
	assert.Equal(t, 0, c.Index())
	assert.Equal(t, ModeVideo, c.Mode())
	assert.Equal(t, Attempt{}, c.Attempt())
	assert.Equal(t, "1", c.Sentence().ID)
}

func TestCursor_BoundariesAreNoOps(t *testing.T) {
	c := newTestCursor(t)

	c.setInput("draft")
	assert.False(t, c.Retreat())
	assert.Equal(t, 0, c.Index())
	assert.Equal(t, "draft", c.Attempt().Input, "no-op keeps the attempt")

	assert.True(t, c.Advance())
	assert.True(t, c.Advance())
	assert.Equal(t, 2, c.Index())
	assert.False(t, c.Advance())
	assert.False(t, c.Advance())
	assert.Equal(t, 2, c.Index())

	assert.True(t, c.Retreat())
	assert.Equal(t, 1, c.Index())
}

func TestCursor_TransitionsClearAttempt(t *testing.T) {
	c := newTestCursor(t)

	c.setInput("a")
	gen := c.Generation()
	require.NoError(t, c.SelectIndex(2))
	assert.Empty(t, c.Attempt().Input)
	assert.NotEqual(t, gen, c.Generation())

	c.setInput("b")
	c.SetMode(ModeDictation)
	assert.Equal(t, 2, c.Index())
	assert.Empty(t, c.Attempt().Input)

	c.setInput("c")
	require.NoError(t, c.SelectIndex(2))
	assert.Empty(t, c.Attempt().Input, "reselecting the same sentence starts over")
}

func TestCursor_SelectIndexOutOfRange(t *testing.T) {
	c := newTestCursor(t)
	c.setInput("keep")

	err := c.SelectIndex(3)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ErrOutOfRange))
	assert.Equal(t, 0, c.Index())
	assert.Equal(t, "keep", c.Attempt().Input)
}

func TestCursor_OnTimeTick(t *testing.T) {
	c := newTestCursor(t)

	assert.False(t, c.OnTimeTick(4900*time.Millisecond))
	assert.Equal(t, 0, c.Index())

	assert.True(t, c.OnTimeTick(5*time.Second))
	assert.Equal(t, 1, c.Index())

	assert.False(t, c.OnTimeTick(11*time.Second), "gap keeps the previous index")
	assert.Equal(t, 1, c.Index())

	assert.False(t, c.OnTimeTick(30*time.Second), "past the end keeps the previous index")
	assert.Equal(t, 1, c.Index())

	c.SetMode(ModeTyping)
	assert.False(t, c.OnTimeTick(13*time.Second), "ticks only drive video mode")
	assert.Equal(t, 1, c.Index())
}

func TestParseModeAndPair(t *testing.T) {
	m, err := ParseMode(" Shadowing ")
	require.NoError(t, err)
	assert.Equal(t, ModeShadowing, m)
	_, err = ParseMode("karaoke")
	assert.Error(t, err)

	p, err := ParsePair("JP-EN")
	require.NoError(t, err)
	assert.Equal(t, PairJPEN, p)
	_, err = ParsePair("fr-de")
	assert.Error(t, err)
}

func TestLanguagePair_Keys(t *testing.T) {
	tests := []struct {
		pair   LanguagePair
		source transcript.Lang
		target transcript.Lang
		speech string
	}{
		{PairJPZH, transcript.LangJP, transcript.LangZH, "ja-JP"},
		{PairJPEN, transcript.LangJP, transcript.LangEN, "ja-JP"},
		{PairZHEN, transcript.LangZH, transcript.LangEN, "zh-CN"},
		{PairENZH, transcript.LangEN, transcript.LangZH, "en-US"},
		{PairAll, transcript.LangEN, transcript.LangZH, "en-US"},
	}
	for _, tt := range tests {
		t.Run(string(tt.pair), func(t *testing.T) {
			keys := tt.pair.Keys()
			assert.Equal(t, tt.source, keys.Source)
			assert.Equal(t, tt.target, keys.Target)
			assert.Equal(t, tt.speech, keys.Speech.String())
		})
	}
}
