package study

import (
	"time"

	"github.com/MimeLyc/linklingua/internal/transcript"
)

// Cursor is the session state machine: one state per (mode, index) pair plus
// the attempt on that state. It is not safe for concurrent use; Session
// serializes access.
type Cursor struct {
	store   *transcript.Store
	index   int
	mode    Mode
	attempt Attempt
	// gen changes whenever the attempt is reset
	gen uint64
}

// NewCursor starts at index 0 in video mode.
func NewCursor(store *transcript.Store) *Cursor {
	return &Cursor{store: store, mode: ModeVideo}
}

func (c *Cursor) Index() int       { return c.index }
func (c *Cursor) Mode() Mode       { return c.mode }
func (c *Cursor) Attempt() Attempt { return c.attempt }
func (c *Cursor) Len() int         { return c.store.Len() }

// Generation identifies the current attempt.
func (c *Cursor) Generation() uint64 { return c.gen }

// Sentence returns the current sentence.
func (c *Cursor) Sentence() transcript.Sentence {
	s, err := c.store.At(c.index)
	if err != nil {
		// index is kept in range by every transition
		panic(err)
	}
	return s
}

func (c *Cursor) resetAttempt() {
	c.attempt = Attempt{}
	c.gen++
}

// SelectIndex jumps to i from any state and clears the attempt.
func (c *Cursor) SelectIndex(i int) error {
	if _, err := c.store.At(i); err != nil {
		return err
	}
	c.index = i
	c.resetAttempt()
	return nil
}

// Advance moves to the next sentence. At the last sentence it is a no-op and
// reports false.
func (c *Cursor) Advance() bool {
	if c.index >= c.store.Len()-1 {
		return false
	}
	c.index++
	c.resetAttempt()
	return true
}

// Retreat moves to the previous sentence. At index 0 it is a no-op.
func (c *Cursor) Retreat() bool {
	if c.index <= 0 {
		return false
	}
	c.index--
	c.resetAttempt()
	return true
}

// SetMode switches mode on the current sentence with a fresh attempt.
func (c *Cursor) SetMode(m Mode) {
	c.mode = m
	c.resetAttempt()
}

// OnTimeTick follows the playback clock in video mode. A tick that lands in a
// gap or on the current sentence changes nothing.
func (c *Cursor) OnTimeTick(t time.Duration) bool {
	if c.mode != ModeVideo {
		return false
	}
	idx, ok := c.store.LookupByTime(t)
	if !ok || idx == c.index {
		return false
	}
	return c.SelectIndex(idx) == nil
}

func (c *Cursor) setInput(text string) {
	c.attempt.Input = text
	c.attempt.Evaluated = false
	c.attempt.Verdict = VerdictUnknown
}

func (c *Cursor) score(ok bool) Verdict {
	c.attempt.Evaluated = true
	c.attempt.Verdict = verdictOf(ok)
	return c.attempt.Verdict
}
