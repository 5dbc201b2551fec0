// Package study drives a learning session over one transcript: navigation,
// the four study modes, the playback clock and speech.
package study

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/MimeLyc/linklingua/internal/match"
	"github.com/MimeLyc/linklingua/internal/playback"
	"github.com/MimeLyc/linklingua/internal/speech"
	"github.com/MimeLyc/linklingua/internal/transcript"
	"github.com/MimeLyc/linklingua/pkg/log"
)

// ErrClosed is returned by operations on a discarded session.
var ErrClosed = errors.New("study session is closed")

// Session owns the SessionState. Every event (user command, clock tick,
// recognition result) runs to completion under mu.
type Session struct {
	mu sync.Mutex

	store    *transcript.Store
	cursor   *Cursor
	pair     LanguagePair
	fallback bool

	speaker       speech.Speaker
	recognizer    speech.Recognizer
	canRecognize  bool
	autoSpeak     bool
	recCancel     context.CancelFunc
	recGeneration uint64

	player     playback.Player
	interval   time.Duration
	sub        *playback.Subscription
	subID      uint64
	clockState playback.State
	navAt      time.Time

	now    func() time.Time
	logger *log.Logger
	closed bool
}

type Option func(*Session)

func WithSpeaker(s speech.Speaker) Option {
	return func(sess *Session) { sess.speaker = s }
}

func WithRecognizer(r speech.Recognizer) Option {
	return func(sess *Session) { sess.recognizer = r }
}

// WithPlayer attaches the external player followed in video mode.
func WithPlayer(p playback.Player) Option {
	return func(sess *Session) { sess.player = p }
}

func WithPollInterval(d time.Duration) Option {
	return func(sess *Session) { sess.interval = d }
}

// WithAutoSpeak speaks the source sentence whenever the sentence, mode or
// source language changes outside video mode.
func WithAutoSpeak(enabled bool) Option {
	return func(sess *Session) { sess.autoSpeak = enabled }
}

func WithPair(p LanguagePair) Option {
	return func(sess *Session) { sess.pair = p }
}

func WithClock(now func() time.Time) Option {
	return func(sess *Session) { sess.now = now }
}

func WithLogger(l *log.Logger) Option {
	return func(sess *Session) { sess.logger = l }
}

// NewSession validates set and starts in video mode on the first sentence.
func NewSession(set transcript.Set, opts ...Option) (*Session, error) {
	store, err := transcript.NewStore(set)
	if err != nil {
		return nil, err
	}

	s := &Session{
		store:        store,
		cursor:       NewCursor(store),
		fallback:     set.Fallback,
		pair:         PairJPZH,
		speaker:      speech.Silent{},
		recognizer:   speech.NoRecognizer{},
		canRecognize: true,
		interval:     playback.DefaultInterval,
		now:          time.Now,
		logger:       log.GetLogger().Named("study"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if _, none := s.recognizer.(speech.NoRecognizer); none {
		s.canRecognize = false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.enterModeLocked()
	return s, nil
}

// SelectIndex jumps to sentence i (sidebar click).
func (s *Session) SelectIndex(i int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if err := s.cursor.SelectIndex(i); err != nil {
		return err
	}
	s.userNavigatedLocked()
	return nil
}

// Advance moves to the next sentence; false at the last one.
func (s *Session) Advance() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || !s.cursor.Advance() {
		return false
	}
	s.userNavigatedLocked()
	return true
}

// Retreat moves to the previous sentence; false at the first one.
func (s *Session) Retreat() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || !s.cursor.Retreat() {
		return false
	}
	s.userNavigatedLocked()
	return true
}

// SetMode switches the study mode. Leaving video mode stops the clock.
func (s *Session) SetMode(m Mode) error {
	if _, err := ParseMode(string(m)); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	s.cancelRecognitionLocked()
	if s.cursor.Mode() == ModeVideo && m != ModeVideo {
		s.stopClockLocked()
	}
	wasVideo := s.cursor.Mode() == ModeVideo
	s.cursor.SetMode(m)
	if m == ModeVideo && !wasVideo {
		s.enterModeLocked()
		return nil
	}
	s.sentenceChangedLocked()
	return nil
}

// SetPair changes the language pair. The attempt is reset only when the
// studied (source) language changes.
func (s *Session) SetPair(p LanguagePair) error {
	if _, err := ParsePair(string(p)); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	prev := s.pair.Keys().Source
	s.pair = p
	if p.Keys().Source != prev {
		s.cancelRecognitionLocked()
		s.cursor.resetAttempt()
		s.sentenceChangedLocked()
	}
	return nil
}

// OnTimeTick feeds a playback position sampled now. Ticks are ignored outside
// video mode and after Close.
func (s *Session) OnTimeTick(t time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applyTickLocked(playback.Tick{Position: t, SampledAt: s.now()})
}

// clockSink binds a subscription to the session. Ticks from a replaced or
// cancelled subscription carry a stale id and are dropped.
type clockSink struct {
	session *Session
	id      uint64
}

func (c clockSink) OnReady() {
	s := c.session
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || c.id != s.subID {
		return
	}
	s.clockState = playback.StateSynced
	s.logger.Debug("player ready")
}

func (c clockSink) OnTick(t playback.Tick) {
	s := c.session
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.id != s.subID {
		return
	}
	s.applyTickLocked(t)
}

func (s *Session) applyTickLocked(t playback.Tick) {
	if s.closed || s.cursor.Mode() != ModeVideo {
		return
	}
	// a tick sampled before the last user navigation belongs to the old
	// sentence window
	if !t.SampledAt.After(s.navAt) {
		return
	}
	if s.cursor.OnTimeTick(t.Position) {
		s.cancelRecognitionLocked()
		s.logger.Debug("clock moved to sentence %d at %v", s.cursor.Index(), t.Position)
	}
}

// SetInput records typed text for dictation or typing.
func (s *Session) SetInput(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	switch s.cursor.Mode() {
	case ModeDictation, ModeTyping:
		s.cursor.setInput(text)
		return nil
	default:
		return fmt.Errorf("text input is not used in %s mode", s.cursor.Mode())
	}
}

// Check scores the typed input with the exact policy.
func (s *Session) Check() (Verdict, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return VerdictUnknown, ErrClosed
	}
	switch s.cursor.Mode() {
	case ModeDictation, ModeTyping:
	default:
		return VerdictUnknown, fmt.Errorf("check is not available in %s mode", s.cursor.Mode())
	}

	ref := s.sourceTextLocked()
	return s.cursor.score(match.Exact(ref, s.cursor.Attempt().Input)), nil
}

// Record captures one utterance and scores it with the fuzzy policy. It blocks
// until the recognizer answers. A result that arrives after the sentence,
// mode or language changed is discarded. When recognition is unavailable the
// feature is switched off and Record returns VerdictUnknown without error.
func (s *Session) Record(ctx context.Context) (Verdict, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return VerdictUnknown, ErrClosed
	}
	if s.cursor.Mode() != ModeShadowing {
		mode := s.cursor.Mode()
		s.mu.Unlock()
		return VerdictUnknown, fmt.Errorf("recording is not available in %s mode", mode)
	}
	if !s.canRecognize {
		s.mu.Unlock()
		return VerdictUnknown, nil
	}

	s.cancelRecognitionLocked()
	recCtx, cancel := context.WithCancel(ctx)
	s.recCancel = cancel
	s.recGeneration++
	token := s.recGeneration
	gen := s.cursor.Generation()
	lang := s.pair.Keys().Speech
	s.cursor.attempt.Recording = true
	recognizer := s.recognizer
	s.mu.Unlock()

	text, err := recognizer.Recognize(recCtx, lang)
	cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	current := token == s.recGeneration
	if current {
		s.recCancel = nil
	}
	if s.closed || !current || gen != s.cursor.Generation() {
		return VerdictUnknown, nil
	}
	s.cursor.attempt.Recording = false

	if err != nil {
		if speech.IsUnavailable(err) {
			s.canRecognize = false
			s.logger.Info("speech recognition unavailable, shadowing capture disabled")
			return VerdictUnknown, nil
		}
		if recCtx.Err() != nil {
			return VerdictUnknown, nil
		}
		return VerdictUnknown, fmt.Errorf("recognize speech: %w", err)
	}

	s.cursor.attempt.Recognized = text
	return s.cursor.score(match.Fuzzy(s.sourceTextLocked(), text)), nil
}

// StopRecording cancels an in-flight capture.
func (s *Session) StopRecording() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelRecognitionLocked()
}

// Replay speaks the current source sentence again.
func (s *Session) Replay() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return s.speaker.Speak(s.sourceTextLocked(), s.pair.Keys().Speech)
}

// Close discards the session: the clock subscription is cancelled, speech is
// stopped, and later ticks are no-ops.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.stopClockLocked()
	s.cancelRecognitionLocked()
	s.speaker.Cancel()
}

// View is the snapshot the front end renders.
type View struct {
	Index    int
	Total    int
	Sentence transcript.Sentence
	Mode     Mode
	Pair     LanguagePair
	Attempt  Attempt
	Clock    playback.State

	// Source is the studied text, Target its translation.
	Source string
	Target string
	// Card is the flash-card text: the source in typing mode, the meaning
	// otherwise.
	Card string
	// Progress is per-rune typing feedback, set in typing mode.
	Progress []match.CharState

	CanRetreat           bool
	CanAdvance           bool
	RecognitionAvailable bool
	Fallback             bool
	Closed               bool
}

func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := s.pair.Keys()
	sentence := s.cursor.Sentence()
	v := View{
		Index:                s.cursor.Index(),
		Total:                s.cursor.Len(),
		Sentence:             sentence,
		Mode:                 s.cursor.Mode(),
		Pair:                 s.pair,
		Attempt:              s.cursor.Attempt(),
		Clock:                s.clockState,
		Source:               sentence.Text.In(keys.Source),
		Target:               sentence.Text.In(keys.Target),
		CanRetreat:           s.cursor.Index() > 0,
		CanAdvance:           s.cursor.Index() < s.cursor.Len()-1,
		RecognitionAvailable: s.canRecognize,
		Fallback:             s.fallback,
		Closed:               s.closed,
	}
	v.Card = v.Target
	if v.Mode == ModeTyping {
		v.Card = v.Source
		v.Progress = match.Progress(v.Source, v.Attempt.Input)
	}
	return v
}

// Transcript returns the transcript the session was built from.
func (s *Session) Transcript() transcript.Set {
	return s.store.Set()
}

func (s *Session) sourceTextLocked() string {
	return s.cursor.Sentence().Text.In(s.pair.Keys().Source)
}

// enterModeLocked sets up the current mode: a clock subscription for video,
// auto speech for the card modes.
func (s *Session) enterModeLocked() {
	if s.cursor.Mode() != ModeVideo {
		s.clockState = playback.StateNone
		s.sentenceChangedLocked()
		return
	}
	s.startClockLocked()
}

func (s *Session) startClockLocked() {
	s.stopClockLocked()
	if s.player == nil {
		s.clockState = playback.StateNone
		return
	}
	s.subID++
	s.clockState = playback.StateSyncing
	s.sub = playback.Subscribe(s.player, s.interval, clockSink{session: s, id: s.subID})
}

func (s *Session) stopClockLocked() {
	if s.sub != nil {
		s.sub.Unsubscribe()
		s.sub = nil
	}
	// invalidate ticks already in flight
	s.subID++
	s.clockState = playback.StateNone
}

func (s *Session) cancelRecognitionLocked() {
	if s.recCancel != nil {
		s.recCancel()
		s.recCancel = nil
	}
	s.recGeneration++
	s.cursor.attempt.Recording = false
}

// userNavigatedLocked runs after a user-initiated index change.
func (s *Session) userNavigatedLocked() {
	s.cancelRecognitionLocked()

	if s.cursor.Mode() == ModeVideo {
		if seeker, ok := s.player.(playback.Seeker); ok && s.clockState == playback.StateSynced {
			if err := seeker.Seek(s.cursor.Sentence().Start); err != nil {
				s.logger.Warn("seek to sentence %d failed: %v", s.cursor.Index(), err)
			}
		}
	}
	// taken after the seek so any later-sampled tick reflects it
	s.navAt = s.now()
	s.sentenceChangedLocked()
}

func (s *Session) sentenceChangedLocked() {
	if !s.autoSpeak || s.cursor.Mode() == ModeVideo {
		return
	}
	if err := s.speaker.Speak(s.sourceTextLocked(), s.pair.Keys().Speech); err != nil {
		s.logger.Warn("speak sentence %d: %v", s.cursor.Index(), err)
	}
}
