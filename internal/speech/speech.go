// Package speech holds the text-to-speech and speech-to-text capabilities the
// study session consumes.
package speech

import (
	"context"

	"github.com/MimeLyc/linklingua/internal/errs"
	"golang.org/x/text/language"
)

// Speaker plays text aloud. Speak is fire-and-forget and cancels any utterance
// still playing from an earlier call, so at most one is audible.
type Speaker interface {
	Speak(text string, lang language.Tag) error
	Cancel()
}

// Recognizer captures a single utterance and returns its best transcript.
// Implementations return an ErrSpeechUnavailable error when the environment
// cannot record.
type Recognizer interface {
	Recognize(ctx context.Context, lang language.Tag) (string, error)
}

// Unavailable builds the error reported by a missing capability.
func Unavailable(reason string) error {
	return errs.New(errs.ErrSpeechUnavailable, reason)
}

// IsUnavailable reports whether err means the capability is absent.
func IsUnavailable(err error) bool {
	return errs.Is(err, errs.ErrSpeechUnavailable)
}

// Silent is a Speaker that plays nothing.
type Silent struct{}

func (Silent) Speak(string, language.Tag) error { return nil }
func (Silent) Cancel()                          {}

// NoRecognizer is a Recognizer for environments without a microphone.
type NoRecognizer struct{}

func (NoRecognizer) Recognize(context.Context, language.Tag) (string, error) {
	return "", Unavailable("speech recognition is not configured")
}
