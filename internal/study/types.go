package study

import (
	"fmt"
	"strings"

	"github.com/MimeLyc/linklingua/internal/transcript"
	"golang.org/x/text/language"
)

// Mode is the interaction style of the session.
type Mode string

const (
	ModeVideo     Mode = "video"
	ModeDictation Mode = "dictation"
	ModeTyping    Mode = "typing"
	ModeShadowing Mode = "shadowing"
)

// Modes lists the modes in menu order.
var Modes = []Mode{ModeVideo, ModeDictation, ModeTyping, ModeShadowing}

func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Modes {
		if m == known {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown study mode %q", s)
}

// LanguagePair selects which column is studied and which one explains it.
type LanguagePair string

const (
	PairJPZH LanguagePair = "jp-zh"
	PairJPEN LanguagePair = "jp-en"
	PairZHEN LanguagePair = "zh-en"
	PairENZH LanguagePair = "en-zh"
	PairAll  LanguagePair = "all"
)

var Pairs = []LanguagePair{PairJPZH, PairJPEN, PairZHEN, PairENZH, PairAll}

func ParsePair(s string) (LanguagePair, error) {
	p := LanguagePair(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Pairs {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown language pair %q", s)
}

// PairKeys resolves a pair to transcript columns and the speech language.
type PairKeys struct {
	Source transcript.Lang
	Target transcript.Lang
	Speech language.Tag
}

var (
	speechJapanese = language.MustParse("ja-JP")
	speechChinese  = language.MustParse("zh-CN")
	speechEnglish  = language.MustParse("en-US")
)

// Keys returns the columns for p. en-zh and all both study English.
func (p LanguagePair) Keys() PairKeys {
	switch p {
	case PairJPZH:
		return PairKeys{Source: transcript.LangJP, Target: transcript.LangZH, Speech: speechJapanese}
	case PairJPEN:
		return PairKeys{Source: transcript.LangJP, Target: transcript.LangEN, Speech: speechJapanese}
	case PairZHEN:
		return PairKeys{Source: transcript.LangZH, Target: transcript.LangEN, Speech: speechChinese}
	default:
		return PairKeys{Source: transcript.LangEN, Target: transcript.LangZH, Speech: speechEnglish}
	}
}

// Verdict is the outcome of scoring an attempt.
type Verdict int

const (
	VerdictUnknown Verdict = iota
	VerdictCorrect
	VerdictWrong
)

func (v Verdict) String() string {
	switch v {
	case VerdictCorrect:
		return "correct"
	case VerdictWrong:
		return "wrong"
	default:
		return "unknown"
	}
}

func verdictOf(ok bool) Verdict {
	if ok {
		return VerdictCorrect
	}
	return VerdictWrong
}

// Attempt is the transient interaction state for the current sentence and
// mode. It is discarded, never restored, when either changes.
type Attempt struct {
	Input      string
	Evaluated  bool
	Verdict    Verdict
	Recognized string
	Recording  bool
}
