package transcript

import (
	"encoding/json"
	"math"
	"time"

	"github.com/MimeLyc/linklingua/internal/source"
)

// Lang is one of the three transcript columns.
type Lang string

const (
	LangEN Lang = "en"
	LangZH Lang = "zh"
	LangJP Lang = "jp"
)

// Langs lists the columns in display order.
var Langs = []Lang{LangEN, LangZH, LangJP}

// Text holds one sentence in every column.
type Text struct {
	EN string `json:"en"`
	ZH string `json:"zh"`
	JP string `json:"jp"`
}

// In returns the column for lang, or "" for an unknown column.
func (t Text) In(lang Lang) string {
	switch lang {
	case LangEN:
		return t.EN
	case LangZH:
		return t.ZH
	case LangJP:
		return t.JP
	default:
		return ""
	}
}

// Sentence is one timed, trilingual transcript unit.
type Sentence struct {
	ID    string
	Start time.Duration
	End   time.Duration
	Text  Text
}

// Contains reports whether t falls inside [Start, End], both ends inclusive.
func (s Sentence) Contains(t time.Duration) bool {
	return t >= s.Start && t <= s.End
}

type wireSentence struct {
	SentenceID string  `json:"sentence_id"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Text       Text    `json:"text"`
}

// MarshalJSON writes the sentence with times in float seconds.
func (s Sentence) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireSentence{
		SentenceID: s.ID,
		Start:      s.Start.Seconds(),
		End:        s.End.Seconds(),
		Text:       s.Text,
	})
}

func (s *Sentence) UnmarshalJSON(data []byte) error {
	var w wireSentence
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	s.ID = w.SentenceID
	s.Start = Seconds(w.Start)
	s.End = Seconds(w.End)
	s.Text = w.Text
	return nil
}

// Seconds converts float seconds to a Duration rounded to the millisecond.
func Seconds(sec float64) time.Duration {
	return time.Duration(math.Round(sec*1000)) * time.Millisecond
}

// Set is the full transcript of one video plus source metadata. A Set is
// created once per fetch and never modified afterwards.
type Set struct {
	VideoID   string      `json:"video_id"`
	SourceURL string      `json:"source_url"`
	Kind      source.Kind `json:"type"`
	Sentences []Sentence  `json:"sentences"`
	// Fallback marks the fixed placeholder set served when extraction failed.
	Fallback bool `json:"fallback,omitempty"`
}
