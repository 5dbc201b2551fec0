package transcript

import (
	"slices"
	"time"

	"github.com/MimeLyc/linklingua/internal/errs"
)

// Store is a validated, read-only view over a Set.
type Store struct {
	set Set
}

// NewStore validates set and wraps it. It fails with ErrInvalidTranscript when
// the list is empty, a sentence has Start >= End, an id repeats, or the list is
// not ordered by Start.
func NewStore(set Set) (*Store, error) {
	if err := Validate(set.Sentences); err != nil {
		return nil, err
	}
	set.Sentences = slices.Clone(set.Sentences)
	return &Store{set: set}, nil
}

// Validate checks the ingest invariants of a sentence list.
func Validate(sentences []Sentence) error {
	if len(sentences) == 0 {
		return errs.New(errs.ErrInvalidTranscript, "transcript has no sentences")
	}

	seen := make(map[string]int, len(sentences))
	for i, s := range sentences {
		if s.Start >= s.End {
			return errs.Newf(errs.ErrInvalidTranscript, "sentence %q starts at %v but ends at %v", s.ID, s.Start, s.End).
				WithContext("index", i)
		}
		if prev, ok := seen[s.ID]; ok {
			return errs.Newf(errs.ErrInvalidTranscript, "sentence id %q is not unique", s.ID).
				WithContext("first", prev).
				WithContext("index", i)
		}
		seen[s.ID] = i
		if i > 0 && s.Start < sentences[i-1].Start {
			return errs.Newf(errs.ErrInvalidTranscript, "sentence %q starts before its predecessor", s.ID).
				WithContext("index", i)
		}
	}
	return nil
}

// Len returns the number of sentences.
func (s *Store) Len() int {
	return len(s.set.Sentences)
}

// Set returns the transcript metadata and a copy of its sentences.
func (s *Store) Set() Set {
	ret := s.set
	ret.Sentences = slices.Clone(s.set.Sentences)
	return ret
}

// At returns the sentence at index, or ErrOutOfRange.
func (s *Store) At(index int) (Sentence, error) {
	if index < 0 || index >= len(s.set.Sentences) {
		return Sentence{}, errs.Newf(errs.ErrOutOfRange, "index %d outside [0,%d)", index, len(s.set.Sentences))
	}
	return s.set.Sentences[index], nil
}

// LookupByTime returns the index of the first sentence with Start <= t <= End.
// Both bounds are inclusive. At a shared boundary (End[i] == Start[i+1] == t)
// both sentences match; the one starting at t wins so playback moves forward
// on the boundary instant. ok is false when t falls in a gap or outside the
// transcript; callers keep their previous index in that case.
func (s *Store) LookupByTime(t time.Duration) (index int, ok bool) {
	sentences := s.set.Sentences
	for i, sentence := range sentences {
		if !sentence.Contains(t) {
			continue
		}
		for i+1 < len(sentences) && sentences[i].End == t && sentences[i+1].Start == t {
			i++
		}
		return i, true
	}
	return 0, false
}
