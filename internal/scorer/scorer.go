// Package scorer maintains a trailing window of per-chunk observations
// and computes a decayed composite score per event type.
package scorer

import (
	"strings"
	"sync"
)

// Observation is the scalar/text reduction of one chunk's signals.
type Observation struct {
	Text     string  // normalized transcript text
	Loudness float64 // per-chunk loudness scalar
}

// Score maps event type to its accumulated score.
type Score map[string]float64

// Options configure a Scorer. Zero values fall back to the stock tuning.
type Options struct {
	WindowSize    int                 // trailing observations considered (default 5)
	KeywordWeight float64             // base weight of the newest chunk (default 1000)
	DecayFactor   float64             // per-step attenuation, 0 < f < 1 (default 0.2)
	Events        map[string][]string // event type → keyword set
}

const (
	defaultWindowSize    = 5
	defaultKeywordWeight = 1000
	defaultDecayFactor   = 0.2
)

// Scorer scores a stream of observations. Feeding is single-writer per
// session; the mutex exists for readers (status endpoints, hot reload of
// the keyword table), not for concurrent feeders.
type Scorer struct {
	windowSize    int
	keywordWeight float64
	decayFactor   float64

	mu      sync.RWMutex
	events  map[string][]string
	window  []Observation
	count   int
	history []Score
}

func New(opts Options) *Scorer {
	if opts.WindowSize <= 0 {
		opts.WindowSize = defaultWindowSize
	}
	if opts.KeywordWeight == 0 {
		opts.KeywordWeight = defaultKeywordWeight
	}
	if opts.DecayFactor <= 0 || opts.DecayFactor >= 1 {
		opts.DecayFactor = defaultDecayFactor
	}
	events := make(map[string][]string, len(opts.Events))
	for ev, kws := range opts.Events {
		events[ev] = append([]string(nil), kws...)
	}
	return &Scorer{
		windowSize:    opts.WindowSize,
		keywordWeight: opts.KeywordWeight,
		decayFactor:   opts.DecayFactor,
		events:        events,
		window:        make([]Observation, 0, opts.WindowSize),
	}
}

// SetEvents replaces the event keyword table.
func (s *Scorer) SetEvents(events map[string][]string) {
	copied := make(map[string][]string, len(events))
	for ev, kws := range events {
		copied[ev] = append([]string(nil), kws...)
	}
	s.mu.Lock()
	s.events = copied
	s.mu.Unlock()
}

// Feed appends one observation to the window, evicting the oldest entry
// once the bound is exceeded, and returns the recomputed score for every
// event type. Scores are recomputed from scratch on each call so the
// accumulation order never drifts.
func (s *Scorer) Feed(obs Observation) Score {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.window = append(s.window, obs)
	if len(s.window) > s.windowSize {
		s.window = s.window[len(s.window)-s.windowSize:]
	}
	scores := s.computeLocked()
	s.count++
	s.history = append(s.history, scores)
	return scores
}

// computeLocked walks the window newest-first and accumulates three terms
// per event type:
//
//  1. keyword matches, weighted keywordWeight * decayFactor^age
//  2. loudness, weighted decayFactor^age
//  3. transcript length, unweighted across the whole window
//
// The length term carries no decay on purpose: downstream tuning depends
// on the constant-weight accumulation, so it must not be "fixed" to match
// the other two terms.
func (s *Scorer) computeLocked() Score {
	scores := make(Score, len(s.events))
	for ev := range s.events {
		scores[ev] = 0
	}

	// Keyword term: recency weighted geometrically heavier than age.
	decay := s.keywordWeight
	for i := len(s.window) - 1; i >= 0; i-- {
		text := s.window[i].Text
		for ev, keywords := range s.events {
			matches := 0
			for _, kw := range keywords {
				matches += strings.Count(text, kw)
			}
			scores[ev] += float64(matches) * decay
		}
		decay *= s.decayFactor
	}

	// Loudness term: same recency order, unit base weight.
	decay = 1
	for i := len(s.window) - 1; i >= 0; i-- {
		for ev := range s.events {
			scores[ev] += s.window[i].Loudness * decay
		}
		decay *= s.decayFactor
	}

	// Length term.
	for i := len(s.window) - 1; i >= 0; i-- {
		for ev := range s.events {
			scores[ev] += float64(len(s.window[i].Text))
		}
	}

	return scores
}

// WindowLen reports the current number of buffered observations.
func (s *Scorer) WindowLen() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.window)
}

// Count reports how many observations have been fed in total.
func (s *Scorer) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.count
}

// History returns a copy of the recorded score of every feed, oldest first.
func (s *Scorer) History() []Score {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Score(nil), s.history...)
}

// Latest returns the most recent score, or nil before the first feed.
func (s *Scorer) Latest() Score {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.history) == 0 {
		return nil
	}
	return s.history[len(s.history)-1]
}
