// Package pipeline defines the chunk processing core: the request and
// result types shared across the pipeline, the memoizing result cache,
// and the processor that turns a chunk request into signals.
package pipeline

import (
	"errors"
	"strconv"
)

// Sentinel error kinds. Timeouts are treated as SourceUnavailable for
// retry purposes; extraction failures never surface past the processor.
var (
	ErrSourceUnavailable = errors.New("source unavailable")
	ErrTimeout           = errors.New("fetch timed out")
)

// Request addresses one fixed-length chunk of a media source.
type Request struct {
	SourceID    string  `json:"source_id"`
	StartOffset float64 `json:"start_offset"` // seconds, >= 0
	Duration    float64 `json:"duration"`     // seconds, > 0
}

// ChunkKey is the deterministic cache key for a chunk request.
// Identical tuples always address the same logical chunk.
type ChunkKey struct {
	SourceID    string
	StartOffset float64
	Duration    float64
}

func KeyFor(req Request) ChunkKey {
	return ChunkKey{SourceID: req.SourceID, StartOffset: req.StartOffset, Duration: req.Duration}
}

func (k ChunkKey) String() string {
	return k.SourceID + "_" +
		strconv.FormatFloat(k.StartOffset, 'f', -1, 64) + "_" +
		strconv.FormatFloat(k.Duration, 'f', -1, 64)
}

// Segment is a sub-range of a chunk transcript with its own timestamps.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Transcript holds the spoken text of one chunk.
type Transcript struct {
	Text     string    `json:"text"`
	Segments []Segment `json:"segments"`
}

// ChunkResult is the immutable outcome of processing one chunk.
// Once stored in the cache it is shared by reference and never mutated.
type ChunkResult struct {
	StartOffset float64    `json:"startOffset"`
	Duration    float64    `json:"duration"`
	Transcript  Transcript `json:"transcript"`
	Amplitudes  []float64  `json:"amplitudes"`  // normalized [0,1], fixed rate
	ProcessedAt float64    `json:"processedAt"` // epoch seconds
}

// ChunkHandle points at the materialized artifacts of a resolved chunk.
type ChunkHandle struct {
	SourceID    string
	StartOffset float64
	Duration    float64
	MediaPath   string // trimmed media artifact
	AudioPath   string // mono 16kHz s16le PCM
	Reused      bool   // artifact existed before this resolve
}
