package signal

import (
	"context"
	"fmt"
	"os"

	"github.com/kevin-liao/streamscout/internal/pipeline"
)

// Transcriber converts chunk audio to text. Implementations must return
// an empty transcript (not an error) for silent audio.
type Transcriber interface {
	Transcribe(ctx context.Context, pcm []byte) (pipeline.Transcript, error)
}

// Extractor derives the loudness series and transcript for a chunk.
type Extractor struct {
	transcriber   Transcriber
	sampleRate    int // PCM sample rate of chunk audio artifacts
	amplitudeRate int // loudness samples per second of output
}

func NewExtractor(transcriber Transcriber, sampleRate, amplitudeRate int) *Extractor {
	return &Extractor{
		transcriber:   transcriber,
		sampleRate:    sampleRate,
		amplitudeRate: amplitudeRate,
	}
}

// Extract reads the chunk's PCM artifact and produces both signals.
// Errors here mean the whole chunk degrades; the processor absorbs them.
func (e *Extractor) Extract(ctx context.Context, h pipeline.ChunkHandle) ([]float64, pipeline.Transcript, error) {
	pcm, err := os.ReadFile(h.AudioPath)
	if err != nil {
		return nil, pipeline.Transcript{}, fmt.Errorf("read chunk audio: %w", err)
	}

	amplitudes := Envelope(pcm, e.sampleRate, e.amplitudeRate)

	transcript, err := e.transcriber.Transcribe(ctx, pcm)
	if err != nil {
		return nil, pipeline.Transcript{}, fmt.Errorf("transcribe: %w", err)
	}

	return amplitudes, transcript, nil
}
