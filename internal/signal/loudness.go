// Package signal derives per-chunk signals (loudness envelope, transcript)
// from materialized chunk audio.
package signal

import (
	"encoding/binary"
	"math"
)

// Envelope computes a short-time RMS energy series over PCM s16le mono
// samples. The hop size is chosen so the output carries outRate samples
// per second of audio, then the series is min-max normalized to [0,1].
// Normalization is per-chunk: full dynamic range within a chunk, no
// comparability across chunks.
func Envelope(pcm []byte, sampleRate, outRate int) []float64 {
	samples := decodeS16LE(pcm)
	if len(samples) == 0 || sampleRate <= 0 || outRate <= 0 {
		return nil
	}

	duration := float64(len(samples)) / float64(sampleRate)
	n := int(duration * float64(outRate))
	if n <= 0 {
		n = 1
	}
	hop := len(samples) / n
	if hop <= 0 {
		hop = len(samples)
		n = 1
	}

	series := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		start := i * hop
		end := start + hop
		if end > len(samples) {
			end = len(samples)
		}
		if start >= end {
			break
		}
		var sum float64
		for _, s := range samples[start:end] {
			sum += s * s
		}
		series = append(series, math.Sqrt(sum/float64(end-start)))
	}

	return normalize(series)
}

func decodeS16LE(pcm []byte) []float64 {
	n := len(pcm) / 2
	samples := make([]float64, n)
	for i := 0; i < n; i++ {
		s := int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2]))
		samples[i] = float64(s) / 32768.0
	}
	return samples
}

// normalize rescales to [0,1] with a small epsilon so a flat series
// (silence) maps to zero instead of dividing by zero.
func normalize(series []float64) []float64 {
	if len(series) == 0 {
		return series
	}
	lo, hi := series[0], series[0]
	for _, v := range series {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	span := hi - lo + 1e-8
	out := make([]float64, len(series))
	for i, v := range series {
		out[i] = (v - lo) / span
	}
	return out
}
