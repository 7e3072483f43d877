package scorer

import (
	"strings"

	"github.com/kevin-liao/streamscout/internal/pipeline"
)

// LogDelimiter joins transcript tokens in the persisted scoring log. It is
// stripped from transcripts first so the log column stays unambiguous.
const LogDelimiter = ";"

// Reduce collapses a chunk result into the observation fed to the scorer
// plus the delimiter-joined token string written to the scoring log. The
// observation text is the lowercased token stream with the delimiter
// removed; the loudness scalar is the mean of the normalized series.
func Reduce(res *pipeline.ChunkResult) (Observation, string) {
	text := strings.ToLower(strings.TrimSpace(res.Transcript.Text))
	text = strings.ReplaceAll(text, LogDelimiter, "")
	tokens := strings.Fields(text)

	return Observation{
		Text:     strings.Join(tokens, ""),
		Loudness: mean(res.Amplitudes),
	}, strings.Join(tokens, LogDelimiter)
}

func mean(series []float64) float64 {
	if len(series) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range series {
		sum += v
	}
	return sum / float64(len(series))
}
