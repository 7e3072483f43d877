package scorer

import (
	"testing"

	"github.com/kevin-liao/streamscout/internal/pipeline"
)

func TestReduce(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		result       pipeline.ChunkResult
		wantText     string
		wantLog      string
		wantLoudness float64
	}{
		{
			name: "lowercases and joins tokens",
			result: pipeline.ChunkResult{
				Transcript: pipeline.Transcript{Text: "  Touchdown by the HOME team "},
				Amplitudes: []float64{0.2, 0.4, 0.6},
			},
			wantText:     "touchdownbythehometeam",
			wantLog:      "touchdown;by;the;home;team",
			wantLoudness: 0.4,
		},
		{
			name: "strips the log delimiter from transcripts",
			result: pipeline.ChunkResult{
				Transcript: pipeline.Transcript{Text: "first down; ball at midfield"},
				Amplitudes: []float64{1},
			},
			wantText:     "firstdownballatmidfield",
			wantLog:      "first;down;ball;at;midfield",
			wantLoudness: 1,
		},
		{
			name:         "degraded chunk yields an empty but well-formed observation",
			result:       pipeline.ChunkResult{},
			wantText:     "",
			wantLog:      "",
			wantLoudness: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			obs, logText := Reduce(&tt.result)
			if obs.Text != tt.wantText {
				t.Errorf("Text = %q, want %q", obs.Text, tt.wantText)
			}
			if logText != tt.wantLog {
				t.Errorf("log text = %q, want %q", logText, tt.wantLog)
			}
			if diff := obs.Loudness - tt.wantLoudness; diff > 1e-12 || diff < -1e-12 {
				t.Errorf("Loudness = %v, want %v", obs.Loudness, tt.wantLoudness)
			}
		})
	}
}
