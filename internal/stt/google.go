package stt

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"

	"github.com/kevin-liao/streamscout/internal/pipeline"
)

// GoogleTranscriber transcribes chunk audio with the Google Cloud Speech
// API. Chunks are short (a few seconds), so synchronous Recognize is
// enough; no streaming session is held open.
type GoogleTranscriber struct {
	client     *speech.Client
	language   string
	sampleRate int
}

func NewGoogleTranscriber(ctx context.Context, language string, sampleRate int) (*GoogleTranscriber, error) {
	client, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create speech client: %w", err)
	}
	return &GoogleTranscriber{
		client:     client,
		language:   language,
		sampleRate: sampleRate,
	}, nil
}

// Transcribe converts one chunk of PCM s16le mono audio to text with
// per-result timestamps. Silent chunks return an empty transcript.
func (g *GoogleTranscriber) Transcribe(ctx context.Context, pcm []byte) (pipeline.Transcript, error) {
	if len(pcm) == 0 {
		return pipeline.Transcript{}, nil
	}

	resp, err := g.client.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:                   speechpb.RecognitionConfig_LINEAR16,
			SampleRateHertz:            int32(g.sampleRate),
			LanguageCode:               g.language,
			EnableAutomaticPunctuation: true,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: pcm},
		},
	})
	if err != nil {
		return pipeline.Transcript{}, fmt.Errorf("recognize: %w", err)
	}

	var transcript pipeline.Transcript
	var sb strings.Builder
	cursor := 0.0
	for _, result := range resp.Results {
		if len(result.Alternatives) == 0 {
			continue
		}
		alt := result.Alternatives[0]
		text := strings.TrimSpace(alt.Transcript)
		if text == "" {
			continue
		}

		end := cursor
		if result.ResultEndTime != nil {
			end = result.ResultEndTime.AsDuration().Seconds()
		}
		transcript.Segments = append(transcript.Segments, pipeline.Segment{
			Start: cursor,
			End:   end,
			Text:  text,
		})
		cursor = end

		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(text)
	}
	transcript.Text = sb.String()

	if transcript.Text != "" {
		slog.Debug("transcribed chunk", "chars", len(transcript.Text), "segments", len(transcript.Segments))
	}
	return transcript, nil
}

// Close closes the speech client.
func (g *GoogleTranscriber) Close() error {
	return g.client.Close()
}
