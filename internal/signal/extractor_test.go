package signal

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/kevin-liao/streamscout/internal/pipeline"
)

type stubTranscriber struct {
	transcript pipeline.Transcript
	err        error
	calls      int
	lastPCM    []byte
}

func (s *stubTranscriber) Transcribe(_ context.Context, pcm []byte) (pipeline.Transcript, error) {
	s.calls++
	s.lastPCM = pcm
	return s.transcript, s.err
}

func writeChunkAudio(t *testing.T, pcm []byte) pipeline.ChunkHandle {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chunk_0.pcm")
	if err := os.WriteFile(path, pcm, 0644); err != nil {
		t.Fatal(err)
	}
	return pipeline.ChunkHandle{SourceID: "game1", Duration: 5, AudioPath: path}
}

func TestExtractor_Extract(t *testing.T) {
	t.Parallel()

	pcm := pcmFromLevels(16000, 0.2, 0.9)
	handle := writeChunkAudio(t, pcm)
	tr := &stubTranscriber{transcript: pipeline.Transcript{Text: "what a play"}}
	e := NewExtractor(tr, 16000, 100)

	amps, transcript, err := e.Extract(context.Background(), handle)
	if err != nil {
		t.Fatalf("Extract() error: %v", err)
	}
	if transcript.Text != "what a play" {
		t.Errorf("transcript = %q", transcript.Text)
	}
	if len(amps) != 200 {
		t.Errorf("amplitude samples = %d for 2s at 100/s, want 200", len(amps))
	}
	if tr.calls != 1 || len(tr.lastPCM) != len(pcm) {
		t.Errorf("transcriber got %d calls with %d bytes, want 1 call with %d bytes",
			tr.calls, len(tr.lastPCM), len(pcm))
	}
}

func TestExtractor_SilentChunkIsNotAnError(t *testing.T) {
	t.Parallel()

	handle := writeChunkAudio(t, pcmFromLevels(16000, 0))
	e := NewExtractor(&stubTranscriber{}, 16000, 100)

	_, transcript, err := e.Extract(context.Background(), handle)
	if err != nil {
		t.Fatalf("silent chunk must not fail: %v", err)
	}
	if transcript.Text != "" {
		t.Errorf("transcript = %q, want empty", transcript.Text)
	}
}

func TestExtractor_TranscriberFailure(t *testing.T) {
	t.Parallel()

	handle := writeChunkAudio(t, pcmFromLevels(16000, 0.5))
	e := NewExtractor(&stubTranscriber{err: errors.New("stt unavailable")}, 16000, 100)

	_, _, err := e.Extract(context.Background(), handle)
	if err == nil {
		t.Fatal("expected error so the processor can degrade the chunk")
	}
}

func TestExtractor_MissingArtifact(t *testing.T) {
	t.Parallel()

	e := NewExtractor(&stubTranscriber{}, 16000, 100)
	_, _, err := e.Extract(context.Background(), pipeline.ChunkHandle{AudioPath: "/nonexistent/chunk.pcm"})
	if err == nil {
		t.Fatal("expected error for missing chunk audio")
	}
}
