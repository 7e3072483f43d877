package media

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/kevin-liao/streamscout/internal/pipeline"
)

// RemoteFetcher is the external capability that materializes remote
// media. Failures are reported, never retried here.
type RemoteFetcher interface {
	FetchRange(ctx context.Context, url string, offset, duration float64, dst string) error
	ExtractAudio(ctx context.Context, src, dst string) error
}

// Artifact records where a materialized chunk lives on disk.
type Artifact struct {
	MediaPath string
	AudioPath string
}

// ArtifactIndex durably maps chunk tuples to their artifacts so repeated
// resolves reuse disk instead of refetching, and so per-source eviction
// can find the files behind hashed names.
type ArtifactIndex interface {
	Lookup(sourceID string, startOffset, duration float64) (Artifact, bool, error)
	Record(sourceID string, startOffset, duration float64, art Artifact) error
}

// Source resolves (sourceID, startOffset, duration) requests into decoded
// chunks. Resolving is idempotent: the existence check precedes any
// network or subprocess work, and external fetches are capped at a
// bounded wall-clock duration.
type Source struct {
	fetcher      RemoteFetcher
	index        ArtifactIndex
	chunksDir    string
	audioDir     string
	fetchTimeout time.Duration
}

func NewSource(fetcher RemoteFetcher, index ArtifactIndex, chunksDir, audioDir string, fetchTimeout time.Duration) *Source {
	return &Source{
		fetcher:      fetcher,
		index:        index,
		chunksDir:    chunksDir,
		audioDir:     audioDir,
		fetchTimeout: fetchTimeout,
	}
}

func (s *Source) Resolve(ctx context.Context, sourceID string, startOffset, duration float64) (pipeline.ChunkHandle, error) {
	handle := pipeline.ChunkHandle{
		SourceID:    sourceID,
		StartOffset: startOffset,
		Duration:    duration,
	}

	// Reuse a previously materialized chunk before touching the network.
	if art, ok := s.existing(sourceID, startOffset, duration); ok {
		handle.MediaPath = art.MediaPath
		handle.AudioPath = art.AudioPath
		handle.Reused = true
		return handle, nil
	}

	name := chunkName(sourceID, startOffset, duration)
	handle.MediaPath = filepath.Join(s.chunksDir, name+".mp4")
	handle.AudioPath = filepath.Join(s.audioDir, name+".pcm")

	for _, dir := range []string{s.chunksDir, s.audioDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return pipeline.ChunkHandle{}, fmt.Errorf("create artifact dir: %w", err)
		}
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()

	if err := s.fetcher.FetchRange(fetchCtx, sourceID, startOffset, duration, handle.MediaPath); err != nil {
		return pipeline.ChunkHandle{}, classify(fetchCtx, fmt.Errorf("fetch range: %v", err))
	}
	if err := s.fetcher.ExtractAudio(fetchCtx, handle.MediaPath, handle.AudioPath); err != nil {
		return pipeline.ChunkHandle{}, classify(fetchCtx, fmt.Errorf("extract audio: %v", err))
	}

	if err := s.index.Record(sourceID, startOffset, duration, Artifact{
		MediaPath: handle.MediaPath,
		AudioPath: handle.AudioPath,
	}); err != nil {
		// The chunk itself is fine; only the eviction index is stale.
		slog.Warn("record chunk artifact failed", "source", sourceID, "start", startOffset, "err", err)
	}

	slog.Info("chunk materialized", "source", sourceID, "start", startOffset, "duration", duration)
	return handle, nil
}

// existing reports a reusable artifact, consulting the index first and
// falling back to the deterministic paths on disk.
func (s *Source) existing(sourceID string, startOffset, duration float64) (Artifact, bool) {
	if art, ok, err := s.index.Lookup(sourceID, startOffset, duration); err == nil && ok {
		if fileExists(art.MediaPath) && fileExists(art.AudioPath) {
			return art, true
		}
	}
	name := chunkName(sourceID, startOffset, duration)
	art := Artifact{
		MediaPath: filepath.Join(s.chunksDir, name+".mp4"),
		AudioPath: filepath.Join(s.audioDir, name+".pcm"),
	}
	if fileExists(art.MediaPath) && fileExists(art.AudioPath) {
		return art, true
	}
	return Artifact{}, false
}

// Probe exposes source metadata lookup when the fetcher supports it.
func (s *Source) Probe(ctx context.Context, sourceID string, timeout time.Duration) (SourceInfo, error) {
	prober, ok := s.fetcher.(interface {
		Probe(ctx context.Context, url string) (SourceInfo, error)
	})
	if !ok {
		return SourceInfo{}, errors.New("fetcher does not support probing")
	}
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	info, err := prober.Probe(probeCtx, sourceID)
	if err != nil {
		return SourceInfo{}, classify(probeCtx, err)
	}
	return info, nil
}

// classify maps external tool failures onto the pipeline's error kinds.
// A deadline hit is a Timeout; everything else is SourceUnavailable.
func classify(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", pipeline.ErrTimeout, err)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return fmt.Errorf("%w: %v", pipeline.ErrSourceUnavailable, err)
}

func chunkName(sourceID string, startOffset, duration float64) string {
	sum := sha1.Sum([]byte(sourceID))
	return fmt.Sprintf("%s_%d_%d", hex.EncodeToString(sum[:])[:12], int64(startOffset*1000), int64(duration*1000))
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
