package pipeline

import (
	"context"
	"log/slog"
	"time"
)

// Resolver materializes a chunk of a media source. Implementations must
// be idempotent: resolving an already-materialized chunk reuses it.
type Resolver interface {
	Resolve(ctx context.Context, sourceID string, startOffset, duration float64) (ChunkHandle, error)
}

// Extractor derives the per-chunk signals from a materialized chunk.
type Extractor interface {
	Extract(ctx context.Context, h ChunkHandle) ([]float64, Transcript, error)
}

// Processor resolves, extracts, and caches chunk results.
type Processor struct {
	resolver  Resolver
	extractor Extractor
	cache     *Cache
}

func NewProcessor(resolver Resolver, extractor Extractor, cache *Cache) *Processor {
	return &Processor{resolver: resolver, extractor: extractor, cache: cache}
}

// Process returns the ChunkResult for req, computing it at most once per
// key. Resolve failures surface to the caller and leave the cache
// untouched. Extraction failures degrade to an empty-signal result so a
// silent or broken chunk never halts a scoring window.
func (p *Processor) Process(ctx context.Context, req Request) (*ChunkResult, bool, error) {
	key := KeyFor(req)
	return p.cache.GetOrCompute(key, func() (*ChunkResult, error) {
		handle, err := p.resolver.Resolve(ctx, req.SourceID, req.StartOffset, req.Duration)
		if err != nil {
			return nil, err
		}

		amplitudes, transcript, err := p.extractor.Extract(ctx, handle)
		if err != nil {
			slog.Warn("extraction failed, degrading chunk",
				"source", req.SourceID, "start", req.StartOffset, "err", err)
			amplitudes = nil
			transcript = Transcript{}
		}

		return &ChunkResult{
			StartOffset: req.StartOffset,
			Duration:    req.Duration,
			Transcript:  transcript,
			Amplitudes:  amplitudes,
			ProcessedAt: float64(time.Now().UnixMilli()) / 1000,
		}, nil
	})
}

// Cache exposes the underlying result cache.
func (p *Processor) Cache() *Cache {
	return p.cache
}
