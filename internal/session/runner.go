package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kevin-liao/streamscout/internal/pipeline"
	"github.com/kevin-liao/streamscout/internal/scorer"
	"github.com/kevin-liao/streamscout/internal/scorelog"
)

// Processor computes the result for one chunk request. Satisfied by
// *pipeline.Processor.
type Processor interface {
	Process(ctx context.Context, req pipeline.Request) (*pipeline.ChunkResult, bool, error)
}

// ScoreFunc receives the score recomputed after each chunk.
type ScoreFunc func(chunkIndex int, startOffset float64, obs scorer.Observation, scores scorer.Score)

// Runner processes consecutive chunks of one source at live cadence:
// chunk i covers [i*D, (i+1)*D) and its scoring completes no earlier
// than (i+1)*D after the session started. A chunk that takes longer
// than D to process is followed immediately by the next one; the runner
// never skips ahead to make up lost time.
type Runner struct {
	session       *Session
	processor     Processor
	scorer        *scorer.Scorer
	log           *scorelog.Logger // optional
	totalDuration float64          // 0 means run until cancelled or failed
	onScore       ScoreFunc
}

func NewRunner(sess *Session, processor Processor, sc *scorer.Scorer, log *scorelog.Logger, totalDuration float64, onScore ScoreFunc) *Runner {
	return &Runner{
		session:       sess,
		processor:     processor,
		scorer:        sc,
		log:           log,
		totalDuration: totalDuration,
		onScore:       onScore,
	}
}

// Run drives the session until the source is exhausted, the context is
// cancelled, or a chunk fails to resolve. Cancellation is checked
// between chunks and during the pacing wait.
func (r *Runner) Run(ctx context.Context) error {
	start := time.Now()
	chunkDur := r.session.chunkDuration
	defer r.session.deactivate()

	for i := 0; ; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		offset := float64(i) * chunkDur
		if r.totalDuration > 0 && offset >= r.totalDuration {
			slog.Info("session reached end of source",
				"session", r.session.id, "chunks", i)
			return nil
		}

		res, cached, err := r.processor.Process(ctx, pipeline.Request{
			SourceID:    r.session.sourceID,
			StartOffset: offset,
			Duration:    chunkDur,
		})
		if err != nil {
			return fmt.Errorf("chunk %d: %w", i, err)
		}

		obs, words := scorer.Reduce(res)
		scores := r.scorer.Feed(obs)
		if r.log != nil {
			r.log.Write(offset, offset+chunkDur, words, obs.Loudness)
		}
		r.session.advance()

		slog.Debug("chunk scored",
			"session", r.session.id, "chunk", i, "cached", cached,
			"loudness", obs.Loudness, "chars", len(obs.Text))

		if r.onScore != nil {
			r.onScore(i, offset, obs, scores)
		}

		// Hold until the wall-clock slot for chunk i closes. An overrun
		// leaves the wait non-positive and the next chunk starts at once.
		target := start.Add(time.Duration(float64(i+1) * chunkDur * float64(time.Second)))
		if wait := time.Until(target); wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			}
		}
	}
}
