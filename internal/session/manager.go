package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kevin-liao/streamscout/internal/scorer"
	"github.com/kevin-liao/streamscout/internal/scorelog"
)

// HighlightGenerator turns a detected event into publishable copy.
// Satisfied by *highlight.GeminiGenerator.
type HighlightGenerator interface {
	Generate(ctx context.Context, event string, score float64, transcript string) (string, error)
}

// TriggerStore records threshold crossings. Satisfied by *store.Store.
type TriggerStore interface {
	RecordTrigger(sourceID, event string, score float64, detail string) error
}

// generateTimeout bounds the detached highlight call so a stuck API
// request cannot pile up goroutines.
const generateTimeout = 15 * time.Second

// Options configure a Manager.
type Options struct {
	ChunkDuration float64
	Scoring       scorer.Options
	Thresholds    map[string]float64 // event type → trigger score
	Cooldown      time.Duration      // per-event re-trigger suppression
	ScoreLogDir   string             // empty disables CSV logging
	Generator     HighlightGenerator // nil disables highlight generation
	Triggers      TriggerStore       // nil disables the audit log
}

// Manager owns every live session: at most one per source at a time.
// It is also the threshold consumer, watching each session's scores and
// firing the highlight generator when an event crosses its threshold.
type Manager struct {
	processor Processor
	opts      Options

	mu         sync.Mutex
	thresholds map[string]float64
	cooldown   time.Duration
	sessions   map[string]*running
}

type running struct {
	session     *Session
	scorer      *scorer.Scorer
	cancel      context.CancelFunc
	done        chan struct{}
	lastTrigger map[string]time.Time
	transcript  string // latest raw transcript text, for highlight prompts
}

func NewManager(processor Processor, opts Options) *Manager {
	thresholds := make(map[string]float64, len(opts.Thresholds))
	for ev, v := range opts.Thresholds {
		thresholds[ev] = v
	}
	return &Manager{
		processor:  processor,
		opts:       opts,
		thresholds: thresholds,
		cooldown:   opts.Cooldown,
		sessions:   make(map[string]*running),
	}
}

// Start launches a paced session over sourceID. totalDuration of zero
// runs until Stop or a chunk failure. A source with a session already
// running is rejected.
func (m *Manager) Start(ctx context.Context, sourceID string, totalDuration float64) (View, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[sourceID]; ok {
		return View{}, fmt.Errorf("session already running for source %q", sourceID)
	}

	sess := NewSession(sourceID, m.opts.ChunkDuration)
	sc := scorer.New(m.opts.Scoring)

	var logger *scorelog.Logger
	if m.opts.ScoreLogDir != "" {
		var err error
		logger, err = scorelog.NewLogger(m.opts.ScoreLogDir, sourceID)
		if err != nil {
			slog.Warn("scoring log disabled for session", "source", sourceID, "err", err)
			logger = nil
		}
	}

	sctx, cancel := context.WithCancel(ctx)
	r := &running{
		session:     sess,
		scorer:      sc,
		cancel:      cancel,
		done:        make(chan struct{}),
		lastTrigger: make(map[string]time.Time),
	}
	m.sessions[sourceID] = r

	runner := NewRunner(sess, m.processor, sc, logger, totalDuration, m.scoreConsumer(r))

	go func() {
		defer close(r.done)
		defer func() {
			if logger != nil {
				logger.Close()
			}
			m.mu.Lock()
			if m.sessions[sourceID] == r {
				delete(m.sessions, sourceID)
			}
			m.mu.Unlock()
		}()

		slog.Info("session started", "session", sess.id, "source", sourceID)
		if err := runner.Run(sctx); err != nil && err != context.Canceled {
			slog.Error("session ended with error", "session", sess.id, "err", err)
			return
		}
		slog.Info("session ended", "session", sess.id)
	}()

	return sess.Snapshot(), nil
}

// Stop cancels the session for sourceID and waits for its runner to
// exit, so a subsequent Start never races the teardown.
func (m *Manager) Stop(sourceID string) error {
	m.mu.Lock()
	r, ok := m.sessions[sourceID]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("no session running for source %q", sourceID)
	}

	r.cancel()
	<-r.done
	return nil
}

// StopAll cancels every live session and waits for them to drain.
func (m *Manager) StopAll() {
	m.mu.Lock()
	rs := make([]*running, 0, len(m.sessions))
	for _, r := range m.sessions {
		rs = append(rs, r)
	}
	m.mu.Unlock()

	for _, r := range rs {
		r.cancel()
	}
	for _, r := range rs {
		<-r.done
	}
}

// List returns a snapshot of every live session.
func (m *Manager) List() []View {
	m.mu.Lock()
	defer m.mu.Unlock()
	views := make([]View, 0, len(m.sessions))
	for _, r := range m.sessions {
		views = append(views, r.session.Snapshot())
	}
	return views
}

// Scores returns the latest score for sourceID's session, or nil.
func (m *Manager) Scores(sourceID string) scorer.Score {
	m.mu.Lock()
	r, ok := m.sessions[sourceID]
	m.mu.Unlock()
	if !ok {
		return nil
	}
	return r.scorer.Latest()
}

// UpdateScoring applies reloaded keyword tables and trigger tuning to
// every live session.
func (m *Manager) UpdateScoring(events map[string][]string, thresholds map[string]float64, cooldown time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.thresholds = make(map[string]float64, len(thresholds))
	for ev, v := range thresholds {
		m.thresholds[ev] = v
	}
	m.cooldown = cooldown

	for _, r := range m.sessions {
		r.scorer.SetEvents(events)
	}
	slog.Info("scoring config applied", "events", len(events), "sessions", len(m.sessions))
}

// scoreConsumer builds the per-session callback that checks each fresh
// score against the trigger thresholds.
func (m *Manager) scoreConsumer(r *running) ScoreFunc {
	return func(chunkIndex int, startOffset float64, obs scorer.Observation, scores scorer.Score) {
		if obs.Text != "" {
			r.transcript = obs.Text
		}

		m.mu.Lock()
		thresholds := m.thresholds
		cooldown := m.cooldown
		m.mu.Unlock()

		now := time.Now()
		for event, score := range scores {
			threshold, ok := thresholds[event]
			if !ok || score < threshold {
				continue
			}
			if last, ok := r.lastTrigger[event]; ok && now.Sub(last) < cooldown {
				continue
			}
			r.lastTrigger[event] = now

			slog.Info("event detected",
				"source", r.session.sourceID, "event", event,
				"score", score, "chunk", chunkIndex, "offset", startOffset)
			m.fire(r.session.sourceID, event, score, r.transcript)
		}
	}
}

// fire records the trigger and generates highlight copy off the runner's
// goroutine so a slow API call never stalls the pacing loop.
func (m *Manager) fire(sourceID, event string, score float64, transcript string) {
	go func() {
		detail := transcript
		if m.opts.Generator != nil {
			ctx, cancel := context.WithTimeout(context.Background(), generateTimeout)
			defer cancel()
			blurb, err := m.opts.Generator.Generate(ctx, event, score, transcript)
			if err != nil {
				slog.Error("highlight generation failed", "event", event, "err", err)
			} else {
				detail = blurb
				slog.Info("highlight generated", "event", event, "text", blurb)
			}
		}
		if m.opts.Triggers != nil {
			if err := m.opts.Triggers.RecordTrigger(sourceID, event, score, detail); err != nil {
				slog.Warn("record trigger failed", "event", event, "err", err)
			}
		}
	}()
}
