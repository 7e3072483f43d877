package session

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kevin-liao/streamscout/internal/scorer"
)

type mockGenerator struct {
	mu     sync.Mutex
	events []string
	fail   bool
}

func (m *mockGenerator) Generate(ctx context.Context, event string, score float64, transcript string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return "", context.DeadlineExceeded
	}
	m.events = append(m.events, event)
	return "What a " + event + "!", nil
}

func (m *mockGenerator) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

type mockTriggerStore struct {
	mu       sync.Mutex
	triggers []string // event:detail
}

func (m *mockTriggerStore) RecordTrigger(sourceID, event string, score float64, detail string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.triggers = append(m.triggers, event+":"+detail)
	return nil
}

func (m *mockTriggerStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.triggers)
}

func testOptions() Options {
	return Options{
		ChunkDuration: 0.02,
		Scoring: scorer.Options{
			Events: map[string][]string{"touchdown": {"touchdown"}},
		},
		Thresholds: map[string]float64{"touchdown": 500},
		Cooldown:   time.Minute,
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestManager_StartRejectsDuplicate(t *testing.T) {
	t.Parallel()

	fp := &fakeProcessor{text: "nothing happening", loud: 0.1}
	m := NewManager(fp, testOptions())

	view, err := m.Start(context.Background(), "game1", 0)
	if err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if !view.Active || view.SourceID != "game1" {
		t.Errorf("view = %+v", view)
	}

	if _, err := m.Start(context.Background(), "game1", 0); err == nil {
		t.Error("second Start for the same source must be rejected")
	}

	// A different source is fine.
	if _, err := m.Start(context.Background(), "game2", 0); err != nil {
		t.Errorf("Start(game2) error: %v", err)
	}

	if got := len(m.List()); got != 2 {
		t.Errorf("List() = %d sessions, want 2", got)
	}
	m.StopAll()
}

func TestManager_StopWaitsForTeardown(t *testing.T) {
	t.Parallel()

	fp := &fakeProcessor{text: "x", loud: 0.1}
	m := NewManager(fp, testOptions())

	if _, err := m.Start(context.Background(), "game1", 0); err != nil {
		t.Fatal(err)
	}
	if err := m.Stop("game1"); err != nil {
		t.Fatalf("Stop() error: %v", err)
	}

	// Teardown completed: the source can be restarted immediately.
	if _, err := m.Start(context.Background(), "game1", 0); err != nil {
		t.Errorf("restart after Stop rejected: %v", err)
	}
	m.StopAll()

	if err := m.Stop("game1"); err == nil {
		t.Error("Stop() on a drained source should error")
	}
}

func TestManager_SessionEndsOnExhaustedSource(t *testing.T) {
	t.Parallel()

	fp := &fakeProcessor{text: "x", loud: 0.1}
	m := NewManager(fp, testOptions())

	if _, err := m.Start(context.Background(), "game1", 0.06); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "session drain", func() bool { return len(m.List()) == 0 })

	if got := fp.callCount(); got != 3 {
		t.Errorf("processed chunks = %d, want 3", got)
	}
}

func TestManager_ThresholdFiresOnceUnderCooldown(t *testing.T) {
	t.Parallel()

	gen := &mockGenerator{}
	audit := &mockTriggerStore{}
	opts := testOptions()
	opts.Generator = gen
	opts.Triggers = audit

	// Every chunk screams the keyword, so every score crosses 500.
	fp := &fakeProcessor{text: "Touchdown! TOUCHDOWN!", loud: 0.9}
	m := NewManager(fp, opts)

	if _, err := m.Start(context.Background(), "game1", 0.1); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "session drain", func() bool { return len(m.List()) == 0 })
	waitFor(t, "trigger record", func() bool { return audit.count() >= 1 })

	// Five crossing chunks inside one cooldown window fire exactly once.
	time.Sleep(50 * time.Millisecond)
	if got := gen.count(); got != 1 {
		t.Errorf("highlight generations = %d, want 1", got)
	}
	if got := audit.count(); got != 1 {
		t.Errorf("recorded triggers = %d, want 1", got)
	}

	audit.mu.Lock()
	defer audit.mu.Unlock()
	if !strings.HasPrefix(audit.triggers[0], "touchdown:What a touchdown!") {
		t.Errorf("trigger detail = %q", audit.triggers[0])
	}
}

func TestManager_GeneratorFailureStillRecordsTrigger(t *testing.T) {
	t.Parallel()

	gen := &mockGenerator{fail: true}
	audit := &mockTriggerStore{}
	opts := testOptions()
	opts.Generator = gen
	opts.Triggers = audit

	fp := &fakeProcessor{text: "touchdown touchdown", loud: 0.9}
	m := NewManager(fp, opts)

	if _, err := m.Start(context.Background(), "game1", 0.02); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "trigger record", func() bool { return audit.count() >= 1 })

	// The audit row falls back to the raw transcript text.
	audit.mu.Lock()
	defer audit.mu.Unlock()
	if !strings.Contains(audit.triggers[0], "touchdowntouchdown") {
		t.Errorf("trigger detail = %q, want raw transcript fallback", audit.triggers[0])
	}
}

func TestManager_UpdateScoringAppliesToLiveSessions(t *testing.T) {
	t.Parallel()

	gen := &mockGenerator{}
	opts := testOptions()
	opts.Generator = gen
	opts.ChunkDuration = 0.03

	// The processing delay keeps the first chunk in flight while the
	// reload below is applied.
	fp := &fakeProcessor{text: "touchdown", loud: 0.2, delay: 40 * time.Millisecond}
	m := NewManager(fp, opts)

	// Raise the threshold out of reach and drop the keyword table before
	// the first chunk can land.
	if _, err := m.Start(context.Background(), "game1", 0.09); err != nil {
		t.Fatal(err)
	}
	m.UpdateScoring(map[string][]string{}, map[string]float64{"touchdown": 1e9}, time.Minute)

	waitFor(t, "session drain", func() bool { return len(m.List()) == 0 })
	time.Sleep(50 * time.Millisecond)
	if got := gen.count(); got != 0 {
		t.Errorf("highlight generations = %d, want 0 after reload", got)
	}
}
