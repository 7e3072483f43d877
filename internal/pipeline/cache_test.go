package pipeline

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

func TestCache_GetOrCompute_ComputesOnce(t *testing.T) {
	t.Parallel()

	c := NewCache()
	key := ChunkKey{SourceID: "game1", StartOffset: 10, Duration: 5}

	var calls atomic.Int32
	compute := func() (*ChunkResult, error) {
		calls.Add(1)
		return &ChunkResult{StartOffset: 10, Duration: 5}, nil
	}

	first, hit, err := c.GetOrCompute(key, compute)
	if err != nil {
		t.Fatalf("GetOrCompute() error: %v", err)
	}
	if hit {
		t.Error("first call should not be a cache hit")
	}

	second, hit, err := c.GetOrCompute(key, compute)
	if err != nil {
		t.Fatalf("GetOrCompute() error: %v", err)
	}
	if !hit {
		t.Error("second call should be a cache hit")
	}
	if first != second {
		t.Error("cached result should be shared by reference, not recomputed")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("compute calls = %d, want 1", got)
	}
}

func TestCache_GetOrCompute_ConcurrentCallersShareOneComputation(t *testing.T) {
	t.Parallel()

	c := NewCache()
	key := ChunkKey{SourceID: "game1", StartOffset: 0, Duration: 5}

	var calls atomic.Int32
	release := make(chan struct{})
	compute := func() (*ChunkResult, error) {
		calls.Add(1)
		<-release // hold all callers in the same flight
		return &ChunkResult{Duration: 5}, nil
	}

	const callers = 32
	results := make([]*ChunkResult, callers)
	var wg sync.WaitGroup
	var started sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		started.Add(1)
		go func(i int) {
			defer wg.Done()
			started.Done()
			res, _, err := c.GetOrCompute(key, compute)
			if err != nil {
				t.Errorf("caller %d: %v", i, err)
				return
			}
			results[i] = res
		}(i)
	}
	started.Wait()
	close(release)
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Errorf("compute calls = %d, want at most one concurrent computation per key", got)
	}
	for i := 1; i < callers; i++ {
		if results[i] != results[0] {
			t.Fatalf("caller %d got a different result pointer", i)
		}
	}
}

func TestCache_FailedComputationLeavesNoEntry(t *testing.T) {
	t.Parallel()

	c := NewCache()
	key := ChunkKey{SourceID: "game1", StartOffset: 5, Duration: 5}

	boom := errors.New("fetch failed")
	_, _, err := c.GetOrCompute(key, func() (*ChunkResult, error) {
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("error = %v, want %v", err, boom)
	}
	if _, ok := c.Get(key); ok {
		t.Error("failed computation must not populate the cache")
	}

	// A later call recomputes and succeeds.
	res, hit, err := c.GetOrCompute(key, func() (*ChunkResult, error) {
		return &ChunkResult{Duration: 5}, nil
	})
	if err != nil || hit || res == nil {
		t.Fatalf("retry after failure: res=%v hit=%v err=%v", res, hit, err)
	}
}

func TestCache_ClearScopes(t *testing.T) {
	t.Parallel()

	c := NewCache()
	put := func(src string, off float64) {
		_, _, err := c.GetOrCompute(ChunkKey{SourceID: src, StartOffset: off, Duration: 5}, func() (*ChunkResult, error) {
			return &ChunkResult{StartOffset: off}, nil
		})
		if err != nil {
			t.Fatalf("seed %s/%v: %v", src, off, err)
		}
	}
	put("a", 0)
	put("a", 5)
	put("b", 0)

	if n := c.Clear("a"); n != 2 {
		t.Errorf("Clear(a) = %d, want 2", n)
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d after scoped clear, want 1", c.Len())
	}
	if _, ok := c.Get(ChunkKey{SourceID: "b", StartOffset: 0, Duration: 5}); !ok {
		t.Error("scoped clear must not evict other sources")
	}

	if n := c.Clear(""); n != 1 {
		t.Errorf("Clear() = %d, want 1", n)
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d after global clear, want 0", c.Len())
	}
}

func TestChunkKey_Deterministic(t *testing.T) {
	t.Parallel()

	a := KeyFor(Request{SourceID: "s", StartOffset: 12.5, Duration: 5})
	b := KeyFor(Request{SourceID: "s", StartOffset: 12.5, Duration: 5})
	if a != b || a.String() != b.String() {
		t.Errorf("identical tuples must produce identical keys: %v vs %v", a, b)
	}
	c := KeyFor(Request{SourceID: "s", StartOffset: 12.5, Duration: 10})
	if a == c {
		t.Error("different durations must produce different keys")
	}
}
