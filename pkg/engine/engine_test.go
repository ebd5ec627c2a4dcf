package engine

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miltonlaufer/diffgraph/pkg/observability"
	"github.com/miltonlaufer/diffgraph/pkg/structure"
)

func testPair() *structure.Pair {
	return &structure.Pair{
		Old: structure.Graph{Nodes: []structure.Node{
			{ID: "fn", Kind: structure.KindGroup, Label: "func f", FilePath: "a.py"},
			{ID: "s1", Kind: structure.KindStatement, Label: "one", FilePath: "a.py", ParentID: "fn", StartLine: 1},
			{ID: "s2", Kind: structure.KindStatement, Label: "two", FilePath: "a.py", ParentID: "fn", StartLine: 2},
		}},
		New: structure.Graph{Nodes: []structure.Node{
			{ID: "fn", Kind: structure.KindGroup, Label: "func f", FilePath: "a.py"},
			{ID: "s1", Kind: structure.KindStatement, Label: "one", FilePath: "a.py", ParentID: "fn", StartLine: 1},
			{ID: "ins", Kind: structure.KindStatement, Label: "inserted", FilePath: "a.py", ParentID: "fn", StartLine: 2, DiffStatus: structure.DiffAdded},
			{ID: "s2", Kind: structure.KindStatement, Label: "two", FilePath: "a.py", ParentID: "fn", StartLine: 3},
		}},
	}
}

// cacheCounter counts layout hits and misses via the observability hooks.
type cacheCounter struct {
	observability.NoopCacheHooks
	hits, misses atomic.Int64
}

func (c *cacheCounter) OnCacheHit(ctx context.Context, kind string) {
	if kind == "layout" {
		c.hits.Add(1)
	}
}

func (c *cacheCounter) OnCacheMiss(ctx context.Context, kind string) {
	if kind == "layout" {
		c.misses.Add(1)
	}
}

func TestLayoutAlignsSides(t *testing.T) {
	e := New(Config{Workers: 1})
	defer e.Close()

	out, err := e.Layout(context.Background(), testPair(), "flow")
	require.NoError(t, err)
	require.NotNil(t, out.Old)
	require.NotNil(t, out.New)
	assert.NotEmpty(t, out.Signature)
	assert.Equal(t, structure.SideOld, out.Old.Side)
	assert.Equal(t, structure.SideNew, out.New.Side)

	// The matched statement below the insertion point sits level across
	// sides after alignment.
	_, oldY := out.Old.Abs("s2")
	_, newY := out.New.Abs("s2")
	assert.Equal(t, newY, oldY)

	require.Len(t, out.Breakpoints, 1)
	assert.NotEmpty(t, out.TopLevel)
}

func TestLayoutCachesBySignature(t *testing.T) {
	counter := &cacheCounter{}
	observability.SetCacheHooks(counter)
	defer observability.Reset()

	e := New(Config{Workers: 1})
	defer e.Close()

	ctx := context.Background()
	first, err := e.Layout(ctx, testPair(), "flow")
	require.NoError(t, err)
	second, err := e.Layout(ctx, testPair(), "flow")
	require.NoError(t, err)

	assert.Equal(t, first.Signature, second.Signature)
	assert.Equal(t, int64(1), counter.misses.Load())
	assert.Equal(t, int64(1), counter.hits.Load())

	// A different view is a different signature.
	third, err := e.Layout(ctx, testPair(), "declarations")
	require.NoError(t, err)
	assert.NotEqual(t, first.Signature, third.Signature)
	assert.Equal(t, int64(2), counter.misses.Load())
}

func TestLayoutSurvivesWorkerFailure(t *testing.T) {
	e := New(Config{Workers: 1})
	defer e.Close()

	// Poison the pool the way a worker fault would.
	reply, ok := e.pool.Load().Submit(func() (*Output, error) { panic("boom") })
	require.True(t, ok)
	<-reply
	require.True(t, e.pool.Load().Failed())

	// Layout still succeeds through the synchronous path.
	out, err := e.Layout(context.Background(), testPair(), "flow")
	require.NoError(t, err)
	assert.NotNil(t, out.Old)

	// Restarting re-enables offloaded computation.
	e.RestartWorkers()
	assert.False(t, e.pool.Load().Failed())
}

func TestRequestSupersedesOlder(t *testing.T) {
	e := New(Config{Workers: 1})
	defer e.Close()

	done := make(chan State, 8)
	unsub := e.Subscribe(func(s State) {
		if s.Status == StatusReady || s.Status == StatusFailed {
			done <- s
		}
	})
	defer unsub()

	ctx := context.Background()
	id1 := e.Request(ctx, testPair(), "flow")
	id2 := e.Request(ctx, testPair(), "declarations")
	require.Greater(t, id2, id1)

	deadline := time.After(5 * time.Second)
	for {
		var s State
		select {
		case s = <-done:
		case <-deadline:
			t.Fatal("no terminal state")
		}
		if s.RequestID == id2 {
			assert.Equal(t, StatusReady, s.Status)
			break
		}
	}

	// Whatever happened to the first request, the engine's visible state
	// belongs to the newest one.
	assert.Equal(t, id2, e.State().RequestID)
}

func TestRequestPendingImmediately(t *testing.T) {
	e := New(Config{Workers: 1})
	defer e.Close()

	id := e.Request(context.Background(), testPair(), "flow")
	s := e.State()
	assert.Equal(t, id, s.RequestID)
	assert.Contains(t, []string{StatusPending, StatusReady}, s.Status)
}

func TestIndexesAndSearch(t *testing.T) {
	e := New(Config{Workers: 1})
	defer e.Close()
	ctx := context.Background()

	d, err := e.Indexes(ctx, testPair(), "flow", structure.SideNew)
	require.NoError(t, err)
	assert.NotEmpty(t, d.KeyByNode)
	assert.Contains(t, d.Neighborhoods, "ins")

	ids, err := e.Search(ctx, testPair(), "flow", structure.SideNew, "inserted", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"ins"}, ids)

	_, err = e.Search(ctx, testPair(), "flow", "sideways", "x", false)
	require.Error(t, err)
}

func TestSoftFallbackRacesSmallGraphs(t *testing.T) {
	// Close the pool so submissions succeed but never resolve, forcing
	// the soft synchronous race to produce the result.
	e := New(Config{
		Workers:       1,
		SoftTimeout:   10 * time.Millisecond,
		HardTimeout:   5 * time.Second,
		SoftThreshold: 1000,
	})
	defer e.Close()
	e.pool.Load().Close()

	start := time.Now()
	out, err := e.Layout(context.Background(), testPair(), "flow")
	require.NoError(t, err)
	assert.NotNil(t, out.New)
	assert.Less(t, time.Since(start), 4*time.Second, "soft fallback should beat the hard watchdog")
}

func TestHardTimeoutFallsBackToSync(t *testing.T) {
	e := New(Config{
		Workers:       1,
		SoftTimeout:   time.Minute, // large graph path: no soft race
		HardTimeout:   20 * time.Millisecond,
		SoftThreshold: 1, // pair is never "small"
	})
	defer e.Close()
	e.pool.Load().Close()

	out, err := e.Layout(context.Background(), testPair(), "flow")
	require.NoError(t, err)
	assert.NotNil(t, out.Old)
}

func TestLayoutContextCancellation(t *testing.T) {
	e := New(Config{Workers: 1, SoftThreshold: 1, HardTimeout: time.Minute})
	defer e.Close()
	e.pool.Load().Close() // request will hang on the dead pool

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.Layout(ctx, testPair(), "flow")
	require.ErrorIs(t, err, context.Canceled)
}
