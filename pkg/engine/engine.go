// Package engine coordinates the full diff-layout computation off the
// interactive path.
//
// The engine wraps matching, per-side layout, overlap resolution,
// cross-side alignment, and derived-index building behind one coordinator
// that never blocks its caller longer than it has to:
//
//   - layout runs on pooled worker goroutines; the two sides of a pair are
//     computed in parallel
//   - results are cached in a bounded LRU keyed by content signature, so an
//     identical request is served without recomputation
//   - concurrent requests for the same signature are coalesced into one
//     computation
//   - a watchdog falls back to synchronous computation when a worker stalls,
//     and small graphs race a proactive synchronous pass against the worker
//   - a worker fault routes every subsequent request to the synchronous
//     path until the pool is restarted
//
// Requests carry monotonically increasing ids; an asynchronous result is
// discarded when a newer request has superseded it.
package engine

import (
	"context"
	"encoding/json"
	"io"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/miltonlaufer/diffgraph/pkg/align"
	"github.com/miltonlaufer/diffgraph/pkg/cache"
	dgerrors "github.com/miltonlaufer/diffgraph/pkg/errors"
	"github.com/miltonlaufer/diffgraph/pkg/index"
	"github.com/miltonlaufer/diffgraph/pkg/layout"
	"github.com/miltonlaufer/diffgraph/pkg/match"
	"github.com/miltonlaufer/diffgraph/pkg/observability"
	"github.com/miltonlaufer/diffgraph/pkg/structure"
)

// Defaults for the coordinator's timers and thresholds.
const (
	// DefaultHardTimeout is the watchdog deadline: past it, the worker is
	// presumed stuck and the request is recomputed synchronously.
	DefaultHardTimeout = 2500 * time.Millisecond

	// DefaultSoftTimeout starts a proactive synchronous pass for small
	// graphs while the worker call is still pending; whichever finishes
	// first wins.
	DefaultSoftTimeout = 1 * time.Second

	// DefaultSoftThreshold is the node count below which the soft
	// fallback applies.
	DefaultSoftThreshold = 300

	// DefaultTTL expires cached results. Signatures change whenever the
	// inputs do, so the TTL only bounds memory held for dead signatures.
	DefaultTTL = 30 * time.Minute
)

// Output is the complete result for one diff pair: both sides' positioned
// layouts, the alignment breakpoints applied to the old side, and the
// new side's top-level anchor positions for scroll synchronization.
type Output struct {
	Signature   string                       `json:"signature" bson:"signature"`
	Old         *layout.Result               `json:"old" bson:"old"`
	New         *layout.Result               `json:"new" bson:"new"`
	Breakpoints map[string][]align.Breakpoint `json:"breakpoints,omitempty" bson:"breakpoints,omitempty"`
	TopLevel    map[string][2]float64        `json:"top_level,omitempty" bson:"top_level,omitempty"`
}

// Config tunes the coordinator. The zero value takes every default.
type Config struct {
	Workers       int
	HardTimeout   time.Duration
	SoftTimeout   time.Duration
	SoftThreshold int
	CacheTTL      time.Duration
	Geometry      layout.Geometry
}

func (c *Config) setDefaults() {
	if c.Workers == 0 {
		c.Workers = runtime.NumCPU() / 2
	}
	if c.Workers < 1 {
		c.Workers = 1
	}
	if c.HardTimeout == 0 {
		c.HardTimeout = DefaultHardTimeout
	}
	if c.SoftTimeout == 0 {
		c.SoftTimeout = DefaultSoftTimeout
	}
	if c.SoftThreshold == 0 {
		c.SoftThreshold = DefaultSoftThreshold
	}
	if c.CacheTTL == 0 {
		c.CacheTTL = DefaultTTL
	}
	if c.Geometry == (layout.Geometry{}) {
		c.Geometry = layout.DefaultGeometry()
	}
}

// Engine is the offload and cache coordinator. Create one with New and
// share it; all methods are safe for concurrent use.
type Engine struct {
	cfg    Config
	cache  cache.Cache
	keyer  cache.Keyer
	logger *log.Logger

	pool   atomic.Pointer[pool]
	group  singleflight.Group
	reqID  atomic.Uint64
	state  *stateHolder
}

// Option configures an Engine.
type Option func(*Engine)

// WithCache replaces the default in-memory LRU backend.
func WithCache(c cache.Cache) Option {
	return func(e *Engine) { e.cache = c }
}

// WithLogger attaches a logger. The default discards everything.
func WithLogger(l *log.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// New creates an engine with the given configuration.
func New(cfg Config, opts ...Option) *Engine {
	cfg.setDefaults()
	e := &Engine{
		cfg:    cfg,
		cache:  cache.NewMemoryCache(cache.DefaultCapacity),
		keyer:  cache.NewDefaultKeyer(),
		logger: log.NewWithOptions(io.Discard, log.Options{}),
		state:  newStateHolder(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.pool.Store(newPool(cfg.Workers))
	return e
}

// Close stops the worker pool and releases the cache backend.
func (e *Engine) Close() error {
	e.pool.Load().Close()
	return e.cache.Close()
}

// State returns the engine's current observable state.
func (e *Engine) State() State { return e.state.Get() }

// Subscribe registers a state-change callback; see stateHolder.Subscribe.
func (e *Engine) Subscribe(fn func(State)) func() { return e.state.Subscribe(fn) }

// RestartWorkers replaces a failed pool with a fresh one, re-enabling
// offloaded computation.
func (e *Engine) RestartWorkers() {
	old := e.pool.Swap(newPool(e.cfg.Workers))
	old.Close()
}

// Layout computes (or retrieves) the positioned output for a diff pair.
// This is the blocking entry point used by the CLI and server; Request is
// the asynchronous variant for interactive callers.
//
// The call never fails because of a worker problem alone: faults and
// timeouts fall back to the synchronous path, and only a failure of both
// strategies surfaces, as a COMPUTE_FAILED error.
func (e *Engine) Layout(ctx context.Context, pair *structure.Pair, view string) (*Output, error) {
	sig := Signature(pair, view, e.cfg.Geometry)
	return e.layoutBySignature(ctx, sig, pair)
}

// Request starts an asynchronous layout computation and returns its
// request id. The engine's state moves to pending immediately and to
// ready/failed when the computation resolves, unless a newer request has
// superseded this one, in which case the result is discarded. Changing
// input does not cancel an in-flight worker call; its result is simply
// ignored on arrival (id mismatch).
func (e *Engine) Request(ctx context.Context, pair *structure.Pair, view string) uint64 {
	id := e.reqID.Add(1)
	sig := Signature(pair, view, e.cfg.Geometry)
	e.state.set(State{RequestID: id, Status: StatusPending})

	go func() {
		out, err := e.layoutBySignature(ctx, sig, pair)
		s := State{RequestID: id, Status: StatusReady, Output: out}
		if err != nil {
			s.Status = StatusFailed
			s.Err = err
		}
		if id != e.reqID.Load() {
			observability.Engine().OnStaleResult(ctx, id)
			return
		}
		if !e.state.set(s) {
			observability.Engine().OnStaleResult(ctx, id)
		}
	}()
	return id
}

func (e *Engine) layoutBySignature(ctx context.Context, sig string, pair *structure.Pair) (*Output, error) {
	key := e.keyer.LayoutKey(sig, "pair")
	if data, hit, _ := e.cache.Get(ctx, key); hit {
		observability.Cache().OnCacheHit(ctx, "layout")
		var out Output
		if err := json.Unmarshal(data, &out); err == nil {
			return &out, nil
		}
		// Corrupt entry: drop it and recompute.
		_ = e.cache.Delete(ctx, key)
	}
	observability.Cache().OnCacheMiss(ctx, "layout")

	// Coalesce concurrent identical-signature requests: at most one
	// in-flight computation per signature.
	v, err, _ := e.group.Do(sig, func() (any, error) {
		out, err := e.computeWithFallback(ctx, sig, pair)
		if err != nil {
			return nil, err
		}
		if data, merr := json.Marshal(out); merr == nil {
			if e.cache.Set(ctx, key, data, e.cfg.CacheTTL) == nil {
				observability.Cache().OnCacheSet(ctx, "layout", len(data))
			}
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Output), nil
}

// computeWithFallback tries the worker pool first and degrades gracefully:
// soft synchronous race for small graphs, hard watchdog timeout, and a
// permanent synchronous route once the pool has failed.
func (e *Engine) computeWithFallback(ctx context.Context, sig string, pair *structure.Pair) (*Output, error) {
	run := func() (*Output, error) { return e.computePair(ctx, sig, pair) }

	p := e.pool.Load()
	reply, ok := p.Submit(run)
	if !ok {
		observability.Engine().OnFallback(ctx, "worker-failed")
		e.logger.Debug("worker pool unavailable, computing synchronously", "signature", sig[:12])
		return e.computeSync(run)
	}

	nodeCount := len(pair.Old.Nodes) + len(pair.New.Nodes)
	var soft <-chan time.Time
	if nodeCount < e.cfg.SoftThreshold {
		soft = time.After(e.cfg.SoftTimeout)
	}
	hard := time.NewTimer(e.cfg.HardTimeout)
	defer hard.Stop()

	syncCh := make(chan taskResult, 1)
	for {
		select {
		case r := <-reply:
			if r.err != nil {
				observability.Engine().OnFallback(ctx, "worker-failed")
				e.logger.Warn("worker fault, falling back to synchronous layout", "error", r.err)
				return e.computeSync(run)
			}
			return r.out, nil

		case <-soft:
			// Small graph, slow worker: race a synchronous pass and
			// take whichever resolves first.
			soft = nil
			observability.Engine().OnFallback(ctx, "soft-timeout")
			go func() {
				out, err := e.computeSync(run)
				syncCh <- taskResult{out: out, err: err}
			}()

		case r := <-syncCh:
			return r.out, r.err

		case <-hard.C:
			observability.Engine().OnFallback(ctx, "timeout")
			e.logger.Warn("worker watchdog expired, computing synchronously", "signature", sig[:12])
			return e.computeSync(run)

		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// computeSync runs the computation on the calling goroutine with the same
// panic isolation the workers have. If this path fails too, the caller
// gets a coded error and shows an empty panel instead of crashing.
func (e *Engine) computeSync(run func() (*Output, error)) (out *Output, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = dgerrors.New(dgerrors.ErrCodeComputeFailed, "layout computation panicked: %v", r)
		}
	}()
	out, err = run()
	if err != nil {
		return nil, dgerrors.Wrap(dgerrors.ErrCodeComputeFailed, err, "synchronous layout")
	}
	return out, nil
}

// computePair is the full pipeline for one diff pair: per-side layout in
// parallel, overlap resolution, anchor building, breakpoint computation,
// and alignment of the old side against the new.
func (e *Engine) computePair(ctx context.Context, sig string, pair *structure.Pair) (*Output, error) {
	geo := e.cfg.Geometry

	var oldRes, newRes *layout.Result
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		start := time.Now()
		observability.Engine().OnLayoutStart(ctx, structure.SideOld, len(pair.Old.Nodes))
		oldRes = layout.Build(&pair.Old, layout.Options{
			Side: structure.SideOld, Geometry: geo, Files: pair.Files, ShowCalls: pair.ShowCalls,
		})
		layout.ResolveOverlaps(oldRes, geo.OverlapGap)
		observability.Engine().OnLayoutComplete(ctx, structure.SideOld, time.Since(start), nil)
		return nil
	})
	g.Go(func() error {
		start := time.Now()
		observability.Engine().OnLayoutStart(ctx, structure.SideNew, len(pair.New.Nodes))
		newRes = layout.Build(&pair.New, layout.Options{
			Side: structure.SideNew, Geometry: geo, Files: pair.Files, ShowCalls: pair.ShowCalls,
		})
		layout.ResolveOverlaps(newRes, geo.OverlapGap)
		observability.Engine().OnLayoutComplete(ctx, structure.SideNew, time.Since(start), nil)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Cross-side alignment happens after both independent layouts are
	// available, on whichever goroutine coordinates them.
	oldIx := match.NewIndexer(&pair.Old)
	newIx := match.NewIndexer(&pair.New)
	oldAnchors := align.BuildAnchors(oldRes, &pair.Old, oldIx)
	newAnchors := align.BuildAnchors(newRes, &pair.New, newIx)
	bps := align.ComputeBreakpoints(oldAnchors, newAnchors)
	align.Apply(oldRes, &pair.Old, bps, geo.OverlapGap)

	return &Output{
		Signature:   sig,
		Old:         oldRes,
		New:         newRes,
		Breakpoints: bps,
		TopLevel:    newAnchors.TopLevel,
	}, nil
}

// Indexes computes (or retrieves) the derived indexes for one side of a
// previously laid-out pair.
func (e *Engine) Indexes(ctx context.Context, pair *structure.Pair, view, side string) (*index.Derived, error) {
	out, err := e.Layout(ctx, pair, view)
	if err != nil {
		return nil, err
	}

	g, res := sideOf(pair, out, side)
	if g == nil {
		return nil, dgerrors.New(dgerrors.ErrCodeInvalidView, "unknown side %q", side)
	}

	key := e.keyer.IndexKey(out.Signature, side, cache.IndexKeyOpts{})
	if data, hit, _ := e.cache.Get(ctx, key); hit {
		observability.Cache().OnCacheHit(ctx, "index")
		var d index.Derived
		if err := json.Unmarshal(data, &d); err == nil {
			return &d, nil
		}
		_ = e.cache.Delete(ctx, key)
	}
	observability.Cache().OnCacheMiss(ctx, "index")

	d := index.Build(g, res, match.NewIndexer(g))
	if data, merr := json.Marshal(d); merr == nil {
		if e.cache.Set(ctx, key, data, e.cfg.CacheTTL) == nil {
			observability.Cache().OnCacheSet(ctx, "index", len(data))
		}
	}
	return d, nil
}

// Search runs a text query over one side's laid-out nodes. Exclude mode
// inverts the match, keeping only non-matching nodes.
func (e *Engine) Search(ctx context.Context, pair *structure.Pair, view, side, query string, exclude bool) ([]string, error) {
	out, err := e.Layout(ctx, pair, view)
	if err != nil {
		return nil, err
	}
	g, res := sideOf(pair, out, side)
	if g == nil {
		return nil, dgerrors.New(dgerrors.ErrCodeInvalidView, "unknown side %q", side)
	}
	return index.Search(g, res, query, exclude), nil
}

func sideOf(pair *structure.Pair, out *Output, side string) (*structure.Graph, *layout.Result) {
	switch side {
	case structure.SideOld:
		return &pair.Old, out.Old
	case structure.SideNew:
		return &pair.New, out.New
	default:
		return nil, nil
	}
}
