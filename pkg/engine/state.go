package engine

import "sync"

// Status values for the engine's observable state.
const (
	StatusIdle    = "idle"
	StatusPending = "pending"
	StatusReady   = "ready"
	StatusFailed  = "failed"
)

// State is the engine's externally visible condition: which request is
// current, whether it has resolved, and with what. Viewers subscribe to
// State changes instead of polling; there is no finer-grained reactivity,
// downstream values recompute whenever a new State arrives.
type State struct {
	RequestID uint64
	Status    string
	Output    *Output
	Err       error
}

// stateHolder serializes State updates and fans them out to subscribers.
type stateHolder struct {
	mu      sync.Mutex
	current State
	nextSub int
	subs    map[int]func(State)
}

func newStateHolder() *stateHolder {
	return &stateHolder{
		current: State{Status: StatusIdle},
		subs:    make(map[int]func(State)),
	}
}

// Get returns the current state.
func (h *stateHolder) Get() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current
}

// Subscribe registers fn for every subsequent state change and returns an
// unsubscribe function. fn is invoked synchronously under the holder's
// lock ordering, so it must not block.
func (h *stateHolder) Subscribe(fn func(State)) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextSub
	h.nextSub++
	h.subs[id] = fn
	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.subs, id)
	}
}

// set replaces the state and notifies subscribers. Returns false without
// updating when the incoming request id is older than the current one.
// Stale in-flight results are discarded, never applied.
func (h *stateHolder) set(s State) bool {
	h.mu.Lock()
	if s.RequestID < h.current.RequestID {
		h.mu.Unlock()
		return false
	}
	h.current = s
	fns := make([]func(State), 0, len(h.subs))
	for _, fn := range h.subs {
		fns = append(fns, fn)
	}
	h.mu.Unlock()

	for _, fn := range fns {
		fn(s)
	}
	return true
}
