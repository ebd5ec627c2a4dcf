package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStateHolderStartsIdle(t *testing.T) {
	h := newStateHolder()
	assert.Equal(t, StatusIdle, h.Get().Status)
}

func TestStateHolderNotifiesSubscribers(t *testing.T) {
	h := newStateHolder()

	var seen []State
	unsub := h.Subscribe(func(s State) { seen = append(seen, s) })

	h.set(State{RequestID: 1, Status: StatusPending})
	h.set(State{RequestID: 1, Status: StatusReady})

	assert.Len(t, seen, 2)
	assert.Equal(t, StatusReady, seen[1].Status)

	unsub()
	h.set(State{RequestID: 2, Status: StatusPending})
	assert.Len(t, seen, 2, "unsubscribed callback must not fire")
}

func TestStateHolderDiscardsStaleResults(t *testing.T) {
	h := newStateHolder()

	assert.True(t, h.set(State{RequestID: 2, Status: StatusPending}))
	assert.False(t, h.set(State{RequestID: 1, Status: StatusReady}),
		"result for a superseded request must be discarded")

	got := h.Get()
	assert.Equal(t, uint64(2), got.RequestID)
	assert.Equal(t, StatusPending, got.Status)
}
