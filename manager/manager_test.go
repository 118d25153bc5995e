package manager

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStopWithoutRunningDispatcher(t *testing.T) {
	m := New(nil, nil, time.Second, nil)

	err := m.Stop(context.Background(), 1, "telegram")
	assert.ErrorIs(t, err, ErrNotRunning)
}

func TestDispatcherForUnknownPair(t *testing.T) {
	m := New(nil, nil, time.Second, nil)

	_, ok := m.DispatcherFor(1, "telegram")
	assert.False(t, ok)
	assert.False(t, m.Running(1, "telegram"))
}

func TestStartIsNoOpWhenAlreadyRunning(t *testing.T) {
	m := New(nil, nil, time.Second, nil)

	key := botKey{tenantID: 1, channel: "telegram"}
	m.bots[key] = &runningBot{cancel: func() {}, done: make(chan struct{})}

	// The slot check happens before any database or builder work, so a
	// nil db never gets touched.
	err := m.Start(context.Background(), 1, "telegram")
	assert.NoError(t, err)
	assert.Len(t, m.bots, 1)
}

func TestDispatcherForHidesSlotStillBeingBuilt(t *testing.T) {
	m := New(nil, nil, time.Second, nil)

	key := botKey{tenantID: 1, channel: "telegram"}
	m.bots[key] = &runningBot{cancel: func() {}, done: make(chan struct{})}

	_, ok := m.DispatcherFor(1, "telegram")
	assert.False(t, ok)
	assert.False(t, m.Running(1, "telegram"))
}
