package auth

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEvents is an in-memory SignInEvents with a manual trigger.
type fakeEvents struct {
	mu        sync.Mutex
	fn        func()
	cancelled bool
}

func (f *fakeEvents) Subscribe(fn func()) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fn = fn
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.cancelled = true
		f.fn = nil
	}
}

func (f *fakeEvents) signIn() {
	f.mu.Lock()
	fn := f.fn
	f.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func TestGate_RunsPendingOnSignIn(t *testing.T) {
	t.Parallel()

	events := &fakeEvents{}
	g := NewGate(events)

	ran := 0
	g.Defer(func() { ran++ })
	require.True(t, g.Pending())

	events.signIn()
	assert.Equal(t, 1, ran)
	assert.False(t, g.Pending())

	// The continuation is consumed; another sign-in must not rerun it.
	events.signIn()
	assert.Equal(t, 1, ran)
}

func TestGate_DeferReplacesPending(t *testing.T) {
	t.Parallel()

	events := &fakeEvents{}
	g := NewGate(events)

	var got string
	g.Defer(func() { got = "first" })
	g.Defer(func() { got = "second" })

	events.signIn()
	assert.Equal(t, "second", got)
}

func TestGate_CloseDropsPendingAndUnsubscribes(t *testing.T) {
	t.Parallel()

	events := &fakeEvents{}
	g := NewGate(events)

	ran := false
	g.Defer(func() { ran = true })
	g.Close()

	assert.True(t, events.cancelled)
	events.signIn()
	assert.False(t, ran)

	g.Defer(func() { ran = true })
	assert.False(t, g.Pending(), "Defer after Close is a no-op")
}
