package auth

import "sync"

// SignInEvents is the stream of sign-in notifications from the auth backend.
// Subscribe registers a callback and returns a cancel function that stops
// further deliveries.
type SignInEvents interface {
	Subscribe(fn func()) (cancel func())
}

// Gate holds at most one pending continuation to run when the user next
// signs in. A new Defer replaces any continuation already waiting; each
// continuation runs at most once.
type Gate struct {
	mu      sync.Mutex
	pending func()
	cancel  func()
	closed  bool
}

// NewGate subscribes to sign-in events and returns a Gate.
func NewGate(events SignInEvents) *Gate {
	g := &Gate{}
	g.cancel = events.Subscribe(g.fire)
	return g
}

// Defer stores fn to run on the next sign-in, replacing any pending
// continuation. No-op after Close.
func (g *Gate) Defer(fn func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return
	}
	g.pending = fn
}

// Pending reports whether a continuation is waiting for sign-in.
func (g *Gate) Pending() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pending != nil
}

// Close cancels the subscription and drops any pending continuation.
func (g *Gate) Close() {
	g.mu.Lock()
	cancel := g.cancel
	g.cancel = nil
	g.pending = nil
	g.closed = true
	g.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (g *Gate) fire() {
	g.mu.Lock()
	fn := g.pending
	g.pending = nil
	g.mu.Unlock()
	if fn != nil {
		fn()
	}
}
