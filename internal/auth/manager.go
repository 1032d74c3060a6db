package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ErrAuthRequired means no usable token could be obtained. Callers must not
// treat it as retryable; the user has to sign in again.
var ErrAuthRequired = errors.New("auth: authentication required")

const (
	// defaultRefreshThreshold is how close to expiry a token may be before
	// it is refreshed instead of validated.
	defaultRefreshThreshold = 60 * time.Second
	// defaultReleaseGrace keeps a settled refresh result visible to
	// closely-spaced callers so they do not race into a second refresh.
	defaultReleaseGrace = 100 * time.Millisecond
)

type pendingRefresh struct {
	done chan struct{}
	tok  *Token
	err  error
}

// Manager obtains, validates, and refreshes tokens. At most one refresh is
// in flight per Manager at a time; every Manager intended to guard a shared
// auth backend must itself be shared by all callers.
type Manager struct {
	provider         Provider
	refreshThreshold time.Duration
	releaseGrace     time.Duration

	mu        sync.Mutex
	pending   *pendingRefresh
	signedOut bool
	nextSubID int
	subs      map[int]func()
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithRefreshThreshold overrides the near-expiry refresh window.
func WithRefreshThreshold(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d > 0 {
			m.refreshThreshold = d
		}
	}
}

// WithReleaseGrace overrides the post-refresh grace period during which
// subsequent callers still receive the settled result.
func WithReleaseGrace(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d >= 0 {
			m.releaseGrace = d
		}
	}
}

// NewManager creates a token Manager for the given auth provider.
func NewManager(provider Provider, opts ...ManagerOption) *Manager {
	m := &Manager{
		provider:         provider,
		refreshThreshold: defaultRefreshThreshold,
		releaseGrace:     defaultReleaseGrace,
		subs:             make(map[int]func()),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Token returns a usable bearer token. With forceRefresh false, a cached
// session token outside the refresh window is validated and returned as-is;
// otherwise a refresh is performed. Concurrent refreshes are coalesced into
// one provider call whose result every waiter shares. Returns
// ErrAuthRequired when no token can be obtained.
func (m *Manager) Token(ctx context.Context, forceRefresh bool) (string, error) {
	if !forceRefresh {
		tok, err := m.provider.Session(ctx)
		if err != nil {
			zap.L().Warn("auth: session lookup failed", zap.Error(err))
		}
		if tok != nil && !tok.NearExpiry(m.refreshThreshold) {
			ok, err := m.provider.Validate(ctx, tok.Value)
			if err != nil {
				zap.L().Warn("auth: token validation failed", zap.Error(err))
			}
			if ok {
				return tok.Value, nil
			}
		}
	}

	tok, err := m.refresh(ctx)
	if err != nil {
		return "", err
	}
	if tok == nil {
		return "", ErrAuthRequired
	}
	return tok.Value, nil
}

// refresh performs or joins the single in-flight refresh.
func (m *Manager) refresh(ctx context.Context) (*Token, error) {
	m.mu.Lock()
	if p := m.pending; p != nil {
		m.mu.Unlock()
		select {
		case <-p.done:
			return p.tok, p.err
		case <-ctx.Done():
			return nil, eris.Wrap(ctx.Err(), "auth: refresh wait")
		}
	}

	p := &pendingRefresh{done: make(chan struct{})}
	m.pending = p
	m.mu.Unlock()

	p.tok, p.err = m.doRefresh(ctx)
	close(p.done)

	// Hold the slot for a short grace period so closely-spaced callers get
	// the settled result instead of issuing another refresh.
	go func() {
		time.Sleep(m.releaseGrace)
		m.mu.Lock()
		if m.pending == p {
			m.pending = nil
		}
		m.mu.Unlock()
	}()

	return p.tok, p.err
}

func (m *Manager) doRefresh(ctx context.Context) (*Token, error) {
	tok, err := m.provider.Refresh(ctx)
	if err != nil {
		zap.L().Warn("auth: token refresh failed", zap.Error(err))
		m.markSignedOut()
		return nil, ErrAuthRequired
	}
	if tok == nil || tok.Value == "" {
		m.markSignedOut()
		return nil, ErrAuthRequired
	}

	ok, err := m.provider.Validate(ctx, tok.Value)
	if err != nil {
		zap.L().Warn("auth: refreshed token validation failed", zap.Error(err))
	}
	if !ok {
		m.markSignedOut()
		return nil, ErrAuthRequired
	}
	m.markSignedIn()
	return tok, nil
}

// Subscribe registers a callback fired when the user signs back in after a
// signed-out period. Satisfies SignInEvents for the Gate.
func (m *Manager) Subscribe(fn func()) (cancel func()) {
	m.mu.Lock()
	id := m.nextSubID
	m.nextSubID++
	m.subs[id] = fn
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

func (m *Manager) markSignedOut() {
	m.mu.Lock()
	m.signedOut = true
	m.mu.Unlock()
}

// markSignedIn fires sign-in subscribers iff a signed-out period just ended.
func (m *Manager) markSignedIn() {
	m.mu.Lock()
	wasOut := m.signedOut
	m.signedOut = false
	var fns []func()
	if wasOut {
		for _, fn := range m.subs {
			fns = append(fns, fn)
		}
	}
	m.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}
