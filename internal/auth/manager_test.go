package auth

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider is a scriptable Provider. Refresh mints token values
// ("refreshed-1", "refreshed-2", ...) so tests can tell refreshes apart.
type fakeProvider struct {
	mu           sync.Mutex
	session      *Token
	sessionErr   error
	refreshErr   error
	refreshDelay time.Duration
	validateOK   bool
	refreshes    atomic.Int32
	validates    atomic.Int32
}

func (f *fakeProvider) Session(ctx context.Context) (*Token, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.session, f.sessionErr
}

func (f *fakeProvider) Refresh(ctx context.Context) (*Token, error) {
	n := f.refreshes.Add(1)
	f.mu.Lock()
	delay, refreshErr := f.refreshDelay, f.refreshErr
	f.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}
	if refreshErr != nil {
		return nil, refreshErr
	}
	tok := &Token{Value: "refreshed-" + string(rune('0'+n)), ExpiresAt: time.Now().Add(time.Hour)}
	f.mu.Lock()
	f.session = tok
	f.mu.Unlock()
	return tok, nil
}

func (f *fakeProvider) Validate(ctx context.Context, token string) (bool, error) {
	f.validates.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.validateOK, nil
}

func TestToken_ReturnsValidSessionWithoutRefresh(t *testing.T) {
	t.Parallel()

	p := &fakeProvider{
		session:    &Token{Value: "cached", ExpiresAt: time.Now().Add(time.Hour)},
		validateOK: true,
	}
	m := NewManager(p)

	got, err := m.Token(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, "cached", got)
	assert.Equal(t, int32(0), p.refreshes.Load())
	assert.Equal(t, int32(1), p.validates.Load())
}

func TestToken_NearExpiryTriggersRefresh(t *testing.T) {
	t.Parallel()

	p := &fakeProvider{
		session:    &Token{Value: "stale", ExpiresAt: time.Now().Add(10 * time.Second)},
		validateOK: true,
	}
	m := NewManager(p, WithRefreshThreshold(time.Minute))

	got, err := m.Token(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, "refreshed-1", got)
	assert.Equal(t, int32(1), p.refreshes.Load())
}

func TestToken_InvalidSessionTriggersRefresh(t *testing.T) {
	t.Parallel()

	p := &fakeProvider{
		session: &Token{Value: "revoked", ExpiresAt: time.Now().Add(time.Hour)},
	}
	m := NewManager(p)

	// Validation of the cached token fails, so a refresh runs; the
	// refreshed token fails validation too and the caller is signed out.
	_, err := m.Token(context.Background(), false)
	require.ErrorIs(t, err, ErrAuthRequired)
	assert.Equal(t, int32(1), p.refreshes.Load())
}

func TestToken_ForceRefreshSkipsSessionLookup(t *testing.T) {
	t.Parallel()

	p := &fakeProvider{
		session:    &Token{Value: "cached", ExpiresAt: time.Now().Add(time.Hour)},
		validateOK: true,
	}
	m := NewManager(p)

	got, err := m.Token(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, "refreshed-1", got)
	assert.Equal(t, int32(1), p.refreshes.Load())
}

func TestToken_ConcurrentForceRefreshCoalesces(t *testing.T) {
	t.Parallel()

	p := &fakeProvider{validateOK: true, refreshDelay: 50 * time.Millisecond}
	m := NewManager(p)

	const callers = 10
	results := make([]string, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = m.Token(context.Background(), true)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), p.refreshes.Load(), "all callers must share one provider refresh")
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "refreshed-1", results[i])
	}
}

func TestToken_RefreshFailureSharedByAllWaiters(t *testing.T) {
	t.Parallel()

	p := &fakeProvider{refreshErr: errors.New("refresh_token revoked"), refreshDelay: 20 * time.Millisecond}
	m := NewManager(p)

	const callers = 5
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = m.Token(context.Background(), true)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), p.refreshes.Load())
	for i := 0; i < callers; i++ {
		assert.ErrorIs(t, errs[i], ErrAuthRequired)
	}
}

func TestToken_GraceWindowReusesSettledResult(t *testing.T) {
	t.Parallel()

	p := &fakeProvider{validateOK: true}
	m := NewManager(p, WithReleaseGrace(time.Second))

	_, err := m.Token(context.Background(), true)
	require.NoError(t, err)

	// Well inside the grace window: the settled result is handed back
	// without touching the provider again.
	got, err := m.Token(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, "refreshed-1", got)
	assert.Equal(t, int32(1), p.refreshes.Load())
}

func TestToken_NewRefreshAfterGraceExpires(t *testing.T) {
	t.Parallel()

	p := &fakeProvider{validateOK: true}
	m := NewManager(p, WithReleaseGrace(10*time.Millisecond))

	_, err := m.Token(context.Background(), true)
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)

	got, err := m.Token(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, "refreshed-2", got)
	assert.Equal(t, int32(2), p.refreshes.Load())
}

func TestToken_WaiterCancelled(t *testing.T) {
	t.Parallel()

	p := &fakeProvider{validateOK: true, refreshDelay: 200 * time.Millisecond}
	m := NewManager(p)

	go m.Token(context.Background(), true) //nolint:errcheck

	time.Sleep(20 * time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := m.Token(ctx, true)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrAuthRequired)
}

func TestSubscribe_FiresOnSignInAfterSignedOutPeriod(t *testing.T) {
	t.Parallel()

	p := &fakeProvider{refreshErr: errors.New("revoked")}
	m := NewManager(p, WithReleaseGrace(0))

	var signIns atomic.Int32
	cancel := m.Subscribe(func() { signIns.Add(1) })
	defer cancel()

	_, err := m.Token(context.Background(), true)
	require.ErrorIs(t, err, ErrAuthRequired)
	assert.Equal(t, int32(0), signIns.Load())

	// The user signs back in: the next successful refresh fires subscribers.
	p.mu.Lock()
	p.refreshErr = nil
	p.validateOK = true
	p.mu.Unlock()

	time.Sleep(10 * time.Millisecond)
	_, err = m.Token(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, int32(1), signIns.Load())

	// Routine refreshes with no signed-out period stay quiet.
	time.Sleep(10 * time.Millisecond)
	_, err = m.Token(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, int32(1), signIns.Load())
}

func TestSubscribe_CancelStopsDeliveries(t *testing.T) {
	t.Parallel()

	p := &fakeProvider{refreshErr: errors.New("revoked")}
	m := NewManager(p, WithReleaseGrace(0))

	var signIns atomic.Int32
	cancel := m.Subscribe(func() { signIns.Add(1) })

	_, _ = m.Token(context.Background(), true)
	cancel()

	p.mu.Lock()
	p.refreshErr = nil
	p.validateOK = true
	p.mu.Unlock()

	time.Sleep(10 * time.Millisecond)
	_, err := m.Token(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, int32(0), signIns.Load())
}

func TestNearExpiry(t *testing.T) {
	t.Parallel()

	assert.True(t, (&Token{Value: "t", ExpiresAt: time.Now().Add(30 * time.Second)}).NearExpiry(time.Minute))
	assert.False(t, (&Token{Value: "t", ExpiresAt: time.Now().Add(5 * time.Minute)}).NearExpiry(time.Minute))
	assert.True(t, (&Token{Value: "t"}).NearExpiry(time.Minute), "zero expiry counts as expiring")
}
