// Package quota enforces the monthly scan allowance before any network
// round-trip is made.
package quota

import (
	"sync"

	"go.uber.org/zap"

	"github.com/shiftbook/rosterscan/internal/model"
)

// Config tunes the quota gate.
type Config struct {
	// DefaultLimit is the monthly allowance when the profile carries none.
	DefaultLimit int `yaml:"default_limit" mapstructure:"default_limit"`
	// UnlimitedAccounts lists account ids whose advertised limit is
	// replaced by UnlimitedCeiling.
	UnlimitedAccounts []string `yaml:"unlimited_accounts" mapstructure:"unlimited_accounts"`
	// UnlimitedCeiling is the fixed in-app ceiling for designated accounts.
	UnlimitedCeiling int `yaml:"unlimited_ceiling" mapstructure:"unlimited_ceiling"`
}

// Gate tracks a single user's scan usage and refuses scans locally once the
// allowance is spent.
type Gate struct {
	mu        sync.Mutex
	usage     model.ScanUsage
	userID    string
	ceiling   int
	unlimited bool
}

// NewGate creates a Gate seeded with the given usage.
func NewGate(userID string, usage model.ScanUsage, cfg Config) *Gate {
	g := &Gate{userID: userID, usage: usage, ceiling: cfg.UnlimitedCeiling}
	if g.usage.Limit <= 0 {
		g.usage.Limit = cfg.DefaultLimit
	}
	for _, id := range cfg.UnlimitedAccounts {
		if id == userID {
			g.unlimited = true
			break
		}
	}
	g.applyOverride()
	return g
}

// Allowed reports whether a scan may start. Must be checked before phase1
// so exhausted quotas fail without a network call.
func (g *Gate) Allowed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return !g.usage.Exhausted()
}

// Usage returns the current usage snapshot.
func (g *Gate) Usage() model.ScanUsage {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.usage
}

// Update applies quota figures advertised by a phase1 response. Nil fields
// leave the corresponding value unchanged.
func (g *Gate) Update(scansUsed, scanLimit *int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if scansUsed != nil {
		g.usage.Used = *scansUsed
	}
	if scanLimit != nil {
		g.usage.Limit = *scanLimit
	}
	g.applyOverride()
	zap.L().Debug("quota: usage updated",
		zap.String("user", g.userID),
		zap.Int("used", g.usage.Used),
		zap.Int("limit", g.usage.Limit))
}

// applyOverride replaces the advertised limit for designated accounts.
// Callers hold g.mu or have exclusive access.
func (g *Gate) applyOverride() {
	if g.unlimited && g.ceiling > 0 {
		g.usage.Limit = g.ceiling
	}
}
