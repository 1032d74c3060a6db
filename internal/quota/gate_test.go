package quota

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/shiftbook/rosterscan/internal/model"
)

func intPtr(n int) *int { return &n }

func TestGate_Allowed(t *testing.T) {
	t.Parallel()

	cfg := Config{DefaultLimit: 5}

	g := NewGate("user-1", model.ScanUsage{Used: 4, Limit: 5}, cfg)
	assert.True(t, g.Allowed())

	g = NewGate("user-1", model.ScanUsage{Used: 5, Limit: 5}, cfg)
	assert.False(t, g.Allowed(), "used == limit exhausts the allowance")

	g = NewGate("user-1", model.ScanUsage{Used: 7, Limit: 5}, cfg)
	assert.False(t, g.Allowed())
}

func TestGate_SeedsDefaultLimit(t *testing.T) {
	t.Parallel()

	g := NewGate("user-1", model.ScanUsage{Used: 2}, Config{DefaultLimit: 5})
	assert.Equal(t, model.ScanUsage{Used: 2, Limit: 5}, g.Usage())
}

func TestGate_UnlimitedAccountCeiling(t *testing.T) {
	t.Parallel()

	cfg := Config{
		DefaultLimit:      5,
		UnlimitedAccounts: []string{"vip-user"},
		UnlimitedCeiling:  1000,
	}

	g := NewGate("vip-user", model.ScanUsage{Used: 6, Limit: 5}, cfg)
	assert.True(t, g.Allowed())
	assert.Equal(t, 1000, g.Usage().Limit)

	// Server-advertised limits never shrink a designated account.
	g.Update(intPtr(900), intPtr(5))
	assert.Equal(t, model.ScanUsage{Used: 900, Limit: 1000}, g.Usage())

	// Other users keep the advertised figures.
	plain := NewGate("user-1", model.ScanUsage{Used: 0, Limit: 5}, cfg)
	plain.Update(intPtr(3), intPtr(10))
	assert.Equal(t, model.ScanUsage{Used: 3, Limit: 10}, plain.Usage())
}

func TestGate_UpdateNilFieldsLeaveValues(t *testing.T) {
	t.Parallel()

	g := NewGate("user-1", model.ScanUsage{Used: 2, Limit: 5}, Config{})

	g.Update(intPtr(3), nil)
	assert.Equal(t, model.ScanUsage{Used: 3, Limit: 5}, g.Usage())

	g.Update(nil, intPtr(8))
	assert.Equal(t, model.ScanUsage{Used: 3, Limit: 8}, g.Usage())

	g.Update(nil, nil)
	assert.Equal(t, model.ScanUsage{Used: 3, Limit: 8}, g.Usage())
}
