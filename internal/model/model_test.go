package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindForStatus(t *testing.T) {
	t.Parallel()

	assert.Equal(t, ErrKindAuth, KindForStatus(401))
	assert.Equal(t, ErrKindAuth, KindForStatus(403))
	assert.Equal(t, ErrKindLimitExceeded, KindForStatus(429))
	assert.Equal(t, ErrKindInvalidInput, KindForStatus(400))
	assert.Equal(t, ErrKindNetwork, KindForStatus(500))
	assert.Equal(t, ErrKindNetwork, KindForStatus(503))
	assert.Equal(t, ErrKindUnknown, KindForStatus(404))
	assert.Equal(t, ErrKindUnknown, KindForStatus(200))
}

func TestScanUsage(t *testing.T) {
	t.Parallel()

	assert.False(t, ScanUsage{Used: 4, Limit: 5}.Exhausted())
	assert.True(t, ScanUsage{Used: 5, Limit: 5}.Exhausted())
	assert.True(t, ScanUsage{Used: 9, Limit: 5}.Exhausted())

	assert.Equal(t, 1, ScanUsage{Used: 4, Limit: 5}.Remaining())
	assert.Equal(t, 0, ScanUsage{Used: 9, Limit: 5}.Remaining())
}

func TestIsWeekend(t *testing.T) {
	t.Parallel()

	assert.False(t, IsWeekend("2026-01-14"), "Wednesday")
	assert.True(t, IsWeekend("2026-01-17"), "Saturday")
	assert.True(t, IsWeekend("2026-01-18"), "Sunday")
	assert.False(t, IsWeekend("not-a-date"), "unparseable dates count as weekdays")
	assert.False(t, IsWeekend(""))
}
