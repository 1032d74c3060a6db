// Package store persists the state that outlives a single pipeline run:
// job aliases, the saved roster identifier, and monthly scan counters.
package store

import (
	"context"
	"time"

	"github.com/shiftbook/rosterscan/internal/model"
)

// Profile is a user's persisted record.
type Profile struct {
	UserID           string
	RosterIdentifier []byte
	ScansUsed        int
	ScanLimit        int
	UpdatedAt        time.Time
}

// Store defines the persistence interface for the scan pipeline.
type Store interface {
	// Aliases
	UpsertAlias(ctx context.Context, userID, alias, jobConfigID string) error
	ListAliases(ctx context.Context, userID string) ([]model.JobAlias, error)
	DeleteAlias(ctx context.Context, userID, alias string) error

	// Profile
	GetProfile(ctx context.Context, userID string) (*Profile, error)
	SaveRosterIdentifier(ctx context.Context, userID string, blob []byte) error
	SetScanUsage(ctx context.Context, userID string, used, limit int) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
