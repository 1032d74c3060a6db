// Package mapping reconciles roster-specific job labels against the user's
// known job configurations and persists confirmed aliases.
package mapping

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/shiftbook/rosterscan/internal/model"
)

// AliasStore is the persistence surface the reconciler needs.
type AliasStore interface {
	UpsertAlias(ctx context.Context, userID, alias, jobConfigID string) error
}

// Reconciler maps roster job labels to job config ids and remembers
// user-confirmed mappings as aliases.
type Reconciler struct {
	store AliasStore
}

// NewReconciler creates a Reconciler backed by the given alias store.
func NewReconciler(store AliasStore) *Reconciler {
	return &Reconciler{store: store}
}

// Reconcile clears MappedJobID on any shift whose mapped id is not in
// knownJobIDs. All other fields pass through untouched.
func Reconcile(shifts []model.ParsedShift, knownJobIDs map[string]struct{}) []model.ParsedShift {
	out := make([]model.ParsedShift, len(shifts))
	for i, s := range shifts {
		if s.MappedJobID != "" {
			if _, ok := knownJobIDs[s.MappedJobID]; !ok {
				zap.L().Debug("mapping: clearing stale job reference",
					zap.String("shift", s.ID), zap.String("job", s.MappedJobID))
				s.MappedJobID = ""
			}
		}
		out[i] = s
	}
	return out
}

// CollectUnmapped returns the distinct roster job names among shifts with no
// mapped job, in first-occurrence order.
func CollectUnmapped(shifts []model.ParsedShift) []string {
	seen := make(map[string]struct{})
	var names []string
	for _, s := range shifts {
		if s.MappedJobID != "" {
			continue
		}
		if _, ok := seen[s.RosterJobName]; ok {
			continue
		}
		seen[s.RosterJobName] = struct{}{}
		names = append(names, s.RosterJobName)
	}
	return names
}

// ApplyMappings sets MappedJobID on every shift whose roster job name has a
// mapping. Unmatched shifts pass through unchanged.
func ApplyMappings(shifts []model.ParsedShift, mappings []model.JobMapping) []model.ParsedShift {
	byName := make(map[string]string, len(mappings))
	for _, m := range mappings {
		byName[m.RosterJobName] = m.JobConfigID
	}
	out := make([]model.ParsedShift, len(shifts))
	for i, s := range shifts {
		if id, ok := byName[s.RosterJobName]; ok {
			s.MappedJobID = id
		}
		out[i] = s
	}
	return out
}

// PersistAliases upserts one alias per mapping flagged save-as-alias.
// Persistence is best effort: a failure is reported to the caller for a
// warning but must never fail the pipeline.
func (r *Reconciler) PersistAliases(ctx context.Context, userID string, mappings []model.JobMapping) error {
	var firstErr error
	for _, m := range mappings {
		if !m.SaveAsAlias {
			continue
		}
		if err := r.store.UpsertAlias(ctx, userID, m.RosterJobName, m.JobConfigID); err != nil {
			zap.L().Warn("mapping: alias save failed",
				zap.String("alias", m.RosterJobName), zap.Error(err))
			if firstErr == nil {
				firstErr = eris.Wrapf(err, "mapping: save alias %q", m.RosterJobName)
			}
		}
	}
	return firstErr
}
