package mapping

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shiftbook/rosterscan/internal/model"
)

type fakeAliasStore struct {
	saved   map[string]string
	failFor map[string]error
}

func newFakeAliasStore() *fakeAliasStore {
	return &fakeAliasStore{saved: make(map[string]string), failFor: make(map[string]error)}
}

func (f *fakeAliasStore) UpsertAlias(ctx context.Context, userID, alias, jobConfigID string) error {
	if err := f.failFor[alias]; err != nil {
		return err
	}
	f.saved[alias] = jobConfigID
	return nil
}

func TestReconcile_ClearsStaleMappingsOnly(t *testing.T) {
	t.Parallel()

	hours := 6.5
	shifts := []model.ParsedShift{
		{ID: "s1", Date: "2026-01-12", RosterJobName: "Bar", MappedJobID: "job-bar", Selected: true, TotalHours: &hours},
		{ID: "s2", Date: "2026-01-13", RosterJobName: "Door", MappedJobID: "job-deleted", StartTime: "18:00"},
		{ID: "s3", Date: "2026-01-14", RosterJobName: "Floor"},
	}
	known := map[string]struct{}{"job-bar": {}}

	out := Reconcile(shifts, known)

	require.Len(t, out, 3)
	assert.Equal(t, "job-bar", out[0].MappedJobID)
	assert.Equal(t, "", out[1].MappedJobID, "unknown job id must be cleared")
	assert.Equal(t, "", out[2].MappedJobID)

	// Everything else survives untouched.
	assert.Equal(t, "Door", out[1].RosterJobName)
	assert.Equal(t, "18:00", out[1].StartTime)
	assert.True(t, out[0].Selected)
	assert.Equal(t, &hours, out[0].TotalHours)
}

func TestCollectUnmapped_DistinctFirstOccurrenceOrder(t *testing.T) {
	t.Parallel()

	shifts := []model.ParsedShift{
		{ID: "s1", RosterJobName: "Door"},
		{ID: "s2", RosterJobName: "Bar", MappedJobID: "job-bar"},
		{ID: "s3", RosterJobName: "Floor"},
		{ID: "s4", RosterJobName: "Door"},
		{ID: "s5", RosterJobName: "Kitchen"},
	}

	assert.Equal(t, []string{"Door", "Floor", "Kitchen"}, CollectUnmapped(shifts))
}

func TestCollectUnmapped_AllMapped(t *testing.T) {
	t.Parallel()

	shifts := []model.ParsedShift{{ID: "s1", RosterJobName: "Bar", MappedJobID: "job-bar"}}
	assert.Empty(t, CollectUnmapped(shifts))
}

func TestApplyMappings(t *testing.T) {
	t.Parallel()

	shifts := []model.ParsedShift{
		{ID: "s1", RosterJobName: "Door"},
		{ID: "s2", RosterJobName: "Bar", MappedJobID: "job-bar"},
		{ID: "s3", RosterJobName: "Mystery"},
	}
	mappings := []model.JobMapping{
		{RosterJobName: "Door", JobConfigID: "job-security"},
	}

	out := ApplyMappings(shifts, mappings)

	assert.Equal(t, "job-security", out[0].MappedJobID)
	assert.Equal(t, "job-bar", out[1].MappedJobID)
	assert.Equal(t, "", out[2].MappedJobID, "unmatched shift passes through")
}

func TestPersistAliases_BestEffort(t *testing.T) {
	t.Parallel()

	store := newFakeAliasStore()
	store.failFor["Door"] = errors.New("connection reset")
	r := NewReconciler(store)

	mappings := []model.JobMapping{
		{RosterJobName: "Door", JobConfigID: "job-security", SaveAsAlias: true},
		{RosterJobName: "Bar", JobConfigID: "job-bar", SaveAsAlias: true},
		{RosterJobName: "Floor", JobConfigID: "job-floor"},
	}

	err := r.PersistAliases(context.Background(), "user-1", mappings)

	require.Error(t, err, "first failure is surfaced for a warning")
	assert.Equal(t, map[string]string{"Bar": "job-bar"}, store.saved,
		"later aliases still save, unflagged mappings are skipped")
}

func TestPersistAliases_NothingFlagged(t *testing.T) {
	t.Parallel()

	store := newFakeAliasStore()
	r := NewReconciler(store)

	err := r.PersistAliases(context.Background(), "user-1",
		[]model.JobMapping{{RosterJobName: "Bar", JobConfigID: "job-bar"}})

	require.NoError(t, err)
	assert.Empty(t, store.saved)
}
