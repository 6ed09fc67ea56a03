package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentscout/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSavedSearches(t *testing.T) {
	store := newTestStore(t)

	searches := []models.SavedSearch{
		{ID: "b", Name: "Villas", Enabled: true, Criteria: models.FilterCriteria{Types: []string{"Villa"}, Bedrooms: "5+"}},
		{ID: "a", Name: "Off", Enabled: false},
	}
	require.NoError(t, store.SyncSavedSearches(searches))

	all, err := store.ListSavedSearches(false)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "a", all[0].ID)

	enabled, err := store.ListSavedSearches(true)
	require.NoError(t, err)
	require.Len(t, enabled, 1)
	assert.Equal(t, models.BedroomsFivePlus, enabled[0].Criteria.Bedrooms)
	assert.Equal(t, []string{"Villa"}, enabled[0].Criteria.Types)

	searches[1].Enabled = true
	searches[1].Name = "On"
	require.NoError(t, store.SyncSavedSearches(searches[1:]))
	got, err := store.GetSavedSearch("a")
	require.NoError(t, err)
	assert.True(t, got.Enabled)
	assert.Equal(t, "On", got.Name)

	missing, err := store.GetSavedSearch("zzz")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRunsAndLogs(t *testing.T) {
	store := newTestStore(t)

	run := &models.SearchRun{ID: "run-1", SearchID: "s", StartedAt: time.Now(), Status: models.RunStatusRunning}
	require.NoError(t, store.CreateRun(run))

	finished := time.Now()
	run.FinishedAt = &finished
	run.Status = models.RunStatusCompleted
	run.Stage = "types"
	run.ResultsFound = 4
	run.ResultsNew = 1
	require.NoError(t, store.UpdateRun(run))

	require.NoError(t, store.Log(&run.ID, models.LogLevelInfo, "found 4", "s"))

	runs, err := store.RecentRuns("s", 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, models.RunStatusCompleted, runs[0].Status)
	assert.Equal(t, 4, runs[0].ResultsFound)
	assert.NotNil(t, runs[0].FinishedAt)

	logs, err := store.LogsForRun("run-1")
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "found 4", logs[0].Message)
}

func TestExports(t *testing.T) {
	store := newTestStore(t)

	for i, id := range []string{"e1", "e2"} {
		require.NoError(t, store.CreateExport(&models.Export{
			ID: id, RunID: "r", SearchID: "s", Key: "exports/s/" + id + ".json",
			Payload:   []byte(`[]`),
			CreatedAt: time.Now().Add(time.Duration(i) * time.Second),
		}))
	}

	pending, err := store.PendingExports(10, 3)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "e1", pending[0].ID)
	assert.Equal(t, "[]", string(pending[0].Payload))

	require.NoError(t, store.MarkExportUploaded("e1"))
	for i := 0; i < 3; i++ {
		require.NoError(t, store.MarkExportFailed("e2"))
	}

	pending, err = store.PendingExports(10, 3)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestCommands(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.EnqueueCommand(models.CmdRunSavedSearch, models.CommandParams{SearchID: "s1"}))
	cmds, err := store.GetPendingCommands()
	require.NoError(t, err)
	require.Len(t, cmds, 1)
	assert.Equal(t, models.CmdRunSavedSearch, cmds[0].Command)

	params, err := store.ParseCommandParams(&cmds[0])
	require.NoError(t, err)
	assert.Equal(t, "s1", params.SearchID)

	require.NoError(t, store.MarkCommandProcessed(cmds[0].ID))
	cmds, err = store.GetPendingCommands()
	require.NoError(t, err)
	assert.Empty(t, cmds)
}
