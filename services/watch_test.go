package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentscout/fetcher"
	"rentscout/models"
	"rentscout/search"
	"rentscout/storage"
)

type stubSearcher struct {
	result search.Result
	err    error
	calls  []models.FilterCriteria
}

func (s *stubSearcher) Run(_ context.Context, c models.FilterCriteria) (search.Result, error) {
	s.calls = append(s.calls, c)
	return s.result, s.err
}

// memorySeen mimics seen_listings: an id is new the first time it is marked.
type memorySeen struct {
	seen map[string]bool
	err  error
}

func (m *memorySeen) MarkSeen(_ context.Context, searchID string, records []models.PropertyRecord) ([]string, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.seen == nil {
		m.seen = make(map[string]bool)
	}
	var fresh []string
	for _, rec := range records {
		key := searchID + "/" + rec.ID
		if !m.seen[key] {
			m.seen[key] = true
			fresh = append(fresh, rec.ID)
		}
	}
	return fresh, nil
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newStore(t *testing.T) *storage.SQLiteStore {
	t.Helper()
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "watch.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func records(ids ...string) []models.PropertyRecord {
	out := make([]models.PropertyRecord, 0, len(ids))
	for _, id := range ids {
		out = append(out, models.PropertyRecord{ID: id, Raw: models.RawRecord{"id": id}})
	}
	return out
}

var twoBHK = models.SavedSearch{
	ID:       "two-bhk",
	Name:     "Two BHK flats",
	Enabled:  true,
	Criteria: models.FilterCriteria{Types: []string{"Flats"}, Bedrooms: "2"},
}

func TestRunSavedReportsOnlyNewListings(t *testing.T) {
	store := newStore(t)
	searcher := &stubSearcher{result: search.Result{Records: records("a", "b"), Stage: search.StageBedrooms}}
	seen := &memorySeen{}
	svc := NewWatchService(searcher, store, seen, true, quietLogger())

	first, err := svc.RunSaved(context.Background(), twoBHK)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, first.Run.Status)
	assert.Equal(t, 2, first.Run.ResultsFound)
	assert.Equal(t, 2, first.Run.ResultsNew)
	assert.Equal(t, string(search.StageBedrooms), first.Run.Stage)
	require.Len(t, searcher.calls, 1)
	assert.Equal(t, twoBHK.Criteria, searcher.calls[0])

	searcher.result.Records = records("a", "b", "c")
	second, err := svc.RunSaved(context.Background(), twoBHK)
	require.NoError(t, err)
	assert.Equal(t, 3, second.Run.ResultsFound)
	require.Len(t, second.NewRecords, 1)
	assert.Equal(t, "c", second.NewRecords[0].ID)

	runs, err := store.RecentRuns(twoBHK.ID, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	for _, run := range runs {
		assert.Equal(t, models.RunStatusCompleted, run.Status)
		assert.NotNil(t, run.FinishedAt)
	}

	logs, err := store.LogsForRun(second.Run.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, logs)
}

func TestRunSavedLogsEmptyResult(t *testing.T) {
	store := newStore(t)
	searcher := &stubSearcher{result: search.Result{Stage: search.StageLabels}}
	svc := NewWatchService(searcher, store, &memorySeen{}, false, quietLogger())

	res, err := svc.RunSaved(context.Background(), twoBHK)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, res.Run.Status)
	assert.Zero(t, res.Run.ResultsFound)

	logs, err := store.LogsForRun(res.Run.ID)
	require.NoError(t, err)
	var messages []string
	for _, l := range logs {
		messages = append(messages, l.Message)
	}
	assert.Contains(t, messages, "No properties matched")
}

func TestRunSavedQueuesExport(t *testing.T) {
	store := newStore(t)
	searcher := &stubSearcher{result: search.Result{Records: records("x"), Stage: search.StageUnconstrained}}
	svc := NewWatchService(searcher, store, nil, true, quietLogger())

	res, err := svc.RunSaved(context.Background(), twoBHK)
	require.NoError(t, err)

	pending, err := store.PendingExports(10, 3)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "exports/two-bhk/"+res.Run.ID+".json", pending[0].Key)

	var doc struct {
		SearchID   string             `json:"search_id"`
		RunID      string             `json:"run_id"`
		Stage      string             `json:"stage"`
		NewIDs     []string           `json:"new_ids"`
		Properties []models.RawRecord `json:"properties"`
	}
	require.NoError(t, json.Unmarshal(pending[0].Payload, &doc))
	assert.Equal(t, "two-bhk", doc.SearchID)
	assert.Equal(t, res.Run.ID, doc.RunID)
	assert.Equal(t, "unconstrained", doc.Stage)
	assert.Equal(t, []string{"x"}, doc.NewIDs)
	require.Len(t, doc.Properties, 1)
	assert.Equal(t, "x", doc.Properties[0]["id"])
}

func TestRunSavedWithoutExports(t *testing.T) {
	store := newStore(t)
	searcher := &stubSearcher{result: search.Result{Records: records("x")}}
	svc := NewWatchService(searcher, store, nil, false, quietLogger())

	_, err := svc.RunSaved(context.Background(), twoBHK)
	require.NoError(t, err)

	pending, err := store.PendingExports(10, 3)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestRunSavedRecordsFailure(t *testing.T) {
	store := newStore(t)
	searcher := &stubSearcher{err: &fetcher.FetchError{StatusCode: 503, URL: "http://api/properties/filter"}}
	svc := NewWatchService(searcher, store, nil, true, quietLogger())

	_, err := svc.RunSaved(context.Background(), twoBHK)
	require.Error(t, err)

	runs, err := store.RecentRuns(twoBHK.ID, 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, models.RunStatusFailed, runs[0].Status)
	assert.Equal(t, "request failed with HTTP status 503", runs[0].ErrorMessage)

	pending, err := store.PendingExports(10, 3)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestRunSavedSeenStoreFailure(t *testing.T) {
	store := newStore(t)
	searcher := &stubSearcher{result: search.Result{Records: records("a")}}
	svc := NewWatchService(searcher, store, &memorySeen{err: errors.New("db down")}, false, quietLogger())

	_, err := svc.RunSaved(context.Background(), twoBHK)
	require.Error(t, err)

	runs, err := store.RecentRuns(twoBHK.ID, 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, models.RunStatusFailed, runs[0].Status)
}

func TestRunAllSkipsDisabledAndPaused(t *testing.T) {
	store := newStore(t)
	require.NoError(t, store.SyncSavedSearches([]models.SavedSearch{
		twoBHK,
		{ID: "off", Name: "Disabled", Enabled: false},
	}))
	searcher := &stubSearcher{result: search.Result{Records: records("a")}}
	svc := NewWatchService(searcher, store, nil, false, quietLogger())

	require.NoError(t, svc.RunAll(context.Background()))
	assert.Len(t, searcher.calls, 1)

	require.NoError(t, svc.HandleCommand(context.Background(), &models.Command{Command: models.CmdPause}))
	assert.True(t, svc.IsPaused())
	require.NoError(t, svc.RunAll(context.Background()))
	assert.Len(t, searcher.calls, 1)

	require.NoError(t, svc.HandleCommand(context.Background(), &models.Command{Command: models.CmdResume}))
	assert.False(t, svc.IsPaused())
	require.NoError(t, svc.HandleCommand(context.Background(), &models.Command{Command: models.CmdRunAll}))
	assert.Len(t, searcher.calls, 2)
}

func TestHandleCommandRunSavedSearch(t *testing.T) {
	store := newStore(t)
	require.NoError(t, store.SyncSavedSearches([]models.SavedSearch{twoBHK}))
	searcher := &stubSearcher{result: search.Result{Records: records("a")}}
	svc := NewWatchService(searcher, store, nil, false, quietLogger())

	params, err := json.Marshal(models.CommandParams{SearchID: "two-bhk"})
	require.NoError(t, err)
	require.NoError(t, svc.HandleCommand(context.Background(), &models.Command{Command: models.CmdRunSavedSearch, Params: params}))
	require.Len(t, searcher.calls, 1)

	params, err = json.Marshal(models.CommandParams{SearchID: "nope"})
	require.NoError(t, err)
	err = svc.HandleCommand(context.Background(), &models.Command{Command: models.CmdRunSavedSearch, Params: params})
	assert.ErrorContains(t, err, "unknown saved search")

	err = svc.HandleCommand(context.Background(), &models.Command{Command: "explode"})
	assert.ErrorContains(t, err, "unsupported command")
}
