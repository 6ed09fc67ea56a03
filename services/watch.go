package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"rentscout/models"
	"rentscout/search"
)

// Searcher runs one search to completion.
type Searcher interface {
	Run(ctx context.Context, c models.FilterCriteria) (search.Result, error)
}

// RunStore is the operational store the watch service records into.
type RunStore interface {
	ListSavedSearches(enabledOnly bool) ([]models.SavedSearch, error)
	GetSavedSearch(id string) (*models.SavedSearch, error)
	CreateRun(run *models.SearchRun) error
	UpdateRun(run *models.SearchRun) error
	Log(runID *string, level models.LogLevel, message, searchID string) error
	CreateExport(e *models.Export) error
	ParseCommandParams(cmd *models.Command) (*models.CommandParams, error)
}

// SeenStore remembers which listings a saved search already reported.
type SeenStore interface {
	MarkSeen(ctx context.Context, searchID string, records []models.PropertyRecord) ([]string, error)
}

// WatchService executes saved searches and reports listings that are new
// since the previous run.
type WatchService struct {
	searcher Searcher
	runs     RunStore
	seen     SeenStore
	exports  bool
	logger   *logrus.Logger
	paused   atomic.Bool
	now      func() time.Time
}

// NewWatchService wires the service. seen may be nil, in which case every
// result counts as new. exports enables queueing a JSON export per run.
func NewWatchService(searcher Searcher, runs RunStore, seen SeenStore, exports bool, logger *logrus.Logger) *WatchService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &WatchService{
		searcher: searcher,
		runs:     runs,
		seen:     seen,
		exports:  exports,
		logger:   logger,
		now:      time.Now,
	}
}

// WatchResult is the outcome of one saved-search run.
type WatchResult struct {
	Run        models.SearchRun
	Records    []models.PropertyRecord
	NewRecords []models.PropertyRecord
}

type exportDocument struct {
	SearchID    string             `json:"search_id"`
	RunID       string             `json:"run_id"`
	Stage       string             `json:"stage"`
	GeneratedAt time.Time          `json:"generated_at"`
	NewIDs      []string           `json:"new_ids"`
	Properties  []models.RawRecord `json:"properties"`
}

func (s *WatchService) RunAll(ctx context.Context) error {
	if s.paused.Load() {
		s.logger.Info("Watch service is paused, skipping run")
		return nil
	}

	searches, err := s.runs.ListSavedSearches(true)
	if err != nil {
		return fmt.Errorf("list saved searches: %w", err)
	}

	for _, saved := range searches {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if _, err := s.RunSaved(ctx, saved); err != nil {
			s.logger.WithError(err).WithField("search_id", saved.ID).Error("Saved search failed")
		}
	}
	return nil
}

func (s *WatchService) RunByID(ctx context.Context, id string) (*WatchResult, error) {
	saved, err := s.runs.GetSavedSearch(id)
	if err != nil {
		return nil, err
	}
	if saved == nil {
		return nil, fmt.Errorf("unknown saved search: %s", id)
	}
	return s.RunSaved(ctx, *saved)
}

// RunSaved executes saved, records the run and its logs, marks results as
// seen and queues an export when enabled.
func (s *WatchService) RunSaved(ctx context.Context, saved models.SavedSearch) (*WatchResult, error) {
	run := &models.SearchRun{
		ID:        uuid.NewString(),
		SearchID:  saved.ID,
		StartedAt: s.now(),
		Status:    models.RunStatusRunning,
	}
	if err := s.runs.CreateRun(run); err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}

	defer func() {
		finished := s.now()
		run.FinishedAt = &finished
		if err := s.runs.UpdateRun(run); err != nil {
			s.logger.WithError(err).WithField("run_id", run.ID).Warn("Failed to update run")
		}
	}()

	s.log(run, models.LogLevelInfo, fmt.Sprintf("Starting saved search %q", saved.Name))

	res, err := s.searcher.Run(ctx, saved.Criteria)
	if err != nil {
		run.Status = models.RunStatusFailed
		run.ErrorMessage = search.ErrorMessage(err)
		s.log(run, models.LogLevelError, fmt.Sprintf("Search failed: %v", err))
		return nil, err
	}
	run.Stage = string(res.Stage)
	run.ResultsFound = len(res.Records)
	if res.Empty() {
		s.log(run, models.LogLevelInfo, "No properties matched")
	}

	fresh := res.Records
	if s.seen != nil {
		ids, err := s.seen.MarkSeen(ctx, saved.ID, res.Records)
		if err != nil {
			run.Status = models.RunStatusFailed
			run.ErrorMessage = err.Error()
			s.log(run, models.LogLevelError, fmt.Sprintf("Mark seen failed: %v", err))
			return nil, fmt.Errorf("mark seen: %w", err)
		}
		fresh = pick(res.Records, ids)
	}
	run.ResultsNew = len(fresh)

	if s.exports {
		if err := s.queueExport(run, res, fresh); err != nil {
			s.log(run, models.LogLevelWarn, fmt.Sprintf("Export not queued: %v", err))
		}
	}

	run.Status = models.RunStatusCompleted
	s.log(run, models.LogLevelInfo, fmt.Sprintf("Completed: %d found, %d new (stage %s)", run.ResultsFound, run.ResultsNew, run.Stage))

	return &WatchResult{Run: *run, Records: res.Records, NewRecords: fresh}, nil
}

func (s *WatchService) queueExport(run *models.SearchRun, res search.Result, fresh []models.PropertyRecord) error {
	doc := exportDocument{
		SearchID:    run.SearchID,
		RunID:       run.ID,
		Stage:       run.Stage,
		GeneratedAt: s.now().UTC(),
		NewIDs:      make([]string, 0, len(fresh)),
		Properties:  models.Records(res.Records),
	}
	for _, rec := range fresh {
		doc.NewIDs = append(doc.NewIDs, rec.ID)
	}

	payload, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	return s.runs.CreateExport(&models.Export{
		ID:        uuid.NewString(),
		RunID:     run.ID,
		SearchID:  run.SearchID,
		Key:       fmt.Sprintf("exports/%s/%s.json", run.SearchID, run.ID),
		Payload:   payload,
		Status:    models.ExportStatusPending,
		CreatedAt: s.now(),
	})
}

// HandleCommand applies a queued command addressed to the watch service.
func (s *WatchService) HandleCommand(ctx context.Context, cmd *models.Command) error {
	params, err := s.runs.ParseCommandParams(cmd)
	if err != nil {
		return err
	}

	switch cmd.Command {
	case models.CmdRunAll:
		return s.RunAll(ctx)
	case models.CmdRunSavedSearch:
		if params.SearchID == "" {
			return s.RunAll(ctx)
		}
		_, err := s.RunByID(ctx, params.SearchID)
		return err
	case models.CmdPause:
		s.paused.Store(true)
		s.logger.Info("Watch service paused")
	case models.CmdResume:
		s.paused.Store(false)
		s.logger.Info("Watch service resumed")
	default:
		return fmt.Errorf("unsupported command: %s", cmd.Command)
	}
	return nil
}

func (s *WatchService) IsPaused() bool {
	return s.paused.Load()
}

func (s *WatchService) log(run *models.SearchRun, level models.LogLevel, message string) {
	entry := s.logger.WithFields(logrus.Fields{"search_id": run.SearchID, "run_id": run.ID})
	switch level {
	case models.LogLevelError:
		entry.Error(message)
	case models.LogLevelWarn:
		entry.Warn(message)
	default:
		entry.Info(message)
	}
	if err := s.runs.Log(&run.ID, level, message, run.SearchID); err != nil {
		entry.WithError(err).Warn("Failed to persist log line")
	}
}

func pick(records []models.PropertyRecord, ids []string) []models.PropertyRecord {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	out := make([]models.PropertyRecord, 0, len(ids))
	for _, rec := range records {
		if want[rec.ID] {
			out = append(out, rec)
		}
	}
	return out
}
