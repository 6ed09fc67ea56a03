package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"rentscout/models"
)

// History exposes recorded saved search runs and queues new ones. The
// daemon's SQLite store implements it.
type History interface {
	RecentRuns(searchID string, limit int) ([]models.SearchRun, error)
	LogsForRun(runID string) ([]models.SearchLog, error)
	EnqueueCommand(cmd models.CommandType, params models.CommandParams) error
}

// PauseReporter reports whether scheduled runs are paused.
type PauseReporter interface {
	IsPaused() bool
}

// RouterOption mounts optional parts of the API.
type RouterOption func(*handlers)

// WithHistory mounts the saved search run routes.
func WithHistory(h History) RouterOption {
	return func(hs *handlers) { hs.history = h }
}

// WithWatch adds the watch state to the health response.
func WithWatch(w PauseReporter) RouterOption {
	return func(hs *handlers) { hs.watch = w }
}

type runsResponse struct {
	Runs []models.SearchRun `json:"runs"`
}

type logsResponse struct {
	Logs []models.SearchLog `json:"logs"`
}

func (h *handlers) runs(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r.URL.Query().Get("limit"))
	if err != nil || limit < 0 {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	if limit == 0 {
		limit = 20
	}

	runs, err := h.history.RecentRuns(chi.URLParam(r, "id"), limit)
	if err != nil {
		h.internal(w, r, err)
		return
	}
	if runs == nil {
		runs = []models.SearchRun{}
	}
	respondJSON(w, http.StatusOK, runsResponse{Runs: runs})
}

func (h *handlers) runLogs(w http.ResponseWriter, r *http.Request) {
	logs, err := h.history.LogsForRun(chi.URLParam(r, "id"))
	if err != nil {
		h.internal(w, r, err)
		return
	}
	if logs == nil {
		logs = []models.SearchLog{}
	}
	respondJSON(w, http.StatusOK, logsResponse{Logs: logs})
}

// triggerRun queues a run for the daemon's command poller instead of
// running the search inside the request.
func (h *handlers) triggerRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.history.EnqueueCommand(models.CmdRunSavedSearch, models.CommandParams{SearchID: id}); err != nil {
		h.internal(w, r, err)
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]string{"status": "queued", "search_id": id})
}

func (h *handlers) internal(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.WithError(err).WithField("path", r.URL.Path).Error("Run history request failed")
	writeError(w, http.StatusInternalServerError, "internal error")
}
