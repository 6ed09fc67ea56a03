package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"rentscout/models"
)

// SQLiteStore holds operational data: saved searches, their runs and logs,
// pending exports and the command queue.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS saved_searches (
		id TEXT PRIMARY KEY,
		name TEXT,
		criteria JSON,
		enabled BOOLEAN DEFAULT TRUE
	);

	CREATE TABLE IF NOT EXISTS search_runs (
		id TEXT PRIMARY KEY,
		search_id TEXT,
		started_at DATETIME,
		finished_at DATETIME,
		status TEXT,
		stage TEXT,
		results_found INTEGER DEFAULT 0,
		results_new INTEGER DEFAULT 0,
		error_message TEXT
	);

	CREATE TABLE IF NOT EXISTS search_logs (
		id INTEGER PRIMARY KEY,
		run_id TEXT,
		timestamp DATETIME,
		level TEXT,
		message TEXT,
		search_id TEXT
	);

	CREATE TABLE IF NOT EXISTS exports (
		id TEXT PRIMARY KEY,
		run_id TEXT,
		search_id TEXT,
		key TEXT,
		payload BLOB,
		status TEXT DEFAULT 'pending',
		attempts INTEGER DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		uploaded_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS commands (
		id INTEGER PRIMARY KEY,
		command TEXT,
		params JSON,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		processed_at DATETIME
	);

	CREATE INDEX IF NOT EXISTS idx_runs_search ON search_runs(search_id, started_at);
	CREATE INDEX IF NOT EXISTS idx_logs_run ON search_logs(run_id, timestamp);
	CREATE INDEX IF NOT EXISTS idx_exports_status ON exports(status, created_at);
	CREATE INDEX IF NOT EXISTS idx_commands_pending ON commands(processed_at) WHERE processed_at IS NULL;
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// Saved searches
// =============================================================================

// SyncSavedSearches upserts the searches declared in the profile.
func (s *SQLiteStore) SyncSavedSearches(searches []models.SavedSearch) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, search := range searches {
		criteria, err := json.Marshal(search.Criteria)
		if err != nil {
			return fmt.Errorf("encode criteria for %s: %w", search.ID, err)
		}
		_, err = tx.Exec(`
			INSERT INTO saved_searches (id, name, criteria, enabled)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name,
				criteria = excluded.criteria,
				enabled = excluded.enabled`,
			search.ID, search.Name, string(criteria), search.Enabled)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) ListSavedSearches(enabledOnly bool) ([]models.SavedSearch, error) {
	query := `SELECT id, name, criteria, enabled FROM saved_searches`
	if enabledOnly {
		query += ` WHERE enabled = TRUE`
	}
	query += ` ORDER BY id`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var searches []models.SavedSearch
	for rows.Next() {
		search, err := scanSavedSearch(rows)
		if err != nil {
			return nil, err
		}
		searches = append(searches, *search)
	}
	return searches, rows.Err()
}

func (s *SQLiteStore) GetSavedSearch(id string) (*models.SavedSearch, error) {
	row := s.db.QueryRow(`SELECT id, name, criteria, enabled FROM saved_searches WHERE id = ?`, id)
	search, err := scanSavedSearch(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return search, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSavedSearch(row scanner) (*models.SavedSearch, error) {
	var search models.SavedSearch
	var name, criteria sql.NullString
	if err := row.Scan(&search.ID, &name, &criteria, &search.Enabled); err != nil {
		return nil, err
	}
	search.Name = name.String
	if criteria.Valid && criteria.String != "" {
		if err := json.Unmarshal([]byte(criteria.String), &search.Criteria); err != nil {
			return nil, fmt.Errorf("decode criteria for %s: %w", search.ID, err)
		}
	}
	return &search, nil
}

// =============================================================================
// Runs and logs
// =============================================================================

func (s *SQLiteStore) CreateRun(run *models.SearchRun) error {
	_, err := s.db.Exec(`
		INSERT INTO search_runs (id, search_id, started_at, status)
		VALUES (?, ?, ?, ?)`,
		run.ID, run.SearchID, run.StartedAt, run.Status)
	return err
}

func (s *SQLiteStore) UpdateRun(run *models.SearchRun) error {
	_, err := s.db.Exec(`
		UPDATE search_runs SET finished_at = ?, status = ?, stage = ?,
			results_found = ?, results_new = ?, error_message = ?
		WHERE id = ?`,
		run.FinishedAt, run.Status, run.Stage, run.ResultsFound, run.ResultsNew, run.ErrorMessage, run.ID)
	return err
}

func (s *SQLiteStore) RecentRuns(searchID string, limit int) ([]models.SearchRun, error) {
	rows, err := s.db.Query(`
		SELECT id, search_id, started_at, finished_at, status, stage, results_found, results_new, error_message
		FROM search_runs WHERE search_id = ? ORDER BY started_at DESC LIMIT ?`, searchID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []models.SearchRun
	for rows.Next() {
		var run models.SearchRun
		var finished sql.NullTime
		var stage, errMsg sql.NullString
		if err := rows.Scan(&run.ID, &run.SearchID, &run.StartedAt, &finished, &run.Status,
			&stage, &run.ResultsFound, &run.ResultsNew, &errMsg); err != nil {
			return nil, err
		}
		if finished.Valid {
			run.FinishedAt = &finished.Time
		}
		run.Stage = stage.String
		run.ErrorMessage = errMsg.String
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (s *SQLiteStore) Log(runID *string, level models.LogLevel, message, searchID string) error {
	_, err := s.db.Exec(`
		INSERT INTO search_logs (run_id, timestamp, level, message, search_id)
		VALUES (?, ?, ?, ?, ?)`,
		runID, time.Now(), level, message, searchID)
	return err
}

func (s *SQLiteStore) LogsForRun(runID string) ([]models.SearchLog, error) {
	rows, err := s.db.Query(`
		SELECT id, run_id, timestamp, level, message, search_id
		FROM search_logs WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []models.SearchLog
	for rows.Next() {
		var l models.SearchLog
		var run sql.NullString
		if err := rows.Scan(&l.ID, &run, &l.Timestamp, &l.Level, &l.Message, &l.SearchID); err != nil {
			return nil, err
		}
		if run.Valid {
			l.RunID = &run.String
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// =============================================================================
// Exports
// =============================================================================

func (s *SQLiteStore) CreateExport(e *models.Export) error {
	_, err := s.db.Exec(`
		INSERT INTO exports (id, run_id, search_id, key, payload, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.RunID, e.SearchID, e.Key, []byte(e.Payload), models.ExportStatusPending, e.CreatedAt)
	return err
}

// PendingExports returns exports not yet uploaded that have failed fewer
// than maxAttempts times, oldest first.
func (s *SQLiteStore) PendingExports(limit, maxAttempts int) ([]models.Export, error) {
	rows, err := s.db.Query(`
		SELECT id, run_id, search_id, key, payload, status, attempts, created_at
		FROM exports
		WHERE status IN ('pending', 'failed') AND attempts < ?
		ORDER BY created_at LIMIT ?`, maxAttempts, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var exports []models.Export
	for rows.Next() {
		var e models.Export
		var payload []byte
		if err := rows.Scan(&e.ID, &e.RunID, &e.SearchID, &e.Key, &payload, &e.Status, &e.Attempts, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Payload = payload
		exports = append(exports, e)
	}
	return exports, rows.Err()
}

func (s *SQLiteStore) MarkExportUploaded(id string) error {
	_, err := s.db.Exec(`
		UPDATE exports SET status = ?, uploaded_at = ?, attempts = attempts + 1 WHERE id = ?`,
		models.ExportStatusUploaded, time.Now(), id)
	return err
}

func (s *SQLiteStore) MarkExportFailed(id string) error {
	_, err := s.db.Exec(`
		UPDATE exports SET status = ?, attempts = attempts + 1 WHERE id = ?`,
		models.ExportStatusFailed, id)
	return err
}

// =============================================================================
// Commands
// =============================================================================

func (s *SQLiteStore) EnqueueCommand(cmd models.CommandType, params models.CommandParams) error {
	data, err := json.Marshal(params)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`INSERT INTO commands (command, params, created_at) VALUES (?, ?, ?)`,
		cmd, string(data), time.Now())
	return err
}

func (s *SQLiteStore) GetPendingCommands() ([]models.Command, error) {
	rows, err := s.db.Query(`
		SELECT id, command, params, created_at
		FROM commands WHERE processed_at IS NULL ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cmds []models.Command
	for rows.Next() {
		var cmd models.Command
		var params sql.NullString
		if err := rows.Scan(&cmd.ID, &cmd.Command, &params, &cmd.CreatedAt); err != nil {
			return nil, err
		}
		if params.Valid {
			cmd.Params = json.RawMessage(params.String)
		}
		cmds = append(cmds, cmd)
	}
	return cmds, rows.Err()
}

func (s *SQLiteStore) MarkCommandProcessed(id int64) error {
	_, err := s.db.Exec(`UPDATE commands SET processed_at = ? WHERE id = ?`, time.Now(), id)
	return err
}

func (s *SQLiteStore) ParseCommandParams(cmd *models.Command) (*models.CommandParams, error) {
	var params models.CommandParams
	if len(cmd.Params) > 0 {
		if err := json.Unmarshal(cmd.Params, &params); err != nil {
			return nil, err
		}
	}
	return &params, nil
}
