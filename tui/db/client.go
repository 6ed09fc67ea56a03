package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "modernc.org/sqlite"
)

// Client reads the daemon's SQLite database and, when configured, the
// seen_listings table in Postgres.
type Client struct {
	sqlite *sql.DB
	pg     *pgxpool.Pool
	ctx    context.Context
}

type SavedSearchStats struct {
	ID            string
	Name          string
	Enabled       bool
	LastRunAt     *time.Time
	LastRunStatus *string
	LastStage     string
	LastFound     int
	LastNew       int
	Runs          int
	SuccessRate   float64
}

type SearchRun struct {
	ID           string
	SearchID     string
	StartedAt    time.Time
	FinishedAt   *time.Time
	Status       string
	Stage        string
	ResultsFound int
	ResultsNew   int
	ErrorMessage string
}

type SearchLog struct {
	ID        int64
	RunID     *string
	Timestamp time.Time
	Level     string
	Message   string
	SearchID  *string
}

type SeenListing struct {
	SearchID    string
	RecordID    string
	TypeSlug    string
	Bedrooms    *float64
	Price       *float64
	Title       string
	FirstSeenAt time.Time
	LastSeenAt  time.Time
}

// New opens sqlitePath and, if postgresURL is non-empty, a Postgres pool.
func New(sqlitePath, postgresURL string) (*Client, error) {
	ctx := context.Background()

	sqliteDB, err := sql.Open("sqlite", sqlitePath)
	if err != nil {
		return nil, err
	}

	c := &Client{sqlite: sqliteDB, ctx: ctx}
	if postgresURL != "" {
		pool, err := pgxpool.New(ctx, postgresURL)
		if err != nil {
			sqliteDB.Close()
			return nil, err
		}
		c.pg = pool
	}
	return c, nil
}

func (c *Client) Close() error {
	if c.pg != nil {
		c.pg.Close()
	}
	return c.sqlite.Close()
}

// HasPostgres reports whether seen listings can be browsed.
func (c *Client) HasPostgres() bool {
	return c.pg != nil
}

func (c *Client) GetSavedSearchStats() ([]SavedSearchStats, error) {
	rows, err := c.sqlite.Query(`
		SELECT s.id, COALESCE(s.name, ''), COALESCE(s.enabled, 1),
			(SELECT COUNT(*) FROM search_runs r WHERE r.search_id = s.id),
			(SELECT COUNT(*) FROM search_runs r WHERE r.search_id = s.id AND r.status = 'completed')
		FROM saved_searches s ORDER BY s.id
	`)
	if err != nil {
		return nil, err
	}

	var stats []SavedSearchStats
	for rows.Next() {
		var s SavedSearchStats
		var completed int
		if err := rows.Scan(&s.ID, &s.Name, &s.Enabled, &s.Runs, &completed); err != nil {
			rows.Close()
			return nil, err
		}
		if s.Runs > 0 {
			s.SuccessRate = float64(completed) / float64(s.Runs)
		}
		stats = append(stats, s)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range stats {
		var startedAt, status, stage sql.NullString
		var found, fresh sql.NullInt64
		err := c.sqlite.QueryRow(`
			SELECT started_at, status, stage, results_found, results_new
			FROM search_runs WHERE search_id = ? ORDER BY started_at DESC LIMIT 1
		`, stats[i].ID).Scan(&startedAt, &status, &stage, &found, &fresh)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return nil, err
		}
		if t, ok := parseTime(startedAt); ok {
			stats[i].LastRunAt = &t
		}
		if status.Valid {
			stats[i].LastRunStatus = &status.String
		}
		stats[i].LastStage = stage.String
		stats[i].LastFound = int(found.Int64)
		stats[i].LastNew = int(fresh.Int64)
	}
	return stats, nil
}

func (c *Client) GetRecentRuns(limit int) ([]SearchRun, error) {
	rows, err := c.sqlite.Query(`
		SELECT id, search_id, started_at, finished_at, status, COALESCE(stage, ''),
			results_found, results_new, COALESCE(error_message, '')
		FROM search_runs ORDER BY started_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []SearchRun
	for rows.Next() {
		var r SearchRun
		var startedAt, finishedAt sql.NullString
		err := rows.Scan(&r.ID, &r.SearchID, &startedAt, &finishedAt, &r.Status, &r.Stage,
			&r.ResultsFound, &r.ResultsNew, &r.ErrorMessage)
		if err != nil {
			return nil, err
		}
		r.StartedAt, _ = parseTime(startedAt)
		if t, ok := parseTime(finishedAt); ok {
			r.FinishedAt = &t
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRecentLogs returns the newest log lines, optionally of one level.
func (c *Client) GetRecentLogs(limit int, level *string) ([]SearchLog, error) {
	var rows *sql.Rows
	var err error
	if level != nil {
		rows, err = c.sqlite.Query(`
			SELECT id, run_id, timestamp, level, message, search_id
			FROM search_logs WHERE level = ? ORDER BY timestamp DESC, id DESC LIMIT ?
		`, *level, limit)
	} else {
		rows, err = c.sqlite.Query(`
			SELECT id, run_id, timestamp, level, message, search_id
			FROM search_logs ORDER BY timestamp DESC, id DESC LIMIT ?
		`, limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []SearchLog
	for rows.Next() {
		var l SearchLog
		var ts, runID, searchID sql.NullString
		if err := rows.Scan(&l.ID, &runID, &ts, &l.Level, &l.Message, &searchID); err != nil {
			return nil, err
		}
		l.Timestamp, _ = parseTime(ts)
		if runID.Valid {
			l.RunID = &runID.String
		}
		if searchID.Valid {
			l.SearchID = &searchID.String
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

func (c *Client) GetPendingExportCount() (int, error) {
	var count int
	err := c.sqlite.QueryRow(`SELECT COUNT(*) FROM exports WHERE status != 'uploaded'`).Scan(&count)
	return count, err
}

func (c *Client) GetSeenListings(limit, offset int) ([]SeenListing, error) {
	if c.pg == nil {
		return nil, nil
	}
	rows, err := c.pg.Query(c.ctx, `
		SELECT search_id, record_id, COALESCE(type_slug, ''), bedrooms, price,
			COALESCE(raw->>'title', ''), first_seen_at, last_seen_at
		FROM seen_listings ORDER BY first_seen_at DESC LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var listings []SeenListing
	for rows.Next() {
		var s SeenListing
		if err := rows.Scan(&s.SearchID, &s.RecordID, &s.TypeSlug, &s.Bedrooms, &s.Price,
			&s.Title, &s.FirstSeenAt, &s.LastSeenAt); err != nil {
			return nil, err
		}
		listings = append(listings, s)
	}
	return listings, rows.Err()
}

func (c *Client) GetSeenCount() (int, error) {
	if c.pg == nil {
		return 0, nil
	}
	var count int
	err := c.pg.QueryRow(c.ctx, `SELECT COUNT(*) FROM seen_listings`).Scan(&count)
	return count, err
}

// SendCommand queues a command for the daemon, which polls the table.
func (c *Client) SendCommand(command string, params map[string]any) error {
	var paramsJSON []byte
	if len(params) > 0 {
		var err error
		if paramsJSON, err = json.Marshal(params); err != nil {
			return err
		}
	}
	_, err := c.sqlite.Exec(`INSERT INTO commands (command, params) VALUES (?, ?)`, command, nullString(paramsJSON))
	return err
}

func (c *Client) RunAll() error {
	return c.SendCommand("run_all", nil)
}

func (c *Client) RunSavedSearch(id string) error {
	return c.SendCommand("run_saved_search", map[string]any{"search_id": id})
}

func (c *Client) RunExports() error {
	return c.SendCommand("run_exports", nil)
}

func (c *Client) Pause() error {
	return c.SendCommand("pause", nil)
}

func (c *Client) Resume() error {
	return c.SendCommand("resume", nil)
}

func nullString(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}

var timeLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05.999999999-07:00",
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
}

// parseTime reads a DATETIME column written either by the daemon's driver
// or by SQLite's CURRENT_TIMESTAMP.
func parseTime(s sql.NullString) (time.Time, bool) {
	if !s.Valid || s.String == "" {
		return time.Time{}, false
	}
	v := s.String
	// Go's time.String() appends a monotonic clock reading.
	if i := strings.Index(v, " m="); i >= 0 {
		v = v[:i]
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
