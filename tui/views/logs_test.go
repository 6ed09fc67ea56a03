package views

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tui/db"
)

func strPtr(s string) *string { return &s }

func sampleLogs() []db.SearchLog {
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	return []db.SearchLog{
		{ID: 4, RunID: strPtr("run-b"), SearchID: strPtr("villas"), Level: "info", Message: "Completed: 2 found, 1 new (stage labels)", Timestamp: at},
		{ID: 3, RunID: strPtr("run-b"), SearchID: strPtr("villas"), Level: "info", Message: "Starting saved search", Timestamp: at},
		{ID: 2, RunID: strPtr("run-a"), SearchID: strPtr("flats"), Level: "error", Message: "Search failed: boom", Timestamp: at},
		{ID: 1, Level: "info", Message: "Watch service paused", Timestamp: at},
	}
}

func TestLogsGroupByRun(t *testing.T) {
	l := Logs{logs: sampleLogs(), width: 120}

	lines := l.lines()
	require.Len(t, lines, 7)
	assert.Contains(t, lines[0], "run run-b")
	assert.Contains(t, lines[0], "villas")
	assert.Contains(t, lines[1], "(stage labels)")
	assert.Contains(t, lines[3], "run run-a")
	assert.Contains(t, lines[5], "daemon")
}

func TestLogsFilterBySearch(t *testing.T) {
	l := Logs{logs: sampleLogs(), width: 120}

	assert.Equal(t, []string{"villas", "flats"}, searchIDs(l.logs))

	l.search = cycle(searchIDs(l.logs), l.search, true)
	assert.Equal(t, "villas", l.search)
	assert.Len(t, l.lines(), 3)

	l.search = cycle(searchIDs(l.logs), l.search, false)
	assert.Equal(t, "", l.search)
	l.search = cycle(searchIDs(l.logs), l.search, false)
	assert.Equal(t, "flats", l.search)
	assert.Len(t, l.lines(), 2)
}
