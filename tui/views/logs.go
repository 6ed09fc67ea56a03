package views

import (
	"fmt"
	"regexp"
	"strings"

	"tui/db"
	"tui/styles"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var logLevels = []string{"all", "info", "warn", "error"}

// stageSuffix matches the "(stage per_type)" tail of a completed run line.
var stageSuffix = regexp.MustCompile(`\(stage ([a-z_]+)\)$`)

type logsMsg struct {
	logs []db.SearchLog
}

// Logs lists persisted search logs grouped by run. The level filter is
// applied by the query, the saved search filter locally.
type Logs struct {
	db            *db.Client
	width, height int
	logs          []db.SearchLog
	levelIndex    int
	search        string
	scrollOffset  int
}

func NewLogs(dbClient *db.Client) Logs {
	return Logs{db: dbClient}
}

func (l Logs) Init() tea.Cmd {
	return l.Refresh()
}

func (l Logs) Refresh() tea.Cmd {
	return func() tea.Msg {
		var level *string
		if l.levelIndex > 0 {
			level = &logLevels[l.levelIndex]
		}
		logs, _ := l.db.GetRecentLogs(300, level)
		return logsMsg{logs}
	}
}

func (l Logs) SetSize(w, h int) Logs {
	l.width = w
	l.height = h
	return l
}

func (l Logs) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case logsMsg:
		l.logs = msg.logs
		l.scrollOffset = 0

	case tea.KeyMsg:
		switch msg.String() {
		case "f":
			l.levelIndex = (l.levelIndex + 1) % len(logLevels)
			return l, l.Refresh()
		case "left", "right":
			l.search = cycle(searchIDs(l.logs), l.search, msg.String() == "right")
			l.scrollOffset = 0
		case "up", "k":
			if l.scrollOffset > 0 {
				l.scrollOffset--
			}
		case "down", "j":
			if l.scrollOffset < l.maxScroll() {
				l.scrollOffset++
			}
		case "g":
			l.scrollOffset = 0
		case "G":
			l.scrollOffset = l.maxScroll()
		}
	}
	return l, nil
}

func (l Logs) maxScroll() int {
	return max(len(l.lines())-l.visibleLines(), 0)
}

func (l Logs) visibleLines() int {
	if l.height-6 < 1 {
		return 10
	}
	return l.height - 6
}

func (l Logs) View() string {
	return lipgloss.JoinVertical(lipgloss.Left,
		styles.Title.Render("Search Logs"),
		l.renderFilter(),
		"",
		l.renderLogs(),
	)
}

func (l Logs) renderFilter() string {
	search := l.search
	if search == "" {
		search = "all searches"
	}
	level := strings.ToUpper(logLevels[l.levelIndex])
	return fmt.Sprintf("%s %s  %s %s  %s",
		styles.StatLabel.Render("Search:"), styles.TabActive.Render(search),
		styles.StatLabel.Render("Level:"), styles.Level(logLevels[l.levelIndex]).Render(level),
		styles.Muted.Render("(←/→ search, f level)"))
}

func (l Logs) renderLogs() string {
	lines := l.lines()
	if len(lines) == 0 {
		return styles.Muted.Render("No logs")
	}

	start := l.scrollOffset
	end := min(start+l.visibleLines(), len(lines))
	header := styles.Muted.Render(fmt.Sprintf("  [%d-%d of %d]", start+1, end, len(lines)))
	return header + "\n" + strings.Join(lines[start:end], "\n")
}

// lines renders the visible entries, starting a new block whenever the run
// changes. Entries without a run share one "daemon" block.
func (l Logs) lines() []string {
	var (
		out     []string
		lastRun = "\x00"
	)
	for _, entry := range l.logs {
		if l.search != "" && (entry.SearchID == nil || *entry.SearchID != l.search) {
			continue
		}
		run := deref(entry.RunID)
		if run != lastRun {
			out = append(out, runHeader(entry))
			lastRun = run
		}
		out = append(out, l.formatLog(entry))
	}
	return out
}

func runHeader(entry db.SearchLog) string {
	if entry.RunID == nil {
		return styles.TableHeader.Render("── daemon")
	}
	label := "── run " + truncate(*entry.RunID, 8)
	if entry.SearchID != nil {
		label += " · " + *entry.SearchID
	}
	return styles.TableHeader.Render(label)
}

func (l Logs) formatLog(entry db.SearchLog) string {
	ts := entry.Timestamp.Local().Format("15:04:05")
	level := styles.Level(entry.Level).Render(fmt.Sprintf("%-5s", strings.ToUpper(entry.Level)))

	msg := entry.Message
	if maxLen := l.width - 20; maxLen > 3 {
		msg = truncate(msg, maxLen)
	}
	if m := stageSuffix.FindStringSubmatchIndex(msg); m != nil {
		stage := msg[m[2]:m[3]]
		msg = msg[:m[2]] + styles.Stage(stage).Render(stage) + msg[m[3]:]
	}

	return fmt.Sprintf("   %s %s %s", styles.Muted.Render(ts), level, msg)
}

// searchIDs lists the saved searches present in logs, in first-seen order.
func searchIDs(logs []db.SearchLog) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, entry := range logs {
		if entry.SearchID == nil || seen[*entry.SearchID] {
			continue
		}
		seen[*entry.SearchID] = true
		ids = append(ids, *entry.SearchID)
	}
	return ids
}

// cycle steps through "" followed by ids, wrapping at both ends.
func cycle(ids []string, current string, forward bool) string {
	options := append([]string{""}, ids...)
	i := 0
	for j, id := range options {
		if id == current {
			i = j
			break
		}
	}
	if forward {
		i = (i + 1) % len(options)
	} else {
		i = (i - 1 + len(options)) % len(options)
	}
	return options[i]
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
