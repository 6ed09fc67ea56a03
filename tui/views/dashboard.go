package views

import (
	"bufio"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"tui/db"
	"tui/styles"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type dashboardDataMsg struct {
	searches     []db.SavedSearchStats
	runs         []db.SearchRun
	seenCount    int
	exportsQueue int
}

type logTailMsg struct {
	lines        []string
	modTime      time.Time
	daemonActive bool
}

type Dashboard struct {
	db            *db.Client
	width, height int
	searches      []db.SavedSearchStats
	runs          []db.SearchRun
	seenCount     int
	exportsQueue  int
	selected      int
	logLines      []string
	logPath       string
	logScroll     int       // scroll offset (0 = bottom/newest)
	logViewport   int       // visible lines
	logBuffer     int       // total lines to keep
	logModTime    time.Time // last modification time of log file
	daemonActive  bool      // whether systemd service is active
}

func NewDashboard(dbClient *db.Client, logPath string) Dashboard {
	if logPath == "" {
		logPath = "rentscout.log"
	}
	return Dashboard{
		db:          dbClient,
		logPath:     logPath,
		logViewport: 20,
		logBuffer:   200,
	}
}

func (d Dashboard) Init() tea.Cmd {
	return tea.Batch(d.Refresh(), d.RefreshLog())
}

func (d Dashboard) Refresh() tea.Cmd {
	return func() tea.Msg {
		searches, _ := d.db.GetSavedSearchStats()
		runs, _ := d.db.GetRecentRuns(10)
		seen, _ := d.db.GetSeenCount()
		exports, _ := d.db.GetPendingExportCount()
		return dashboardDataMsg{searches, runs, seen, exports}
	}
}

func (d Dashboard) RefreshLog() tea.Cmd {
	return func() tea.Msg {
		lines, modTime := readLastLines(d.logPath, d.logBuffer)
		return logTailMsg{lines, modTime, isDaemonActive()}
	}
}

// SelectedSearchID is the saved search highlighted on the dashboard.
func (d Dashboard) SelectedSearchID() string {
	if d.selected < len(d.searches) {
		return d.searches[d.selected].ID
	}
	return ""
}

func isDaemonActive() bool {
	out, err := exec.Command("systemctl", "is-active", "rentscout").Output()
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(out)) == "active"
}

func readLastLines(path string, n int) ([]string, time.Time) {
	info, err := os.Stat(path)
	if err != nil {
		return []string{"(no log file)"}, time.Time{}
	}
	modTime := info.ModTime()

	f, err := os.Open(path)
	if err != nil {
		return []string{"(no log file)"}, time.Time{}
	}
	defer f.Close()

	var allLines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		allLines = append(allLines, scanner.Text())
	}

	if len(allLines) == 0 {
		return []string{"(empty log)"}, modTime
	}

	start := len(allLines) - n
	if start < 0 {
		start = 0
	}
	return allLines[start:], modTime
}

func (d Dashboard) SetSize(w, h int) Dashboard {
	d.width = w
	d.height = h
	return d
}

func (d Dashboard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case dashboardDataMsg:
		d.searches = msg.searches
		d.runs = msg.runs
		d.seenCount = msg.seenCount
		d.exportsQueue = msg.exportsQueue
		if d.selected >= len(d.searches) {
			d.selected = 0
		}
	case logTailMsg:
		d.logLines = msg.lines
		d.logModTime = msg.modTime
		d.daemonActive = msg.daemonActive
	case tea.KeyMsg:
		maxScroll := len(d.logLines) - d.logViewport
		if maxScroll < 0 {
			maxScroll = 0
		}
		switch msg.String() {
		case "left":
			if d.selected > 0 {
				d.selected--
			}
		case "right":
			if d.selected < len(d.searches)-1 {
				d.selected++
			}
		case "up", "k":
			d.logScroll = min(d.logScroll+1, maxScroll)
		case "down", "j":
			d.logScroll = max(d.logScroll-1, 0)
		case "pgup":
			d.logScroll = min(d.logScroll+10, maxScroll)
		case "pgdown":
			d.logScroll = max(d.logScroll-10, 0)
		case "home":
			d.logScroll = maxScroll
		case "end":
			d.logScroll = 0
		}
	}
	return d, nil
}

func (d Dashboard) View() string {
	return lipgloss.JoinVertical(lipgloss.Left,
		styles.Title.Render("Dashboard"),
		d.renderStatCards(),
		"",
		d.renderSearchCards(),
		"",
		styles.Title.Render("Recent Runs"),
		d.renderRunsTable(),
		"",
		d.renderLogTail(),
	)
}

func (d Dashboard) renderLogTail() string {
	if len(d.logLines) == 0 {
		content := styles.Muted.Render("(waiting for logs...)")
		return styles.LogBox.Width(d.width - 4).Render(content)
	}

	total := len(d.logLines)
	endIdx := total - d.logScroll
	startIdx := endIdx - d.logViewport
	if startIdx < 0 {
		startIdx = 0
	}
	if endIdx > total {
		endIdx = total
	}

	maxLineWidth := d.width - 8
	var lines []string
	for _, line := range d.logLines[startIdx:endIdx] {
		lines = append(lines, styleLogLine(line, maxLineWidth))
	}

	var scrollInfo string
	switch {
	case !d.daemonActive:
		scrollInfo = styles.StatusError.Render(" ● STOPPED ")
	case d.logScroll > 0:
		scrollInfo = styles.StatusPending.Render(fmt.Sprintf(" ↑%d ", d.logScroll))
	default:
		scrollInfo = styles.StatusSuccess.Render(" ● LIVE ")
	}

	header := styles.Title.Render("Live Log") + scrollInfo +
		styles.Muted.Render(fmt.Sprintf("[%d-%d/%d]", startIdx+1, endIdx, total))

	return styles.LogBox.Width(d.width - 4).Render(header + "\n" + strings.Join(lines, "\n"))
}

// styleLogLine colours a logrus text line by its level=... field.
func styleLogLine(line string, maxWidth int) string {
	line = truncate(line, maxWidth)
	switch {
	case strings.Contains(line, "level=error"), strings.Contains(line, "level=fatal"):
		return styles.StatusError.Render(line)
	case strings.Contains(line, "level=warning"):
		return styles.StatusPending.Render(line)
	case strings.Contains(line, "level=debug"):
		return styles.Muted.Render(line)
	default:
		return styles.LogInfo.Render(line)
	}
}

func (d Dashboard) renderStatCards() string {
	enabled := 0
	for _, s := range d.searches {
		if s.Enabled {
			enabled++
		}
	}
	seen := "-"
	if d.db.HasPostgres() {
		seen = fmt.Sprintf("%d", d.seenCount)
	}
	cards := []string{
		renderStatCard("Searches", fmt.Sprintf("%d/%d", enabled, len(d.searches))),
		renderStatCard("Seen", seen),
		renderStatCard("Export Q", fmt.Sprintf("%d", d.exportsQueue)),
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cards...)
}

func renderStatCard(label, value string) string {
	content := lipgloss.JoinVertical(lipgloss.Center,
		styles.StatValue.Render(value),
		styles.StatLabel.Render(label),
	)
	return styles.CardBorder.Width(16).Render(content)
}

func (d Dashboard) renderSearchCards() string {
	if len(d.searches) == 0 {
		return styles.Muted.Render("No saved searches")
	}

	var cards []string
	for i, s := range d.searches {
		cards = append(cards, renderSearchCard(s, i == d.selected))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cards...)
}

func renderSearchCard(s db.SavedSearchStats, selected bool) string {
	status := "○ never run"
	statusStyle := styles.StatusPending
	if !s.Enabled {
		status = "– disabled"
		statusStyle = styles.Muted
	} else if s.LastRunStatus != nil {
		switch *s.LastRunStatus {
		case "completed":
			status = "✓ completed"
			statusStyle = styles.StatusSuccess
		case "failed":
			status = "✗ failed"
			statusStyle = styles.StatusError
		case "running":
			status = "◐ running"
		}
	}

	lastRun := "never"
	if s.LastRunAt != nil {
		lastRun = relativeTime(*s.LastRunAt)
	}

	name := s.Name
	if name == "" {
		name = s.ID
	}
	if selected {
		name = "▸ " + name
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		styles.StatValue.Render(truncate(name, 22)),
		statusStyle.Render(status),
		styles.StatLabel.Render(fmt.Sprintf("Last: %s", lastRun)),
		styles.StatLabel.Render(fmt.Sprintf("Found: %d  New: %d", s.LastFound, s.LastNew)),
		styles.StatLabel.Render("Stage: ") + styles.Stage(s.LastStage).Render(orDash(s.LastStage)),
		styles.StatLabel.Render(fmt.Sprintf("Rate: %.0f%%", s.SuccessRate*100)),
	)
	return styles.SearchCardBorder.Width(26).Render(content)
}

func (d Dashboard) renderRunsTable() string {
	if len(d.runs) == 0 {
		return styles.Muted.Render("No runs yet")
	}

	header := fmt.Sprintf("%-16s %-10s %-9s %-14s %6s %6s",
		"Search", "Status", "Started", "Stage", "Found", "New")
	rows := styles.TableHeader.Render(header) + "\n"

	for _, r := range d.runs {
		statusStyle := styles.StatusPending
		switch r.Status {
		case "completed":
			statusStyle = styles.StatusSuccess
		case "failed":
			statusStyle = styles.StatusError
		}

		rows += fmt.Sprintf("%-16s %s %-9s %s %6d %6d",
			truncate(r.SearchID, 16),
			statusStyle.Render(fmt.Sprintf("%-10s", r.Status)),
			r.StartedAt.Local().Format("15:04:05"),
			styles.Stage(r.Stage).Render(fmt.Sprintf("%-14s", truncate(orDash(r.Stage), 14))),
			r.ResultsFound,
			r.ResultsNew,
		)
		if r.ErrorMessage != "" {
			rows += "  " + styles.StatusError.Render(truncate(r.ErrorMessage, 40))
		}
		rows += "\n"
	}
	return rows
}

func relativeTime(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if len(s) <= max {
		return s
	}
	if max <= 1 {
		return "…"
	}
	return s[:max-1] + "…"
}
