package views

import (
	"fmt"
	"strings"

	"tui/db"
	"tui/styles"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type seenMsg struct {
	listings []db.SeenListing
	total    int
	err      error
}

// Seen browses the listings saved searches have already reported.
type Seen struct {
	db            *db.Client
	width, height int
	listings      []db.SeenListing
	total         int
	err           error
	selectedRow   int
	page          int
	pageSize      int
}

func NewSeen(dbClient *db.Client) Seen {
	return Seen{db: dbClient, pageSize: 100}
}

func (s Seen) Init() tea.Cmd {
	return s.Refresh()
}

func (s Seen) Refresh() tea.Cmd {
	return func() tea.Msg {
		listings, err := s.db.GetSeenListings(s.pageSize, s.page*s.pageSize)
		if err != nil {
			return seenMsg{err: err}
		}
		total, err := s.db.GetSeenCount()
		return seenMsg{listings: listings, total: total, err: err}
	}
}

func (s Seen) SetSize(w, h int) Seen {
	s.width = w
	s.height = h
	return s
}

func (s Seen) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case seenMsg:
		s.listings = msg.listings
		s.total = msg.total
		s.err = msg.err
		if s.selectedRow >= len(s.listings) {
			s.selectedRow = 0
		}

	case tea.KeyMsg:
		switch msg.String() {
		case "up", "k":
			if s.selectedRow > 0 {
				s.selectedRow--
			}
		case "down", "j":
			if s.selectedRow < len(s.listings)-1 {
				s.selectedRow++
			}
		case "pgdown", "ctrl+d":
			s.selectedRow = max(min(s.selectedRow+10, len(s.listings)-1), 0)
		case "pgup", "ctrl+u":
			s.selectedRow = max(s.selectedRow-10, 0)
		case "]":
			if (s.page+1)*s.pageSize < s.total {
				s.page++
				s.selectedRow = 0
				return s, s.Refresh()
			}
		case "[":
			if s.page > 0 {
				s.page--
				s.selectedRow = 0
				return s, s.Refresh()
			}
		}
	}
	return s, nil
}

func (s Seen) View() string {
	title := styles.Title.Render("Seen Listings")
	if !s.db.HasPostgres() {
		return lipgloss.JoinVertical(lipgloss.Left, title,
			styles.Muted.Render("DATABASE_URL not set; seen listings are not tracked"))
	}
	if s.err != nil {
		return lipgloss.JoinVertical(lipgloss.Left, title, styles.StatusError.Render(s.err.Error()))
	}
	if len(s.listings) == 0 {
		return lipgloss.JoinVertical(lipgloss.Left, title, styles.Muted.Render("Nothing seen yet"))
	}

	pages := (s.total + s.pageSize - 1) / s.pageSize
	info := styles.Muted.Render(fmt.Sprintf("page %d/%d, %d total  ([ / ] to page)", s.page+1, pages, s.total))

	return lipgloss.JoinVertical(lipgloss.Left, title, info, "", s.renderTable())
}

func (s Seen) renderTable() string {
	header := fmt.Sprintf("%-14s %-12s %-10s %4s %9s %-11s %s",
		"Search", "ID", "Type", "Beds", "Price", "First seen", "Title")
	lines := []string{styles.TableHeader.Render(header)}

	visible := max(s.height-8, 5)
	start := 0
	if s.selectedRow >= visible {
		start = s.selectedRow - visible + 1
	}
	end := min(start+visible, len(s.listings))

	for i := start; i < end; i++ {
		l := s.listings[i]
		row := fmt.Sprintf("%-14s %-12s %-10s %4s %9s %-11s %s",
			truncate(l.SearchID, 14),
			truncate(l.RecordID, 12),
			truncate(orDash(l.TypeSlug), 10),
			formatOptional(l.Bedrooms, "%.0f"),
			formatOptional(l.Price, "%.0f"),
			l.FirstSeenAt.Local().Format("01-02 15:04"),
			truncate(strings.TrimSpace(l.Title), max(s.width-70, 10)),
		)
		if i == s.selectedRow {
			row = styles.TableSelected.Render(row)
		}
		lines = append(lines, row)
	}
	return strings.Join(lines, "\n")
}

func formatOptional(v *float64, format string) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf(format, *v)
}
