package styles

import "github.com/charmbracelet/lipgloss"

// Palette. Accent is the brand teal, Highlight marks saved searches.
var (
	Accent    = lipgloss.Color("#14B8A6")
	Highlight = lipgloss.Color("#A78BFA")
	Good      = lipgloss.Color("#4ADE80")
	Caution   = lipgloss.Color("#FBBF24")
	Bad       = lipgloss.Color("#F87171")
	Dim       = lipgloss.Color("#94A3B8")
	Ink       = lipgloss.Color("#F1F5F9")
)

// stageColors follows the search ladder from the most constrained answer
// (bedroom filter) to the least (no type filter at all).
var stageColors = map[string]lipgloss.Color{
	"bedrooms":      lipgloss.Color("#22D3EE"),
	"types":         lipgloss.Color("#4ADE80"),
	"per_type":      lipgloss.Color("#A3E635"),
	"labels":        lipgloss.Color("#FBBF24"),
	"unconstrained": lipgloss.Color("#FB923C"),
	"show_all":      lipgloss.Color("#94A3B8"),
}

// Stage styles a search stage name. Unknown or empty stages render dim.
func Stage(stage string) lipgloss.Style {
	if c, ok := stageColors[stage]; ok {
		return lipgloss.NewStyle().Foreground(c)
	}
	return Muted
}

// Level styles a persisted log level.
func Level(level string) lipgloss.Style {
	switch level {
	case "error":
		return StatusError
	case "warn":
		return StatusPending
	case "info":
		return StatusSuccess
	}
	return Muted
}

func fg(c lipgloss.Color) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(c)
}

func boxed(border lipgloss.Border, c lipgloss.Color) lipgloss.Style {
	return lipgloss.NewStyle().Border(border).BorderForeground(c).Padding(0, 1)
}

var (
	Muted   = fg(Dim)
	LogInfo = fg(Ink)

	StatusSuccess = fg(Good)
	StatusError   = fg(Bad)
	StatusPending = fg(Caution)

	Title       = fg(Accent).Bold(true).Padding(0, 1)
	TabActive   = fg(Accent).Bold(true).Underline(true).Padding(0, 2)
	TabInactive = fg(Dim).Padding(0, 2)
	StatusBar   = fg(Dim).Padding(0, 1)

	CardBorder       = boxed(lipgloss.RoundedBorder(), Accent)
	SearchCardBorder = boxed(lipgloss.ThickBorder(), Highlight)
	LogBox           = boxed(lipgloss.NormalBorder(), Dim)

	StatValue = fg(Ink).Bold(true)
	StatLabel = fg(Dim)

	TableHeader   = fg(Highlight).Bold(true)
	TableSelected = lipgloss.NewStyle().Background(Highlight).Foreground(lipgloss.Color("#0F172A"))

	Notification = fg(Good).Italic(true).Padding(0, 1)
)
