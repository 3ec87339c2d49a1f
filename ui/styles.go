package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

var (
	fuchsia = lipgloss.AdaptiveColor{Light: "#EE6FF8", Dark: "#EE6FF8"}
	green   = lipgloss.Color("#04B575")
	yellow  = lipgloss.Color("#ECFD65")
	red     = lipgloss.Color("#ED567A")
	gray    = lipgloss.AdaptiveColor{Light: "#909090", Dark: "#626262"}
	midGray = lipgloss.AdaptiveColor{Light: "#B2B2B2", Dark: "#4A4A4A"}

	titleBarStyle = lipgloss.NewStyle().
			Padding(0, 2).
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(fuchsia)

	slideCountStyle = lipgloss.NewStyle().Foreground(gray)

	helpStyle = lipgloss.NewStyle().Foreground(midGray)

	noteStyle = lipgloss.NewStyle().Foreground(green)

	questionPromptStyle = lipgloss.NewStyle().Foreground(fuchsia).Bold(true)

	errorTextStyle = lipgloss.NewStyle().Foreground(red)
)

// hasDarkBackground is resolved once; glamour's auto style asks termenv the
// same question on every render otherwise.
var hasDarkBackground = termenv.HasDarkBackground()

func glamourStyleName(cfg Config) string {
	if cfg.GlamourStyle != "" && cfg.GlamourStyle != "auto" {
		return cfg.GlamourStyle
	}
	if hasDarkBackground {
		return "dark"
	}
	return "light"
}
