package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Color palette: a single lime accent on grays.
const (
	ColorLime     = "154" // Primary accent (#AFFF00)
	ColorLimeDim  = "106" // Dimmed lime for inactive elements
	ColorWhite    = "255" // Titles
	ColorGray     = "245" // Subtitles, labels
	ColorDarkGray = "238" // Borders, separators
	ColorRed      = "196" // Errors
	ColorYellow   = "220" // Warnings
)

// Styles holds all UI styles.
type Styles struct {
	Header   lipgloss.Style
	Prompt   lipgloss.Style
	Title    lipgloss.Style
	Subtitle lipgloss.Style
	Match    lipgloss.Style
	Selected lipgloss.Style
	Source   lipgloss.Style
	Success  lipgloss.Style
	Warning  lipgloss.Style
	Error    lipgloss.Style
	Dim      lipgloss.Style
	Bar      lipgloss.Style
}

// DefaultStyles returns styled components for terminal output.
func DefaultStyles() Styles {
	return Styles{
		Header:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorLime)),
		Prompt:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorLime)),
		Title:    lipgloss.NewStyle().Foreground(lipgloss.Color(ColorWhite)),
		Subtitle: lipgloss.NewStyle().Foreground(lipgloss.Color(ColorGray)),
		Match:    lipgloss.NewStyle().Bold(true).Underline(true).Foreground(lipgloss.Color(ColorLime)),
		Selected: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorLime)),
		Source:   lipgloss.NewStyle().Foreground(lipgloss.Color(ColorLimeDim)),
		Success:  lipgloss.NewStyle().Foreground(lipgloss.Color(ColorLime)),
		Warning:  lipgloss.NewStyle().Foreground(lipgloss.Color(ColorYellow)),
		Error:    lipgloss.NewStyle().Foreground(lipgloss.Color(ColorRed)),
		Dim:      lipgloss.NewStyle().Foreground(lipgloss.Color(ColorDarkGray)),
		Bar:      lipgloss.NewStyle().Foreground(lipgloss.Color(ColorLime)),
	}
}

// NoColorStyles returns unstyled components for plain mode.
func NoColorStyles() Styles {
	plain := lipgloss.NewStyle()
	return Styles{
		Header:   plain,
		Prompt:   plain,
		Title:    plain,
		Subtitle: plain,
		Match:    plain,
		Selected: plain,
		Source:   plain,
		Success:  plain,
		Warning:  plain,
		Error:    plain,
		Dim:      plain,
		Bar:      plain,
	}
}

// GetStyles returns the appropriate styles based on color preference.
func GetStyles(noColor bool) Styles {
	if noColor {
		return NoColorStyles()
	}
	return DefaultStyles()
}

// Highlight renders text with the runes at positions in match style and the
// rest in base style. Positions are rune indices; out-of-range ones are ignored.
func Highlight(text string, positions []int, base, match lipgloss.Style) string {
	if len(positions) == 0 {
		return base.Render(text)
	}
	hit := make(map[int]bool, len(positions))
	for _, p := range positions {
		hit[p] = true
	}

	var sb strings.Builder
	var run []rune
	runMatched := false
	flush := func() {
		if len(run) == 0 {
			return
		}
		if runMatched {
			sb.WriteString(match.Render(string(run)))
		} else {
			sb.WriteString(base.Render(string(run)))
		}
		run = run[:0]
	}
	i := 0
	for _, r := range text {
		if hit[i] != runMatched {
			flush()
			runMatched = hit[i]
		}
		run = append(run, r)
		i++
	}
	flush()
	return sb.String()
}
