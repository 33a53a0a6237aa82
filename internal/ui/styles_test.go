package ui

import (
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
)

func TestHighlight_Plain(t *testing.T) {
	plain := lipgloss.NewStyle()

	assert.Equal(t, "Firefox", Highlight("Firefox", []int{0, 4}, plain, plain))
	assert.Equal(t, "Firefox", Highlight("Firefox", nil, plain, plain))
}

func TestHighlight_MarksRuns(t *testing.T) {
	// Given: a match style that is visible without color
	base := lipgloss.NewStyle()
	mark := lipgloss.NewStyle().Transform(func(s string) string { return "[" + s + "]" })

	// When
	got := Highlight("Firefox", []int{0, 1, 4, 99}, base, mark)

	// Then: adjacent matched runes share one run; out-of-range positions are ignored
	assert.Equal(t, "[Fi]re[f]ox", got)
}

func TestHighlight_RuneIndices(t *testing.T) {
	mark := lipgloss.NewStyle().Transform(func(s string) string { return "[" + s + "]" })

	assert.Equal(t, "Caf[é]", Highlight("Café", []int{3}, lipgloss.NewStyle(), mark))
}

func TestGetStyles(t *testing.T) {
	assert.Equal(t, NoColorStyles(), GetStyles(true))
	assert.Equal(t, "x", GetStyles(true).Title.Render("x"))
}
