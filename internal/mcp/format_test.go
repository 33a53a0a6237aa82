package mcp

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Aman-CERP/amanlaunch/internal/alias"
	"github.com/Aman-CERP/amanlaunch/internal/launcher"
	"github.com/Aman-CERP/amanlaunch/internal/source"
)

func TestFormatResult(t *testing.T) {
	res := launcher.Result{
		Query:   source.NewQuery("fire", ""),
		Outcome: launcher.OutcomeCompleted,
		Candidates: []source.Candidate{{
			ID: "apps:firefox", Title: "Firefox", Subtitle: "Web browser", SourceID: "apps",
			Action: source.Action{Kind: source.ActionLaunchApp, Target: "firefox"},
		}},
	}

	got := FormatResult(res)

	assert.Contains(t, got, "## Candidates for \"fire\"")
	assert.Contains(t, got, "1. **Firefox** (Web browser)")
	assert.Contains(t, got, "`apps:firefox` from apps, launch_app `firefox`")
}

func TestFormatResult_EdgeCases(t *testing.T) {
	t.Run("no candidates", func(t *testing.T) {
		res := launcher.Result{Query: source.NewQuery("zzz", ""), Outcome: launcher.OutcomeCompleted}
		assert.Equal(t, "No candidates for \"zzz\"", FormatResult(res))
	})
	t.Run("superseded", func(t *testing.T) {
		res := launcher.Result{Query: source.NewQuery("f", ""), Outcome: launcher.OutcomeSuperseded}
		assert.Contains(t, FormatResult(res), "superseded")
	})
	t.Run("blank query", func(t *testing.T) {
		res := launcher.Result{Outcome: launcher.OutcomeCompleted,
			Candidates: []source.Candidate{{ID: "apps:a", Title: "A", SourceID: "apps"}}}
		assert.Contains(t, FormatResult(res), "## Launcher defaults")
	})
	t.Run("direct shortcut", func(t *testing.T) {
		res := launcher.Result{
			Query:      source.NewQuery("gh", ""),
			Outcome:    launcher.OutcomeShortcut,
			Shortcut:   &alias.Hit{Entry: alias.Entry{Key: "gh"}},
			Direct:     true,
			Candidates: []source.Candidate{{ID: "alias:gh", Title: "GitHub", SourceID: "alias"}},
		}
		assert.Contains(t, FormatResult(res), "Shortcut `gh` matched, select it directly.")
	})
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, 10, clampLimit(0, 10, 50))
	assert.Equal(t, 10, clampLimit(-3, 10, 50))
	assert.Equal(t, 7, clampLimit(7, 10, 50))
	assert.Equal(t, 50, clampLimit(500, 10, 50))
}
