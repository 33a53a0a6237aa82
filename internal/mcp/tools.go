package mcp

import (
	"time"

	"github.com/Aman-CERP/amanlaunch/internal/dispatch"
	"github.com/Aman-CERP/amanlaunch/internal/source"
)

// SearchInput defines the input schema for the launch_search tool.
type SearchInput struct {
	Query string `json:"query" jsonschema:"the launcher query text, as typed into the launcher"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of candidates, default 10"`
}

// SearchOutput defines the output schema for the launch_search tool.
type SearchOutput struct {
	TurnID     string            `json:"turn_id" jsonschema:"identifier of the turn that produced these candidates"`
	Outcome    string            `json:"outcome" jsonschema:"completed, shortcut, superseded or canceled"`
	Direct     bool              `json:"direct,omitempty" jsonschema:"true when the single shortcut candidate can be selected without showing a list"`
	Candidates []CandidateOutput `json:"candidates" jsonschema:"ranked candidates, best first"`
	Sources    []SourceReport    `json:"sources,omitempty" jsonschema:"how each source finished for this turn"`
	DurationMS int64             `json:"duration_ms"`
}

// CandidateOutput is one ranked candidate.
type CandidateOutput struct {
	ID       string `json:"id" jsonschema:"pass this to launch_select"`
	Title    string `json:"title"`
	Subtitle string `json:"subtitle,omitempty"`
	Source   string `json:"source"`
	Score    int    `json:"score"`
	Action   string `json:"action" jsonschema:"open_url, launch_app, copy_text or none"`
	Target   string `json:"target,omitempty"`
}

// SourceReport is a per-source status line.
type SourceReport struct {
	Source     string `json:"source"`
	Status     string `json:"status"`
	Count      int    `json:"count"`
	DurationMS int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

// SelectInput defines the input schema for the launch_select tool.
type SelectInput struct {
	CandidateID string `json:"candidate_id" jsonschema:"id of a candidate from the most recent launch_search"`
}

// SelectOutput defines the output schema for the launch_select tool.
type SelectOutput struct {
	Candidate   CandidateOutput `json:"candidate"`
	Recorded    bool            `json:"recorded" jsonschema:"true when the selection was counted for frequency ranking"`
	KeepVisible bool            `json:"keep_visible"`
}

// AliasListInput defines the input schema for the alias_list tool (no parameters).
type AliasListInput struct{}

// AliasListOutput defines the output schema for the alias_list tool.
type AliasListOutput struct {
	Aliases []AliasOutput `json:"aliases"`
}

// AliasOutput is one stored shortcut.
type AliasOutput struct {
	Key       string `json:"key"`
	Kind      string `json:"kind" jsonschema:"web_search, app_launch or quicklink"`
	TargetID  string `json:"target_id"`
	Label     string `json:"label,omitempty"`
	CreatedAt string `json:"created_at"`
}

// SourceListInput defines the input schema for the source_list tool (no parameters).
type SourceListInput struct{}

// SourceListOutput defines the output schema for the source_list tool.
type SourceListOutput struct {
	Sources      []SourceOutput `json:"sources"`
	UseFrequency bool           `json:"use_frequency"`
}

// SourceOutput describes one registered source.
type SourceOutput struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Position    int    `json:"position"`
	Enabled     bool   `json:"enabled"`
	Circuit     string `json:"circuit" jsonschema:"closed, open or half-open"`
}

func toCandidateOutput(c source.Candidate) CandidateOutput {
	return CandidateOutput{
		ID:       c.ID,
		Title:    c.Title,
		Subtitle: c.Subtitle,
		Source:   c.SourceID,
		Score:    c.RankScore,
		Action:   string(c.Action.Kind),
		Target:   c.Action.Target,
	}
}

func toSourceReports(reports []dispatch.Report) []SourceReport {
	if len(reports) == 0 {
		return nil
	}
	out := make([]SourceReport, 0, len(reports))
	for _, r := range reports {
		out = append(out, SourceReport{
			Source:     r.SourceID,
			Status:     string(r.Status),
			Count:      r.Count,
			DurationMS: r.Duration.Milliseconds(),
			Error:      r.Error,
		})
	}
	return out
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
