// Package source defines the capability contract every result source
// implements, along with the query, candidate and action value types that
// flow through a query turn.
package source

import (
	"context"
	"strings"
)

// Origin identifies where a query came from.
type Origin string

const (
	// OriginUserInput is text typed by the user.
	OriginUserInput Origin = "user_input"

	// OriginShortcut is text produced by resolving an alias.
	OriginShortcut Origin = "shortcut"

	// OriginProgrammatic is text submitted by a tool or script (CLI, MCP).
	OriginProgrammatic Origin = "programmatic"
)

// Query is one submission of text to the engine.
type Query struct {
	// Raw is the text as submitted.
	Raw string

	// Normalized is Raw with surrounding whitespace removed.
	// It keys usage counters and is what sources match against.
	Normalized string

	// Origin records how the query was produced.
	Origin Origin
}

// NewQuery builds a Query from raw text.
func NewQuery(raw string, origin Origin) Query {
	if origin == "" {
		origin = OriginUserInput
	}
	return Query{
		Raw:        raw,
		Normalized: strings.TrimSpace(raw),
		Origin:     origin,
	}
}

// IsBlank reports whether the query is in the "show defaults" state.
func (q Query) IsBlank() bool {
	return q.Normalized == ""
}

// ActionKind names how a candidate is acted on when selected.
type ActionKind string

const (
	ActionNone      ActionKind = "none"
	ActionOpenURL   ActionKind = "open_url"
	ActionLaunchApp ActionKind = "launch_app"
	ActionCopyText  ActionKind = "copy_text"
)

// Action is an opaque, caller-invoked reference attached to a candidate.
// The engine never interprets Target; an Invoker does.
type Action struct {
	Kind   ActionKind `json:"kind"`
	Target string     `json:"target,omitempty"`
	Label  string     `json:"label,omitempty"`
}

// Invoker performs candidate actions on behalf of the engine.
type Invoker interface {
	Invoke(ctx context.Context, action Action) error
}

// InvokerFunc adapts a function to the Invoker interface.
type InvokerFunc func(ctx context.Context, action Action) error

// Invoke calls f.
func (f InvokerFunc) Invoke(ctx context.Context, action Action) error {
	return f(ctx, action)
}

// Flags alter how the engine treats a candidate after it is produced.
type Flags struct {
	// KeepResultsVisibleAfterAction asks the caller not to dismiss the
	// result list after invoking this candidate.
	KeepResultsVisibleAfterAction bool `json:"keep_results_visible_after_action,omitempty"`

	// ExcludeFromUsageLearning keeps the candidate out of frequency ranking
	// and usage counting.
	ExcludeFromUsageLearning bool `json:"exclude_from_usage_learning,omitempty"`
}

// Candidate is one scored result returned by a source for a query turn.
type Candidate struct {
	// ID is unique within a turn and stable across identical queries.
	// By convention it is "<sourceID>:<item key>".
	ID string `json:"id"`

	Title    string `json:"title"`
	Subtitle string `json:"subtitle,omitempty"`
	SourceID string `json:"source_id"`

	// RankScore orders candidates within a source. Higher is better.
	RankScore int `json:"rank_score"`

	TitleMatchPositions    []int `json:"title_match_positions,omitempty"`
	SubtitleMatchPositions []int `json:"subtitle_match_positions,omitempty"`

	Flags  Flags  `json:"flags"`
	Action Action `json:"action"`

	// Scored is false when the source did not compute RankScore itself; the
	// dispatcher then scores Title against the query.
	Scored bool `json:"-"`
}

// ItemID builds a candidate id from a source id and an item key.
func ItemID(sourceID, key string) string {
	return sourceID + ":" + key
}

// Source is the capability contract every result source implements.
//
// Accepts must be cheap: no I/O and no side effects, safe to run on every
// keystroke. Resolve may perform I/O, must honour ctx cancellation at its I/O
// boundaries, and must be safe to call concurrently with other sources.
// Errors and panics from Resolve are contained by Guard.
type Source interface {
	// ID is the stable identifier used for ordering and usage keys.
	ID() string

	// DisplayName is a human readable label.
	DisplayName() string

	// Accepts reports whether the source applies to q.
	Accepts(q Query) bool

	// Resolve produces candidates for q, already ordered best first.
	Resolve(ctx context.Context, q Query) ([]Candidate, error)
}
