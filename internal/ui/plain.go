package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/Aman-CERP/amanlaunch/internal/launcher"
	"github.com/Aman-CERP/amanlaunch/internal/usage"
)

// PlainRenderer writes launcher output as text lines (for pipes and
// one-shot commands).
type PlainRenderer struct {
	out    io.Writer
	styles Styles
}

// NewPlainRenderer creates a plain text renderer.
func NewPlainRenderer(out io.Writer, noColor bool) *PlainRenderer {
	return &PlainRenderer{out: out, styles: GetStyles(noColor)}
}

// RenderResult prints up to limit numbered candidates. Numbers start at 1
// and are what `open --pick` takes.
func (r *PlainRenderer) RenderResult(res launcher.Result, limit int) {
	if !res.Outcome.Delivered() {
		_, _ = fmt.Fprintf(r.out, "%s\n", r.styles.Warning.Render("query "+string(res.Outcome)))
		return
	}
	cands := res.Candidates
	if limit > 0 && len(cands) > limit {
		cands = cands[:limit]
	}
	if len(cands) == 0 {
		_, _ = fmt.Fprintln(r.out, r.styles.Subtitle.Render("No results"))
		return
	}

	for i, c := range cands {
		title := Highlight(c.Title, c.TitleMatchPositions, r.styles.Title, r.styles.Match)
		_, _ = fmt.Fprintf(r.out, "%2d. %s", i+1, title)
		if c.Subtitle != "" {
			_, _ = fmt.Fprintf(r.out, "  %s", r.styles.Subtitle.Render(c.Subtitle))
		}
		_, _ = fmt.Fprintf(r.out, "  %s\n", r.styles.Source.Render("["+c.SourceID+"]"))
	}
	if res.Direct {
		_, _ = fmt.Fprintln(r.out, r.styles.Dim.Render("shortcut: `open` runs it directly"))
	}
}

// RenderSelection prints what a selection did.
func (r *PlainRenderer) RenderSelection(sel launcher.Selection) {
	_, _ = fmt.Fprintf(r.out, "%s %s\n", r.styles.Success.Render(describe(sel.Candidate)),
		r.styles.Dim.Render(sel.Candidate.Action.Target))
}

// RenderSources prints the source table in tie-break order.
func (r *PlainRenderer) RenderSources(infos []launcher.SourceInfo) {
	for _, in := range infos {
		state := r.styles.Success.Render("enabled")
		if !in.Enabled {
			state = r.styles.Warning.Render("disabled")
		}
		circuit := ""
		if in.Circuit != "" && in.Circuit != "closed" {
			circuit = "  " + r.styles.Error.Render("circuit "+in.Circuit)
		}
		_, _ = fmt.Fprintf(r.out, "%d. %-12s %-24s %s%s\n", in.Position, in.ID, in.DisplayName, state, circuit)
	}
}

// RenderUsage prints usage counters for every query, most used first.
func (r *PlainRenderer) RenderUsage(counts usage.Counters) {
	if len(counts) == 0 {
		_, _ = fmt.Fprintln(r.out, r.styles.Subtitle.Render("No usage recorded"))
		return
	}
	queries := make([]string, 0, len(counts))
	for q := range counts {
		queries = append(queries, q)
	}
	sort.Strings(queries)

	for _, q := range queries {
		label := q
		if label == "" {
			label = "(blank)"
		}
		_, _ = fmt.Fprintln(r.out, r.styles.Header.Render(label))

		bucket := counts.Bucket(q)
		ids := make([]string, 0, len(bucket))
		for id := range bucket {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool {
			if bucket[ids[i]] != bucket[ids[j]] {
				return bucket[ids[i]] > bucket[ids[j]]
			}
			return ids[i] < ids[j]
		})
		for _, id := range ids {
			_, _ = fmt.Fprintf(r.out, "  %5d  %s\n", bucket[id], id)
		}
	}
}

// RenderJSON writes v as indented JSON.
func (r *PlainRenderer) RenderJSON(v any) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
