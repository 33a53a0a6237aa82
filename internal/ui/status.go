package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/Aman-CERP/amanlaunch/internal/telemetry"
)

// StatsInfo is the persisted telemetry summary shown by `amanlaunch stats`.
type StatsInfo struct {
	From string `json:"from"`
	To   string `json:"to"`

	Outcomes map[string]int64                  `json:"outcomes"`
	Latency  map[telemetry.LatencyBucket]int64 `json:"latency"`
	Sources  map[string]telemetry.SourceStats  `json:"sources"`
	TopTerms []telemetry.TermCount             `json:"top_terms"`

	Aliases     int   `json:"aliases"`
	UsageCounts int64 `json:"usage_counts"`
}

// latencyOrder is the display order of histogram buckets.
var latencyOrder = []struct {
	bucket telemetry.LatencyBucket
	label  string
}{
	{telemetry.BucketP10, "<10ms"},
	{telemetry.BucketP50, "10-50ms"},
	{telemetry.BucketP100, "50-100ms"},
	{telemetry.BucketP500, "100-500ms"},
	{telemetry.BucketP1000, ">=500ms"},
}

// StatusRenderer displays telemetry stats.
type StatusRenderer struct {
	out    io.Writer
	styles Styles
}

// NewStatusRenderer creates a stats renderer.
func NewStatusRenderer(out io.Writer, noColor bool) *StatusRenderer {
	return &StatusRenderer{out: out, styles: GetStyles(noColor)}
}

// Render displays stats to the terminal.
func (r *StatusRenderer) Render(info StatsInfo) error {
	_, _ = fmt.Fprintf(r.out, "%s\n\n", r.styles.Header.Render(fmt.Sprintf("Launcher stats %s to %s", info.From, info.To)))

	var turns int64
	for _, n := range info.Outcomes {
		turns += n
	}
	_, _ = fmt.Fprintf(r.out, "  Turns:      %d\n", turns)
	for _, k := range sortedKeys(info.Outcomes) {
		_, _ = fmt.Fprintf(r.out, "    %-12s %d\n", k+":", info.Outcomes[k])
	}
	_, _ = fmt.Fprintf(r.out, "  Aliases:    %d\n", info.Aliases)
	_, _ = fmt.Fprintf(r.out, "  Selections: %d counted\n", info.UsageCounts)
	_, _ = fmt.Fprintln(r.out)

	_, _ = fmt.Fprintln(r.out, "  Latency:")
	values := make([]float64, len(latencyOrder))
	for i, l := range latencyOrder {
		values[i] = float64(info.Latency[l.bucket])
	}
	bars := []rune(Bars(values))
	for i, l := range latencyOrder {
		_, _ = fmt.Fprintf(r.out, "    %-10s %s %d\n", l.label, r.styles.Bar.Render(string(bars[i])), info.Latency[l.bucket])
	}
	_, _ = fmt.Fprintln(r.out)

	if len(info.Sources) > 0 {
		_, _ = fmt.Fprintln(r.out, "  Sources:")
		ids := make([]string, 0, len(info.Sources))
		for id := range info.Sources {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			st := info.Sources[id]
			_, _ = fmt.Fprintf(r.out, "    %-12s %s ok, %s, mean %s\n", id,
				fmt.Sprint(st.OK), r.renderFailures(st), formatDuration(st.MeanLatency()))
		}
		_, _ = fmt.Fprintln(r.out)
	}

	if len(info.TopTerms) > 0 {
		_, _ = fmt.Fprintln(r.out, "  Top terms:")
		for _, tc := range info.TopTerms {
			_, _ = fmt.Fprintf(r.out, "    %-20s %d\n", tc.Term, tc.Count)
		}
	}
	return nil
}

// RenderJSON outputs stats as JSON.
func (r *StatusRenderer) RenderJSON(info StatsInfo) error {
	encoder := json.NewEncoder(r.out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(info)
}

func (r *StatusRenderer) renderFailures(st telemetry.SourceStats) string {
	s := fmt.Sprintf("%d failed, %d timeout", st.Failed, st.Timeout)
	if st.Failed+st.Timeout > 0 {
		return r.styles.Warning.Render(s)
	}
	return s
}

func sortedKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// formatDuration formats a latency for display.
func formatDuration(d time.Duration) string {
	switch {
	case d == 0:
		return "0ms"
	case d < time.Millisecond:
		return fmt.Sprintf("%dµs", d.Microseconds())
	case d < time.Second:
		return fmt.Sprintf("%.1fms", float64(d.Microseconds())/1000)
	default:
		return d.Round(10 * time.Millisecond).String()
	}
}
