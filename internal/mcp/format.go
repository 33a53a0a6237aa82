package mcp

import (
	"fmt"
	"strings"

	"github.com/Aman-CERP/amanlaunch/internal/launcher"
	"github.com/Aman-CERP/amanlaunch/internal/source"
)

const (
	defaultLimit = 10
	maxLimit     = 50
)

// FormatResult renders a turn as markdown for clients that only read text content.
func FormatResult(res launcher.Result) string {
	query := res.Query.Raw
	if !res.Outcome.Delivered() {
		return fmt.Sprintf("Query \"%s\" was %s before it finished.", query, res.Outcome)
	}
	if len(res.Candidates) == 0 {
		return fmt.Sprintf("No candidates for \"%s\"", query)
	}

	var sb strings.Builder
	if query == "" {
		sb.WriteString("## Launcher defaults\n\n")
	} else {
		fmt.Fprintf(&sb, "## Candidates for \"%s\"\n\n", query)
	}
	if res.Shortcut != nil {
		fmt.Fprintf(&sb, "Shortcut `%s` matched", res.Shortcut.Entry.Key)
		if res.Direct {
			sb.WriteString(", select it directly")
		}
		sb.WriteString(".\n\n")
	}

	for i, c := range res.Candidates {
		formatCandidate(&sb, i+1, c)
	}
	return sb.String()
}

func formatCandidate(sb *strings.Builder, num int, c source.Candidate) {
	fmt.Fprintf(sb, "%d. **%s**", num, c.Title)
	if c.Subtitle != "" {
		fmt.Fprintf(sb, " (%s)", c.Subtitle)
	}
	fmt.Fprintf(sb, "\n   `%s` from %s, %s", c.ID, c.SourceID, c.Action.Kind)
	if c.Action.Target != "" {
		fmt.Fprintf(sb, " `%s`", c.Action.Target)
	}
	sb.WriteString("\n")
}

// clampLimit ensures limit is within bounds.
func clampLimit(limit, defaultVal, max int) int {
	if limit <= 0 {
		return defaultVal
	}
	if limit > max {
		return max
	}
	return limit
}
