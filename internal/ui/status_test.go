package ui

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/amanlaunch/internal/telemetry"
)

func testStats() StatsInfo {
	return StatsInfo{
		From:     "2026-10-01",
		To:       "2026-10-14",
		Outcomes: map[string]int64{"completed": 8, "shortcut": 2},
		Latency:  map[telemetry.LatencyBucket]int64{telemetry.BucketP10: 9, telemetry.BucketP500: 1},
		Sources: map[string]telemetry.SourceStats{
			"files": {OK: 3, Timeout: 1, Total: 40 * time.Millisecond},
		},
		TopTerms:    []telemetry.TermCount{{Term: "fire", Count: 4}},
		Aliases:     2,
		UsageCounts: 6,
	}
}

func TestStatusRenderer_Render(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, NewStatusRenderer(&buf, true).Render(testStats()))

	out := buf.String()
	assert.Contains(t, out, "Launcher stats 2026-10-01 to 2026-10-14")
	assert.Contains(t, out, "Turns:      10")
	assert.Contains(t, out, "shortcut:")
	assert.Contains(t, out, "<10ms      █ 9")
	assert.Contains(t, out, "files        3 ok, 0 failed, 1 timeout")
	assert.Contains(t, out, "mean 10.0ms")
	assert.Contains(t, out, "fire")
}

func TestStatusRenderer_RenderJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewStatusRenderer(&buf, true).RenderJSON(testStats()))

	var got StatsInfo
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, int64(8), got.Outcomes["completed"])
	assert.Equal(t, int64(9), got.Latency[telemetry.BucketP10])
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "0ms", formatDuration(0))
	assert.Equal(t, "500µs", formatDuration(500*time.Microsecond))
	assert.Equal(t, "12.5ms", formatDuration(12500*time.Microsecond))
	assert.Equal(t, "1.5s", formatDuration(1500*time.Millisecond))
}
