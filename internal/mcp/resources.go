package mcp

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// QueryMetricsURI is the URI of the query_metrics resource.
const QueryMetricsURI = "amanlaunch://query_metrics"

// QueryMetricsOutput is the JSON body of the query_metrics resource.
type QueryMetricsOutput struct {
	Summary             QueryMetricsSummary   `json:"summary"`
	OutcomeCounts       map[string]int64      `json:"outcome_counts"`
	TopTerms            []QueryTermCount      `json:"top_terms"`
	ZeroResultQueries   []string              `json:"zero_result_queries"`
	LatencyDistribution map[string]int64      `json:"latency_distribution"`
	Sources             []SourceMetricsOutput `json:"sources"`
}

// QueryMetricsSummary holds the headline numbers.
type QueryMetricsSummary struct {
	TotalTurns    int64   `json:"total_turns"`
	Selections    int64   `json:"selections"`
	ExactRepeats  int64   `json:"exact_repeats"`
	ZeroResultPct float64 `json:"zero_result_pct"`
	Since         string  `json:"since"`
}

// QueryTermCount represents a term and its frequency.
type QueryTermCount struct {
	Term  string `json:"term"`
	Count int64  `json:"count"`
}

// SourceMetricsOutput is per-source health.
type SourceMetricsOutput struct {
	Source        string  `json:"source"`
	OK            int64   `json:"ok"`
	Failed        int64   `json:"failed"`
	Timeout       int64   `json:"timeout"`
	Skipped       int64   `json:"skipped"`
	MeanLatencyMS float64 `json:"mean_latency_ms"`
}

func (s *Server) registerQueryMetricsResource() {
	s.mcp.AddResource(
		&mcp.Resource{
			Name:        "query_metrics",
			URI:         QueryMetricsURI,
			Description: "Launcher query telemetry: outcomes, latency, per-source health and zero-result queries",
			MIMEType:    "application/json",
		},
		s.handleQueryMetrics,
	)
}

func (s *Server) handleQueryMetrics(_ context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	metrics := s.metrics
	if metrics == nil {
		return nil, NewResourceNotFoundError(QueryMetricsURI)
	}

	snap := metrics.Snapshot()
	out := QueryMetricsOutput{
		Summary: QueryMetricsSummary{
			TotalTurns:    snap.TotalTurns,
			Selections:    snap.Selections,
			ExactRepeats:  snap.ExactRepeatCount,
			ZeroResultPct: snap.ZeroResultPercentage(),
			Since:         formatTime(snap.Since),
		},
		OutcomeCounts:       snap.OutcomeCounts,
		TopTerms:            make([]QueryTermCount, 0, len(snap.TopTerms)),
		ZeroResultQueries:   snap.ZeroResultQueries,
		LatencyDistribution: make(map[string]int64, len(snap.LatencyDistribution)),
		Sources:             make([]SourceMetricsOutput, 0, len(snap.Sources)),
	}
	for _, tc := range snap.TopTerms {
		out.TopTerms = append(out.TopTerms, QueryTermCount{Term: tc.Term, Count: tc.Count})
	}
	for bucket, n := range snap.LatencyDistribution {
		out.LatencyDistribution[string(bucket)] = n
	}
	for id, st := range snap.Sources {
		out.Sources = append(out.Sources, SourceMetricsOutput{
			Source:        id,
			OK:            st.OK,
			Failed:        st.Failed,
			Timeout:       st.Timeout,
			Skipped:       st.Skipped,
			MeanLatencyMS: float64(st.MeanLatency().Microseconds()) / 1000,
		})
	}
	sort.Slice(out.Sources, func(i, j int) bool { return out.Sources[i].Source < out.Sources[j].Source })

	content, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, MapError(err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{
				URI:      QueryMetricsURI,
				MIMEType: "application/json",
				Text:     string(content),
			},
		},
	}, nil
}
