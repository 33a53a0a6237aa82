// Package ranking merges per-source candidate groups into one ordered list,
// by manual source priority or by learned selection frequency.
package ranking

import (
	"context"
	"sort"

	"github.com/Aman-CERP/amanlaunch/internal/source"
	"github.com/Aman-CERP/amanlaunch/internal/usage"
)

// Grouped maps a source id to the candidates it returned, in source order.
type Grouped map[string][]source.Candidate

// Input is everything Order needs for one turn. Order and Usage are
// snapshots taken at the start of the turn.
type Input struct {
	Groups       Grouped
	Order        []string
	Usage        usage.Counters
	UseFrequency bool
	Query        string
}

// Order flattens the groups into the final display order.
//
// Manual mode concatenates the groups in source order, keeping each group's
// internal order. Frequency mode sorts ascending by
// (frequencyRank, sourceRank, -rankScore) where frequencyRank is the bucket's
// maximum count minus the candidate's count. Candidates excluded from usage
// learning, and unseen ones, take frequencyRank = maximum, so they are never
// promoted. Remaining ties keep the concatenated manual order.
//
// Groups whose source id is not in Order follow the ordered ones, sorted by id.
func Order(in Input) []source.Candidate {
	ids := groupSequence(in.Groups, in.Order)

	total := 0
	for _, id := range ids {
		total += len(in.Groups[id])
	}
	flat := make([]source.Candidate, 0, total)
	groupOf := make([]int, 0, total)
	for gi, id := range ids {
		for _, c := range in.Groups[id] {
			flat = append(flat, c)
			groupOf = append(groupOf, gi)
		}
	}
	if !in.UseFrequency || len(flat) < 2 {
		return flat
	}

	bucket := in.Usage.Bucket(in.Query)
	maxCount := MaxCount(bucket)

	type keyed struct {
		freq    int64
		src     int
		score   int
		natural int
	}
	keys := make([]keyed, len(flat))
	for i, c := range flat {
		keys[i] = keyed{
			freq:    FrequencyRank(c, bucket, maxCount),
			src:     groupOf[i],
			score:   c.RankScore,
			natural: i,
		}
	}

	idx := make([]int, len(flat))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		ka, kb := keys[idx[a]], keys[idx[b]]
		if ka.freq != kb.freq {
			return ka.freq < kb.freq
		}
		if ka.src != kb.src {
			return ka.src < kb.src
		}
		if ka.score != kb.score {
			return ka.score > kb.score
		}
		return ka.natural < kb.natural
	})

	out := make([]source.Candidate, len(flat))
	for i, j := range idx {
		out[i] = flat[j]
	}
	return out
}

// MaxCount returns the largest count in a query bucket, zero when empty.
func MaxCount(bucket map[string]int64) int64 {
	var m int64
	for _, n := range bucket {
		if n > m {
			m = n
		}
	}
	return m
}

// FrequencyRank returns maxCount minus the candidate's count.
// Excluded candidates always rank at maxCount.
func FrequencyRank(c source.Candidate, bucket map[string]int64, maxCount int64) int64 {
	if c.Flags.ExcludeFromUsageLearning {
		return maxCount
	}
	return maxCount - bucket[c.ID]
}

// groupSequence returns the group ids to emit: those in order first, then
// any others sorted by id.
func groupSequence(groups Grouped, order []string) []string {
	ids := make([]string, 0, len(groups))
	seen := make(map[string]struct{}, len(groups))
	for _, id := range order {
		if _, ok := groups[id]; !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	var extra []string
	for id := range groups {
		if _, ok := seen[id]; !ok {
			extra = append(extra, id)
		}
	}
	sort.Strings(extra)
	return append(ids, extra...)
}

// RecordSelection increments usage for (query, c.ID) through the ledger.
// It reports false, and does nothing, for candidates excluded from learning.
func RecordSelection(ctx context.Context, ledger usage.Ledger, c source.Candidate, query string) (bool, error) {
	if c.Flags.ExcludeFromUsageLearning || ledger == nil {
		return false, nil
	}
	return true, ledger.Record(ctx, query, c.ID)
}
