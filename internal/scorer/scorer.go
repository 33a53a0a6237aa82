// Package scorer implements the fuzzy subsequence matcher shared by every
// result source and by alias triggers.
//
// The matcher is a single left-to-right greedy pass: each query character is
// consumed at the first target position where it appears. It is not an
// optimal alignment, which keeps it linear and fully deterministic.
package scorer

import (
	"unicode"
)

// Scoring constants.
const (
	// FirstCharBonus is awarded when the match lands on target position 0.
	FirstCharBonus = 15

	// BoundaryBonus is awarded when the match starts a word boundary.
	BoundaryBonus = 10

	// ConsecutiveBonus is awarded when the match directly follows the previous one.
	ConsecutiveBonus = 5

	// BaseMatchScore is awarded for any other matched character.
	BaseMatchScore = 1

	// MaxGapPenalty caps the penalty for skipped target characters before
	// the first match and between matches.
	MaxGapPenalty = 3

	// LengthBonusBase and MaxLengthBonus shape the short-target bonus:
	// clamp(LengthBonusBase - len(target), 0, MaxLengthBonus).
	LengthBonusBase = 50
	MaxLengthBonus  = 10
)

// MatchResult is the outcome of a successful match.
type MatchResult struct {
	// Score is the accumulated match score. Higher is better.
	Score int

	// Positions are the rune indices in the target that matched, strictly increasing.
	Positions []int
}

// Match reports whether query is a case-insensitive subsequence of target and,
// if so, how well it matches.
//
// An empty query always matches with score 0 and no positions. A non-empty
// query never matches an empty target. The boolean is false when there is no
// match; the returned MatchResult is then the zero value.
func Match(query, target string) (MatchResult, bool) {
	q := []rune(query)
	if len(q) == 0 {
		return MatchResult{Score: 0, Positions: []int{}}, true
	}

	t := []rune(target)
	if len(t) == 0 || len(q) > len(t) {
		return MatchResult{}, false
	}

	positions := make([]int, 0, len(q))
	score := 0
	last := -1
	qi := 0

	for ti := 0; ti < len(t) && qi < len(q); ti++ {
		if !equalFold(t[ti], q[qi]) {
			continue
		}

		consecutive := ti == last+1 && last >= 0
		switch {
		case ti == 0:
			score += FirstCharBonus
		case isBoundary(t[ti-1], t[ti]):
			score += BoundaryBonus
		case consecutive:
			score += ConsecutiveBonus
		default:
			score += BaseMatchScore
		}

		if !consecutive {
			// Leading characters before the first match count as a gap too.
			if gap := ti - last - 1; gap > 0 {
				score -= min(gap, MaxGapPenalty)
			}
		}

		positions = append(positions, ti)
		last = ti
		qi++
	}

	if qi < len(q) {
		return MatchResult{}, false
	}

	score += LengthBonus(len(t))
	return MatchResult{Score: score, Positions: positions}, true
}

// LengthBonus returns the short-target bonus for a target of n runes.
func LengthBonus(n int) int {
	return max(0, min(LengthBonusBase-n, MaxLengthBonus))
}

// Best returns the better of matching query against each of the targets, in
// order. Ties keep the earliest target. The index of the winning target is
// returned alongside the result; it is -1 when nothing matched.
func Best(query string, targets ...string) (MatchResult, int, bool) {
	var best MatchResult
	bestIdx := -1
	for i, target := range targets {
		m, ok := Match(query, target)
		if !ok {
			continue
		}
		if bestIdx < 0 || m.Score > best.Score {
			best = m
			bestIdx = i
		}
	}
	return best, bestIdx, bestIdx >= 0
}

// isBoundary reports whether cur starts a word given the preceding rune prev.
func isBoundary(prev, cur rune) bool {
	switch {
	case !isAlnum(prev):
		return true
	case unicode.IsLower(prev) && unicode.IsUpper(cur):
		return true
	case unicode.IsDigit(prev) && unicode.IsLetter(cur):
		return true
	case unicode.IsLetter(prev) && unicode.IsDigit(cur):
		return true
	}
	return false
}

func isAlnum(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// equalFold compares two runes under simple lowercase folding. Locale-specific
// rules (e.g. Turkish dotless i) are intentionally not applied.
func equalFold(a, b rune) bool {
	return a == b || unicode.ToLower(a) == unicode.ToLower(b)
}
