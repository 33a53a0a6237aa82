package scorer

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatch_Examples(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		target    string
		wantScore int
		wantPos   []int
	}{
		{
			name:      "first char then consecutive",
			query:     "gm",
			target:    "Gmail",
			wantScore: 15 + 5 + 10,
			wantPos:   []int{0, 1},
		},
		{
			name:      "camel case boundary with gap",
			query:     "fb",
			target:    "FooBar",
			wantScore: 15 + 10 - 2 + 10,
			wantPos:   []int{0, 3},
		},
		{
			name:      "separator boundary",
			query:     "ab",
			target:    "a-b",
			wantScore: 15 + 10 - 1 + 10,
			wantPos:   []int{0, 2},
		},
		{
			name:      "letter to digit boundary beats consecutive",
			query:     "a2",
			target:    "a2",
			wantScore: 15 + 10 + 10,
			wantPos:   []int{0, 1},
		},
		{
			name:      "leading gap and interior gap",
			query:     "ml",
			target:    "Gmail",
			wantScore: (1 - 1) + (1 - 2) + 10,
			wantPos:   []int{1, 4},
		},
		{
			name:      "leading gap alone",
			query:     "m",
			target:    "Gmail",
			wantScore: (1 - 1) + 10,
			wantPos:   []int{1},
		},
		{
			name:      "gap penalty is capped",
			query:     "az",
			target:    "abcdefz",
			wantScore: 15 + 1 - 3 + 10,
			wantPos:   []int{0, 6},
		},
		{
			name:      "digit to letter boundary",
			query:     "2b",
			target:    "x2b",
			wantScore: (10 - 1) + 10 + 10,
			wantPos:   []int{1, 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Match(tt.query, tt.target)
			require.True(t, ok)
			assert.Equal(t, tt.wantScore, got.Score)
			assert.Equal(t, tt.wantPos, got.Positions)
		})
	}
}

func TestMatch_EmptyQuery(t *testing.T) {
	for _, target := range []string{"a", "Gmail", "some long target text"} {
		got, ok := Match("", target)
		require.True(t, ok)
		assert.Equal(t, 0, got.Score)
		assert.Empty(t, got.Positions)
	}
}

func TestMatch_NoMatch(t *testing.T) {
	tests := []struct {
		query  string
		target string
	}{
		{"xyz", "abc"},
		{"a", ""},
		{"abc", "ab"},
		{"ba", "ab"},
	}
	for _, tt := range tests {
		got, ok := Match(tt.query, tt.target)
		assert.False(t, ok, "%q in %q", tt.query, tt.target)
		assert.Equal(t, MatchResult{}, got)
	}
}

func TestMatch_CaseInsensitive(t *testing.T) {
	lower, ok := Match("gmail", "GMAIL")
	require.True(t, ok)
	upper, ok := Match("GMAIL", "gmail")
	require.True(t, ok)
	assert.Equal(t, lower.Positions, upper.Positions)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, lower.Positions)
}

func TestMatch_GreedyFirstOccurrence(t *testing.T) {
	// The optimal alignment for "ab" would be the adjacent pair at 3-4;
	// the greedy pass takes the first 'a' and the first 'b' after it.
	got, ok := Match("ab", "axxab")
	require.True(t, ok)
	assert.Equal(t, []int{0, 4}, got.Positions)
}

func TestMatch_UsesRuneIndices(t *testing.T) {
	got, ok := Match("ée", "café crème")
	require.True(t, ok)
	// 'è' does not fold to 'e', so the second match is the final rune.
	assert.Equal(t, []int{3, 9}, got.Positions)
}

func TestMatch_SubsequenceProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	alphabet := "abcdefghijKLMNOP0123 -_."

	for i := 0; i < 500; i++ {
		n := 1 + rng.Intn(30)
		var sb strings.Builder
		for j := 0; j < n; j++ {
			sb.WriteByte(alphabet[rng.Intn(len(alphabet))])
		}
		target := sb.String()

		var q strings.Builder
		for j := 0; j < n; j++ {
			if rng.Intn(3) == 0 {
				q.WriteByte(target[j])
			}
		}
		query := q.String()
		if query == "" {
			continue
		}
		if rng.Intn(2) == 0 {
			query = strings.ToUpper(query)
		}

		got, ok := Match(query, target)
		require.True(t, ok, "query %q target %q", query, target)
		require.Len(t, got.Positions, len([]rune(query)))
		for k := 1; k < len(got.Positions); k++ {
			require.Greater(t, got.Positions[k], got.Positions[k-1])
		}
		require.Less(t, got.Positions[len(got.Positions)-1], len([]rune(target)))

		again, _ := Match(query, target)
		require.Equal(t, got, again)
	}
}

func TestLengthBonus(t *testing.T) {
	assert.Equal(t, 10, LengthBonus(1))
	assert.Equal(t, 10, LengthBonus(40))
	assert.Equal(t, 5, LengthBonus(45))
	assert.Equal(t, 0, LengthBonus(50))
	assert.Equal(t, 0, LengthBonus(80))
}

func TestBest(t *testing.T) {
	got, idx, ok := Best("ff", "Mozilla Firefox", "ff")
	require.True(t, ok)
	assert.Equal(t, 1, idx)
	assert.Equal(t, []int{0, 1}, got.Positions)

	_, idx, ok = Best("zz", "abc", "def")
	assert.False(t, ok)
	assert.Equal(t, -1, idx)
}
