package quicklinks

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/amanlaunch/internal/source"
)

func testLinks() []Link {
	return []Link{
		{ID: "gh", Title: "GitHub", URL: "https://github.com"},
		{ID: "docs", Title: "Go Documentation", URL: "https://go.dev/doc"},
		{ID: "mail", Title: "Mail", URL: "https://mail.example.com"},
		{ID: "broken", Title: "No URL"},
		{ID: "gh", Title: "Duplicate", URL: "https://example.com"},
	}
}

func TestNew_DropsInvalidAndDuplicateLinks(t *testing.T) {
	s := New(testLinks(), Config{})

	links := s.Links()
	require.Len(t, links, 3)
	assert.Equal(t, "GitHub", links[0].Title)
}

func TestAccepts(t *testing.T) {
	s := New(testLinks(), Config{})

	assert.False(t, s.Accepts(source.NewQuery(" ", "")))
	assert.True(t, s.Accepts(source.NewQuery("g", "")))
	assert.False(t, New(nil, Config{}).Accepts(source.NewQuery("g", "")))
}

func TestResolve_TitleMatchesBeforeURLMatches(t *testing.T) {
	// Given: "mail" matches one title and one URL host
	s := New(append(testLinks(), Link{ID: "inbox", Title: "Inbox", URL: "https://mail.google.com"}), Config{})

	// When
	cands, err := s.Resolve(context.Background(), source.NewQuery("mail", ""))

	// Then
	require.NoError(t, err)
	require.Len(t, cands, 2)
	assert.Equal(t, "quicklinks:mail", cands[0].ID)
	assert.Equal(t, []int{0, 1, 2, 3}, cands[0].TitleMatchPositions)
	assert.Equal(t, "quicklinks:inbox", cands[1].ID)
	assert.NotEmpty(t, cands[1].SubtitleMatchPositions)
	assert.Greater(t, cands[0].RankScore, cands[1].RankScore)
	assert.Equal(t, source.Action{Kind: source.ActionOpenURL, Target: "https://mail.example.com", Label: "Open"}, cands[0].Action)
}

func TestResolve_MaxResults(t *testing.T) {
	s := New(testLinks(), Config{MaxResults: 1})

	cands, err := s.Resolve(context.Background(), source.NewQuery("o", ""))

	require.NoError(t, err)
	assert.Len(t, cands, 1)
}

func TestResolveTarget(t *testing.T) {
	s := New(testLinks(), Config{})

	title, action, ok := s.ResolveTarget("gh", "")
	require.True(t, ok)
	assert.Equal(t, "GitHub", title)
	assert.Equal(t, "https://github.com", action.Target)

	title, action, ok = s.ResolveTarget("gh", "golang/go")
	require.True(t, ok)
	assert.Equal(t, "GitHub golang/go", title)
	assert.Equal(t, "https://github.com/golang%2Fgo", action.Target)

	_, _, ok = s.ResolveTarget("nope", "")
	assert.False(t, ok)
}
