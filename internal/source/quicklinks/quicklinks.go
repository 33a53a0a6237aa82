// Package quicklinks is a Source over user-configured bookmarks.
package quicklinks

import (
	"context"
	"net/url"
	"sort"
	"strings"

	"github.com/Aman-CERP/amanlaunch/internal/scorer"
	"github.com/Aman-CERP/amanlaunch/internal/source"
)

// ID is the source id.
const ID = "quicklinks"

// urlPenalty ranks matches on the URL host below title matches.
const urlPenalty = 25

// Link is one bookmark.
type Link struct {
	ID    string `yaml:"id" json:"id"`
	Title string `yaml:"title" json:"title"`
	URL   string `yaml:"url" json:"url"`
}

// Config configures the quicklinks source.
type Config struct {
	MaxResults int `yaml:"max_results" json:"max_results"`
}

// DefaultConfig returns the defaults.
func DefaultConfig() Config {
	return Config{MaxResults: 8}
}

// Source implements source.Source over a fixed list of links.
type Source struct {
	links []Link
	byID  map[string]Link
	max   int
}

var _ source.Source = (*Source)(nil)

// New returns a Source over links. Links without an id or URL are dropped;
// the first link with a given id wins.
func New(links []Link, cfg Config) *Source {
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = DefaultConfig().MaxResults
	}
	s := &Source{byID: make(map[string]Link), max: cfg.MaxResults}
	for _, l := range links {
		if l.ID == "" || l.URL == "" {
			continue
		}
		if _, dup := s.byID[l.ID]; dup {
			continue
		}
		if l.Title == "" {
			l.Title = l.ID
		}
		s.byID[l.ID] = l
		s.links = append(s.links, l)
	}
	return s
}

// ID implements source.Source.
func (s *Source) ID() string { return ID }

// DisplayName implements source.Source.
func (s *Source) DisplayName() string { return "Quicklinks" }

// Accepts implements source.Source.
func (s *Source) Accepts(q source.Query) bool {
	return len(s.links) > 0 && !q.IsBlank()
}

// Links returns the configured links.
func (s *Source) Links() []Link {
	return append([]Link(nil), s.links...)
}

// Resolve implements source.Source.
func (s *Source) Resolve(ctx context.Context, q source.Query) ([]source.Candidate, error) {
	var out []source.Candidate
	for _, l := range s.links {
		c := candidate(l)
		if m, ok := scorer.Match(q.Normalized, l.Title); ok {
			c.RankScore = m.Score
			c.TitleMatchPositions = m.Positions
		} else if m, ok := scorer.Match(q.Normalized, l.URL); ok {
			c.RankScore = m.Score - urlPenalty
			c.SubtitleMatchPositions = m.Positions
		} else {
			continue
		}
		out = append(out, c)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].RankScore != out[j].RankScore {
			return out[i].RankScore > out[j].RankScore
		}
		return strings.ToLower(out[i].Title) < strings.ToLower(out[j].Title)
	})
	if len(out) > s.max {
		out = out[:s.max]
	}
	return out, nil
}

func candidate(l Link) source.Candidate {
	return source.Candidate{
		ID:       source.ItemID(ID, l.ID),
		Title:    l.Title,
		Subtitle: l.URL,
		Action:   source.Action{Kind: source.ActionOpenURL, Target: l.URL, Label: "Open"},
		Scored:   true,
	}
}

// ResolveTarget resolves a quicklink alias. A residual is appended to the
// link as a path segment.
func (s *Source) ResolveTarget(id, residual string) (string, source.Action, bool) {
	l, ok := s.byID[id]
	if !ok {
		return "", source.Action{}, false
	}
	target := l.URL
	title := l.Title
	if residual != "" {
		target = strings.TrimRight(target, "/") + "/" + url.PathEscape(residual)
		title += " " + residual
	}
	return title, source.Action{Kind: source.ActionOpenURL, Target: target, Label: "Open"}, true
}
