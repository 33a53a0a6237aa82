// Package websearch is a Source that offers to search the typed text on
// each configured search site.
package websearch

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/Aman-CERP/amanlaunch/internal/source"
)

// ID is the source id.
const ID = "websearch"

// Placeholder marks where the escaped query goes in a site URL template.
const Placeholder = "{query}"

// topScore is the fixed score of the first site; later sites score lower.
const topScore = 100

// Site is one search engine.
type Site struct {
	ID   string `yaml:"id" json:"id"`
	Name string `yaml:"name" json:"name"`
	URL  string `yaml:"url" json:"url"`
}

// Expand returns the site URL for query.
func (s Site) Expand(query string) string {
	return strings.ReplaceAll(s.URL, Placeholder, url.QueryEscape(query))
}

// DefaultSites returns the built-in search sites.
func DefaultSites() []Site {
	return []Site{
		{ID: "google", Name: "Google", URL: "https://www.google.com/search?q={query}"},
		{ID: "duckduckgo", Name: "DuckDuckGo", URL: "https://duckduckgo.com/?q={query}"},
		{ID: "wikipedia", Name: "Wikipedia", URL: "https://en.wikipedia.org/wiki/Special:Search?search={query}"},
	}
}

// ValidateSite reports whether s can be used.
func ValidateSite(s Site) error {
	if s.ID == "" {
		return fmt.Errorf("search site has no id")
	}
	if !strings.Contains(s.URL, Placeholder) {
		return fmt.Errorf("search site %q: url must contain %s", s.ID, Placeholder)
	}
	u, err := url.Parse(strings.ReplaceAll(s.URL, Placeholder, "x"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("search site %q: invalid url %q", s.ID, s.URL)
	}
	return nil
}

// Source implements source.Source.
type Source struct {
	sites []Site
	byID  map[string]Site
}

var _ source.Source = (*Source)(nil)

// New returns a Source over sites in display order. Invalid sites and
// repeated ids are dropped.
func New(sites []Site) *Source {
	s := &Source{byID: make(map[string]Site)}
	for _, site := range sites {
		if ValidateSite(site) != nil {
			continue
		}
		if _, dup := s.byID[site.ID]; dup {
			continue
		}
		if site.Name == "" {
			site.Name = site.ID
		}
		s.byID[site.ID] = site
		s.sites = append(s.sites, site)
	}
	return s
}

// ID implements source.Source.
func (s *Source) ID() string { return ID }

// DisplayName implements source.Source.
func (s *Source) DisplayName() string { return "Web Search" }

// Sites returns the sites in display order.
func (s *Source) Sites() []Site {
	return append([]Site(nil), s.sites...)
}

// Site looks up a site by id.
func (s *Source) Site(id string) (Site, bool) {
	site, ok := s.byID[id]
	return site, ok
}

// Accepts implements source.Source.
func (s *Source) Accepts(q source.Query) bool {
	return len(s.sites) > 0 && !q.IsBlank()
}

// Resolve implements source.Source. Each site yields one candidate, scored
// by its position so the configured order holds.
func (s *Source) Resolve(_ context.Context, q source.Query) ([]source.Candidate, error) {
	out := make([]source.Candidate, 0, len(s.sites))
	for i, site := range s.sites {
		out = append(out, source.Candidate{
			ID:        source.ItemID(ID, site.ID),
			Title:     fmt.Sprintf("Search %s for %q", site.Name, q.Normalized),
			Subtitle:  site.Name,
			RankScore: topScore - i,
			Scored:    true,
			Flags:     source.Flags{ExcludeFromUsageLearning: true},
			Action:    source.Action{Kind: source.ActionOpenURL, Target: site.Expand(q.Normalized), Label: "Search"},
		})
	}
	return out, nil
}

// ResolveTarget resolves a web search alias: the residual is the search
// text, and a blank residual opens the site with an empty query.
func (s *Source) ResolveTarget(id, residual string) (string, source.Action, bool) {
	site, ok := s.byID[id]
	if !ok {
		return "", source.Action{}, false
	}
	title := "Search " + site.Name
	if residual != "" {
		title = fmt.Sprintf("Search %s for %q", site.Name, residual)
	}
	return title, source.Action{Kind: source.ActionOpenURL, Target: site.Expand(residual), Label: "Search"}, true
}
