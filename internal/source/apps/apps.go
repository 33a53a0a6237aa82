// Package apps is a Source over installed applications: configured entries
// plus XDG .desktop files.
package apps

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Aman-CERP/amanlaunch/internal/scorer"
	"github.com/Aman-CERP/amanlaunch/internal/source"
)

// ID is the source id.
const ID = "apps"

// Keyword and command matches rank below any name match.
const (
	keywordPenalty = 20
	execPenalty    = 30
)

// App is one launchable application.
type App struct {
	ID       string   `yaml:"id" json:"id"`
	Name     string   `yaml:"name" json:"name"`
	Exec     string   `yaml:"exec" json:"exec"`
	Comment  string   `yaml:"comment,omitempty" json:"comment,omitempty"`
	Keywords []string `yaml:"keywords,omitempty" json:"keywords,omitempty"`
}

// Config configures the apps source.
type Config struct {
	Entries     []App    `yaml:"entries,omitempty" json:"entries,omitempty"`
	ScanDesktop bool     `yaml:"scan_desktop" json:"scan_desktop"`
	DesktopDirs []string `yaml:"desktop_dirs,omitempty" json:"desktop_dirs,omitempty"`
	MaxResults  int      `yaml:"max_results" json:"max_results"`
	CacheSize   int      `yaml:"cache_size" json:"cache_size"`
}

// DefaultConfig scans the XDG directories and keeps 128 cached queries.
func DefaultConfig() Config {
	return Config{
		ScanDesktop: true,
		MaxResults:  12,
		CacheSize:   128,
	}
}

// Source implements source.Source over an application catalog.
type Source struct {
	catalog []App
	byID    map[string]App
	cfg     Config
	cache   *lru.Cache[string, []source.Candidate]
	logger  *slog.Logger
}

var _ source.Source = (*Source)(nil)

// Option configures a Source.
type Option func(*Source)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Source) {
		if l != nil {
			s.logger = l
		}
	}
}

// New builds the catalog. Configured entries take precedence over .desktop
// files with the same id.
func New(cfg Config, opts ...Option) *Source {
	def := DefaultConfig()
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = def.MaxResults
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = def.CacheSize
	}

	s := &Source{cfg: cfg, byID: make(map[string]App), logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}

	add := func(a App) {
		if a.ID == "" || a.Name == "" {
			return
		}
		if _, dup := s.byID[a.ID]; dup {
			return
		}
		s.byID[a.ID] = a
		s.catalog = append(s.catalog, a)
	}
	for _, a := range cfg.Entries {
		add(a)
	}
	if cfg.ScanDesktop {
		dirs := cfg.DesktopDirs
		if len(dirs) == 0 {
			dirs = DefaultDesktopDirs()
		}
		for _, a := range scanDesktopDirs(dirs, s.logger) {
			add(a)
		}
	}
	sort.SliceStable(s.catalog, func(i, j int) bool {
		return strings.ToLower(s.catalog[i].Name) < strings.ToLower(s.catalog[j].Name)
	})

	s.cache, _ = lru.New[string, []source.Candidate](cfg.CacheSize)
	s.logger.Debug("apps_catalog_loaded", slog.Int("apps", len(s.catalog)))
	return s
}

// ID implements source.Source.
func (s *Source) ID() string { return ID }

// DisplayName implements source.Source.
func (s *Source) DisplayName() string { return "Applications" }

// Accepts implements source.Source. A blank query lists the catalog.
func (s *Source) Accepts(source.Query) bool { return len(s.catalog) > 0 }

// Apps returns the catalog in display order.
func (s *Source) Apps() []App {
	return append([]App(nil), s.catalog...)
}

// Resolve implements source.Source. Blank queries return the first
// MaxResults apps alphabetically; others are fuzzy matched on the name,
// then on keywords and the command line.
func (s *Source) Resolve(ctx context.Context, q source.Query) ([]source.Candidate, error) {
	if cached, ok := s.cache.Get(q.Normalized); ok {
		return cloneCandidates(cached), nil
	}

	var out []source.Candidate
	if q.IsBlank() {
		for _, a := range s.catalog {
			if len(out) == s.cfg.MaxResults {
				break
			}
			out = append(out, s.candidate(a))
		}
	} else {
		out = s.match(ctx, q.Normalized)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.cache.Add(q.Normalized, out)
	return cloneCandidates(out), nil
}

func (s *Source) match(ctx context.Context, text string) []source.Candidate {
	var out []source.Candidate
	for i, a := range s.catalog {
		if i%256 == 0 && ctx.Err() != nil {
			return nil
		}
		c := s.candidate(a)
		if m, ok := scorer.Match(text, a.Name); ok {
			c.RankScore = m.Score
			c.TitleMatchPositions = m.Positions
			out = append(out, c)
			continue
		}
		if score, ok := bestKeyword(text, a.Keywords); ok {
			c.RankScore = score - keywordPenalty
			out = append(out, c)
			continue
		}
		if m, ok := scorer.Match(text, a.Exec); ok {
			c.RankScore = m.Score - execPenalty
			if c.Subtitle == a.Exec {
				c.SubtitleMatchPositions = m.Positions
			}
			out = append(out, c)
		}
	}
	// Catalog order is alphabetical, so a stable sort breaks ties by name.
	sort.SliceStable(out, func(i, j int) bool { return out[i].RankScore > out[j].RankScore })
	if len(out) > s.cfg.MaxResults {
		out = out[:s.cfg.MaxResults]
	}
	return out
}

func bestKeyword(text string, keywords []string) (int, bool) {
	best, found := 0, false
	for _, k := range keywords {
		if m, ok := scorer.Match(text, k); ok && (!found || m.Score > best) {
			best, found = m.Score, true
		}
	}
	return best, found
}

func (s *Source) candidate(a App) source.Candidate {
	sub := a.Comment
	if sub == "" {
		sub = a.Exec
	}
	return source.Candidate{
		ID:       source.ItemID(ID, a.ID),
		Title:    a.Name,
		Subtitle: sub,
		Action:   source.Action{Kind: source.ActionLaunchApp, Target: a.Exec, Label: "Launch"},
		Scored:   true,
	}
}

// ResolveTarget resolves an app alias. A residual is appended to the
// command line as arguments.
func (s *Source) ResolveTarget(id, residual string) (string, source.Action, bool) {
	a, ok := s.byID[id]
	if !ok {
		return "", source.Action{}, false
	}
	cmd := a.Exec
	title := "Launch " + a.Name
	if residual != "" {
		cmd += " " + residual
		title += " " + residual
	}
	return title, source.Action{Kind: source.ActionLaunchApp, Target: cmd, Label: "Launch"}, true
}

func cloneCandidates(in []source.Candidate) []source.Candidate {
	if in == nil {
		return nil
	}
	out := make([]source.Candidate, len(in))
	copy(out, in)
	return out
}
