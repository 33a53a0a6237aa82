// Package files is a Source over file names under configured roots, backed
// by an in-memory bleve index that an fsnotify watcher keeps current.
package files

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/amanlaunch/internal/scorer"
	"github.com/Aman-CERP/amanlaunch/internal/source"
)

// ID is the source id.
const ID = "files"

// batchSize bounds documents per bleve batch during the initial walk.
const batchSize = 500

// Config configures the files source.
type Config struct {
	Roots          []string      `yaml:"roots" json:"roots"`
	Exclude        []string      `yaml:"exclude" json:"exclude"`
	MaxFiles       int           `yaml:"max_files" json:"max_files"`
	MaxDepth       int           `yaml:"max_depth" json:"max_depth"`
	MaxResults     int           `yaml:"max_results" json:"max_results"`
	MinQueryLength int           `yaml:"min_query_length" json:"min_query_length"`
	IncludeHidden  bool          `yaml:"include_hidden" json:"include_hidden"`
	Watch          bool          `yaml:"watch" json:"watch"`
	SettleDelay    time.Duration `yaml:"settle_delay" json:"settle_delay"`
}

// DefaultConfig returns the defaults: the home directory, a few thousand
// files, watching on.
func DefaultConfig() Config {
	return Config{
		Roots:          []string{"~"},
		Exclude:        []string{".git/", "node_modules/", "vendor/", "__pycache__/", "*.tmp", "*.swp"},
		MaxFiles:       20000,
		MaxDepth:       6,
		MaxResults:     20,
		MinQueryLength: 2,
		Watch:          true,
		SettleDelay:    200 * time.Millisecond,
	}
}

// WithDefaults fills zero numeric fields from DefaultConfig.
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if c.MaxFiles <= 0 {
		c.MaxFiles = d.MaxFiles
	}
	if c.MaxDepth <= 0 {
		c.MaxDepth = d.MaxDepth
	}
	if c.MaxResults <= 0 {
		c.MaxResults = d.MaxResults
	}
	if c.MinQueryLength <= 0 {
		c.MinQueryLength = d.MinQueryLength
	}
	if c.SettleDelay <= 0 {
		c.SettleDelay = d.SettleDelay
	}
	return c
}

// root is one indexed directory tree.
type root struct {
	path    string
	exclude *excluder
}

// Source implements source.Source over indexed file names.
type Source struct {
	cfg    Config
	home   string
	index  *nameIndex
	roots  []root
	logger *slog.Logger

	watcher *watcher
	closed  atomic.Bool
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

// Open indexes every root concurrently and, when cfg.Watch is set, starts
// watching the indexed directories. Roots that do not exist are skipped.
func Open(ctx context.Context, cfg Config, opts ...Option) (*Source, error) {
	cfg = cfg.WithDefaults()
	idx, err := newNameIndex()
	if err != nil {
		return nil, err
	}

	home, _ := os.UserHomeDir()
	s := &Source{cfg: cfg, home: home, index: idx, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	s.roots = s.resolveRoots(cfg.Roots)

	if cfg.Watch {
		w, err := newWatcher(s, cfg.SettleDelay)
		if err != nil {
			s.logger.Warn("files_watch_unavailable", slog.String("error", err.Error()))
		} else {
			s.watcher = w
		}
	}

	start := time.Now()
	if err := s.build(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	s.logger.Info("files_indexed",
		slog.Int("roots", len(s.roots)),
		slog.Int("files", idx.count()),
		slog.Duration("duration", time.Since(start)))

	if s.watcher != nil {
		s.watcher.start()
	}
	return s, nil
}

func (s *Source) resolveRoots(paths []string) []root {
	var out []root
	seen := make(map[string]bool)
	for _, p := range paths {
		abs, err := filepath.Abs(s.expandHome(p))
		if err != nil {
			continue
		}
		info, err := os.Stat(abs)
		if err != nil || !info.IsDir() {
			s.logger.Debug("files_root_skipped", slog.String("root", abs))
			continue
		}
		if seen[abs] {
			continue
		}
		seen[abs] = true

		ex := newExcluder(s.cfg.Exclude...)
		if err := ex.addFile(filepath.Join(abs, ".gitignore")); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("files_gitignore_unreadable", slog.String("root", abs), slog.String("error", err.Error()))
		}
		out = append(out, root{path: abs, exclude: ex})
	}
	return out
}

func (s *Source) expandHome(p string) string {
	if s.home == "" {
		return p
	}
	if p == "~" {
		return s.home
	}
	if strings.HasPrefix(p, "~/") {
		return filepath.Join(s.home, p[2:])
	}
	return p
}

// errLimit stops walks once MaxFiles documents are collected.
var errLimit = errors.New("file limit reached")

func (s *Source) build(ctx context.Context) error {
	var budget atomic.Int64
	budget.Store(int64(s.cfg.MaxFiles))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, r := range s.roots {
		g.Go(func() error {
			return s.walk(gctx, r, r.path, &budget)
		})
	}
	return g.Wait()
}

// walk indexes the tree under dir, which lies within r, and registers its
// directories with the watcher.
func (s *Source) walk(ctx context.Context, r root, dir string, budget *atomic.Int64) error {
	baseDepth := strings.Count(r.path, string(filepath.Separator))
	docs := make([]fileDocument, 0, batchSize)
	flush := func() error {
		if err := s.index.add(docs); err != nil {
			return err
		}
		docs = docs[:0]
		return nil
	}

	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // Skip entries we can't access
		}
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		if p != r.path && s.skip(r, p, d.IsDir()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if strings.Count(p, string(filepath.Separator))-baseDepth >= s.cfg.MaxDepth {
				return filepath.SkipDir
			}
			if s.watcher != nil {
				s.watcher.add(p)
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if budget != nil && budget.Add(-1) < 0 {
			return errLimit
		}
		docs = append(docs, fileDocument{Name: d.Name(), Path: p})
		if len(docs) >= batchSize {
			return flush()
		}
		return nil
	})
	if err != nil && !errors.Is(err, errLimit) {
		return fmt.Errorf("index %s: %w", dir, err)
	}
	if errors.Is(err, errLimit) {
		s.logger.Warn("files_limit_reached", slog.String("root", r.path), slog.Int("max_files", s.cfg.MaxFiles))
	}
	return flush()
}

// skip applies hidden-file and exclude rules to p under r.
func (s *Source) skip(r root, p string, isDir bool) bool {
	if !s.cfg.IncludeHidden && strings.HasPrefix(filepath.Base(p), ".") {
		return true
	}
	rel, err := filepath.Rel(r.path, p)
	if err != nil {
		return true
	}
	return r.exclude.match(rel, isDir)
}

// rootOf returns the root containing p.
func (s *Source) rootOf(p string) (root, bool) {
	for _, r := range s.roots {
		if p == r.path || strings.HasPrefix(p, r.path+string(filepath.Separator)) {
			return r, true
		}
	}
	return root{}, false
}

// ID implements source.Source.
func (s *Source) ID() string { return ID }

// DisplayName implements source.Source.
func (s *Source) DisplayName() string { return "Files" }

// Accepts implements source.Source.
func (s *Source) Accepts(q source.Query) bool {
	return !s.closed.Load() && utf8.RuneCountInString(q.Normalized) >= s.cfg.MinQueryLength
}

// Resolve implements source.Source. Index hits are re-scored against the
// base name; non-subsequence hits keep score 0 and sort last.
func (s *Source) Resolve(ctx context.Context, q source.Query) ([]source.Candidate, error) {
	hits, err := s.index.search(ctx, q.Normalized, s.cfg.MaxResults*3)
	if err != nil {
		return nil, err
	}

	out := make([]source.Candidate, 0, len(hits))
	for _, h := range hits {
		name := filepath.Base(h.Path)
		c := source.Candidate{
			ID:       source.ItemID(ID, h.Path),
			Title:    name,
			Subtitle: s.displayDir(filepath.Dir(h.Path)),
			Action: source.Action{
				Kind:   source.ActionOpenURL,
				Target: (&url.URL{Scheme: "file", Path: filepath.ToSlash(h.Path)}).String(),
				Label:  "Open",
			},
			Scored: true,
		}
		if m, ok := scorer.Match(q.Normalized, name); ok {
			c.RankScore = m.Score
			c.TitleMatchPositions = m.Positions
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].RankScore > out[j].RankScore })
	if len(out) > s.cfg.MaxResults {
		out = out[:s.cfg.MaxResults]
	}
	return out, nil
}

func (s *Source) displayDir(dir string) string {
	if s.home != "" && (dir == s.home || strings.HasPrefix(dir, s.home+string(filepath.Separator))) {
		return "~" + strings.TrimPrefix(dir, s.home)
	}
	return dir
}

// Count returns the number of indexed files.
func (s *Source) Count() int {
	return s.index.count()
}

// Close stops the watcher and releases the index.
func (s *Source) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	if s.watcher != nil {
		s.watcher.stop()
	}
	return s.index.close()
}

// reconcile brings the index in line with the file system for the given
// absolute paths: existing ones are (re)indexed, missing ones removed.
func (s *Source) reconcile(ctx context.Context, paths []string) {
	changed := 0
	for _, p := range paths {
		r, ok := s.rootOf(p)
		if !ok {
			continue
		}
		info, err := os.Lstat(p)
		if err != nil {
			if err := s.index.removeTree(p); err != nil {
				s.logger.Warn("files_remove_failed", slog.String("path", p), slog.String("error", err.Error()))
			}
			changed++
			continue
		}
		if s.skip(r, p, info.IsDir()) {
			continue
		}
		if info.IsDir() {
			if err := s.walk(ctx, r, p, nil); err != nil {
				s.logger.Warn("files_reindex_failed", slog.String("path", p), slog.String("error", err.Error()))
			}
		} else if info.Mode().IsRegular() && !s.index.has(p) {
			if err := s.index.add([]fileDocument{{Name: info.Name(), Path: p}}); err != nil {
				s.logger.Warn("files_add_failed", slog.String("path", p), slog.String("error", err.Error()))
			}
		}
		changed++
	}
	if changed > 0 {
		s.logger.Debug("files_reconciled", slog.Int("paths", changed), slog.Int("files", s.index.count()))
	}
}
