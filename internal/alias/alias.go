// Package alias holds user-defined shortcut entries and resolves raw query
// text into a shortcut hit plus the residual text that follows the key.
package alias

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	lerrors "github.com/Aman-CERP/amanlaunch/internal/errors"
)

// TargetKind tags the variant held by a Target.
type TargetKind string

const (
	KindWebSearch TargetKind = "web_search"
	KindAppLaunch TargetKind = "app_launch"
	KindQuicklink TargetKind = "quicklink"
)

// Target is what an alias points at. ID is the site, app or link id and
// Label its display name, depending on Kind.
type Target struct {
	Kind  TargetKind `json:"kind"`
	ID    string     `json:"id"`
	Label string     `json:"label,omitempty"`
}

// WebSearch targets a configured search site.
func WebSearch(siteID, displayName string) Target {
	return Target{Kind: KindWebSearch, ID: siteID, Label: displayName}
}

// AppLaunch targets an application.
func AppLaunch(appID, label string) Target {
	return Target{Kind: KindAppLaunch, ID: appID, Label: label}
}

// Quicklink targets a configured bookmark.
func Quicklink(linkID, title string) Target {
	return Target{Kind: KindQuicklink, ID: linkID, Label: title}
}

// Valid reports whether the target has a known kind and an id.
func (t Target) Valid() bool {
	switch t.Kind {
	case KindWebSearch, KindAppLaunch, KindQuicklink:
		return strings.TrimSpace(t.ID) != ""
	}
	return false
}

// Entry is one stored shortcut.
type Entry struct {
	Key       string    `json:"key"`
	Target    Target    `json:"target"`
	CreatedAt time.Time `json:"created_at"`
}

// Hit is a successful resolution.
type Hit struct {
	Entry    Entry
	Residual string
}

// InsertResult is the typed outcome of Insert.
type InsertResult int

const (
	Success InsertResult = iota
	Duplicate
	InvalidKey
)

// String returns the result name.
func (r InsertResult) String() string {
	switch r {
	case Success:
		return "success"
	case Duplicate:
		return "duplicate"
	case InvalidKey:
		return "invalid_key"
	default:
		return "unknown"
	}
}

// Persister loads entries once and is told about every change.
type Persister interface {
	LoadAll(ctx context.Context) ([]Entry, error)
	OnChanged(ctx context.Context, entries []Entry) error
}

// NormalizeKey lowercases and trims a key.
func NormalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

// Index is the in-memory alias table. Entries keep insertion order, and
// lookups are first-match in that order. Writes hold persistMu from the
// change to the save, so the persister sees snapshots in order.
type Index struct {
	mu        sync.RWMutex
	persistMu sync.Mutex
	entries   []Entry
	persister Persister
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures an Index.
type Option func(*Index)

// WithPersister sets the collaborator that stores entries.
func WithPersister(p Persister) Option {
	return func(ix *Index) {
		ix.persister = p
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(ix *Index) {
		if l != nil {
			ix.logger = l
		}
	}
}

// WithClock overrides the creation timestamp source.
func WithClock(now func() time.Time) Option {
	return func(ix *Index) {
		ix.now = now
	}
}

// NewIndex builds an Index and loads the persisted entries, if a persister
// is configured. Unreadable or malformed data yields an empty index.
func NewIndex(ctx context.Context, opts ...Option) *Index {
	ix := &Index{
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(ix)
	}

	if ix.persister == nil {
		return ix
	}
	loaded, err := ix.persister.LoadAll(ctx)
	if err != nil {
		ix.logger.Warn("alias_load_failed", lerrors.LogAttrs(err)...)
		return ix
	}
	ix.entries = sanitize(loaded, ix.logger)
	ix.logger.Debug("aliases_loaded", slog.Int("count", len(ix.entries)))
	return ix
}

// sanitize normalizes keys and drops blank, duplicate or untargeted entries.
func sanitize(in []Entry, logger *slog.Logger) []Entry {
	seen := make(map[string]struct{}, len(in))
	out := make([]Entry, 0, len(in))
	for _, e := range in {
		e.Key = NormalizeKey(e.Key)
		if e.Key == "" || !e.Target.Valid() {
			logger.Warn("alias_entry_dropped", slog.String("key", e.Key), slog.String("reason", "invalid"))
			continue
		}
		if _, dup := seen[e.Key]; dup {
			logger.Warn("alias_entry_dropped", slog.String("key", e.Key), slog.String("reason", "duplicate"))
			continue
		}
		seen[e.Key] = struct{}{}
		out = append(out, e)
	}
	return out
}

// Resolve matches query against the stored keys. Leading whitespace is
// ignored and comparison is case-insensitive. A key matches when it equals
// the query or is followed by whitespace or ':'; the residual is the text
// after the key and that one separator, left-trimmed. The first matching
// entry in insertion order wins.
func (ix *Index) Resolve(query string) (Hit, bool) {
	text := strings.TrimLeftFunc(query, unicode.IsSpace)
	if text == "" {
		return Hit{}, false
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	for _, e := range ix.entries {
		rest, ok := cutPrefixFold(text, e.Key)
		if !ok {
			continue
		}
		if rest == "" {
			return Hit{Entry: e, Residual: ""}, true
		}
		r, size := utf8.DecodeRuneInString(rest)
		if unicode.IsSpace(r) || r == ':' {
			return Hit{Entry: e, Residual: strings.TrimLeftFunc(rest[size:], unicode.IsSpace)}, true
		}
	}
	return Hit{}, false
}

// cutPrefixFold strips key from the front of s, comparing s lowercased rune by
// rune. key must already be lowercase. The remainder keeps s's original case.
func cutPrefixFold(s, key string) (string, bool) {
	i := 0
	for _, kr := range key {
		if i >= len(s) {
			return "", false
		}
		r, size := utf8.DecodeRuneInString(s[i:])
		if unicode.ToLower(r) != kr {
			return "", false
		}
		i += size
	}
	return s[i:], true
}

// Insert adds a new entry. The InsertResult reports validation; the error is
// non-nil only when the entry was accepted but could not be persisted.
func (ix *Index) Insert(ctx context.Context, key string, target Target) (InsertResult, error) {
	norm := NormalizeKey(key)
	if norm == "" {
		return InvalidKey, nil
	}
	if !target.Valid() {
		return InvalidKey, nil
	}

	ix.persistMu.Lock()
	defer ix.persistMu.Unlock()

	ix.mu.Lock()
	for _, e := range ix.entries {
		if e.Key == norm {
			ix.mu.Unlock()
			return Duplicate, nil
		}
	}
	ix.entries = append(ix.entries, Entry{Key: norm, Target: target, CreatedAt: ix.now()})
	snapshot := ix.snapshotLocked()
	ix.mu.Unlock()

	ix.logger.Info("alias_inserted",
		slog.String("key", norm),
		slog.String("kind", string(target.Kind)),
		slog.String("target", target.ID))

	return Success, ix.persist(ctx, snapshot)
}

// Remove deletes the entry with the given key. It is a no-op if absent.
func (ix *Index) Remove(ctx context.Context, key string) error {
	norm := NormalizeKey(key)

	ix.persistMu.Lock()
	defer ix.persistMu.Unlock()

	ix.mu.Lock()
	idx := -1
	for i, e := range ix.entries {
		if e.Key == norm {
			idx = i
			break
		}
	}
	if idx < 0 {
		ix.mu.Unlock()
		return nil
	}
	ix.entries = append(ix.entries[:idx], ix.entries[idx+1:]...)
	snapshot := ix.snapshotLocked()
	ix.mu.Unlock()

	ix.logger.Info("alias_removed", slog.String("key", norm))
	return ix.persist(ctx, snapshot)
}

// Entries returns a copy of the entries in insertion order.
func (ix *Index) Entries() []Entry {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.snapshotLocked()
}

// Len returns the number of entries.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.entries)
}

func (ix *Index) snapshotLocked() []Entry {
	out := make([]Entry, len(ix.entries))
	copy(out, ix.entries)
	return out
}

func (ix *Index) persist(ctx context.Context, entries []Entry) error {
	if ix.persister == nil {
		return nil
	}
	if err := ix.persister.OnChanged(ctx, entries); err != nil {
		ix.logger.Warn("alias_persist_failed", slog.String("error", err.Error()))
		return fmt.Errorf("persist aliases: %w", err)
	}
	return nil
}
