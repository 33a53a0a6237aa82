package files

import (
	"bufio"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// excludeRule is one compiled exclude pattern using gitignore-like syntax:
// a trailing "/" matches directories only, a pattern containing "/" is
// anchored at the root, a leading "!" re-includes, "#" starts a comment.
type excludeRule struct {
	glob     string
	negate   bool
	dirOnly  bool
	anchored bool
}

// excluder decides which walked paths are left out of the index.
// Later rules override earlier ones.
type excluder struct {
	rules []excludeRule
}

func newExcluder(patterns ...string) *excluder {
	ex := &excluder{}
	for _, p := range patterns {
		ex.add(p)
	}
	return ex
}

func (ex *excluder) add(pattern string) {
	p := strings.TrimSpace(pattern)
	if p == "" || strings.HasPrefix(p, "#") {
		return
	}
	var r excludeRule
	if strings.HasPrefix(p, "!") {
		r.negate = true
		p = p[1:]
	}
	if strings.HasSuffix(p, "/") {
		r.dirOnly = true
		p = strings.TrimSuffix(p, "/")
	}
	if strings.HasPrefix(p, "/") {
		r.anchored = true
		p = strings.TrimPrefix(p, "/")
	}
	if strings.Contains(p, "/") {
		r.anchored = true
	}
	if p == "" {
		return
	}
	if _, err := path.Match(p, ""); err != nil {
		// Malformed glob; ignore rather than fail the walk.
		return
	}
	r.glob = p
	ex.rules = append(ex.rules, r)
}

// addFile appends the patterns of an ignore file such as .gitignore.
func (ex *excluder) addFile(name string) error {
	f, err := os.Open(name)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		ex.add(sc.Text())
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	return nil
}

// match reports whether rel (slash or OS separated, relative to the walk
// root) is excluded. Callers pass directories before their contents, so a
// directory rule only needs to match the entry itself.
func (ex *excluder) match(rel string, isDir bool) bool {
	rel = filepath.ToSlash(rel)
	base := path.Base(rel)

	excluded := false
	for _, r := range ex.rules {
		if r.dirOnly && !isDir {
			continue
		}
		target := base
		if r.anchored {
			target = rel
		}
		if ok, _ := path.Match(r.glob, target); ok {
			excluded = !r.negate
		}
	}
	return excluded
}
