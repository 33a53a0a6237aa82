package files

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"unicode"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/registry"
	"github.com/blevesearch/bleve/v2/search/query"
)

const (
	// NameTokenizerName splits file names into words.
	NameTokenizerName = "file_name_tokenizer"

	// NameAnalyzerName is the analyzer of the name field.
	NameAnalyzerName = "file_name_analyzer"

	nameField = "name"
	pathField = "path"
)

func init() {
	_ = registry.RegisterTokenizer(NameTokenizerName, nameTokenizerConstructor)
}

// fileDocument is what gets indexed per file.
type fileDocument struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// hit is one index match.
type hit struct {
	Path  string
	Score float64
}

// nameIndex is an in-memory bleve index of file names keyed by absolute path.
type nameIndex struct {
	mu     sync.RWMutex
	index  bleve.Index
	paths  map[string]struct{}
	closed bool
}

func newNameIndex() (*nameIndex, error) {
	m, err := createIndexMapping()
	if err != nil {
		return nil, fmt.Errorf("failed to create index mapping: %w", err)
	}
	idx, err := bleve.NewMemOnly(m)
	if err != nil {
		return nil, fmt.Errorf("failed to create index: %w", err)
	}
	return &nameIndex{index: idx, paths: make(map[string]struct{})}, nil
}

func createIndexMapping() (*mapping.IndexMappingImpl, error) {
	im := bleve.NewIndexMapping()
	err := im.AddCustomAnalyzer(NameAnalyzerName, map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     NameTokenizerName,
		"token_filters": []string{lowercase.Name},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add custom analyzer: %w", err)
	}

	nameFM := bleve.NewTextFieldMapping()
	nameFM.Analyzer = NameAnalyzerName
	nameFM.Store = false

	pathFM := bleve.NewTextFieldMapping()
	pathFM.Index = false
	pathFM.Store = true

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt(nameField, nameFM)
	doc.AddFieldMappingsAt(pathField, pathFM)
	im.DefaultMapping = doc
	im.DefaultAnalyzer = NameAnalyzerName
	return im, nil
}

// add indexes documents in one batch.
func (n *nameIndex) add(docs []fileDocument) error {
	if len(docs) == 0 {
		return nil
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return fmt.Errorf("index is closed")
	}

	batch := n.index.NewBatch()
	for _, d := range docs {
		if err := batch.Index(d.Path, d); err != nil {
			return fmt.Errorf("failed to index %s: %w", d.Path, err)
		}
	}
	if err := n.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to execute batch: %w", err)
	}
	for _, d := range docs {
		n.paths[d.Path] = struct{}{}
	}
	return nil
}

// removeTree deletes path and everything beneath it.
func (n *nameIndex) removeTree(path string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return fmt.Errorf("index is closed")
	}

	prefix := strings.TrimSuffix(path, "/") + "/"
	batch := n.index.NewBatch()
	var gone []string
	for p := range n.paths {
		if p == path || strings.HasPrefix(p, prefix) {
			batch.Delete(p)
			gone = append(gone, p)
		}
	}
	if len(gone) == 0 {
		return nil
	}
	if err := n.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to delete documents: %w", err)
	}
	for _, p := range gone {
		delete(n.paths, p)
	}
	return nil
}

func (n *nameIndex) has(path string) bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	_, ok := n.paths[path]
	return ok
}

func (n *nameIndex) count() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.paths)
}

// search returns documents whose name has a word starting with each query
// term, best bleve score first.
func (n *nameIndex) search(ctx context.Context, text string, limit int) ([]hit, error) {
	terms := splitName(strings.ToLower(text))
	if len(terms) == 0 {
		return nil, nil
	}

	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		return nil, fmt.Errorf("index is closed")
	}

	conjuncts := make([]query.Query, 0, len(terms))
	for _, term := range terms {
		pq := bleve.NewPrefixQuery(term)
		pq.SetField(nameField)
		conjuncts = append(conjuncts, pq)
	}
	req := bleve.NewSearchRequestOptions(bleve.NewConjunctionQuery(conjuncts...), limit, 0, false)
	req.Fields = []string{pathField}

	res, err := n.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	out := make([]hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		p, _ := h.Fields[pathField].(string)
		if p == "" {
			p = h.ID
		}
		out = append(out, hit{Path: p, Score: h.Score})
	}
	return out, nil
}

func (n *nameIndex) close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return nil
	}
	n.closed = true
	return n.index.Close()
}

// splitName breaks a file name into words at separators, case changes
// and letter/digit transitions: "MyReport_v2.pdf" -> My, Report, v, 2, pdf.
func splitName(s string) []string {
	var words []string
	var cur []rune
	var prev rune
	flush := func() {
		if len(cur) > 0 {
			words = append(words, string(cur))
			cur = cur[:0]
		}
	}
	for _, r := range s {
		switch {
		case !unicode.IsLetter(r) && !unicode.IsDigit(r):
			flush()
		case len(cur) > 0 && (unicode.IsLower(prev) && unicode.IsUpper(r) ||
			unicode.IsDigit(prev) != unicode.IsDigit(r)):
			flush()
			cur = append(cur, r)
		default:
			cur = append(cur, r)
		}
		prev = r
	}
	flush()
	return words
}

func nameTokenizerConstructor(_ map[string]interface{}, _ *registry.Cache) (analysis.Tokenizer, error) {
	return &nameTokenizer{}, nil
}

// nameTokenizer implements analysis.Tokenizer using splitName.
type nameTokenizer struct{}

// Tokenize implements analysis.Tokenizer.
func (t *nameTokenizer) Tokenize(input []byte) analysis.TokenStream {
	text := string(input)
	words := splitName(text)

	stream := make(analysis.TokenStream, 0, len(words))
	offset := 0
	for i, w := range words {
		start := strings.Index(text[offset:], w)
		if start < 0 {
			start = offset
		} else {
			start += offset
		}
		end := start + len(w)
		stream = append(stream, &analysis.Token{
			Term:     []byte(w),
			Start:    start,
			End:      end,
			Position: i + 1,
			Type:     analysis.AlphaNumeric,
		})
		offset = end
	}
	// The joined form lets "myrep" find "MyReport.pdf".
	if len(words) > 1 {
		stream = append(stream, &analysis.Token{
			Term:     []byte(strings.Join(words, "")),
			Start:    0,
			End:      len(text),
			Position: len(words) + 1,
			Type:     analysis.AlphaNumeric,
		})
	}
	return stream
}
