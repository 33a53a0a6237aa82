// Package calculator is a Source that evaluates arithmetic typed into the
// launcher and offers the result for copying.
package calculator

import (
	"context"
	"strconv"
	"strings"

	"github.com/Aman-CERP/amanlaunch/internal/source"
)

// ID is the source id.
const ID = "calculator"

// resultScore is the fixed score of the single result.
const resultScore = 900

// Config configures the calculator source.
type Config struct {
	// Precision is the number of significant digits in the result.
	Precision int `yaml:"precision" json:"precision"`
}

// DefaultConfig returns the defaults.
func DefaultConfig() Config {
	return Config{Precision: 12}
}

// maxExprLen is the longest text, in bytes, treated as an expression.
const maxExprLen = 256

// Source implements source.Source.
type Source struct {
	precision int
}

var _ source.Source = (*Source)(nil)

// New returns a calculator source.
func New(cfg Config) *Source {
	if cfg.Precision <= 0 || cfg.Precision > 17 {
		cfg.Precision = DefaultConfig().Precision
	}
	return &Source{precision: cfg.Precision}
}

// ID implements source.Source.
func (s *Source) ID() string { return ID }

// DisplayName implements source.Source.
func (s *Source) DisplayName() string { return "Calculator" }

// Accepts reports whether q looks like arithmetic: only number, operator
// and paren characters, at least one digit, and an operator or paren after
// the first character. Text longer than maxExprLen is never arithmetic.
func (s *Source) Accepts(q source.Query) bool {
	text := q.Normalized
	if len(text) < 2 || len(text) > maxExprLen {
		return false
	}
	digit := false
	for i := 0; i < len(text); i++ {
		c := text[i]
		switch {
		case c >= '0' && c <= '9':
			digit = true
		case strings.IndexByte(" \t.+-*/%^()", c) >= 0:
		default:
			return false
		}
	}
	return digit && strings.ContainsAny(text[1:], "+-*/%^()")
}

// Resolve implements source.Source. Incomplete or invalid expressions yield
// no candidate rather than an error, since they are normal while typing.
func (s *Source) Resolve(_ context.Context, q source.Query) ([]source.Candidate, error) {
	v, err := Eval(q.Normalized)
	if err != nil {
		return nil, nil
	}
	result := s.format(v)
	return []source.Candidate{{
		ID:        source.ItemID(ID, "result"),
		Title:     result,
		Subtitle:  q.Normalized + " =",
		RankScore: resultScore,
		Scored:    true,
		Flags: source.Flags{
			KeepResultsVisibleAfterAction: true,
			ExcludeFromUsageLearning:      true,
		},
		Action: source.Action{Kind: source.ActionCopyText, Target: result, Label: "Copy"},
	}}, nil
}

func (s *Source) format(v float64) string {
	if v == 0 {
		return "0"
	}
	return strconv.FormatFloat(v, 'g', s.precision, 64)
}
