package ui

import "strings"

// SparklineChars are the block characters used for bars, lowest first.
var SparklineChars = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// Sparkline is a fixed-width ring of samples rendered as block characters.
// The launcher uses it for recent turn latencies.
type Sparkline struct {
	samples []float64
	head    int
	count   int
}

// NewSparkline creates a sparkline holding the last width samples.
func NewSparkline(width int) *Sparkline {
	if width <= 0 {
		width = 20
	}
	return &Sparkline{samples: make([]float64, width)}
}

// Add appends a sample, evicting the oldest when full.
func (s *Sparkline) Add(value float64) {
	s.samples[s.head] = value
	s.head = (s.head + 1) % len(s.samples)
	s.count++
}

// Len returns how many samples are held.
func (s *Sparkline) Len() int {
	return min(s.count, len(s.samples))
}

// Values returns the held samples, oldest first.
func (s *Sparkline) Values() []float64 {
	n := s.Len()
	out := make([]float64, 0, n)
	start := 0
	if s.count >= len(s.samples) {
		start = s.head
	}
	for i := 0; i < n; i++ {
		out = append(out, s.samples[(start+i)%len(s.samples)])
	}
	return out
}

// Render returns the held samples as bars scaled to the largest one.
func (s *Sparkline) Render() string {
	return Bars(s.Values())
}

// Bars renders values as one block character each, scaled to the maximum.
// Zero renders as the lowest block.
func Bars(values []float64) string {
	peak := 0.0
	for _, v := range values {
		peak = max(peak, v)
	}

	var sb strings.Builder
	sb.Grow(len(values) * 3)
	for _, v := range values {
		idx := 0
		if peak > 0 && v > 0 {
			idx = int(v / peak * float64(len(SparklineChars)-1))
			idx = max(0, min(idx, len(SparklineChars)-1))
		}
		sb.WriteRune(SparklineChars[idx])
	}
	return sb.String()
}
