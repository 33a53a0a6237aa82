package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWriter_Icons(t *testing.T) {
	tests := []struct {
		name  string
		write func(w *Writer)
		want  string
	}{
		{"status", func(w *Writer) { w.Status("🔍", "Scanning desktop entries") }, "🔍 Scanning desktop entries\n"},
		{"status without icon", func(w *Writer) { w.Status("", "indented") }, "   indented\n"},
		{"success", func(w *Writer) { w.Successf("Alias %q added", "g") }, "✅ Alias \"g\" added\n"},
		{"warning", func(w *Writer) { w.Warningf("%d sources disabled", 2) }, "⚠️  2 sources disabled\n"},
		{"error", func(w *Writer) { w.Errorf("no candidate %d", 7) }, "❌ no candidate 7\n"},
		{"statusf", func(w *Writer) { w.Statusf("•", "%s=%d", "n", 1) }, "• n=1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			tt.write(New(buf))
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestWriter_Code_IndentsLines(t *testing.T) {
	buf := &bytes.Buffer{}

	New(buf).Code("version: 1\nranking:\n")

	assert.Equal(t, "\n  version: 1\n  ranking:\n\n", buf.String())
}

func TestWriter_KeyValues_Aligns(t *testing.T) {
	// Given
	buf := &bytes.Buffer{}

	// When: pairs with different key widths and a dangling key
	New(buf).KeyValues("config", "/home/u/.config/amanlaunch/config.yaml", "data dir", "/home/u/.amanlaunch", "orphan")

	// Then
	assert.Equal(t,
		"  config:    /home/u/.config/amanlaunch/config.yaml\n  data dir:  /home/u/.amanlaunch\n",
		buf.String())
}

func TestWriter_Newline(t *testing.T) {
	buf := &bytes.Buffer{}
	New(buf).Newline()
	assert.Equal(t, "\n", buf.String())
}
