package ranking

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeOrder(t *testing.T) {
	known := []string{"apps", "links", "calc", "web"}

	tests := []struct {
		name  string
		order []string
		want  []string
	}{
		{"empty uses registration order", nil, []string{"apps", "links", "calc", "web"}},
		{"permutation kept", []string{"web", "calc", "links", "apps"}, []string{"web", "calc", "links", "apps"}},
		{"unknown dropped", []string{"contacts", "calc"}, []string{"calc", "apps", "links", "web"}},
		{"duplicates dropped", []string{"calc", "calc", "apps"}, []string{"calc", "apps", "links", "web"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeOrder(tt.order, known))
		})
	}
}

func TestReorder(t *testing.T) {
	order := []string{"a", "b", "c", "d", "e"}
	disabled := map[string]bool{"b": true, "c": true}
	enabled := func(id string) bool { return !disabled[id] }

	tests := []struct {
		name      string
		id        string
		dir       Direction
		isEnabled func(string) bool
		want      []string
		moved     bool
	}{
		{"simple up", "c", Up, nil, []string{"a", "c", "b", "d", "e"}, true},
		{"simple down", "c", Down, nil, []string{"a", "b", "d", "c", "e"}, true},
		{"top boundary", "a", Up, nil, order, false},
		{"bottom boundary", "e", Down, nil, order, false},
		{"skips disabled going up", "d", Up, enabled, []string{"d", "b", "c", "a", "e"}, true},
		{"skips disabled going down", "a", Down, enabled, []string{"d", "b", "c", "a", "e"}, true},
		{"no enabled neighbour", "b", Up, func(id string) bool { return id == "b" }, order, false},
		{"unknown id", "zz", Up, nil, order, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, moved := Reorder(order, tt.id, tt.dir, tt.isEnabled)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.moved, moved)
		})
	}

	// Input is never mutated
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, order)
}

func TestParseDirection(t *testing.T) {
	d, ok := ParseDirection("up")
	assert.True(t, ok)
	assert.Equal(t, Up, d)
	assert.Equal(t, "up", d.String())

	d, ok = ParseDirection("down")
	assert.True(t, ok)
	assert.Equal(t, "down", d.String())

	_, ok = ParseDirection("sideways")
	assert.False(t, ok)
}
