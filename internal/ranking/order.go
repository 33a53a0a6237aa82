package ranking

// Direction is a single-step move within the source order.
type Direction int

const (
	Up Direction = iota
	Down
)

// String returns "up" or "down".
func (d Direction) String() string {
	if d == Up {
		return "up"
	}
	return "down"
}

// ParseDirection parses "up" or "down".
func ParseDirection(s string) (Direction, bool) {
	switch s {
	case "up":
		return Up, true
	case "down":
		return Down, true
	}
	return Down, false
}

// NormalizeOrder turns a possibly stale persisted order into a permutation of
// known: unknown and duplicate ids are dropped and missing known ids are
// appended in registration order.
func NormalizeOrder(order, known []string) []string {
	isKnown := make(map[string]struct{}, len(known))
	for _, id := range known {
		isKnown[id] = struct{}{}
	}

	out := make([]string, 0, len(known))
	seen := make(map[string]struct{}, len(known))
	for _, id := range order {
		if _, ok := isKnown[id]; !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	for _, id := range known {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}

// Reorder moves id one step in dir, swapping with the nearest enabled
// neighbour and skipping disabled sources in between. It returns a new
// slice and whether anything moved; at a boundary, or when no enabled
// neighbour exists in that direction, the order is unchanged.
// A nil isEnabled treats every source as enabled.
func Reorder(order []string, id string, dir Direction, isEnabled func(string) bool) ([]string, bool) {
	out := make([]string, len(order))
	copy(out, order)

	pos := -1
	for i, s := range out {
		if s == id {
			pos = i
			break
		}
	}
	if pos < 0 {
		return out, false
	}

	step := 1
	if dir == Up {
		step = -1
	}
	for j := pos + step; j >= 0 && j < len(out); j += step {
		if isEnabled == nil || isEnabled(out[j]) {
			out[pos], out[j] = out[j], out[pos]
			return out, true
		}
	}
	return out, false
}
