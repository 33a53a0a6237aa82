package launcher

import (
	"sort"
)

// Settings is the ranking state the Engine snapshots at the start of a turn.
type Settings struct {
	// SourceOrder is the manual priority, a permutation of registered ids.
	SourceOrder []string `json:"source_order"`

	// Disabled holds ids of sources left out of every turn.
	Disabled map[string]bool `json:"disabled,omitempty"`

	// UseFrequency selects frequency ranking over manual order.
	UseFrequency bool `json:"use_frequency"`
}

// Clone returns a deep copy.
func (s Settings) Clone() Settings {
	out := Settings{
		SourceOrder:  append([]string(nil), s.SourceOrder...),
		UseFrequency: s.UseFrequency,
	}
	if len(s.Disabled) > 0 {
		out.Disabled = make(map[string]bool, len(s.Disabled))
		for id, off := range s.Disabled {
			if off {
				out.Disabled[id] = true
			}
		}
	}
	return out
}

// Enabled reports whether id takes part in turns.
func (s Settings) Enabled(id string) bool {
	return !s.Disabled[id]
}

// DisabledIDs returns the disabled ids sorted.
func (s Settings) DisabledIDs() []string {
	var ids []string
	for id, off := range s.Disabled {
		if off {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// SettingsSink receives every settings mutation, typically to persist it.
type SettingsSink interface {
	SettingsChanged(s Settings) error
}

// SettingsSinkFunc adapts a function to SettingsSink.
type SettingsSinkFunc func(s Settings) error

// SettingsChanged calls f(s).
func (f SettingsSinkFunc) SettingsChanged(s Settings) error {
	return f(s)
}
