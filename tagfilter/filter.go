// Package tagfilter joins scanned tags with polled values and filters the
// result for display. Everything here is pure and deterministic.
package tagfilter

import (
	"strings"

	"signaltap/backend"
)

// DefaultTypes are the tag types enabled when no list is configured.
var DefaultTypes = []string{"BOOL", "INT", "DINT", "REAL", "TIMER", "STRING"}

// FilterState is the user's current filter selection.
type FilterState struct {
	Text           string
	HideUnreadable bool
	TypeEnabled    map[string]bool // keyed by upper-case type name
}

// NewFilterState enables every type in types (DefaultTypes when empty).
func NewFilterState(types []string) FilterState {
	if len(types) == 0 {
		types = DefaultTypes
	}
	enabled := make(map[string]bool, len(types))
	for _, t := range types {
		enabled[strings.ToUpper(strings.TrimSpace(t))] = true
	}
	return FilterState{TypeEnabled: enabled}
}

// Clone returns a copy that does not share the type map.
func (s FilterState) Clone() FilterState {
	out := s
	out.TypeEnabled = make(map[string]bool, len(s.TypeEnabled))
	for k, v := range s.TypeEnabled {
		out.TypeEnabled[k] = v
	}
	return out
}

// SetType enables or disables a type.
func (s *FilterState) SetType(typ string, enabled bool) {
	if s.TypeEnabled == nil {
		s.TypeEnabled = make(map[string]bool)
	}
	s.TypeEnabled[strings.ToUpper(typ)] = enabled
}

// Row is one tag joined with its current value.
type Row struct {
	Name     string
	Type     string
	Value    string // "" when no value has been read
	HasValue bool
}

// Unreadable reports whether the row's value is the Unreadable sentinel.
func (r Row) Unreadable() bool {
	return r.HasValue && r.Value == backend.Unreadable
}

// ValueIndex maps tag name to its latest value.
type ValueIndex map[string]backend.TagValue

// Index builds the name lookup for one update. Later duplicates win.
func Index(values []backend.TagValue) ValueIndex {
	idx := make(ValueIndex, len(values))
	for _, v := range values {
		idx[v.Name] = v
	}
	return idx
}

// Join produces one row per tag in scan order.
func Join(tags []backend.Tag, index ValueIndex) []Row {
	rows := make([]Row, 0, len(tags))
	for _, tag := range tags {
		rows = append(rows, joinOne(tag, index))
	}
	return rows
}

func joinOne(tag backend.Tag, index ValueIndex) Row {
	row := Row{Name: tag.Name, Type: tag.Type}
	if v, ok := index[tag.Name]; ok {
		row.Value = backend.FormatValue(v.Value)
		row.HasValue = true
	}
	return row
}

// Apply joins and filters tags, preserving scan order.
func Apply(tags []backend.Tag, index ValueIndex, state FilterState) []Row {
	needle := strings.ToLower(state.Text)
	rows := make([]Row, 0, len(tags))
	for _, tag := range tags {
		row := joinOne(tag, index)
		if Matches(row, needle, state) {
			rows = append(rows, row)
		}
	}
	return rows
}

// Matches applies the three filter predicates to row. needle must already be
// lower-case.
func Matches(row Row, needle string, state FilterState) bool {
	if needle != "" &&
		!strings.Contains(strings.ToLower(row.Name), needle) &&
		!strings.Contains(strings.ToLower(row.Type), needle) &&
		!strings.Contains(strings.ToLower(row.Value), needle) {
		return false
	}
	if state.HideUnreadable && row.Value == backend.Unreadable {
		return false
	}
	return state.TypeEnabled[strings.ToUpper(row.Type)]
}

// WithValues returns the rows that have a value, for the live dashboard.
func WithValues(rows []Row) []Row {
	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		if r.HasValue {
			out = append(out, r)
		}
	}
	return out
}
