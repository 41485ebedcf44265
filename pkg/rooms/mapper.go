// Package rooms maps machine id prefixes to room labels.
package rooms

import "strings"

// Mapper resolves a room label from a machine id by naming convention:
// the prefix before the first dash identifies the area the machine is
// installed in, e.g. "a1-m3" belongs to area "a1". The prefix table comes
// from deployment configuration, not code.
type Mapper struct {
	byPrefix map[string]string
}

// NewMapper builds a mapper from an area-prefix to room-name table.
// Prefixes are matched case-insensitively.
func NewMapper(byPrefix map[string]string) *Mapper {
	m := &Mapper{byPrefix: make(map[string]string, len(byPrefix))}
	for prefix, room := range byPrefix {
		m.byPrefix[strings.ToLower(prefix)] = room
	}

	return m
}

// Lookup returns the room for a machine id, or "" when the id carries no
// prefix or the prefix is unknown.
func (m *Mapper) Lookup(machineID string) string {
	if m == nil {
		return ""
	}

	prefix, _, found := strings.Cut(machineID, "-")
	if !found || prefix == "" {
		return ""
	}

	return m.byPrefix[strings.ToLower(prefix)]
}
