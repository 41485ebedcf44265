package rooms

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapperLookup(t *testing.T) {
	mapper := NewMapper(map[string]string{
		"a1": "SJU-Sieg/Ryan",
		"A2": "SJU-Finn",
	})

	tests := []struct {
		name      string
		machineID string
		expected  string
	}{
		{"known prefix", "a1-m1", "SJU-Sieg/Ryan"},
		{"prefix case insensitive", "A1-m2", "SJU-Sieg/Ryan"},
		{"table key case insensitive", "a2-m1", "SJU-Finn"},
		{"unknown prefix", "z9-m1", ""},
		{"no dash", "a1m1", ""},
		{"empty prefix", "-m1", ""},
		{"empty id", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, mapper.Lookup(tt.machineID))
		})
	}
}

func TestMapperNil(t *testing.T) {
	var mapper *Mapper

	assert.Equal(t, "", mapper.Lookup("a1-m1"))
}
