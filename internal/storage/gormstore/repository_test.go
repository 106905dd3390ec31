package gormstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEscapeLike(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "empty string", input: "", expected: ""},
		{name: "normal text", input: "Concert", expected: "Concert"},
		{name: "percent sign", input: "100% fun", expected: `100\% fun`},
		{name: "underscore", input: "late_night", expected: `late\_night`},
		{name: "backslash", input: `rock\roll`, expected: `rock\\roll`},
		{
			name:     "quote and comment",
			input:    `%'; DROP TABLE events; --`,
			expected: `\%'; DROP TABLE events; --`,
		},
		{name: "multiple wildcards", input: `%_test_%_`, expected: `\%\_test\_\%\_`},
		{name: "mixed escape characters", input: `\%_test`, expected: `\\\%\_test`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, escapeLike(tt.input))
		})
	}
}
