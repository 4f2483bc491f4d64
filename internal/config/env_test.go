package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseBool(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		envSet   bool
		def      bool
		want     bool
	}{
		{name: "unset uses default", envSet: false, def: true, want: true},
		{name: "empty uses default", envValue: "", envSet: true, def: true, want: true},
		{name: "true", envValue: "true", envSet: true, want: true},
		{name: "one", envValue: "1", envSet: true, want: true},
		{name: "yes mixed case", envValue: "YeS", envSet: true, want: true},
		{name: "false", envValue: "false", envSet: true, def: true, want: false},
		{name: "no", envValue: "no", envSet: true, def: true, want: false},
		{name: "invalid uses default", envValue: "maybe", envSet: true, def: true, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			const key = "LIVEPLAY_TEST_BOOL"
			if tt.envSet {
				t.Setenv(key, tt.envValue)
			}
			assert.Equal(t, tt.want, ParseBool(key, tt.def))
		})
	}
}

func TestParseInt(t *testing.T) {
	t.Setenv("LIVEPLAY_TEST_INT", "42")
	assert.Equal(t, 42, ParseInt("LIVEPLAY_TEST_INT", 7))

	t.Setenv("LIVEPLAY_TEST_INT_BAD", "forty")
	assert.Equal(t, 7, ParseInt("LIVEPLAY_TEST_INT_BAD", 7))

	assert.Equal(t, 7, ParseInt("LIVEPLAY_TEST_INT_UNSET", 7))
}

func TestParseFloat(t *testing.T) {
	t.Setenv("LIVEPLAY_TEST_FLOAT", "1.5")
	assert.InDelta(t, 1.5, ParseFloat("LIVEPLAY_TEST_FLOAT", 0), 1e-9)

	t.Setenv("LIVEPLAY_TEST_FLOAT_BAD", "x")
	assert.InDelta(t, 2.0, ParseFloat("LIVEPLAY_TEST_FLOAT_BAD", 2), 1e-9)
}

func TestParseString(t *testing.T) {
	t.Setenv("LIVEPLAY_TEST_STRING", "from-env")
	assert.Equal(t, "from-env", ParseString("LIVEPLAY_TEST_STRING", "default"))
	assert.Equal(t, "default", ParseString("LIVEPLAY_TEST_STRING_UNSET", "default"))
}
