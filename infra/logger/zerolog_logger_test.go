package logger

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestLevelFromEnv(t *testing.T) {
	cases := map[string]zerolog.Level{
		"":          zerolog.InfoLevel,
		"debug":     zerolog.DebugLevel,
		"WARN":      zerolog.WarnLevel,
		"error":     zerolog.ErrorLevel,
		"gibberish": zerolog.InfoLevel,
	}
	for in, want := range cases {
		t.Setenv("LOG_LEVEL", in)
		assert.Equal(t, want, levelFromEnv(), "LOG_LEVEL=%q", in)
	}
}
