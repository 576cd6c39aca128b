package utils

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupLogger(t *testing.T) {
	prevLevel, prevLogger := zerolog.GlobalLevel(), log.Logger
	t.Cleanup(func() {
		zerolog.SetGlobalLevel(prevLevel)
		log.Logger = prevLogger
	})

	var buf bytes.Buffer
	require.NoError(t, SetupLogger(&buf, "warn", false))

	log.Info().Msg("hidden")
	log.Warn().Str("id", "prayer_20250601_fajr").Msg("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"id":"prayer_20250601_fajr"`)
	assert.Contains(t, out, `"level":"warn"`)
}

func TestSetupLogger_BadLevel(t *testing.T) {
	assert.Error(t, SetupLogger(nil, "chatty", false))
}
