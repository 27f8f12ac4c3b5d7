package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMode(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantMode string
		wantRest []string
	}{
		{"flag", []string{"--mode=boarding-service", "--max-concurrent=5"}, ModeBoarding, []string{"--max-concurrent=5"}},
		{"flag alias", []string{"--mode=ingest"}, ModeTelemetry, nil},
		{"subcommand", []string{"tracker", "--line=875A"}, ModeTracker, []string{"--line=875A"}},
		{"short subcommand", []string{"b"}, ModeBoarding, nil},
		{"first known word wins", []string{"client", "t"}, ModeTracker, []string{"t"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			mode, rest, err := ParseMode(tc.args)
			require.NoError(t, err)
			assert.Equal(t, tc.wantMode, mode)
			assert.Equal(t, tc.wantRest, rest)
		})
	}
}

func TestParseModeErrors(t *testing.T) {
	_, _, err := ParseMode([]string{"--line=875A"})
	assert.ErrorContains(t, err, "no mode specified")

	_, rest, err := ParseMode([]string{"--mode=driver", "-x"})
	assert.ErrorContains(t, err, `unknown mode "driver"`)
	assert.Equal(t, []string{"-x"}, rest)
}

func TestPrintUsage(t *testing.T) {
	var buf bytes.Buffer
	PrintUsage(&buf)
	for _, mode := range []string{ModeBoarding, ModeTelemetry, ModeTracker} {
		assert.Contains(t, buf.String(), mode)
	}
}
