package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    Level
		wantErr bool
	}{
		{input: "debug", want: LevelDebug},
		{input: "INFO", want: LevelInfo},
		{input: "", want: LevelInfo},
		{input: "warning", want: LevelWarn},
		{input: " error ", want: LevelError},
		{input: "verbose", want: LevelInfo, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseLevel(tt.input)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSetup_SilencesLowerLevels(t *testing.T) {
	var buf bytes.Buffer
	Setup(&buf, LevelWarn)
	t.Cleanup(func() { Setup(&bytes.Buffer{}, LevelInfo) })

	Debug.Print("debug line")
	Info.Print("info line")
	Warn.Print("warn line")
	Error.Print("error line")

	out := buf.String()
	assert.NotContains(t, out, "debug line")
	assert.NotContains(t, out, "info line")
	assert.Contains(t, out, "WARN: ")
	assert.Contains(t, out, "warn line")
	assert.Contains(t, out, "error line")
}
