package logging

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"", zapcore.InfoLevel},
		{"debug", zapcore.DebugLevel},
		{"INFO", zapcore.InfoLevel},
		{"warning", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"dpanic", zapcore.DPanicLevel},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestNew(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orbit.log")
	logger, atom, err := New(Config{Level: "debug", Format: "json", Output: path})
	require.NoError(t, err)
	assert.Equal(t, zapcore.DebugLevel, atom.Level())
	logger.Debug("hello")
	_ = logger.Sync()

	_, _, err = New(Config{Level: "nope"})
	assert.Error(t, err)

	_, _, err = New(DefaultConfig())
	assert.NoError(t, err)
}

func TestQuietRestoresLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, atom := NewWriter(&buf, zapcore.InfoLevel)

	restore := Quiet(atom)
	logger.Info("suppressed")
	logger.Warn("kept")
	restore()
	logger.Info("after")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	var first map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "kept", first["msg"])
	assert.Contains(t, lines[1], `"after"`)
	assert.Equal(t, zapcore.InfoLevel, atom.Level())
}

func TestQuietKeepsHigherLevel(t *testing.T) {
	_, atom := NewWriter(&bytes.Buffer{}, zapcore.ErrorLevel)
	restore := Quiet(atom)
	assert.Equal(t, zapcore.ErrorLevel, atom.Level())
	restore()
	assert.Equal(t, zapcore.ErrorLevel, atom.Level())
}
