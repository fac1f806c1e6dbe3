package log

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedact(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  string
	}{
		{"empty", "", ""},
		{"short", "abc123", "***"},
		{"long", "eyJhbGciOiJIUzI1NiJ9.payload.signature", "***ture"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Redact(tt.value))
		})
	}
}

func TestSetLogLevel(t *testing.T) {
	original := GetLogLevel()
	t.Cleanup(func() { _ = SetLogLevel(original) })

	require.NoError(t, SetLogLevel("debug"))
	assert.Equal(t, "debug", GetLogLevel())

	require.NoError(t, SetLogLevel("TRACE"))
	assert.Equal(t, "trace", GetLogLevel())

	err := SetLogLevel("verbose")
	assert.Error(t, err)
	assert.Equal(t, "trace", GetLogLevel())
}

func TestSetOutput_CapturesComponent(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() { SetOutput(os.Stderr) })

	LogWarnWithFields("session", "Authentication failed", map[string]any{
		"user": "alice",
	})

	out := buf.String()
	assert.Contains(t, out, "component=session")
	assert.Contains(t, out, "user=alice")
	assert.Contains(t, out, "Authentication failed")
}
