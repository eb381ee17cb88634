package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestAnonymize(t *testing.T) {
	tests := []struct {
		in       string
		expected string
	}{
		{"mail to pepe@example.com now", "mail to [REDACTED_EMAIL] now"},
		{"token eyJhbGciOi.payload.sig here", "token [REDACTED_TOKEN] here"},
		{"created user_id=42", "created user_id=[USER_ID]"},
		{"created user_id=3f2b9c1e-8a4d-4c2e-9f1a-0b6d7e8f9a10", "created user_id=[USER_ID]"},
		{"hash $argon2id$v=19$m=65536,t=3,p=2$c2FsdA$a2V5 leaked", "hash [REDACTED_HASH] leaked"},
		{"nothing secret", "nothing secret"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.expected, Anonymize(tt.in))
	}
}

func TestLogger_WritesJSONLines(t *testing.T) {
	req := require.New(t)
	var buf bytes.Buffer
	l := NewWithWriter(zapcore.AddSync(&buf))

	l.Info("server", "started for pepe@example.com")
	l.Error("store", "append failed", errors.New("timeout"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	req.Len(lines, 2)

	var info map[string]any
	req.NoError(json.Unmarshal([]byte(lines[0]), &info))
	req.Equal("INFO", info["level"])
	req.Equal("server", info["module"])
	req.Equal("started for [REDACTED_EMAIL]", info["message"])
	req.NotEmpty(info["time"])
	req.NotContains(info, "error")

	var failure map[string]any
	req.NoError(json.Unmarshal([]byte(lines[1]), &failure))
	req.Equal("ERROR", failure["level"])
	req.Equal("timeout", failure["error"])
}

func TestSetLevel(t *testing.T) {
	req := require.New(t)
	t.Cleanup(func() { _ = SetLevel("info") })

	var buf bytes.Buffer
	l := NewWithWriter(zapcore.AddSync(&buf))

	l.Debug("worker", "hidden")
	req.Empty(buf.String())

	req.NoError(SetLevel("DEBUG"))
	l.Debug("worker", "visible")
	req.Contains(buf.String(), "visible")

	req.Error(SetLevel("loud"))
}
