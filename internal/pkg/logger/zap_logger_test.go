package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsolatedLogger_WritesJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.log")
	l := NewIsolatedLogger(path)

	l.Info("EVENTS", "document indexed", map[string]interface{}{"local_id": "abc"})
	l.Debug("EVENTS", "below file level", nil)
	_ = l.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], `"message":"document indexed"`)
	assert.Contains(t, lines[0], `"module":"EVENTS"`)
	assert.Contains(t, lines[0], `"level":"INFO"`)
}

func TestNopLogger_DoesNotPanic(t *testing.T) {
	var l ILogger = NewNopLogger()
	l.Error("LEDGER", "boom", map[string]interface{}{"error": "x"})
	l.Warn("LEDGER", "warn", nil)
}
