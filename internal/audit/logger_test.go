package audit

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	return out
}

func TestSuccessWritesStructuredEntry(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(zerolog.New(&buf))

	r := httptest.NewRequest("PUT", "/api/favorites/lists/abc/shared-with", nil)
	r.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	l.Success(r, ActionSharingSet, 7, "abc", map[string]string{"shared_with": IDs([]int64{2, 3})})

	got := decode(t, &buf)
	require.Equal(t, "audit", got["component"])
	require.Equal(t, ActionSharingSet, got["action"])
	require.Equal(t, "success", got["status"])
	require.EqualValues(t, 7, got["actor_id"])
	require.Equal(t, "abc", got["list_id"])
	details := got["details"].(map[string]any)
	require.Equal(t, "2,3", details["shared_with"])
	require.Equal(t, "203.0.113.9", details["ip"])
}

func TestClientIPFallbacks(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "192.0.2.1:5555"
	require.Equal(t, "192.0.2.1:5555", clientIP(r))

	r.Header.Set("X-Real-IP", "198.51.100.4")
	require.Equal(t, "198.51.100.4", clientIP(r))
}

func TestNilLoggerIsNoop(t *testing.T) {
	var l *Logger
	require.NotPanics(t, func() {
		l.Success(httptest.NewRequest("GET", "/", nil), ActionListDeleted, 1, "x", nil)
	})
}

func TestIDs(t *testing.T) {
	require.Equal(t, "", IDs(nil))
	require.Equal(t, "5,9,12", IDs([]int64{5, 9, 12}))
}
