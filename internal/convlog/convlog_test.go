package convlog

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerWritesPerSessionNDJSON(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	global := filepath.Join(dir, "all.ndjson")
	l, err := New(Config{Enabled: true, Dir: dir, GlobalFile: global, QueueSize: 16}, nil)
	require.NoError(t, err)

	l.Log(Event{SessionID: "sess-1", Channel: "http", Direction: "inbound", EventType: "user_message", Content: "Bonjour"})
	l.Log(Event{SessionID: "sess-1", Channel: "http", Direction: "outbound", EventType: "assistant_message", Step: "question_mode", Content: "Salut !"})
	require.NoError(t, l.Close())

	data, err := os.ReadFile(filepath.Join(dir, "sess-1.ndjson"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)

	var got Event
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &got))
	assert.Equal(t, "Salut !", got.Content)
	assert.Equal(t, "question_mode", got.Step)
	assert.False(t, got.Timestamp.IsZero())

	globalData, err := os.ReadFile(global)
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(string(globalData)), "\n"), 2)
}

func TestDisabledLoggerIsNil(t *testing.T) {
	t.Parallel()
	l, err := New(Config{}, nil)
	require.NoError(t, err)
	assert.Nil(t, l)

	l.Log(Event{SessionID: "x"})
	assert.NoError(t, l.Close())
}

func TestLogAfterCloseIsIgnored(t *testing.T) {
	t.Parallel()
	l, err := New(Config{Enabled: true, Dir: t.TempDir()}, nil)
	require.NoError(t, err)
	require.NoError(t, l.Close())
	l.Log(Event{SessionID: "late"})
	require.NoError(t, l.Close())
}

func TestSafeName(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "etc_passwd", safeName("../../etc/passwd"))
	assert.Equal(t, "anonymous", safeName("///"))
	assert.Equal(t, "abc-123", safeName("abc-123"))
}
