package browser

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-rod/rod/lib/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestConfigDefaults(t *testing.T) {
	var zero Config
	assert.Equal(t, 1920, zero.GetViewportWidth())
	assert.Equal(t, 1080, zero.GetViewportHeight())
	assert.Equal(t, 30*time.Second, zero.NavigationTimeout())
	assert.Zero(t, zero.SlowMotion())

	cfg := DefaultConfig()
	cfg.NavigationTimeoutMs = 1500
	cfg.SlowMotionMs = 40
	assert.True(t, cfg.Headless)
	assert.Equal(t, 1500*time.Millisecond, cfg.NavigationTimeout())
	assert.Equal(t, 40*time.Millisecond, cfg.SlowMotion())
}

func TestEventThrottler(t *testing.T) {
	var off *eventThrottler
	assert.True(t, off.Allow("console"))
	assert.Nil(t, newEventThrottler(0))

	th := newEventThrottler(60_000)
	assert.True(t, th.Allow("console"))
	assert.False(t, th.Allow("console"))
	assert.True(t, th.Allow("other"))
}

func TestExceptionMessage(t *testing.T) {
	assert.Empty(t, exceptionMessage(&proto.RuntimeExceptionThrown{}))
	assert.Equal(t, "Uncaught", exceptionMessage(&proto.RuntimeExceptionThrown{
		ExceptionDetails: &proto.RuntimeExceptionDetails{Text: "Uncaught"},
	}))
	assert.Equal(t, "Error: ResizeObserver loop limit exceeded", exceptionMessage(&proto.RuntimeExceptionThrown{
		ExceptionDetails: &proto.RuntimeExceptionDetails{
			Text:      "Uncaught",
			Exception: &proto.RuntimeRemoteObject{Description: "Error: ResizeObserver loop limit exceeded"},
		},
	}))
}

func TestStringifyConsoleArgs(t *testing.T) {
	got := stringifyConsoleArgs([]*proto.RuntimeRemoteObject{
		{Type: proto.RuntimeRemoteObjectTypeObject, Description: "Error: x"},
		nil,
		{Type: proto.RuntimeRemoteObjectTypeUndefined},
	})
	assert.Equal(t, "Error: x undefined", got)
}

func TestLoadSessionsMarksDetached(t *testing.T) {
	store := filepath.Join(t.TempDir(), "sessions.json")
	data, err := json.Marshal([]Session{{ID: "s1", URL: "https://kanban.test", Status: "active"}})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(store, data, 0o644))

	cfg := DefaultConfig()
	cfg.SessionStore = store
	m := NewSessionManager(cfg, zaptest.NewLogger(t))
	require.NoError(t, m.loadSessionsLocked())

	sessions := m.List()
	require.Len(t, sessions, 1)
	assert.Equal(t, "detached", sessions[0].Status)
	_, ok := m.Page("s1")
	assert.False(t, ok)
	assert.False(t, m.IsConnected())
	assert.Empty(t, m.ControlURL())
}

func TestPersistSessions(t *testing.T) {
	store := filepath.Join(t.TempDir(), "nested", "sessions.json")
	cfg := DefaultConfig()
	cfg.SessionStore = store
	m := NewSessionManager(cfg, nil)
	m.sessions["a"] = &sessionRecord{meta: Session{ID: "a", Status: "active"}}
	require.NoError(t, m.persistSessions())

	var got []Session
	data, err := os.ReadFile(store)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &got))
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].ID)
}

func TestShutdownForgetsDetachedSessions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DebuggerURL = "ws://127.0.0.1:9222/devtools/browser/x"
	cfg.SessionStore = ""
	m := NewSessionManager(cfg, zaptest.NewLogger(t))
	m.sessions["a"] = &sessionRecord{meta: Session{ID: "a", Status: "detached"}}

	require.NoError(t, m.Shutdown(context.Background()))
	assert.Empty(t, m.List())
	assert.False(t, m.IsConnected())
	assert.Nil(t, m.conn)
}
