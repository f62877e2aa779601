package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, k := range []string{
		"FLOW_LISTEN", "FLOW_PUSH_LISTEN", "FLOW_DRIVER", "DATABASE_URL", "FLOW_DATABASE_URL",
		"FLOW_SQLITE_PATH", "FLOW_LOG_LEVEL", "FLOW_LOG_FORMAT", "FLOW_STRICT_KINDS",
		"FLOW_REALTIME_INTERVAL", "FLOW_VIEWPORT_THRESHOLD",
	} {
		t.Setenv(k, "")
	}
}

func TestFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("FLOW_LISTEN", ":8080")
	t.Setenv("FLOW_STRICT_KINDS", "true")
	t.Setenv("FLOW_REALTIME_INTERVAL", "2s")
	t.Setenv("FLOW_VIEWPORT_THRESHOLD", "0.5")
	t.Setenv("FLOW_LOG_LEVEL", "not-a-level")
	t.Setenv("FLOW_DATABASE_URL", "postgres://x")

	cfg := FromEnv()
	assert.Equal(t, ":8080", cfg.Listen)
	assert.Equal(t, ":3001", cfg.PushListen)
	assert.True(t, cfg.StrictKinds)
	assert.Equal(t, 2*time.Second, cfg.RealtimeInterval)
	assert.Equal(t, 0.5, cfg.ViewportThreshold)
	assert.Equal(t, "postgres://x", cfg.DatabaseURL)
	assert.Equal(t, "not-a-level", cfg.LogLevel)
}

func TestFromEnv_BadValuesKeepDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("FLOW_STRICT_KINDS", "maybe")
	t.Setenv("FLOW_REALTIME_INTERVAL", "soon")

	cfg := FromEnv()
	assert.False(t, cfg.StrictKinds)
	assert.Equal(t, 500*time.Millisecond, cfg.RealtimeInterval)
}

func TestLoad_FileThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "flow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
listen: ":9000"
driver: sqlite
sqlite_path: /tmp/flow.db
log_format: json
realtime_interval: 250ms
`), 0o644))
	t.Setenv("FLOW_SQLITE_PATH", "/var/lib/flow.db")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Listen)
	assert.Equal(t, "sqlite", cfg.Driver)
	assert.Equal(t, "/var/lib/flow.db", cfg.SQLitePath)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 250*time.Millisecond, cfg.RealtimeInterval)
	assert.Equal(t, 0.1, cfg.ViewportThreshold)
}

func TestLoad_Errors(t *testing.T) {
	clearEnv(t)
	tests := []struct {
		name string
		yaml string
	}{
		{"postgres without url", "driver: postgres\n"},
		{"unknown driver", "driver: mongo\n"},
		{"bad yaml", "listen: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "flow.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.yaml), 0o644))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger("warn", "json", &buf)
	l.Info("hidden")
	l.Warn("shown", "k", "v")
	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"shown"`)
	assert.Contains(t, out, `"k":"v"`)

	buf.Reset()
	NewLogger("debug", "text", &buf).Debug("dbg")
	assert.Contains(t, buf.String(), "msg=dbg")
}
