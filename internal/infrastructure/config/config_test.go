package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	// Agent config
	assert.Equal(t, "codex", cfg.Agent.Name)
	assert.Equal(t, "target/debug", cfg.Agent.DebugDir)
	assert.Equal(t, "target/release", cfg.Agent.ReleaseDir)
	assert.Equal(t, "OPENAI_API_KEY", cfg.Agent.SecretEnv)
	assert.Equal(t, "xterm-256color", cfg.Agent.Term)
	assert.Equal(t, 5*time.Second, cfg.Agent.KillGrace)

	// Smoke config
	assert.True(t, cfg.Smoke.Enabled)
	assert.Equal(t, "echo", cfg.Smoke.Command)
	assert.Equal(t, []string{"pty ok"}, cfg.Smoke.Args)
	assert.Equal(t, 2*time.Second, cfg.Smoke.Timeout)

	// Terminal config
	assert.Equal(t, 120, cfg.Terminal.Cols)
	assert.Equal(t, 32, cfg.Terminal.Rows)

	// Server config
	assert.Equal(t, "8787", cfg.Server.Port)
	assert.True(t, cfg.Server.ExitWithSession)
}

func TestLoadMatchesDefault(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	def := Default()
	assert.Equal(t, def.Agent.Name, cfg.Agent.Name)
	assert.Equal(t, def.Smoke, cfg.Smoke)
	assert.Equal(t, def.Terminal, cfg.Terminal)
	assert.Equal(t, def.Journal, cfg.Journal)
	assert.Equal(t, def.RateLimit, cfg.RateLimit)
}

func TestLoadWithEnvironmentVariables(t *testing.T) {
	envVars := map[string]string{
		"BRIDGE_AGENT_PATH":    "/opt/agent/bin/codex",
		"BRIDGE_AGENT_ARGS":    "--model,o4-mini",
		"BRIDGE_SMOKE_ENABLED": "false",
		"BRIDGE_SMOKE_TIMEOUT": "500ms",
		"BRIDGE_COLS":          "200",
		"BRIDGE_ROWS":          "50",
		"LOG_LEVEL":            "debug",
		"PORT":                 "9999",
		"BRIDGE_JOURNAL_PATH":  "/tmp/journal.db",
	}
	for key, value := range envVars {
		t.Setenv(key, value)
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/opt/agent/bin/codex", cfg.Agent.Path)
	assert.Equal(t, []string{"--model", "o4-mini"}, cfg.Agent.Args)
	assert.False(t, cfg.Smoke.Enabled)
	assert.Equal(t, 500*time.Millisecond, cfg.Smoke.Timeout)
	assert.Equal(t, 200, cfg.Terminal.Cols)
	assert.Equal(t, 50, cfg.Terminal.Rows)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "9999", cfg.Server.Port)
	assert.Equal(t, "/tmp/journal.db", cfg.Journal.Path)
}

func TestLoadInvalidValue(t *testing.T) {
	t.Setenv("BRIDGE_COLS", "wide")

	_, err := Load()
	assert.Error(t, err)

	// LoadOrDefault falls back instead of failing.
	cfg := LoadOrDefault()
	assert.Equal(t, 120, cfg.Terminal.Cols)
}

func TestRedacted(t *testing.T) {
	cfg := Default()
	cfg.Agent.Secret = "sk-live-123"

	redacted := cfg.Redacted()
	assert.Equal(t, "[redacted]", redacted.Agent.Secret)
	assert.Equal(t, "sk-live-123", cfg.Agent.Secret, "original must be untouched")

	cfg.Agent.Secret = ""
	assert.Empty(t, cfg.Redacted().Agent.Secret)
}

func TestLoadOverlay(t *testing.T) {
	t.Run("empty path", func(t *testing.T) {
		overlay, err := LoadOverlay("")
		require.NoError(t, err)
		assert.Empty(t, overlay.Args)
		assert.NotNil(t, overlay.Env)
	})

	t.Run("valid file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "agent.toml")
		content := "args = [\"--model\", \"o4-mini\"]\n\n[env]\nRUST_LOG = \"info\"\nNO_COLOR = \"1\"\n"
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

		overlay, err := LoadOverlay(path)
		require.NoError(t, err)
		assert.Equal(t, []string{"--model", "o4-mini"}, overlay.Args)
		assert.Equal(t, "info", overlay.Env["RUST_LOG"])
		assert.Equal(t, "1", overlay.Env["NO_COLOR"])
	})

	t.Run("args only", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "agent.toml")
		require.NoError(t, os.WriteFile(path, []byte("args = [\"-q\"]\n"), 0o600))

		overlay, err := LoadOverlay(path)
		require.NoError(t, err)
		assert.Equal(t, []string{"-q"}, overlay.Args)
		assert.NotNil(t, overlay.Env)
	})

	t.Run("yaml file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "agent.yaml")
		content := "args:\n  - --model\n  - o4-mini\nenv:\n  RUST_LOG: debug\n"
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

		overlay, err := LoadOverlay(path)
		require.NoError(t, err)
		assert.Equal(t, []string{"--model", "o4-mini"}, overlay.Args)
		assert.Equal(t, "debug", overlay.Env["RUST_LOG"])
	})

	t.Run("malformed yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yml")
		require.NoError(t, os.WriteFile(path, []byte("args: [\n"), 0o600))

		_, err := LoadOverlay(path)
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadOverlay(filepath.Join(t.TempDir(), "nope.toml"))
		assert.Error(t, err)
	})

	t.Run("malformed file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.toml")
		require.NoError(t, os.WriteFile(path, []byte("args = [\n"), 0o600))

		_, err := LoadOverlay(path)
		assert.Error(t, err)
	})
}
