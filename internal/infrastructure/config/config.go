package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"
)

// Config holds all application configuration.
type Config struct {
	Agent     AgentConfig
	Smoke     SmokeConfig
	Terminal  TerminalConfig
	Logging   LogConfig
	Server    ServerConfig
	RateLimit RateLimitConfig
	Journal   JournalConfig
}

// AgentConfig controls how the agent binary is found and launched.
type AgentConfig struct {
	Path         string        `envconfig:"BRIDGE_AGENT_PATH"`
	Name         string        `envconfig:"BRIDGE_AGENT_NAME" default:"codex"`
	Args         []string      `envconfig:"BRIDGE_AGENT_ARGS"`
	Workspace    string        `envconfig:"BRIDGE_WORKSPACE" default:"."`
	DebugDir     string        `envconfig:"BRIDGE_DEBUG_DIR" default:"target/debug"`
	ReleaseDir   string        `envconfig:"BRIDGE_RELEASE_DIR" default:"target/release"`
	PackagedDir  string        `envconfig:"BRIDGE_PACKAGED_DIR"`
	BuildCommand string        `envconfig:"BRIDGE_BUILD_COMMAND"`
	BuildTimeout time.Duration `envconfig:"BRIDGE_BUILD_TIMEOUT" default:"5m"`
	SecretEnv    string        `envconfig:"BRIDGE_SECRET_ENV" default:"OPENAI_API_KEY"`
	Secret       string        `envconfig:"BRIDGE_AGENT_SECRET"`
	Term         string        `envconfig:"BRIDGE_TERM" default:"xterm-256color"`
	Lang         string        `envconfig:"BRIDGE_LANG" default:"en_US.UTF-8"`
	EnvFile      string        `envconfig:"BRIDGE_ENV_FILE"`
	KillGrace    time.Duration `envconfig:"BRIDGE_KILL_GRACE" default:"5s"`
	QuitSignal   string        `envconfig:"BRIDGE_QUIT_SIGNAL" default:"TERM"`
}

// SmokeConfig holds the pre-flight command run through the PTY.
type SmokeConfig struct {
	Enabled bool          `envconfig:"BRIDGE_SMOKE_ENABLED" default:"true"`
	Command string        `envconfig:"BRIDGE_SMOKE_COMMAND" default:"echo"`
	Args    []string      `envconfig:"BRIDGE_SMOKE_ARGS" default:"pty ok"`
	Expect  string        `envconfig:"BRIDGE_SMOKE_EXPECT" default:"pty ok"`
	Timeout time.Duration `envconfig:"BRIDGE_SMOKE_TIMEOUT" default:"2s"`
}

// TerminalConfig holds the initial geometry and the local quit key.
type TerminalConfig struct {
	Cols    int    `envconfig:"BRIDGE_COLS" default:"120"`
	Rows    int    `envconfig:"BRIDGE_ROWS" default:"32"`
	QuitKey string `envconfig:"BRIDGE_QUIT_KEY" default:"ctrl-]"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
	Output      string `envconfig:"LOG_OUTPUT"`
}

// ServerConfig holds sidecar HTTP server configuration.
type ServerConfig struct {
	Host            string   `envconfig:"HOST" default:"127.0.0.1"`
	Port            string   `envconfig:"PORT" default:"8787"`
	ExitWithSession bool     `envconfig:"BRIDGE_EXIT_WITH_SESSION" default:"true"`
	AllowOrigins    []string `envconfig:"CORS_ORIGINS" default:"*"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"20"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"40"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// JournalConfig holds the session journal location. Empty disables it.
type JournalConfig struct {
	Path string `envconfig:"BRIDGE_JOURNAL_PATH"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Agent: AgentConfig{
			Name:         "codex",
			Workspace:    ".",
			DebugDir:     "target/debug",
			ReleaseDir:   "target/release",
			BuildTimeout: 5 * time.Minute,
			SecretEnv:    "OPENAI_API_KEY",
			Term:         "xterm-256color",
			Lang:         "en_US.UTF-8",
			KillGrace:    5 * time.Second,
			QuitSignal:   "TERM",
		},
		Smoke: SmokeConfig{
			Enabled: true,
			Command: "echo",
			Args:    []string{"pty ok"},
			Expect:  "pty ok",
			Timeout: 2 * time.Second,
		},
		Terminal: TerminalConfig{
			Cols:    120,
			Rows:    32,
			QuitKey: "ctrl-]",
		},
		Logging: LogConfig{
			Level: "info",
		},
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            "8787",
			ExitWithSession: true,
			AllowOrigins:    []string{"*"},
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 20,
			Burst:             40,
			Enabled:           true,
		},
	}
}

// Redacted returns a copy that is safe to log.
func (c Config) Redacted() Config {
	if c.Agent.Secret != "" {
		c.Agent.Secret = "[redacted]"
	}
	return c
}

// Overlay is the optional file merged into the agent launch. TOML by
// default:
//
//	args = ["--model", "o4-mini"]
//
//	[env]
//	RUST_LOG = "info"
//
// Files ending in .yaml or .yml are read as YAML with the same keys.
type Overlay struct {
	Args []string          `toml:"args" yaml:"args"`
	Env  map[string]string `toml:"env" yaml:"env"`
}

// LoadOverlay reads an overlay file. An empty path yields an empty overlay.
func LoadOverlay(path string) (*Overlay, error) {
	overlay := &Overlay{Env: map[string]string{}}
	if path == "" {
		return overlay, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read env file: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, overlay)
	default:
		err = toml.Unmarshal(data, overlay)
	}
	if err != nil {
		return nil, fmt.Errorf("parse env file %s: %w", path, err)
	}
	if overlay.Env == nil {
		overlay.Env = map[string]string{}
	}
	return overlay, nil
}
