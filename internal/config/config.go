// Package config handles Steward configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./steward.yaml, ~/.config/steward/config.yaml, /etc/steward/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"steward.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "steward", "config.yaml"))
	}

	paths = append(paths, "/etc/steward/config.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
// Returns the path found, or an error if nothing was found.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all Steward configuration.
type Config struct {
	Listen    ListenConfig    `yaml:"listen"`
	LLM       LLMConfig       `yaml:"llm"`
	Session   SessionConfig   `yaml:"session"`
	Retry     RetryConfig     `yaml:"retry"`
	Stub      StubConfig      `yaml:"stub"`
	Workspace WorkspaceConfig `yaml:"workspace"`
	LogLevel  string          `yaml:"log_level"`
}

// ListenConfig defines the WebSocket server settings.
type ListenConfig struct {
	Address string `yaml:"address"` // Bind address (default: "" = all interfaces)
	Port    int    `yaml:"port"`
}

// LLMConfig defines the completion service connection.
type LLMConfig struct {
	// Endpoint is the base URL of an OpenAI-compatible API.
	// Requests go to <endpoint>/chat/completions.
	Endpoint string `yaml:"endpoint"`
	Token    string `yaml:"token"`
	Model    string `yaml:"model"`
	// RequestTimeoutSec bounds a single completion request (default 60).
	// Distinct from the approval wait, which has no timeout.
	RequestTimeoutSec int `yaml:"request_timeout_sec"`
}

// SessionConfig defines session persistence settings.
type SessionConfig struct {
	// Path is the SQLite database file. Empty means sessions are held
	// in memory and lost on restart.
	Path string `yaml:"path"`
	// TTLSec is the session expiry in seconds, refreshed on every save
	// (default 3600).
	TTLSec int `yaml:"ttl_sec"`
}

// RetryConfig tunes the history strip applied before the single retry
// after a context-limit or timeout failure.
type RetryConfig struct {
	// AssistantTruncationChars controls interim assistant narration on
	// messages that carried tool calls: nil leaves it untouched, 0
	// clears it entirely, N>0 truncates to N chars.
	AssistantTruncationChars *int `yaml:"assistant_truncation_chars"`
}

// StubConfig tunes oversized tool-result stubbing.
type StubConfig struct {
	// MaxResultChars is the stub threshold. 0 disables stubbing.
	MaxResultChars int `yaml:"max_result_chars"`
}

// WorkspaceConfig defines the agent's workspace for file operations.
type WorkspaceConfig struct {
	// Path is the root directory for file tools. If empty, the process
	// working directory is used.
	Path string `yaml:"path"`
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns a default configuration.
func Default() *Config {
	return &Config{
		Listen:  ListenConfig{Port: 8080},
		LLM:     LLMConfig{RequestTimeoutSec: 60},
		Session: SessionConfig{TTLSec: 3600},
		Stub:    StubConfig{MaxResultChars: 5000},
	}
}
