package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config is the top-level configuration for calyx-lsp
type Config struct {
	// LibraryPaths lists the roots that import statements resolve
	// against, after the importing file's own directory
	LibraryPaths []string `json:"library-paths,omitempty"`

	// Diagnostics controls compiler diagnostics published on save
	Diagnostics DiagnosticsConfig `json:"diagnostics,omitempty"`

	// Lint controls the policy lint pass
	Lint LintConfig `json:"lint,omitempty"`
}

// DiagnosticsConfig configures the calyx compiler invocation
type DiagnosticsConfig struct {
	// Enabled turns compile-on-save diagnostics on or off
	Enabled *bool `json:"enabled,omitempty"`

	// Command is the calyx driver binary to invoke
	Command string `json:"command,omitempty"`
}

// LintConfig configures the policy lint pass
type LintConfig struct {
	// Enabled turns lint diagnostics on or off
	Enabled *bool `json:"enabled,omitempty"`
}

// DefaultConfig returns a sensible default configuration
func DefaultConfig() *Config {
	return &Config{
		LibraryPaths: []string{"~/.calyx"},
		Diagnostics: DiagnosticsConfig{
			Enabled: boolPtr(true),
			Command: "calyx",
		},
		Lint: LintConfig{
			Enabled: boolPtr(true),
		},
	}
}

func boolPtr(v bool) *bool {
	return &v
}

// Load finds and loads the configuration file
// Search order:
//  1. ./calyx-lsp.json (current working directory)
//  2. ./.calyx-lsp.json (current working directory)
//  3. <rootPath>/calyx-lsp.json (if different from cwd)
//  4. ~/.config/calyx-lsp/config.json
//
// Returns DefaultConfig if no config file is found
func Load(rootPath string) (*Config, error) {
	cwd, _ := os.Getwd()

	searchPaths := []string{
		filepath.Join(cwd, "calyx-lsp.json"),
		filepath.Join(cwd, ".calyx-lsp.json"),
	}

	// If rootPath is a directory and different from cwd, also check there
	if info, err := os.Stat(rootPath); err == nil && info.IsDir() {
		absRoot, _ := filepath.Abs(rootPath)
		if absRoot != cwd {
			searchPaths = append(searchPaths,
				filepath.Join(rootPath, "calyx-lsp.json"),
				filepath.Join(rootPath, ".calyx-lsp.json"),
			)
		}
	}

	if home, err := os.UserHomeDir(); err == nil {
		searchPaths = append(searchPaths, filepath.Join(home, ".config", "calyx-lsp", "config.json"))
	}

	for _, path := range searchPaths {
		if _, err := os.Stat(path); err == nil {
			return LoadFile(path)
		}
	}

	// No config found, return defaults
	return DefaultConfig(), nil
}

// LoadFile loads configuration from a specific file
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()

	return &cfg, nil
}

// applyDefaults fills in missing configuration with defaults
func (c *Config) applyDefaults() {
	if c.LibraryPaths == nil {
		c.LibraryPaths = []string{"~/.calyx"}
	}
	if c.Diagnostics.Enabled == nil {
		c.Diagnostics.Enabled = boolPtr(true)
	}
	if c.Diagnostics.Command == "" {
		c.Diagnostics.Command = "calyx"
	}
	if c.Lint.Enabled == nil {
		c.Lint.Enabled = boolPtr(true)
	}
}

// ApplySettings overlays a validated client settings payload. Only the
// fields the payload carries change; everything else keeps its value.
func (c *Config) ApplySettings(s Settings) {
	if s.CalyxLSP.LibraryPaths != nil {
		c.LibraryPaths = s.CalyxLSP.LibraryPaths
	}
}

// DiagnosticsEnabled reports whether compile-on-save diagnostics run
func (c *Config) DiagnosticsEnabled() bool {
	return c.Diagnostics.Enabled == nil || *c.Diagnostics.Enabled
}

// LintEnabled reports whether the policy lint pass runs
func (c *Config) LintEnabled() bool {
	return c.Lint.Enabled == nil || *c.Lint.Enabled
}

// Save writes the configuration to a file
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}
