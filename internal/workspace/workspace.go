// Copyright 2025 ArkApply Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package workspace locates and configures the managed file tree. All run
// artifacts (backups, receipts, history, lock marker, logs) live under the
// control directory inside the workspace root.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"arkapply/internal/artifacts"
)

// controlDirName returns the control directory name.
// Uses ARKAPPLY_DIR env var if set, otherwise defaults to ".arkapply".
// Computed dynamically to support test isolation.
func controlDirName() string {
	if dir := os.Getenv("ARKAPPLY_DIR"); dir != "" {
		return dir
	}
	return ".arkapply"
}

// ControlDirName returns the name of the control directory that holds
// workspace state.
func ControlDirName() string {
	return controlDirName()
}

// Workspace is a managed file tree rooted at Root.
type Workspace struct {
	Root   string
	Config *Config
}

// Open resolves root to an absolute path and loads the workspace config,
// falling back to embedded defaults when no config file exists.
func Open(root string) (*Workspace, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("workspace root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("workspace root %s is not a directory", abs)
	}

	ws := &Workspace{Root: abs}
	cfg, err := LoadConfig(ws.ConfigPath())
	if err != nil {
		return nil, err
	}
	ws.Config = cfg
	return ws, nil
}

// Init creates the control directory with the default config template.
// Re-running it on an initialized workspace is a no-op for existing files.
func Init(root string) (*Workspace, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	ctl := filepath.Join(abs, controlDirName())
	if err := os.MkdirAll(ctl, 0755); err != nil {
		return nil, fmt.Errorf("failed to create control directory: %w", err)
	}
	cfgPath := filepath.Join(ctl, "config.yaml")
	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		if err := os.WriteFile(cfgPath, artifacts.WorkspaceConfig, 0644); err != nil {
			return nil, fmt.Errorf("failed to write default config: %w", err)
		}
	}
	return Open(abs)
}

// ControlDir returns the control directory path.
func (w *Workspace) ControlDir() string {
	return filepath.Join(w.Root, controlDirName())
}

// ConfigPath returns the workspace config file path.
func (w *Workspace) ConfigPath() string {
	return filepath.Join(w.ControlDir(), "config.yaml")
}

// BackupDir returns the backup directory path.
func (w *Workspace) BackupDir() string {
	return filepath.Join(w.ControlDir(), "backups")
}

// ReceiptDir returns the receipt directory path.
func (w *Workspace) ReceiptDir() string {
	return filepath.Join(w.ControlDir(), "receipts")
}

// HistoryPath returns the run-history database path.
func (w *Workspace) HistoryPath() string {
	return filepath.Join(w.ControlDir(), "history.db")
}

// LockPath returns the lock marker path.
func (w *Workspace) LockPath() string {
	return filepath.Join(w.ControlDir(), "apply.lock")
}

// LogDir returns the log directory path.
func (w *Workspace) LogDir() string {
	return filepath.Join(w.ControlDir(), "logs")
}

// ManifestPath returns the integrity manifest path.
func (w *Workspace) ManifestPath() string {
	return filepath.Join(w.ControlDir(), "integrity_manifest.json")
}

// EnsureRunDirs creates the directories a run writes into.
func (w *Workspace) EnsureRunDirs() error {
	for _, dir := range []string{w.ControlDir(), w.BackupDir(), w.ReceiptDir(), w.LogDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}

// Config holds per-workspace settings from {root}/.arkapply/config.yaml.
type Config struct {
	BackupRetention       int      `yaml:"backup_retention"`         // backups kept per file name
	LockStaleSeconds      int      `yaml:"lock_stale_seconds"`       // lock staleness threshold
	TaggedExtensions      []string `yaml:"tagged_extensions"`        // extensions receiving integrity tags
	ExtraMarkers          []string `yaml:"extra_markers"`            // additional data-loss guard markers
	ReplaceZeroMatchFails bool     `yaml:"replace_zero_match_fails"` // zero-match REPLACE_IN_FILE is fatal
	LogLevel              string   `yaml:"log_level"`                // trace, debug, info, warn, off
}

// ApplyDefaults fills zero-value fields with their defaults.
func (cfg *Config) ApplyDefaults() {
	if cfg.BackupRetention <= 0 {
		cfg.BackupRetention = 5
	}
	if cfg.LockStaleSeconds <= 0 {
		cfg.LockStaleSeconds = 7200
	}
	if cfg.TaggedExtensions == nil {
		cfg.TaggedExtensions = []string{".md"}
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "off"
	}
}

// LockStale returns the staleness threshold as a duration.
func (cfg *Config) LockStale() time.Duration {
	return time.Duration(cfg.LockStaleSeconds) * time.Second
}

// IsTaggedExtension reports whether files at path receive integrity tags.
func (cfg *Config) IsTaggedExtension(path string) bool {
	ext := filepath.Ext(path)
	for _, e := range cfg.TaggedExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// LoadConfig reads a workspace config file. A missing file yields the
// embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			data = artifacts.WorkspaceConfig
		} else {
			return nil, err
		}
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	cfg.ApplyDefaults()
	return &cfg, nil
}
