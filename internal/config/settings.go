package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/codexrun/internal/task"
)

// DefaultPath is the settings file looked up when --config is not given.
const DefaultPath = ".codexrun.yml"

// Settings holds persistent CLI defaults loaded from a config file.
type Settings struct {
	BaseDir         string        `yaml:"base_dir"`         // parent of task_<id> working dirs
	DefaultLanguage string        `yaml:"default_language"` // applied to tasks without a language
	Timeout         time.Duration `yaml:"timeout"`          // generated program wall-clock limit
	MaxOutput       int           `yaml:"max_output"`       // bytes kept per captured stream
	StateFile       string        `yaml:"state_file"`
	RunsDir         string        `yaml:"runs_dir"` // per-run report.json and events.jsonl
	HistoryDB       string        `yaml:"history_db"`
	NoColor         bool          `yaml:"no_color"`

	// Model defaults for tasks that leave codex_config empty
	Model task.ModelParams `yaml:"model"`

	Watch *WatchConfig `yaml:"watch,omitempty"`
}

// WatchConfig holds settings for the watch command.
type WatchConfig struct {
	Inbox    string `yaml:"inbox"`
	StateDir string `yaml:"state_dir"`
	Poll     bool   `yaml:"poll"`
}

// LoadSettings reads a YAML config file into Settings.
// If the file does not exist, it returns zero-value Settings and nil error.
func LoadSettings(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Settings{}, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if s.Timeout < 0 {
		return nil, fmt.Errorf("parse config %s: negative timeout %v", path, s.Timeout)
	}

	return &s, nil
}

// ApplyTo fills fields cfg leaves empty from the settings and resolves
// "env:VAR" api keys. An unset variable leaves the key empty.
func (s *Settings) ApplyTo(cfg task.Config) task.Config {
	if cfg.Language == "" {
		cfg.Language = s.DefaultLanguage
	}
	if cfg.Model.Name == "" {
		cfg.Model.Name = s.Model.Name
	}
	if cfg.Model.Temperature == 0 {
		cfg.Model.Temperature = s.Model.Temperature
	}
	if cfg.Model.MaxTokens == 0 {
		cfg.Model.MaxTokens = s.Model.MaxTokens
	}
	if cfg.Model.APIKey == "" {
		cfg.Model.APIKey = s.Model.APIKey
	}
	cfg.Model.APIKey, _ = ResolveSecret(cfg.Model.APIKey)
	return cfg
}

// ResolveSecret returns v, or the value of VAR when v is "env:VAR".
// ok is false when the variable is not set.
func ResolveSecret(v string) (string, bool) {
	name, isEnv := strings.CutPrefix(v, "env:")
	if !isEnv {
		return v, true
	}
	return os.LookupEnv(name)
}
