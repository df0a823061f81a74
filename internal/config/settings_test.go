package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ppiankov/codexrun/internal/task"
)

func TestLoadSettings_Valid(t *testing.T) {
	content := `
base_dir: /srv/tasks
default_language: bash
timeout: 45s
max_output: 4096
state_file: .codexrun/state.json
history_db: .codexrun/history.db
model:
  model_name: codex
  temperature: 0.5
  api_key: env:CODEX_KEY
watch:
  inbox: ./inbox
  poll: true
`
	path := writeTemp(t, content)
	s, err := LoadSettings(path)
	if err != nil {
		t.Fatal(err)
	}

	if s.BaseDir != "/srv/tasks" {
		t.Errorf("base_dir: got %q, want /srv/tasks", s.BaseDir)
	}
	if s.DefaultLanguage != "bash" {
		t.Errorf("default_language: got %q, want bash", s.DefaultLanguage)
	}
	if s.Timeout != 45*time.Second {
		t.Errorf("timeout: got %v, want 45s", s.Timeout)
	}
	if s.MaxOutput != 4096 {
		t.Errorf("max_output: got %d, want 4096", s.MaxOutput)
	}
	if s.Model.Temperature != 0.5 || s.Model.APIKey != "env:CODEX_KEY" {
		t.Errorf("model: got %+v", s.Model)
	}
	if s.Watch == nil || s.Watch.Inbox != "./inbox" || !s.Watch.Poll {
		t.Errorf("watch: got %+v", s.Watch)
	}
}

func TestLoadSettings_Partial(t *testing.T) {
	path := writeTemp(t, `timeout: 2m`)
	s, err := LoadSettings(path)
	if err != nil {
		t.Fatal(err)
	}

	if s.Timeout != 2*time.Minute {
		t.Errorf("timeout: got %v, want 2m", s.Timeout)
	}
	if s.BaseDir != "" {
		t.Errorf("base_dir: got %q, want empty", s.BaseDir)
	}
	if s.Watch != nil {
		t.Errorf("watch: got %+v, want nil", s.Watch)
	}
}

func TestLoadSettings_MissingFile(t *testing.T) {
	s, err := LoadSettings(filepath.Join(t.TempDir(), "nope.yml"))
	if err != nil {
		t.Fatalf("expected nil error for missing file, got %v", err)
	}
	if s.Timeout != 0 || s.BaseDir != "" {
		t.Errorf("expected zero settings, got %+v", s)
	}
}

func TestLoadSettings_InvalidYAML(t *testing.T) {
	path := writeTemp(t, "timeout: [unclosed")
	if _, err := LoadSettings(path); err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestLoadSettings_NegativeTimeout(t *testing.T) {
	path := writeTemp(t, "timeout: -5s")
	if _, err := LoadSettings(path); err == nil {
		t.Fatal("expected error for negative timeout")
	}
}

func TestApplyTo(t *testing.T) {
	t.Setenv("CODEXRUN_TEST_KEY", "sekret")
	s := &Settings{
		DefaultLanguage: "javascript",
		Model:           task.ModelParams{Name: "m", MaxTokens: 10, APIKey: "env:CODEXRUN_TEST_KEY"},
	}

	got := s.ApplyTo(task.Config{ID: "a"})
	if got.Language != "javascript" {
		t.Errorf("language: got %q", got.Language)
	}
	if got.Model.Name != "m" || got.Model.MaxTokens != 10 {
		t.Errorf("model: got %+v", got.Model)
	}
	if got.Model.APIKey != "sekret" {
		t.Errorf("api key: got %q, want resolved env value", got.Model.APIKey)
	}

	kept := s.ApplyTo(task.Config{ID: "b", Language: "bash", Model: task.ModelParams{Name: "own", APIKey: "lit"}})
	if kept.Language != "bash" || kept.Model.Name != "own" || kept.Model.APIKey != "lit" {
		t.Errorf("explicit values overwritten: %+v", kept)
	}
}

func TestApplyTo_UnsetEnvLeavesKeyEmpty(t *testing.T) {
	s := &Settings{Model: task.ModelParams{APIKey: "env:CODEXRUN_SURELY_UNSET_VAR"}}
	if got := s.ApplyTo(task.Config{ID: "a"}); got.Model.APIKey != "" {
		t.Errorf("expected empty key, got %q", got.Model.APIKey)
	}
}

func TestResolveSecret(t *testing.T) {
	t.Setenv("CODEXRUN_TEST_SECRET", "v")
	if v, ok := ResolveSecret("env:CODEXRUN_TEST_SECRET"); !ok || v != "v" {
		t.Errorf("got %q %v", v, ok)
	}
	if v, ok := ResolveSecret("literal"); !ok || v != "literal" {
		t.Errorf("got %q %v", v, ok)
	}
	if _, ok := ResolveSecret("env:CODEXRUN_SURELY_UNSET_VAR"); ok {
		t.Error("expected ok=false for unset variable")
	}
}

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}
