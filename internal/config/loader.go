package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/codexrun/internal/task"
)

// TaskFile holds several tasks. A file may instead hold a single task
// object at the top level.
type TaskFile struct {
	Tasks []task.Config `json:"tasks" yaml:"tasks"`
}

// Load reads and validates a task file. YAML is used for .yml/.yaml
// files, JSON otherwise.
func Load(path string) ([]task.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read task file: %w", err)
	}

	tasks, err := parse(data, isYAML(path))
	if err != nil {
		return nil, fmt.Errorf("parse task file %s: %w", path, err)
	}

	if err := validate(tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

func parse(data []byte, asYAML bool) ([]task.Config, error) {
	unmarshal := json.Unmarshal
	if asYAML {
		unmarshal = yaml.Unmarshal
	}

	var tf TaskFile
	if err := unmarshal(data, &tf); err != nil {
		return nil, err
	}
	if len(tf.Tasks) > 0 {
		return tf.Tasks, nil
	}

	var single task.Config
	if err := unmarshal(data, &single); err != nil {
		return nil, err
	}
	if single.ID == "" {
		return nil, fmt.Errorf("no task_id or tasks found")
	}
	return []task.Config{single}, nil
}

// validate checks for empty, unsafe and duplicate IDs.
func validate(tasks []task.Config) error {
	ids := make(map[string]struct{}, len(tasks))
	for _, t := range tasks {
		if err := ValidateID(t.ID); err != nil {
			return err
		}
		if _, dup := ids[t.ID]; dup {
			return fmt.Errorf("duplicate task id: %q", t.ID)
		}
		ids[t.ID] = struct{}{}
	}
	return nil
}

// ValidateID rejects ids that cannot name a task_<id> directory.
func ValidateID(id string) error {
	switch {
	case id == "":
		return fmt.Errorf("task with empty id")
	case strings.ContainsAny(id, `/\`) || strings.ContainsRune(id, 0):
		return fmt.Errorf("task id %q contains a path separator", id)
	case id == "." || id == "..":
		return fmt.Errorf("task id %q is not a valid directory name", id)
	}
	return nil
}

// IsTaskFile reports whether name has a task file extension.
func IsTaskFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json", ".yml", ".yaml":
		return true
	}
	return false
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yml" || ext == ".yaml"
}
