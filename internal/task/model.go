package task

import (
	"fmt"
	"time"
)

// Status is the outcome of a single lifecycle phase.
type Status int

const (
	StatusSuccess Status = iota
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "SUCCESS"
	case StatusFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// MarshalText renders the status by name in reports and state files.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a status name written by MarshalText.
func (s *Status) UnmarshalText(b []byte) error {
	switch string(b) {
	case "SUCCESS":
		*s = StatusSuccess
	case "FAILED":
		*s = StatusFailed
	default:
		return fmt.Errorf("unknown status %q", string(b))
	}
	return nil
}

// Lifecycle phase names.
const (
	PhaseInitialize = "initialize"
	PhasePreExecute = "pre_execute"
	PhaseExecute    = "execute"
)

// Progress checkpoint tags reported during Execute.
const (
	CheckpointGenerating = "generating_code"
	CheckpointGenerated  = "code_generated"
	CheckpointSaved      = "code_saved"
	CheckpointCompleted  = "completed"
	CheckpointFailed     = "failed"
)

// Defaults applied when a task leaves a field empty.
const (
	DefaultLanguage    = "python"
	DefaultModelName   = "codex"
	DefaultTemperature = 0.3
	DefaultMaxTokens   = 1000
)

// ModelParams describes the generation backend. The template producer
// ignores everything except APIKey presence.
type ModelParams struct {
	Name        string  `json:"model_name,omitempty" yaml:"model_name,omitempty"`
	Temperature float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
	APIKey      string  `json:"api_key,omitempty" yaml:"api_key,omitempty"` // literal or "env:VAR"
}

// Config is a single code-generation task.
type Config struct {
	ID           string      `json:"task_id" yaml:"task_id"`
	Language     string      `json:"language,omitempty" yaml:"language,omitempty"`
	Requirements string      `json:"code_requirements,omitempty" yaml:"code_requirements,omitempty"`
	Model        ModelParams `json:"codex_config,omitempty" yaml:"codex_config,omitempty"`
	WorkDir      string      `json:"working_directory,omitempty" yaml:"working_directory,omitempty"`
	GitURL       string      `json:"git_url,omitempty" yaml:"git_url,omitempty"`
	GitBranch    string      `json:"git_branch,omitempty" yaml:"git_branch,omitempty"`
}

// WithDefaults returns a copy with model defaults filled in.
// Language is left untouched so Initialize can warn about it.
func (c Config) WithDefaults() Config {
	if c.Model.Name == "" {
		c.Model.Name = DefaultModelName
	}
	if c.Model.Temperature == 0 {
		c.Model.Temperature = DefaultTemperature
	}
	if c.Model.MaxTokens == 0 {
		c.Model.MaxTokens = DefaultMaxTokens
	}
	return c
}

// ExecutionResult captures one run of the generated file.
// Error and ExitCode are nil when the corresponding value is absent.
// Fault is KindExecutionTimeout or KindExecutionFault when the program
// could not run to completion.
type ExecutionResult struct {
	Executed bool          `json:"executed"`
	Output   string        `json:"output"`
	Error    *string       `json:"error"`
	ExitCode *int          `json:"exit_code"`
	Fault    ErrorKind     `json:"fault,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
}

// ErrorText returns the error string or "" when absent.
func (r *ExecutionResult) ErrorText() string {
	if r == nil || r.Error == nil {
		return ""
	}
	return *r.Error
}

// Completion is the payload of a successful Execute phase.
type Completion struct {
	Code      string           `json:"generated_code"`
	FilePath  string           `json:"code_file_path"`
	Execution *ExecutionResult `json:"execution_result"`
}

// Outcome is what every lifecycle phase returns: either success
// (optionally carrying a Completion) or failure with a classified error.
type Outcome struct {
	Status     Status      `json:"status"`
	Err        *Error      `json:"error,omitempty"`
	Completion *Completion `json:"completion,omitempty"`
}

// Succeeded builds a success outcome.
func Succeeded(c *Completion) Outcome {
	return Outcome{Status: StatusSuccess, Completion: c}
}

// Failed builds a failure outcome for the given phase.
func Failed(kind ErrorKind, phase string, err error) Outcome {
	return Outcome{Status: StatusFailed, Err: &Error{Kind: kind, Phase: phase, Err: err}}
}

// OK reports whether the phase succeeded.
func (o Outcome) OK() bool { return o.Status == StatusSuccess }

// ProgressEvent is one reported checkpoint.
type ProgressEvent struct {
	Percent int            `json:"percent"`
	Phase   string         `json:"phase"`
	Message string         `json:"message"`
	Payload map[string]any `json:"payload,omitempty"`
	Time    time.Time      `json:"time"`
}

// RunReport is written after a task has gone through its lifecycle.
type RunReport struct {
	RunID     string          `json:"run_id"`
	TaskID    string          `json:"task_id"`
	Language  string          `json:"language"`
	Status    Status          `json:"status"`
	Error     *Error          `json:"error,omitempty"`
	Result    *Completion     `json:"result,omitempty"`
	Events    []ProgressEvent `json:"events"`
	StartedAt time.Time       `json:"started_at"`
	EndedAt   time.Time       `json:"ended_at"`
	Duration  time.Duration   `json:"duration"`
}
