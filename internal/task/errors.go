package task

import (
	"encoding/json"
	"fmt"
)

// ErrorKind classifies why a phase failed.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindConfiguration
	KindSetup
	KindGeneration
	KindPersistence
	KindExecutionTimeout
	KindExecutionFault
	KindUnhandled
)

func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindConfiguration:
		return "configuration"
	case KindSetup:
		return "setup"
	case KindGeneration:
		return "generation"
	case KindPersistence:
		return "persistence"
	case KindExecutionTimeout:
		return "execution_timeout"
	case KindExecutionFault:
		return "execution_fault"
	case KindUnhandled:
		return "unhandled"
	default:
		return "unknown"
	}
}

// MarshalText renders the kind by name.
func (k ErrorKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText parses a kind name written by MarshalText.
func (k *ErrorKind) UnmarshalText(b []byte) error {
	for c := KindNone; c <= KindUnhandled; c++ {
		if c.String() == string(b) {
			*k = c
			return nil
		}
	}
	return fmt.Errorf("unknown error kind %q", string(b))
}

// Error is a classified phase failure.
type Error struct {
	Kind  ErrorKind
	Phase string
	Err   error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s failure", e.Phase, e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Phase, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// MarshalJSON flattens the error for reports; the wrapped error is
// rendered as its message.
func (e *Error) MarshalJSON() ([]byte, error) {
	msg := ""
	if e.Err != nil {
		msg = e.Err.Error()
	}
	return json.Marshal(struct {
		Kind    string `json:"kind"`
		Phase   string `json:"phase"`
		Message string `json:"message"`
	}{e.Kind.String(), e.Phase, msg})
}
