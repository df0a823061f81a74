package reporter

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ppiankov/codexrun/internal/task"
)

func TestTUIModel_Progress(t *testing.T) {
	m := NewTUIModel("t1", "python", nil)

	updated, _ := m.Update(progressMsg(task.ProgressEvent{Percent: 50, Phase: task.CheckpointGenerated, Message: "Code generated"}))
	m = updated.(TUIModel)

	if m.percent != 50 {
		t.Errorf("expected 50%%, got %d", m.percent)
	}
	view := m.View()
	if !strings.Contains(view, "task t1 (python)") {
		t.Errorf("expected header, got: %s", view)
	}
	if !strings.Contains(view, "code_generated") || !strings.Contains(view, "Code generated") {
		t.Errorf("expected checkpoint in view, got: %s", view)
	}
	if !strings.Contains(view, " 50%") {
		t.Errorf("expected percent in bar line, got: %s", view)
	}
}

func TestTUIModel_DoneQuits(t *testing.T) {
	m := NewTUIModel("t1", "python", nil)

	updated, cmd := m.Update(doneMsg{outcome: task.Succeeded(nil)})
	m = updated.(TUIModel)

	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected tea.QuitMsg")
	}
	if !strings.Contains(m.View(), "SUCCESS") {
		t.Errorf("expected success in view, got: %s", m.View())
	}
}

func TestTUIModel_FailedOutcome(t *testing.T) {
	m := NewTUIModel("t1", "python", nil)

	updated, _ := m.Update(doneMsg{outcome: task.Failed(task.KindPersistence, task.PhaseExecute, errors.New("disk full"))})
	m = updated.(TUIModel)

	if !strings.Contains(m.View(), "disk full") {
		t.Errorf("expected failure reason in view, got: %s", m.View())
	}
}

func TestTUIModel_QuitCancels(t *testing.T) {
	cancelled := false
	m := NewTUIModel("t1", "python", func() { cancelled = true })

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})

	if !cancelled {
		t.Error("expected cancel on q")
	}
	if cmd == nil {
		t.Error("expected quit command")
	}
}

func TestTUIModel_BarClamped(t *testing.T) {
	m := NewTUIModel("t1", "python", nil)
	m.percent = 150

	if strings.Count(m.progressLine(), "█") != barWidth {
		t.Errorf("expected full bar of %d cells", barWidth)
	}
}
