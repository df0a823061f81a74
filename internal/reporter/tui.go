package reporter

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ppiankov/codexrun/internal/task"
)

var spinnerChars = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// TUI styles
var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	failedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))  // red
	runStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("14")) // cyan
	doneStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10")) // green
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11")) // yellow
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))  // gray
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

const barWidth = 30

type (
	tickMsg     time.Time
	progressMsg task.ProgressEvent
	doneMsg     struct{ outcome task.Outcome }
)

// TUIModel is the Bubbletea model showing one task's lifecycle.
type TUIModel struct {
	taskID    string
	language  string
	cancelRun func() // called on 'q' to cancel the run context

	events  []task.ProgressEvent
	percent int
	outcome *task.Outcome
	frame   int
	width   int
}

// NewTUIModel creates a new TUI model.
func NewTUIModel(taskID, language string, cancelRun func()) TUIModel {
	return TUIModel{taskID: taskID, language: language, cancelRun: cancelRun}
}

// Init implements tea.Model.
func (m TUIModel) Init() tea.Cmd {
	return tickCmd()
}

func tickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update implements tea.Model.
func (m TUIModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			if m.cancelRun != nil {
				m.cancelRun()
			}
			return m, tea.Quit
		}

	case progressMsg:
		ev := task.ProgressEvent(msg)
		m.events = append(m.events, ev)
		m.percent = ev.Percent

	case doneMsg:
		o := msg.outcome
		m.outcome = &o
		return m, tea.Quit

	case tickMsg:
		m.frame++
		return m, tickCmd()

	case tea.WindowSizeMsg:
		m.width = msg.Width
	}

	return m, nil
}

// View implements tea.Model.
func (m TUIModel) View() string {
	var b strings.Builder

	b.WriteString(headerStyle.Render(fmt.Sprintf("codexrun — task %s (%s)", m.taskID, m.language)))
	b.WriteString("\n\n")
	b.WriteString(m.progressLine())
	b.WriteString("\n\n")

	for _, ev := range m.events {
		style := runStyle
		switch ev.Phase {
		case task.CheckpointCompleted:
			style = doneStyle
		case task.CheckpointFailed:
			style = failedStyle
		}
		b.WriteString(fmt.Sprintf("  %s %s\n", style.Render(fmt.Sprintf("[%3d%%] %-16s", ev.Percent, ev.Phase)), ev.Message))
	}

	if m.outcome != nil {
		b.WriteString("\n")
		if m.outcome.OK() {
			b.WriteString(doneStyle.Render("  ✓ " + m.outcome.Status.String()))
			if c := m.outcome.Completion; c != nil && c.Execution != nil && !c.Execution.Executed {
				b.WriteString(warnStyle.Render("  (code not run)"))
			}
		} else {
			b.WriteString(failedStyle.Render("  ✗ " + m.outcome.Err.Error()))
		}
		b.WriteString("\n")
		return b.String()
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render("  q: cancel"))
	b.WriteString("\n")
	return b.String()
}

func (m TUIModel) progressLine() string {
	filled := m.percent * barWidth / 100
	if filled > barWidth {
		filled = barWidth
	}
	style := runStyle
	if m.outcome != nil && !m.outcome.OK() {
		style = failedStyle
	} else if m.percent >= 100 {
		style = doneStyle
	}
	bar := style.Render(strings.Repeat("█", filled)) + dimStyle.Render(strings.Repeat("░", barWidth-filled))

	spin := spinnerChars[m.frame%len(spinnerChars)]
	if m.outcome != nil {
		spin = " "
	}
	return fmt.Sprintf("  %s %s %3d%%", spin, bar, m.percent)
}

// TUIReporter forwards checkpoints to a running bubbletea program.
type TUIReporter struct {
	p *tea.Program
}

// Report implements Sink.
func (r *TUIReporter) Report(percent int, phase, message string, payload map[string]any) {
	r.p.Send(progressMsg(task.ProgressEvent{
		Percent: percent,
		Phase:   phase,
		Message: message,
		Payload: payload,
		Time:    time.Now(),
	}))
}

// RunTUI runs fn while rendering its progress. fn receives the sink to
// report through and a context cancelled when the user quits.
// It returns once fn has returned.
func RunTUI(ctx context.Context, taskID, language string, fn func(ctx context.Context, sink Sink) task.Outcome) (task.Outcome, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(NewTUIModel(taskID, language, cancel), tea.WithContext(ctx))
	sink := &TUIReporter{p: p}

	done := make(chan task.Outcome, 1)
	go func() {
		o := fn(ctx, sink)
		done <- o
		p.Send(doneMsg{outcome: o})
	}()

	_, err := p.Run()
	outcome := <-done
	// a killed program is expected when the user quits
	if err != nil && ctx.Err() != nil {
		err = nil
	}
	return outcome, err
}
