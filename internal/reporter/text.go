package reporter

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/ppiankov/codexrun/internal/task"
)

const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorDim    = "\033[2m"
)

// Sink receives progress checkpoints.
type Sink interface {
	Report(percent int, phase, message string, payload map[string]any)
}

// TextReporter writes one human-readable line per checkpoint.
type TextReporter struct {
	w     io.Writer
	color bool
}

// NewTextReporter creates a text reporter.
// If w is nil, defaults to os.Stdout.
// color enables ANSI codes.
func NewTextReporter(w io.Writer, color bool) *TextReporter {
	if w == nil {
		w = os.Stdout
	}
	return &TextReporter{w: w, color: color}
}

// PrintHeader writes the initial banner.
func (r *TextReporter) PrintHeader(taskID, language string) {
	fmt.Fprintf(r.w, "codexrun — task %s (%s)\n\n", taskID, language)
}

// Report implements Sink.
func (r *TextReporter) Report(percent int, phase, message string, payload map[string]any) {
	color := colorCyan
	switch phase {
	case task.CheckpointCompleted:
		color = colorGreen
	case task.CheckpointFailed:
		color = colorRed
	}
	fmt.Fprintf(r.w, "  %s[%3d%%] %-16s%s %s\n", r.c(color), percent, phase, r.c(colorReset), message)

	if path, ok := payload["code_file_path"].(string); ok && path != "" {
		fmt.Fprintf(r.w, "         %sfile:%s %s\n", r.c(colorDim), r.c(colorReset), path)
	}
	if res, ok := payload["execution_result"].(*task.ExecutionResult); ok && res != nil {
		r.printExecution(res)
	}
}

func (r *TextReporter) printExecution(res *task.ExecutionResult) {
	switch {
	case res.Executed && res.ExitCode != nil:
		color := colorGreen
		if *res.ExitCode != 0 {
			color = colorYellow
		}
		fmt.Fprintf(r.w, "         %sexit:%s %s%d%s\n", r.c(colorDim), r.c(colorReset), r.c(color), *res.ExitCode, r.c(colorReset))
	case res.Error != nil:
		fmt.Fprintf(r.w, "         %snot run:%s %s%s%s\n", r.c(colorDim), r.c(colorReset), r.c(colorRed), *res.Error, r.c(colorReset))
	default:
		fmt.Fprintf(r.w, "         %snot run:%s %s\n", r.c(colorDim), r.c(colorReset), res.Output)
		return
	}
	if out := strings.TrimRight(res.Output, "\n"); out != "" {
		for _, line := range strings.Split(out, "\n") {
			fmt.Fprintf(r.w, "         %s│%s %s\n", r.c(colorDim), r.c(colorReset), line)
		}
	}
}

// PrintSummary writes the final status line.
func (r *TextReporter) PrintSummary(report *task.RunReport) {
	fmt.Fprintf(r.w, "\n%s--- Summary ---%s\n", r.c(colorCyan), r.c(colorReset))
	status := report.Status.String()
	if report.Status == task.StatusSuccess {
		status = r.c(colorGreen) + status + r.c(colorReset)
	} else {
		status = r.c(colorRed) + status + r.c(colorReset)
	}
	fmt.Fprintf(r.w, "Task: %s  Status: %s  Duration: %s", report.TaskID, status, report.Duration.Round(time.Millisecond))
	if report.Error != nil {
		fmt.Fprintf(r.w, "  (%s: %v)", report.Error.Kind, report.Error.Err)
	}
	fmt.Fprintln(r.w)
}

func (r *TextReporter) c(code string) string {
	if !r.color {
		return ""
	}
	return code
}
