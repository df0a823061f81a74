package cli

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/ppiankov/codexrun/internal/agent"
	"github.com/ppiankov/codexrun/internal/config"
	"github.com/ppiankov/codexrun/internal/history"
	"github.com/ppiankov/codexrun/internal/reporter"
	"github.com/ppiankov/codexrun/internal/runner"
	"github.com/ppiankov/codexrun/internal/state"
	"github.com/ppiankov/codexrun/internal/task"
)

// Files written to each run directory.
const (
	reportFile = "report.json"
	eventsFile = "events.jsonl"
)

func statePath(s *config.Settings) string {
	if s.StateFile != "" {
		return s.StateFile
	}
	return state.DefaultPath()
}

func historyPath(s *config.Settings) string {
	if s.HistoryDB != "" {
		return s.HistoryDB
	}
	return history.DefaultPath()
}

func runsPath(s *config.Settings) string {
	if s.RunsDir != "" {
		return s.RunsDir
	}
	return filepath.Join(".codexrun", "runs")
}

// executor runs single tasks and records them in state, history and the
// run directory.
type executor struct {
	baseDir   string
	runsDir   string
	timeout   time.Duration
	maxOutput int
	tracker   *state.Tracker
	history   *history.Store // nil disables history
	logger    *slog.Logger
	agentOpts []agent.Option // appended last; tests swap collaborators here
}

// execute runs cfg through the full lifecycle. display, when non-nil,
// receives every checkpoint as it happens. Settings must already be applied
// to cfg.
func (e *executor) execute(ctx context.Context, cfg task.Config, display reporter.Sink) *task.RunReport {
	runID := uuid.NewString()
	runDir := filepath.Join(e.runsDir, runID)
	logger := e.logger.With("run", runID)

	rec := reporter.NewRecorder()
	sinks := reporter.Multi{rec}
	if display != nil {
		sinks = append(sinks, display)
	}
	events, err := reporter.NewJSONLReporter(filepath.Join(runDir, eventsFile))
	if err != nil {
		logger.Warn("events file disabled", "error", err)
	} else {
		defer func() { _ = events.Close() }()
		sinks = append(sinks, events)
	}

	opts := []agent.Option{
		agent.WithBaseDir(e.baseDir),
		agent.WithProcessRunner(runner.NewSubprocess(e.timeout, e.maxOutput, logger)),
		agent.WithProgress(sinks),
		agent.WithLogger(logger),
	}
	r := agent.New(cfg, append(opts, e.agentOpts...)...)

	language := cfg.Language
	if language == "" {
		language = task.DefaultLanguage
	}
	e.tracker.MarkStarted(cfg.ID, runID, language)

	start := time.Now()
	out := r.Run(ctx)
	end := time.Now()

	report := &task.RunReport{
		RunID:     runID,
		TaskID:    cfg.ID,
		Language:  r.Language(),
		Status:    out.Status,
		Error:     out.Err,
		Result:    out.Completion,
		Events:    rec.Events(),
		StartedAt: start,
		EndedAt:   end,
		Duration:  end.Sub(start),
	}

	if out.OK() {
		e.tracker.MarkCompleted(cfg.ID, out.Completion)
	} else {
		e.tracker.MarkFailed(cfg.ID, out.Err)
	}

	if err := reporter.WriteJSONReport(report, filepath.Join(runDir, reportFile)); err != nil {
		logger.Warn("cannot write run report", "error", err)
	}
	if e.history != nil {
		// recorded even when ctx was cancelled mid-run
		if _, err := e.history.Record(context.WithoutCancel(ctx), history.FromReport(report)); err != nil {
			logger.Warn("cannot record history", "error", err)
		}
	}
	return report
}

// outcomeOf rebuilds the lifecycle outcome carried by a report.
func outcomeOf(r *task.RunReport) task.Outcome {
	return task.Outcome{Status: r.Status, Err: r.Error, Completion: r.Result}
}
