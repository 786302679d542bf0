// Package reporter publishes the outcome of a run: the coloured summary
// line on the console, a JSON summary file and a webhook notification.
//
// Reporters run after the pipeline has finished. A reporter failure is
// logged as a warning and never changes the exit status.
package reporter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"yqhp/luau-runner/internal/execution"
	"yqhp/luau-runner/pkg/types"
)

// Reporter publishes a finished run.
type Reporter interface {
	// Name 返回报告器名称。
	Name() string

	// Report 发送运行报告。
	Report(ctx context.Context, report *Report) error
}

// Report is the outcome of one run.
type Report struct {
	RunID     string            `json:"runId"`
	Timestamp time.Time         `json:"timestamp"`
	TaskPath  string            `json:"taskPath,omitempty"`
	State     types.TaskState   `json:"state,omitempty"`
	Result    *types.TaskResult `json:"result,omitempty"`
	PassRate  float64           `json:"passRate"`
	Success   bool              `json:"success"`
	ExitCode  int               `json:"exitCode"`
	Duration  string            `json:"duration"`
	Summary   string            `json:"summary,omitempty"`
	Error     string            `json:"error,omitempty"`
	ErrorKind string            `json:"errorKind,omitempty"`

	summary *execution.Summary
}

// NewReport builds a Report from a pipeline result. Exactly one of summary
// and err is expected to be set.
func NewReport(runID string, summary *execution.Summary, err error, exitCode int, elapsed time.Duration) *Report {
	r := &Report{
		RunID:     runID,
		Timestamp: time.Now().UTC(),
		ExitCode:  exitCode,
		Duration:  execution.FormatElapsed(elapsed),
		summary:   summary,
	}

	if summary != nil {
		result := summary.Result
		r.TaskPath = summary.TaskPath
		r.State = summary.State
		r.Result = &result
		r.PassRate = summary.PassRate
		r.Success = summary.Success()
		r.Summary = summary.String()
	}

	if err != nil {
		r.Error = err.Error()
		r.ErrorKind = string(execution.KindOf(err))
		var e *execution.Error
		if errors.As(err, &e) && e.TaskPath != "" {
			r.TaskPath = e.TaskPath
		}
	}
	return r
}

// Manager fans a report out to every configured reporter.
type Manager struct {
	reporters []Reporter
}

// NewManager creates a manager over reporters.
func NewManager(reporters ...Reporter) *Manager {
	return &Manager{reporters: reporters}
}

// Add appends a reporter.
func (m *Manager) Add(r Reporter) {
	m.reporters = append(m.reporters, r)
}

// Len returns the number of reporters.
func (m *Manager) Len() int {
	return len(m.reporters)
}

// Report sends report to every reporter, in order. All reporters run even
// when an earlier one fails; the failures are joined.
func (m *Manager) Report(ctx context.Context, report *Report) error {
	var errs []error
	for _, r := range m.reporters {
		if err := r.Report(ctx, report); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Close releases reporters that hold resources.
func (m *Manager) Close() {
	for _, r := range m.reporters {
		if c, ok := r.(interface{ Close() }); ok {
			c.Close()
		}
	}
}
