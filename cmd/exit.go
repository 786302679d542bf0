package cmd

import (
	"context"
	"errors"
	"fmt"

	"yqhp/luau-runner/internal/execution"
)

// Process exit codes.
const (
	ExitSuccess     = execution.ExitSuccess
	ExitTestsFailed = execution.ExitTestsFailed
	ExitFatal       = 2
	ExitInterrupted = 130
)

// ExitCode maps the outcome of a run to the process exit status. A run error
// is fatal unless it was caused by an interrupt; otherwise the status follows
// the summary's success flag.
func ExitCode(summary *execution.Summary, err error) int {
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return ExitInterrupted
		}
		return ExitFatal
	}
	if summary == nil {
		return ExitSuccess
	}
	return summary.ExitCode
}

// exitError carries an exit code out of a cobra command. The message has
// already been logged.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err != nil {
		return e.err.Error()
	}
	return fmt.Sprintf("exit status %d", e.code)
}

func (e *exitError) Unwrap() error {
	return e.err
}
