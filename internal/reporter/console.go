package reporter

import (
	"context"

	"yqhp/luau-runner/pkg/logger"
)

// Console prints the summary line of a completed run at info level, or as
// output when info is filtered. Runs
// that ended in an error print nothing here; the caller reports the error.
type Console struct {
	log *logger.Logger
}

// NewConsole creates a console reporter writing through log, or through the
// process-wide logger when log is nil.
func NewConsole(log *logger.Logger) *Console {
	return &Console{log: log}
}

// Name returns the reporter name.
func (c *Console) Name() string {
	return "console"
}

// Report prints the summary line.
func (c *Console) Report(_ context.Context, report *Report) error {
	if report.summary == nil {
		return nil
	}
	log := c.log
	if log == nil {
		log = logger.L()
	}
	// quiet runs filter info lines but still get the result
	if log.Enabled(logger.LevelInfo) {
		log.Info("%s", report.summary.Format(log))
	} else {
		log.Output("%s", report.summary.Format(log))
	}
	return nil
}
