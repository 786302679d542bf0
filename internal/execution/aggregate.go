package execution

import (
	"fmt"
	"time"

	"yqhp/luau-runner/pkg/types"
)

// Process exit codes chosen by a run.
const (
	ExitSuccess     = 0
	ExitTestsFailed = 1
)

// Summary is the outcome of a completed task.
type Summary struct {
	TaskPath string           `json:"taskPath"`
	State    types.TaskState  `json:"state"`
	Result   types.TaskResult `json:"result"`
	PassRate float64          `json:"passRate"`
	Elapsed  time.Duration    `json:"elapsed"`
	ExitCode int              `json:"exitCode"`
}

// Success reports whether the test run itself passed.
func (s *Summary) Success() bool {
	return s.Result.Success
}

// String renders the plain summary line.
func (s *Summary) String() string {
	return s.Format(nil)
}

// Painter styles parts of the summary line.
type Painter interface {
	Bold(string) string
	Green(string) string
	Yellow(string) string
	Red(string) string
}

// Format renders the summary line, styled by p when it is not nil:
//
//	Results (2.50s): 1 suites, 10 tests (10 passed, 0 failed) - 100.00% passed
func (s *Summary) Format(p Painter) string {
	bold, green, red := identity, identity, identity
	rate := fmt.Sprintf("%.2f", s.PassRate)
	if p != nil {
		bold, green, red = p.Bold, p.Green, p.Red
		switch {
		case s.PassRate == 100:
			rate = p.Green(rate)
		case s.PassRate >= 75:
			rate = p.Yellow(rate)
		default:
			rate = p.Red(rate)
		}
	}

	return fmt.Sprintf("Results (%s): %s suites, %s tests (%s passed, %s failed) - %s%% passed",
		FormatElapsed(s.Elapsed),
		bold(fmt.Sprint(s.Result.Suites)),
		bold(fmt.Sprint(s.Result.Total)),
		green(fmt.Sprint(s.Result.Passed)),
		red(fmt.Sprint(s.Result.Failed)),
		rate,
	)
}

func identity(s string) string { return s }

// FormatElapsed renders d with two decimals in the largest unit that keeps
// it at or above 1, e.g. "2.50s", "150.00ms".
func FormatElapsed(d time.Duration) string {
	switch {
	case d >= time.Second:
		return fmt.Sprintf("%.2fs", d.Seconds())
	case d >= time.Millisecond:
		return fmt.Sprintf("%.2fms", float64(d)/float64(time.Millisecond))
	case d >= time.Microsecond:
		return fmt.Sprintf("%.2fµs", float64(d)/float64(time.Microsecond))
	default:
		return fmt.Sprintf("%dns", int64(d))
	}
}

// Aggregate turns a terminal task into a Summary. FAILED and CANCELLED
// tasks and COMPLETE tasks without exactly one result yield an *Error.
// Passing a non-terminal task is a programming error and panics.
func Aggregate(task *types.Task) (*Summary, error) {
	switch task.State {
	case types.StateFailed:
		if task.Error != nil && task.Error.Message != "" {
			return nil, &Error{
				Kind:     ErrKindTaskFailed,
				Message:  "Luau execution session failed: " + task.Error.Message,
				TaskPath: task.Path,
			}
		}
		return nil, &Error{
			Kind:     ErrKindTaskFailed,
			Message:  "Luau execution session failed for unknown reason",
			TaskPath: task.Path,
		}
	case types.StateCancelled:
		return nil, &Error{
			Kind:     ErrKindTaskCancelled,
			Message:  "Luau execution session was cancelled",
			TaskPath: task.Path,
		}
	case types.StateComplete:
	default:
		panic(fmt.Sprintf("execution: aggregate called with non-terminal task state %s", task.State))
	}

	if task.Output == nil || len(task.Output.Results) != 1 {
		return nil, &Error{
			Kind:     ErrKindNoOutput,
			Message:  "Luau execution session has no output",
			TaskPath: task.Path,
		}
	}

	result := task.Output.Results[0]
	exitCode := ExitTestsFailed
	if result.Success {
		exitCode = ExitSuccess
	}
	return &Summary{
		TaskPath: task.Path,
		State:    task.State,
		Result:   result,
		PassRate: result.PassRate(),
		Elapsed:  result.Elapsed(),
		ExitCode: exitCode,
	}, nil
}
