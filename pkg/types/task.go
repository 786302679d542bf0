package types

import (
	"strconv"
	"time"
)

// TaskState is the lifecycle state of a Luau execution session task.
type TaskState string

const (
	StateUnspecified TaskState = "STATE_UNSPECIFIED"
	StateQueued      TaskState = "QUEUED"
	StateProcessing  TaskState = "PROCESSING"
	StateCancelled   TaskState = "CANCELLED"
	StateComplete    TaskState = "COMPLETE"
	StateFailed      TaskState = "FAILED"
)

// ParseTaskState maps a server value to a TaskState. Unknown values map to
// StateUnspecified so newer server states never break decoding.
func ParseTaskState(s string) TaskState {
	switch TaskState(s) {
	case StateQueued, StateProcessing, StateCancelled, StateComplete, StateFailed:
		return TaskState(s)
	default:
		return StateUnspecified
	}
}

// IsTerminal reports whether the task will not transition any further.
func (s TaskState) IsTerminal() bool {
	switch s {
	case StateComplete, StateFailed, StateCancelled:
		return true
	default:
		return false
	}
}

// String implements fmt.Stringer.
func (s TaskState) String() string {
	return string(s)
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *TaskState) UnmarshalJSON(data []byte) error {
	v, err := decodeEnum(data)
	if err != nil {
		return err
	}
	*s = ParseTaskState(v)
	return nil
}

// ErrorCode classifies why a task failed.
type ErrorCode string

const (
	ErrorCodeUnspecified             ErrorCode = "ERROR_CODE_UNSPECIFIED"
	ErrorCodeScriptError             ErrorCode = "SCRIPT_ERROR"
	ErrorCodeDeadlineExceeded        ErrorCode = "DEADLINE_EXCEEDED"
	ErrorCodeOutputSizeLimitExceeded ErrorCode = "OUTPUT_SIZE_LIMIT_EXCEEDED"
	ErrorCodeInternalError           ErrorCode = "INTERNAL_ERROR"
)

// ParseErrorCode maps a server value to an ErrorCode, defaulting to
// ErrorCodeUnspecified.
func ParseErrorCode(s string) ErrorCode {
	switch ErrorCode(s) {
	case ErrorCodeScriptError, ErrorCodeDeadlineExceeded, ErrorCodeOutputSizeLimitExceeded, ErrorCodeInternalError:
		return ErrorCode(s)
	default:
		return ErrorCodeUnspecified
	}
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *ErrorCode) UnmarshalJSON(data []byte) error {
	v, err := decodeEnum(data)
	if err != nil {
		return err
	}
	*c = ParseErrorCode(v)
	return nil
}

// TaskError is attached to a task in the FAILED state.
type TaskError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// TaskResult is the single result record produced by the test runner script.
type TaskResult struct {
	Suites  uint32  `json:"suites"`
	Total   uint32  `json:"total"`
	Passed  uint32  `json:"passed"`
	Failed  uint32  `json:"failed"`
	Success bool    `json:"success"`
	Time    float64 `json:"time"` // seconds
}

// Elapsed returns Time as a duration.
func (r TaskResult) Elapsed() time.Duration {
	return time.Duration(r.Time * float64(time.Second))
}

// PassRate returns passed/total as a percentage. An empty run counts as
// fully passing.
func (r TaskResult) PassRate() float64 {
	if r.Total == 0 {
		return 100
	}
	return float64(r.Passed) / float64(r.Total) * 100
}

// TaskOutput is attached to a task in the COMPLETE state.
type TaskOutput struct {
	Results []TaskResult `json:"results"`
}

// Task is a Luau execution session task as returned by the service.
// The orchestrator only ever reads it.
type Task struct {
	Path               string      `json:"path"`
	CreateTime         string      `json:"createTime,omitempty"`
	UpdateTime         string      `json:"updateTime,omitempty"`
	User               string      `json:"user"`
	State              TaskState   `json:"state"`
	Script             string      `json:"script"`
	Timeout            string      `json:"timeout,omitempty"`
	Error              *TaskError  `json:"error,omitempty"`
	Output             *TaskOutput `json:"output,omitempty"`
	BinaryInput        string      `json:"binaryInput"`
	EnableBinaryOutput bool        `json:"enableBinaryOutput"`
	BinaryOutputURI    string      `json:"binaryOutputUri,omitempty"`
}

// TaskRequest is the body of a spawn request.
type TaskRequest struct {
	Script             string `json:"script"`
	Timeout            string `json:"timeout"`
	BinaryInput        string `json:"binaryInput"`
	EnableBinaryOutput bool   `json:"enableBinaryOutput"`
}

// FormatDuration renders d the way the service expects durations
// (protobuf JSON form, e.g. "10s" or "2.5s").
func FormatDuration(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', -1, 64) + "s"
}

// BinaryInputRequest declares the size of a payload to be uploaded.
type BinaryInputRequest struct {
	Size int `json:"size"`
}

// BinaryInput is a staged upload slot. UploadURI may be written exactly once.
type BinaryInput struct {
	Path      string `json:"path"`
	Size      int    `json:"size"`
	UploadURI string `json:"uploadUri"`
}
