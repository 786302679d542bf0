package execution

import (
	"context"
	"strings"
	"time"

	"github.com/duke-git/lancet/v2/slice"

	"yqhp/luau-runner/pkg/types"
)

const (
	outputBanner    = "------- Luau Output -------"
	endOutputBanner = "----- End Luau Output -----"
)

// LogPager fetches pages of task logs.
type LogPager interface {
	ListLogs(ctx context.Context, path string, view types.LogView, pageToken string) (*types.LogsPage, error)
}

// LogSink receives log entries on four channels. Each call carries the time
// the line should be stamped with; the zero time means now.
type LogSink interface {
	Error(at time.Time, msg string)
	Warn(at time.Time, msg string)
	Info(at time.Time, msg string)
	Output(at time.Time, msg string)
}

// LogStats counts what a Stream call did.
type LogStats struct {
	Pages      int
	Dispatched int
	Suppressed int
	ByType     map[types.MessageType]int
}

// LogStreamer pages through a task's structured logs and forwards them.
type LogStreamer struct {
	client   LogPager
	sink     LogSink
	suppress []string
}

// NewLogStreamer creates a LogStreamer. Entries whose message contains any
// of suppress are dropped.
func NewLogStreamer(client LogPager, sink LogSink, suppress []string) *LogStreamer {
	filtered := slice.Filter(suppress, func(_ int, s string) bool { return s != "" })
	return &LogStreamer{client: client, sink: sink, suppress: filtered}
}

// Stream fetches every page of taskPath's logs, starting with an empty
// token and following nextPageToken until it comes back empty. Any page
// failure aborts the stream.
func (s *LogStreamer) Stream(ctx context.Context, taskPath string) (LogStats, error) {
	stats := LogStats{ByType: make(map[types.MessageType]int)}

	s.sink.Info(time.Time{}, outputBanner)

	token := ""
	for {
		page, err := s.client.ListLogs(ctx, taskPath, types.LogViewStructured, token)
		if err != nil {
			return stats, &Error{
				Kind:     ErrKindLogs,
				Message:  "luau execution session logs request failed",
				TaskPath: taskPath,
				Cause:    err,
			}
		}
		stats.Pages++

		for _, entry := range page.Entries() {
			if !s.dispatch(entry) {
				stats.Suppressed++
				continue
			}
			stats.Dispatched++
			stats.ByType[entry.MessageType]++
		}

		if page.IsLastPage() {
			break
		}
		token = page.NextPageToken
	}

	s.sink.Info(time.Time{}, endOutputBanner)
	return stats, nil
}

// dispatch forwards entry to its channel and reports whether it did.
func (s *LogStreamer) dispatch(entry types.LogEntry) bool {
	if s.suppressed(entry.Message) {
		return false
	}

	at := entry.Time()
	switch entry.MessageType {
	case types.MessageTypeError:
		s.sink.Error(at, entry.Message)
	case types.MessageTypeWarning:
		s.sink.Warn(at, entry.Message)
	case types.MessageTypeInfo:
		s.sink.Info(at, entry.Message)
	case types.MessageTypeOutput:
		s.sink.Output(at, entry.Message)
	default:
		return false
	}
	return true
}

func (s *LogStreamer) suppressed(msg string) bool {
	return slice.ContainBy(s.suppress, func(sub string) bool {
		return strings.Contains(msg, sub)
	})
}
