package types

import "time"

// MessageType is the severity/category of a structured log entry.
type MessageType string

const (
	MessageTypeUnspecified MessageType = "MESSAGE_TYPE_UNSPECIFIED"
	MessageTypeError       MessageType = "ERROR"
	MessageTypeWarning     MessageType = "WARNING"
	MessageTypeInfo        MessageType = "INFO"
	MessageTypeOutput      MessageType = "OUTPUT"
)

// ParseMessageType maps a server value to a MessageType, defaulting to
// MessageTypeUnspecified.
func ParseMessageType(s string) MessageType {
	switch MessageType(s) {
	case MessageTypeError, MessageTypeWarning, MessageTypeInfo, MessageTypeOutput:
		return MessageType(s)
	default:
		return MessageTypeUnspecified
	}
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *MessageType) UnmarshalJSON(data []byte) error {
	v, err := decodeEnum(data)
	if err != nil {
		return err
	}
	*t = ParseMessageType(v)
	return nil
}

// LogView selects the shape of a log listing.
type LogView string

// LogViewStructured asks for typed entries with message type and time.
const LogViewStructured LogView = "STRUCTURED"

// LogEntry is one structured log line emitted by a task.
type LogEntry struct {
	Message     string      `json:"message"`
	CreateTime  string      `json:"createTime"`
	MessageType MessageType `json:"messageType"`
}

// Time parses CreateTime. The zero time is returned when the service sent
// something unparseable.
func (e LogEntry) Time() time.Time {
	t, err := time.Parse(time.RFC3339Nano, e.CreateTime)
	if err != nil {
		return time.Time{}
	}
	return t
}

// TaskLog groups the log lines of one task.
type TaskLog struct {
	Path               string     `json:"path"`
	Messages           []string   `json:"messages,omitempty"`
	StructuredMessages []LogEntry `json:"structuredMessages"`
}

// LogsPage is one page of a paginated log listing. An empty NextPageToken
// marks the final page.
type LogsPage struct {
	Logs          []TaskLog `json:"luauExecutionSessionTaskLogs"`
	NextPageToken string    `json:"nextPageToken"`
}

// Entries flattens the structured messages of every log group in page order.
func (p *LogsPage) Entries() []LogEntry {
	var n int
	for _, l := range p.Logs {
		n += len(l.StructuredMessages)
	}
	entries := make([]LogEntry, 0, n)
	for _, l := range p.Logs {
		entries = append(entries, l.StructuredMessages...)
	}
	return entries
}

// IsLastPage reports whether no further pages follow.
func (p *LogsPage) IsLastPage() bool {
	return p.NextPageToken == ""
}
