package types

import (
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogsPageDecode(t *testing.T) {
	body := `{
	  "luauExecutionSessionTaskLogs": [
	    {"path": "p/logs/1", "messages": [], "structuredMessages": [
	      {"message": "hello", "createTime": "2025-01-02T03:04:05.678Z", "messageType": "OUTPUT"},
	      {"message": "careful", "createTime": "2025-01-02T03:04:06Z", "messageType": "WARNING"}
	    ]},
	    {"path": "p/logs/2", "structuredMessages": [
	      {"message": "bad", "createTime": "2025-01-02T03:04:07Z", "messageType": "ERROR"}
	    ]}
	  ],
	  "nextPageToken": "abc"
	}`

	var page LogsPage
	require.NoError(t, sonic.UnmarshalString(body, &page))

	entries := page.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, "hello", entries[0].Message)
	assert.Equal(t, MessageTypeOutput, entries[0].MessageType)
	assert.Equal(t, MessageTypeWarning, entries[1].MessageType)
	assert.Equal(t, MessageTypeError, entries[2].MessageType)
	assert.False(t, page.IsLastPage())
	assert.Equal(t, "abc", page.NextPageToken)
}

func TestLogEntryTime(t *testing.T) {
	e := LogEntry{CreateTime: "2025-01-02T03:04:05.678Z"}
	assert.Equal(t, time.Date(2025, 1, 2, 3, 4, 5, 678_000_000, time.UTC), e.Time().UTC())

	assert.True(t, LogEntry{CreateTime: "yesterday"}.Time().IsZero())
}

func TestEmptyPageIsLast(t *testing.T) {
	var page LogsPage
	require.NoError(t, sonic.UnmarshalString(`{"luauExecutionSessionTaskLogs": [], "nextPageToken": ""}`, &page))
	assert.True(t, page.IsLastPage())
	assert.Empty(t, page.Entries())
}
