package opencloud

import (
	"context"
	"fmt"
	"net/url"

	"github.com/gofiber/fiber/v2"

	"yqhp/luau-runner/pkg/types"
)

// Operation names, used in errors and metrics labels.
const (
	OpCreateBinaryInput = "create_binary_input"
	OpUploadBinary      = "upload_binary"
	OpCreateTask        = "create_task"
	OpGetTask           = "get_task"
	OpListLogs          = "list_logs"
)

// PlaceRef addresses the place a task runs in. A zero Version targets the
// latest saved version.
type PlaceRef struct {
	UniverseID int64
	PlaceID    int64
	Version    int64
}

// TasksPath returns the collection path tasks are created under.
func (p PlaceRef) TasksPath() string {
	if p.Version > 0 {
		return fmt.Sprintf("universes/%d/places/%d/versions/%d/luau-execution-session-tasks", p.UniverseID, p.PlaceID, p.Version)
	}
	return fmt.Sprintf("universes/%d/places/%d/luau-execution-session-tasks", p.UniverseID, p.PlaceID)
}

// CreateBinaryInput reserves an upload slot for size bytes.
func (c *Client) CreateBinaryInput(ctx context.Context, universeID int64, size int) (*types.BinaryInput, error) {
	u := c.URL(fmt.Sprintf("universes/%d/luau-execution-session-task-binary-inputs", universeID))

	var input types.BinaryInput
	if err := c.postJSON(ctx, OpCreateBinaryInput, u, types.BinaryInputRequest{Size: size}, &input); err != nil {
		return nil, err
	}
	return &input, nil
}

// UploadBinary writes data to a pre-signed upload URI.
func (c *Client) UploadBinary(ctx context.Context, uploadURI string, data []byte) error {
	if data == nil {
		data = []byte{}
	}
	_, err := c.send(ctx, request{
		op:          OpUploadBinary,
		method:      fiber.MethodPut,
		url:         uploadURI,
		body:        data,
		contentType: fiber.MIMEOctetStream,
		presigned:   true,
	})
	return err
}

// CreateTask spawns a Luau execution session task in place.
func (c *Client) CreateTask(ctx context.Context, place PlaceRef, req *types.TaskRequest) (*types.Task, error) {
	var task types.Task
	if err := c.postJSON(ctx, OpCreateTask, c.URL(place.TasksPath()), req, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// GetTask fetches the current snapshot of the task at path.
func (c *Client) GetTask(ctx context.Context, path string) (*types.Task, error) {
	var task types.Task
	if err := c.getJSON(ctx, OpGetTask, c.URL(path), &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// ListLogs fetches one page of the task's logs. An empty pageToken requests
// the first page.
func (c *Client) ListLogs(ctx context.Context, path string, view types.LogView, pageToken string) (*types.LogsPage, error) {
	q := url.Values{}
	q.Set("view", string(view))
	q.Set("nextPageToken", pageToken)
	u := c.URL(path+"/logs") + "?" + q.Encode()

	var page types.LogsPage
	if err := c.getJSON(ctx, OpListLogs, u, &page); err != nil {
		return nil, err
	}
	return &page, nil
}
