package execution

import (
	"context"
	"time"

	"yqhp/luau-runner/internal/opencloud"
	"yqhp/luau-runner/pkg/types"
)

// TaskCreator submits task creation requests.
type TaskCreator interface {
	CreateTask(ctx context.Context, place opencloud.PlaceRef, req *types.TaskRequest) (*types.Task, error)
}

// Spawner submits execution requests against one place.
type Spawner struct {
	client TaskCreator
	place  opencloud.PlaceRef
}

// NewSpawner creates a Spawner for place.
func NewSpawner(client TaskCreator, place opencloud.PlaceRef) *Spawner {
	return &Spawner{client: client, place: place}
}

// Spawn creates a task running script against the staged input. It is never
// retried: a second attempt could start a duplicate task.
func (s *Spawner) Spawn(ctx context.Context, script string, timeout time.Duration, input *types.BinaryInput, captureOutput bool) (*types.Task, error) {
	req := &types.TaskRequest{
		Script:             script,
		Timeout:            types.FormatDuration(timeout),
		EnableBinaryOutput: captureOutput,
	}
	if input != nil {
		req.BinaryInput = input.Path
	}

	task, err := s.client.CreateTask(ctx, s.place, req)
	if err != nil {
		return nil, NewError(ErrKindSpawn, "luau execution session request failed", err)
	}
	if task.Path == "" {
		return nil, NewError(ErrKindSpawn, "luau execution session response carried no task path", nil)
	}
	return task, nil
}
