package execution

import (
	"context"
	"strconv"
	"time"

	"yqhp/luau-runner/pkg/logger"
	"yqhp/luau-runner/pkg/types"
)

// TaskGetter fetches task snapshots.
type TaskGetter interface {
	GetTask(ctx context.Context, path string) (*types.Task, error)
}

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// sleepContext is the default SleepFunc.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// PollConfig configures the poll backoff.
type PollConfig struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// PollerOption configures a Poller.
type PollerOption func(*Poller)

// WithSleep replaces the sleep between polls.
func WithSleep(fn SleepFunc) PollerOption {
	return func(p *Poller) {
		p.sleep = fn
	}
}

// WithPollHook calls fn with the state of every snapshot fetched.
func WithPollHook(fn func(types.TaskState)) PollerOption {
	return func(p *Poller) {
		p.onPoll = fn
	}
}

// Poller waits for a task to reach a terminal state.
type Poller struct {
	client TaskGetter
	config PollConfig
	sleep  SleepFunc
	onPoll func(types.TaskState)
}

// NewPoller creates a Poller.
func NewPoller(client TaskGetter, config PollConfig, opts ...PollerOption) *Poller {
	p := &Poller{
		client: client,
		config: config,
		sleep:  sleepContext,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Wait polls taskPath until the task is COMPLETE, FAILED or CANCELLED and
// returns that final snapshot. QUEUED, PROCESSING and unrecognised states
// keep it polling. There is no attempt limit; cancel ctx to give up.
func (p *Poller) Wait(ctx context.Context, taskPath string) (*types.Task, error) {
	backoff := NewBackoff(p.config.InitialDelay, p.config.MaxDelay, p.config.Multiplier)

	for {
		task, err := p.client.GetTask(ctx, taskPath)
		if err != nil {
			return nil, &Error{
				Kind:     ErrKindPoll,
				Message:  "luau execution session state request failed",
				TaskPath: taskPath,
				Cause:    err,
			}
		}
		if p.onPoll != nil {
			p.onPoll(task.State)
		}
		if task.State.IsTerminal() {
			return task, nil
		}

		delay := backoff.Next()
		logger.Info("Current state: %s. Waiting %s seconds before polling again...", task.State, formatSeconds(delay))

		if err := p.sleep(ctx, delay); err != nil {
			return nil, &Error{
				Kind:     ErrKindPoll,
				Message:  "polling interrupted",
				TaskPath: taskPath,
				Cause:    err,
			}
		}
	}
}

func formatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', -1, 64)
}
