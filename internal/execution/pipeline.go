package execution

import (
	"context"
	"time"

	"yqhp/luau-runner/pkg/logger"
)

// Archiver keeps a copy of the payload before it is uploaded. Archive
// failures are logged and never abort a run.
type Archiver interface {
	Archive(ctx context.Context, payload []byte) error
}

// Recorder observes a run. Every method must be cheap and non-blocking.
// Polls are observed through the Poller's WithPollHook.
type Recorder interface {
	ObserveLogs(stats LogStats)
	ObserveRun(summary *Summary, err error, elapsed time.Duration)
}

// TaskSpec is what a Pipeline spawns.
type TaskSpec struct {
	Script        string
	Timeout       time.Duration
	CaptureOutput bool
}

// Pipeline runs stage, spawn, poll, log streaming and aggregation in order.
// A Pipeline keeps no state between runs.
type Pipeline struct {
	Stager   *Stager
	Spawner  *Spawner
	Poller   *Poller
	Streamer *LogStreamer
	Task     TaskSpec

	Archiver Archiver
	Recorder Recorder
}

// Run executes payload end to end. The first fatal error is returned as is;
// later stages never start after a failure.
func (p *Pipeline) Run(ctx context.Context, payload []byte) (summary *Summary, err error) {
	start := time.Now()
	if p.Recorder != nil {
		defer func() {
			p.Recorder.ObserveRun(summary, err, time.Since(start))
		}()
	}

	if p.Archiver != nil {
		if aerr := p.Archiver.Archive(ctx, payload); aerr != nil {
			logger.Warn("Failed to archive test binary; artifact will not be available")
			logger.Warn("Error: %v", aerr)
		}
	}

	input, err := p.Stager.Stage(ctx, payload)
	if err != nil {
		return nil, err
	}

	task, err := p.Spawner.Spawn(ctx, p.Task.Script, p.Task.Timeout, input, p.Task.CaptureOutput)
	if err != nil {
		return nil, err
	}
	logger.Debug("Luau execution session started with ID: %s", task.Path)

	final, err := p.Poller.Wait(ctx, task.Path)
	if err != nil {
		return nil, err
	}

	stats, err := p.Streamer.Stream(ctx, task.Path)
	if p.Recorder != nil {
		p.Recorder.ObserveLogs(stats)
	}
	if err != nil {
		return nil, err
	}

	return Aggregate(final)
}
