package execution

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yqhp/luau-runner/internal/opencloud"
	"yqhp/luau-runner/internal/opencloud/opencloudtest"
	"yqhp/luau-runner/pkg/types"
)

const pipelineKey = "pipeline-key"

type fakeArchiver struct {
	got []byte
	err error
}

func (a *fakeArchiver) Archive(_ context.Context, payload []byte) error {
	a.got = payload
	return a.err
}

type fakeRecorder struct {
	polls   []types.TaskState
	logs    []LogStats
	summary *Summary
	err     error
	runs    int
}

func (r *fakeRecorder) ObservePoll(state types.TaskState) { r.polls = append(r.polls, state) }
func (r *fakeRecorder) ObserveLogs(stats LogStats)        { r.logs = append(r.logs, stats) }
func (r *fakeRecorder) ObserveRun(s *Summary, err error, _ time.Duration) {
	r.runs++
	r.summary = s
	r.err = err
}

func newTestPipeline(t *testing.T, srv *opencloudtest.Server, sink LogSink, rec *fakeRecorder) *Pipeline {
	t.Helper()

	cfg := opencloud.DefaultConfig()
	cfg.BaseURL = srv.URL
	cfg.APIKey = pipelineKey
	cfg.RequestTimeout = 5 * time.Second
	client := opencloud.New(cfg)
	t.Cleanup(client.Close)

	noSleep := func(context.Context, time.Duration) error { return nil }
	return &Pipeline{
		Stager:   NewStager(client, 1),
		Spawner:  NewSpawner(client, opencloud.PlaceRef{UniverseID: 1, PlaceID: 2}),
		Poller:   NewPoller(client, defaultPollConfig(), WithSleep(noSleep), WithPollHook(rec.ObservePoll)),
		Streamer: NewLogStreamer(client, sink, defaultSuppress),
		Task:     TaskSpec{Script: "return run()", Timeout: 10 * time.Second, CaptureOutput: true},
		Recorder: rec,
	}
}

func startServer(t *testing.T) *opencloudtest.Server {
	t.Helper()
	srv, err := opencloudtest.NewServer(pipelineKey)
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Close() })
	return srv
}

func TestPipeline_Complete(t *testing.T) {
	srv := startServer(t)
	srv.States = []types.TaskState{types.StateQueued, types.StateProcessing, types.StateComplete}
	srv.TaskOutput = &types.TaskOutput{Results: []types.TaskResult{
		{Suites: 1, Total: 10, Passed: 10, Failed: 0, Success: true, Time: 2.5},
	}}
	sink := &recordingSink{}
	rec := &fakeRecorder{}
	p := newTestPipeline(t, srv, sink, rec)

	// log pages reference the task path, which only exists after spawn
	srv.LogPages = []types.LogsPage{
		opencloudtest.Page("", "abc", entry(types.MessageTypeOutput, "running 10 tests")),
		opencloudtest.Page("", "", entry(types.MessageTypeWarning, "Failed to load sound x"), entry(types.MessageTypeInfo, "done")),
	}
	archiver := &fakeArchiver{}
	p.Archiver = archiver

	summary, err := p.Run(context.Background(), []byte("rbxm-bytes"))
	require.NoError(t, err)

	assert.Equal(t, ExitSuccess, summary.ExitCode)
	assert.Contains(t, summary.String(), "100.00% passed")
	assert.Equal(t, "Results (2.50s): 1 suites, 10 tests (10 passed, 0 failed) - 100.00% passed", summary.String())
	assert.Equal(t, []byte("rbxm-bytes"), archiver.got)

	task := srv.Task()
	require.NotNil(t, task)
	assert.Equal(t, task.Path, summary.TaskPath)
	assert.Equal(t, "10s", task.Timeout)
	assert.True(t, task.EnableBinaryOutput)
	assert.Equal(t, "return run()", task.Script)

	uploaded, ok := srv.Uploaded(task.BinaryInput)
	require.True(t, ok)
	assert.Equal(t, []byte("rbxm-bytes"), uploaded)

	assert.Len(t, srv.Requests(opencloudtest.StepGetTask), 3)
	assert.Len(t, srv.Requests(opencloudtest.StepListLogs), 2)

	lines := sink.body()
	require.Len(t, lines, 2)
	assert.Equal(t, "running 10 tests", lines[0].msg)
	assert.Equal(t, "done", lines[1].msg)

	assert.Equal(t, srv.States, rec.polls)
	require.Len(t, rec.logs, 1)
	assert.Equal(t, 1, rec.logs[0].Suppressed)
	assert.Equal(t, 1, rec.runs)
	assert.Same(t, summary, rec.summary)
}

func TestPipeline_TaskFailed(t *testing.T) {
	srv := startServer(t)
	srv.States = []types.TaskState{types.StateProcessing, types.StateFailed}
	srv.TaskError = &types.TaskError{Code: types.ErrorCodeScriptError, Message: "boom"}
	sink := &recordingSink{}
	rec := &fakeRecorder{}

	summary, err := newTestPipeline(t, srv, sink, rec).Run(context.Background(), []byte("x"))
	require.Error(t, err)
	assert.Nil(t, summary)
	assert.Contains(t, err.Error(), "boom")
	assert.Equal(t, ErrKindTaskFailed, KindOf(err))

	// logs are still streamed before the failure is reported
	assert.Len(t, srv.Requests(opencloudtest.StepListLogs), 1)
	assert.Equal(t, err, rec.err)
}

func TestPipeline_StageFailureStopsRun(t *testing.T) {
	srv := startServer(t)
	srv.Failures[opencloudtest.StepUpload] = opencloudtest.Failure{Status: 403, Body: "denied"}

	_, err := newTestPipeline(t, srv, &recordingSink{}, &fakeRecorder{}).Run(context.Background(), []byte("x"))
	require.Error(t, err)
	assert.Equal(t, ErrKindStage, KindOf(err))
	assert.Equal(t, 403, opencloud.StatusCode(err))

	assert.Empty(t, srv.Requests(opencloudtest.StepCreateTask))
	assert.Empty(t, srv.Requests(opencloudtest.StepGetTask))
}

func TestPipeline_SpawnFailure(t *testing.T) {
	srv := startServer(t)
	srv.Failures[opencloudtest.StepCreateTask] = opencloudtest.Failure{Status: 400, Body: `{"message":"bad script"}`}

	_, err := newTestPipeline(t, srv, &recordingSink{}, &fakeRecorder{}).Run(context.Background(), []byte("x"))
	require.Error(t, err)
	assert.Equal(t, ErrKindSpawn, KindOf(err))
	assert.Contains(t, err.Error(), "bad script")
	assert.Len(t, srv.Requests(opencloudtest.StepCreateTask), 1)
	assert.Empty(t, srv.Requests(opencloudtest.StepGetTask))
}

func TestPipeline_LogFailure(t *testing.T) {
	srv := startServer(t)
	srv.Failures[opencloudtest.StepListLogs] = opencloudtest.Failure{Status: 500, Body: ""}

	_, err := newTestPipeline(t, srv, &recordingSink{}, &fakeRecorder{}).Run(context.Background(), []byte("x"))
	require.Error(t, err)
	assert.Equal(t, ErrKindLogs, KindOf(err))
}

func TestPipeline_ArchiveFailureIsNotFatal(t *testing.T) {
	srv := startServer(t)
	srv.TaskOutput = &types.TaskOutput{Results: []types.TaskResult{{Total: 1, Passed: 0, Failed: 1}}}
	p := newTestPipeline(t, srv, &recordingSink{}, &fakeRecorder{})
	p.Archiver = &fakeArchiver{err: errBoom}

	summary, err := p.Run(context.Background(), []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, ExitTestsFailed, summary.ExitCode)
}
