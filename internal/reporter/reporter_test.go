package reporter

import (
	"bytes"
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yqhp/luau-runner/internal/execution"
	"yqhp/luau-runner/pkg/logger"
	"yqhp/luau-runner/pkg/types"
)

func completeSummary(passed, failed uint32) *execution.Summary {
	task := &types.Task{
		Path:  "universes/1/places/2/luau-execution-session-tasks/t1",
		State: types.StateComplete,
		Output: &types.TaskOutput{Results: []types.TaskResult{{
			Suites:  1,
			Total:   passed + failed,
			Passed:  passed,
			Failed:  failed,
			Success: failed == 0,
			Time:    2.5,
		}}},
	}
	summary, err := execution.Aggregate(task)
	if err != nil {
		panic(err)
	}
	return summary
}

func TestNewReport_Summary(t *testing.T) {
	r := NewReport("run-1", completeSummary(7, 3), nil, 1, 4*time.Second)

	assert.Equal(t, "run-1", r.RunID)
	assert.Equal(t, "universes/1/places/2/luau-execution-session-tasks/t1", r.TaskPath)
	assert.Equal(t, types.StateComplete, r.State)
	require.NotNil(t, r.Result)
	assert.Equal(t, uint32(10), r.Result.Total)
	assert.InDelta(t, 70.0, r.PassRate, 1e-9)
	assert.False(t, r.Success)
	assert.Equal(t, 1, r.ExitCode)
	assert.Equal(t, "4.00s", r.Duration)
	assert.Equal(t, "Results (2.50s): 1 suites, 10 tests (7 passed, 3 failed) - 70.00% passed", r.Summary)
	assert.Empty(t, r.Error)
}

func TestNewReport_Error(t *testing.T) {
	_, err := execution.Aggregate(&types.Task{
		Path:  "universes/1/places/2/luau-execution-session-tasks/t2",
		State: types.StateFailed,
		Error: &types.TaskError{Code: types.ErrorCodeScriptError, Message: "boom"},
	})
	require.Error(t, err)

	r := NewReport("run-2", nil, err, 2, time.Second)
	assert.Equal(t, "Luau execution session failed: boom", r.Error)
	assert.Equal(t, "TASK_FAILED", r.ErrorKind)
	assert.Equal(t, "universes/1/places/2/luau-execution-session-tasks/t2", r.TaskPath)
	assert.Nil(t, r.Result)
	assert.Empty(t, r.Summary)
	assert.Equal(t, 2, r.ExitCode)
}

func TestConsole_Report(t *testing.T) {
	buf := &bytes.Buffer{}
	log := logger.NewWithWriter(&logger.Config{Level: "info", Color: "never"}, buf)
	c := NewConsole(log)
	assert.Equal(t, "console", c.Name())

	require.NoError(t, c.Report(context.Background(), NewReport("r", completeSummary(10, 0), nil, 0, time.Second)))
	assert.Contains(t, buf.String(), "INFO  ] Results (2.50s): 1 suites, 10 tests (10 passed, 0 failed) - 100.00% passed")

	buf.Reset()
	require.NoError(t, c.Report(context.Background(), NewReport("r", nil, errors.New("x"), 2, time.Second)))
	assert.Empty(t, buf.String())
}

func TestConsole_ReportQuiet(t *testing.T) {
	buf := &bytes.Buffer{}
	log := logger.NewWithWriter(&logger.Config{Level: "error", Color: "never"}, buf)

	require.NoError(t, NewConsole(log).Report(context.Background(), NewReport("r", completeSummary(10, 0), nil, 0, time.Second)))
	assert.Contains(t, buf.String(), "OUTPUT] Results (2.50s): 1 suites, 10 tests (10 passed, 0 failed) - 100.00% passed")
	assert.NotContains(t, buf.String(), "INFO")
}

func TestConsole_ReportColored(t *testing.T) {
	buf := &bytes.Buffer{}
	log := logger.NewWithWriter(&logger.Config{Level: "info", Color: "always"}, buf)

	require.NoError(t, NewConsole(log).Report(context.Background(), NewReport("r", completeSummary(3, 1), nil, 1, time.Second)))
	assert.Contains(t, buf.String(), log.Yellow("75.00"))
	assert.Contains(t, buf.String(), log.Red("1"))
}

func TestJSONFile_Report(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "summary.json")
	r := NewJSONFile(path)
	assert.Equal(t, "json", r.Name())

	require.NoError(t, r.Report(context.Background(), NewReport("run-1", completeSummary(4, 0), nil, 0, time.Second)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var got Report
	require.NoError(t, sonic.Unmarshal(data, &got))
	assert.Equal(t, "run-1", got.RunID)
	assert.True(t, got.Success)
	assert.Equal(t, float64(100), got.PassRate)
	assert.Equal(t, uint32(4), got.Result.Passed)
	assert.Contains(t, string(data), "\n  \"runId\": \"run-1\"")
}

func TestJSONFile_ReportFails(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0644))

	err := NewJSONFile(filepath.Join(blocker, "summary.json")).Report(context.Background(), NewReport("r", nil, nil, 0, 0))
	assert.Error(t, err)
}

type webhookServer struct {
	URL string

	app    *fiber.App
	mu     sync.Mutex
	status []int
	bodies [][]byte
	header []string
}

// newWebhookServer answers successive POSTs with statuses, repeating the last.
func newWebhookServer(t *testing.T, statuses ...int) *webhookServer {
	t.Helper()
	s := &webhookServer{status: statuses}
	s.app = fiber.New(fiber.Config{DisableStartupMessage: true, Immutable: true})
	s.app.Post("/hook", func(c *fiber.Ctx) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.bodies = append(s.bodies, c.Body())
		s.header = append(s.header, c.Get("X-Token"))
		code := fiber.StatusOK
		if n := len(s.bodies) - 1; n < len(s.status) {
			code = s.status[n]
		} else if len(s.status) > 0 {
			code = s.status[len(s.status)-1]
		}
		return c.Status(code).SendString("ok")
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go s.app.Listener(ln)
	t.Cleanup(func() { _ = s.app.Shutdown() })
	s.URL = "http://" + ln.Addr().String() + "/hook"
	return s
}

func (s *webhookServer) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.bodies)
}

func TestWebhook_Report(t *testing.T) {
	srv := newWebhookServer(t)
	w := NewWebhook(&WebhookConfig{
		URL:     srv.URL,
		Headers: map[string]string{"X-Token": "secret"},
		Timeout: 5 * time.Second,
	})
	defer w.Close()
	assert.Equal(t, "webhook", w.Name())

	require.NoError(t, w.Report(context.Background(), NewReport("run-9", completeSummary(1, 0), nil, 0, time.Second)))
	require.Equal(t, 1, srv.calls())

	var got Report
	require.NoError(t, sonic.Unmarshal(srv.bodies[0], &got))
	assert.Equal(t, "run-9", got.RunID)
	assert.Equal(t, "secret", srv.header[0])
}

func TestWebhook_Retries(t *testing.T) {
	srv := newWebhookServer(t, fiber.StatusBadGateway, fiber.StatusOK)
	w := NewWebhook(&WebhookConfig{URL: srv.URL, RetryAttempts: 2, RetryDelay: time.Millisecond})
	defer w.Close()

	require.NoError(t, w.Report(context.Background(), NewReport("r", nil, nil, 0, 0)))
	assert.Equal(t, 2, srv.calls())
}

func TestWebhook_GivesUp(t *testing.T) {
	srv := newWebhookServer(t, fiber.StatusInternalServerError)
	w := NewWebhook(&WebhookConfig{URL: srv.URL, RetryAttempts: 1, RetryDelay: time.Millisecond})
	defer w.Close()

	err := w.Report(context.Background(), NewReport("r", nil, nil, 0, 0))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 2 attempts")
	assert.Contains(t, err.Error(), "status 500")
	assert.Equal(t, 2, srv.calls())
}

func TestWebhook_Errors(t *testing.T) {
	w := NewWebhook(&WebhookConfig{})
	defer w.Close()
	assert.Error(t, w.Report(context.Background(), NewReport("r", nil, nil, 0, 0)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w2 := NewWebhook(&WebhookConfig{URL: "http://127.0.0.1:1/hook"})
	defer w2.Close()
	assert.ErrorIs(t, w2.Report(ctx, NewReport("r", nil, nil, 0, 0)), context.Canceled)
}

type stubReporter struct {
	name  string
	err   error
	calls int
}

func (s *stubReporter) Name() string { return s.name }
func (s *stubReporter) Report(context.Context, *Report) error {
	s.calls++
	return s.err
}

func TestManager_Report(t *testing.T) {
	first := &stubReporter{name: "first", err: errors.New("down")}
	second := &stubReporter{name: "second"}
	m := NewManager(first)
	m.Add(second)
	assert.Equal(t, 2, m.Len())

	err := m.Report(context.Background(), NewReport("r", nil, nil, 0, 0))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "first: down")
	assert.Equal(t, 1, second.calls)

	assert.NoError(t, NewManager().Report(context.Background(), NewReport("r", nil, nil, 0, 0)))
}

type closingReporter struct {
	stubReporter
	closed int
}

func (c *closingReporter) Close() { c.closed++ }

func TestManager_Close(t *testing.T) {
	closing := &closingReporter{stubReporter: stubReporter{name: "closing"}}
	m := NewManager(&stubReporter{name: "plain"}, closing)
	m.Close()
	assert.Equal(t, 1, closing.closed)

	w := NewWebhook(&WebhookConfig{URL: "http://127.0.0.1:1/hook"})
	assert.NotPanics(t, func() { NewManager(w).Close() })
}
