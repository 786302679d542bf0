// Package opencloudtest provides an in-process fake of the Open Cloud Luau
// execution endpoints for tests.
package opencloudtest

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"yqhp/luau-runner/pkg/types"
)

// Step names a fake endpoint, for failure injection and request counting.
type Step string

const (
	StepCreateBinaryInput Step = "create_binary_input"
	StepUpload            Step = "upload"
	StepCreateTask        Step = "create_task"
	StepGetTask           Step = "get_task"
	StepListLogs          Step = "list_logs"
)

// Failure is a canned error response.
type Failure struct {
	Status int
	Body   string
}

// Request is a recorded incoming request.
type Request struct {
	Step      Step
	Method    string
	Path      string
	APIKey    string
	RequestID string
	PageToken string
	Body      []byte
}

// Server is a fake Open Cloud service listening on a loopback port.
type Server struct {
	URL    string
	APIKey string

	// States is the sequence of states returned by successive polls. The
	// last entry repeats. Defaults to COMPLETE.
	States []types.TaskState
	// TaskError and TaskOutput are attached once a terminal state is served.
	TaskError  *types.TaskError
	TaskOutput *types.TaskOutput
	// LogPages are served in order; page i is requested with the token of
	// page i-1.
	LogPages []types.LogsPage
	// Failures makes a step answer with an error.
	Failures map[Step]Failure
	// SizeOverride, when non-nil, is echoed instead of the requested size.
	SizeOverride *int

	app      *fiber.App
	mu       sync.Mutex
	requests []Request
	uploads  map[string][]byte
	task     *types.Task
	polls    int
}

// NewServer starts a fake service that accepts apiKey.
func NewServer(apiKey string) (*Server, error) {
	s := &Server{
		APIKey:   apiKey,
		Failures: make(map[Step]Failure),
		uploads:  make(map[string][]byte),
	}

	s.app = fiber.New(fiber.Config{
		DisableStartupMessage: true,
		Immutable:             true,
		JSONEncoder:           sonic.Marshal,
		JSONDecoder:           sonic.Unmarshal,
	})
	s.app.Post("/cloud/v2/universes/:universe/luau-execution-session-task-binary-inputs", s.handleCreateBinaryInput)
	s.app.Put("/upload/:id", s.handleUpload)
	s.app.Post("/cloud/v2/universes/:universe/places/:place/luau-execution-session-tasks", s.handleCreateTask)
	s.app.Post("/cloud/v2/universes/:universe/places/:place/versions/:version/luau-execution-session-tasks", s.handleCreateTask)
	s.app.Get("/cloud/v2/*", s.handleGet)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("failed to listen: %w", err)
	}
	s.URL = "http://" + ln.Addr().String()

	go func() {
		_ = s.app.Listener(ln)
	}()
	return s, nil
}

// Close shuts the server down.
func (s *Server) Close() error {
	return s.app.Shutdown()
}

// Requests returns the recorded requests, optionally filtered by step.
func (s *Server) Requests(step ...Step) []Request {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Request
	for _, r := range s.requests {
		if len(step) == 0 || r.Step == step[0] {
			out = append(out, r)
		}
	}
	return out
}

// Uploaded returns the bytes written to the upload slot at path.
func (s *Server) Uploaded(path string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.uploads[path]
	return data, ok
}

// Task returns the task created by the last spawn, if any.
func (s *Server) Task() *types.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.task == nil {
		return nil
	}
	t := *s.task
	return &t
}

func (s *Server) record(c *fiber.Ctx, step Step) {
	body := append([]byte(nil), c.Body()...)
	s.requests = append(s.requests, Request{
		Step:      step,
		Method:    c.Method(),
		Path:      c.Path(),
		APIKey:    c.Get("x-api-key"),
		RequestID: c.Get("x-request-id"),
		PageToken: c.Query("nextPageToken"),
		Body:      body,
	})
}

// guard records the request and reports whether the handler should go on.
func (s *Server) guard(c *fiber.Ctx, step Step, authenticated bool) (bool, error) {
	s.record(c, step)

	if f, ok := s.Failures[step]; ok {
		return false, c.Status(f.Status).SendString(f.Body)
	}
	if authenticated && c.Get("x-api-key") != s.APIKey {
		return false, c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "Invalid API Key"})
	}
	return true, nil
}

func (s *Server) handleCreateBinaryInput(c *fiber.Ctx) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ok, err := s.guard(c, StepCreateBinaryInput, true); !ok {
		return err
	}

	var req types.BinaryInputRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}
	size := req.Size
	if s.SizeOverride != nil {
		size = *s.SizeOverride
	}

	id := uuid.NewString()
	path := fmt.Sprintf("universes/%s/luau-execution-session-task-binary-inputs/%s", c.Params("universe"), id)
	s.uploads[path] = nil
	return c.JSON(types.BinaryInput{
		Path:      path,
		Size:      size,
		UploadURI: s.URL + "/upload/" + id,
	})
}

func (s *Server) handleUpload(c *fiber.Ctx) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ok, err := s.guard(c, StepUpload, false); !ok {
		return err
	}

	id := c.Params("id")
	for path := range s.uploads {
		if strings.HasSuffix(path, "/"+id) {
			s.uploads[path] = append([]byte{}, c.Body()...)
			return c.SendStatus(fiber.StatusOK)
		}
	}
	return c.Status(fiber.StatusNotFound).SendString("no such upload slot")
}

func (s *Server) handleCreateTask(c *fiber.Ctx) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ok, err := s.guard(c, StepCreateTask, true); !ok {
		return err
	}

	var req types.TaskRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}

	collection := strings.TrimPrefix(c.Path(), "/cloud/v2/")
	s.task = &types.Task{
		Path:               collection + "/" + uuid.NewString(),
		User:               "1",
		State:              types.StateQueued,
		Script:             req.Script,
		Timeout:            req.Timeout,
		BinaryInput:        req.BinaryInput,
		EnableBinaryOutput: req.EnableBinaryOutput,
	}
	s.polls = 0
	return c.JSON(s.task)
}

func (s *Server) handleGet(c *fiber.Ctx) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := c.Params("*")
	if strings.HasSuffix(path, "/logs") {
		return s.handleListLogs(c, strings.TrimSuffix(path, "/logs"))
	}
	return s.handleGetTask(c, path)
}

func (s *Server) handleGetTask(c *fiber.Ctx, path string) error {
	if ok, err := s.guard(c, StepGetTask, true); !ok {
		return err
	}
	if s.task == nil || s.task.Path != path {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": fiber.Map{"message": "task not found"}})
	}

	state := types.StateComplete
	if len(s.States) > 0 {
		i := s.polls
		if i >= len(s.States) {
			i = len(s.States) - 1
		}
		state = s.States[i]
	}
	s.polls++

	snapshot := *s.task
	snapshot.State = state
	if state.IsTerminal() {
		snapshot.Error = s.TaskError
		snapshot.Output = s.TaskOutput
	}
	return c.JSON(snapshot)
}

func (s *Server) handleListLogs(c *fiber.Ctx, path string) error {
	if ok, err := s.guard(c, StepListLogs, true); !ok {
		return err
	}
	if s.task == nil || s.task.Path != path {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "task not found"})
	}
	if c.Query("view") != string(types.LogViewStructured) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "unsupported view"})
	}
	if len(s.LogPages) == 0 {
		return c.JSON(types.LogsPage{})
	}

	token := c.Query("nextPageToken")
	if token == "" {
		return c.JSON(s.LogPages[0])
	}
	for i := 0; i < len(s.LogPages)-1; i++ {
		if s.LogPages[i].NextPageToken == token {
			return c.JSON(s.LogPages[i+1])
		}
	}
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "invalid page token " + strconv.Quote(token)})
}

// Page builds a log page holding entries under path.
func Page(path, next string, entries ...types.LogEntry) types.LogsPage {
	return types.LogsPage{
		Logs: []types.TaskLog{{
			Path:               path,
			StructuredMessages: entries,
		}},
		NextPageToken: next,
	}
}
