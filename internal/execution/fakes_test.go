package execution

import (
	"context"
	"errors"
	"sync"
	"time"

	"yqhp/luau-runner/internal/opencloud"
	"yqhp/luau-runner/pkg/types"
)

var errBoom = errors.New("boom")

type fakeStore struct {
	createErr  error
	uploadErr  error
	sizeDelta  int
	noURI      bool
	uploaded   []byte
	uploadURI  string
	uploadHits int
}

func (f *fakeStore) CreateBinaryInput(_ context.Context, universeID int64, size int) (*types.BinaryInput, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	in := &types.BinaryInput{
		Path:      "universes/1/luau-execution-session-task-binary-inputs/abc",
		Size:      size + f.sizeDelta,
		UploadURI: "https://upload.example/abc",
	}
	if f.noURI {
		in.UploadURI = ""
	}
	return in, nil
}

func (f *fakeStore) UploadBinary(_ context.Context, uploadURI string, data []byte) error {
	f.uploadHits++
	f.uploadURI = uploadURI
	if f.uploadErr != nil {
		return f.uploadErr
	}
	f.uploaded = append([]byte(nil), data...)
	return nil
}

type fakeCreator struct {
	place opencloud.PlaceRef
	req   *types.TaskRequest
	path  string
	err   error
}

func (f *fakeCreator) CreateTask(_ context.Context, place opencloud.PlaceRef, req *types.TaskRequest) (*types.Task, error) {
	f.place = place
	f.req = req
	if f.err != nil {
		return nil, f.err
	}
	return &types.Task{Path: f.path, State: types.StateQueued}, nil
}

// fakeGetter serves states in order; the last one repeats.
type fakeGetter struct {
	states []types.TaskState
	err    error
	calls  int
}

func (f *fakeGetter) GetTask(_ context.Context, path string) (*types.Task, error) {
	if f.err != nil {
		return nil, f.err
	}
	i := f.calls
	if i >= len(f.states) {
		i = len(f.states) - 1
	}
	f.calls++
	return &types.Task{Path: path, State: f.states[i]}, nil
}

type recordedSleep struct {
	delays []time.Duration
}

func (r *recordedSleep) sleep(_ context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return nil
}

// fakePager serves pages keyed by the token that requests them.
type fakePager struct {
	pages  map[string]*types.LogsPage
	tokens []string
	views  []types.LogView
	failOn string
}

func (f *fakePager) ListLogs(_ context.Context, _ string, view types.LogView, pageToken string) (*types.LogsPage, error) {
	f.tokens = append(f.tokens, pageToken)
	f.views = append(f.views, view)
	if f.failOn != "" && pageToken == f.failOn {
		return nil, errBoom
	}
	page, ok := f.pages[pageToken]
	if !ok {
		return &types.LogsPage{}, nil
	}
	return page, nil
}

type sinkLine struct {
	channel string
	at      time.Time
	msg     string
}

type recordingSink struct {
	mu    sync.Mutex
	lines []sinkLine
}

func (s *recordingSink) add(channel string, at time.Time, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = append(s.lines, sinkLine{channel: channel, at: at, msg: msg})
}

func (s *recordingSink) Error(at time.Time, msg string)  { s.add("error", at, msg) }
func (s *recordingSink) Warn(at time.Time, msg string)   { s.add("warn", at, msg) }
func (s *recordingSink) Info(at time.Time, msg string)   { s.add("info", at, msg) }
func (s *recordingSink) Output(at time.Time, msg string) { s.add("output", at, msg) }

// body drops the banner lines.
func (s *recordingSink) body() []sinkLine {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []sinkLine
	for _, l := range s.lines {
		if l.msg == outputBanner || l.msg == endOutputBanner {
			continue
		}
		out = append(out, l)
	}
	return out
}

func entry(typ types.MessageType, msg string) types.LogEntry {
	return types.LogEntry{Message: msg, CreateTime: "2025-01-02T03:04:05.678Z", MessageType: typ}
}

func page(next string, entries ...types.LogEntry) *types.LogsPage {
	return &types.LogsPage{
		Logs:          []types.TaskLog{{Path: "t", StructuredMessages: entries}},
		NextPageToken: next,
	}
}
