// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/scc-digitalhub/survey-cli-sdk/sdk/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePlatform struct {
	srv *httptest.Server

	mu       sync.Mutex
	tasks    []map[string]any
	runs     []Run
	states   []string // served by GET runs/{id}, last one sticks
	polls    int
	taskPost int
}

func newFakePlatform(t *testing.T) *fakePlatform {
	fp := &fakePlatform{}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/-/p1/functions", func(w http.ResponseWriter, r *http.Request) {
		content := []map[string]any{}
		if r.URL.Query().Get("name") == "photogrammetry" {
			content = append(content, map[string]any{"id": "fn1", "name": "photogrammetry", "kind": "python"})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"content": content})
	})
	mux.HandleFunc("GET /api/v1/-/p1/functions/{id}", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"id": r.PathValue("id"), "name": "ortho", "kind": "python"})
	})
	mux.HandleFunc("GET /api/v1/-/p1/tasks", func(w http.ResponseWriter, r *http.Request) {
		fp.mu.Lock()
		defer fp.mu.Unlock()
		var content []map[string]any
		for _, task := range fp.tasks {
			if task["function"] == r.URL.Query().Get("function") {
				content = append(content, task)
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"content": content})
	})
	mux.HandleFunc("POST /api/v1/-/p1/tasks", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Kind string `json:"kind"`
			Spec struct {
				Function string `json:"function"`
			} `json:"spec"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		fp.mu.Lock()
		fp.taskPost++
		task := map[string]any{"id": "t-new", "kind": body.Kind, "function": body.Spec.Function}
		fp.tasks = append(fp.tasks, task)
		fp.mu.Unlock()
		_ = json.NewEncoder(w).Encode(task)
	})
	mux.HandleFunc("POST /api/v1/-/p1/runs", func(w http.ResponseWriter, r *http.Request) {
		var run Run
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&run))
		run.ID = "run-1"
		run.Status.State = StateCreated
		fp.mu.Lock()
		fp.runs = append(fp.runs, run)
		fp.mu.Unlock()
		_ = json.NewEncoder(w).Encode(run)
	})
	mux.HandleFunc("GET /api/v1/-/p1/runs/{id}", func(w http.ResponseWriter, r *http.Request) {
		fp.mu.Lock()
		defer fp.mu.Unlock()
		state := StateRunning
		if len(fp.states) > 0 {
			state = fp.states[min(fp.polls, len(fp.states)-1)]
		}
		fp.polls++
		_ = json.NewEncoder(w).Encode(Run{ID: r.PathValue("id"), Kind: "python+job:run", Spec: RunSpec{Task: "python+job://p1/t1"}, Status: RunStatus{State: state}})
	})
	mux.HandleFunc("POST /api/v1/-/p1/runs/{id}/{action}", func(w http.ResponseWriter, r *http.Request) {
		state := map[string]string{"stop": StateStopped, "resume": StateRunning}[r.PathValue("action")]
		_ = json.NewEncoder(w).Encode(Run{ID: r.PathValue("id"), Status: RunStatus{State: state}})
	})
	mux.HandleFunc("GET /api/v1/-/p1/runs/{id}/logs", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]LogEntry{
			{ID: "l1", Content: "sidecar", Status: LogStatus{Container: "c-sidecar-" + r.PathValue("id")}},
			{ID: "l2", Content: "main", Status: LogStatus{
				Container: "c-pythonjob-" + r.PathValue("id"),
				Metrics:   []map[string]any{{"name": "gsd_cm", "value": 2.1}},
			}},
		})
	})
	fp.srv = httptest.NewServer(mux)
	t.Cleanup(fp.srv.Close)
	return fp
}

func (fp *fakePlatform) service(cfg config.PipelineConfig) *PipelineService {
	core := config.NewHTTPCore(fp.srv.Client(), config.CoreConfig{BaseURL: fp.srv.URL, APIVersion: "v1"})
	return newPipelineService(context.Background(), core, cfg)
}

func TestStartCreatesTaskOnce(t *testing.T) {
	fp := newFakePlatform(t)
	svc := fp.service(config.PipelineConfig{})

	run, err := svc.Start(context.Background(), StartRequest{Project: "p1", SurveyID: "s-9", Parameters: map[string]any{"quality": "high"}})
	require.NoError(t, err)
	assert.Equal(t, "run-1", run.ID)
	assert.Equal(t, "python+job:run", run.Kind)
	assert.Equal(t, "python://p1/photogrammetry:fn1", run.Spec.Function)
	assert.Equal(t, "python+job://p1/t-new", run.Spec.Task)
	assert.False(t, run.Spec.LocalExecution)
	assert.Equal(t, map[string]string{"survey": "survey://p1/s-9"}, run.Spec.Inputs)
	assert.Equal(t, "high", run.Spec.Parameters["quality"])

	_, err = svc.Start(context.Background(), StartRequest{Project: "p1", SurveyID: "s-10"})
	require.NoError(t, err)
	fp.mu.Lock()
	defer fp.mu.Unlock()
	assert.Equal(t, 1, fp.taskPost, "existing task reused")
}

func TestStartWithFunctionOverride(t *testing.T) {
	fp := newFakePlatform(t)
	svc := fp.service(config.PipelineConfig{})

	run, err := svc.Start(context.Background(), StartRequest{Project: "p1", SurveyID: "s-9", FunctionID: "fn7", TaskKind: "python+job:task"})
	require.NoError(t, err)
	assert.Equal(t, "python://p1/ortho:fn7", run.Spec.Function)
	assert.Equal(t, "python+job:run", run.Kind)
}

func TestStartErrors(t *testing.T) {
	fp := newFakePlatform(t)

	_, err := fp.service(config.PipelineConfig{Function: "missing"}).Start(context.Background(), StartRequest{Project: "p1", SurveyID: "s"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")

	svc := fp.service(config.PipelineConfig{})
	_, err = svc.Start(context.Background(), StartRequest{Project: "p1"})
	require.Error(t, err)
	_, err = svc.Start(context.Background(), StartRequest{SurveyID: "s"})
	require.Error(t, err)
}

func TestStopResumeStatus(t *testing.T) {
	fp := newFakePlatform(t)
	svc := fp.service(config.PipelineConfig{})
	ctx := context.Background()
	req := RunRequest{Project: "p1", ID: "run-1"}

	run, err := svc.Stop(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, StateStopped, run.Status.State)
	assert.True(t, run.Terminal())

	run, err = svc.Resume(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, StateRunning, run.Status.State)

	run, err = svc.Status(ctx, req)
	require.NoError(t, err)
	assert.False(t, run.Terminal())

	_, err = svc.Stop(ctx, RunRequest{Project: "p1"})
	require.Error(t, err)
}

func TestWait(t *testing.T) {
	fp := newFakePlatform(t)
	fp.states = []string{StateCreated, StateRunning, StateCompleted}
	svc := fp.service(config.PipelineConfig{})

	run, err := svc.Wait(context.Background(), RunRequest{Project: "p1", ID: "run-1"}, time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, run.Status.State)
	fp.mu.Lock()
	assert.Equal(t, 3, fp.polls)
	fp.states = []string{StateRunning}
	fp.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = svc.Wait(ctx, RunRequest{Project: "p1", ID: "run-1"}, 5*time.Millisecond)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLogsAndMetrics(t *testing.T) {
	fp := newFakePlatform(t)
	svc := fp.service(config.PipelineConfig{})
	ctx := context.Background()

	entry, err := svc.Logs(ctx, LogsRequest{RunRequest: RunRequest{Project: "p1", ID: "run-1"}})
	require.NoError(t, err)
	assert.Equal(t, "main", entry.Content)

	entry, err = svc.Logs(ctx, LogsRequest{RunRequest: RunRequest{Project: "p1", ID: "run-1"}, Container: "c-sidecar-run-1"})
	require.NoError(t, err)
	assert.Equal(t, "sidecar", entry.Content)

	_, err = svc.Logs(ctx, LogsRequest{RunRequest: RunRequest{Project: "p1", ID: "run-1"}, Container: "nope"})
	require.ErrorIs(t, err, ErrContainerNotFound)

	metrics, err := svc.Metrics(ctx, LogsRequest{RunRequest: RunRequest{Project: "p1", ID: "run-1"}})
	require.NoError(t, err)
	require.Len(t, metrics, 1)
	assert.Equal(t, "gsd_cm", metrics[0]["name"])
}

func TestTaskToRunKind(t *testing.T) {
	assert.Equal(t, "python+job:run", taskToRunKind("python+job"))
	assert.Equal(t, "python+job:run", taskToRunKind(" python+job:task "))
	assert.Equal(t, "", taskToRunKind(""))
}
