// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// taskToRunKind: "python+job" o "python+job:task" -> "python+job:run"
func taskToRunKind(task string) string {
	task = strings.TrimSpace(task)
	if task == "" {
		return task
	}
	if i := strings.IndexByte(task, ':'); i >= 0 {
		return task[:i] + ":run"
	}
	return task + ":run"
}

// SurveyKey is the platform reference to an uploaded survey.
func SurveyKey(project, surveyID string) string {
	return fmt.Sprintf("survey://%s/%s", project, surveyID)
}

// Start creates a processing run for an uploaded survey. The task for the
// function is reused when it exists and created otherwise.
func (s *PipelineService) Start(ctx context.Context, req StartRequest) (*Run, error) {
	if req.Project == "" {
		return nil, errors.New("project not specified")
	}
	if req.SurveyID == "" {
		return nil, errors.New("survey not specified")
	}

	taskKind := req.TaskKind
	if taskKind == "" {
		taskKind = s.cfg.TaskKind
	}
	fnName := req.FunctionName
	if req.FunctionID == "" && fnName == "" {
		fnName = s.cfg.Function
	}

	fnKey, err := s.resolveFunction(ctx, req.Project, req.FunctionID, fnName)
	if err != nil {
		return nil, err
	}

	taskKey, err := s.getTaskKey(ctx, req.Project, fnKey, taskKind)
	if err != nil {
		return nil, err
	}
	if taskKey == "" {
		if taskKey, err = s.createTask(ctx, req.Project, fnKey, taskKind); err != nil {
			return nil, err
		}
	}

	run := Run{
		Kind:    taskToRunKind(taskKind),
		Project: req.Project,
		Spec: RunSpec{
			Task:       taskKey,
			Function:   fnKey,
			Inputs:     map[string]string{"survey": SurveyKey(req.Project, req.SurveyID)},
			Parameters: req.Parameters,
		},
	}
	data, err := json.Marshal(run)
	if err != nil {
		return nil, err
	}

	url := s.http.BuildURL(req.Project, runsEndpoint, "", nil)
	b, status, err := s.http.Do(ctx, http.MethodPost, url, data)
	if err != nil {
		return nil, fmt.Errorf("run creation failed (status %d): %w", status, err)
	}

	var created Run
	if err := json.Unmarshal(b, &created); err != nil {
		return nil, fmt.Errorf("json parsing failed: %w", err)
	}
	s.log.Info().Str("run", created.ID).Str("survey", req.SurveyID).Str("task", taskKey).Msg("processing started")
	return &created, nil
}

func (s *PipelineService) resolveFunction(ctx context.Context, project, id, name string) (string, error) {
	var fn entity
	switch {
	case id != "":
		url := s.http.BuildURL(project, functionsEndpoint, id, nil)
		b, status, err := s.http.Do(ctx, http.MethodGet, url, nil)
		if err != nil {
			return "", fmt.Errorf("get function by id failed (status %d): %w", status, err)
		}
		if err := json.Unmarshal(b, &fn); err != nil {
			return "", err
		}
	case name != "":
		url := s.http.BuildURL(project, functionsEndpoint, "", map[string]string{"name": name, "versions": "latest"})
		b, status, err := s.http.Do(ctx, http.MethodGet, url, nil)
		if err != nil {
			return "", fmt.Errorf("get function by name failed (status %d): %w", status, err)
		}
		var p struct {
			Content []entity `json:"content"`
		}
		if err := json.Unmarshal(b, &p); err != nil {
			return "", err
		}
		if len(p.Content) == 0 {
			return "", fmt.Errorf("function %q not found", name)
		}
		fn = p.Content[0]
	default:
		return "", errors.New("you must provide the name or ID of the function to run")
	}

	if fn.Kind == "" || fn.ID == "" || fn.Name == "" {
		return "", errors.New("unable to obtain function key")
	}
	return fmt.Sprintf("%s://%s/%s:%s", fn.Kind, project, fn.Name, fn.ID), nil
}

// getTaskKey returns "" when the function has no task of that kind.
func (s *PipelineService) getTaskKey(ctx context.Context, project, functionKey, taskKind string) (string, error) {
	url := s.http.BuildURL(project, tasksEndpoint, "", map[string]string{"function": functionKey})
	b, status, err := s.http.Do(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("list tasks failed (status %d): %w", status, err)
	}

	var p struct {
		Content []entity `json:"content"`
	}
	if err := json.Unmarshal(b, &p); err != nil {
		return "", err
	}
	for _, t := range p.Content {
		if t.Kind == taskKind && t.ID != "" {
			return fmt.Sprintf("%s://%s/%s", t.Kind, project, t.ID), nil
		}
	}
	return "", nil
}

func (s *PipelineService) createTask(ctx context.Context, project, functionKey, taskKind string) (string, error) {
	data, err := json.Marshal(map[string]any{
		"kind":    taskKind,
		"project": project,
		"spec":    map[string]any{"function": functionKey},
	})
	if err != nil {
		return "", err
	}

	url := s.http.BuildURL(project, tasksEndpoint, "", nil)
	b, status, err := s.http.Do(ctx, http.MethodPost, url, data)
	if err != nil {
		return "", fmt.Errorf("create task failed (status %d): %w", status, err)
	}

	var t entity
	if err := json.Unmarshal(b, &t); err != nil {
		return "", err
	}
	if t.Kind == "" || t.ID == "" {
		return "", errors.New("unable to obtain task key")
	}
	return fmt.Sprintf("%s://%s/%s", t.Kind, project, t.ID), nil
}
