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

var ErrContainerNotFound = errors.New("container not found")

// Logs returns the log entry of the requested container, by default the
// main one (c-<task kind without '+'>-<run id>).
func (s *PipelineService) Logs(ctx context.Context, req LogsRequest) (*LogEntry, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	url := s.http.BuildURL(req.Project, runsEndpoint, req.ID, nil) + "/logs"
	body, status, err := s.http.Do(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("logs request failed (status %d): %w", status, err)
	}

	var logs []LogEntry
	if err := json.Unmarshal(body, &logs); err != nil {
		return nil, fmt.Errorf("json parsing failed: %w", err)
	}

	container := req.Container
	if container == "" {
		run, err := s.Status(ctx, req.RunRequest)
		if err != nil {
			return nil, err
		}
		if container, err = mainContainer(run.Spec.Task, req.ID); err != nil {
			return nil, err
		}
	}

	for i := range logs {
		if logs[i].Status.Container == container {
			return &logs[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrContainerNotFound, container)
}

// Metrics returns the metrics reported by the run container, nil when none.
func (s *PipelineService) Metrics(ctx context.Context, req LogsRequest) ([]map[string]any, error) {
	entry, err := s.Logs(ctx, req)
	if err != nil {
		return nil, err
	}
	return entry.Status.Metrics, nil
}

func mainContainer(task, runID string) (string, error) {
	idx := strings.Index(task, ":")
	if idx == -1 {
		return "", fmt.Errorf("invalid task format %q", task)
	}
	return fmt.Sprintf("c-%s-%s", strings.ReplaceAll(task[:idx], "+", ""), runID), nil
}
