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
	"time"
)

const defaultPollInterval = 5 * time.Second

func (r RunRequest) validate() error {
	if r.Project == "" {
		return errors.New("project not specified")
	}
	if r.ID == "" {
		return errors.New("id not specified")
	}
	return nil
}

// Status reads the current run.
func (s *PipelineService) Status(ctx context.Context, req RunRequest) (*Run, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	url := s.http.BuildURL(req.Project, runsEndpoint, req.ID, nil)
	return s.runCall(ctx, http.MethodGet, url, "get run")
}

// Stop performs POST .../runs/{id}/stop
func (s *PipelineService) Stop(ctx context.Context, req RunRequest) (*Run, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	url := s.http.BuildURL(req.Project, runsEndpoint, req.ID, nil) + "/stop"
	return s.runCall(ctx, http.MethodPost, url, "stop request")
}

// Resume performs POST .../runs/{id}/resume
func (s *PipelineService) Resume(ctx context.Context, req RunRequest) (*Run, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	url := s.http.BuildURL(req.Project, runsEndpoint, req.ID, nil) + "/resume"
	return s.runCall(ctx, http.MethodPost, url, "resume request")
}

// Wait polls the run every interval until it reaches a terminal state or
// ctx is done.
func (s *PipelineService) Wait(ctx context.Context, req RunRequest, interval time.Duration) (*Run, error) {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		run, err := s.Status(ctx, req)
		if err != nil {
			return nil, err
		}
		if run.Terminal() {
			return run, nil
		}
		s.log.Debug().Str("run", req.ID).Str("state", run.Status.State).Msg("waiting")
		select {
		case <-ctx.Done():
			return run, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *PipelineService) runCall(ctx context.Context, method, url, what string) (*Run, error) {
	b, status, err := s.http.Do(ctx, method, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%s failed (status %d): %w", what, status, err)
	}
	var run Run
	if err := json.Unmarshal(b, &run); err != nil {
		return nil, fmt.Errorf("json parsing failed: %w", err)
	}
	return &run, nil
}
