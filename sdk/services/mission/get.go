// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package mission

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

var ErrNotFound = errors.New("mission not found")

// Get fetches a mission by id, or the latest version by name.
func (s *MissionService) Get(ctx context.Context, req GetRequest) (*Mission, error) {
	if req.Project == "" {
		return nil, errors.New("project is mandatory")
	}
	params := map[string]string{}
	if req.ID == "" {
		if req.Name == "" {
			return nil, errors.New("you must specify id or name")
		}
		params["name"] = req.Name
		params["versions"] = "latest"
	}

	url := s.http.BuildURL(req.Project, missionsEndpoint, req.ID, params)
	body, status, err := s.http.Do(ctx, http.MethodGet, url, nil)
	if err != nil && status == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s (%w)", ErrNotFound, req.ID, err)
	}
	if err != nil {
		return nil, err
	}

	// by name the platform answers with a page
	if req.ID == "" {
		var p page[Mission]
		if err := json.Unmarshal(body, &p); err != nil {
			return nil, fmt.Errorf("json parsing failed: %w", err)
		}
		if len(p.Content) == 0 {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, req.Name)
		}
		return &p.Content[0], nil
	}

	var m Mission
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, fmt.Errorf("json parsing failed: %w", err)
	}
	return &m, nil
}
