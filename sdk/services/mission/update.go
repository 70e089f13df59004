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

// Update replaces a mission definition. Changing the flight parameters
// makes the platform regenerate the flight path.
func (s *MissionService) Update(ctx context.Context, m *Mission) (*Mission, error) {
	if m == nil || m.ID == "" {
		return nil, errors.New("id is required")
	}
	if m.Project == "" {
		return nil, errors.New("project is mandatory")
	}
	if err := m.Spec.Validate(); err != nil {
		return nil, fmt.Errorf("invalid flight parameters: %w", err)
	}

	body, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal: %w", err)
	}

	url := s.http.BuildURL(m.Project, missionsEndpoint, m.ID, nil)
	resp, status, err := s.http.Do(ctx, http.MethodPut, url, body)
	if err != nil {
		return nil, fmt.Errorf("update failed (status %d): %w", status, err)
	}

	var updated Mission
	if err := json.Unmarshal(resp, &updated); err != nil {
		return nil, fmt.Errorf("json parsing failed: %w", err)
	}
	return &updated, nil
}
