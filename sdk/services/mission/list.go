// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package mission

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"strconv"
)

// ListAllPages follows the platform pagination until the last page.
func (s *MissionService) ListAllPages(ctx context.Context, req ListRequest) ([]Mission, error) {
	if req.Project == "" {
		return nil, errors.New("project is mandatory")
	}

	pageParams := map[string]string{}
	maps.Copy(pageParams, req.Params)

	var missions []Mission
	for {
		url := s.http.BuildURL(req.Project, missionsEndpoint, "", pageParams)
		body, _, err := s.http.Do(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}

		var p page[Mission]
		if err := json.Unmarshal(body, &p); err != nil {
			return nil, fmt.Errorf("json parsing failed: %w", err)
		}
		missions = append(missions, p.Content...)

		if p.Pageable.PageNumber >= p.TotalPages-1 {
			break
		}
		pageParams["page"] = strconv.Itoa(p.Pageable.PageNumber + 1)
	}
	return missions, nil
}
