// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package mission

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
)

// Delete removes a mission by id, or every version of it by name.
// Cascade also removes the generated flight-path files.
func (s *MissionService) Delete(ctx context.Context, req DeleteRequest) error {
	if req.Project == "" {
		return errors.New("project is mandatory")
	}
	if req.ID == "" && req.Name == "" {
		return errors.New("you must specify id or name")
	}

	params := map[string]string{"cascade": strconv.FormatBool(req.Cascade)}
	if req.ID == "" {
		params["name"] = req.Name
		params["versions"] = "all"
	}

	url := s.http.BuildURL(req.Project, missionsEndpoint, req.ID, params)
	if _, status, err := s.http.Do(ctx, http.MethodDelete, url, nil); err != nil {
		return fmt.Errorf("delete failed (status %d): %w", status, err)
	}
	s.log.Info().Str("id", req.ID).Str("name", req.Name).Msg("mission deleted")
	return nil
}
