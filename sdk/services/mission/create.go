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
	"os"

	"github.com/scc-digitalhub/survey-cli-sdk/sdk/services/terrain"
	"github.com/scc-digitalhub/survey-cli-sdk/sdk/utils"
	"sigs.k8s.io/yaml"
)

// Create registers a mission. The platform then generates its flight path
// asynchronously; the returned mission is usually still CREATED.
func (s *MissionService) Create(ctx context.Context, req CreateRequest) (*Mission, error) {
	if req.Project == "" {
		return nil, errors.New("project is mandatory")
	}

	var m Mission
	switch {
	case req.FilePath != "":
		data, err := os.ReadFile(req.FilePath)
		if err != nil {
			return nil, fmt.Errorf("failed to read YAML file: %w", err)
		}
		// YAML -> JSON, so the json tags apply
		if err := yaml.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("invalid mission definition: %w", err)
		}
		if req.ResetID {
			m.ID = ""
		}
		// server-managed
		m.Status = MissionStatus{}
		m.Spec.Path = ""
	case req.Parameters != nil:
		m = Mission{Name: req.Name, Spec: MissionSpec{FlightParameters: *req.Parameters}}
	default:
		return nil, errors.New("either a file or flight parameters are required")
	}

	if m.Name == "" {
		return nil, errors.New("mission name is required")
	}
	if err := m.Spec.Validate(); err != nil {
		return nil, fmt.Errorf("invalid flight parameters: %w", err)
	}
	if m.ID == "" {
		m.ID = utils.UUIDv4NoDash()
	}
	m.Kind = KindMission
	m.Project = req.Project

	m.Spec.Elevations = nil
	if m.Spec.TerrainFollow && s.terrain != nil {
		if err := s.sampleTerrain(ctx, &m.Spec); err != nil {
			return nil, err
		}
	}

	body, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal: %w", err)
	}

	url := s.http.BuildURL(req.Project, missionsEndpoint, "", nil)
	resp, _, err := s.http.Do(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, err
	}

	var created Mission
	if err := json.Unmarshal(resp, &created); err != nil {
		return nil, fmt.Errorf("json parsing failed: %w", err)
	}
	s.log.Info().Str("id", created.ID).Str("name", created.Name).Msg("mission created")
	return &created, nil
}

func (s *MissionService) sampleTerrain(ctx context.Context, spec *MissionSpec) error {
	points := make([]terrain.Point, len(spec.Area))
	for i, c := range spec.Area {
		points[i] = terrain.Point{Lat: c.Lat, Lon: c.Lon}
	}
	elevations, err := s.terrain.Elevations(ctx, points)
	if err != nil {
		return fmt.Errorf("terrain sampling failed: %w", err)
	}
	spec.Elevations = elevations
	return nil
}
