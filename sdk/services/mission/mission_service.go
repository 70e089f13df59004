// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package mission

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/scc-digitalhub/survey-cli-sdk/sdk/config"
	"github.com/scc-digitalhub/survey-cli-sdk/sdk/services/terrain"
	"github.com/scc-digitalhub/survey-cli-sdk/sdk/utils"
)

const missionsEndpoint = "missions"

// MissionService manages flight missions on the platform. Flight paths are
// generated remotely once a mission is created and fetched with
// DownloadFlightPaths.
type MissionService struct {
	http    config.CoreHTTP
	s3      utils.ObjectStore
	terrain elevationSource
	out     io.Writer // progress line
	log     zerolog.Logger
}

type elevationSource interface {
	Elevations(ctx context.Context, points []terrain.Point) ([]float64, error)
}

func NewMissionService(ctx context.Context, conf config.Config) (*MissionService, error) {
	if conf.Core.BaseURL == "" || conf.Core.APIVersion == "" {
		return nil, errors.New("invalid core config")
	}

	s3c, err := config.NewS3Client(ctx, conf.S3)
	if err != nil {
		return nil, fmt.Errorf("S3 init failed: %w", err)
	}

	httpc := config.NewHTTPCore(nil, conf.Core)
	return &MissionService{
		http:    httpc,
		s3:      s3c,
		terrain: terrain.NewCache(terrain.NewCoreFetcher(httpc)),
		out:     os.Stderr,
		log:     zerolog.Ctx(ctx).With().Str("component", "mission").Logger(),
	}, nil
}
