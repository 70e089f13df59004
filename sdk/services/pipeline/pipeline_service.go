// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"github.com/scc-digitalhub/survey-cli-sdk/sdk/config"
)

const (
	runsEndpoint      = "runs"
	functionsEndpoint = "functions"
	tasksEndpoint     = "tasks"
)

// PipelineService hands uploaded surveys over to the processing function
// running on the platform, and controls the resulting runs.
type PipelineService struct {
	http config.CoreHTTP
	cfg  config.PipelineConfig
	log  zerolog.Logger
}

func NewPipelineService(ctx context.Context, conf config.Config) (*PipelineService, error) {
	if conf.Core.BaseURL == "" || conf.Core.APIVersion == "" {
		return nil, errors.New("invalid core config")
	}
	return newPipelineService(ctx, config.NewHTTPCore(nil, conf.Core), conf.Pipeline), nil
}

func newPipelineService(ctx context.Context, http config.CoreHTTP, cfg config.PipelineConfig) *PipelineService {
	return &PipelineService{
		http: http,
		cfg:  cfg.WithDefaults(),
		log:  zerolog.Ctx(ctx).With().Str("component", "pipeline").Logger(),
	}
}
