// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/scc-digitalhub/survey-cli-sdk/sdk/config"
	"github.com/scc-digitalhub/survey-cli-sdk/sdk/services/pipeline"
	"github.com/scc-digitalhub/survey-cli-sdk/sdk/services/upload"
)

const surveysEndpoint = "surveys"

// archiveUploader is the part of *upload.UploadService used here.
type archiveUploader interface {
	Config() config.UploadConfig
	NewOrchestrator(project, prefix string, opts ...upload.Option) *upload.Orchestrator
}

type runStarter interface {
	Start(ctx context.Context, req pipeline.StartRequest) (*pipeline.Run, error)
}

// TransferService registers survey archives on the platform and moves
// their bytes through the multipart upload pipeline.
type TransferService struct {
	http     config.CoreHTTP
	uploads  archiveUploader
	pipeline runStarter
	out      io.Writer
	log      zerolog.Logger
}

func NewTransferService(ctx context.Context, conf config.Config) (*TransferService, error) {
	if conf.Core.BaseURL == "" || conf.Core.APIVersion == "" {
		return nil, errors.New("invalid core config")
	}

	uploads, err := upload.NewUploadService(ctx, conf)
	if err != nil {
		return nil, err
	}
	runs, err := pipeline.NewPipelineService(ctx, conf)
	if err != nil {
		return nil, fmt.Errorf("pipeline init failed: %w", err)
	}

	return newTransferService(ctx, config.NewHTTPCore(nil, conf.Core), uploads, runs), nil
}

func newTransferService(ctx context.Context, http config.CoreHTTP, uploads archiveUploader, runs runStarter) *TransferService {
	return &TransferService{
		http:     http,
		uploads:  uploads,
		pipeline: runs,
		out:      os.Stderr,
		log:      zerolog.Ctx(ctx).With().Str("component", "transfer").Logger(),
	}
}

// SetOutput redirects the progress line, os.Stderr by default.
func (s *TransferService) SetOutput(w io.Writer) {
	if w == nil {
		w = io.Discard
	}
	s.out = w
}
