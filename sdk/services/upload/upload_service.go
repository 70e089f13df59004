// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package upload

import (
	"context"
	"errors"
	"fmt"
	"path"

	"github.com/rs/zerolog"
	"github.com/scc-digitalhub/survey-cli-sdk/sdk/config"
)

type UploadService struct {
	cfg       config.UploadConfig
	http      config.CoreHTTP
	s3        MultipartClient
	bucket    string
	transport Transport
	log       zerolog.Logger
}

// NewUploadService validates the upload settings and prepares the selected
// backend. The logger is taken from ctx (zerolog.Ctx).
func NewUploadService(ctx context.Context, conf config.Config) (*UploadService, error) {
	cfg := conf.Upload.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid upload config: %w", err)
	}

	svc := &UploadService{
		cfg:       cfg,
		transport: NewHTTPTransport(nil),
		log:       zerolog.Ctx(ctx).With().Str("component", "upload").Logger(),
	}

	switch cfg.Backend {
	case config.BackendCore:
		if conf.Core.BaseURL == "" || conf.Core.APIVersion == "" {
			return nil, errors.New("invalid core config")
		}
		svc.http = config.NewHTTPCore(nil, conf.Core)
	case config.BackendS3:
		if conf.S3.Bucket == "" {
			return nil, errors.New("s3 backend requires a bucket")
		}
		s3c, err := config.NewS3Client(ctx, conf.S3)
		if err != nil {
			return nil, fmt.Errorf("S3 init failed: %w", err)
		}
		svc.s3 = s3c
		svc.bucket = conf.S3.Bucket
	}
	return svc, nil
}

// Config returns the effective upload settings.
func (s *UploadService) Config() config.UploadConfig { return s.cfg }

// NewOrchestrator returns a single-use orchestrator for one file of project.
// prefix is only used by the s3 backend, as the key prefix under the project.
func (s *UploadService) NewOrchestrator(project, prefix string, opts ...Option) *Orchestrator {
	opts = append([]Option{WithLogger(s.log.With().Str("project", project).Logger())}, opts...)
	return NewOrchestrator(s.sessions(project, prefix), s.transport, s.cfg, opts...)
}

// UploadFile uploads a local file in one call.
func (s *UploadService) UploadFile(ctx context.Context, req FileRequest) (*Result, error) {
	if req.Path == "" {
		return nil, &Error{Op: "start", Kind: ErrInvalidInput, Err: errors.New("missing local file path")}
	}
	if req.Project == "" {
		return nil, &Error{Op: "start", Kind: ErrInvalidInput, Err: errors.New("project is mandatory")}
	}

	src, err := OpenFile(req.Path)
	if err != nil {
		return nil, &Error{Op: "start", Kind: ErrInvalidInput, Err: err}
	}
	defer src.Close()

	var opts []Option
	if req.OnProgress != nil {
		opts = append(opts, WithProgress(req.OnProgress))
	}
	o := s.NewOrchestrator(req.Project, req.Prefix, opts...)

	ct := req.ContentType
	if ct == "" {
		ct = src.ContentType()
	}
	return o.Start(ctx, src, StartRequest{
		FileName:    req.Name,
		ContentType: ct,
		Metadata:    req.Metadata,
	})
}

func (s *UploadService) sessions(project, prefix string) SessionManager {
	if s.cfg.Backend == config.BackendS3 {
		return NewS3Sessions(s.s3, s.bucket, path.Join(project, prefix))
	}
	return NewCoreSessions(s.http, project)
}

type FileRequest struct {
	Project     string
	Path        string
	Name        string // remote file name, defaults to the local base name
	Prefix      string
	ContentType string // sniffed when empty
	Metadata    map[string]string
	OnProgress  ProgressFunc
}
