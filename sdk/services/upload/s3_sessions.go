// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package upload

import (
	"context"
	"errors"
	"path"
	"strings"
	"time"

	"github.com/scc-digitalhub/survey-cli-sdk/sdk/config"
)

// DefaultPresignExpiry bounds the life of a presigned part URL.
const DefaultPresignExpiry = 15 * time.Minute

// MultipartClient is the part of config.S3Client used for sessions.
type MultipartClient interface {
	CreateMultipartUpload(ctx context.Context, bucket, key, contentType string, metadata map[string]string) (string, error)
	PresignUploadPart(ctx context.Context, bucket, key, uploadID string, partNumber int32, expires time.Duration) (*config.PresignedPart, error)
	CompleteMultipartUpload(ctx context.Context, bucket, key, uploadID string, parts []config.CompletedPart) (string, error)
	AbortMultipartUpload(ctx context.Context, bucket, key, uploadID string) error
}

var _ MultipartClient = (*config.S3Client)(nil)

// S3Sessions talks to the bucket directly and uploads parts through
// presigned URLs, so the same transport serves both backends.
type S3Sessions struct {
	client  MultipartClient
	bucket  string
	prefix  string
	expires time.Duration
}

// NewS3Sessions stores objects under s3://bucket/prefix/<file name>.
func NewS3Sessions(client MultipartClient, bucket, prefix string) *S3Sessions {
	return &S3Sessions{
		client:  client,
		bucket:  bucket,
		prefix:  strings.Trim(prefix, "/"),
		expires: DefaultPresignExpiry,
	}
}

func (s *S3Sessions) OpenSession(ctx context.Context, req OpenRequest) (*Session, error) {
	if s.bucket == "" {
		return nil, errors.New("no bucket configured")
	}
	key := path.Join(s.prefix, req.FileName)
	id, err := s.client.CreateMultipartUpload(ctx, s.bucket, key, req.ContentType, req.Metadata)
	if err != nil {
		return nil, err
	}
	return &Session{
		ID:        id,
		Location:  Location{Bucket: s.bucket, Key: key},
		TotalSize: req.Size,
		PartSize:  req.PartSize,
	}, nil
}

func (s *S3Sessions) PartDestination(ctx context.Context, session *Session, partNumber int32) (*Destination, error) {
	p, err := s.client.PresignUploadPart(ctx, session.Location.Bucket, session.Location.Key, session.ID, partNumber, s.expires)
	if err != nil {
		return nil, err
	}
	return &Destination{URL: p.URL, Method: p.Method, Header: p.Header}, nil
}

func (s *S3Sessions) CloseSession(ctx context.Context, session *Session, manifest Manifest) (*Ack, error) {
	parts := make([]config.CompletedPart, 0, len(manifest))
	for _, p := range manifest {
		parts = append(parts, config.CompletedPart{PartNumber: p.Number, ETag: p.ETag})
	}
	etag, err := s.client.CompleteMultipartUpload(ctx, session.Location.Bucket, session.Location.Key, session.ID, parts)
	if err != nil {
		return nil, err
	}
	return &Ack{
		Location: "s3://" + session.Location.Bucket + "/" + session.Location.Key,
		ETag:     etag,
	}, nil
}

func (s *S3Sessions) AbortSession(ctx context.Context, session *Session) error {
	return s.client.AbortMultipartUpload(ctx, session.Location.Bucket, session.Location.Key, session.ID)
}
