// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package upload

import (
	"context"
	"io"
	"net/http"
	"time"
)

// Location is where the assembled object will live.
type Location struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
}

// Session is one in-flight multipart transfer.
type Session struct {
	ID        string
	Location  Location
	TotalSize int64
	PartSize  int64
}

// PartDescriptor is the byte range [Start, End) uploaded as part Number.
type PartDescriptor struct {
	Number int32
	Start  int64
	End    int64
}

func (d PartDescriptor) Size() int64 { return d.End - d.Start }

type PartResult struct {
	Number   int32
	ETag     string
	Attempts int
	Err      error
}

type CompletedPart struct {
	Number int32  `json:"part_number"`
	ETag   string `json:"etag"`
}

// Manifest is sorted by part number, one entry per planned part.
type Manifest []CompletedPart

// Destination is a single-use target for one part transfer.
type Destination struct {
	URL    string
	Method string
	Header http.Header
}

// Ack is the backend acknowledgement of a closed session.
type Ack struct {
	Location string
	ETag     string
}

type OpenRequest struct {
	FileName    string
	ContentType string
	Size        int64
	PartSize    int64
	Metadata    map[string]string
}

// SessionManager opens, feeds and closes multipart sessions on a storage backend.
type SessionManager interface {
	OpenSession(ctx context.Context, req OpenRequest) (*Session, error)
	PartDestination(ctx context.Context, session *Session, partNumber int32) (*Destination, error)
	CloseSession(ctx context.Context, session *Session, manifest Manifest) (*Ack, error)
	AbortSession(ctx context.Context, session *Session) error
}

// Transport moves one byte range to a destination and returns the response headers.
type Transport interface {
	Put(ctx context.Context, dest *Destination, body io.Reader, size int64) (http.Header, error)
}

// Source is the file being uploaded. Concurrent ReadAt calls on disjoint
// ranges must be safe.
type Source interface {
	io.ReaderAt
	Size() int64
	Name() string
}

// ProgressFunc receives the number of completed parts after each part.
type ProgressFunc func(completed, total int)

type StartRequest struct {
	FileName    string // defaults to Source.Name()
	ContentType string
	Metadata    map[string]string
}

type Result struct {
	Session  Session
	Manifest Manifest
	Ack      *Ack
	Parts    int
	Size     int64
	Took     time.Duration
}
