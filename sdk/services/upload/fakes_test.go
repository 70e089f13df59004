// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package upload

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

type fakeSessions struct {
	mu sync.Mutex

	openFn  func(ctx context.Context, req OpenRequest) (*Session, error)
	destFn  func(ctx context.Context, s *Session, n int32) (*Destination, error)
	closeFn func(ctx context.Context, s *Session, m Manifest) (*Ack, error)
	abortFn func(ctx context.Context, s *Session) error

	opens, dests, closes, aborts int
	openedWith                   OpenRequest
	closedWith                   Manifest
}

func (f *fakeSessions) OpenSession(ctx context.Context, req OpenRequest) (*Session, error) {
	f.mu.Lock()
	f.opens++
	f.openedWith = req
	f.mu.Unlock()
	if f.openFn != nil {
		return f.openFn(ctx, req)
	}
	return &Session{
		ID:        "sess-1",
		Location:  Location{Bucket: "surveys", Key: "p1/" + req.FileName},
		TotalSize: req.Size,
		PartSize:  req.PartSize,
	}, nil
}

func (f *fakeSessions) PartDestination(ctx context.Context, s *Session, n int32) (*Destination, error) {
	f.mu.Lock()
	f.dests++
	f.mu.Unlock()
	if f.destFn != nil {
		return f.destFn(ctx, s, n)
	}
	return &Destination{URL: "mem://" + s.ID + "/" + strconv.Itoa(int(n)), Method: http.MethodPut}, nil
}

func (f *fakeSessions) CloseSession(ctx context.Context, s *Session, m Manifest) (*Ack, error) {
	f.mu.Lock()
	f.closes++
	f.closedWith = m
	f.mu.Unlock()
	if f.closeFn != nil {
		return f.closeFn(ctx, s, m)
	}
	return &Ack{Location: "s3://" + s.Location.Bucket + "/" + s.Location.Key, ETag: `"final"`}, nil
}

func (f *fakeSessions) AbortSession(ctx context.Context, s *Session) error {
	f.mu.Lock()
	f.aborts++
	f.mu.Unlock()
	if f.abortFn != nil {
		return f.abortFn(ctx, s)
	}
	return nil
}

func (f *fakeSessions) counts() (opens, dests, closes, aborts int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opens, f.dests, f.closes, f.aborts
}

// fakeTransport records every put by part number, taken from the
// destination URL produced by fakeSessions.
type fakeTransport struct {
	mu    sync.Mutex
	putFn func(ctx context.Context, part int32, attempt int, body []byte) (http.Header, error)

	calls  map[int32]int
	bodies map[int32][]byte
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{calls: map[int32]int{}, bodies: map[int32][]byte{}}
}

func (t *fakeTransport) Put(ctx context.Context, dest *Destination, body io.Reader, size int64) (http.Header, error) {
	part := partFromURL(dest.URL)
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	if int64(len(data)) != size {
		return nil, fmt.Errorf("read %d bytes, declared %d", len(data), size)
	}

	t.mu.Lock()
	t.calls[part]++
	attempt := t.calls[part]
	t.bodies[part] = data
	t.mu.Unlock()

	if t.putFn != nil {
		return t.putFn(ctx, part, attempt, data)
	}
	return etagHeader(part), nil
}

func (t *fakeTransport) callsFor(part int32) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls[part]
}

func (t *fakeTransport) bodyFor(part int32) []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.bodies[part]
}

func etagHeader(part int32) http.Header {
	h := http.Header{}
	h.Set("ETag", fmt.Sprintf(`"etag-%d"`, part))
	return h
}

func partFromURL(u string) int32 {
	n, _ := strconv.Atoi(u[strings.LastIndex(u, "/")+1:])
	return int32(n)
}

func memSource(size int) Source {
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i % 251)
	}
	return NewReaderSource("photos.zip", bytes.NewReader(data), int64(size))
}

type runnerFunc func(ctx context.Context, session *Session, src Source, d PartDescriptor) PartResult

func (f runnerFunc) UploadPart(ctx context.Context, session *Session, src Source, d PartDescriptor) PartResult {
	return f(ctx, session, src, d)
}

func noBackoff(int) time.Duration { return 0 }
