// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package upload

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/scc-digitalhub/survey-cli-sdk/sdk/config"
)

const uploadsEndpoint = "uploads"

// CoreSessions manages multipart sessions through the platform API, which
// hands out presigned part URLs.
type CoreSessions struct {
	http    config.CoreHTTP
	project string
}

func NewCoreSessions(http config.CoreHTTP, project string) *CoreSessions {
	return &CoreSessions{http: http, project: project}
}

type openSessionPayload struct {
	Name        string            `json:"name"`
	ContentType string            `json:"content_type,omitempty"`
	Size        int64             `json:"size"`
	PartSize    int64             `json:"part_size"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type sessionResponse struct {
	ID       string   `json:"id"`
	Location Location `json:"location"`
	Size     int64    `json:"size"`
	PartSize int64    `json:"part_size"`
}

type destinationResponse struct {
	URL     string            `json:"url"`
	Method  string            `json:"method"`
	Headers map[string]string `json:"headers"`
}

type completePayload struct {
	Parts Manifest `json:"parts"`
}

type completeResponse struct {
	Location string `json:"location"`
	ETag     string `json:"etag"`
}

func (c *CoreSessions) OpenSession(ctx context.Context, req OpenRequest) (*Session, error) {
	payload, err := json.Marshal(openSessionPayload{
		Name:        req.FileName,
		ContentType: req.ContentType,
		Size:        req.Size,
		PartSize:    req.PartSize,
		Metadata:    req.Metadata,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session request: %w", err)
	}

	url := c.http.BuildURL(c.project, uploadsEndpoint, "", nil)
	body, _, err := c.http.Do(ctx, http.MethodPost, url, payload)
	if err != nil {
		return nil, err
	}

	var resp sessionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse session response: %w", err)
	}
	if resp.ID == "" {
		return nil, errors.New("session response without id")
	}

	s := &Session{
		ID:        resp.ID,
		Location:  resp.Location,
		TotalSize: req.Size,
		PartSize:  req.PartSize,
	}
	// the platform may round the part size
	if resp.PartSize > 0 {
		s.PartSize = resp.PartSize
	}
	return s, nil
}

func (c *CoreSessions) PartDestination(ctx context.Context, session *Session, partNumber int32) (*Destination, error) {
	url := c.sessionURL(session) + "/parts/" + strconv.Itoa(int(partNumber))
	body, _, err := c.http.Do(ctx, http.MethodPost, url, []byte("{}"))
	if err != nil {
		return nil, err
	}

	var resp destinationResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse destination response: %w", err)
	}
	if resp.URL == "" {
		return nil, fmt.Errorf("no url for part %d", partNumber)
	}

	dest := &Destination{URL: resp.URL, Method: resp.Method, Header: http.Header{}}
	for k, v := range resp.Headers {
		dest.Header.Set(k, v)
	}
	return dest, nil
}

func (c *CoreSessions) CloseSession(ctx context.Context, session *Session, manifest Manifest) (*Ack, error) {
	payload, err := json.Marshal(completePayload{Parts: manifest})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal manifest: %w", err)
	}

	body, _, err := c.http.Do(ctx, http.MethodPost, c.sessionURL(session)+"/complete", payload)
	if err != nil {
		return nil, err
	}

	var resp completeResponse
	if len(body) > 0 {
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("failed to parse completion response: %w", err)
		}
	}
	return &Ack{Location: resp.Location, ETag: resp.ETag}, nil
}

// AbortSession treats an unknown session as already aborted.
func (c *CoreSessions) AbortSession(ctx context.Context, session *Session) error {
	_, status, err := c.http.Do(ctx, http.MethodDelete, c.sessionURL(session), nil)
	if err != nil && status != http.StatusNotFound {
		return err
	}
	return nil
}

func (c *CoreSessions) sessionURL(session *Session) string {
	return c.http.BuildURL(c.project, uploadsEndpoint, session.ID, nil)
}
