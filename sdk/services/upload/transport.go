// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// HTTPTransport PUTs byte ranges to presigned destinations.
type HTTPTransport struct {
	client *http.Client
}

func NewHTTPTransport(client *http.Client) *HTTPTransport {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPTransport{client: client}
}

func (t *HTTPTransport) Put(ctx context.Context, dest *Destination, body io.Reader, size int64) (http.Header, error) {
	if dest == nil || dest.URL == "" {
		return nil, errors.New("empty destination")
	}
	method := dest.Method
	if method == "" {
		method = http.MethodPut
	}

	req, err := http.NewRequestWithContext(ctx, method, dest.URL, body)
	if err != nil {
		return nil, err
	}
	req.ContentLength = size
	for k, vals := range dest.Header {
		if strings.EqualFold(k, "Host") {
			if len(vals) > 0 {
				req.Host = vals[0]
			}
			continue
		}
		for _, v := range vals {
			req.Header.Add(k, v)
		}
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		if len(msg) > 0 {
			return nil, fmt.Errorf("storage responded with: %s - %s", resp.Status, strings.TrimSpace(string(msg)))
		}
		return nil, fmt.Errorf("storage responded with: %s", resp.Status)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.Header, nil
}
