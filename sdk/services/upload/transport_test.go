// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package upload

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPTransportPut(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, int64(5), r.ContentLength)
		assert.Equal(t, "application/zip", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "hello", string(body))
		w.Header().Set("ETag", `"abc"`)
	}))
	defer srv.Close()

	dest := &Destination{URL: srv.URL + "/part/1", Header: http.Header{"Content-Type": []string{"application/zip"}}}
	h, err := NewHTTPTransport(srv.Client()).Put(context.Background(), dest, strings.NewReader("hello"), 5)
	require.NoError(t, err)
	assert.Equal(t, `"abc"`, h.Get("ETag"))
}

func TestHTTPTransportRejectsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte("<Error><Code>SignatureDoesNotMatch</Code></Error>"))
	}))
	defer srv.Close()

	_, err := NewHTTPTransport(srv.Client()).Put(context.Background(), &Destination{URL: srv.URL}, bytes.NewReader([]byte("x")), 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
	assert.Contains(t, err.Error(), "SignatureDoesNotMatch")
}

func TestHTTPTransportEmptyDestination(t *testing.T) {
	_, err := NewHTTPTransport(nil).Put(context.Background(), &Destination{}, nil, 0)
	require.Error(t, err)
}

func TestOpenFile(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "flight.csv")
	require.NoError(t, os.WriteFile(p, []byte("lat,lon\n46.06,11.12\n"), 0o644))

	src, err := OpenFile(p)
	require.NoError(t, err)
	defer src.Close()

	assert.Equal(t, "flight.csv", src.Name())
	assert.Equal(t, int64(20), src.Size())
	assert.True(t, strings.HasPrefix(src.ContentType(), "text/"), src.ContentType())

	buf := make([]byte, 3)
	_, err = src.ReadAt(buf, 4)
	require.NoError(t, err)
	assert.Equal(t, "lon", string(buf))

	_, err = OpenFile(dir)
	require.Error(t, err)
	_, err = OpenFile(filepath.Join(dir, "missing.zip"))
	require.Error(t, err)
}
