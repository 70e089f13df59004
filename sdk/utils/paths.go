// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package utils

import (
	"fmt"
	"net/url"
	"path"
	"strings"
)

// ParsedPath is a remote file reference: s3://bucket/key or http(s)://host/path.
type ParsedPath struct {
	Scheme   string
	Host     string // bucket for s3
	Path     string
	Filename string // empty for directory prefixes
}

func (p *ParsedPath) IsS3() bool { return p.Scheme == "s3" }

func (p *ParsedPath) IsDir() bool { return strings.HasSuffix(p.Path, "/") }

func (p *ParsedPath) String() string {
	return p.Scheme + "://" + p.Host + p.Path
}

func ParsePath(raw string) (*ParsedPath, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid path %q: %w", raw, err)
	}
	scheme := strings.ToLower(u.Scheme)
	switch scheme {
	case "s3", "http", "https":
	case "":
		return nil, fmt.Errorf("path %q has no scheme", raw)
	default:
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("path %q has no host", raw)
	}

	p := &ParsedPath{Scheme: scheme, Host: u.Host, Path: u.Path}
	if scheme != "s3" && u.RawQuery != "" {
		// presigned http urls keep their signature
		p.Path += "?" + u.RawQuery
	}
	if u.Path != "" && !strings.HasSuffix(u.Path, "/") {
		p.Filename = path.Base(u.Path)
	}
	return p, nil
}
