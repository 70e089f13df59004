// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package mission

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/scc-digitalhub/survey-cli-sdk/sdk/utils"
)

var ErrNotReady = errors.New("flight path not generated yet")

// DownloadFlightPaths fetches the generated flight-path files of a READY
// mission into req.Destination. Files that fail are skipped and reported
// in the returned error, alongside the ones that made it.
func (s *MissionService) DownloadFlightPaths(ctx context.Context, req DownloadRequest) ([]DownloadInfo, error) {
	m, err := s.Get(ctx, GetRequest{Project: req.Project, ID: req.ID, Name: req.Name})
	if err != nil {
		return nil, err
	}
	if m.Status.State != StateReady {
		return nil, fmt.Errorf("%w: mission %s is %s", ErrNotReady, m.ID, m.Status.State)
	}

	paths := flightPaths(m)
	if len(paths) == 0 {
		return nil, fmt.Errorf("mission %s has no flight path", m.ID)
	}

	var (
		out  []DownloadInfo
		errs []error
	)
	for _, p := range paths {
		infos, err := s.download(ctx, p, req.Destination)
		if err != nil {
			s.log.Warn().Err(err).Str("path", p).Msg("skipping flight path")
			errs = append(errs, fmt.Errorf("%s: %w", p, err))
			continue
		}
		out = append(out, infos...)
	}
	return out, errors.Join(errs...)
}

func (s *MissionService) download(ctx context.Context, remote, dst string) ([]DownloadInfo, error) {
	pp, err := utils.ParsePath(remote)
	if err != nil {
		return nil, err
	}

	if pp.IsDir() {
		if !pp.IsS3() {
			return nil, errors.New("directory download needs an s3 path")
		}
		target := dst
		if target == "" {
			target = "."
		}
		if err := utils.DownloadS3FileOrDir(ctx, s.s3, pp, target, s.out); err != nil {
			return nil, err
		}
		prefix := strings.TrimPrefix(pp.Path, "/")
		files, err := s.s3.ListFilesAll(ctx, pp.Host, prefix)
		if err != nil {
			return nil, err
		}
		var out []DownloadInfo
		for _, f := range files {
			if info, ok := localInfo(filepath.Join(target, f.Name)); ok {
				out = append(out, info)
			}
		}
		return out, nil
	}

	target, err := chooseLocalTarget(dst, pp.Filename)
	if err != nil {
		return nil, err
	}
	if pp.IsS3() {
		err = utils.DownloadS3FileOrDir(ctx, s.s3, pp, target, s.out)
	} else {
		err = utils.DownloadHTTPFile(ctx, pp.String(), target, s.out)
	}
	if err != nil {
		return nil, err
	}
	if info, ok := localInfo(target); ok {
		return []DownloadInfo{info}, nil
	}
	return nil, nil
}

// flightPaths resolves status.files against spec.path when spec.path is a
// prefix, otherwise spec.path is the single file.
func flightPaths(m *Mission) []string {
	base := m.Spec.Path
	if base == "" {
		return nil
	}
	if !strings.HasSuffix(base, "/") || len(m.Status.Files) == 0 {
		return []string{base}
	}
	paths := make([]string, 0, len(m.Status.Files))
	for _, f := range m.Status.Files {
		if strings.Contains(f.Path, "://") {
			paths = append(paths, f.Path)
			continue
		}
		paths = append(paths, base+strings.TrimPrefix(f.Path, "/"))
	}
	return paths
}

// chooseLocalTarget:
// - dst vuoto → filename nella cwd
// - dst directory esistente → dst/filename
// - dst file esistente → dst
// - dst inesistente → crea la directory e usa dst/filename
func chooseLocalTarget(dst, filename string) (string, error) {
	if dst == "" {
		return filename, nil
	}
	info, err := os.Stat(dst)
	switch {
	case err == nil && info.IsDir():
		return filepath.Join(dst, filename), nil
	case err == nil:
		return dst, nil
	case os.IsNotExist(err):
		if err := os.MkdirAll(dst, 0o755); err != nil {
			return "", err
		}
		return filepath.Join(dst, filename), nil
	default:
		return "", err
	}
}

func localInfo(path string) (DownloadInfo, bool) {
	st, err := os.Stat(path)
	if err != nil || st.IsDir() {
		return DownloadInfo{}, false
	}
	return DownloadInfo{Filename: filepath.Base(path), Size: st.Size(), Path: path}, true
}
