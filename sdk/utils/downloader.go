// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package utils

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"
	"github.com/scc-digitalhub/survey-cli-sdk/sdk/config"
)

// ObjectStore is the read side of *config.S3Client.
type ObjectStore interface {
	ListFilesAll(ctx context.Context, bucket, prefix string) ([]config.S3File, error)
	WalkPrefix(ctx context.Context, bucket, prefix string, pageSize int32, fn func(obj s3types.Object) error) error
	DownloadFileWithProgress(ctx context.Context, bucket, key, localPath string, hook *config.ProgressHook) error
}

var _ ObjectStore = (*config.S3Client)(nil)

/* ------------ HTTP ------------ */

// DownloadHTTPFile streams url into destination, rendering progress on w.
func DownloadHTTPFile(ctx context.Context, url, destination string, w io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("download failed: %s", resp.Status)
	}

	out, err := os.Create(destination)
	if err != nil {
		return err
	}
	defer out.Close()

	gp := NewProgress(w, "Download", resp.ContentLength)
	buf := make([]byte, 128*1024)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := out.Write(buf[:n]); werr != nil {
				return werr
			}
			gp.Add(int64(n))
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				break
			}
			return readErr
		}
	}
	gp.Finish()
	return nil
}

/* ------------ S3: file o directory ------------ */

// DownloadS3FileOrDir downloads a single object, or every object under the
// prefix when the path ends with "/". Per-file details go to the logger in
// ctx, the aggregated progress line to w.
func DownloadS3FileOrDir(ctx context.Context, store ObjectStore, parsedPath *ParsedPath, localPath string, w io.Writer) error {
	logger := zerolog.Ctx(ctx)
	bucket := parsedPath.Host
	// alcuni artifact salvano "/xxx/..": normalizza
	prefix := strings.TrimPrefix(parsedPath.Path, "/")

	if !strings.HasSuffix(prefix, "/") {
		logger.Info().Str("bucket", bucket).Str("key", prefix).Str("dest", displayPath(localPath)).Msg("downloading")
		gp := NewProgress(w, "Download", 0)
		hook := byteHook(gp, logger)
		hook.OnStart = func(_ string, total int64) {
			gp.mu.Lock()
			gp.totalBytes = total
			gp.mu.Unlock()
		}
		if err := store.DownloadFileWithProgress(ctx, bucket, prefix, localPath, hook); err != nil {
			return fmt.Errorf("S3 download failed: %w", err)
		}
		gp.Finish()
		return nil
	}

	localBase := localPath

	// totals are optional, listing failures only cost the percentage
	var totalBytes int64
	all, err := store.ListFilesAll(ctx, bucket, prefix)
	if err != nil {
		logger.Warn().Err(err).Msg("listing failed, proceeding without totals")
	} else {
		for _, f := range all {
			totalBytes += f.Size
		}
	}
	logger.Info().Str("bucket", bucket).Str("prefix", prefix).Str("dest", displayPath(localBase)).
		Int("files", len(all)).Int64("bytes", totalBytes).Msg("downloading")

	gp := NewProgress(w, "Download", totalBytes)
	err = store.WalkPrefix(ctx, bucket, prefix, 1000, func(obj s3types.Object) error {
		key := aws.ToString(obj.Key)
		targetPath := filepath.Join(localBase, strings.TrimPrefix(key, prefix))

		if err := os.MkdirAll(filepath.Dir(targetPath), 0o755); err != nil {
			return fmt.Errorf("failed to create local directory: %w", err)
		}
		if err := store.DownloadFileWithProgress(ctx, bucket, key, targetPath, byteHook(gp, logger)); err != nil {
			return fmt.Errorf("failed to download %s: %w", key, err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	gp.Finish()
	return nil
}

// byteHook feeds per-file progress deltas into the shared bar.
func byteHook(gp *Progress, logger *zerolog.Logger) *config.ProgressHook {
	var prevWritten int64
	return &config.ProgressHook{
		OnProgress: func(_ string, written, _ int64) {
			if delta := written - prevWritten; delta > 0 {
				gp.Add(delta)
			}
			prevWritten = written
		},
		OnDone: func(key string, total int64, took time.Duration) {
			// conta tutto il file anche se l'ultimo tick è stato saltato
			if total > prevWritten {
				gp.Add(total - prevWritten)
			}
			logger.Debug().Str("key", key).Int64("bytes", total).Dur("took", took).Msg("file downloaded")
		},
	}
}

/* ------------ helpers ------------ */

// per stampare cartelle vuote come "." invece di stringa vuota
func displayPath(p string) string {
	if p == "" {
		return "."
	}
	return p
}
