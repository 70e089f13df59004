// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package upload

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// PartRunner uploads one part. *PartUploader is the production implementation.
type PartRunner interface {
	UploadPart(ctx context.Context, session *Session, src Source, d PartDescriptor) PartResult
}

// Scheduler fans parts out in fixed batches of maxConcurrent. A batch is
// fully resolved before the next one is dispatched.
type Scheduler struct {
	runner        PartRunner
	maxConcurrent int
	onProgress    ProgressFunc
	log           zerolog.Logger
}

func NewScheduler(runner PartRunner, maxConcurrent int, onProgress ProgressFunc, log zerolog.Logger) *Scheduler {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Scheduler{
		runner:        runner,
		maxConcurrent: maxConcurrent,
		onProgress:    onProgress,
		log:           log,
	}
}

// Run uploads parts and returns the manifest sorted by part number.
// The first terminal failure cancels the running batch, parts of that batch
// not yet started are skipped and no further batch is dispatched.
func (s *Scheduler) Run(ctx context.Context, session *Session, src Source, parts []PartDescriptor) (Manifest, error) {
	total := len(parts)
	manifest := make(Manifest, 0, total)

	var mu sync.Mutex
	completed := 0

	for start := 0; start < total; start += s.maxConcurrent {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		batch := parts[start:min(start+s.maxConcurrent, total)]
		s.log.Debug().
			Str("session_id", session.ID).
			Int32("first", batch[0].Number).
			Int32("last", batch[len(batch)-1].Number).
			Msg("dispatching batch")

		g, gctx := errgroup.WithContext(ctx)
		for _, d := range batch {
			g.Go(func() error {
				// a sibling already failed
				if gctx.Err() != nil {
					return nil
				}
				res := s.runner.UploadPart(gctx, session, src, d)
				if res.Err != nil {
					return res.Err
				}

				mu.Lock()
				defer mu.Unlock()
				manifest = append(manifest, CompletedPart{Number: d.Number, ETag: res.ETag})
				completed++
				if s.onProgress != nil {
					s.onProgress(completed, total)
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.Slice(manifest, func(i, j int) bool { return manifest[i].Number < manifest[j].Number })
	if len(manifest) != total {
		return nil, fmt.Errorf("manifest has %d entries for %d parts", len(manifest), total)
	}
	return manifest, nil
}
