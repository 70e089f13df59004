// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package upload

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

// BackoffFunc returns the wait after the given failed attempt (1-based).
type BackoffFunc func(attempt int) time.Duration

// MaxBackoffDelay caps the exponential schedule.
const MaxBackoffDelay = 10 * time.Minute

// LinearBackoff waits base, 2*base, 3*base, ...
func LinearBackoff(base time.Duration) BackoffFunc {
	return func(attempt int) time.Duration {
		return base * time.Duration(attempt)
	}
}

// ExponentialBackoff waits base, 2*base, 4*base, ... up to MaxBackoffDelay.
func ExponentialBackoff(base time.Duration) BackoffFunc {
	return func(attempt int) time.Duration {
		d := base
		for i := 1; i < attempt && d < MaxBackoffDelay; i++ {
			d *= 2
		}
		return min(d, MaxBackoffDelay)
	}
}

// schedule exposes a BackoffFunc as a backoff.BackOff.
type schedule struct {
	fn      BackoffFunc
	attempt int
}

func (s *schedule) NextBackOff() time.Duration {
	s.attempt++
	return max(s.fn(s.attempt), 0)
}

func (s *schedule) Reset() { s.attempt = 0 }

// PartUploader transfers a single part, retrying transient failures.
type PartUploader struct {
	sessions    SessionManager
	transport   Transport
	maxAttempts int
	backoff     BackoffFunc
	log         zerolog.Logger
}

func NewPartUploader(sessions SessionManager, transport Transport, maxAttempts int, backoff BackoffFunc, log zerolog.Logger) *PartUploader {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if backoff == nil {
		backoff = LinearBackoff(0)
	}
	return &PartUploader{
		sessions:    sessions,
		transport:   transport,
		maxAttempts: maxAttempts,
		backoff:     backoff,
		log:         log,
	}
}

// UploadPart runs up to maxAttempts attempts for d. A cancelled context
// stops the loop and is reported as is; an exhausted budget yields
// ErrPartUploadFailed wrapping the last attempt error.
func (u *PartUploader) UploadPart(ctx context.Context, session *Session, src Source, d PartDescriptor) PartResult {
	log := u.log.With().Str("session_id", session.ID).Int32("part", d.Number).Logger()

	var (
		attempts int
		etag     string
	)
	op := func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		attempts++
		e, err := u.attempt(ctx, session, src, d)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
				return backoff.Permanent(ctxErr)
			}
			return err
		}
		etag = e
		return nil
	}
	notify := func(err error, wait time.Duration) {
		log.Warn().Err(err).Int("attempt", attempts).Dur("retry_in", wait).Msg("part attempt failed")
	}

	b := backoff.WithContext(backoff.WithMaxRetries(&schedule{fn: u.backoff}, uint64(u.maxAttempts-1)), ctx)
	err := backoff.RetryNotify(op, b, notify)
	if err == nil {
		log.Debug().Int("attempt", attempts).Str("etag", etag).Msg("part uploaded")
		return PartResult{Number: d.Number, ETag: etag, Attempts: attempts}
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return PartResult{Number: d.Number, Attempts: attempts, Err: ctxErr}
	}

	log.Error().Err(err).Int("attempts", attempts).Msg("part upload failed")
	return PartResult{
		Number:   d.Number,
		Attempts: attempts,
		Err: &Error{
			Op:        "upload part",
			SessionID: session.ID,
			Part:      d.Number,
			Kind:      ErrPartUploadFailed,
			Err:       err,
		},
	}
}

func (u *PartUploader) attempt(ctx context.Context, session *Session, src Source, d PartDescriptor) (string, error) {
	dest, err := u.sessions.PartDestination(ctx, session, d.Number)
	if err != nil {
		return "", &Error{Op: "request destination", SessionID: session.ID, Part: d.Number, Kind: ErrDestinationRequestFailed, Err: err}
	}

	// fresh reader for every attempt, nothing carried over from a failed one
	body := io.NewSectionReader(src, d.Start, d.Size())
	header, err := u.transport.Put(ctx, dest, body, d.Size())
	if err != nil {
		return "", &Error{Op: "transfer", SessionID: session.ID, Part: d.Number, Kind: ErrTransferFailed, Err: err}
	}

	etag := header.Get("ETag")
	if etag == "" {
		return "", &Error{Op: "transfer", SessionID: session.ID, Part: d.Number, Kind: ErrIntegrityTokenMissing}
	}
	return etag, nil
}
