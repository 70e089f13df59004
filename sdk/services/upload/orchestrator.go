// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package upload

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/scc-digitalhub/survey-cli-sdk/sdk/config"
)

type State int

const (
	StateIdle State = iota
	StateSessionOpening
	StateUploading
	StateFinalizing
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateSessionOpening:
		return "SESSION_OPENING"
	case StateUploading:
		return "UPLOADING"
	case StateFinalizing:
		return "FINALIZING"
	case StateCompleted:
		return "COMPLETED"
	case StateFailed:
		return "FAILED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

type Option func(*Orchestrator)

func WithLogger(log zerolog.Logger) Option {
	return func(o *Orchestrator) { o.log = log }
}

func WithProgress(fn ProgressFunc) Option {
	return func(o *Orchestrator) { o.onProgress = fn }
}

// WithOnComplete registers a hook called once after the session is closed.
func WithOnComplete(fn func(*Result)) Option {
	return func(o *Orchestrator) { o.onComplete = fn }
}

// WithBackoff overrides the strategy derived from the upload config.
func WithBackoff(b BackoffFunc) Option {
	return func(o *Orchestrator) { o.backoff = b }
}

// Orchestrator drives one upload from session open to close. It is single use.
type Orchestrator struct {
	sessions  SessionManager
	transport Transport
	cfg       config.UploadConfig

	backoff    BackoffFunc
	onProgress ProgressFunc
	onComplete func(*Result)
	log        zerolog.Logger

	mu      sync.Mutex
	state   State
	session *Session
	cancel  context.CancelFunc
	aborted bool
}

func NewOrchestrator(sessions SessionManager, transport Transport, cfg config.UploadConfig, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		sessions:  sessions,
		transport: transport,
		cfg:       cfg.WithDefaults(),
		log:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.backoff == nil {
		if o.cfg.ExponentialBackoff {
			o.backoff = ExponentialBackoff(o.cfg.RetryBaseDelay)
		} else {
			o.backoff = LinearBackoff(o.cfg.RetryBaseDelay)
		}
	}
	return o
}

func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Session returns a copy of the open session, if any.
func (o *Orchestrator) Session() (Session, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.session == nil {
		return Session{}, false
	}
	return *o.session, true
}

// Start uploads src and returns the result once the backend acknowledged
// the manifest. Any failure leaves the orchestrator in StateFailed.
func (o *Orchestrator) Start(ctx context.Context, src Source, req StartRequest) (*Result, error) {
	if src == nil {
		return nil, &Error{Op: "start", Kind: ErrInvalidInput, Err: errors.New("nil source")}
	}
	size := src.Size()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	o.mu.Lock()
	if o.state != StateIdle {
		st := o.state
		o.mu.Unlock()
		return nil, &Error{Op: "start", Kind: ErrInvalidState, Err: fmt.Errorf("orchestrator is %s", st)}
	}
	// pre-flight, still idle
	if size > o.cfg.MaxFileSize {
		o.mu.Unlock()
		return nil, &Error{Op: "start", Kind: ErrInvalidInput, Err: fmt.Errorf("file size %d exceeds the maximum of %d bytes", size, o.cfg.MaxFileSize)}
	}
	parts, err := Plan(size, o.cfg.PartSize)
	if err != nil {
		o.mu.Unlock()
		return nil, err
	}
	o.state = StateSessionOpening
	o.cancel = cancel
	o.mu.Unlock()

	name := req.FileName
	if name == "" {
		name = src.Name()
	}
	started := time.Now()
	log := o.log.With().Str("file", name).Int64("size", size).Logger()

	session, err := o.sessions.OpenSession(runCtx, OpenRequest{
		FileName:    name,
		ContentType: req.ContentType,
		Size:        size,
		PartSize:    o.cfg.PartSize,
		Metadata:    req.Metadata,
	})
	if err != nil {
		o.setState(StateFailed)
		log.Error().Err(err).Msg("failed to open upload session")
		return nil, &Error{Op: "open session", Kind: ErrSessionOpenFailed, Err: err}
	}
	log = log.With().Str("session_id", session.ID).Logger()

	o.mu.Lock()
	if o.aborted {
		o.state = StateFailed
		o.mu.Unlock()
		cause := &Error{Op: "open session", SessionID: session.ID, Kind: ErrAborted}
		if err := o.abortSession(context.WithoutCancel(ctx), session, log); err != nil {
			return nil, fmt.Errorf("%w (%w)", cause, err)
		}
		return nil, cause
	}
	o.session = session
	o.state = StateUploading
	o.mu.Unlock()

	log.Info().
		Str("bucket", session.Location.Bucket).
		Str("key", session.Location.Key).
		Int("parts", len(parts)).
		Msg("upload session opened")

	uploader := NewPartUploader(o.sessions, o.transport, o.cfg.MaxAttempts, o.backoff, log)
	scheduler := NewScheduler(uploader, o.cfg.MaxConcurrentParts, o.onProgress, log)

	manifest, err := scheduler.Run(runCtx, session, src, parts)
	if err != nil {
		o.setState(StateFailed)
		if o.wasAborted() {
			err = &Error{Op: "upload", SessionID: session.ID, Kind: ErrAborted, Err: err}
		}
		return nil, o.fail(ctx, session, log, err)
	}

	o.setState(StateFinalizing)
	ack, err := o.sessions.CloseSession(runCtx, session, manifest)
	if err != nil {
		o.setState(StateFailed)
		kind := ErrSessionCloseFailed
		if o.wasAborted() {
			kind = ErrAborted
		}
		return nil, o.fail(ctx, session, log, &Error{Op: "close session", SessionID: session.ID, Kind: kind, Err: err})
	}

	res := &Result{
		Session:  *session,
		Manifest: manifest,
		Ack:      ack,
		Parts:    len(parts),
		Size:     size,
		Took:     time.Since(started),
	}

	o.mu.Lock()
	// Abort landed while the backend was acknowledging: Failed is final
	if o.aborted || o.state == StateFailed {
		o.state = StateFailed
		o.mu.Unlock()
		log.Warn().Msg("upload aborted during finalization, acknowledgement discarded")
		return nil, &Error{Op: "close session", SessionID: session.ID, Kind: ErrAborted}
	}
	o.state = StateCompleted
	o.session = nil
	o.cancel = nil
	o.mu.Unlock()

	log.Info().Dur("took", res.Took).Msg("upload completed")
	if o.onComplete != nil {
		o.onComplete(res)
	}
	return res, nil
}

// Abort cancels a running upload and aborts the remote session.
func (o *Orchestrator) Abort(ctx context.Context) error {
	o.mu.Lock()
	if o.state == StateIdle || o.state == StateCompleted {
		st := o.state
		o.mu.Unlock()
		return &Error{Op: "abort", Kind: ErrInvalidState, Err: fmt.Errorf("orchestrator is %s", st)}
	}
	if o.cancel != nil {
		o.cancel()
	}
	o.aborted = true
	session := o.session
	o.session = nil
	if o.state != StateFailed {
		o.state = StateFailed
	}
	o.mu.Unlock()

	// session not opened yet or already released
	if session == nil {
		return nil
	}
	return o.abortSession(ctx, session, o.log.With().Str("session_id", session.ID).Logger())
}

func (o *Orchestrator) wasAborted() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.aborted
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	defer o.mu.Unlock()
	// Abort may already have moved us to Failed
	if o.state == StateFailed {
		return
	}
	o.state = s
}

// fail releases the session, aborting it remotely when configured to.
func (o *Orchestrator) fail(ctx context.Context, session *Session, log zerolog.Logger, cause error) error {
	log.Error().Err(cause).Msg("upload failed")

	o.mu.Lock()
	held := o.session == session
	if held && o.cfg.AbortOnFailure {
		o.session = nil
	}
	o.mu.Unlock()

	if !held || !o.cfg.AbortOnFailure {
		return cause
	}
	// the caller context may be the reason we failed
	if err := o.abortSession(context.WithoutCancel(ctx), session, log); err != nil {
		return fmt.Errorf("%w (%w)", cause, err)
	}
	return cause
}

func (o *Orchestrator) abortSession(ctx context.Context, session *Session, log zerolog.Logger) error {
	if err := o.sessions.AbortSession(ctx, session); err != nil {
		log.Error().Err(err).Msg("failed to abort upload session")
		return &Error{Op: "abort session", SessionID: session.ID, Kind: ErrSessionAbortFailed, Err: err}
	}
	log.Info().Msg("upload session aborted")
	return nil
}
