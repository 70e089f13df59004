// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package upload

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidInput is returned before any network I/O for bad planning
	// parameters or a file that fails the pre-flight checks.
	ErrInvalidInput = errors.New("invalid input")

	// per-part, retried
	ErrDestinationRequestFailed = errors.New("destination request failed")
	ErrTransferFailed           = errors.New("transfer failed")
	ErrIntegrityTokenMissing    = errors.New("integrity token missing")

	// terminal
	ErrPartUploadFailed   = errors.New("part upload failed")
	ErrSessionOpenFailed  = errors.New("session open failed")
	ErrSessionCloseFailed = errors.New("session close failed")
	ErrSessionAbortFailed = errors.New("session abort failed")
	ErrInvalidState       = errors.New("invalid state")
	ErrAborted            = errors.New("upload aborted")
)

// Error carries the pipeline context of a failure. Kind is one of the
// sentinels above; both Kind and Err match with errors.Is.
type Error struct {
	Op        string
	SessionID string
	Part      int32
	Kind      error
	Err       error
}

func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Op)
	if e.SessionID != "" {
		fmt.Fprintf(&sb, " (session %s", e.SessionID)
		if e.Part > 0 {
			fmt.Fprintf(&sb, ", part %d", e.Part)
		}
		sb.WriteString(")")
	} else if e.Part > 0 {
		fmt.Fprintf(&sb, " (part %d)", e.Part)
	}
	if e.Kind != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Kind.Error())
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// PartNumber returns the number of the part that caused err, or 0.
func PartNumber(err error) int32 {
	var ue *Error
	if errors.As(err, &ue) {
		return ue.Part
	}
	return 0
}

func invalidInput(format string, a ...any) error {
	return &Error{Op: "plan", Kind: ErrInvalidInput, Err: fmt.Errorf(format, a...)}
}
