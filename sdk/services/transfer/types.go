// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package transfer

import "github.com/scc-digitalhub/survey-cli-sdk/sdk/services/pipeline"

const (
	KindSurvey = "survey"

	StateCreated   = "CREATED"
	StateUploading = "UPLOADING"
	StateReady     = "READY"
	StateError     = "ERROR"
)

type UploadRequest struct {
	Project  string
	ID       string // optional, an existing survey in CREATED or ERROR state
	Name     string // mandatory when ID is empty
	Input    string // local archive
	Mission  string // optional mission id, recorded as a relationship
	Metadata map[string]string

	// Process starts the processing pipeline once the archive is READY.
	Process    bool
	Parameters map[string]any
}

type UploadResult struct {
	SurveyID string
	Location string
	Parts    int
	Files    []map[string]any // as in status.files of the READY survey
	Run      *pipeline.Run
}
