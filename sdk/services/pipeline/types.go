// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package pipeline

// Run states reported by the platform.
const (
	StateCreated   = "CREATED"
	StateReady     = "READY"
	StateRunning   = "RUNNING"
	StateStopped   = "STOPPED"
	StateCompleted = "COMPLETED"
	StateError     = "ERROR"
)

type RunSpec struct {
	Task           string            `json:"task"`
	Function       string            `json:"function"`
	LocalExecution bool              `json:"local_execution"`
	Inputs         map[string]string `json:"inputs,omitempty"`
	Parameters     map[string]any    `json:"parameters,omitempty"`
}

type RunStatus struct {
	State   string         `json:"state,omitempty"`
	Message string         `json:"message,omitempty"`
	Outputs map[string]any `json:"outputs,omitempty"`
}

type Run struct {
	ID      string    `json:"id,omitempty"`
	Kind    string    `json:"kind"`
	Project string    `json:"project"`
	Spec    RunSpec   `json:"spec"`
	Status  RunStatus `json:"status,omitzero"`
}

// Terminal reports whether the run will not change state on its own.
func (r *Run) Terminal() bool {
	switch r.Status.State {
	case StateCompleted, StateError, StateStopped:
		return true
	}
	return false
}

// entity is the common shape of functions and tasks.
type entity struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
	Kind string `json:"kind"`
}

type LogEntry struct {
	ID      string    `json:"id,omitempty"`
	Content string    `json:"content,omitempty"`
	Status  LogStatus `json:"status"`
}

type LogStatus struct {
	Container string           `json:"container,omitempty"`
	Metrics   []map[string]any `json:"metrics,omitempty"`
}

type StartRequest struct {
	Project  string
	SurveyID string
	// overrides of the configured function
	FunctionID   string
	FunctionName string
	TaskKind     string
	Parameters   map[string]any
}

type RunRequest struct {
	Project string
	ID      string
}

type LogsRequest struct {
	RunRequest
	Container string // main container when empty
}
