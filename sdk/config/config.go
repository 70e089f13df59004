// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"time"
)

// Config complessiva passata all’SDK (niente viper/INI qui)
type Config struct {
	Core     CoreConfig
	S3       S3Config
	Upload   UploadConfig
	Pipeline PipelineConfig
}

type CoreConfig struct {
	BaseURL           string
	APIVersion        string
	AccessToken       string
	BasicAuthUsername string
	BasicAuthPassword string
}

type S3Config struct {
	AccessKey   string
	SecretKey   string
	AccessToken string
	Region      string
	EndpointURL string
	Bucket      string
}

// PipelineConfig selects the platform function that processes surveys.
type PipelineConfig struct {
	Function string // function name
	TaskKind string // e.g. "python+job"
}

const (
	DefaultPipelineFunction = "photogrammetry"
	DefaultPipelineTaskKind = "python+job"
)

func (c PipelineConfig) WithDefaults() PipelineConfig {
	if c.Function == "" {
		c.Function = DefaultPipelineFunction
	}
	if c.TaskKind == "" {
		c.TaskKind = DefaultPipelineTaskKind
	}
	return c
}

// Upload backends
const (
	BackendCore = "core"
	BackendS3   = "s3"
)

const (
	MiB = int64(1024 * 1024)
	GiB = 1024 * MiB

	DefaultPartSize           = 64 * MiB
	DefaultMaxConcurrentParts = 10
	DefaultMaxAttempts        = 3
	DefaultRetryBaseDelay     = time.Second
	DefaultMaxFileSize        = 50 * GiB

	// S3 rejects parts smaller than 5 MiB (except the last one).
	MinPartSize = 5 * MiB
)

// UploadConfig drives the chunked upload pipeline.
type UploadConfig struct {
	Backend            string
	PartSize           int64
	MaxConcurrentParts int
	MaxAttempts        int
	RetryBaseDelay     time.Duration
	ExponentialBackoff bool
	MaxFileSize        int64
	AbortOnFailure     bool
}

// WithDefaults returns a copy where zero values are replaced by defaults.
func (c UploadConfig) WithDefaults() UploadConfig {
	if c.Backend == "" {
		c.Backend = BackendCore
	}
	if c.PartSize == 0 {
		c.PartSize = DefaultPartSize
	}
	if c.MaxConcurrentParts == 0 {
		c.MaxConcurrentParts = DefaultMaxConcurrentParts
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.RetryBaseDelay == 0 {
		c.RetryBaseDelay = DefaultRetryBaseDelay
	}
	if c.MaxFileSize == 0 {
		c.MaxFileSize = DefaultMaxFileSize
	}
	return c
}

func (c UploadConfig) Validate() error {
	var errs []error
	switch c.Backend {
	case BackendCore, BackendS3:
	default:
		errs = append(errs, fmt.Errorf("unsupported upload backend %q", c.Backend))
	}
	if c.PartSize < MinPartSize {
		errs = append(errs, fmt.Errorf("part size %d is below the minimum of %d bytes", c.PartSize, MinPartSize))
	}
	if c.MaxConcurrentParts <= 0 {
		errs = append(errs, errors.New("max concurrent parts must be positive"))
	}
	if c.MaxAttempts <= 0 {
		errs = append(errs, errors.New("max attempts must be positive"))
	}
	if c.RetryBaseDelay < 0 {
		errs = append(errs, errors.New("retry base delay cannot be negative"))
	}
	if c.MaxFileSize <= 0 {
		errs = append(errs, errors.New("max file size must be positive"))
	}
	return errors.Join(errs...)
}
