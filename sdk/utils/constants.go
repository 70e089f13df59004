// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package utils

const (
	IniName            = ".surveycli.ini"
	IniSource          = "ini_source"
	CurrentEnvironment = "current_environment"
	UpdatedEnvKey      = "updated_environment"

	CoreName              = "core_name"
	CoreEndpoint          = "core_endpoint"
	CoreApiVersion        = "core_api_version"
	CoreAccessToken       = "core_access_token"
	CoreUser              = "core_user"
	CorePassword          = "core_password"
	CoreDefaultFilesStore = "core_default_files_store"

	AwsAccessKeyID     = "aws_access_key_id"
	AwsSecretAccessKey = "aws_secret_access_key"
	AwsSessionToken    = "aws_session_token"
	AwsRegion          = "aws_region"
	AwsEndpointURL     = "aws_endpoint_url"
	S3Bucket           = "s3_bucket"

	UploadBackend            = "upload_backend"
	UploadPartSize           = "upload_part_size"
	UploadMaxConcurrentParts = "upload_max_concurrent_parts"
	UploadMaxAttempts        = "upload_max_attempts"
	UploadRetryBaseDelay     = "upload_retry_base_delay"
	UploadExponentialBackoff = "upload_exponential_backoff"
	UploadMaxFileSize        = "upload_max_file_size"
	UploadAbortOnFailure     = "upload_abort_on_failure"

	PipelineFunction = "pipeline_function"
	PipelineTaskKind = "pipeline_task_kind"

	outdatedAfterHours = 1
)

// Resources maps each platform endpoint to its accepted aliases.
var Resources = map[string][]string{
	"projects": {"project"},
	"missions": {"mission", "flight"},
	"surveys":  {"survey"},
	"runs":     {"run", "pipeline"},
	"uploads":  {"upload"},
}
