// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package utils

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/scc-digitalhub/survey-cli-sdk/sdk/config"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/ini.v1"
)

// isolated profile: fresh viper, temp HOME
func withProfile(t *testing.T) string {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, k := range []string{"CORE_ENDPOINT", "CORE_NAME", "UPLOAD_BACKEND", "S3_BUCKET"} {
		t.Setenv(k, "")
	}
	return home
}

func TestRegisterIniBootstrapsFromEnv(t *testing.T) {
	home := withProfile(t)
	t.Setenv("CORE_ENDPOINT", "https://core.example.org")
	t.Setenv("CORE_NAME", "lab")
	t.Setenv("UPLOAD_PART_SIZE", "8388608")
	t.Setenv("UPLOAD_RETRY_BASE_DELAY", "250ms")

	require.NoError(t, RegisterIniCfgWithViper())
	assert.Equal(t, "lab", viper.GetString(CurrentEnvironment))

	cfg, err := ini.Load(filepath.Join(home, IniName))
	require.NoError(t, err)
	assert.Equal(t, "lab", cfg.Section("DEFAULT").Key(CurrentEnvironment).String())
	assert.Equal(t, "https://core.example.org", cfg.Section("lab").Key(CoreEndpoint).String())
	assert.Equal(t, "v1", cfg.Section("lab").Key(CoreApiVersion).String())
	assert.Equal(t, "env", cfg.Section("lab").Key(IniSource).String())

	sdk, err := SDKConfigFromViper()
	require.NoError(t, err)
	assert.Equal(t, "https://core.example.org", sdk.Core.BaseURL)
	assert.Equal(t, "v1", sdk.Core.APIVersion)
	assert.Equal(t, config.BackendCore, sdk.Upload.Backend)
	assert.Equal(t, 8*config.MiB, sdk.Upload.PartSize)
	assert.Equal(t, 250*time.Millisecond, sdk.Upload.RetryBaseDelay)
	assert.Zero(t, sdk.Upload.MaxConcurrentParts, "left for WithDefaults")
}

func TestRegisterIniLoadsSelectedSection(t *testing.T) {
	home := withProfile(t)
	profile := `[DEFAULT]
current_environment = prod
core_api_version = v2

[prod]
core_endpoint = https://prod.example.org

[dev]
core_endpoint = https://dev.example.org
upload_backend = s3
s3_bucket = surveys
`
	require.NoError(t, os.WriteFile(filepath.Join(home, IniName), []byte(profile), 0o600))

	require.NoError(t, RegisterIniCfgWithViper())
	assert.Equal(t, "prod", viper.GetString(CurrentEnvironment))
	assert.Equal(t, "https://prod.example.org", viper.GetString(CoreEndpoint))

	viper.Reset()
	require.NoError(t, RegisterIniCfgWithViper("dev"))
	sdk, err := SDKConfigFromViper()
	require.NoError(t, err)
	assert.Equal(t, "https://dev.example.org", sdk.Core.BaseURL)
	assert.Equal(t, "v2", sdk.Core.APIVersion)
	assert.Equal(t, config.BackendS3, sdk.Upload.Backend)
	assert.Equal(t, "surveys", sdk.S3.Bucket)
}

func TestRegisterIniWithoutEndpoint(t *testing.T) {
	home := withProfile(t)

	require.NoError(t, RegisterIniCfgWithViper("staging"))
	assert.Equal(t, "staging", viper.GetString(CurrentEnvironment))
	assert.NoFileExists(t, filepath.Join(home, IniName))
}

func TestUpdateIniFromStruct(t *testing.T) {
	home := withProfile(t)
	p := filepath.Join(home, IniName)
	require.NoError(t, os.WriteFile(p, []byte("[DEFAULT]\ncurrent_environment = prod\n\n[prod]\ncore_endpoint = https://old\n"), 0o600))

	viper.Set(CoreEndpoint, "https://new")
	viper.Set(CoreAccessToken, "tok")
	viper.Set(CurrentEnvironment, "ignored")
	require.NoError(t, UpdateIniFromStruct(p, "prod"))

	cfg, err := ini.Load(p)
	require.NoError(t, err)
	sec := cfg.Section("prod")
	assert.Equal(t, "https://new", sec.Key(CoreEndpoint).String())
	assert.Equal(t, "tok", sec.Key(CoreAccessToken).String())
	assert.False(t, sec.HasKey(CurrentEnvironment), "not persisted")
	assert.NotEmpty(t, sec.Key(UpdatedEnvKey).String())
}

func TestSDKConfigFromViperRejectsBadDelay(t *testing.T) {
	withProfile(t)
	viper.Set(UploadRetryBaseDelay, "soon")
	_, err := SDKConfigFromViper()
	require.Error(t, err)
}
