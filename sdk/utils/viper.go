// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package utils

import (
	"bytes"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/scc-digitalhub/survey-cli-sdk/sdk/config"
	"github.com/spf13/viper"
	"gopkg.in/ini.v1"
)

// EnvDumpPrefix: optional prefix for env lookup (e.g., "SURVEY")
const EnvDumpPrefix = "SURVEY"

// Config holds all logical keys. Tags:
// - vkey: Viper key
// - env: canonical env name (UPPER_SNAKE). If empty, derived from vkey
// - persist: "true" to write the key into the INI
// - default: optional default to set if key is unset
// - secret: "true" if sensitive, never logged
// - bind: "false" to NOT bind from env (we still can set defaults)
type Config struct {
	CoreName              string `vkey:"core_name"                env:"CORE_NAME"                persist:"true"`
	CoreEndpoint          string `vkey:"core_endpoint"            env:"CORE_ENDPOINT"            persist:"true"`
	CoreApiVersion        string `vkey:"core_api_version"         env:"CORE_API_VERSION"         persist:"true"  default:"v1"`
	CoreAccessToken       string `vkey:"core_access_token"        env:"CORE_ACCESS_TOKEN"        persist:"true"  secret:"true"`
	CoreUser              string `vkey:"core_user"                env:"CORE_USER"                persist:"true"`
	CorePassword          string `vkey:"core_password"            env:"CORE_PASSWORD"            persist:"true"  secret:"true"`
	CoreDefaultFilesStore string `vkey:"core_default_files_store" env:"CORE_DEFAULT_FILES_STORE" persist:"true"`

	AwsAccessKeyID     string `vkey:"aws_access_key_id"     env:"AWS_ACCESS_KEY_ID"     persist:"true" secret:"true"`
	AwsSecretAccessKey string `vkey:"aws_secret_access_key" env:"AWS_SECRET_ACCESS_KEY" persist:"true" secret:"true"`
	AwsSessionToken    string `vkey:"aws_session_token"     env:"AWS_SESSION_TOKEN"     persist:"true" secret:"true"`
	AwsRegion          string `vkey:"aws_region"            env:"AWS_REGION"            persist:"true"`
	AwsEndpointURL     string `vkey:"aws_endpoint_url"      env:"AWS_ENDPOINT_URL"      persist:"true"`
	S3Bucket           string `vkey:"s3_bucket"             env:"S3_BUCKET"             persist:"true"`

	UploadBackend            string `vkey:"upload_backend"              env:"UPLOAD_BACKEND"              persist:"true" default:"core"`
	UploadPartSize           string `vkey:"upload_part_size"            env:"UPLOAD_PART_SIZE"            persist:"true"`
	UploadMaxConcurrentParts string `vkey:"upload_max_concurrent_parts" env:"UPLOAD_MAX_CONCURRENT_PARTS" persist:"true"`
	UploadMaxAttempts        string `vkey:"upload_max_attempts"         env:"UPLOAD_MAX_ATTEMPTS"         persist:"true"`
	UploadRetryBaseDelay     string `vkey:"upload_retry_base_delay"     env:"UPLOAD_RETRY_BASE_DELAY"     persist:"true"`
	UploadExponentialBackoff string `vkey:"upload_exponential_backoff"  env:"UPLOAD_EXPONENTIAL_BACKOFF"  persist:"true"`
	UploadMaxFileSize        string `vkey:"upload_max_file_size"        env:"UPLOAD_MAX_FILE_SIZE"        persist:"true"`
	UploadAbortOnFailure     string `vkey:"upload_abort_on_failure"     env:"UPLOAD_ABORT_ON_FAILURE"     persist:"true"`

	PipelineFunction string `vkey:"pipeline_function"  env:"PIPELINE_FUNCTION"  persist:"true"`
	PipelineTaskKind string `vkey:"pipeline_task_kind" env:"PIPELINE_TASK_KIND" persist:"true"`

	IniSource          string `vkey:"ini_source"          env:"INI_SOURCE"          persist:"true"`
	UpdatedEnvironment string `vkey:"updated_environment" env:"UPDATED_ENVIRONMENT" persist:"true" bind:"false"`
	CurrentEnvironment string `vkey:"current_environment" env:"CURRENT_ENVIRONMENT" persist:"false"`
}

type configField struct {
	key, env, def string
	persist, bind bool
}

// configFields reads the tags of Config.
func configFields() []configField {
	rt := reflect.TypeOf(Config{})
	out := make([]configField, 0, rt.NumField())
	for i := 0; i < rt.NumField(); i++ {
		f := rt.Field(i)
		key := f.Tag.Get("vkey")
		if key == "" {
			continue
		}
		env := f.Tag.Get("env")
		if env == "" {
			env = strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		}
		out = append(out, configField{
			key:     key,
			env:     env,
			def:     f.Tag.Get("default"),
			persist: f.Tag.Get("persist") == "true",
			bind:    !strings.EqualFold(f.Tag.Get("bind"), "false"),
		})
	}
	return out
}

// resolveEnvName: --env > "default"
func resolveEnvName(optionalEnv ...string) string {
	if len(optionalEnv) > 0 && optionalEnv[0] != "" && strings.ToLower(optionalEnv[0]) != "null" {
		return optionalEnv[0]
	}
	return "default"
}

// mirror PREFIX_FOO -> FOO, without overriding FOO when already set
func mirrorPrefix(prefix string) {
	if prefix == "" {
		return
	}
	upPrefix := strings.ToUpper(prefix) + "_"
	for _, e := range os.Environ() {
		name, val, ok := strings.Cut(e, "=")
		if !ok || !strings.HasPrefix(name, upPrefix) {
			continue
		}
		unpref := strings.TrimPrefix(name, upPrefix)
		if os.Getenv(unpref) == "" {
			_ = os.Setenv(unpref, val)
		}
	}
}

// BindEnvFromStruct binds env for all fields of Config using struct tags.
func BindEnvFromStruct(prefix string) {
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	mirrorPrefix(prefix)

	for _, f := range configFields() {
		if f.bind {
			_ = viper.BindEnv(f.key, f.env)
		}
		if f.def != "" && !viper.IsSet(f.key) {
			viper.SetDefault(f.key, f.def)
		}
	}
}

func persistInto(sec *ini.Section) {
	for _, f := range configFields() {
		if !f.persist {
			continue
		}
		if val := viper.GetString(f.key); val != "" {
			sec.Key(f.key).SetValue(val)
		}
	}
}

// WriteIniFromStruct writes a new INI with only fields marked persist:"true".
func WriteIniFromStruct(iniPath, envName string) error {
	cfg := ini.Empty()
	cfg.Section("DEFAULT").Key(CurrentEnvironment).SetValue(envName)
	persistInto(cfg.Section(envName))
	return cfg.SaveTo(iniPath)
}

// UpdateIniFromStruct updates or creates the env section from current Viper values.
func UpdateIniFromStruct(iniPath, envName string) error {
	cfg, err := ini.Load(iniPath)
	if err != nil {
		return WriteIniFromStruct(iniPath, envName)
	}
	sec := cfg.Section(envName)
	persistInto(sec)

	if !cfg.Section("DEFAULT").HasKey(CurrentEnvironment) {
		cfg.Section("DEFAULT").Key(CurrentEnvironment).SetValue(envName)
	}
	sec.Key(UpdatedEnvKey).SetValue(time.Now().UTC().Format(time.RFC3339))
	return cfg.SaveTo(iniPath)
}

// Load [DEFAULT] + [env] into Viper (TOML in-memory). ENV can still override on Get().
func loadIniSectionIntoViper(cfg *ini.File, env string) error {
	def := cfg.Section("DEFAULT")
	selected := def
	switch {
	case env != "" && cfg.HasSection(env):
		selected = cfg.Section(env)
		log.Debug().Str("env", env).Msg("using environment")
	case env == "" || strings.EqualFold(env, "DEFAULT"):
		log.Debug().Msg("using environment DEFAULT")
	default:
		log.Warn().Str("env", env).Msg("environment not found, falling back to DEFAULT")
	}

	merged := make(map[string]string)
	for _, k := range def.Keys() {
		merged[k.Name()] = k.Value()
	}
	if selected != def {
		for _, k := range selected.Keys() {
			merged[k.Name()] = k.Value()
		}
	}

	var buf bytes.Buffer
	for k, v := range merged {
		vSafe := strings.ReplaceAll(strings.ReplaceAll(v, `\`, `\\`), `"`, `\"`)
		_, _ = fmt.Fprintf(&buf, "%s = \"%s\"\n", k, vSafe)
	}
	viper.SetConfigType("toml")
	return viper.ReadConfig(&buf)
}

// RegisterIniCfgWithViper:
// 1) bind ENV from struct (live)
// 2) load INI or bootstrap it from env (writes only target env)
// 3) load active section into Viper and set current_environment
func RegisterIniCfgWithViper(optionalEnv ...string) error {
	iniPath := getIniPath()

	BindEnvFromStruct(EnvDumpPrefix)

	cfg, err := ini.Load(iniPath)
	if err != nil {
		log.Debug().Str("path", iniPath).Msg("ini not found, reading settings from env")
		envName, bootErr := bootstrapFromEnv(iniPath, optionalEnv...)
		if bootErr != nil {
			log.Warn().Err(bootErr).Msg("bootstrap from env failed")
			if envName == "" {
				envName = resolveEnvName(optionalEnv...)
			}
			viper.Set(CurrentEnvironment, envName)
			return nil
		}
		cfg, err = ini.Load(iniPath)
		if err != nil {
			log.Warn().Err(err).Msg("ini written but cannot reload, env-only mode")
			return nil
		}
	}

	// active env: --env > DEFAULT.current_environment > default
	env := resolveEnvName(optionalEnv...)
	if env == "default" {
		if v := cfg.Section("DEFAULT").Key(CurrentEnvironment).String(); v != "" {
			env = v
		}
	}

	if err := loadIniSectionIntoViper(cfg, env); err != nil {
		return fmt.Errorf("failed to load INI into viper: %w", err)
	}
	viper.Set(CurrentEnvironment, env)
	return nil
}

// Bootstrap (when INI is missing): read all variables from OS envs using Config struct.
// Honors bind:"false" and applies defaults only if the key is unset.
func bootstrapFromEnv(iniPath string, optionalEnv ...string) (string, error) {
	for _, f := range configFields() {
		if f.bind {
			if val := os.Getenv(f.env); val != "" {
				viper.Set(f.key, val)
				continue
			}
		}
		if f.def != "" && !viper.IsSet(f.key) {
			viper.SetDefault(f.key, f.def)
		}
	}

	if viper.GetString(CoreEndpoint) == "" {
		return "", fmt.Errorf("missing %s: set it in env or in %s", CoreEndpoint, IniName)
	}

	envName := resolveEnvName(optionalEnv...)
	if envName == "default" {
		if nm := viper.GetString(CoreName); nm != "" {
			envName = nm
		}
	}
	viper.Set(CurrentEnvironment, envName)

	// skips the well-known refresh for profiles built from env
	viper.Set(IniSource, "env")

	if err := WriteIniFromStruct(iniPath, envName); err != nil {
		return "", fmt.Errorf("write ini failed: %w", err)
	}
	return envName, nil
}

// SDKConfigFromViper builds the SDK configuration from the active profile.
// Unset upload keys are left at zero so WithDefaults can fill them.
func SDKConfigFromViper() (config.Config, error) {
	up := config.UploadConfig{
		Backend:            viper.GetString(UploadBackend),
		PartSize:           viper.GetInt64(UploadPartSize),
		MaxConcurrentParts: viper.GetInt(UploadMaxConcurrentParts),
		MaxAttempts:        viper.GetInt(UploadMaxAttempts),
		ExponentialBackoff: viper.GetBool(UploadExponentialBackoff),
		MaxFileSize:        viper.GetInt64(UploadMaxFileSize),
		AbortOnFailure:     viper.GetBool(UploadAbortOnFailure),
	}
	if s := viper.GetString(UploadRetryBaseDelay); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil {
			return config.Config{}, fmt.Errorf("invalid %s %q: %w", UploadRetryBaseDelay, s, err)
		}
		up.RetryBaseDelay = d
	}

	return config.Config{
		Core: config.CoreConfig{
			BaseURL:           viper.GetString(CoreEndpoint),
			APIVersion:        viper.GetString(CoreApiVersion),
			AccessToken:       viper.GetString(CoreAccessToken),
			BasicAuthUsername: viper.GetString(CoreUser),
			BasicAuthPassword: viper.GetString(CorePassword),
		},
		S3: config.S3Config{
			AccessKey:   viper.GetString(AwsAccessKeyID),
			SecretKey:   viper.GetString(AwsSecretAccessKey),
			AccessToken: viper.GetString(AwsSessionToken),
			Region:      viper.GetString(AwsRegion),
			EndpointURL: viper.GetString(AwsEndpointURL),
			Bucket:      viper.GetString(S3Bucket),
		},
		Upload: up,
		Pipeline: config.PipelineConfig{
			Function: viper.GetString(PipelineFunction),
			TaskKind: viper.GetString(PipelineTaskKind),
		},
	}, nil
}
