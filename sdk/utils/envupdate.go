// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package utils

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

const wellKnownPath = "/.well-known/configuration"

// CheckUpdateEnvironment refreshes the platform-advertised settings when
// the stored timestamp is missing, invalid or older than the TTL.
// Profiles bootstrapped from env are never refreshed.
func CheckUpdateEnvironment(ctx context.Context) error {
	if viper.GetString(IniSource) == "env" {
		log.Debug().Msg("profile built from env, skipping refresh")
		return nil
	}

	val := viper.GetString(UpdatedEnvKey)
	if val == "" {
		return updateEnvironment(ctx)
	}

	t, err := time.Parse(time.RFC3339, val)
	if err != nil {
		log.Debug().Err(err).Str(UpdatedEnvKey, val).Msg("invalid timestamp")
		return updateEnvironment(ctx)
	}

	age := time.Since(t.UTC())
	ttl := time.Duration(outdatedAfterHours) * time.Hour
	if age >= ttl {
		log.Debug().Dur("age", age).Dur("ttl", ttl).Msg("profile outdated")
		return updateEnvironment(ctx)
	}
	return nil
}

// Fetch well-known, update Viper, bump timestamp, persist allowlisted keys.
func updateEnvironment(ctx context.Context) error {
	baseEndpoint := viper.GetString(CoreEndpoint)
	if baseEndpoint == "" {
		return fmt.Errorf("%s is empty", CoreEndpoint)
	}

	cfg, err := FetchConfig(ctx, baseEndpoint+wellKnownPath)
	if err != nil {
		return fmt.Errorf("config fetch failed: %w", err)
	}
	for k, v := range cfg {
		viper.Set(k, ReflectValue(v))
	}
	viper.Set(UpdatedEnvKey, time.Now().UTC().Format(time.RFC3339))

	env := viper.GetString(CurrentEnvironment)
	if env == "" {
		env = resolveEnvName()
	}
	if err := UpdateIniFromStruct(getIniPath(), env); err != nil {
		return fmt.Errorf("failed to save ini: %w", err)
	}
	log.Info().Str("env", env).Msg("environment updated")
	return nil
}
