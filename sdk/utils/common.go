// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package utils

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"strings"

	"gopkg.in/ini.v1"
)

func getIniPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, IniName)
}

// LoadIni reads the profile file. A missing file is an error unless
// createOnMissing is set.
func LoadIni(createOnMissing bool) (*ini.File, error) {
	cfg, err := ini.Load(getIniPath())
	if err != nil {
		if !createOnMissing {
			return nil, fmt.Errorf("failed to read ini file: %w", err)
		}
		return ini.Empty(), nil
	}
	return cfg, nil
}

func SaveIni(cfg *ini.File) error {
	if err := cfg.SaveTo(getIniPath()); err != nil {
		return fmt.Errorf("failed to update ini file: %w", err)
	}
	return nil
}

// ReflectValue flattens a decoded JSON value into the string form stored in the profile.
func ReflectValue(v any) string {
	f := reflect.ValueOf(v)
	switch f.Kind() {
	case reflect.String:
		return f.String()
	case reflect.Int, reflect.Int64:
		return fmt.Sprint(f.Int())
	case reflect.Float64:
		return fmt.Sprint(f.Float())
	case reflect.Bool:
		return fmt.Sprint(f.Bool())
	case reflect.Slice:
		var s []string
		for i := 0; i < f.Len(); i++ {
			if el, ok := f.Index(i).Interface().(string); ok {
				s = append(s, el)
			}
		}
		return strings.Join(s, ",")
	default:
		return ""
	}
}

// TranslateEndpoint maps a resource alias (e.g. "flight") to its endpoint.
func TranslateEndpoint(resource string) (string, error) {
	for key, val := range Resources {
		if key == resource || slices.Contains(val, resource) {
			return key, nil
		}
	}
	return "", fmt.Errorf("resource %q is not supported", resource)
}

// GetFirstIfList unwraps a paged response to its first element.
func GetFirstIfList(m map[string]any) (map[string]any, error) {
	content, ok := m["content"].([]any)
	if !ok {
		return m, nil
	}
	if len(content) == 0 {
		return nil, errors.New("resource not found")
	}
	first, ok := content[0].(map[string]any)
	if !ok {
		return nil, errors.New("unexpected content element")
	}
	return first, nil
}

func GetStringValue(m map[string]any, key string) string {
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}

func FetchConfig(ctx context.Context, configURL string) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, configURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("core returned a non-200 status code: %v", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var cfg map[string]any
	if err := json.Unmarshal(body, &cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ResponseState extracts status.state from an entity returned by the platform.
func ResponseState(resp []byte) (string, error) {
	var m struct {
		Status struct {
			State string `json:"state"`
		} `json:"status"`
	}
	if err := json.Unmarshal(resp, &m); err != nil {
		return "", err
	}
	if m.Status.State == "" {
		return "", errors.New("response carries no state")
	}
	return m.Status.State, nil
}

func PrettyJSON(b []byte) string {
	var out bytes.Buffer
	if err := json.Indent(&out, b, "", "  "); err != nil {
		return string(b) // fallback non indentato
	}
	return out.String()
}
