// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package terrain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/scc-digitalhub/survey-cli-sdk/sdk/config"
)

// CoreFetcher asks the platform terrain service, GET /terrain/elevation.
type CoreFetcher struct {
	http config.CoreHTTP
}

func NewCoreFetcher(http config.CoreHTTP) *CoreFetcher {
	return &CoreFetcher{http: http}
}

func (f *CoreFetcher) Elevation(ctx context.Context, p Point) (float64, error) {
	url := f.http.BuildURL("", "terrain", "elevation", map[string]string{
		"lat": strconv.FormatFloat(p.Lat, 'f', 5, 64),
		"lon": strconv.FormatFloat(p.Lon, 'f', 5, 64),
	})
	body, status, err := f.http.Do(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("terrain request failed (status %d): %w", status, err)
	}

	var resp struct {
		Elevation *float64 `json:"elevation"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("json parsing failed: %w", err)
	}
	if resp.Elevation == nil {
		return 0, errors.New("no elevation in response")
	}
	return *resp.Elevation, nil
}
