// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package mission

import (
	"errors"
	"fmt"
)

const (
	KindMission = "mission"

	StateCreated = "CREATED"
	StateReady   = "READY"
	StateError   = "ERROR"

	MaxAltitude = 120.0 // metres above takeoff
	MaxSpeed    = 15.0  // m/s
)

type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// FlightParameters describe the survey area and how it is flown.
type FlightParameters struct {
	Area          []Coordinate `json:"area"`
	Altitude      float64      `json:"altitude"`
	Speed         float64      `json:"speed"`
	FrontOverlap  int          `json:"front_overlap"`
	SideOverlap   int          `json:"side_overlap"`
	Heading       float64      `json:"heading,omitempty"`
	Camera        string       `json:"camera,omitempty"`
	TerrainFollow bool         `json:"terrain_follow,omitempty"`
}

func (p FlightParameters) Validate() error {
	var errs []error
	if len(p.Area) < 3 {
		errs = append(errs, fmt.Errorf("area needs at least 3 vertices, got %d", len(p.Area)))
	}
	for i, c := range p.Area {
		if c.Lat < -90 || c.Lat > 90 || c.Lon < -180 || c.Lon > 180 {
			errs = append(errs, fmt.Errorf("vertex %d out of range: %v,%v", i, c.Lat, c.Lon))
		}
	}
	if p.Altitude <= 0 || p.Altitude > MaxAltitude {
		errs = append(errs, fmt.Errorf("altitude must be in (0, %v] m", MaxAltitude))
	}
	if p.Speed <= 0 || p.Speed > MaxSpeed {
		errs = append(errs, fmt.Errorf("speed must be in (0, %v] m/s", MaxSpeed))
	}
	if p.FrontOverlap < 0 || p.FrontOverlap > 95 {
		errs = append(errs, errors.New("front overlap must be a percentage up to 95"))
	}
	if p.SideOverlap < 0 || p.SideOverlap > 95 {
		errs = append(errs, errors.New("side overlap must be a percentage up to 95"))
	}
	if p.Heading < 0 || p.Heading >= 360 {
		errs = append(errs, errors.New("heading must be in [0, 360)"))
	}
	return errors.Join(errs...)
}

type MissionSpec struct {
	FlightParameters
	// ground elevation of each area vertex, sampled for terrain following
	Elevations []float64 `json:"elevations,omitempty"`
	// set by the platform once the flight path is generated
	Path string `json:"path,omitempty"`
}

type FileInfo struct {
	Path         string `json:"path"`
	Name         string `json:"name,omitempty"`
	ContentType  string `json:"content_type,omitempty"`
	Size         int64  `json:"size,omitempty"`
	LastModified string `json:"last_modified,omitempty"`
}

type MissionStatus struct {
	State   string     `json:"state,omitempty"`
	Message string     `json:"message,omitempty"`
	Files   []FileInfo `json:"files,omitempty"`
}

type Mission struct {
	ID       string         `json:"id,omitempty"`
	Name     string         `json:"name"`
	Kind     string         `json:"kind"`
	Project  string         `json:"project"`
	Spec     MissionSpec    `json:"spec"`
	Status   MissionStatus  `json:"status,omitzero"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// page is the platform's paged listing.
type page[T any] struct {
	Content  []T `json:"content"`
	Pageable struct {
		PageNumber int `json:"pageNumber"`
	} `json:"pageable"`
	TotalPages int `json:"totalPages"`
}

type CreateRequest struct {
	Project string

	// either a YAML definition...
	FilePath string
	ResetID  bool
	// ...or a name and its parameters
	Name       string
	Parameters *FlightParameters
}

type GetRequest struct {
	Project string
	ID      string
	Name    string
}

type ListRequest struct {
	Project string
	Params  map[string]string
}

type DeleteRequest struct {
	Project string
	ID      string
	Name    string
	Cascade bool
}

type DownloadRequest struct {
	Project     string
	ID          string
	Name        string
	Destination string
}

type DownloadInfo struct {
	Filename string `json:"filename" yaml:"filename"`
	Size     int64  `json:"size"     yaml:"size"`
	Path     string `json:"path"     yaml:"path"`
}
