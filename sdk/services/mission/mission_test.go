// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package mission

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/scc-digitalhub/survey-cli-sdk/sdk/config"
	"github.com/scc-digitalhub/survey-cli-sdk/sdk/services/terrain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePlatform keeps missions of project p1 in memory.
type fakePlatform struct {
	srv *httptest.Server

	mu       sync.Mutex
	missions []Mission
	deletes  []string // raw queries
	pageSize int
}

func newFakePlatform(t *testing.T) *fakePlatform {
	fp := &fakePlatform{pageSize: 2}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/-/p1/missions", func(w http.ResponseWriter, r *http.Request) {
		var m Mission
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&m))
		m.Status = MissionStatus{State: StateCreated}
		fp.mu.Lock()
		fp.missions = append(fp.missions, m)
		fp.mu.Unlock()
		_ = json.NewEncoder(w).Encode(m)
	})
	mux.HandleFunc("GET /api/v1/-/p1/missions", func(w http.ResponseWriter, r *http.Request) {
		fp.mu.Lock()
		defer fp.mu.Unlock()
		var match []Mission
		for _, m := range fp.missions {
			if n := r.URL.Query().Get("name"); n == "" || n == m.Name {
				match = append(match, m)
			}
		}
		pg, _ := strconv.Atoi(r.URL.Query().Get("page"))
		total := (len(match) + fp.pageSize - 1) / fp.pageSize
		lo := min(pg*fp.pageSize, len(match))
		hi := min(lo+fp.pageSize, len(match))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"content":    match[lo:hi],
			"pageable":   map[string]any{"pageNumber": pg},
			"totalPages": total,
		})
	})
	mux.HandleFunc("GET /api/v1/-/p1/missions/{id}", func(w http.ResponseWriter, r *http.Request) {
		fp.mu.Lock()
		defer fp.mu.Unlock()
		for _, m := range fp.missions {
			if m.ID == r.PathValue("id") {
				_ = json.NewEncoder(w).Encode(m)
				return
			}
		}
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"no such mission"}`))
	})
	mux.HandleFunc("PUT /api/v1/-/p1/missions/{id}", func(w http.ResponseWriter, r *http.Request) {
		var m Mission
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&m))
		assert.Equal(t, r.PathValue("id"), m.ID)
		m.Status = MissionStatus{State: StateCreated}
		_ = json.NewEncoder(w).Encode(m)
	})
	del := func(w http.ResponseWriter, r *http.Request) {
		fp.mu.Lock()
		fp.deletes = append(fp.deletes, r.URL.Path+"?"+r.URL.RawQuery)
		fp.mu.Unlock()
	}
	mux.HandleFunc("DELETE /api/v1/-/p1/missions", del)
	mux.HandleFunc("DELETE /api/v1/-/p1/missions/{id}", del)
	fp.srv = httptest.NewServer(mux)
	t.Cleanup(fp.srv.Close)
	return fp
}

func (fp *fakePlatform) service(store *fakeStore) *MissionService {
	return &MissionService{
		http: config.NewHTTPCore(fp.srv.Client(), config.CoreConfig{BaseURL: fp.srv.URL, APIVersion: "v1"}),
		s3:   store,
		out:  io.Discard,
		log:  zerolog.Nop(),
	}
}

func testParameters() *FlightParameters {
	return &FlightParameters{
		Area:         []Coordinate{{46.07, 11.12}, {46.08, 11.12}, {46.08, 11.14}},
		Altitude:     80,
		Speed:        8,
		FrontOverlap: 80,
		SideOverlap:  70,
	}
}

func TestCreateFromParameters(t *testing.T) {
	fp := newFakePlatform(t)
	svc := fp.service(nil)

	m, err := svc.Create(context.Background(), CreateRequest{Project: "p1", Name: "vineyard", Parameters: testParameters()})
	require.NoError(t, err)

	assert.Len(t, m.ID, 32)
	assert.Equal(t, "vineyard", m.Name)
	assert.Equal(t, KindMission, m.Kind)
	assert.Equal(t, "p1", m.Project)
	assert.Equal(t, StateCreated, m.Status.State)
	assert.Equal(t, 80.0, m.Spec.Altitude)
	assert.Len(t, m.Spec.Area, 3)
}

func TestCreateFromYAML(t *testing.T) {
	fp := newFakePlatform(t)
	svc := fp.service(nil)

	def := `id: keep-me
name: quarry
user: someone
spec:
  area:
    - {lat: 46.0, lon: 11.0}
    - {lat: 46.1, lon: 11.0}
    - {lat: 46.1, lon: 11.1}
  altitude: 100
  speed: 10
  front_overlap: 75
  side_overlap: 65
  terrain_follow: true
  path: s3://stale/path.kml
status:
  state: READY
`
	p := filepath.Join(t.TempDir(), "mission.yaml")
	require.NoError(t, os.WriteFile(p, []byte(def), 0o644))

	m, err := svc.Create(context.Background(), CreateRequest{Project: "p1", FilePath: p})
	require.NoError(t, err)
	assert.Equal(t, "keep-me", m.ID)
	assert.True(t, m.Spec.TerrainFollow)
	assert.Empty(t, m.Spec.Path, "server-managed fields are dropped")
	assert.Equal(t, StateCreated, m.Status.State)

	m, err = svc.Create(context.Background(), CreateRequest{Project: "p1", FilePath: p, ResetID: true})
	require.NoError(t, err)
	assert.NotEqual(t, "keep-me", m.ID)
}

func TestCreateSamplesTerrain(t *testing.T) {
	fp := newFakePlatform(t)
	svc := fp.service(nil)
	var calls atomic.Int32
	svc.terrain = terrain.NewCache(terrain.FetcherFunc(func(_ context.Context, p terrain.Point) (float64, error) {
		calls.Add(1)
		return p.Lon * 10, nil
	}))

	params := testParameters()
	params.Area = append(params.Area, params.Area[0])
	params.TerrainFollow = true
	m, err := svc.Create(context.Background(), CreateRequest{Project: "p1", Name: "ridge", Parameters: params})
	require.NoError(t, err)

	require.Len(t, m.Spec.Elevations, 4)
	assert.InDelta(t, 111.2, m.Spec.Elevations[0], 1e-9)
	assert.InDelta(t, 111.4, m.Spec.Elevations[2], 1e-9)
	assert.Equal(t, m.Spec.Elevations[0], m.Spec.Elevations[3])
	assert.Equal(t, int32(3), calls.Load(), "repeated vertex served from cache")

	// without terrain following nothing is sampled
	m, err = svc.Create(context.Background(), CreateRequest{Project: "p1", Name: "flat", Parameters: testParameters()})
	require.NoError(t, err)
	assert.Empty(t, m.Spec.Elevations)
}

func TestCreateValidates(t *testing.T) {
	svc := newFakePlatform(t).service(nil)

	bad := testParameters()
	bad.Altitude = 500
	bad.Area = bad.Area[:2]
	_, err := svc.Create(context.Background(), CreateRequest{Project: "p1", Name: "x", Parameters: bad})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "altitude")
	assert.Contains(t, err.Error(), "3 vertices")

	_, err = svc.Create(context.Background(), CreateRequest{Project: "p1", Parameters: testParameters()})
	require.Error(t, err)
	_, err = svc.Create(context.Background(), CreateRequest{Name: "x", Parameters: testParameters()})
	require.Error(t, err)
	_, err = svc.Create(context.Background(), CreateRequest{Project: "p1", Name: "x"})
	require.Error(t, err)
}

func TestGetListUpdateDelete(t *testing.T) {
	fp := newFakePlatform(t)
	svc := fp.service(nil)
	ctx := context.Background()

	var ids []string
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		m, err := svc.Create(ctx, CreateRequest{Project: "p1", Name: name, Parameters: testParameters()})
		require.NoError(t, err)
		ids = append(ids, m.ID)
	}

	all, err := svc.ListAllPages(ctx, ListRequest{Project: "p1"})
	require.NoError(t, err)
	require.Len(t, all, 5)
	assert.Equal(t, "e", all[4].Name)

	byID, err := svc.Get(ctx, GetRequest{Project: "p1", ID: ids[2]})
	require.NoError(t, err)
	byName, err := svc.Get(ctx, GetRequest{Project: "p1", Name: "c"})
	require.NoError(t, err)
	assert.Equal(t, byID.ID, byName.ID)

	_, err = svc.Get(ctx, GetRequest{Project: "p1", Name: "zz"})
	require.ErrorIs(t, err, ErrNotFound)

	var serr *config.StatusError
	_, err = svc.Get(ctx, GetRequest{Project: "p1", ID: "missing"})
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, http.StatusNotFound, serr.StatusCode)
	assert.ErrorIs(t, err, ErrNotFound)

	byID.Spec.Altitude = 60
	updated, err := svc.Update(ctx, byID)
	require.NoError(t, err)
	assert.Equal(t, 60.0, updated.Spec.Altitude)

	byID.Spec.Speed = 0
	_, err = svc.Update(ctx, byID)
	require.Error(t, err)

	require.NoError(t, svc.Delete(ctx, DeleteRequest{Project: "p1", ID: ids[0]}))
	require.NoError(t, svc.Delete(ctx, DeleteRequest{Project: "p1", Name: "b", Cascade: true}))
	require.Error(t, svc.Delete(ctx, DeleteRequest{Project: "p1"}))
	assert.Equal(t, []string{
		"/api/v1/-/p1/missions/" + ids[0] + "?cascade=false",
		"/api/v1/-/p1/missions?cascade=true&name=b&versions=all",
	}, fp.deletes)
}
