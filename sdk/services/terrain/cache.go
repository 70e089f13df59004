// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package terrain

import (
	"context"
	"fmt"
	"math"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Lookups are rounded to 5 decimals, about one metre at the equator.
const precision = 1e5

// maxInFlight bounds the concurrent fetches issued by Elevations.
const maxInFlight = 8

type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Fetcher resolves the ground elevation in metres of a single point.
type Fetcher interface {
	Elevation(ctx context.Context, p Point) (float64, error)
}

type FetcherFunc func(ctx context.Context, p Point) (float64, error)

func (f FetcherFunc) Elevation(ctx context.Context, p Point) (float64, error) { return f(ctx, p) }

type key struct{ lat, lon int64 }

func keyOf(p Point) key {
	return key{int64(math.Round(p.Lat * precision)), int64(math.Round(p.Lon * precision))}
}

func (k key) point() Point {
	return Point{float64(k.lat) / precision, float64(k.lon) / precision}
}

func (k key) String() string { return fmt.Sprintf("%d,%d", k.lat, k.lon) }

// Cache memoizes elevations for its own lifetime. Entries are never
// evicted; errors are not cached. Concurrent lookups of the same rounded
// point share one fetch.
type Cache struct {
	fetcher Fetcher
	group   singleflight.Group

	mu     sync.RWMutex
	values map[key]float64
}

func NewCache(f Fetcher) *Cache {
	return &Cache{fetcher: f, values: make(map[key]float64)}
}

// Elevation returns the elevation of p rounded to the cache precision.
// A shared fetch runs with the context of the caller that started it.
func (c *Cache) Elevation(ctx context.Context, p Point) (float64, error) {
	k := keyOf(p)
	if v, ok := c.lookup(k); ok {
		return v, nil
	}

	v, err, _ := c.group.Do(k.String(), func() (any, error) {
		// a concurrent flight may have just stored it
		if v, ok := c.lookup(k); ok {
			return v, nil
		}
		e, err := c.fetcher.Elevation(ctx, k.point())
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.values[k] = e
		c.mu.Unlock()
		return e, nil
	})
	if err != nil {
		return 0, fmt.Errorf("elevation at %.5f,%.5f: %w", p.Lat, p.Lon, err)
	}
	return v.(float64), nil
}

// Elevations resolves points concurrently, keeping their order.
func (c *Cache) Elevations(ctx context.Context, points []Point) ([]float64, error) {
	out := make([]float64, len(points))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxInFlight)
	for i, p := range points {
		g.Go(func() error {
			v, err := c.Elevation(gctx, p)
			if err != nil {
				return err
			}
			out[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Len returns the number of cached points.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.values)
}

func (c *Cache) lookup(k key) (float64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.values[k]
	return v, ok
}
