// Package tiler turns building footprints in a planar coordinate reference
// into a spatially partitioned, compressed, randomly accessible pack. The
// whole pipeline is a pure function of its input and configuration: two runs
// over identical data produce byte-identical artifacts.
package tiler

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	log "github.com/sirupsen/logrus"
)

// Feature is one raw input record: a footprint geometry already projected
// into planar meters, plus its free-form attribute tags.
type Feature struct {
	Geometry orb.Geometry
	Tags     map[string]string
}

// Stats summarizes one run. Skipped counts are informational; a noisy
// dataset drops records but never fails the run.
type Stats struct {
	Features       int // input features seen
	Buildings      int // footprints that made it into a tile
	Skipped        int // geometries dropped as invalid
	OutsideAOI     int // footprints dropped by the AOI filter
	DefaultHeights int // buildings that fell through to the default height
	Tiles          int // non-empty tiles
}

// prepared is one accepted footprint with enough bookkeeping to restore
// input order after parallel fan-in.
type prepared struct {
	seq      int // input feature index
	sub      int // ring index within a multi-polygon
	building Building
}

// BuildTileSet runs the normalize/estimate/group stages over all input
// features and returns the tile grouping. Normalization and height
// estimation run on a worker pool; records are re-sorted into input order
// before grouping so tile contents do not depend on scheduling.
func BuildTileSet(features []Feature, cfg Config) (*TileSet, *Stats, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	stats := &Stats{Features: len(features)}

	var (
		mu   sync.Mutex
		recs []prepared
	)

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < cfg.workers(); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				out, skipped, outside, defaulted := prepareFeature(i, features[i], cfg)
				mu.Lock()
				recs = append(recs, out...)
				stats.Skipped += skipped
				stats.OutsideAOI += outside
				stats.DefaultHeights += defaulted
				mu.Unlock()
			}
		}()
	}
	for i := range features {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	// Restore deterministic order regardless of worker scheduling.
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].seq != recs[j].seq {
			return recs[i].seq < recs[j].seq
		}
		return recs[i].sub < recs[j].sub
	})

	buildings := make([]Building, len(recs))
	for i, r := range recs {
		buildings[i] = r.building
	}
	bound := datasetBound(buildings)

	ts := NewTileSet(bound.Min, cfg.TileSize)
	for _, r := range recs {
		ts.Add(r.building)
	}
	stats.Buildings = len(recs)
	stats.Tiles = ts.Len()

	log.WithFields(log.Fields{
		"features":  stats.Features,
		"buildings": stats.Buildings,
		"skipped":   stats.Skipped,
		"tiles":     stats.Tiles,
	}).Info("grouped buildings into tiles")
	return ts, stats, nil
}

// prepareFeature normalizes one input feature into zero or more prepared
// footprints. All failures here are per-record and non-fatal.
func prepareFeature(seq int, f Feature, cfg Config) (out []prepared, skipped, outside, defaulted int) {
	rings, skips := exteriorRings(f.Geometry)
	for _, reason := range skips {
		log.WithFields(log.Fields{"feature": seq, "reason": reason}).Debug("skipped geometry")
		skipped++
	}
	if len(rings) == 0 {
		return out, skipped, outside, defaulted
	}

	height, rule := estimateHeight(f.Tags, cfg.DefaultHeight, cfg.LevelHeight)
	if rule == ruleDefault {
		log.WithFields(log.Fields{"feature": seq, "height": height}).Debug("height fell back to default")
		defaulted++
	}

	for sub, ring := range rings {
		if cfg.AOI != nil && !planar.PolygonContains(cfg.AOI, ringCentroid(ring)) {
			log.WithFields(log.Fields{"feature": seq, "reason": skipOutsideAOI}).Debug("skipped geometry")
			outside++
			continue
		}
		out = append(out, prepared{seq: seq, sub: sub, building: Building{Footprint: ring, Height: height}})
	}
	return out, skipped, outside, defaulted
}

// tileFile is the uncompressed output mode: one JSON document per tile,
// self-describing enough for a client to place it in world space.
type tileFile struct {
	TileOrigin [2]float64 `json:"tile_origin"`
	TileSize   float64    `json:"tile_size"`
	Buildings  []Building `json:"buildings"`
}

// WriteTileFiles writes one tile_<ix>_<iy>.json per non-empty tile. Write
// failures are fatal, as with the packed mode.
func WriteTileFiles(ts *TileSet, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	for _, k := range ts.Keys() {
		origin := TileOrigin(k, ts.Min, ts.Size)
		data, err := json.Marshal(tileFile{
			TileOrigin: [2]float64{origin[0], origin[1]},
			TileSize:   ts.Size,
			Buildings:  ts.Buildings(k),
		})
		if err != nil {
			return fmt.Errorf("encode tile %s: %w", k, err)
		}
		path := filepath.Join(dir, fmt.Sprintf("tile_%d_%d.json", k.IX, k.IY))
		if err := atomicWriteFile(path, data); err != nil {
			return fmt.Errorf("write tile %s: %w", k, err)
		}
	}
	log.WithFields(log.Fields{"tiles": ts.Len(), "dir": dir}).Info("wrote tile files")
	return nil
}
