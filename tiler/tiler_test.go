package tiler

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func polygonFeature(ring orb.Ring, tags map[string]string) Feature {
	return Feature{Geometry: orb.Polygon{ring}, Tags: tags}
}

func TestBuildTileSet(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Workers = 4

	features := []Feature{
		polygonFeature(squareRing(334010, 6250010, 20), map[string]string{"height": "12m"}),
		polygonFeature(squareRing(334600, 6250200, 30), map[string]string{"building:levels": "3"}),
		polygonFeature(squareRing(335500, 6252500, 40), nil),
		{Geometry: orb.MultiPolygon{
			{squareRing(334100, 6250100, 10)},
			{squareRing(336100, 6250100, 10)},
		}, Tags: map[string]string{"height": "9"}},
	}

	ts, stats, err := BuildTileSet(features, cfg)
	require.NoError(t, err)

	assert.Equal(t, 4, stats.Features)
	assert.Equal(t, 5, stats.Buildings, "multi-polygon contributes two buildings")
	assert.Equal(t, 0, stats.Skipped)
	assert.Equal(t, 1, stats.DefaultHeights)

	// Grid is anchored at the accepted dataset minimum.
	assert.Equal(t, orb.Point{334010, 6250010}, ts.Min)
	assert.Equal(t, 3, ts.Len())
	assert.Equal(t, []TileKey{{0, 0}, {1, 2}, {2, 0}}, ts.Keys())

	cell := ts.Buildings(TileKey{0, 0})
	require.Len(t, cell, 3)
	assert.Equal(t, 12.0, cell[0].Height)
	assert.Equal(t, 15.0, cell[1].Height)
	assert.Equal(t, 9.0, cell[2].Height)
}

func TestBuildTileSetExcludesNonFinite(t *testing.T) {
	cfg := DefaultConfig()

	poisoned := orb.Ring{{0, 0}, {50, math.NaN()}, {50, 50}, {0, 50}, {0, 0}}
	features := []Feature{
		polygonFeature(squareRing(0, 0, 10), nil),
		polygonFeature(poisoned, map[string]string{"height": "30"}),
	}

	ts, stats, err := BuildTileSet(features, cfg)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, 1, stats.Buildings)
	for _, k := range ts.Keys() {
		for _, b := range ts.Buildings(k) {
			for _, pt := range b.Footprint {
				assert.False(t, math.IsNaN(pt[0]) || math.IsNaN(pt[1]),
					"non-finite coordinate must never reach a tile")
			}
			assert.NotEqual(t, 30.0, b.Height, "the poisoned building must be gone entirely")
		}
	}
}

func TestBuildTileSetAOI(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AOI = orb.Polygon{squareRing(0, 0, 1000)}

	features := []Feature{
		polygonFeature(squareRing(100, 100, 10), nil),   // inside
		polygonFeature(squareRing(5000, 5000, 10), nil), // outside
	}

	_, stats, err := BuildTileSet(features, cfg)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Buildings)
	assert.Equal(t, 1, stats.OutsideAOI)
}

func TestBuildTileSetDeterministicAcrossWorkerCounts(t *testing.T) {
	features := make([]Feature, 0, 200)
	for i := 0; i < 200; i++ {
		x := float64(i%20) * 137.5
		y := float64(i/20) * 211.25
		features = append(features, polygonFeature(squareRing(x, y, 12), map[string]string{
			"building:levels": "2",
		}))
	}

	encode := func(workers int) []byte {
		cfg := DefaultConfig()
		cfg.Workers = workers
		ts, _, err := BuildTileSet(features, cfg)
		require.NoError(t, err)
		codec, err := NewCodec(cfg.Compression)
		require.NoError(t, err)
		blob, _, err := EncodePack(ts, codec, workers)
		require.NoError(t, err)
		return blob
	}

	assert.Equal(t, encode(1), encode(8),
		"blob must not depend on goroutine scheduling")
}

func TestBuildTileSetRejectsBadConfig(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"ZeroTileSize", func(c *Config) { c.TileSize = 0 }},
		{"NegativeTileSize", func(c *Config) { c.TileSize = -10 }},
		{"NaNTileSize", func(c *Config) { c.TileSize = math.NaN() }},
		{"ZeroDefaultHeight", func(c *Config) { c.DefaultHeight = 0 }},
		{"NegativeLevelHeight", func(c *Config) { c.LevelHeight = -1 }},
		{"BadCompression", func(c *Config) { c.Compression = "brotli" }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			_, _, err := BuildTileSet(nil, cfg)
			assert.Error(t, err)
		})
	}
}

func TestWriteTileFiles(t *testing.T) {
	dir := t.TempDir()
	ts := NewTileSet(orb.Point{0, 0}, 1000)
	ts.Add(Building{Footprint: squareRing(1500, 2500, 40), Height: 7.5})

	require.NoError(t, WriteTileFiles(ts, dir))

	data, err := os.ReadFile(filepath.Join(dir, "tile_1_2.json"))
	require.NoError(t, err)

	var tf tileFile
	require.NoError(t, json.Unmarshal(data, &tf))
	assert.Equal(t, [2]float64{1000, 2000}, tf.TileOrigin)
	assert.Equal(t, 1000.0, tf.TileSize)
	require.Len(t, tf.Buildings, 1)
	assert.Equal(t, 7.5, tf.Buildings[0].Height)
}

func TestLoadFeatures(t *testing.T) {
	path := filepath.Join(t.TempDir(), "buildings.geojson")
	doc := `{
		"type": "FeatureCollection",
		"features": [
			{
				"type": "Feature",
				"geometry": {"type": "Polygon", "coordinates": [[[0,0],[10,0],[10,10],[0,10],[0,0]]]},
				"properties": {"height": "12m", "building": "yes", "levels_guess": 3, "ignored": ["a"]}
			}
		]
	}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	features, err := LoadFeatures(path)
	require.NoError(t, err)
	require.Len(t, features, 1)

	assert.IsType(t, orb.Polygon{}, features[0].Geometry)
	assert.Equal(t, "12m", features[0].Tags["height"])
	assert.Equal(t, "3", features[0].Tags["levels_guess"])
	assert.NotContains(t, features[0].Tags, "ignored")
}
