// Command buildings-tiler groups a GeoJSON dataset of building footprints
// (already projected to planar meters) into grid tiles and writes either a
// compressed pack + index or one JSON file per tile.
package main

import (
	"flag"
	"path/filepath"

	log "github.com/sirupsen/logrus"

	"github.com/tom-max-lawson/transit-map-generator/tiler"
)

func main() {
	var (
		input       = flag.String("input", "", "input GeoJSON FeatureCollection (planar meters)")
		outDir      = flag.String("out", "packed_buildings", "output directory")
		mode        = flag.String("mode", "packed", "output mode: packed or tiles")
		tileSize    = flag.Float64("tile-size", 1000.0, "tile edge length in meters")
		defHeight   = flag.Float64("default-height", 5.0, "fallback building height in meters")
		levelHeight = flag.Float64("level-height", 5.0, "assumed height of one storey in meters")
		compression = flag.String("compression", "zlib", "tile codec for packed mode: zlib or zstd")
		aoiPath     = flag.String("aoi", "", "optional GeoJSON polygon restricting the area of interest")
		workers     = flag.Int("workers", 0, "worker goroutines (0 = NumCPU)")
		verbose     = flag.Bool("v", false, "log per-record skips")
	)
	flag.Parse()

	if *verbose {
		log.SetLevel(log.DebugLevel)
	}
	if *input == "" {
		log.Fatal("missing required -input")
	}

	cfg := tiler.Config{
		TileSize:      *tileSize,
		DefaultHeight: *defHeight,
		LevelHeight:   *levelHeight,
		Compression:   *compression,
		Workers:       *workers,
	}
	if *aoiPath != "" {
		aoi, err := tiler.LoadAOI(*aoiPath)
		if err != nil {
			log.Fatal(err)
		}
		cfg.AOI = aoi
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}

	log.WithField("input", *input).Info("loading features")
	features, err := tiler.LoadFeatures(*input)
	if err != nil {
		log.Fatal(err)
	}

	ts, stats, err := tiler.BuildTileSet(features, cfg)
	if err != nil {
		log.Fatal(err)
	}
	if stats.Skipped > 0 {
		log.WithField("skipped", stats.Skipped).Warn("dropped invalid geometries")
	}

	switch *mode {
	case "packed":
		packPath := filepath.Join(*outDir, "buildings.pack")
		indexPath := filepath.Join(*outDir, "buildings.index.json")
		if err := tiler.WritePack(ts, cfg, packPath, indexPath); err != nil {
			log.Fatal(err)
		}
	case "tiles":
		if err := tiler.WriteTileFiles(ts, *outDir); err != nil {
			log.Fatal(err)
		}
	default:
		log.Fatalf("unknown mode %q (want packed or tiles)", *mode)
	}

	log.WithFields(log.Fields{
		"buildings":       stats.Buildings,
		"tiles":           stats.Tiles,
		"default_heights": stats.DefaultHeights,
	}).Info("done")
}
