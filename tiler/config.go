package tiler

import (
	"fmt"
	"math"
	"runtime"

	"github.com/paulmach/orb"
)

// Compression algorithm names accepted by Config.Compression.
const (
	CompressionZlib = "zlib"
	CompressionZstd = "zstd"
)

// Config holds every knob for one tiling run. A Config is built once by the
// caller, validated, and then treated as immutable for the rest of the run.
type Config struct {
	// TileSize is the grid cell edge length in coordinate units (meters).
	TileSize float64

	// DefaultHeight is used when no height can be derived from a building's
	// tags. E.g. 5.0 works for mostly 1-storey cities; a place like Paris
	// would want a higher default.
	DefaultHeight float64

	// LevelHeight is the assumed height of one storey, used when only a
	// level count is tagged.
	LevelHeight float64

	// Compression selects the tile codec for packed output: "zlib" or "zstd".
	Compression string

	// AOI optionally restricts the run to buildings whose centroid falls
	// inside this polygon. Nil means no restriction.
	AOI orb.Polygon

	// Workers is the number of goroutines normalizing input features.
	// Zero or negative means runtime.NumCPU().
	Workers int
}

// DefaultConfig returns the settings the original Sydney export used.
func DefaultConfig() Config {
	return Config{
		TileSize:      1000.0,
		DefaultHeight: 5.0,
		LevelHeight:   5.0,
		Compression:   CompressionZlib,
	}
}

// Validate reports the first configuration error, or nil. All failures here
// are fatal: a run must never start with a config that cannot finish.
func (c Config) Validate() error {
	if !(c.TileSize > 0) || math.IsInf(c.TileSize, 0) {
		return fmt.Errorf("config: tile size must be positive and finite, got %v", c.TileSize)
	}
	if !(c.DefaultHeight > 0) || math.IsInf(c.DefaultHeight, 0) {
		return fmt.Errorf("config: default height must be positive and finite, got %v", c.DefaultHeight)
	}
	if !(c.LevelHeight > 0) || math.IsInf(c.LevelHeight, 0) {
		return fmt.Errorf("config: level height must be positive and finite, got %v", c.LevelHeight)
	}
	switch c.Compression {
	case CompressionZlib, CompressionZstd:
	default:
		return fmt.Errorf("config: unknown compression %q (want %q or %q)",
			c.Compression, CompressionZlib, CompressionZstd)
	}
	return nil
}

func (c Config) workers() int {
	if c.Workers <= 0 {
		return runtime.NumCPU()
	}
	return c.Workers
}
