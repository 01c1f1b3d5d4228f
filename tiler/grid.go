package tiler

import (
	"fmt"
	"math"
	"sort"

	"github.com/paulmach/orb"
)

// TileKey identifies one grid cell. Cells are half-open on both axes:
// [origin, origin+size), so a centroid exactly on a boundary belongs to the
// cell with the larger index. Previously generated packs depend on this
// convention, so it must not change.
type TileKey struct {
	IX, IY int
}

// String renders the key in the "ix,iy" form used by the pack index.
func (k TileKey) String() string {
	return fmt.Sprintf("%d,%d", k.IX, k.IY)
}

// ParseTileKey parses the "ix,iy" form.
func ParseTileKey(s string) (TileKey, error) {
	var k TileKey
	if _, err := fmt.Sscanf(s, "%d,%d", &k.IX, &k.IY); err != nil {
		return TileKey{}, fmt.Errorf("invalid tile key %q: %w", s, err)
	}
	return k, nil
}

// Less orders keys ascending by (ix, iy), the mandatory pack write order.
func (k TileKey) Less(o TileKey) bool {
	if k.IX != o.IX {
		return k.IX < o.IX
	}
	return k.IY < o.IY
}

// TileIndex maps a centroid to its grid cell, relative to the dataset
// minimum bound. Pure: identical inputs always yield the identical key.
func TileIndex(c orb.Point, min orb.Point, size float64) TileKey {
	return TileKey{
		IX: int(math.Floor((c[0] - min[0]) / size)),
		IY: int(math.Floor((c[1] - min[1]) / size)),
	}
}

// TileOrigin is the minimum corner of a cell in dataset coordinates.
func TileOrigin(k TileKey, min orb.Point, size float64) orb.Point {
	return orb.Point{min[0] + float64(k.IX)*size, min[1] + float64(k.IY)*size}
}

// TileSet groups buildings by tile key. Tiles exist only while they hold at
// least one building; empty tiles are never materialized. Within a tile,
// buildings keep the order they were added in.
type TileSet struct {
	Min  orb.Point
	Size float64

	tiles map[TileKey][]Building
}

// NewTileSet creates an empty grouping anchored at min with the given cell
// size.
func NewTileSet(min orb.Point, size float64) *TileSet {
	return &TileSet{Min: min, Size: size, tiles: make(map[TileKey][]Building)}
}

// Add assigns one building to the cell containing its centroid. A building
// straddling a cell boundary goes wholly to its centroid's cell; it is never
// split or duplicated, even if parts of it extend past the cell bounds.
func (ts *TileSet) Add(b Building) TileKey {
	key := TileIndex(ringCentroid(b.Footprint), ts.Min, ts.Size)
	ts.tiles[key] = append(ts.tiles[key], b)
	return key
}

// Keys returns all non-empty cell keys in ascending (ix, iy) order.
func (ts *TileSet) Keys() []TileKey {
	keys := make([]TileKey, 0, len(ts.tiles))
	for k := range ts.tiles {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	return keys
}

// Buildings returns the buildings grouped into one cell.
func (ts *TileSet) Buildings(k TileKey) []Building {
	return ts.tiles[k]
}

// Len is the number of non-empty tiles.
func (ts *TileSet) Len() int {
	return len(ts.tiles)
}
