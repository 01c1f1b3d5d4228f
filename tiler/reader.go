package tiler

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/edsrzf/mmap-go"
)

// PackReader gives random access to the tiles of a committed pack. The blob
// is memory-mapped, so reading one tile touches only that tile's bytes; the
// whole dataset is never loaded.
type PackReader struct {
	file  *os.File
	data  mmap.MMap
	index PackIndex
	keys  []TileKey
	codec Codec
}

// OpenPack maps a pack blob and parses its index. compression must match
// the algorithm the pack was written with.
func OpenPack(packPath, indexPath, compression string) (*PackReader, error) {
	codec, err := NewCodec(compression)
	if err != nil {
		return nil, err
	}

	indexData, err := os.ReadFile(indexPath)
	if err != nil {
		return nil, fmt.Errorf("read index: %w", err)
	}
	var index PackIndex
	if err := json.Unmarshal(indexData, &index); err != nil {
		return nil, fmt.Errorf("parse index: %w", err)
	}

	f, err := os.Open(packPath)
	if err != nil {
		return nil, fmt.Errorf("open pack: %w", err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat pack: %w", err)
	}
	// A run over an empty dataset commits a zero-byte blob, which cannot
	// be mapped.
	var data mmap.MMap
	if fi.Size() > 0 {
		data, err = mmap.Map(f, mmap.RDONLY, 0)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("mmap pack: %w", err)
		}
	}

	keys := make([]TileKey, 0, len(index))
	for s := range index {
		k, err := ParseTileKey(s)
		if err != nil {
			if data != nil {
				data.Unmap()
			}
			f.Close()
			return nil, err
		}
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })

	return &PackReader{file: f, data: data, index: index, keys: keys, codec: codec}, nil
}

// Keys lists every tile in the pack in ascending (ix, iy) order.
func (r *PackReader) Keys() []TileKey {
	return r.keys
}

// Entry returns the index entry for a key.
func (r *PackReader) Entry(k TileKey) (IndexEntry, bool) {
	e, ok := r.index[k.String()]
	return e, ok
}

// TileData returns one tile's canonical (decompressed) encoding.
func (r *PackReader) TileData(k TileKey) ([]byte, error) {
	e, ok := r.index[k.String()]
	if !ok {
		return nil, fmt.Errorf("tile %s not in pack", k)
	}
	if e.Offset+e.Length > uint64(len(r.data)) {
		return nil, fmt.Errorf("tile %s: entry [%d,%d) exceeds pack size %d",
			k, e.Offset, e.Offset+e.Length, len(r.data))
	}
	return r.codec.Decompress(r.data[e.Offset : e.Offset+e.Length])
}

// ReadTile decompresses and decodes one tile's building list.
func (r *PackReader) ReadTile(k TileKey) ([]Building, error) {
	raw, err := r.TileData(k)
	if err != nil {
		return nil, err
	}
	var buildings []Building
	if err := json.Unmarshal(raw, &buildings); err != nil {
		return nil, fmt.Errorf("tile %s: decode: %w", k, err)
	}
	return buildings, nil
}

// Verify checks the structural invariants of the index against the mapped
// blob: entries sorted by tile key have monotonically increasing offsets,
// no two entries overlap, and the lengths sum to exactly the blob size.
// It then round-trips every tile through the codec.
func (r *PackReader) Verify() error {
	var total, next uint64
	for _, k := range r.keys {
		e := r.index[k.String()]
		if e.Offset != next {
			return fmt.Errorf("tile %s: offset %d, want %d (entries must be contiguous in key order)",
				k, e.Offset, next)
		}
		next = e.Offset + e.Length
		total += e.Length
	}
	if total != uint64(len(r.data)) {
		return fmt.Errorf("index lengths sum to %d, pack is %d bytes", total, len(r.data))
	}
	for _, k := range r.keys {
		if _, err := r.TileData(k); err != nil {
			return err
		}
	}
	return nil
}

// Close unmaps the blob and closes the file.
func (r *PackReader) Close() error {
	if r.data != nil {
		if err := r.data.Unmap(); err != nil {
			r.file.Close()
			return err
		}
		r.data = nil
	}
	return r.file.Close()
}
