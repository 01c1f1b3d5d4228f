package tiler

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// IndexEntry locates one compressed tile inside the pack blob.
type IndexEntry struct {
	Offset uint64 `json:"offset"`
	Length uint64 `json:"length"`
}

// PackIndex maps "ix,iy" keys to blob locations. json.Marshal emits map keys
// sorted, so the serialized index is deterministic.
type PackIndex map[string]IndexEntry

// CanonicalTile serializes a tile's building list into its canonical byte
// form: compact JSON, fixed field order, no incidental whitespace. This is
// the exact payload that gets compressed, and the exact payload a reader
// must get back after decompression.
func CanonicalTile(buildings []Building) ([]byte, error) {
	data, err := json.Marshal(buildings)
	if err != nil {
		return nil, fmt.Errorf("encode tile: %w", err)
	}
	return data, nil
}

// EncodePack compresses every tile of the set and assembles the pack blob
// and its index in memory. Tiles are compressed concurrently, but offsets
// are assigned strictly in ascending (ix, iy) key order so the blob is
// byte-for-byte reproducible across runs on identical input.
func EncodePack(ts *TileSet, codec Codec, workers int) ([]byte, PackIndex, error) {
	keys := ts.Keys()
	compressed := make([][]byte, len(keys))
	errs := make([]error, len(keys))

	if workers <= 0 {
		workers = 1
	}
	if workers > len(keys) {
		workers = len(keys)
	}

	var wg sync.WaitGroup
	jobs := make(chan int)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				raw, err := CanonicalTile(ts.Buildings(keys[i]))
				if err != nil {
					errs[i] = err
					continue
				}
				compressed[i], errs[i] = codec.Compress(raw)
			}
		}()
	}
	for i := range keys {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, nil, fmt.Errorf("tile %s: %w", keys[i], err)
		}
	}

	// Ordered assembly: offsets depend only on the sorted key sequence.
	index := make(PackIndex, len(keys))
	var blob []byte
	var offset uint64
	for i, k := range keys {
		n := uint64(len(compressed[i]))
		index[k.String()] = IndexEntry{Offset: offset, Length: n}
		blob = append(blob, compressed[i]...)
		offset += n
	}
	return blob, index, nil
}

// WritePack encodes the tile set and commits the two artifacts. Both files
// are written to a temp name and renamed into place, so an interrupted run
// never publishes a partial pack. Any write failure is fatal to the run.
func WritePack(ts *TileSet, cfg Config, packPath, indexPath string) error {
	codec, err := NewCodec(cfg.Compression)
	if err != nil {
		return err
	}

	blob, index, err := EncodePack(ts, codec, cfg.workers())
	if err != nil {
		return err
	}

	indexData, err := json.MarshalIndent(index, "", "  ")
	if err != nil {
		return fmt.Errorf("encode index: %w", err)
	}
	indexData = append(indexData, '\n')

	if err := atomicWriteFile(packPath, blob); err != nil {
		return fmt.Errorf("write pack: %w", err)
	}
	if err := atomicWriteFile(indexPath, indexData); err != nil {
		return fmt.Errorf("write index: %w", err)
	}

	log.WithFields(log.Fields{
		"tiles":       ts.Len(),
		"pack_bytes":  len(blob),
		"compression": codec.Name(),
		"pack":        packPath,
		"index":       indexPath,
	}).Info("wrote pack")
	return nil
}

// atomicWriteFile writes data next to path under a unique temp name and
// renames it into place. The uuid suffix keeps concurrent runs from
// clobbering each other's temp files.
func atomicWriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp := fmt.Sprintf("%s.%s.tmp", path, uuid.New().String()[:8])
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
