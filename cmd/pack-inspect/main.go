// Command pack-inspect lists, verifies, and extracts tiles from a committed
// building pack without loading the whole blob.
package main

import (
	"flag"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/tom-max-lawson/transit-map-generator/tiler"
)

func main() {
	var (
		packPath    = flag.String("pack", "packed_buildings/buildings.pack", "pack blob path")
		indexPath   = flag.String("index", "packed_buildings/buildings.index.json", "index path")
		compression = flag.String("compression", "zlib", "codec the pack was written with")
		list        = flag.Bool("list", false, "list index entries")
		verify      = flag.Bool("verify", false, "check index integrity and round-trip every tile")
		extract     = flag.String("extract", "", "extract one tile's canonical JSON to stdout, e.g. -extract 3,7")
	)
	flag.Parse()

	r, err := tiler.OpenPack(*packPath, *indexPath, *compression)
	if err != nil {
		log.Fatal(err)
	}
	defer r.Close()

	switch {
	case *list:
		for _, k := range r.Keys() {
			e, _ := r.Entry(k)
			fmt.Printf("%-12s offset=%-10d length=%s\n", k, e.Offset, formatFileSize(int64(e.Length)))
		}
		log.WithField("tiles", len(r.Keys())).Info("listed pack")

	case *verify:
		if err := r.Verify(); err != nil {
			log.Fatal(err)
		}
		log.WithField("tiles", len(r.Keys())).Info("pack verified")

	case *extract != "":
		key, err := tiler.ParseTileKey(*extract)
		if err != nil {
			log.Fatal(err)
		}
		data, err := r.TileData(key)
		if err != nil {
			log.Fatal(err)
		}
		os.Stdout.Write(data)
		os.Stdout.Write([]byte{'\n'})

	default:
		flag.Usage()
		os.Exit(2)
	}
}

func formatFileSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}
