package tiler

import (
	"fmt"
	"os"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// LoadFeatures reads a GeoJSON FeatureCollection of building footprints.
// Coordinates are expected to already be in a planar reference in meters
// (the upstream merge step writes UTM); no reprojection happens here.
func LoadFeatures(path string) ([]Feature, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read features: %w", err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("parse features: %w", err)
	}

	features := make([]Feature, 0, len(fc.Features))
	for _, f := range fc.Features {
		features = append(features, Feature{
			Geometry: f.Geometry,
			Tags:     propertyTags(f.Properties),
		})
	}
	return features, nil
}

// propertyTags flattens GeoJSON properties into the string tag map the
// height estimator reads. Strings pass through, numbers are formatted, and
// anything else (arrays, nested objects, nulls) is ignored.
func propertyTags(props geojson.Properties) map[string]string {
	tags := make(map[string]string, len(props))
	for k, v := range props {
		switch t := v.(type) {
		case string:
			tags[k] = t
		case float64:
			tags[k] = strconv.FormatFloat(t, 'f', -1, 64)
		case int:
			tags[k] = strconv.Itoa(t)
		case bool:
			tags[k] = strconv.FormatBool(t)
		}
	}
	return tags
}

// LoadAOI reads an area-of-interest boundary from a GeoJSON file. The first
// polygon found wins; a multi-polygon contributes its first member.
func LoadAOI(path string) (orb.Polygon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read AOI: %w", err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("parse AOI: %w", err)
	}
	for _, f := range fc.Features {
		switch g := f.Geometry.(type) {
		case orb.Polygon:
			return g, nil
		case orb.MultiPolygon:
			if len(g) > 0 {
				return g[0], nil
			}
		}
	}
	return nil, fmt.Errorf("AOI file %s contains no polygon", path)
}
