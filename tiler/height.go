package tiler

import (
	"strconv"
	"strings"
)

// Tag keys recognized by the height estimator. Everything else in the tag
// map is ignored.
const (
	tagHeight = "height"
	tagLevels = "building:levels"
)

// EstimateHeight derives a single height in meters from a building's tag map.
// Rules are tried in order and the first that parses to a finite positive
// value wins; parse failures fall through silently:
//
//  1. an explicit "height" tag, with a trailing unit suffix stripped
//  2. a "building:levels" tag multiplied by the per-level height
//  3. the configured default
//
// The result is always finite and positive given a valid Config.
func EstimateHeight(tags map[string]string, defaultHeight, levelHeight float64) float64 {
	v, _ := estimateHeight(tags, defaultHeight, levelHeight)
	return v
}

// Rule names reported by estimateHeight.
const (
	ruleHeightTag = "height"
	ruleLevels    = "levels"
	ruleDefault   = "default"
)

func estimateHeight(tags map[string]string, defaultHeight, levelHeight float64) (float64, string) {
	if raw, ok := tags[tagHeight]; ok && raw != "" {
		if v, ok := parseMeters(raw); ok {
			return v, ruleHeightTag
		}
	}
	if raw, ok := tags[tagLevels]; ok && raw != "" {
		if levels, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err == nil {
			if v := levels * levelHeight; isFinite(v) && v > 0 {
				return v, ruleLevels
			}
		}
	}
	return defaultHeight, ruleDefault
}

// parseMeters parses values like "12", "12.5 m", " 7m ". Only the plain "m"
// suffix is handled; anything fancier ("2 st", "12'") fails the parse and
// falls through to the next rule.
func parseMeters(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	s = strings.TrimSuffix(s, "m")
	s = strings.TrimSpace(s)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || !isFinite(v) || v <= 0 {
		return 0, false
	}
	return v, true
}
