package usecases

import (
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/samirrijal/bilbopass-geocoder/internal/pkg/geospatial"
)

// DropReason says why the DuplicateFilter rejected a feature. The empty
// reason means the feature is kept.
type DropReason string

const (
	Keep         DropReason = ""
	DropName     DropReason = "name"
	DropDistance DropReason = "distance"
	DropGeo      DropReason = "geo"
)

// Defaults for NewDuplicateFilter.
const (
	DefaultDistanceThreshold = 7500
)

// DefaultTransitCategoryPrefixes are public-transport category codes in the
// HERE place taxonomy (400-4100-xxxx: bus stops, stations, ferry terminals...).
var DefaultTransitCategoryPrefixes = []string{"400-4100"}

// DuplicateFilter decides whether a feature from one result set duplicates a
// feature in another. It holds no mutable state.
type DuplicateFilter struct {
	// DistanceThreshold rejects features whose reported distance exceeds it.
	// Zero or less disables the check.
	DistanceThreshold float64
	// TransitCategoryPrefixes classify a feature as a transit stop by category code.
	TransitCategoryPrefixes []string
}

// NewDuplicateFilter applies defaults to unset fields.
func NewDuplicateFilter(threshold float64, prefixes []string) DuplicateFilter {
	if threshold == 0 {
		threshold = DefaultDistanceThreshold
	}
	if len(prefixes) == 0 {
		prefixes = DefaultTransitCategoryPrefixes
	}
	return DuplicateFilter{DistanceThreshold: threshold, TransitCategoryPrefixes: prefixes}
}

// Check returns Keep if f should survive a merge against the features in
// against, or the reason it must be dropped.
//
// The name and distance checks run first and reject unconditionally, even
// when f is not a real duplicate. Only features classified as transit stops
// are then compared by position.
func (d DuplicateFilter) Check(f *geojson.Feature, against []*geojson.Feature) DropReason {
	if name := fold(featureName(f)); name != "" {
		for _, other := range against {
			if strings.Contains(fold(featureName(other)), name) {
				return DropName
			}
		}
	}

	if d.DistanceThreshold > 0 {
		if dist, ok := numberProp(f.Properties, PropDistance); ok && dist > d.DistanceThreshold {
			return DropDistance
		}
	}

	if !d.IsTransitStop(f) {
		return Keep
	}

	pt, ok := f.Geometry.(orb.Point)
	if !ok {
		return Keep
	}
	for _, other := range against {
		if op, ok := other.Geometry.(orb.Point); ok && geospatial.RoughlyEqual(pt, op) {
			return DropGeo
		}
	}
	return Keep
}

// IsTransitStop classifies f as public-transit infrastructure, either through
// an operator tag in OpenStreetMap addendum data or through a category code
// with a transit prefix.
func (d DuplicateFilter) IsTransitStop(f *geojson.Feature) bool {
	addendum, _ := asMap(f.Properties[PropAddendum])

	if osm, ok := asMap(addendum["osm"]); ok {
		if op, _ := osm["operator"].(string); op != "" {
			return true
		}
	}

	if d.hasTransitCategory(f.Properties[PropCategories]) {
		return true
	}
	for _, source := range addendum {
		if m, ok := asMap(source); ok && d.hasTransitCategory(m[PropCategories]) {
			return true
		}
	}
	return false
}

func (d DuplicateFilter) hasTransitCategory(v interface{}) bool {
	var codes []string
	switch c := v.(type) {
	case string:
		codes = []string{c}
	case []string:
		codes = c
	case []interface{}:
		for _, item := range c {
			if s, ok := item.(string); ok {
				codes = append(codes, s)
			} else if m, ok := asMap(item); ok {
				if id, ok := m["id"].(string); ok {
					codes = append(codes, id)
				}
			}
		}
	}

	for _, code := range codes {
		for _, prefix := range d.TransitCategoryPrefixes {
			if strings.HasPrefix(code, prefix) {
				return true
			}
		}
	}
	return false
}
