package usecases

import (
	"cmp"
	"slices"

	"github.com/mohae/deepcopy"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/samirrijal/bilbopass-geocoder/internal/pkg/geospatial"
	"github.com/samirrijal/bilbopass-geocoder/internal/pkg/metrics"
)

// Merge combines an authoritative custom collection with a primary one.
//
// Primary features that the filter flags against the custom set are dropped.
// When focus is set, custom features are stable-sorted by distance to it;
// non-Point geometries compare equal to everything. The result holds the
// custom features followed by the surviving primary features and takes all
// non-feature members from primary. Neither input is modified: every feature
// in the result is a fresh copy.
func Merge(custom, primary *geojson.FeatureCollection, focus *orb.Point, filter DuplicateFilter) *geojson.FeatureCollection {
	customFeatures := cloneFeatures(featuresOf(custom))

	out := cloneCollectionShell(primary)

	kept := make([]*geojson.Feature, 0, len(featuresOf(primary)))
	for _, f := range featuresOf(primary) {
		if f == nil {
			continue
		}
		if reason := filter.Check(f, customFeatures); reason != Keep {
			metrics.DuplicatesDropped.WithLabelValues(string(reason)).Inc()
			continue
		}
		kept = append(kept, cloneFeature(f))
	}

	if focus != nil {
		sortByDistance(customFeatures, *focus)
	}

	out.Features = append(customFeatures, kept...)
	return out
}

// Fold merges collections left to right. An unfiltered copy of the first
// collection seeds the accumulator; every later one becomes the custom side of
// the next merge, so earlier collections are deduplicated against everything
// after them.
func Fold(collections []*geojson.FeatureCollection, focus *orb.Point, filter DuplicateFilter) *geojson.FeatureCollection {
	if len(collections) == 0 {
		return geojson.NewFeatureCollection()
	}
	acc := cloneCollectionShell(collections[0])
	acc.Features = cloneFeatures(featuresOf(collections[0]))
	for _, next := range collections[1:] {
		acc = Merge(next, acc, focus, filter)
	}
	return acc
}

func sortByDistance(features []*geojson.Feature, focus orb.Point) {
	slices.SortStableFunc(features, func(a, b *geojson.Feature) int {
		pa, okA := a.Geometry.(orb.Point)
		pb, okB := b.Geometry.(orb.Point)
		if !okA || !okB {
			return 0
		}
		return cmp.Compare(geospatial.Distance(pa, focus), geospatial.Distance(pb, focus))
	})
}

func featuresOf(fc *geojson.FeatureCollection) []*geojson.Feature {
	if fc == nil {
		return nil
	}
	return fc.Features
}

// cloneCollectionShell copies everything but the features.
func cloneCollectionShell(fc *geojson.FeatureCollection) *geojson.FeatureCollection {
	out := geojson.NewFeatureCollection()
	if fc == nil {
		return out
	}
	if fc.Type != "" {
		out.Type = fc.Type
	}
	if fc.BBox != nil {
		out.BBox = slices.Clone(fc.BBox)
	}
	if fc.ExtraMembers != nil {
		out.ExtraMembers = deepcopy.Copy(fc.ExtraMembers).(geojson.Properties)
	}
	return out
}

func cloneFeatures(features []*geojson.Feature) []*geojson.Feature {
	out := make([]*geojson.Feature, 0, len(features))
	for _, f := range features {
		if f != nil {
			out = append(out, cloneFeature(f))
		}
	}
	return out
}

func cloneFeature(f *geojson.Feature) *geojson.Feature {
	c := *f
	c.ID = deepcopy.Copy(f.ID)
	if f.BBox != nil {
		c.BBox = slices.Clone(f.BBox)
	}
	if f.Geometry != nil {
		c.Geometry = orb.Clone(f.Geometry)
	}
	if f.Properties != nil {
		c.Properties = deepcopy.Copy(f.Properties).(geojson.Properties)
	}
	if f.ExtraMembers != nil {
		c.ExtraMembers = deepcopy.Copy(f.ExtraMembers).(geojson.Properties)
	}
	return &c
}
