package usecases

import (
	"strings"

	"github.com/paulmach/orb/geojson"
	"github.com/samirrijal/bilbopass-geocoder/internal/core/domain"
)

// IsSatisfactory reports whether a backend's answer is good enough to accept
// without consulting its backup: it must be non-empty, contain at least one
// feature in a preferred layer, and at least one feature whose name contains
// the full query text (case-insensitively).
func IsSatisfactory(fc *geojson.FeatureCollection, text string) bool {
	if fc == nil || len(fc.Features) == 0 {
		return false
	}

	needle := fold(text)
	var preferred, named bool
	for _, f := range fc.Features {
		if f == nil {
			continue
		}
		if domain.IsPreferredLayer(featureLayer(f)) {
			preferred = true
		}
		if strings.Contains(fold(featureName(f)), needle) {
			named = true
		}
		if preferred && named {
			return true
		}
	}
	return false
}
