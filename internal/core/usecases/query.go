package usecases

import (
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/samirrijal/bilbopass-geocoder/internal/core/domain"
)

// Request parameter names.
const (
	ParamRectMinLon = "boundary.rect.min_lon"
	ParamRectMinLat = "boundary.rect.min_lat"
	ParamRectMaxLon = "boundary.rect.max_lon"
	ParamRectMaxLat = "boundary.rect.max_lat"
	ParamFocusLat   = "focus.point.lat"
	ParamFocusLon   = "focus.point.lon"
	ParamPointLat   = "point.lat"
	ParamPointLon   = "point.lon"
	ParamText       = "text"
	ParamSize       = "size"
	ParamLayers     = "layers"
)

// DefaultSize is used when a request carries no usable size.
const DefaultSize = 4

// QueryDefaults fills in fields a request leaves out.
type QueryDefaults struct {
	Size   int
	Layers []string
}

// NormalizeQuery turns a flat parameter map into a GeocoderQuery. It never
// fails: missing or unparsable values are omitted or defaulted.
func NormalizeQuery(params map[string]string, defaults QueryDefaults) domain.GeocoderQuery {
	var q domain.GeocoderQuery

	if rect, ok := parseRect(params); ok {
		q.Rect = rect
	}
	if _, ok := params[ParamFocusLat]; ok {
		q.Focus = parsePoint(params[ParamFocusLat], params[ParamFocusLon])
	}
	if _, ok := params[ParamPointLat]; ok {
		q.Point = parsePoint(params[ParamPointLat], params[ParamPointLon])
	}

	q.Text = params[ParamText]

	q.Size = defaults.Size
	if q.Size <= 0 {
		q.Size = DefaultSize
	}
	if raw, ok := params[ParamSize]; ok {
		if n, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil && n > 0 {
			q.Size = n
		}
	}

	q.Layers = parseLayers(params[ParamLayers])
	if len(q.Layers) == 0 {
		q.Layers = append([]string(nil), defaults.Layers...)
	}
	if len(q.Layers) == 0 {
		q.Layers = append([]string(nil), domain.PreferredLayers...)
	}

	return q
}

func parseRect(params map[string]string) (*domain.Bounds, bool) {
	keys := [4]string{ParamRectMinLon, ParamRectMinLat, ParamRectMaxLon, ParamRectMaxLat}
	var vals [4]float64
	for i, k := range keys {
		raw, ok := params[k]
		if !ok {
			return nil, false
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, false
		}
		vals[i] = v
	}
	return &domain.Bounds{MinLon: vals[0], MinLat: vals[1], MaxLon: vals[2], MaxLat: vals[3]}, true
}

// parsePoint is lenient: components that do not parse become 0.
func parsePoint(lat, lon string) *orb.Point {
	la, _ := strconv.ParseFloat(strings.TrimSpace(lat), 64)
	lo, _ := strconv.ParseFloat(strings.TrimSpace(lon), 64)
	return &orb.Point{lo, la}
}

func parseLayers(raw string) []string {
	if raw == "" {
		return nil
	}
	var layers []string
	for _, l := range strings.Split(raw, ",") {
		if l = strings.TrimSpace(l); l != "" {
			layers = append(layers, l)
		}
	}
	return layers
}

var sanitizer = strings.NewReplacer("@", " ", "&", " ")

// SanitizeText replaces characters that break backend full-text syntax
// ("@" and "&") with a single space.
func SanitizeText(s string) string {
	return sanitizer.Replace(s)
}
