package domain

import (
	"fmt"
	"slices"

	"github.com/paulmach/orb"
)

// Method names one of the operations a search backend exposes.
type Method string

const (
	MethodAutocomplete Method = "autocomplete"
	MethodSearch       Method = "search"
	MethodReverse      Method = "reverse"
)

// ParseMethod validates a method name.
func ParseMethod(s string) (Method, error) {
	switch m := Method(s); m {
	case MethodAutocomplete, MethodSearch, MethodReverse:
		return m, nil
	}
	return "", fmt.Errorf("unknown geocoder method %q", s)
}

// Layers reported by backends.
const (
	LayerVenue        = "venue"
	LayerAddress      = "address"
	LayerStreet       = "street"
	LayerIntersection = "intersection"
	LayerStop         = "stop"
)

// PreferredLayers is the ordered default layer set. A response containing one of
// these layers is considered authoritative enough to skip a backup backend.
var PreferredLayers = []string{LayerVenue, LayerAddress, LayerStreet, LayerIntersection}

// IsPreferredLayer reports whether layer is one of PreferredLayers.
func IsPreferredLayer(layer string) bool {
	return slices.Contains(PreferredLayers, layer)
}

// GeocoderQuery is the structured form of one geocoding request.
type GeocoderQuery struct {
	Rect   *Bounds    `json:"rect,omitempty"`
	Focus  *orb.Point `json:"focus,omitempty"`
	Point  *orb.Point `json:"point,omitempty"` // reverse queries
	Text   string     `json:"text,omitempty"`
	Size   int        `json:"size"`
	Layers []string   `json:"layers,omitempty"`
}

// Clone returns a copy sharing no pointers or slices with q.
func (q GeocoderQuery) Clone() GeocoderQuery {
	out := q
	if q.Rect != nil {
		r := *q.Rect
		out.Rect = &r
	}
	if q.Focus != nil {
		f := *q.Focus
		out.Focus = &f
	}
	if q.Point != nil {
		p := *q.Point
		out.Point = &p
	}
	out.Layers = slices.Clone(q.Layers)
	return out
}
