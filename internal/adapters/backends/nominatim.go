package backends

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/samirrijal/bilbopass-geocoder/internal/core/domain"
	"github.com/samirrijal/bilbopass-geocoder/internal/pkg/geospatial"
)

// Nominatim queries an OpenStreetMap Nominatim server
// (https://nominatim.org/release-docs/develop/api/Overview/). Nominatim has
// no type-ahead endpoint, so Autocomplete runs a search.
type Nominatim struct {
	httpBackend
}

// venueCategories are OSM main tags whose objects are points of interest.
var venueCategories = map[string]bool{
	"amenity":          true,
	"shop":             true,
	"tourism":          true,
	"leisure":          true,
	"railway":          true,
	"public_transport": true,
	"aeroway":          true,
	"historic":         true,
	"office":           true,
	"craft":            true,
}

var localityTypes = map[string]bool{
	"city":    true,
	"town":    true,
	"village": true,
	"hamlet":  true,
}

func (n *Nominatim) Autocomplete(ctx context.Context, q domain.GeocoderQuery) (*geojson.FeatureCollection, error) {
	return n.Search(ctx, q)
}

func (n *Nominatim) Search(ctx context.Context, q domain.GeocoderQuery) (*geojson.FeatureCollection, error) {
	params := n.params(q)
	params.Set("q", q.Text)
	params.Set("limit", strconv.Itoa(size(q)))
	if q.Rect != nil {
		params.Set("viewbox", fmt.Sprintf("%s,%s,%s,%s",
			formatFloat(q.Rect.MinLon), formatFloat(q.Rect.MaxLat),
			formatFloat(q.Rect.MaxLon), formatFloat(q.Rect.MinLat)))
		params.Set("bounded", "1")
	}
	return n.fetch(ctx, "search", params, q.Focus)
}

func (n *Nominatim) Reverse(ctx context.Context, q domain.GeocoderQuery) (*geojson.FeatureCollection, error) {
	if q.Point == nil {
		return geojson.NewFeatureCollection(), nil
	}
	params := n.params(q)
	params.Set("lat", formatFloat(q.Point.Lat()))
	params.Set("lon", formatFloat(q.Point.Lon()))
	return n.fetch(ctx, "reverse", params, q.Point)
}

func (n *Nominatim) params(q domain.GeocoderQuery) url.Values {
	params := url.Values{}
	params.Set("format", "geojson")
	params.Set("addressdetails", "1")
	params.Set("extratags", "1")
	if n.language != "" {
		params.Set("accept-language", n.language)
	}
	return params
}

func (n *Nominatim) fetch(ctx context.Context, path string, params url.Values, from *orb.Point) (*geojson.FeatureCollection, error) {
	u, err := n.endpoint(n.baseURL, path, params)
	if err != nil {
		return nil, err
	}
	body, err := n.get(ctx, u)
	if err != nil {
		return nil, err
	}

	// Reverse lookups without a match answer {"error": "Unable to geocode"}.
	if !strings.Contains(string(body), `"features"`) {
		return geojson.NewFeatureCollection(), nil
	}
	fc, err := geojson.UnmarshalFeatureCollection(body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	for _, f := range fc.Features {
		normalizeNominatim(f, from)
	}
	return fc, nil
}

// normalizeNominatim rewrites Nominatim properties into the shared layout:
// name, layer, distance and an osm addendum that carries the operator tag.
func normalizeNominatim(f *geojson.Feature, from *orb.Point) {
	props := f.Properties
	category, _ := props["category"].(string)
	typ, _ := props["type"].(string)
	addressType, _ := props["addresstype"].(string)
	address, _ := props["address"].(map[string]interface{})
	extratags, _ := props["extratags"].(map[string]interface{})

	name, _ := props["name"].(string)
	if name == "" {
		name, _ = props["display_name"].(string)
	}

	osm := map[string]interface{}{
		"osm_type": props["osm_type"],
		"osm_id":   props["osm_id"],
		"category": category,
		"type":     typ,
	}
	if op, ok := extratags["operator"].(string); ok && op != "" {
		osm["operator"] = op
	}

	out := geojson.Properties{
		"name":     name,
		"label":    props["display_name"],
		"layer":    nominatimLayer(category, typ, addressType, address),
		"source":   "osm",
		"addendum": map[string]interface{}{"osm": osm},
	}
	if id, ok := props["place_id"]; ok {
		out["source_id"] = id
	}
	for _, key := range []string{"road", "house_number", "postcode", "city", "country_code"} {
		if v, ok := address[key].(string); ok && v != "" {
			out[key] = v
		}
	}
	if pt, ok := f.Geometry.(orb.Point); ok && from != nil {
		out["distance"] = geospatial.Distance(pt, *from)
	}
	f.Properties = out
}

func nominatimLayer(category, typ, addressType string, address map[string]interface{}) string {
	switch {
	case category == "highway" && (typ == "bus_stop" || typ == "platform"):
		return domain.LayerVenue
	case venueCategories[category]:
		return domain.LayerVenue
	case address["house_number"] != nil:
		return domain.LayerAddress
	case category == "highway" || addressType == "road":
		return domain.LayerStreet
	case localityTypes[addressType]:
		return "locality"
	case addressType != "":
		return addressType
	}
	return typ
}
