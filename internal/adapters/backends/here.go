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
)

// HERE queries the HERE Geocoding & Search API v7. The configured URL may
// contain a "{service}" placeholder which is replaced with autosuggest,
// geocode or revgeocode, e.g. https://{service}.search.hereapi.com/v1.
type HERE struct {
	httpBackend
}

type hereResponse struct {
	Items []hereItem `json:"items"`
}

type hereItem struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	ResultType string  `json:"resultType"`
	Distance   float64 `json:"distance"`
	Address    struct {
		Label       string `json:"label"`
		CountryCode string `json:"countryCode"`
		State       string `json:"state"`
		City        string `json:"city"`
		District    string `json:"district"`
		Street      string `json:"street"`
		PostalCode  string `json:"postalCode"`
		HouseNumber string `json:"houseNumber"`
	} `json:"address"`
	Position *struct {
		Lat float64 `json:"lat"`
		Lng float64 `json:"lng"`
	} `json:"position"`
	Categories []struct {
		ID      string `json:"id"`
		Name    string `json:"name"`
		Primary bool   `json:"primary"`
	} `json:"categories"`
}

// hereLayers maps HERE result types onto layer tags.
var hereLayers = map[string]string{
	"place":              domain.LayerVenue,
	"houseNumber":        domain.LayerAddress,
	"street":             domain.LayerStreet,
	"intersection":       domain.LayerIntersection,
	"locality":           "locality",
	"administrativeArea": "region",
	"postalCodePoint":    "postalcode",
}

// Autocomplete uses autosuggest, which needs a spatial context. Without a
// focus point or a rectangle it falls back to geocode.
func (h *HERE) Autocomplete(ctx context.Context, q domain.GeocoderQuery) (*geojson.FeatureCollection, error) {
	if q.Focus == nil && q.Rect == nil {
		return h.Search(ctx, q)
	}
	return h.fetch(ctx, "autosuggest", h.params(q))
}

func (h *HERE) Search(ctx context.Context, q domain.GeocoderQuery) (*geojson.FeatureCollection, error) {
	return h.fetch(ctx, "geocode", h.params(q))
}

func (h *HERE) Reverse(ctx context.Context, q domain.GeocoderQuery) (*geojson.FeatureCollection, error) {
	if q.Point == nil {
		return geojson.NewFeatureCollection(), nil
	}
	params := url.Values{}
	params.Set("at", formatFloat(q.Point.Lat())+","+formatFloat(q.Point.Lon()))
	params.Set("limit", strconv.Itoa(size(q)))
	h.common(params)
	return h.fetch(ctx, "revgeocode", params)
}

func (h *HERE) params(q domain.GeocoderQuery) url.Values {
	params := url.Values{}
	params.Set("q", q.Text)
	params.Set("limit", strconv.Itoa(size(q)))
	if q.Focus != nil {
		params.Set("at", formatFloat(q.Focus.Lat())+","+formatFloat(q.Focus.Lon()))
	} else if q.Rect != nil {
		params.Set("in", fmt.Sprintf("bbox:%s,%s,%s,%s",
			formatFloat(q.Rect.MinLon), formatFloat(q.Rect.MinLat),
			formatFloat(q.Rect.MaxLon), formatFloat(q.Rect.MaxLat)))
	}
	h.common(params)
	return params
}

func (h *HERE) common(params url.Values) {
	params.Set("apiKey", h.apiKey)
	if h.language != "" {
		params.Set("lang", h.language)
	}
}

func (h *HERE) fetch(ctx context.Context, service string, params url.Values) (*geojson.FeatureCollection, error) {
	base := h.baseURL
	path := service
	if strings.Contains(base, "{service}") {
		base = strings.ReplaceAll(base, "{service}", service)
	}
	u, err := h.endpoint(base, path, params)
	if err != nil {
		return nil, err
	}

	var resp hereResponse
	if err := h.getJSON(ctx, u, &resp); err != nil {
		return nil, err
	}

	fc := geojson.NewFeatureCollection()
	for _, item := range resp.Items {
		// Chain and category query suggestions have no position.
		if item.Position == nil {
			continue
		}
		fc.Append(hereFeature(item))
	}
	return fc, nil
}

func hereFeature(item hereItem) *geojson.Feature {
	f := geojson.NewFeature(orb.Point{item.Position.Lng, item.Position.Lat})
	f.ID = item.ID

	layer, ok := hereLayers[item.ResultType]
	if !ok {
		layer = item.ResultType
	}

	categories := make([]interface{}, 0, len(item.Categories))
	for _, c := range item.Categories {
		categories = append(categories, map[string]interface{}{
			"id":      c.ID,
			"name":    c.Name,
			"primary": c.Primary,
		})
	}

	f.Properties["name"] = item.Title
	f.Properties["label"] = item.Address.Label
	f.Properties["layer"] = layer
	f.Properties["source"] = "here"
	f.Properties["source_id"] = item.ID
	if item.Distance > 0 {
		f.Properties["distance"] = item.Distance
	}
	setIfNotEmpty(f.Properties, "country_code", item.Address.CountryCode)
	setIfNotEmpty(f.Properties, "region", item.Address.State)
	setIfNotEmpty(f.Properties, "locality", item.Address.City)
	setIfNotEmpty(f.Properties, "neighbourhood", item.Address.District)
	setIfNotEmpty(f.Properties, "street", item.Address.Street)
	setIfNotEmpty(f.Properties, "housenumber", item.Address.HouseNumber)
	setIfNotEmpty(f.Properties, "postalcode", item.Address.PostalCode)
	f.Properties["addendum"] = map[string]interface{}{
		"here": map[string]interface{}{
			"resultType": item.ResultType,
			"categories": categories,
		},
	}
	return f
}

func setIfNotEmpty(props geojson.Properties, key, value string) {
	if value != "" {
		props[key] = value
	}
}
