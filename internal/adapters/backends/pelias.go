package backends

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/paulmach/orb/geojson"

	"github.com/samirrijal/bilbopass-geocoder/internal/core/domain"
)

// Pelias queries a Pelias API (https://github.com/pelias/documentation).
// Responses are GeoJSON already and pass through unchanged, except that
// the reported distance is converted from kilometers to meters.
type Pelias struct {
	httpBackend
}

func (p *Pelias) Autocomplete(ctx context.Context, q domain.GeocoderQuery) (*geojson.FeatureCollection, error) {
	return p.fetch(ctx, "v1/autocomplete", p.params(q, true))
}

func (p *Pelias) Search(ctx context.Context, q domain.GeocoderQuery) (*geojson.FeatureCollection, error) {
	return p.fetch(ctx, "v1/search", p.params(q, true))
}

func (p *Pelias) Reverse(ctx context.Context, q domain.GeocoderQuery) (*geojson.FeatureCollection, error) {
	if q.Point == nil {
		return geojson.NewFeatureCollection(), nil
	}
	params := p.params(q, false)
	params.Set("point.lat", formatFloat(q.Point.Lat()))
	params.Set("point.lon", formatFloat(q.Point.Lon()))
	return p.fetch(ctx, "v1/reverse", params)
}

func (p *Pelias) params(q domain.GeocoderQuery, forward bool) url.Values {
	params := url.Values{}
	if forward {
		params.Set("text", q.Text)
		if q.Focus != nil {
			params.Set("focus.point.lat", formatFloat(q.Focus.Lat()))
			params.Set("focus.point.lon", formatFloat(q.Focus.Lon()))
		}
		if q.Rect != nil {
			params.Set("boundary.rect.min_lon", formatFloat(q.Rect.MinLon))
			params.Set("boundary.rect.min_lat", formatFloat(q.Rect.MinLat))
			params.Set("boundary.rect.max_lon", formatFloat(q.Rect.MaxLon))
			params.Set("boundary.rect.max_lat", formatFloat(q.Rect.MaxLat))
		}
	}
	params.Set("size", strconv.Itoa(size(q)))
	if len(q.Layers) > 0 {
		params.Set("layers", strings.Join(q.Layers, ","))
	}
	if p.apiKey != "" {
		params.Set("api_key", p.apiKey)
	}
	if p.language != "" {
		params.Set("lang", p.language)
	}
	return params
}

func (p *Pelias) fetch(ctx context.Context, path string, params url.Values) (*geojson.FeatureCollection, error) {
	u, err := p.endpoint(p.baseURL, path, params)
	if err != nil {
		return nil, err
	}
	body, err := p.get(ctx, u)
	if err != nil {
		return nil, err
	}
	fc, err := geojson.UnmarshalFeatureCollection(body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	for _, f := range fc.Features {
		if km, ok := f.Properties["distance"].(float64); ok {
			f.Properties["distance"] = km * 1000
		}
	}
	return fc, nil
}
