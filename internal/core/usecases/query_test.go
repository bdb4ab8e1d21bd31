package usecases_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/paulmach/orb"
	"github.com/samirrijal/bilbopass-geocoder/internal/core/domain"
	"github.com/samirrijal/bilbopass-geocoder/internal/core/usecases"
)

func TestNormalizeQuery(t *testing.T) {
	tests := []struct {
		name   string
		params map[string]string
		want   domain.GeocoderQuery
	}{
		{
			name:   "empty params get defaults",
			params: map[string]string{},
			want: domain.GeocoderQuery{
				Size:   4,
				Layers: []string{"venue", "address", "street", "intersection"},
			},
		},
		{
			name: "full query",
			params: map[string]string{
				"boundary.rect.min_lon": "-3.1",
				"boundary.rect.min_lat": "43.1",
				"boundary.rect.max_lon": "-2.8",
				"boundary.rect.max_lat": "43.4",
				"focus.point.lat":       "43.263",
				"focus.point.lon":       "-2.935",
				"text":                  "Abando & Moyua",
				"size":                  "10",
				"layers":                "venue, stop",
			},
			want: domain.GeocoderQuery{
				Rect:   &domain.Bounds{MinLon: -3.1, MinLat: 43.1, MaxLon: -2.8, MaxLat: 43.4},
				Focus:  &orb.Point{-2.935, 43.263},
				Text:   "Abando & Moyua",
				Size:   10,
				Layers: []string{"venue", "stop"},
			},
		},
		{
			name: "rect needs all four bounds",
			params: map[string]string{
				"boundary.rect.min_lon": "-3.1",
				"boundary.rect.min_lat": "43.1",
				"boundary.rect.max_lon": "-2.8",
			},
			want: domain.GeocoderQuery{
				Size:   4,
				Layers: []string{"venue", "address", "street", "intersection"},
			},
		},
		{
			name: "unparsable rect bound drops rect",
			params: map[string]string{
				"boundary.rect.min_lon": "-3.1",
				"boundary.rect.min_lat": "north",
				"boundary.rect.max_lon": "-2.8",
				"boundary.rect.max_lat": "43.4",
			},
			want: domain.GeocoderQuery{
				Size:   4,
				Layers: []string{"venue", "address", "street", "intersection"},
			},
		},
		{
			name:   "focus lon is not validated",
			params: map[string]string{"focus.point.lat": "43.26"},
			want: domain.GeocoderQuery{
				Focus:  &orb.Point{0, 43.26},
				Size:   4,
				Layers: []string{"venue", "address", "street", "intersection"},
			},
		},
		{
			name:   "focus lon without lat is ignored",
			params: map[string]string{"focus.point.lon": "-2.93"},
			want: domain.GeocoderQuery{
				Size:   4,
				Layers: []string{"venue", "address", "street", "intersection"},
			},
		},
		{
			name:   "reverse point",
			params: map[string]string{"point.lat": "43.26", "point.lon": "-2.93"},
			want: domain.GeocoderQuery{
				Point:  &orb.Point{-2.93, 43.26},
				Size:   4,
				Layers: []string{"venue", "address", "street", "intersection"},
			},
		},
		{
			name:   "invalid size falls back to default",
			params: map[string]string{"size": "many"},
			want: domain.GeocoderQuery{
				Size:   4,
				Layers: []string{"venue", "address", "street", "intersection"},
			},
		},
		{
			name:   "text is copied verbatim",
			params: map[string]string{"text": "  Plaza @ Moyua  "},
			want: domain.GeocoderQuery{
				Text:   "  Plaza @ Moyua  ",
				Size:   4,
				Layers: []string{"venue", "address", "street", "intersection"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := usecases.NormalizeQuery(tt.params, usecases.QueryDefaults{})
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("NormalizeQuery() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNormalizeQuery_ConfiguredDefaults(t *testing.T) {
	got := usecases.NormalizeQuery(map[string]string{}, usecases.QueryDefaults{
		Size:   8,
		Layers: []string{"stop"},
	})
	if got.Size != 8 {
		t.Errorf("expected size 8, got %d", got.Size)
	}
	if diff := cmp.Diff([]string{"stop"}, got.Layers); diff != "" {
		t.Errorf("layers mismatch (-want +got):\n%s", diff)
	}
}

func TestSanitizeText(t *testing.T) {
	in := "first street @ second street & third street @ fourth & fifth"
	want := "first street   second street   third street   fourth   fifth"
	if got := usecases.SanitizeText(in); got != want {
		t.Errorf("SanitizeText() = %q, want %q", got, want)
	}
	if got := usecases.SanitizeText("Calle Élcano 12, Bilbao"); got != "Calle Élcano 12, Bilbao" {
		t.Errorf("SanitizeText changed clean text: %q", got)
	}
	if got := usecases.SanitizeText("@&"); got != "  " {
		t.Errorf("SanitizeText(%q) = %q", "@&", got)
	}
}
