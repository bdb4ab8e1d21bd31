package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/paulmach/orb/geojson"

	"github.com/samirrijal/bilbopass-geocoder/internal/core/domain"
)

// DefaultReverseRadius bounds reverse lookups, in meters.
const DefaultReverseRadius = 500

const stopColumns = `
	stop_id, agency, name,
	ST_Y(location::geometry) AS lat,
	ST_X(location::geometry) AS lon,
	COALESCE(platform_code, ''), wheelchair_accessible`

// StopBackend implements ports.SearchBackend over the stops table using
// PostGIS and pg_trgm. It is the transit source of the geocoder.
type StopBackend struct {
	db            *DB
	name          string
	reverseRadius float64
}

// NewStopBackend creates a StopBackend. A reverseRadius of 0 uses
// DefaultReverseRadius.
func NewStopBackend(db *DB, name string, reverseRadius float64) *StopBackend {
	if name == "" {
		name = "transit"
	}
	if reverseRadius <= 0 {
		reverseRadius = DefaultReverseRadius
	}
	return &StopBackend{db: db, name: name, reverseRadius: reverseRadius}
}

func (b *StopBackend) Name() string { return b.name }

// Autocomplete matches stop names containing the text or similar to one of
// its words, best word match first.
func (b *StopBackend) Autocomplete(ctx context.Context, q domain.GeocoderQuery) (*geojson.FeatureCollection, error) {
	rows, err := b.db.Pool.Query(ctx, `
		SELECT`+stopColumns+`,
		       CASE WHEN $3::float8 IS NULL THEN NULL
		            ELSE ST_Distance(location, ST_SetSRID(ST_MakePoint($3, $4), 4326)::geography)
		       END AS distance
		FROM stops
		WHERE (name ILIKE '%' || $1 || '%' OR $9 <% name)
		  AND ($5::float8 IS NULL OR location::geometry && ST_MakeEnvelope($5, $6, $7, $8, 4326))
		ORDER BY word_similarity($9, name) DESC, distance ASC NULLS LAST
		LIMIT $2
	`, append([]interface{}{likeEscape(q.Text), limit(q)}, append(spatialArgs(q), q.Text)...)...)
	if err != nil {
		return nil, fmt.Errorf("autocomplete stops: %w", err)
	}
	return b.collect(rows)
}

// Search performs fuzzy and full-text search on stop names.
func (b *StopBackend) Search(ctx context.Context, q domain.GeocoderQuery) (*geojson.FeatureCollection, error) {
	rows, err := b.db.Pool.Query(ctx, `
		SELECT`+stopColumns+`,
		       CASE WHEN $3::float8 IS NULL THEN NULL
		            ELSE ST_Distance(location, ST_SetSRID(ST_MakePoint($3, $4), 4326)::geography)
		       END AS distance
		FROM stops
		WHERE (name_vector @@ plainto_tsquery('spanish', $1) OR name %> $1)
		  AND ($5::float8 IS NULL OR location::geometry && ST_MakeEnvelope($5, $6, $7, $8, 4326))
		ORDER BY similarity(name, $1) DESC, distance ASC NULLS LAST
		LIMIT $2
	`, append([]interface{}{q.Text, limit(q)}, spatialArgs(q)...)...)
	if err != nil {
		return nil, fmt.Errorf("search stops: %w", err)
	}
	return b.collect(rows)
}

// Reverse returns the stops closest to q.Point within the reverse radius.
func (b *StopBackend) Reverse(ctx context.Context, q domain.GeocoderQuery) (*geojson.FeatureCollection, error) {
	if q.Point == nil {
		return geojson.NewFeatureCollection(), nil
	}
	rows, err := b.db.Pool.Query(ctx, `
		SELECT`+stopColumns+`,
		       ST_Distance(location, ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography) AS distance
		FROM stops
		WHERE ST_DWithin(location, ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography, $3)
		ORDER BY distance
		LIMIT $4
	`, q.Point.Lon(), q.Point.Lat(), b.reverseRadius, limit(q))
	if err != nil {
		return nil, fmt.Errorf("reverse stops: %w", err)
	}
	return b.collect(rows)
}

// UpsertStops inserts or updates stops in batches of 500.
func (b *StopBackend) UpsertStops(ctx context.Context, stops []domain.TransitStop) error {
	const batchSize = 500
	for start := 0; start < len(stops); start += batchSize {
		end := min(start+batchSize, len(stops))
		batch := &pgx.Batch{}
		for _, s := range stops[start:end] {
			batch.Queue(`
				INSERT INTO stops (stop_id, agency, name, location, platform_code, wheelchair_accessible)
				VALUES ($1, $2, $3, ST_SetSRID(ST_MakePoint($4, $5), 4326)::geography, $6, $7)
				ON CONFLICT (agency, stop_id) DO UPDATE
				SET name = EXCLUDED.name, location = EXCLUDED.location,
				    platform_code = EXCLUDED.platform_code,
				    wheelchair_accessible = EXCLUDED.wheelchair_accessible,
				    updated_at = now()
			`, s.StopID, s.Agency, s.Name, s.Location.Lon(), s.Location.Lat(),
				nilEmpty(s.PlatformCode), s.WheelchairAccessible)
		}
		if err := b.flush(ctx, batch, end-start); err != nil {
			return err
		}
	}
	return nil
}

// CountStops returns the number of stored stops.
func (b *StopBackend) CountStops(ctx context.Context) (int, error) {
	var n int
	err := b.db.Pool.QueryRow(ctx, `SELECT count(*) FROM stops`).Scan(&n)
	return n, err
}

func (b *StopBackend) flush(ctx context.Context, batch *pgx.Batch, count int) error {
	br := b.db.Pool.SendBatch(ctx, batch)
	defer br.Close()
	for i := 0; i < count; i++ {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("batch item %d: %w", i, err)
		}
	}
	return nil
}

func (b *StopBackend) collect(rows pgx.Rows) (*geojson.FeatureCollection, error) {
	defer rows.Close()

	var stops []domain.TransitStop
	for rows.Next() {
		var s domain.TransitStop
		var lat, lon float64
		if err := rows.Scan(
			&s.StopID, &s.Agency, &s.Name,
			&lat, &lon,
			&s.PlatformCode, &s.WheelchairAccessible,
			&s.Distance,
		); err != nil {
			return nil, err
		}
		s.Location[0], s.Location[1] = lon, lat
		stops = append(stops, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return StopsToCollection(stops), nil
}

// StopsToCollection converts stops into features tagged as transit stops:
// layer "stop", source "transit" and the agency as the OSM operator, which
// is what the duplicate filter keys on.
func StopsToCollection(stops []domain.TransitStop) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, s := range stops {
		f := geojson.NewFeature(s.Location)
		f.ID = s.Agency + ":" + s.StopID

		label := s.Name
		if s.PlatformCode != "" {
			label += " (" + s.PlatformCode + ")"
		}

		f.Properties["name"] = s.Name
		f.Properties["label"] = label
		f.Properties["layer"] = domain.LayerStop
		f.Properties["source"] = "transit"
		f.Properties["source_id"] = s.StopID
		f.Properties["wheelchair_accessible"] = s.WheelchairAccessible
		if s.PlatformCode != "" {
			f.Properties["platform_code"] = s.PlatformCode
		}
		if s.Distance != nil {
			f.Properties["distance"] = *s.Distance
		}
		f.Properties["addendum"] = map[string]interface{}{
			"osm": map[string]interface{}{"operator": s.Agency},
			"transit": map[string]interface{}{
				"agency":  s.Agency,
				"stop_id": s.StopID,
			},
		}
		fc.Append(f)
	}
	return fc
}

func spatialArgs(q domain.GeocoderQuery) []interface{} {
	var focusLon, focusLat *float64
	if q.Focus != nil {
		lon, lat := q.Focus.Lon(), q.Focus.Lat()
		focusLon, focusLat = &lon, &lat
	}
	var minLon, minLat, maxLon, maxLat *float64
	if q.Rect != nil {
		r := *q.Rect
		minLon, minLat, maxLon, maxLat = &r.MinLon, &r.MinLat, &r.MaxLon, &r.MaxLat
	}
	return []interface{}{focusLon, focusLat, minLon, minLat, maxLon, maxLat}
}

func limit(q domain.GeocoderQuery) int {
	if q.Size > 0 {
		return q.Size
	}
	return 4
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func likeEscape(s string) string {
	return likeEscaper.Replace(s)
}

func nilEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
