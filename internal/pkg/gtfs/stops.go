// Package gtfs reads transit stops out of GTFS static feeds.
package gtfs

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/paulmach/orb"

	"github.com/samirrijal/bilbopass-geocoder/internal/core/domain"
)

// location_type values that are not boarding points.
const (
	locationEntrance = "2"
	locationNode     = "3"
	locationBoarding = "4"
)

// OpenZip opens an in-memory GTFS archive.
func OpenZip(data []byte) (*zip.Reader, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open zip: %w", err)
	}
	return zr, nil
}

// ReadStops parses stops.txt. Rows without coordinates, entrances and
// generic nodes are skipped; malformed rows are skipped too.
func ReadStops(zr *zip.Reader, agency string) ([]domain.TransitStop, error) {
	f, err := openCSV(zr, "stops.txt")
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := indexColumns(header)
	for _, required := range []string{"stop_id", "stop_name", "stop_lat", "stop_lon"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("stops.txt: missing column %s", required)
		}
	}

	var stops []domain.TransitStop
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			continue
		}

		switch getField(record, cols, "location_type") {
		case locationEntrance, locationNode, locationBoarding:
			continue
		}

		lat, errLat := strconv.ParseFloat(getField(record, cols, "stop_lat"), 64)
		lon, errLon := strconv.ParseFloat(getField(record, cols, "stop_lon"), 64)
		if errLat != nil || errLon != nil || (lat == 0 && lon == 0) {
			continue
		}

		stops = append(stops, domain.TransitStop{
			StopID:               getField(record, cols, "stop_id"),
			Agency:               agency,
			Name:                 getField(record, cols, "stop_name"),
			Location:             orb.Point{lon, lat},
			PlatformCode:         getField(record, cols, "platform_code"),
			WheelchairAccessible: getField(record, cols, "wheelchair_boarding") == "1",
		})
	}
	return stops, nil
}

func openCSV(zr *zip.Reader, name string) (io.ReadCloser, error) {
	for _, f := range zr.File {
		if strings.EqualFold(f.Name, name) {
			return f.Open()
		}
	}
	return nil, fmt.Errorf("file %s not found in zip", name)
}

func indexColumns(header []string) map[string]int {
	m := make(map[string]int, len(header))
	for i, col := range header {
		// Strip BOM from first column
		col = strings.TrimPrefix(col, "\xef\xbb\xbf")
		m[strings.TrimSpace(col)] = i
	}
	return m
}

func getField(record []string, cols map[string]int, name string) string {
	idx, ok := cols[name]
	if !ok || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}
