package usecases

import (
	"encoding/json"
	"strconv"

	"github.com/paulmach/orb/geojson"
	"golang.org/x/text/cases"
)

// Feature property names shared by all backends.
const (
	PropName       = "name"
	PropLayer      = "layer"
	PropDistance   = "distance"
	PropSource     = "source"
	PropAddendum   = "addendum"
	PropCategories = "categories"
)

func featureName(f *geojson.Feature) string {
	return stringProp(f.Properties, PropName)
}

func featureLayer(f *geojson.Feature) string {
	return stringProp(f.Properties, PropLayer)
}

func stringProp(props map[string]interface{}, key string) string {
	s, _ := props[key].(string)
	return s
}

func numberProp(props map[string]interface{}, key string) (float64, bool) {
	switch v := props[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	}
	return 0, false
}

// asMap accepts both decoded JSON objects and geojson.Properties built in code.
func asMap(v interface{}) (map[string]interface{}, bool) {
	switch m := v.(type) {
	case map[string]interface{}:
		return m, true
	case geojson.Properties:
		return m, true
	}
	return nil, false
}

// fold case-folds s for case-insensitive comparison.
func fold(s string) string {
	// Casers are stateful, so one is built per call.
	return cases.Fold().String(s)
}
