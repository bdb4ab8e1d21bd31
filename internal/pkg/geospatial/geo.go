package geospatial

import (
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// roughDigits is the rounding precision of RoughlyEqual, roughly 10 m at the equator.
const roughDigits = 4

// RoughlyEqual reports whether a and b are equal once each component is rounded
// (half away from zero) to 4 decimal digits.
func RoughlyEqual(a, b orb.Point) bool {
	return roundRough(a.Lon()) == roundRough(b.Lon()) &&
		roundRough(a.Lat()) == roundRough(b.Lat())
}

// roundRough returns v rounded to roughDigits decimals, scaled to an integer.
// It rounds the shortest decimal form of v, so 1.00005 goes up to 10001
// even though its binary value is slightly below the half.
func roundRough(v float64) int64 {
	s := strconv.FormatFloat(math.Abs(v), 'f', -1, 64)
	whole, frac, _ := strings.Cut(s, ".")
	frac += strings.Repeat("0", roughDigits+1)

	n, err := strconv.ParseInt(whole+frac[:roughDigits], 10, 64)
	if err != nil {
		// NaN, infinities and values far outside any coordinate range.
		if v < 0 {
			return math.MinInt64
		}
		return math.MaxInt64
	}
	if frac[roughDigits] >= '5' {
		n++
	}
	if v < 0 {
		n = -n
	}
	return n
}

// Distance returns the great-circle distance in meters between two points.
func Distance(a, b orb.Point) float64 {
	return geo.DistanceHaversine(a, b)
}
