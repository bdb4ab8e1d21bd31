package domain

import "github.com/paulmach/orb"

// TransitStop is a public transport stop served by the transit backend.
type TransitStop struct {
	StopID               string
	Agency               string
	Name                 string
	Location             orb.Point
	PlatformCode         string
	WheelchairAccessible bool
	// Distance from the query point in meters, when the lookup had one.
	Distance *float64
}
