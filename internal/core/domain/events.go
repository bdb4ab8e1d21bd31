package domain

import (
	"time"

	"github.com/paulmach/orb"
)

// QueryEvent summarises one orchestrated geocoding request.
type QueryEvent struct {
	Time      time.Time     `json:"time"`
	Method    Method        `json:"method"`
	Text      string        `json:"text,omitempty"`
	Focus     *orb.Point    `json:"focus,omitempty"`
	Backends  []string      `json:"backends"`
	Fallbacks []string      `json:"fallbacks,omitempty"`
	Results   int           `json:"results"`
	Duration  time.Duration `json:"duration"`
}
