package waypoint

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	// SentinelLongitude and SentinelLatitude locate the launch site that the
	// waypoint source reports about itself. Pairs close to it are not waypoints.
	SentinelLongitude = -2.67155
	SentinelLatitude  = 51.42341

	// SentinelTolerance is the per-axis distance in degrees within which a pair
	// matches the sentinel
	SentinelTolerance = 0.001
)

// ErrMalformed is returned when a waypoint string cannot be parsed
var ErrMalformed = errors.New("malformed waypoint")

// Waypoint is a target location in degrees, WGS84
type Waypoint struct {
	Latitude  float64 `yaml:"latitude" json:"latitude"`
	Longitude float64 `yaml:"longitude" json:"longitude"`
}

func (w Waypoint) String() string {
	return fmt.Sprintf("%.7fN,%.7fE", w.Latitude, w.Longitude)
}

// Validate checks the coordinates are within WGS84 bounds
func (w Waypoint) Validate() error {
	if math.IsNaN(w.Latitude) || w.Latitude < -90 || w.Latitude > 90 {
		return fmt.Errorf("%w: latitude out of range: %v", ErrMalformed, w.Latitude)
	}
	if math.IsNaN(w.Longitude) || w.Longitude < -180 || w.Longitude > 180 {
		return fmt.Errorf("%w: longitude out of range: %v", ErrMalformed, w.Longitude)
	}
	return nil
}

// Parse converts the "lon,lat" text form into a Waypoint. Note the order:
// longitude comes first on the wire.
func Parse(s string) (Waypoint, error) {
	fields := strings.Split(strings.TrimSpace(s), ",")
	if len(fields) != 2 {
		return Waypoint{}, fmt.Errorf("%w: expected \"lon,lat\": %q", ErrMalformed, s)
	}

	lon, err := strconv.ParseFloat(strings.TrimSpace(fields[0]), 64)
	if err != nil {
		return Waypoint{}, fmt.Errorf("%w: longitude: %w", ErrMalformed, err)
	}

	lat, err := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
	if err != nil {
		return Waypoint{}, fmt.Errorf("%w: latitude: %w", ErrMalformed, err)
	}

	w := Waypoint{Latitude: lat, Longitude: lon}
	if err = w.Validate(); err != nil {
		return Waypoint{}, err
	}
	return w, nil
}

// Filter drops waypoints that match the sentinel coordinate
type Filter struct {
	Sentinel  Waypoint
	Tolerance float64
}

// DefaultFilter returns the filter for the default launch sentinel
func DefaultFilter() Filter {
	return Filter{
		Sentinel:  Waypoint{Latitude: SentinelLatitude, Longitude: SentinelLongitude},
		Tolerance: SentinelTolerance,
	}
}

// Accept reports whether w is a real waypoint, i.e. it differs from the
// sentinel by more than the tolerance on at least one axis
func (f Filter) Accept(w Waypoint) bool {
	return math.Abs(w.Longitude-f.Sentinel.Longitude) > f.Tolerance ||
		math.Abs(w.Latitude-f.Sentinel.Latitude) > f.Tolerance
}
