package operator

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/roman-kulish/flight-supervisor/internal/telemetry"
	"github.com/roman-kulish/flight-supervisor/internal/waypoint"
)

// ErrUnknownRecord is returned for lines with an unknown record keyword
var ErrUnknownRecord = errors.New("unknown record")

// Record is one parsed operator line
type Record interface {
	isRecord()
}

// RiskRecord carries a risk verdict: "risk -1"
type RiskRecord struct {
	Level telemetry.RiskLevel
}

// AltitudeRecord carries a flight altitude setting in meters: "alt 20"
type AltitudeRecord struct {
	Meters float64
}

// WaypointRecord carries one waypoint in "lon,lat" form: "waypoint -2.67,51.42"
type WaypointRecord struct {
	Waypoint waypoint.Waypoint
}

func (RiskRecord) isRecord()     {}
func (AltitudeRecord) isRecord() {}
func (WaypointRecord) isRecord() {}

// ParseRecord parses one line. Blank lines and '#' comments return nil, nil.
func ParseRecord(line string) (Record, error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return nil, nil
	}

	keyword, value, _ := strings.Cut(line, " ")
	value = strings.TrimSpace(value)

	switch keyword {
	case "risk":
		level, err := telemetry.ParseRiskLevel(value)
		if err != nil {
			return nil, err
		}
		return RiskRecord{Level: level}, nil

	case "alt":
		meters, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("altitude setting: %w", err)
		}
		if math.IsNaN(meters) || math.IsInf(meters, 0) || meters <= 0 {
			return nil, fmt.Errorf("altitude setting must be positive: %q", value)
		}
		return AltitudeRecord{Meters: meters}, nil

	case "waypoint":
		w, err := waypoint.Parse(value)
		if err != nil {
			return nil, err
		}
		return WaypointRecord{Waypoint: w}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownRecord, keyword)
	}
}
