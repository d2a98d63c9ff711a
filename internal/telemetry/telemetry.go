package telemetry

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Health is the vehicle system state as reported by the autopilot.
// Values follow the MAVLink MAV_STATE enumeration.
type Health uint8

const (
	HealthUninitialized Health = iota
	HealthBooting
	HealthCalibrating
	HealthStandby
	HealthActive
	HealthCritical
	HealthEmergency
	HealthPowerOff
	HealthFlightTermination
)

var healthNames = [...]string{
	HealthUninitialized:     "uninitialized",
	HealthBooting:           "booting",
	HealthCalibrating:       "calibrating",
	HealthStandby:           "standby",
	HealthActive:            "active",
	HealthCritical:          "critical",
	HealthEmergency:         "emergency",
	HealthPowerOff:          "poweroff",
	HealthFlightTermination: "flight-termination",
}

func (h Health) String() string {
	if int(h) < len(healthNames) {
		return healthNames[h]
	}
	return fmt.Sprintf("health(%d)", uint8(h))
}

// RiskLevel is the verdict of the external risk assessment component.
type RiskLevel int8

const (
	RiskAbort  RiskLevel = -1 // reset to init
	RiskHold   RiskLevel = 1  // stop in place
	RiskResume RiskLevel = 2  // hand over to the autopilot
)

// ErrUnknownRiskLevel is returned when a risk signal has no known meaning
var ErrUnknownRiskLevel = errors.New("unknown risk level")

func (r RiskLevel) String() string {
	switch r {
	case RiskAbort:
		return "abort"
	case RiskHold:
		return "hold"
	case RiskResume:
		return "resume"
	default:
		return fmt.Sprintf("risk(%d)", int8(r))
	}
}

// ParseRiskLevel converts the wire form ("-1", "1", "2") into a RiskLevel
func ParseRiskLevel(s string) (RiskLevel, error) {
	switch strings.TrimSpace(s) {
	case "-1":
		return RiskAbort, nil
	case "1":
		return RiskHold, nil
	case "2":
		return RiskResume, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownRiskLevel, s)
	}
}

// VehicleStatus is the last known vehicle state
type VehicleStatus struct {
	Armed  bool   // Motors armed
	Health Health // System health
	Mode   string // Autopilot flight mode, e.g. "GUIDED"
}

// Position is a global position fix
type Position struct {
	Latitude  float64 // Degrees, WGS84
	Longitude float64 // Degrees, WGS84
	Altitude  float64 // Meters, absolute
}

// Risk is a received risk signal. Seq increases with every record so a
// consumer can tell a repeated level apart from a new signal.
type Risk struct {
	Level      RiskLevel
	Seq        uint64
	ReceivedAt time.Time
}

// Snapshot is an immutable view of the telemetry cache. Nil pointers mean the
// value has not been observed yet.
type Snapshot struct {
	Status            *VehicleStatus
	Position          *Position
	ReferenceAltitude *float64 // Absolute altitude captured when arming succeeded
	RelativeAltitude  *float64 // Position altitude minus reference altitude
	AltitudeSetting   *float64 // Requested flight altitude in meters
	Risk              *Risk
}
