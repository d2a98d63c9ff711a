package command

import "time"

// Kind identifies an outbound command record
type Kind string

const (
	KindTelemetryStream Kind = "telemetry-stream"
	KindModeChange      Kind = "mode-change"
	KindArm             Kind = "arm"
	KindTakeoff         Kind = "takeoff"
	KindSetpoint        Kind = "setpoint"
	KindVelocity        Kind = "velocity"
	KindRiskInput       Kind = "risk-input"
)

// Command is one outbound record. Records are fire-and-forget: nothing ever
// waits for or inspects a reply.
type Command interface {
	Kind() Kind
	IssuedAt() time.Time
}

// TelemetryStream asks the vehicle to send a message at a fixed interval
type TelemetryStream struct {
	At             time.Time
	StreamID       uint32
	IntervalMicros int64
}

func (c TelemetryStream) Kind() Kind          { return KindTelemetryStream }
func (c TelemetryStream) IssuedAt() time.Time { return c.At }

// ModeChange asks the autopilot to switch flight mode
type ModeChange struct {
	At   time.Time
	Mode string
}

func (c ModeChange) Kind() Kind          { return KindModeChange }
func (c ModeChange) IssuedAt() time.Time { return c.At }

// Arm asks the vehicle to arm (or disarm) the motors
type Arm struct {
	At    time.Time
	Value bool
}

func (c Arm) Kind() Kind          { return KindArm }
func (c Arm) IssuedAt() time.Time { return c.At }

// Takeoff asks the vehicle to climb to Altitude meters above launch
type Takeoff struct {
	At       time.Time
	Altitude float64
}

func (c Takeoff) Kind() Kind          { return KindTakeoff }
func (c Takeoff) IssuedAt() time.Time { return c.At }

// Setpoint is a global position target, altitude absolute
type Setpoint struct {
	At        time.Time
	Latitude  float64
	Longitude float64
	Altitude  float64
}

func (c Setpoint) Kind() Kind          { return KindSetpoint }
func (c Setpoint) IssuedAt() time.Time { return c.At }

// Velocity is a body velocity target: linear m/s and angular rad/s
type Velocity struct {
	At                        time.Time
	LinearX, LinearY, LinearZ float64
	AngularX, AngularY        float64
	AngularZ                  float64
}

func (c Velocity) Kind() Kind          { return KindVelocity }
func (c Velocity) IssuedAt() time.Time { return c.At }

// RiskInput is the free-text signal sent to the risk assessment component
type RiskInput struct {
	At   time.Time
	Text string
}

func (c RiskInput) Kind() Kind          { return KindRiskInput }
func (c RiskInput) IssuedAt() time.Time { return c.At }
