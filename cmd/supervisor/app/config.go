package app

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roman-kulish/flight-supervisor/internal/command"
	"github.com/roman-kulish/flight-supervisor/internal/flight"
	"github.com/roman-kulish/flight-supervisor/internal/link"
	"github.com/roman-kulish/flight-supervisor/internal/waypoint"
)

// StdStream selects stdin or stdout for operator input and output
const StdStream = "-"

// Config represents the main application configuration
type Config struct {
	Settings  Settings        `yaml:"settings"`
	Link      LinkConfig      `yaml:"link"`
	Flight    FlightConfig    `yaml:"flight"`
	Waypoints WaypointsConfig `yaml:"waypoints"`
	Operator  OperatorConfig  `yaml:"operator"`
	Gateway   GatewayConfig   `yaml:"gateway"`
}

// Settings represents global application settings
type Settings struct {
	LogLevel string `yaml:"logLevel"`
}

// Level returns the configured log level
func (s *Settings) Level() (slog.Level, error) {
	var level slog.Level
	if s.LogLevel == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(s.LogLevel)); err != nil {
		return level, fmt.Errorf("settings: invalid log level %q", s.LogLevel)
	}
	return level, nil
}

// LinkConfig represents the MAVLink connection to the vehicle
type LinkConfig struct {
	Endpoint        string `yaml:"endpoint"`
	Address         string `yaml:"address"`
	Device          string `yaml:"device"`
	Baud            int    `yaml:"baud"`
	SystemID        uint8  `yaml:"systemId"`
	TargetSystem    uint8  `yaml:"targetSystem"`
	TargetComponent uint8  `yaml:"targetComponent"`
}

func (c *LinkConfig) Validate() error {
	switch c.Endpoint {
	case link.EndpointUDPServer, link.EndpointUDPClient, link.EndpointTCPClient:
		if c.Address == "" {
			return fmt.Errorf("link: address is required for %s endpoint", c.Endpoint)
		}
	case link.EndpointSerial:
		if c.Device == "" {
			return errors.New("link: device is required for serial endpoint")
		}
		if c.Baud <= 0 {
			return fmt.Errorf("link: baud rate must be positive: %d given", c.Baud)
		}
	default:
		return fmt.Errorf("link: unknown endpoint type %q", c.Endpoint)
	}

	if c.SystemID == 0 {
		return errors.New("link: system id must not be 0")
	}
	return nil
}

func (c *LinkConfig) linkConfig() link.Config {
	return link.Config{
		Endpoint:        c.Endpoint,
		Address:         c.Address,
		Device:          c.Device,
		Baud:            c.Baud,
		SystemID:        c.SystemID,
		TargetSystem:    c.TargetSystem,
		TargetComponent: c.TargetComponent,
	}
}

// StreamConfig is a telemetry stream requested from the vehicle during init
type StreamConfig struct {
	ID             uint32 `yaml:"id"`
	IntervalMicros int64  `yaml:"intervalMicros"`
}

// FlightConfig represents the sequencer settings
type FlightConfig struct {
	InitialState          string         `yaml:"initialState"`
	TickInterval          TimeDuration   `yaml:"tickInterval"`
	StateTimeout          int            `yaml:"stateTimeout"`
	TakeoffAltitude       float64        `yaml:"takeoffAltitude"`
	ClimbTolerance        float64        `yaml:"climbTolerance"`
	ArrivalTolerance      float64        `yaml:"arrivalTolerance"`
	TransitAltitudeOffset float64        `yaml:"transitAltitudeOffset"`
	Streams               []StreamConfig `yaml:"streams"`
}

func (c *FlightConfig) Validate() error {
	state, err := flight.ParseState(c.InitialState)
	if err != nil {
		return fmt.Errorf("flight: %w", err)
	}
	if state != flight.StateCheck && state != flight.StateInit {
		return fmt.Errorf("flight: initial state must be %s or %s: %s given", flight.StateCheck, flight.StateInit, state)
	}

	if err = c.TickInterval.Validate(); err != nil {
		return fmt.Errorf("flight: tick interval: %w", err)
	}
	if c.StateTimeout <= 0 {
		return fmt.Errorf("flight: state timeout must be positive: %d given", c.StateTimeout)
	}
	if c.TakeoffAltitude < 0 || math.IsNaN(c.TakeoffAltitude) {
		return fmt.Errorf("flight: takeoff altitude must not be negative: %v given", c.TakeoffAltitude)
	}
	if c.ClimbTolerance <= 0 {
		return fmt.Errorf("flight: climb tolerance must be positive: %v given", c.ClimbTolerance)
	}
	if c.ArrivalTolerance <= 0 {
		return fmt.Errorf("flight: arrival tolerance must be positive: %v given", c.ArrivalTolerance)
	}

	for i, s := range c.Streams {
		if s.IntervalMicros <= 0 {
			return fmt.Errorf("flight: stream %d: interval must be positive: %d given", i, s.IntervalMicros)
		}
	}
	return nil
}

func (c *FlightConfig) sequencerConfig() flight.Config {
	streams := make([]flight.Stream, len(c.Streams))
	for i, s := range c.Streams {
		streams[i] = flight.Stream{ID: s.ID, IntervalMicros: s.IntervalMicros}
	}

	return flight.Config{
		InitialState:          flight.State(c.InitialState),
		StateTimeout:          c.StateTimeout,
		ClimbTolerance:        c.ClimbTolerance,
		ArrivalTolerance:      c.ArrivalTolerance,
		TransitAltitudeOffset: c.TransitAltitudeOffset,
		Streams:               streams,
	}
}

// WaypointsConfig represents waypoint sources and the sentinel filter
type WaypointsConfig struct {
	Sentinel          waypoint.Waypoint `yaml:"sentinel"`
	SentinelTolerance float64           `yaml:"sentinelTolerance"`
	Initial           []string          `yaml:"initial"` // "lon,lat" pairs
	MissionDatabase   string            `yaml:"missionDatabase"`
	Mission           string            `yaml:"mission"`
}

func (c *WaypointsConfig) Validate() error {
	if err := c.Sentinel.Validate(); err != nil {
		return fmt.Errorf("waypoints: sentinel: %w", err)
	}
	if c.SentinelTolerance < 0 {
		return fmt.Errorf("waypoints: sentinel tolerance must not be negative: %v given", c.SentinelTolerance)
	}
	for _, s := range c.Initial {
		if _, err := waypoint.Parse(s); err != nil {
			return fmt.Errorf("waypoints: initial: %w", err)
		}
	}
	if (c.MissionDatabase == "") != (c.Mission == "") {
		return errors.New("waypoints: missionDatabase and mission must be set together")
	}
	return nil
}

func (c *WaypointsConfig) filter() waypoint.Filter {
	return waypoint.Filter{Sentinel: c.Sentinel, Tolerance: c.SentinelTolerance}
}

// OperatorConfig represents the operator text channel. "-" selects stdin or
// stdout, an empty value disables the direction.
type OperatorConfig struct {
	Input  string `yaml:"input"`
	Output string `yaml:"output"`
}

// GatewayConfig represents the outbound command buffer
type GatewayConfig struct {
	QueueSize int `yaml:"queueSize"`
}

func (c *GatewayConfig) Validate() error {
	if c.QueueSize <= 0 {
		return fmt.Errorf("gateway: queue size must be positive: %d given", c.QueueSize)
	}
	return nil
}

// NewConfig returns a configuration with defaults matching the reference vehicle setup
func NewConfig() *Config {
	streams := make([]StreamConfig, len(flight.DefaultStreams))
	for i, s := range flight.DefaultStreams {
		streams[i] = StreamConfig{ID: s.ID, IntervalMicros: s.IntervalMicros}
	}

	return &Config{
		Settings: Settings{LogLevel: "info"},
		Link: LinkConfig{
			Endpoint:        link.EndpointUDPServer,
			Address:         "0.0.0.0:14550",
			SystemID:        255,
			TargetSystem:    1,
			TargetComponent: 1,
		},
		Flight: FlightConfig{
			InitialState:          string(flight.StateCheck),
			TickInterval:          NewTimeDuration(flight.TickInterval),
			StateTimeout:          flight.StateTimeout,
			TakeoffAltitude:       20,
			ClimbTolerance:        flight.ClimbTolerance,
			ArrivalTolerance:      flight.ArrivalTolerance,
			TransitAltitudeOffset: flight.TransitAltitudeOffset,
			Streams:               streams,
		},
		Waypoints: WaypointsConfig{
			Sentinel:          waypoint.Waypoint{Latitude: waypoint.SentinelLatitude, Longitude: waypoint.SentinelLongitude},
			SentinelTolerance: waypoint.SentinelTolerance,
		},
		Operator: OperatorConfig{
			Input:  StdStream,
			Output: StdStream,
		},
		Gateway: GatewayConfig{
			QueueSize: command.DefaultQueueSize,
		},
	}
}

// Validate checks every configuration section
func (c *Config) Validate() error {
	if _, err := c.Settings.Level(); err != nil {
		return err
	}
	if err := c.Link.Validate(); err != nil {
		return err
	}
	if err := c.Flight.Validate(); err != nil {
		return err
	}
	if err := c.Waypoints.Validate(); err != nil {
		return err
	}
	return c.Gateway.Validate()
}

// LoadConfig reads a YAML configuration file over the defaults and validates it
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	return ParseConfig(data)
}

// ParseConfig decodes YAML configuration over the defaults and validates it
func ParseConfig(data []byte) (*Config, error) {
	config := NewConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// TimeDuration is a time.Duration written as "1s", "500ms" in YAML
type TimeDuration time.Duration

func NewTimeDuration(d time.Duration) TimeDuration {
	return TimeDuration(d)
}

func (d *TimeDuration) UnmarshalYAML(value *yaml.Node) error {
	duration, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("app.TimeDuration: failed to parse: %s", err)
	}

	*d = TimeDuration(duration)
	return nil
}

func (d TimeDuration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

func (d *TimeDuration) Validate() error {
	duration := time.Duration(*d)

	if duration < time.Millisecond {
		return fmt.Errorf("app.TimeDuration: must be at least 1ms: %s given", duration)
	}
	return nil
}

// Duration returns d as a time.Duration
func (d TimeDuration) Duration() time.Duration {
	return time.Duration(d)
}
