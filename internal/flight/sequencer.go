package flight

import (
	"fmt"
	"io"
	"log/slog"
	"math"

	"github.com/dustin/go-humanize"

	"github.com/roman-kulish/flight-supervisor/internal/telemetry"
	"github.com/roman-kulish/flight-supervisor/internal/waypoint"
)

const (
	// StateTimeout is the number of ticks after which a waiting state gives up
	StateTimeout = 60

	// ClimbTolerance is how far below the altitude setting climbing may stop, in meters
	ClimbTolerance = 1.0

	// ArrivalTolerance is the per-axis distance in degrees at which a waypoint is reached
	ArrivalTolerance = 1e-4

	// TransitAltitudeOffset is subtracted from the reference altitude to get
	// the absolute altitude of position setpoints
	TransitAltitudeOffset = 30.0

	// ReturnRetryTicks is how often landing re-requests the return mode
	ReturnRetryTicks = 5

	GuidedMode = "GUIDED"
	ReturnMode = "RTL"
)

// Gateway issues commands to the vehicle. No call may block or report the
// vehicle's reply: success is observed later through telemetry.
type Gateway interface {
	RequestTelemetryStream(streamID uint32, intervalMicros int64)
	RequestModeChange(mode string)
	RequestArm()
	RequestTakeoff(altitude float64)
	PublishSetpoint(lat, lon, alt float64)
	PublishVelocity(vx, vy, vz, wx, wy, wz float64)
	PublishRiskInput(text string)
}

// Telemetry is the read side of the telemetry cache plus reference capture
type Telemetry interface {
	Snapshot() telemetry.Snapshot
	SetReferenceAltitude(alt float64) bool
}

// Stream is a telemetry stream requested during init
type Stream struct {
	ID             uint32
	IntervalMicros int64
}

// DefaultStreams are global position (33) and local position (32) at 1 Hz
var DefaultStreams = []Stream{
	{ID: 33, IntervalMicros: 1_000_000},
	{ID: 32, IntervalMicros: 1_000_000},
}

// Setpoint is the last position target sent to the vehicle
type Setpoint struct {
	Latitude  float64
	Longitude float64
	Altitude  float64
}

// Config tunes the sequencer. Zero values take the package defaults.
type Config struct {
	InitialState          State
	StateTimeout          int
	ClimbTolerance        float64
	ArrivalTolerance      float64
	TransitAltitudeOffset float64
	Streams               []Stream
}

func (c *Config) setDefaults() {
	if c.InitialState == "" {
		c.InitialState = StateCheck
	}
	if c.StateTimeout <= 0 {
		c.StateTimeout = StateTimeout
	}
	if c.ClimbTolerance <= 0 {
		c.ClimbTolerance = ClimbTolerance
	}
	if c.ArrivalTolerance <= 0 {
		c.ArrivalTolerance = ArrivalTolerance
	}
	if c.TransitAltitudeOffset == 0 {
		c.TransitAltitudeOffset = TransitAltitudeOffset
	}
	if c.Streams == nil {
		c.Streams = DefaultStreams
	}
}

// WithLogger sets the logger for the sequencer
func WithLogger(logger *slog.Logger) func(s *Sequencer) {
	return func(s *Sequencer) {
		s.logger = logger.With(slog.String("component", "sequencer"))
	}
}

// Sequencer is the flight state machine. It is not safe for concurrent use:
// Tick and ApplyRisk must be called from one goroutine, see Runner.
type Sequencer struct {
	cfg       Config
	gateway   Gateway
	telemetry Telemetry
	waypoints *waypoint.Queue

	state   State
	timer   int
	target  *Setpoint
	riskSeq uint64
	fault   error

	logger *slog.Logger
}

// NewSequencer creates a sequencer in cfg.InitialState with a discard logger
func NewSequencer(cfg Config, gw Gateway, t Telemetry, waypoints *waypoint.Queue, options ...func(s *Sequencer)) *Sequencer {
	cfg.setDefaults()

	s := Sequencer{
		cfg:       cfg,
		gateway:   gw,
		telemetry: t,
		waypoints: waypoints,
		state:     cfg.InitialState,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&s)
	}

	return &s
}

// State returns the current control state
func (s *Sequencer) State() State {
	return s.state
}

// StateTimer returns the number of consecutive ticks spent in the current state
func (s *Sequencer) StateTimer() int {
	return s.timer
}

// Target returns the last published position setpoint
func (s *Sequencer) Target() (Setpoint, bool) {
	if s.target == nil {
		return Setpoint{}, false
	}
	return *s.target, true
}

// Err returns the cause of a fatal exit, nil otherwise
func (s *Sequencer) Err() error {
	return s.fault
}

// Tick runs one step: a pending risk signal wins over the transition table,
// otherwise the current state's rule is evaluated and the timer advanced.
func (s *Sequencer) Tick() State {
	snap := s.telemetry.Snapshot()

	if s.applyRisk(snap.Risk) {
		return s.state
	}

	s.advance(s.evaluate(snap))

	s.logger.Debug("controller state",
		slog.String("state", s.state.String()),
		slog.Int("steps", s.timer))

	return s.state
}

// ApplyRisk applies the latest risk signal if it has not been applied yet
func (s *Sequencer) ApplyRisk() bool {
	return s.applyRisk(s.telemetry.Snapshot().Risk)
}

func (s *Sequencer) applyRisk(r *telemetry.Risk) bool {
	if r == nil || r.Seq <= s.riskSeq {
		return false
	}
	s.riskSeq = r.Seq

	if s.state == StateExit {
		s.logger.Warn("risk signal ignored after exit", slog.String("risk", r.Level.String()))
		return false
	}

	next, ok := overrideTarget(r.Level)
	if !ok {
		s.logger.Warn("risk signal ignored", slog.String("risk", r.Level.String()))
		return false
	}

	s.logger.Warn("risk override",
		slog.String("risk", r.Level.String()),
		slog.String("from", s.state.String()),
		slog.String("to", next.String()),
		slog.Int("steps", s.timer))

	s.state = next
	s.timer = 0

	if next == StateStop {
		s.holdPosition()
	}

	return true
}

func (s *Sequencer) advance(next State) {
	if next == s.state {
		s.timer++
		return
	}

	s.logger.Info("state transition",
		slog.String("from", s.state.String()),
		slog.String("to", next.String()),
		slog.Int("steps", s.timer))

	s.state = next
	s.timer = 0
}

func (s *Sequencer) timedOut() bool {
	return s.timer > s.cfg.StateTimeout
}

func (s *Sequencer) evaluate(snap telemetry.Snapshot) State {
	switch s.state {
	case StateCheck:
		s.gateway.PublishRiskInput(RiskInputArmCheck)
		return StateCheck

	case StateInit:
		return s.initialize(snap)

	case StateArming:
		return s.arm(snap)

	case StateTakeoff:
		return s.takeoff(snap)

	case StateClimbing:
		return s.climb(snap)

	case StateGoalPositionChecking:
		return s.nextGoal(snap)

	case StateOnWay:
		return s.transit(snap)

	case StateLanding:
		return s.land(snap)

	case StateStop:
		s.holdPosition()
		return StateStop

	case StateAuto:
		return StateAuto

	case StateExit:
		return StateExit

	default:
		s.logger.Error("unknown state", slog.String("state", s.state.String()))
		return StateExit
	}
}

func (s *Sequencer) initialize(snap telemetry.Snapshot) State {
	if snap.Status == nil || snap.Status.Health != telemetry.HealthActive {
		return StateInit
	}

	s.logger.Info("drone initialized")

	for _, stream := range s.cfg.Streams {
		s.gateway.RequestTelemetryStream(stream.ID, stream.IntervalMicros)
		s.logger.Info("requested telemetry stream",
			slog.Uint64("msg", uint64(stream.ID)),
			slog.String("rate", humanize.SIWithDigits(1e6/float64(stream.IntervalMicros), 2, "Hz")))
	}

	s.gateway.RequestModeChange(GuidedMode)
	s.gateway.PublishRiskInput(RiskInputInitFinished)

	return StateArming
}

func (s *Sequencer) arm(snap telemetry.Snapshot) State {
	if snap.Status != nil && snap.Status.Armed {
		switch {
		case snap.ReferenceAltitude != nil:
			s.logger.Info("arming successful, keeping reference altitude",
				slog.Float64("reference", *snap.ReferenceAltitude))
			return StateTakeoff

		case snap.Position != nil:
			s.telemetry.SetReferenceAltitude(snap.Position.Altitude)
			s.logger.Info("arming successful", slog.Float64("reference", snap.Position.Altitude))
			return StateTakeoff
		}
	}

	if s.timedOut() {
		s.logger.Error("failed to arm", slog.Int("steps", s.timer))
		s.fault = ErrArmTimeout
		return StateExit
	}

	// armed, waiting for a position fix to capture the reference
	if snap.Status != nil && snap.Status.Armed {
		return StateArming
	}

	s.gateway.RequestArm()
	return StateArming
}

func (s *Sequencer) takeoff(snap telemetry.Snapshot) State {
	if snap.AltitudeSetting != nil {
		s.gateway.RequestTakeoff(*snap.AltitudeSetting)
		s.logger.Info("requested takeoff", slog.Float64("altitude", *snap.AltitudeSetting))
		return StateClimbing
	}

	if s.timedOut() {
		s.logger.Error("no takeoff altitude", slog.Int("steps", s.timer))
		s.fault = ErrTakeoffTimeout
		return StateExit
	}

	return StateTakeoff
}

func (s *Sequencer) climb(snap telemetry.Snapshot) State {
	if snap.RelativeAltitude != nil && snap.AltitudeSetting != nil &&
		*snap.RelativeAltitude > *snap.AltitudeSetting-s.cfg.ClimbTolerance {
		s.logger.Info("close enough to flight altitude", slog.Float64("altitude", *snap.RelativeAltitude))
		return StateGoalPositionChecking
	}

	if s.timedOut() {
		s.logger.Error("failed to reach altitude", slog.Int("steps", s.timer))
		return StateLanding
	}

	if snap.RelativeAltitude != nil {
		s.logger.Info("climbing", slog.Float64("altitude", *snap.RelativeAltitude))
	}
	return StateClimbing
}

func (s *Sequencer) nextGoal(snap telemetry.Snapshot) State {
	goal, ok := s.waypoints.Front()
	if !ok {
		s.logger.Info("no goal position")
		return StateLanding
	}

	if snap.ReferenceAltitude == nil {
		return StateGoalPositionChecking
	}

	s.flyTo(goal.Latitude, goal.Longitude, *snap.ReferenceAltitude-s.cfg.TransitAltitudeOffset)
	return StateOnWay
}

func (s *Sequencer) flyTo(lat, lon, alt float64) {
	s.target = &Setpoint{Latitude: lat, Longitude: lon, Altitude: alt}
	s.gateway.PublishSetpoint(lat, lon, alt)
	s.logger.Info(fmt.Sprintf("sent drone to %.7fN, %.7fE", lat, lon), slog.Float64("altitude", alt))
}

func (s *Sequencer) transit(snap telemetry.Snapshot) State {
	if snap.Position != nil && s.target != nil {
		dLat := snap.Position.Latitude - s.target.Latitude
		dLon := snap.Position.Longitude - s.target.Longitude

		if math.Abs(dLon) < s.cfg.ArrivalTolerance && math.Abs(dLat) < s.cfg.ArrivalTolerance {
			s.logger.Info("close enough to target", slog.Float64("dLat", dLat), slog.Float64("dLon", dLon))

			if s.waypoints.Pop() == 0 {
				return StateLanding
			}
			return StateGoalPositionChecking
		}

		if !s.timedOut() {
			s.logger.Info("target error", slog.Float64("dLat", dLat), slog.Float64("dLon", dLon))
		}
	}

	if s.timedOut() {
		s.logger.Error("failed to reach target", slog.Int("steps", s.timer))
		return StateLanding
	}

	return StateOnWay
}

func (s *Sequencer) land(snap telemetry.Snapshot) State {
	if snap.Status != nil && !snap.Status.Armed {
		s.logger.Info("vehicle disarmed, flight complete")
		return StateExit
	}

	if (snap.Status == nil || snap.Status.Mode != ReturnMode) && s.timer%ReturnRetryTicks == 0 {
		s.gateway.RequestModeChange(ReturnMode)
		s.logger.Info("requested return to launch")
	}

	return StateLanding
}

func (s *Sequencer) holdPosition() {
	s.gateway.PublishVelocity(0, 0, 0, 0, 0, 0)
}
