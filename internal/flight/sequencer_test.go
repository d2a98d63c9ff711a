package flight

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roman-kulish/flight-supervisor/internal/command"
	"github.com/roman-kulish/flight-supervisor/internal/telemetry"
	"github.com/roman-kulish/flight-supervisor/internal/waypoint"
)

type harness struct {
	cache *telemetry.Cache
	gw    *command.Queue
	queue *waypoint.Queue
	seq   *Sequencer
}

func newHarness(initial State, wps ...waypoint.Waypoint) *harness {
	h := harness{
		cache: telemetry.NewCache(),
		gw:    command.NewQueue(command.WithQueueSize(1024)),
		queue: waypoint.NewQueue(wps...),
	}
	h.seq = NewSequencer(Config{InitialState: initial}, h.gw, h.cache, h.queue)
	return &h
}

func (h *harness) commands() []command.Command {
	var cmds []command.Command
	for {
		select {
		case c := <-h.gw.Commands():
			cmds = append(cmds, c)
		default:
			return cmds
		}
	}
}

func kinds(cmds []command.Command) []command.Kind {
	out := make([]command.Kind, len(cmds))
	for i, c := range cmds {
		out[i] = c.Kind()
	}
	return out
}

// airborne puts the harness at 20 m above a reference of 100 m with a 20 m setting
func (h *harness) airborne() {
	h.cache.RecordStatus(telemetry.VehicleStatus{Armed: true, Health: telemetry.HealthActive, Mode: GuidedMode})
	h.cache.RecordPosition(telemetry.Position{Latitude: 51.4234, Longitude: -2.6715, Altitude: 120})
	h.cache.SetReferenceAltitude(100)
	h.cache.RecordAltitudeSetting(20)
}

func TestSequencer_TimerCountsWhileWaiting(t *testing.T) {
	for _, state := range []State{
		StateCheck,
		StateInit,
		StateArming,
		StateTakeoff,
		StateClimbing,
		StateGoalPositionChecking, // no reference altitude yet
		StateOnWay,
		StateLanding,
		StateStop,
		StateAuto,
		StateExit,
	} {
		t.Run(state.String(), func(t *testing.T) {
			h := newHarness(state, waypoint.Waypoint{Latitude: 51.424, Longitude: -2.670})

			for i := 1; i <= 3; i++ {
				assert.Equal(t, state, h.seq.Tick())
				assert.Equal(t, i, h.seq.StateTimer())
			}
		})
	}
}

func TestSequencer_TimerResetsOnChange(t *testing.T) {
	h := newHarness(StateInit)

	h.seq.Tick()
	h.seq.Tick()
	require.Equal(t, 2, h.seq.StateTimer())

	h.cache.RecordStatus(telemetry.VehicleStatus{Health: telemetry.HealthActive})
	assert.Equal(t, StateArming, h.seq.Tick())
	assert.Equal(t, 0, h.seq.StateTimer())
}

func TestSequencer_Check(t *testing.T) {
	h := newHarness(StateCheck)

	h.seq.Tick()
	cmds := h.commands()
	require.Len(t, cmds, 1)
	assert.Equal(t, RiskInputArmCheck, cmds[0].(command.RiskInput).Text)
}

func TestSequencer_Init(t *testing.T) {
	h := newHarness(StateInit)

	h.cache.RecordStatus(telemetry.VehicleStatus{Health: telemetry.HealthStandby})
	assert.Equal(t, StateInit, h.seq.Tick())
	assert.Empty(t, h.commands())

	h.cache.RecordStatus(telemetry.VehicleStatus{Health: telemetry.HealthActive})
	assert.Equal(t, StateArming, h.seq.Tick())

	cmds := h.commands()
	require.Len(t, cmds, 4)
	assert.Equal(t, uint32(33), cmds[0].(command.TelemetryStream).StreamID)
	assert.Equal(t, int64(1_000_000), cmds[0].(command.TelemetryStream).IntervalMicros)
	assert.Equal(t, uint32(32), cmds[1].(command.TelemetryStream).StreamID)
	assert.Equal(t, GuidedMode, cmds[2].(command.ModeChange).Mode)
	assert.Equal(t, RiskInputInitFinished, cmds[3].(command.RiskInput).Text)
}

func TestSequencer_ArmingCapturesReference(t *testing.T) {
	h := newHarness(StateArming)
	h.cache.RecordStatus(telemetry.VehicleStatus{Armed: false, Health: telemetry.HealthActive})
	h.cache.RecordPosition(telemetry.Position{Latitude: 51.4234, Longitude: -2.6715, Altitude: 123.4})

	assert.Equal(t, StateArming, h.seq.Tick())
	assert.Equal(t, []command.Kind{command.KindArm}, kinds(h.commands()))

	h.cache.RecordStatus(telemetry.VehicleStatus{Armed: true, Health: telemetry.HealthActive})
	assert.Equal(t, StateTakeoff, h.seq.Tick())
	assert.Empty(t, h.commands())

	snap := h.cache.Snapshot()
	require.NotNil(t, snap.ReferenceAltitude)
	assert.Equal(t, 123.4, *snap.ReferenceAltitude)
	require.NotNil(t, snap.RelativeAltitude)
	assert.Equal(t, 0.0, *snap.RelativeAltitude)
}

func TestSequencer_ArmedWithoutPositionWaits(t *testing.T) {
	h := newHarness(StateArming)
	h.cache.RecordStatus(telemetry.VehicleStatus{Armed: true, Health: telemetry.HealthActive})

	assert.Equal(t, StateArming, h.seq.Tick())
	assert.Empty(t, h.commands(), "no arm request once armed")

	h.cache.RecordPosition(telemetry.Position{Altitude: 50})
	assert.Equal(t, StateTakeoff, h.seq.Tick())
}

func TestSequencer_ArmTimeout(t *testing.T) {
	h := newHarness(StateArming)
	h.cache.RecordStatus(telemetry.VehicleStatus{Armed: false, Health: telemetry.HealthActive})

	for i := 0; i <= StateTimeout; i++ {
		require.Equal(t, StateArming, h.seq.Tick(), "tick %d", i+1)
	}
	assert.Len(t, h.commands(), StateTimeout+1)

	assert.Equal(t, StateExit, h.seq.Tick())
	assert.ErrorIs(t, h.seq.Err(), ErrArmTimeout)

	for i := 0; i < 5; i++ {
		h.seq.Tick()
	}
	assert.Empty(t, h.commands(), "no commands after exit")
	assert.Equal(t, StateExit, h.seq.State())
}

func TestSequencer_Takeoff(t *testing.T) {
	h := newHarness(StateTakeoff)

	assert.Equal(t, StateTakeoff, h.seq.Tick())

	h.cache.RecordAltitudeSetting(25)
	assert.Equal(t, StateClimbing, h.seq.Tick())

	cmds := h.commands()
	require.Len(t, cmds, 1)
	assert.Equal(t, 25.0, cmds[0].(command.Takeoff).Altitude)
}

func TestSequencer_TakeoffTimeout(t *testing.T) {
	h := newHarness(StateTakeoff)

	for i := 0; i <= StateTimeout; i++ {
		h.seq.Tick()
	}
	assert.Equal(t, StateExit, h.seq.Tick())
	assert.ErrorIs(t, h.seq.Err(), ErrTakeoffTimeout)
}

func TestSequencer_ClimbingTimeout(t *testing.T) {
	h := newHarness(StateClimbing)
	h.airborne()
	h.cache.RecordPosition(telemetry.Position{Altitude: 105}) // 5 m, setting 20 m

	for i := 0; i <= StateTimeout; i++ {
		require.Equal(t, StateClimbing, h.seq.Tick())
	}
	assert.Equal(t, StateLanding, h.seq.Tick())
	assert.NoError(t, h.seq.Err())
}

func TestSequencer_ClimbToWaypoint(t *testing.T) {
	h := newHarness(StateClimbing, waypoint.Waypoint{Latitude: 51.424, Longitude: -2.670})
	h.airborne()

	assert.Equal(t, StateGoalPositionChecking, h.seq.Tick())
	assert.Empty(t, h.commands())

	assert.Equal(t, StateOnWay, h.seq.Tick())
	cmds := h.commands()
	require.Len(t, cmds, 1)

	sp := cmds[0].(command.Setpoint)
	assert.Equal(t, 51.424, sp.Latitude)
	assert.Equal(t, -2.670, sp.Longitude)
	assert.Equal(t, 100.0-TransitAltitudeOffset, sp.Altitude)

	target, ok := h.seq.Target()
	require.True(t, ok)
	assert.Equal(t, Setpoint{Latitude: 51.424, Longitude: -2.670, Altitude: 70}, target)
}

func TestSequencer_NoWaypointsLands(t *testing.T) {
	h := newHarness(StateGoalPositionChecking)
	h.airborne()

	assert.Equal(t, StateLanding, h.seq.Tick())
}

func TestSequencer_SetpointIsStable(t *testing.T) {
	h := newHarness(StateGoalPositionChecking, waypoint.Waypoint{Latitude: 51.424, Longitude: -2.670})
	h.airborne()

	other := NewSequencer(Config{InitialState: StateGoalPositionChecking}, h.gw, h.cache, h.queue)

	h.seq.Tick()
	other.Tick()

	cmds := h.commands()
	require.Len(t, cmds, 2)
	first, second := cmds[0].(command.Setpoint), cmds[1].(command.Setpoint)
	first.At = second.At
	assert.Equal(t, first, second)
	assert.Equal(t, 1, h.queue.Len(), "publishing must not consume the waypoint")
}

func TestSequencer_TransitCompletion(t *testing.T) {
	h := newHarness(StateGoalPositionChecking,
		waypoint.Waypoint{Latitude: 51.424, Longitude: -2.670},
		waypoint.Waypoint{Latitude: 51.426, Longitude: -2.668},
	)
	h.airborne()

	require.Equal(t, StateOnWay, h.seq.Tick())

	// not there yet
	h.cache.RecordPosition(telemetry.Position{Latitude: 51.4245, Longitude: -2.670, Altitude: 120})
	assert.Equal(t, StateOnWay, h.seq.Tick())
	assert.Equal(t, 2, h.queue.Len())

	h.cache.RecordPosition(telemetry.Position{Latitude: 51.42405, Longitude: -2.67005, Altitude: 120})
	assert.Equal(t, StateGoalPositionChecking, h.seq.Tick())
	assert.Equal(t, 1, h.queue.Len())

	require.Equal(t, StateOnWay, h.seq.Tick())
	target, _ := h.seq.Target()
	assert.Equal(t, 51.426, target.Latitude)

	h.cache.RecordPosition(telemetry.Position{Latitude: 51.426, Longitude: -2.668, Altitude: 120})
	assert.Equal(t, StateLanding, h.seq.Tick())
	assert.Equal(t, 0, h.queue.Len())
}

func TestSequencer_TransitTimeout(t *testing.T) {
	h := newHarness(StateGoalPositionChecking, waypoint.Waypoint{Latitude: 51.424, Longitude: -2.670})
	h.airborne()
	require.Equal(t, StateOnWay, h.seq.Tick())

	for i := 0; i <= StateTimeout; i++ {
		require.Equal(t, StateOnWay, h.seq.Tick())
	}
	assert.Equal(t, StateLanding, h.seq.Tick())
	assert.Equal(t, 1, h.queue.Len(), "an unreached waypoint is never removed")
}

func TestSequencer_Landing(t *testing.T) {
	h := newHarness(StateLanding)
	h.airborne()

	assert.Equal(t, StateLanding, h.seq.Tick())
	cmds := h.commands()
	require.Len(t, cmds, 1)
	assert.Equal(t, ReturnMode, cmds[0].(command.ModeChange).Mode)

	for i := 1; i < ReturnRetryTicks; i++ {
		h.seq.Tick()
	}
	assert.Empty(t, h.commands())

	h.seq.Tick()
	assert.Len(t, h.commands(), 1, "return mode is re-requested")

	h.cache.RecordStatus(telemetry.VehicleStatus{Armed: true, Health: telemetry.HealthActive, Mode: ReturnMode})
	for i := 0; i < ReturnRetryTicks; i++ {
		h.seq.Tick()
	}
	assert.Empty(t, h.commands(), "no request once the mode is reported")

	h.cache.RecordStatus(telemetry.VehicleStatus{Armed: false, Health: telemetry.HealthStandby, Mode: ReturnMode})
	assert.Equal(t, StateExit, h.seq.Tick())
	assert.NoError(t, h.seq.Err())
}

func TestSequencer_HoldOverride(t *testing.T) {
	h := newHarness(StateClimbing)
	h.airborne()
	h.cache.RecordPosition(telemetry.Position{Altitude: 105})

	for i := 0; i < 5; i++ {
		h.seq.Tick()
	}
	require.Equal(t, 5, h.seq.StateTimer())

	h.cache.RecordRisk(telemetry.RiskHold)
	require.True(t, h.seq.ApplyRisk())

	assert.Equal(t, StateStop, h.seq.State())
	assert.Equal(t, 0, h.seq.StateTimer())

	cmds := h.commands()
	require.Len(t, cmds, 1)
	assert.Equal(t, command.Velocity{At: cmds[0].IssuedAt()}, cmds[0])

	assert.False(t, h.seq.ApplyRisk(), "a signal is applied once")

	assert.Equal(t, StateStop, h.seq.Tick())
	assert.Equal(t, 1, h.seq.StateTimer())
	assert.Equal(t, []command.Kind{command.KindVelocity}, kinds(h.commands()))
}

func TestSequencer_PendingRiskSupersedesTable(t *testing.T) {
	h := newHarness(StateClimbing, waypoint.Waypoint{Latitude: 51.424, Longitude: -2.670})
	h.airborne() // climbing would move on to goal_position_checking

	h.cache.RecordRisk(telemetry.RiskHold)
	assert.Equal(t, StateStop, h.seq.Tick())
	assert.Equal(t, 0, h.seq.StateTimer())
	assert.Equal(t, []command.Kind{command.KindVelocity}, kinds(h.commands()))
}

func TestSequencer_RiskTargets(t *testing.T) {
	tests := []struct {
		level telemetry.RiskLevel
		want  State
	}{
		{level: telemetry.RiskAbort, want: StateInit},
		{level: telemetry.RiskHold, want: StateStop},
		{level: telemetry.RiskResume, want: StateAuto},
	}

	for _, tt := range tests {
		t.Run(tt.level.String(), func(t *testing.T) {
			h := newHarness(StateOnWay)
			h.cache.RecordRisk(tt.level)

			assert.True(t, h.seq.ApplyRisk())
			assert.Equal(t, tt.want, h.seq.State())
			assert.Equal(t, 0, h.seq.StateTimer())
		})
	}
}

func TestSequencer_AbortKeepsReference(t *testing.T) {
	h := newHarness(StateOnWay, waypoint.Waypoint{Latitude: 51.424, Longitude: -2.670})
	h.airborne()

	h.cache.RecordRisk(telemetry.RiskAbort)
	require.Equal(t, StateInit, h.seq.Tick())

	require.Equal(t, StateArming, h.seq.Tick())
	h.cache.RecordPosition(telemetry.Position{Altitude: 140})
	require.Equal(t, StateTakeoff, h.seq.Tick())

	snap := h.cache.Snapshot()
	assert.Equal(t, 100.0, *snap.ReferenceAltitude)
	assert.Equal(t, 40.0, *snap.RelativeAltitude)
	assert.Equal(t, 1, h.queue.Len())
}

func TestSequencer_RiskIgnoredAfterExit(t *testing.T) {
	h := newHarness(StateExit)
	h.cache.RecordRisk(telemetry.RiskAbort)

	assert.False(t, h.seq.ApplyRisk())
	assert.Equal(t, StateExit, h.seq.Tick())
}

func TestParseState(t *testing.T) {
	s, err := ParseState("goal_position_checking")
	require.NoError(t, err)
	assert.Equal(t, StateGoalPositionChecking, s)

	_, err = ParseState("volcano_nearby")
	assert.Error(t, err)
}
