package flight

import (
	"errors"
	"fmt"

	"github.com/roman-kulish/flight-supervisor/internal/telemetry"
)

// State is a sequencer control state
type State string

const (
	StateCheck                State = "check"
	StateInit                 State = "init"
	StateArming               State = "arming"
	StateTakeoff              State = "takeoff"
	StateClimbing             State = "climbing"
	StateGoalPositionChecking State = "goal_position_checking"
	StateOnWay                State = "on_way"
	StateLanding              State = "landing"
	StateAuto                 State = "auto"
	StateStop                 State = "stop"
	StateExit                 State = "exit"
)

var validStates = map[State]struct{}{
	StateCheck:                {},
	StateInit:                 {},
	StateArming:               {},
	StateTakeoff:              {},
	StateClimbing:             {},
	StateGoalPositionChecking: {},
	StateOnWay:                {},
	StateLanding:              {},
	StateAuto:                 {},
	StateStop:                 {},
	StateExit:                 {},
}

func (s State) String() string {
	return string(s)
}

// ParseState returns the State named by s
func ParseState(s string) (State, error) {
	if _, ok := validStates[State(s)]; !ok {
		return "", fmt.Errorf("unknown state %q", s)
	}
	return State(s), nil
}

// Risk-input signals sent to the risk assessment component
const (
	RiskInputArmCheck     = "arm check"
	RiskInputInitFinished = "init finished"
)

var (
	// ErrFlightAborted is returned by Runner.Run when the sequencer reaches
	// exit because of a fatal timeout
	ErrFlightAborted = errors.New("flight aborted")

	// ErrArmTimeout means the vehicle never reported armed
	ErrArmTimeout = errors.New("unable to arm")

	// ErrTakeoffTimeout means no altitude setting became available for takeoff
	ErrTakeoffTimeout = errors.New("no takeoff altitude")
)

// overrideTarget maps a risk verdict to the state it forces
func overrideTarget(level telemetry.RiskLevel) (State, bool) {
	switch level {
	case telemetry.RiskAbort:
		return StateInit, true
	case telemetry.RiskHold:
		return StateStop, true
	case telemetry.RiskResume:
		return StateAuto, true
	default:
		return "", false
	}
}
