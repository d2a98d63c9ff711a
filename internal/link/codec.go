package link

import (
	"fmt"
	"math"

	"github.com/bluenviron/gomavlib/v3/pkg/dialects/common"
	"github.com/bluenviron/gomavlib/v3/pkg/message"

	"github.com/roman-kulish/flight-supervisor/internal/command"
	"github.com/roman-kulish/flight-supervisor/internal/telemetry"
)

const (
	// position only: ignore velocity, acceleration and yaw
	positionTypeMask = common.POSITION_TARGET_TYPEMASK_VX_IGNORE |
		common.POSITION_TARGET_TYPEMASK_VY_IGNORE |
		common.POSITION_TARGET_TYPEMASK_VZ_IGNORE |
		common.POSITION_TARGET_TYPEMASK_AX_IGNORE |
		common.POSITION_TARGET_TYPEMASK_AY_IGNORE |
		common.POSITION_TARGET_TYPEMASK_AZ_IGNORE |
		common.POSITION_TARGET_TYPEMASK_YAW_IGNORE |
		common.POSITION_TARGET_TYPEMASK_YAW_RATE_IGNORE

	// velocity and yaw rate only
	velocityTypeMask = common.POSITION_TARGET_TYPEMASK_X_IGNORE |
		common.POSITION_TARGET_TYPEMASK_Y_IGNORE |
		common.POSITION_TARGET_TYPEMASK_Z_IGNORE |
		common.POSITION_TARGET_TYPEMASK_AX_IGNORE |
		common.POSITION_TARGET_TYPEMASK_AY_IGNORE |
		common.POSITION_TARGET_TYPEMASK_AZ_IGNORE |
		common.POSITION_TARGET_TYPEMASK_YAW_IGNORE
)

// Target addresses the vehicle on the MAVLink network
type Target struct {
	SystemID    uint8
	ComponentID uint8
}

// StatusFromHeartbeat converts a vehicle HEARTBEAT into a VehicleStatus
func StatusFromHeartbeat(m *common.MessageHeartbeat) telemetry.VehicleStatus {
	s := telemetry.VehicleStatus{
		Armed:  m.BaseMode&common.MAV_MODE_FLAG_SAFETY_ARMED != 0,
		Health: telemetry.Health(m.SystemStatus),
	}
	if m.BaseMode&common.MAV_MODE_FLAG_CUSTOM_MODE_ENABLED != 0 {
		s.Mode = ModeName(m.CustomMode)
	}
	return s
}

// PositionFromGlobalInt converts GLOBAL_POSITION_INT (1e7 degrees, millimeters)
// into a Position with absolute altitude in meters
func PositionFromGlobalInt(m *common.MessageGlobalPositionInt) telemetry.Position {
	return telemetry.Position{
		Latitude:  float64(m.Lat) / 1e7,
		Longitude: float64(m.Lon) / 1e7,
		Altitude:  float64(m.Alt) / 1000,
	}
}

// Encode converts a command record into the MAVLink message carrying it.
// Records with no MAVLink form, such as risk input, return nil and no error.
func Encode(c command.Command, t Target) (message.Message, error) {
	switch c := c.(type) {
	case command.TelemetryStream:
		return &common.MessageCommandLong{
			TargetSystem:    t.SystemID,
			TargetComponent: t.ComponentID,
			Command:         common.MAV_CMD_SET_MESSAGE_INTERVAL,
			Param1:          float32(c.StreamID),
			Param2:          float32(c.IntervalMicros),
		}, nil

	case command.ModeChange:
		n, ok := ModeNumber(c.Mode)
		if !ok {
			return nil, fmt.Errorf("unknown flight mode %q", c.Mode)
		}
		return &common.MessageSetMode{
			TargetSystem: t.SystemID,
			BaseMode:     common.MAV_MODE(common.MAV_MODE_FLAG_CUSTOM_MODE_ENABLED),
			CustomMode:   n,
		}, nil

	case command.Arm:
		var arm float32
		if c.Value {
			arm = 1
		}
		return &common.MessageCommandLong{
			TargetSystem:    t.SystemID,
			TargetComponent: t.ComponentID,
			Command:         common.MAV_CMD_COMPONENT_ARM_DISARM,
			Param1:          arm,
		}, nil

	case command.Takeoff:
		return &common.MessageCommandLong{
			TargetSystem:    t.SystemID,
			TargetComponent: t.ComponentID,
			Command:         common.MAV_CMD_NAV_TAKEOFF,
			Param7:          float32(c.Altitude),
		}, nil

	case command.Setpoint:
		return &common.MessageSetPositionTargetGlobalInt{
			TargetSystem:    t.SystemID,
			TargetComponent: t.ComponentID,
			CoordinateFrame: common.MAV_FRAME_GLOBAL_INT,
			TypeMask:        positionTypeMask,
			LatInt:          int32(math.Round(c.Latitude * 1e7)),
			LonInt:          int32(math.Round(c.Longitude * 1e7)),
			Alt:             float32(c.Altitude),
		}, nil

	case command.Velocity:
		// roll and pitch rates are left to the autopilot
		return &common.MessageSetPositionTargetLocalNed{
			TargetSystem:    t.SystemID,
			TargetComponent: t.ComponentID,
			CoordinateFrame: common.MAV_FRAME_BODY_OFFSET_NED,
			TypeMask:        velocityTypeMask,
			Vx:              float32(c.LinearX),
			Vy:              float32(c.LinearY),
			Vz:              float32(c.LinearZ),
			YawRate:         float32(c.AngularZ),
		}, nil

	case command.RiskInput:
		return nil, nil

	default:
		return nil, fmt.Errorf("unsupported command %T", c)
	}
}
