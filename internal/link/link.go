package link

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/bluenviron/gomavlib/v3"
	"github.com/bluenviron/gomavlib/v3/pkg/dialects/common"
	"github.com/bluenviron/gomavlib/v3/pkg/message"

	"github.com/roman-kulish/flight-supervisor/internal/command"
	"github.com/roman-kulish/flight-supervisor/internal/telemetry"
)

const (
	EndpointUDPServer = "udp-server"
	EndpointUDPClient = "udp-client"
	EndpointTCPClient = "tcp-client"
	EndpointSerial    = "serial"
)

// ErrLinkClosed is returned by Run when the MAVLink node stops delivering events
var ErrLinkClosed = errors.New("mavlink link closed")

// Config describes how to reach the vehicle
type Config struct {
	Endpoint        string // One of the Endpoint* constants
	Address         string // host:port for network endpoints
	Device          string // Serial device path
	Baud            int    // Serial baud rate
	SystemID        uint8  // Our own MAVLink system id
	TargetSystem    uint8  // Vehicle system id until a heartbeat tells otherwise
	TargetComponent uint8  // Vehicle autopilot component id
}

func (c *Config) endpoint() (gomavlib.EndpointConf, error) {
	switch c.Endpoint {
	case EndpointUDPServer:
		return gomavlib.EndpointUDPServer{Address: c.Address}, nil
	case EndpointUDPClient:
		return gomavlib.EndpointUDPClient{Address: c.Address}, nil
	case EndpointTCPClient:
		return gomavlib.EndpointTCPClient{Address: c.Address}, nil
	case EndpointSerial:
		return gomavlib.EndpointSerial{Device: c.Device, Baud: c.Baud}, nil
	default:
		return nil, fmt.Errorf("unknown endpoint type %q", c.Endpoint)
	}
}

// Recorder receives decoded vehicle telemetry
type Recorder interface {
	RecordStatus(s telemetry.VehicleStatus)
	RecordPosition(p telemetry.Position)
}

// WithLogger sets the logger for the link
func WithLogger(logger *slog.Logger) func(l *Link) {
	return func(l *Link) {
		l.logger = logger.With(slog.String("component", "link"))
	}
}

// Link is the MAVLink transport adapter: it feeds vehicle frames into the
// telemetry cache and writes outbound command records to the vehicle.
type Link struct {
	events <-chan gomavlib.Event
	write  func(m message.Message)
	close  func()

	recorder Recorder
	target   atomic.Uint32 // system id << 8 | component id

	logger *slog.Logger
}

// New opens a MAVLink node for cfg and returns a Link bound to it
func New(cfg Config, recorder Recorder, options ...func(l *Link)) (*Link, error) {
	endpoint, err := cfg.endpoint()
	if err != nil {
		return nil, err
	}

	node, err := gomavlib.NewNode(gomavlib.NodeConf{
		Endpoints:   []gomavlib.EndpointConf{endpoint},
		Dialect:     common.Dialect,
		OutVersion:  gomavlib.V2,
		OutSystemID: cfg.SystemID,
	})
	if err != nil {
		return nil, fmt.Errorf("creating mavlink node: %w", err)
	}

	l := newLink(node.Events(), func(m message.Message) {
		// best-effort, the sequencer re-issues requests
		node.WriteMessageAll(m)
	}, node.Close, recorder, Target{SystemID: cfg.TargetSystem, ComponentID: cfg.TargetComponent}, options...)

	return l, nil
}

func newLink(events <-chan gomavlib.Event, write func(message.Message), closeFn func(), recorder Recorder, target Target, options ...func(l *Link)) *Link {
	l := Link{
		events:   events,
		write:    write,
		close:    closeFn,
		recorder: recorder,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	l.setTarget(target)

	for _, option := range options {
		option(&l)
	}

	return &l
}

// Target returns the vehicle address commands are sent to
func (l *Link) Target() Target {
	v := l.target.Load()
	return Target{SystemID: uint8(v >> 8), ComponentID: uint8(v)}
}

func (l *Link) setTarget(t Target) {
	l.target.Store(uint32(t.SystemID)<<8 | uint32(t.ComponentID))
}

// Run pumps inbound events and outbound commands until ctx is cancelled,
// the command stream is closed, or the node stops.
func (l *Link) Run(ctx context.Context, commands <-chan command.Command) error {
	l.logger.Info("link started")

	for {
		select {
		case <-ctx.Done():
			return nil

		case evt, ok := <-l.events:
			if !ok {
				return ErrLinkClosed
			}
			l.handleEvent(evt)

		case c, ok := <-commands:
			if !ok {
				return nil
			}
			l.Send(c)
		}
	}
}

// Send encodes and writes one command record
func (l *Link) Send(c command.Command) {
	m, err := Encode(c, l.Target())
	if err != nil {
		l.logger.Warn(fmt.Sprintf("dropping command: %s", err.Error()), slog.String("kind", string(c.Kind())))
		return
	}
	if m == nil {
		return
	}

	l.write(m)
	l.logger.Debug("command sent", slog.String("kind", string(c.Kind())))
}

// Close releases the MAVLink node
func (l *Link) Close() {
	if l.close != nil {
		l.close()
	}
}

func (l *Link) handleEvent(evt gomavlib.Event) {
	switch e := evt.(type) {
	case *gomavlib.EventFrame:
		l.handleMessage(e.SystemID(), e.ComponentID(), e.Message())

	case *gomavlib.EventChannelOpen:
		l.logger.Info("channel open", slog.Any("channel", e.Channel))

	case *gomavlib.EventChannelClose:
		l.logger.Warn("channel closed", slog.Any("channel", e.Channel))

	case *gomavlib.EventParseError:
		l.logger.Warn(fmt.Sprintf("mavlink failed to parse: %s", e.Error.Error()))
	}
}

func (l *Link) handleMessage(systemID, componentID uint8, m message.Message) {
	switch m := m.(type) {
	case *common.MessageHeartbeat:
		// ground stations and companions also send heartbeats
		if m.Type == common.MAV_TYPE_GCS || m.Autopilot == common.MAV_AUTOPILOT_INVALID {
			return
		}

		if t := (Target{SystemID: systemID, ComponentID: componentID}); t != l.Target() {
			l.logger.Info("vehicle found",
				slog.Int("system", int(systemID)),
				slog.Int("component", int(componentID)))
			l.setTarget(t)
		}

		status := StatusFromHeartbeat(m)
		l.recorder.RecordStatus(status)
		l.logger.Debug("status",
			slog.String("mode", status.Mode),
			slog.Bool("armed", status.Armed),
			slog.String("health", status.Health.String()))

	case *common.MessageGlobalPositionInt:
		if systemID != l.Target().SystemID {
			return
		}

		pos := PositionFromGlobalInt(m)
		l.recorder.RecordPosition(pos)
		l.logger.Debug(fmt.Sprintf("drone at %.7fN,%.7fE", pos.Latitude, pos.Longitude),
			slog.Float64("altitude", pos.Altitude))
	}
}
