package command

import (
	"io"
	"log/slog"
	"sync/atomic"
	"time"
)

// DefaultQueueSize is the outbound buffer used when none is configured
const DefaultQueueSize = 64

// WithLogger sets the logger for the queue
func WithLogger(logger *slog.Logger) func(q *Queue) {
	return func(q *Queue) {
		q.logger = logger.With(slog.String("component", "gateway"))
	}
}

// WithQueueSize sets the outbound buffer size
func WithQueueSize(size int) func(q *Queue) {
	return func(q *Queue) {
		if size > 0 {
			q.size = size
		}
	}
}

// WithClock overrides the clock used to stamp records
func WithClock(now func() time.Time) func(q *Queue) {
	return func(q *Queue) {
		q.now = now
	}
}

// Queue is a Command Gateway that turns every call into a command record on a
// bounded channel. Calls never block: a record that does not fit is dropped.
type Queue struct {
	out     chan Command
	size    int
	dropped atomic.Uint64

	now    func() time.Time
	logger *slog.Logger
}

// NewQueue creates a new Queue with a discard logger
func NewQueue(options ...func(q *Queue)) *Queue {
	q := Queue{
		size:   DefaultQueueSize,
		now:    time.Now,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&q)
	}

	q.out = make(chan Command, q.size)
	return &q
}

// Commands returns the stream of outbound records for a transport adapter
func (q *Queue) Commands() <-chan Command {
	return q.out
}

// Dropped returns the number of records discarded because the buffer was full
func (q *Queue) Dropped() uint64 {
	return q.dropped.Load()
}

func (q *Queue) RequestTelemetryStream(streamID uint32, intervalMicros int64) {
	q.submit(TelemetryStream{At: q.now(), StreamID: streamID, IntervalMicros: intervalMicros})
}

func (q *Queue) RequestModeChange(mode string) {
	q.submit(ModeChange{At: q.now(), Mode: mode})
}

func (q *Queue) RequestArm() {
	q.submit(Arm{At: q.now(), Value: true})
}

func (q *Queue) RequestTakeoff(altitude float64) {
	q.submit(Takeoff{At: q.now(), Altitude: altitude})
}

func (q *Queue) PublishSetpoint(lat, lon, alt float64) {
	q.submit(Setpoint{At: q.now(), Latitude: lat, Longitude: lon, Altitude: alt})
}

func (q *Queue) PublishVelocity(vx, vy, vz, wx, wy, wz float64) {
	q.submit(Velocity{
		At:       q.now(),
		LinearX:  vx,
		LinearY:  vy,
		LinearZ:  vz,
		AngularX: wx,
		AngularY: wy,
		AngularZ: wz,
	})
}

func (q *Queue) PublishRiskInput(text string) {
	q.submit(RiskInput{At: q.now(), Text: text})
}

func (q *Queue) submit(c Command) {
	select {
	case q.out <- c:
	default:
		n := q.dropped.Add(1)
		q.logger.Warn("outbound queue full, command dropped",
			slog.String("kind", string(c.Kind())),
			slog.Uint64("dropped", n))
	}
}
