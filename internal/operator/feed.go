package operator

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"sync"

	"github.com/roman-kulish/flight-supervisor/internal/command"
	"github.com/roman-kulish/flight-supervisor/internal/telemetry"
	"github.com/roman-kulish/flight-supervisor/internal/waypoint"
)

// ErrBrokenPipe is returned when the input stream fails
var ErrBrokenPipe = errors.New("broken pipe")

// Recorder receives operator telemetry updates
type Recorder interface {
	RecordRisk(level telemetry.RiskLevel)
	RecordAltitudeSetting(alt float64)
}

// WithLogger sets the logger for the feed
func WithLogger(logger *slog.Logger) func(f *Feed) {
	return func(f *Feed) {
		f.logger = logger.With(slog.String("component", "operator"))
	}
}

// Feed ingests operator records into the telemetry cache and waypoint queue
type Feed struct {
	recorder Recorder
	intake   waypoint.Intake

	mu     sync.Mutex
	output io.Writer

	logger *slog.Logger
}

// NewFeed creates a feed with a discard logger. output receives risk-input
// signals and may be nil.
func NewFeed(recorder Recorder, intake waypoint.Intake, output io.Writer, options ...func(f *Feed)) *Feed {
	f := Feed{
		recorder: recorder,
		intake:   intake,
		output:   output,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&f)
	}

	return &f
}

// Run reads records from r until EOF. Malformed lines are logged and skipped.
func (f *Feed) Run(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()

		rec, err := ParseRecord(line)
		if err != nil {
			f.logger.Warn(fmt.Sprintf("error parsing record: %s", err.Error()), slog.String("line", line))
			continue
		}
		if rec == nil {
			continue
		}

		f.Apply(rec)
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, fs.ErrClosed) {
		return fmt.Errorf("%w: error reading operator input: %w", ErrBrokenPipe, err)
	}

	return nil
}

// Apply delivers one parsed record
func (f *Feed) Apply(rec Record) {
	switch rec := rec.(type) {
	case RiskRecord:
		f.logger.Info("risk signal", slog.String("risk", rec.Level.String()))
		f.recorder.RecordRisk(rec.Level)

	case AltitudeRecord:
		f.logger.Info("altitude setting", slog.Float64("altitude", rec.Meters))
		f.recorder.RecordAltitudeSetting(rec.Meters)

	case WaypointRecord:
		if f.intake.Offer(rec.Waypoint) {
			f.logger.Info("waypoint queued", slog.String("waypoint", rec.Waypoint.String()))
		} else {
			f.logger.Debug("sentinel waypoint ignored", slog.String("waypoint", rec.Waypoint.String()))
		}
	}
}

// Send writes a risk-input record as a "risk_msg <text>" line. Other command
// kinds are not carried by the operator channel.
func (f *Feed) Send(c command.Command) {
	in, ok := c.(command.RiskInput)
	if !ok || f.output == nil {
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, err := fmt.Fprintf(f.output, "risk_msg %s\n", in.Text); err != nil {
		f.logger.Warn(fmt.Sprintf("error writing risk input: %s", err.Error()))
	}
}
