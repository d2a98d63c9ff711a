package flight

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// TickInterval is the default sequencer period
const TickInterval = time.Second

// WithRunnerLogger sets the logger for the runner
func WithRunnerLogger(logger *slog.Logger) func(r *Runner) {
	return func(r *Runner) {
		r.logger = logger.With(slog.String("component", "runner"))
	}
}

// WithTickInterval sets the sequencer period
func WithTickInterval(d time.Duration) func(r *Runner) {
	return func(r *Runner) {
		if d > 0 {
			r.interval = d
		}
	}
}

// Runner drives a Sequencer from a single goroutine: one tick per period,
// and risk overrides as soon as they are recorded.
type Runner struct {
	seq      *Sequencer
	risk     <-chan struct{}
	interval time.Duration
	logger   *slog.Logger
}

// NewRunner creates a runner. risk is the telemetry cache's notification channel.
func NewRunner(seq *Sequencer, risk <-chan struct{}, options ...func(r *Runner)) *Runner {
	r := Runner{
		seq:      seq,
		risk:     risk,
		interval: TickInterval,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&r)
	}

	return &r
}

// Run ticks the sequencer until it reaches exit or ctx is cancelled. Reaching
// exit through a fatal timeout returns an error wrapping ErrFlightAborted.
func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("sequencer started",
		slog.String("state", r.seq.State().String()),
		slog.Duration("interval", r.interval))

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("sequencer stopped", slog.String("state", r.seq.State().String()))
			return nil

		case <-r.risk:
			r.seq.ApplyRisk()

		case <-ticker.C:
			r.seq.Tick()
		}

		if r.seq.State() == StateExit {
			if err := r.seq.Err(); err != nil {
				return fmt.Errorf("%w: %w", ErrFlightAborted, err)
			}

			r.logger.Info("sequencer reached exit")
			return nil
		}
	}
}
