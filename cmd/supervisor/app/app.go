package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/roman-kulish/flight-supervisor/internal/command"
	"github.com/roman-kulish/flight-supervisor/internal/flight"
	"github.com/roman-kulish/flight-supervisor/internal/link"
	"github.com/roman-kulish/flight-supervisor/internal/mission"
	"github.com/roman-kulish/flight-supervisor/internal/operator"
	"github.com/roman-kulish/flight-supervisor/internal/telemetry"
	"github.com/roman-kulish/flight-supervisor/internal/waypoint"
)

// Run wires the supervisor together and flies until the sequencer exits or
// ctx is cancelled.
func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cache := telemetry.NewCache()
	if config.Flight.TakeoffAltitude > 0 {
		cache.RecordAltitudeSetting(config.Flight.TakeoffAltitude)
	}

	queue := waypoint.NewQueue()
	intake := waypoint.Intake{Queue: queue, Filter: config.Waypoints.filter()}
	if err := loadWaypoints(ctx, &config.Waypoints, intake, logger); err != nil {
		return fmt.Errorf("failed to load waypoints: %w", err)
	}

	gateway := command.NewQueue(command.WithLogger(logger), command.WithQueueSize(config.Gateway.QueueSize))

	mav, err := link.New(config.Link.linkConfig(), cache, link.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("failed to create link: %w", err)
	}
	defer mav.Close()

	input, output, closeOperator, err := openOperator(&config.Operator)
	if err != nil {
		return fmt.Errorf("failed to open operator channel: %w", err)
	}
	defer closeOperator()

	feed := operator.NewFeed(cache, intake, output, operator.WithLogger(logger))

	seq := flight.NewSequencer(config.Flight.sequencerConfig(), gateway, cache, queue, flight.WithLogger(logger))
	runner := flight.NewRunner(seq, cache.RiskUpdates(),
		flight.WithRunnerLogger(logger),
		flight.WithTickInterval(config.Flight.TickInterval.Duration()))

	var wg sync.WaitGroup
	var linkErr error

	toLink := make(chan command.Command, config.Gateway.QueueSize)

	wg.Add(2)
	go func() {
		defer wg.Done()
		dispatch(ctx, gateway.Commands(), toLink, feed)
	}()
	go func() {
		defer wg.Done()
		defer cancel()

		if linkErr = mav.Run(ctx, toLink); linkErr != nil {
			logger.Error(fmt.Sprintf("link stopped: %s", linkErr.Error()))
		}
	}()

	if input != nil {
		// not joined: a blocked read on stdin cannot be interrupted
		go func() {
			if err := feed.Run(input); err != nil {
				logger.Warn(err.Error())
				return
			}
			logger.Info("operator input closed")
		}()
	}

	flightErr := runner.Run(ctx)
	cancel()
	wg.Wait()

	if dropped := gateway.Dropped(); dropped > 0 {
		logger.Warn("commands dropped on full queue", slog.Uint64("count", dropped))
	}

	return errors.Join(flightErr, linkErr)
}

// dispatch routes sequencer commands to their transport: risk-input records
// to the operator channel, everything else to the vehicle.
func dispatch(ctx context.Context, in <-chan command.Command, toLink chan<- command.Command, feed *operator.Feed) {
	for {
		select {
		case <-ctx.Done():
			return

		case c := <-in:
			if c.Kind() == command.KindRiskInput {
				feed.Send(c)
				continue
			}

			select {
			case toLink <- c:
			case <-ctx.Done():
				return
			}
		}
	}
}

func loadWaypoints(ctx context.Context, config *WaypointsConfig, intake waypoint.Intake, logger *slog.Logger) error {
	for _, s := range config.Initial {
		if _, err := intake.OfferText(s); err != nil {
			return err
		}
	}

	if config.MissionDatabase == "" {
		return nil
	}

	if _, err := os.Stat(config.MissionDatabase); err != nil {
		return fmt.Errorf("mission database '%s': %w", config.MissionDatabase, err)
	}

	store := mission.NewSqliteStore(config.MissionDatabase)
	defer store.Close()

	waypoints, err := store.Waypoints(ctx, config.Mission)
	if err != nil {
		return err
	}

	var accepted int
	for _, w := range waypoints {
		if intake.Offer(w) {
			accepted++
		}
	}

	logger.Info("mission loaded",
		slog.String("mission", config.Mission),
		slog.Int("waypoints", accepted),
		slog.Int("skipped", len(waypoints)-accepted))

	return nil
}

func openOperator(config *OperatorConfig) (input io.Reader, output io.Writer, closeFn func(), err error) {
	var closers []io.Closer
	closeFn = func() {
		for _, c := range closers {
			_ = c.Close()
		}
	}

	switch config.Input {
	case "":
	case StdStream:
		input = os.Stdin
	default:
		f, err := os.Open(config.Input)
		if err != nil {
			return nil, nil, closeFn, fmt.Errorf("opening operator input: %w", err)
		}
		closers = append(closers, f)
		input = f
	}

	switch config.Output {
	case "":
	case StdStream:
		output = os.Stdout
	default:
		f, err := os.OpenFile(config.Output, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
		if err != nil {
			closeFn()
			return nil, nil, func() {}, fmt.Errorf("opening operator output: %w", err)
		}
		closers = append(closers, f)
		output = f
	}

	return input, output, closeFn, nil
}
