package app

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"

	"github.com/roman-kulish/flight-supervisor/internal/mission"
	"github.com/roman-kulish/flight-supervisor/internal/waypoint"
)

// Run executes the configured action against the mission database and
// writes the result to out
func Run(ctx context.Context, config *Config, out io.Writer, logger *slog.Logger) error {
	if config.Action != ActionCreate {
		if _, err := os.Stat(config.DBPath); err != nil {
			return fmt.Errorf("mission database '%s': %w", config.DBPath, err)
		}
	}

	store := mission.NewSqliteStore(config.DBPath)
	defer store.Close()

	switch config.Action {
	case ActionList:
		return listMissions(ctx, store, out)

	case ActionShow:
		return showMission(ctx, store, config.Name, out)

	case ActionCreate:
		waypoints, err := collectWaypoints(config)
		if err != nil {
			return err
		}

		id, err := store.CreateMission(ctx, config.Name)
		if err != nil {
			return fmt.Errorf("creating mission: %w", err)
		}
		if err = store.AddWaypoints(ctx, id, waypoints); err != nil {
			return fmt.Errorf("adding waypoints: %w", err)
		}

		logger.Info("mission created",
			slog.String("name", config.Name),
			slog.Int64("id", id),
			slog.Int("waypoints", len(waypoints)))
		return nil

	default:
		return fmt.Errorf("unknown action '%s'", config.Action)
	}
}

func listMissions(ctx context.Context, store *mission.SqliteStore, out io.Writer) error {
	missions, err := store.Missions(ctx)
	if err != nil {
		return fmt.Errorf("listing missions: %w", err)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tWAYPOINTS\tCREATED")
	for _, m := range missions {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", m.ID, m.Name, humanize.Comma(int64(m.Waypoints)), humanize.Time(m.CreatedAt))
	}
	return w.Flush()
}

func showMission(ctx context.Context, store *mission.SqliteStore, name string, out io.Writer) error {
	waypoints, err := store.Waypoints(ctx, name)
	if err != nil {
		return fmt.Errorf("reading mission: %w", err)
	}

	// same "lon,lat" form the supervisor accepts in its configuration
	for _, w := range waypoints {
		if _, err = fmt.Fprintf(out, "%s,%s\n",
			humanize.FtoaWithDigits(w.Longitude, 7),
			humanize.FtoaWithDigits(w.Latitude, 7)); err != nil {
			return err
		}
	}
	return nil
}

func collectWaypoints(config *Config) ([]waypoint.Waypoint, error) {
	var waypoints []waypoint.Waypoint
	for _, s := range config.Waypoints {
		w, err := waypoint.Parse(s)
		if err != nil {
			return nil, err
		}
		waypoints = append(waypoints, w)
	}

	if config.WaypointFile == "" {
		return waypoints, nil
	}

	f, err := os.Open(config.WaypointFile)
	if err != nil {
		return nil, fmt.Errorf("opening waypoint file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for n := 1; scanner.Scan(); n++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		w, err := waypoint.Parse(line)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", config.WaypointFile, n, err)
		}
		waypoints = append(waypoints, w)
	}
	if err = scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading waypoint file: %w", err)
	}

	return waypoints, nil
}
