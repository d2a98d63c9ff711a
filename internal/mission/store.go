package mission

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roman-kulish/flight-supervisor/internal/waypoint"
)

// ErrNotFound is returned when a mission does not exist
var ErrNotFound = errors.New("mission not found")

// SqliteStore keeps missions in a SQLite database
type SqliteStore struct {
	dbPath string

	writeDB     *sql.DB
	writeDBOnce sync.Once
	writeDBErr  error

	readDB     *sql.DB
	readDBOnce sync.Once
	readDBErr  error

	closeOnce sync.Once
	closeErr  error
}

// NewSqliteStore creates a store for the database at dbPath. Connections are
// opened on first use.
func NewSqliteStore(dbPath string) *SqliteStore {
	return &SqliteStore{dbPath: dbPath}
}

func (s *SqliteStore) getWriteDB() (*sql.DB, error) {
	s.writeDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "_journal_mode=WAL&_synchronous=NORMAL&_foreign_keys=on"))
		if err != nil {
			s.writeDBErr = fmt.Errorf("opening write connection: %w", err)
			return
		}

		if _, err = db.Exec(initSchemaSQL); err != nil {
			_ = db.Close()
			s.writeDBErr = fmt.Errorf("initializing schema: %w", err)
			return
		}

		s.writeDB = db
	})

	return s.writeDB, s.writeDBErr
}

func (s *SqliteStore) getReadDB() (*sql.DB, error) {
	s.readDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "mode=ro"))
		if err != nil {
			s.readDBErr = fmt.Errorf("opening read connection: %w", err)
			return
		}
		s.readDB = db
	})

	return s.readDB, s.readDBErr
}

// CreateMission creates an empty mission and returns its ID
func (s *SqliteStore) CreateMission(ctx context.Context, name string) (missionID int64, err error) {
	if name == "" {
		return 0, errors.New("mission name is required")
	}

	db, err := s.getWriteDB()
	if err != nil {
		err = fmt.Errorf("getting write connection: %w", err)
		return
	}

	result, err := db.ExecContext(ctx, insertMissionSQL, name)
	if err != nil {
		err = fmt.Errorf("inserting mission: %w", err)
		return
	}

	missionID, err = result.LastInsertId()
	if err != nil {
		err = fmt.Errorf("getting mission ID: %w", err)
	}
	return
}

// AddWaypoints appends waypoints to the end of a mission in a single transaction
func (s *SqliteStore) AddWaypoints(ctx context.Context, missionID int64, waypoints []waypoint.Waypoint) (err error) {
	if len(waypoints) == 0 {
		return
	}

	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer rollbackWithError(tx, &err)

	var seq int64
	if err = tx.QueryRowContext(ctx, selectNextSeqSQL, missionID).Scan(&seq); err != nil {
		return fmt.Errorf("reading next sequence: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, insertWaypointSQL)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer closeWithError(stmt, &err)

	for i, w := range waypoints {
		if err = w.Validate(); err != nil {
			return fmt.Errorf("waypoint %d: %w", i, err)
		}
		if _, err = stmt.ExecContext(ctx, missionID, seq+int64(i), w.Latitude, w.Longitude); err != nil {
			return fmt.Errorf("inserting waypoint: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return
}

// Missions returns all missions ordered by creation time
func (s *SqliteStore) Missions(ctx context.Context) (missions []Mission, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	rows, err := db.QueryContext(ctx, selectMissionsSQL)
	if err != nil {
		err = fmt.Errorf("querying missions: %w", err)
		return
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var m Mission
		if err = rows.Scan(&m.ID, &m.Name, &m.CreatedAt, &m.Waypoints); err != nil {
			err = fmt.Errorf("scanning mission: %w", err)
			return
		}
		missions = append(missions, m)
	}
	err = rows.Err()
	return
}

// Waypoints returns the waypoints of the named mission in flight order
func (s *SqliteStore) Waypoints(ctx context.Context, name string) (waypoints []waypoint.Waypoint, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	var id int64
	if err = db.QueryRowContext(ctx, selectMissionIDSQL, name).Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = fmt.Errorf("%w: %q", ErrNotFound, name)
			return
		}
		err = fmt.Errorf("looking up mission: %w", err)
		return
	}

	rows, err := db.QueryContext(ctx, selectWaypointsSQL, name)
	if err != nil {
		err = fmt.Errorf("querying waypoints: %w", err)
		return
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var w waypoint.Waypoint
		if err = rows.Scan(&w.Latitude, &w.Longitude); err != nil {
			err = fmt.Errorf("scanning waypoint: %w", err)
			return
		}
		waypoints = append(waypoints, w)
	}
	err = rows.Err()
	return
}

// Close closes the database connections
func (s *SqliteStore) Close() error {
	s.closeOnce.Do(func() {
		var writeErr, readErr error

		if s.writeDB != nil {
			writeErr = s.writeDB.Close()
			s.writeDB = nil
		}

		if s.readDB != nil {
			readErr = s.readDB.Close()
			s.readDB = nil
		}

		s.closeErr = errors.Join(writeErr, readErr)
	})

	return s.closeErr
}

func closeWithError(cl interface{ Close() error }, err *error) {
	if cErr := cl.Close(); cErr != nil && *err == nil {
		*err = cErr
	}
}

func rollbackWithError(rb interface{ Rollback() error }, err *error) {
	if cErr := rb.Rollback(); cErr != nil && !errors.Is(cErr, sql.ErrTxDone) && *err == nil {
		*err = cErr
	}
}
