package app

import (
	"bytes"
	"context"
	"flag"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roman-kulish/flight-supervisor/internal/waypoint"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func parseArgs(t *testing.T, args ...string) (*Config, error) {
	t.Helper()

	fs := flag.NewFlagSet("mission", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return NewConfigFromArgs(fs, args)
}

func TestNewConfigFromArgs(t *testing.T) {
	c, err := parseArgs(t, "-db", "m.sqlite", "-create", "fenswood", "-wp", "-2.670,51.424", "-wp", "-2.668,51.426")
	require.NoError(t, err)
	assert.Equal(t, ActionCreate, c.Action)
	assert.Equal(t, "fenswood", c.Name)
	assert.Equal(t, []string{"-2.670,51.424", "-2.668,51.426"}, c.Waypoints)

	c, err = parseArgs(t, "-db", "m.sqlite", "-list")
	require.NoError(t, err)
	assert.Equal(t, ActionList, c.Action)

	invalid := [][]string{
		{"-list"},
		{"-db", "m.sqlite"},
		{"-db", "m.sqlite", "-list", "-show", "fenswood"},
		{"-db", "m.sqlite", "-show", "fenswood", "-wp", "-2.670,51.424"},
		{"-db", "m.sqlite", "-create", "fenswood", "-wp", "51.424"},
	}
	for _, args := range invalid {
		_, err = parseArgs(t, args...)
		assert.Error(t, err, "args %v", args)
	}
}

func TestRun(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "missions.sqlite")

	wpFile := filepath.Join(dir, "route.txt")
	require.NoError(t, os.WriteFile(wpFile, []byte("# survey leg\n-2.668,51.426\n\n-2.665,51.420\n"), 0o644))

	err := Run(ctx, &Config{
		DBPath:       dbPath,
		Action:       ActionCreate,
		Name:         "fenswood",
		Waypoints:    []string{"-2.670,51.424"},
		WaypointFile: wpFile,
	}, io.Discard, discard)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, Run(ctx, &Config{DBPath: dbPath, Action: ActionShow, Name: "fenswood"}, &out, discard))
	assert.Equal(t, "-2.67,51.424\n-2.668,51.426\n-2.665,51.42\n", out.String())

	lines := strings.Split(out.String(), "\n")
	for _, line := range lines[:len(lines)-1] {
		_, err = waypoint.Parse(line)
		assert.NoError(t, err, "show output is accepted by the supervisor")
	}

	out.Reset()
	require.NoError(t, Run(ctx, &Config{DBPath: dbPath, Action: ActionList}, &out, discard))
	assert.Contains(t, out.String(), "fenswood")
	assert.Contains(t, out.String(), "WAYPOINTS")
}

func TestRun_Errors(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	err := Run(ctx, &Config{DBPath: filepath.Join(dir, "absent.sqlite"), Action: ActionList}, io.Discard, discard)
	assert.ErrorIs(t, err, os.ErrNotExist)

	wpFile := filepath.Join(dir, "route.txt")
	require.NoError(t, os.WriteFile(wpFile, []byte("-2.668,51.426\nnorth-east\n"), 0o644))

	err = Run(ctx, &Config{
		DBPath:       filepath.Join(dir, "missions.sqlite"),
		Action:       ActionCreate,
		Name:         "fenswood",
		WaypointFile: wpFile,
	}, io.Discard, discard)
	assert.ErrorIs(t, err, waypoint.ErrMalformed)
	assert.Contains(t, err.Error(), "route.txt:2")
}
