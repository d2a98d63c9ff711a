package app

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/roman-kulish/flight-supervisor/internal/waypoint"
)

// Action selects what the tool does with the mission database
type Action string

const (
	ActionList   Action = "list"
	ActionShow   Action = "show"
	ActionCreate Action = "create"
)

type Config struct {
	DBPath       string
	Action       Action
	Name         string
	Waypoints    []string // "lon,lat" pairs from -wp
	WaypointFile string
}

// waypointList collects repeated -wp flags
type waypointList []string

func (l *waypointList) String() string {
	return strings.Join(*l, " ")
}

func (l *waypointList) Set(s string) error {
	if _, err := waypoint.Parse(s); err != nil {
		return err
	}
	*l = append(*l, s)
	return nil
}

func NewConfigFromCLI() (*Config, error) {
	return NewConfigFromArgs(flag.CommandLine, os.Args[1:])
}

// NewConfigFromArgs parses args into a Config using fs
func NewConfigFromArgs(fs *flag.FlagSet, args []string) (*Config, error) {
	c := Config{}

	var list bool
	var show, create string
	var waypoints waypointList
	fs.StringVar(&c.DBPath, "db", "", "Path to the mission database file")
	fs.BoolVar(&list, "list", false, "List missions")
	fs.StringVar(&show, "show", "", "Print the waypoints of the named mission")
	fs.StringVar(&create, "create", "", "Create a mission with the given name")
	fs.Var(&waypoints, "wp", "Waypoint as \"lon,lat\" for -create, may be repeated")
	fs.StringVar(&c.WaypointFile, "f", "", "File with one \"lon,lat\" waypoint per line for -create")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	c.Waypoints = waypoints

	var actions int
	if list {
		c.Action = ActionList
		actions++
	}
	if show != "" {
		c.Action, c.Name = ActionShow, show
		actions++
	}
	if create != "" {
		c.Action, c.Name = ActionCreate, create
		actions++
	}

	var err error
	if c.DBPath == "" {
		err = errors.New("db path is required")
	} else if actions != 1 {
		err = errors.New("exactly one of -list, -show or -create is required")
	} else if c.Action != ActionCreate && (len(c.Waypoints) > 0 || c.WaypointFile != "") {
		err = fmt.Errorf("waypoints are only accepted with -create")
	}

	if err != nil {
		fs.Usage()
		return nil, err
	}

	return &c, nil
}
