package mission

import "time"

// Mission is a named, ordered list of waypoints planned ahead of a flight
type Mission struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	Waypoints int       `json:"waypoints"` // Number of waypoints in the mission
}
