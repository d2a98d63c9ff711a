package waypoint

import "sync"

// Queue is an ordered FIFO of waypoints. External sources append to the back,
// the sequencer reads and removes from the front. Safe for concurrent use.
type Queue struct {
	mu    sync.Mutex
	items []Waypoint
}

// NewQueue creates a queue holding the given waypoints in order
func NewQueue(initial ...Waypoint) *Queue {
	return &Queue{items: append([]Waypoint(nil), initial...)}
}

// Append adds w to the back of the queue
func (q *Queue) Append(w Waypoint) {
	q.mu.Lock()
	q.items = append(q.items, w)
	q.mu.Unlock()
}

// Front returns the first waypoint without removing it
func (q *Queue) Front() (Waypoint, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return Waypoint{}, false
	}
	return q.items[0], true
}

// Pop removes the first waypoint and returns the number left
func (q *Queue) Pop() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) > 0 {
		q.items[0] = Waypoint{}
		q.items = q.items[1:]
	}
	return len(q.items)
}

// Len returns the number of queued waypoints
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Items returns a copy of the queue contents, front first
func (q *Queue) Items() []Waypoint {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Waypoint(nil), q.items...)
}

// Intake appends waypoints to a queue after passing them through a filter
type Intake struct {
	Queue  *Queue
	Filter Filter
}

// Offer appends w if the filter accepts it and reports whether it did
func (in Intake) Offer(w Waypoint) bool {
	if !in.Filter.Accept(w) {
		return false
	}
	in.Queue.Append(w)
	return true
}

// OfferText parses a "lon,lat" string and offers the result. Malformed input
// leaves the queue untouched.
func (in Intake) OfferText(s string) (bool, error) {
	w, err := Parse(s)
	if err != nil {
		return false, err
	}
	return in.Offer(w), nil
}
