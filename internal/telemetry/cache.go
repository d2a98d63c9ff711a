package telemetry

import (
	"sync"
	"time"
)

// Cache holds the latest observed telemetry values. Writers overwrite a slot
// as a whole; readers take a Snapshot. It is safe for concurrent use.
type Cache struct {
	mu sync.RWMutex

	status            *VehicleStatus
	position          *Position
	referenceAltitude *float64
	relativeAltitude  *float64
	altitudeSetting   *float64
	risk              *Risk
	riskSeq           uint64

	riskUpdates chan struct{}
	now         func() time.Time
}

// NewCache creates an empty cache
func NewCache() *Cache {
	return &Cache{
		riskUpdates: make(chan struct{}, 1),
		now:         time.Now,
	}
}

// RecordStatus overwrites the vehicle status
func (c *Cache) RecordStatus(s VehicleStatus) {
	c.mu.Lock()
	c.status = &s
	c.mu.Unlock()
}

// RecordPosition overwrites the position and, once a reference altitude is
// set, the derived relative altitude in the same step.
func (c *Cache) RecordPosition(p Position) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.position = &p
	if c.referenceAltitude != nil {
		rel := p.Altitude - *c.referenceAltitude
		c.relativeAltitude = &rel
	}
}

// RecordRisk overwrites the risk signal and notifies RiskUpdates listeners
func (c *Cache) RecordRisk(level RiskLevel) {
	c.mu.Lock()
	c.riskSeq++
	c.risk = &Risk{
		Level:      level,
		Seq:        c.riskSeq,
		ReceivedAt: c.now(),
	}
	c.mu.Unlock()

	select {
	case c.riskUpdates <- struct{}{}:
	default: // a notification is already pending
	}
}

// RecordAltitudeSetting overwrites the requested flight altitude
func (c *Cache) RecordAltitudeSetting(alt float64) {
	c.mu.Lock()
	c.altitudeSetting = &alt
	c.mu.Unlock()
}

// SetReferenceAltitude captures the reference altitude. The reference is
// immutable once set: it returns false and changes nothing on later calls.
func (c *Cache) SetReferenceAltitude(alt float64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.referenceAltitude != nil {
		return false
	}

	c.referenceAltitude = &alt
	if c.position != nil {
		rel := c.position.Altitude - alt
		c.relativeAltitude = &rel
	}
	return true
}

// RiskUpdates signals that a new risk record is available
func (c *Cache) RiskUpdates() <-chan struct{} {
	return c.riskUpdates
}

// Snapshot returns a copy of all current values
func (c *Cache) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return Snapshot{
		Status:            clonePtr(c.status),
		Position:          clonePtr(c.position),
		ReferenceAltitude: clonePtr(c.referenceAltitude),
		RelativeAltitude:  clonePtr(c.relativeAltitude),
		AltitudeSetting:   clonePtr(c.altitudeSetting),
		Risk:              clonePtr(c.risk),
	}
}

func clonePtr[T any](v *T) *T {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
