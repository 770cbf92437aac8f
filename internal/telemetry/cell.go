package telemetry

import (
	"sync"
	"time"

	"github.com/eytandecker/skytour/pkg/types"
)

// Cell is the most-recent-value slot for telemetry. A new sample replaces
// the previous one; readers always see the latest sample, never a backlog.
type Cell struct {
	mu             sync.RWMutex
	sample         types.TelemetrySample
	lastUpdated    time.Time
	stale          bool
	staleThreshold time.Duration
	subs           []chan struct{}
	now            func() time.Time
}

// NewCell creates a Cell with the given stale threshold.
// A zero threshold disables age-based staleness checking.
func NewCell(staleThreshold time.Duration) *Cell {
	return &Cell{staleThreshold: staleThreshold, now: time.Now}
}

// Update stores a new sample, clears any stale flag and signals subscribers.
func (c *Cell) Update(s types.TelemetrySample) {
	c.mu.Lock()
	c.sample = s
	c.lastUpdated = c.now()
	c.stale = false
	c.mu.Unlock()
	c.notify()
}

// MarkStale flags the cell as stale. It reports whether the flag changed, so
// callers can surface a one-time notice per outage.
func (c *Cell) MarkStale() bool {
	c.mu.Lock()
	if c.stale {
		c.mu.Unlock()
		return false
	}
	c.stale = true
	c.mu.Unlock()
	c.notify()
	return true
}

// Latest returns the cached sample, or ErrStale if no data has been received
// yet, the cell was marked stale, or the data age exceeds the stale threshold.
func (c *Cell) Latest() (types.TelemetrySample, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.lastUpdated.IsZero() || c.stale {
		return types.TelemetrySample{}, ErrStale
	}
	if c.staleThreshold > 0 && c.now().Sub(c.lastUpdated) > c.staleThreshold {
		return types.TelemetrySample{}, ErrStale
	}
	return c.sample, nil
}

// Stale reports whether the cell is currently flagged stale or has never
// been updated.
func (c *Cell) Stale() bool {
	_, err := c.Latest()
	return err != nil
}

// LastUpdated returns the time of the most recent Update, or zero if never updated.
func (c *Cell) LastUpdated() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastUpdated
}

// Subscribe returns a channel that receives a signal whenever the cell
// changes. Signals coalesce: a slow subscriber sees one pending signal and
// reads the latest value, it never receives a queue of old ones.
func (c *Cell) Subscribe() <-chan struct{} {
	ch := make(chan struct{}, 1)
	c.mu.Lock()
	c.subs = append(c.subs, ch)
	c.mu.Unlock()
	return ch
}

func (c *Cell) notify() {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, ch := range c.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
