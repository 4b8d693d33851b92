package metrics

import "time"

// Stats is the narrow view of engine state the Collector needs. pkg/engine
// implements it; keeping the dependency this direction (metrics has no
// import on engine) avoids a cycle since engine already depends on metrics
// through pkg/commit and pkg/lockset, which record commit and lock
// observations inline.
type Stats interface {
	// SessionCountByDatastore returns the number of open sessions per
	// datastore name (e.g. "running", "candidate", "startup").
	SessionCountByDatastore() map[string]int
	// LockCountByKind returns the number of currently held locks per kind
	// ("module" or "file").
	LockCountByKind() map[string]int
	// SubscriptionCountByKind returns the number of registered
	// subscriptions per kind.
	SubscriptionCountByKind() map[string]int
}

// Collector periodically samples gauge-shaped engine state that isn't
// naturally updated at the point of mutation (session counts, lock table
// occupancy, subscription registry size).
type Collector struct {
	stats  Stats
	stopCh chan struct{}
}

// NewCollector creates a new metrics collector over the given stats source.
func NewCollector(stats Stats) *Collector {
	return &Collector{
		stats:  stats,
		stopCh: make(chan struct{}),
	}
}

// Start begins periodic collection on its own goroutine.
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop halts periodic collection.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	for ds, n := range c.stats.SessionCountByDatastore() {
		SessionsActive.WithLabelValues(ds).Set(float64(n))
	}
	for kind, n := range c.stats.LockCountByKind() {
		LocksHeld.WithLabelValues(kind).Set(float64(n))
	}
	for kind, n := range c.stats.SubscriptionCountByKind() {
		SubscriptionsActive.WithLabelValues(kind).Set(float64(n))
	}
}
