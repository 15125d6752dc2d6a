package aggregate

import "sync"

// ReliabilitySource reports a provider's historical delivered-quote ratio.
// ok is false when the provider has no history yet.
type ReliabilitySource interface {
	Reliability(provider string) (ratio float64, ok bool)
}

// Tracker counts provider call outcomes. A call is "delivered" when it
// returned at least one usable quote.
type Tracker struct {
	mu     sync.RWMutex
	counts map[string]*outcomeCount
}

type outcomeCount struct {
	delivered int64
	total     int64
}

// NewTracker returns an empty reliability tracker.
func NewTracker() *Tracker {
	return &Tracker{counts: make(map[string]*outcomeCount)}
}

// Record adds one call outcome for provider.
func (t *Tracker) Record(provider string, delivered bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	c, ok := t.counts[provider]
	if !ok {
		c = &outcomeCount{}
		t.counts[provider] = c
	}
	c.total++
	if delivered {
		c.delivered++
	}
}

// Reliability implements ReliabilitySource.
func (t *Tracker) Reliability(provider string) (float64, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	c, ok := t.counts[provider]
	if !ok || c.total == 0 {
		return 0, false
	}
	return float64(c.delivered) / float64(c.total), true
}

// Snapshot returns the current ratio for every known provider.
func (t *Tracker) Snapshot() map[string]float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[string]float64, len(t.counts))
	for name, c := range t.counts {
		if c.total > 0 {
			out[name] = float64(c.delivered) / float64(c.total)
		}
	}
	return out
}
