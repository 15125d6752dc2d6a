package engine

import (
	"sync"

	"github.com/donaldgifford/flight-price-tracker/internal/metrics"
)

// Health tracks consecutive provider outage cycles and derives the factor
// applied to every tier interval. Once threshold consecutive outage cycles
// have been seen the factor doubles on each further outage cycle, capped at
// maxFactor. The first cycle that produces data resets it to 1.
type Health struct {
	mu          sync.Mutex
	threshold   int
	maxFactor   int
	consecutive int
	factor      int
}

// NewHealth creates a Health tracker.
func NewHealth(threshold, maxFactor int) *Health {
	if threshold < 1 {
		threshold = 1
	}
	if maxFactor < 1 {
		maxFactor = 1
	}
	return &Health{threshold: threshold, maxFactor: maxFactor, factor: 1}
}

// Observe records one cycle and returns the resulting factor. A cycle that
// is neither an outage nor data-bearing leaves the state unchanged.
func (h *Health) Observe(outage, gotData bool) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch {
	case gotData:
		h.consecutive = 0
		h.factor = 1
	case outage:
		h.consecutive++
		if h.consecutive >= h.threshold {
			h.factor = min(h.factor*2, h.maxFactor)
		}
	}

	metrics.DegradeFactor.Set(float64(h.factor))
	return h.factor
}

// Factor returns the current interval multiplier.
func (h *Health) Factor() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.factor
}

// ConsecutiveOutages returns the current outage streak.
func (h *Health) ConsecutiveOutages() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.consecutive
}
