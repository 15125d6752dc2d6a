package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsRegistered(t *testing.T) {
	t.Parallel()

	// Verify all metrics are non-nil (registered via promauto on package init).
	assert.NotNil(t, HTTPRequestDuration)
	assert.NotNil(t, HTTPRequestsTotal)
	assert.NotNil(t, HealthzUp)
	assert.NotNil(t, ReadyzUp)
	assert.NotNil(t, CycleDuration)
	assert.NotNil(t, ChecksTotal)
	assert.NotNil(t, ChecksInFlight)
	assert.NotNil(t, DueFilters)
	assert.NotNil(t, DegradeFactor)
	assert.NotNil(t, ProviderCallsTotal)
	assert.NotNil(t, ProviderLatency)
	assert.NotNil(t, ProviderDailyUsage)
	assert.NotNil(t, ProviderBudgetExhaustedTotal)
	assert.NotNil(t, QuoteCacheTotal)
	assert.NotNil(t, NoDataTotal)
	assert.NotNil(t, QualityScoreDistribution)
	assert.NotNil(t, AlertsTriggeredTotal)
	assert.NotNil(t, TransitionsTotal)
	assert.NotNil(t, TransitionFailuresTotal)
	assert.NotNil(t, DeliveriesTotal)
	assert.NotNil(t, DeliveryRetriesTotal)
	assert.NotNil(t, JobRunsTotal)
	assert.NotNil(t, JobLastSuccess)
	assert.NotNil(t, EventsPublishedTotal)
}

func TestCounterVecIncrements(t *testing.T) {
	t.Parallel()

	c := DeliveryRetriesTotal.WithLabelValues("metrics-test-channel")
	before := testutil.ToFloat64(c)
	c.Inc()
	assert.InDelta(t, before+1, testutil.ToFloat64(c), 0.0001)
}
