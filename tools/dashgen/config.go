package main

import "errors"

// KnownMetrics is the set of metric names exported by flight-price-tracker
// plus recording rule names referenced in dashboards and alerts.
var KnownMetrics = map[string]bool{
	// HTTP metrics.
	"fpt_http_request_duration_seconds": true,
	"fpt_http_requests_total":           true,

	// Health metrics.
	"fpt_healthz_up": true,
	"fpt_readyz_up":  true,

	// Poll loop metrics.
	"fpt_poll_cycle_duration_seconds": true,
	"fpt_filter_checks_total":         true,
	"fpt_filter_checks_in_flight":     true,
	"fpt_due_filters":                 true,
	"fpt_poll_degrade_factor":         true,

	// Provider metrics.
	"fpt_provider_calls_total":            true,
	"fpt_provider_latency_seconds":        true,
	"fpt_provider_daily_usage":            true,
	"fpt_provider_budget_exhausted_total": true,
	"fpt_quote_cache_total":               true,

	// Aggregation and scoring metrics.
	"fpt_aggregate_no_data_total":    true,
	"fpt_quality_score_distribution": true,

	// Alert metrics.
	"fpt_alerts_triggered_total":          true,
	"fpt_alert_transitions_total":         true,
	"fpt_alert_transition_failures_total": true,

	// Delivery and background job metrics.
	"fpt_deliveries_total":           true,
	"fpt_delivery_retries_total":     true,
	"fpt_delivery_duration_seconds":  true,
	"fpt_events_published_total":     true,
	"fpt_job_runs_total":             true,
	"fpt_job_last_success_timestamp": true,

	// Recording rules.
	"fpt:http_requests:rate5m":     true,
	"fpt:http_errors:rate5m":       true,
	"fpt:provider_calls:rate5m":    true,
	"fpt:provider_errors:rate5m":   true,
	"fpt:filter_checks:rate5m":     true,
	"fpt:delivery_failures:rate5m": true,
	"fpt:delivery_duration:p95_5m": true,

	// Standard Prometheus metrics referenced in dashboards.
	"up":                         true,
	"process_start_time_seconds": true,
}

// Config controls which artifacts the generator produces and where they go.
type Config struct {
	OutputDir        string
	DashboardEnabled bool
	RulesEnabled     bool
}

// DefaultConfig returns a Config that generates all artifacts into ../../deploy
// (relative to tools/dashgen/).
func DefaultConfig() Config {
	return Config{
		OutputDir:        "../../deploy",
		DashboardEnabled: true,
		RulesEnabled:     true,
	}
}

// Validate checks that the config is usable.
func (c Config) Validate() error {
	if c.OutputDir == "" {
		return errors.New("output directory must be set")
	}
	if !c.DashboardEnabled && !c.RulesEnabled {
		return errors.New("at least one of dashboard or rules must be enabled")
	}
	return nil
}
