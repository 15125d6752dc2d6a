package rules

// AlertRules returns a PrometheusRule CR containing alert rules for
// flight-price-tracker operational monitoring.
func AlertRules() PrometheusRule {
	return newRule("fpt-alerts", RuleGroup{
		Name: "fpt-alerts",
		Rules: []Rule{
			{
				Alert:  "FptDown",
				Expr:   `absent(up{job="flight-price-tracker"})`,
				For:    "2m",
				Labels: map[string]string{"severity": "critical"},
				Annotations: map[string]string{
					"summary":     "Flight Price Tracker is down",
					"description": "The flight-price-tracker job has been absent for more than 2 minutes.",
				},
			},
			{
				Alert:  "FptReadinessDown",
				Expr:   `fpt_readyz_up == 0`,
				For:    "2m",
				Labels: map[string]string{"severity": "critical"},
				Annotations: map[string]string{
					"summary":     "Flight Price Tracker readiness check is failing",
					"description": "The readiness probe has been reporting not-ready for more than 2 minutes.",
				},
			},
			{
				Alert:  "FptHighErrorRate",
				Expr:   `fpt:http_errors:rate5m / fpt:http_requests:rate5m > 0.05`,
				For:    "5m",
				Labels: map[string]string{"severity": "warning"},
				Annotations: map[string]string{
					"summary":     "High HTTP error rate on Flight Price Tracker",
					"description": "More than 5% of HTTP requests are returning 5xx errors over the last 5 minutes.",
				},
			},
			{
				Alert:  "FptProviderOutage",
				Expr:   `max(fpt_poll_degrade_factor) > 1`,
				For:    "10m",
				Labels: map[string]string{"severity": "warning"},
				Annotations: map[string]string{
					"summary":     "All quote providers are failing",
					"description": "Consecutive poll cycles got no data from any provider and check intervals are backed off.",
				},
			},
			{
				Alert:  "FptProviderErrors",
				Expr:   `fpt:provider_errors:rate5m / fpt:provider_calls:rate5m > 0.5`,
				For:    "15m",
				Labels: map[string]string{"severity": "warning"},
				Annotations: map[string]string{
					"summary":     "A quote provider is failing most calls",
					"description": "More than half of calls to one provider have failed over the last 15 minutes.",
				},
			},
			{
				Alert:  "FptProviderBudgetExhausted",
				Expr:   `increase(fpt_provider_budget_exhausted_total[5m]) > 0`,
				For:    "0m",
				Labels: map[string]string{"severity": "warning"},
				Annotations: map[string]string{
					"summary":     "A provider's daily call budget is exhausted",
					"description": "Calls to the provider are refused until the daily budget resets.",
				},
			},
			{
				Alert:  "FptMonitoringStalled",
				Expr:   `time() - fpt_job_last_success_timestamp{job_name="monitoring"} > 900`,
				For:    "5m",
				Labels: map[string]string{"severity": "critical"},
				Annotations: map[string]string{
					"summary":     "Poll cycles have stopped succeeding",
					"description": "The monitoring job has not completed successfully for more than 15 minutes.",
				},
			},
			{
				Alert:  "FptDeliveryFailures",
				Expr:   `fpt:delivery_failures:rate5m > 0`,
				For:    "5m",
				Labels: map[string]string{"severity": "warning"},
				Annotations: map[string]string{
					"summary":     "Notification delivery failures detected",
					"description": "One or more alert notifications have failed after exhausting retries.",
				},
			},
		},
	})
}
