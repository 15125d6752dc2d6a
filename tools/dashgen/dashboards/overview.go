// Package dashboards assembles Grafana dashboard definitions from panel builders.
package dashboards

import (
	"github.com/grafana/grafana-foundation-sdk/go/dashboard"

	"github.com/donaldgifford/flight-price-tracker/tools/dashgen/panels"
)

// BuildOverview constructs the FPT Overview dashboard with all metric rows.
func BuildOverview() *dashboard.DashboardBuilder {
	b := dashboard.NewDashboardBuilder("FPT Overview").
		Uid("fpt-overview").
		Tags([]string{"fpt", "flight-price-tracker"}).
		Refresh("30s").
		Time("now-6h", "now").
		Timezone("browser").
		Editable().
		Tooltip(dashboard.DashboardCursorSyncCrosshair).
		WithVariable(datasourceVar())

	// Row 1: Overview.
	b.WithRow(dashboard.NewRowBuilder("Overview").
		WithPanel(panels.HealthzStat()).
		WithPanel(panels.ReadyzStat()).
		WithPanel(panels.DegradeGauge()).
		WithPanel(panels.UptimeStat()))

	// Row 2: HTTP.
	b.WithRow(dashboard.NewRowBuilder("HTTP").
		WithPanel(panels.RequestRate()).
		WithPanel(panels.LatencyPercentiles()).
		WithPanel(panels.ErrorRate()))

	// Row 3: Poll loop.
	b.WithRow(dashboard.NewRowBuilder("Poll Loop").
		WithPanel(panels.ChecksByOutcome()).
		WithPanel(panels.CycleDuration()).
		WithPanel(panels.DueAndInFlight()).
		WithPanel(panels.LastJobSuccess()))

	// Row 4: Providers.
	b.WithRow(dashboard.NewRowBuilder("Providers").
		WithPanel(panels.ProviderCallsRate()).
		WithPanel(panels.ProviderLatency()).
		WithPanel(panels.ProviderDailyUsage()).
		WithPanel(panels.QuoteCacheRatio()))

	// Row 5: Alerts.
	b.WithRow(dashboard.NewRowBuilder("Alerts").
		WithPanel(panels.AlertsTriggeredRate()).
		WithPanel(panels.QualityScores()).
		WithPanel(panels.TransitionFailures()))

	// Row 6: Delivery.
	b.WithRow(dashboard.NewRowBuilder("Delivery").
		WithPanel(panels.DeliveriesByStatus()).
		WithPanel(panels.DeliveryLatency()).
		WithPanel(panels.DeliveryFailures()))

	return b
}

func datasourceVar() *dashboard.DatasourceVariableBuilder {
	return dashboard.NewDatasourceVariableBuilder("datasource").
		Label("Datasource").
		Type("prometheus")
}
