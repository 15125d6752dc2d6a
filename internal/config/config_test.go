package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name      string
		yaml      string
		envVars   map[string]string
		wantErr   string
		checkFunc func(t *testing.T, cfg *Config)
	}{
		{
			name: "valid minimal config",
			yaml: `
database:
  host: localhost
  name: testdb
  user: testuser
`,
			checkFunc: func(t *testing.T, cfg *Config) {
				t.Helper()
				assert.Equal(t, DriverPostgres, cfg.Database.Driver)
				assert.Equal(t, "localhost", cfg.Database.Host)
				assert.Equal(t, "testdb", cfg.Database.Name)
				assert.Equal(t, "testuser", cfg.Database.User)
			},
		},
		{
			name: "defaults applied for optional fields",
			yaml: `
database:
  driver: memory
`,
			checkFunc: func(t *testing.T, cfg *Config) {
				t.Helper()
				assert.Equal(t, "0.0.0.0", cfg.Server.Host)
				assert.Equal(t, 8080, cfg.Server.Port)
				assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
				assert.Equal(t, 5432, cfg.Database.Port)
				assert.Equal(t, "disable", cfg.Database.SSLMode)
				assert.Equal(t, 10, cfg.Database.PoolSize)
				assert.Equal(t, 10*time.Second, cfg.Providers.Timeout)
				assert.Equal(t, 2*time.Minute, cfg.Providers.CacheTTL)
				assert.InDelta(t, 5.0, cfg.Providers.Skyscanner.RateLimit.PerSecond, 0.001)
				assert.Equal(t, int64(5000), cfg.Providers.VividSeats.RateLimit.DailyLimit)
				assert.Equal(t, "USD", cfg.Currency.Base)
				assert.Equal(t, time.Minute, cfg.Monitor.TickInterval)
				assert.Equal(t, 8, cfg.Monitor.Concurrency)
				assert.Equal(t, 45*time.Second, cfg.Monitor.CheckTimeout)
				assert.Equal(t, 200, cfg.Monitor.MaxChecksPerCycle)
				assert.Equal(t, 5*time.Second, cfg.Monitor.PersistTimeout)
				assert.Equal(t, 3, cfg.Monitor.OutageThreshold)
				assert.Equal(t, 16, cfg.Monitor.MaxBackoffFactor)
				assert.Equal(t, 3, cfg.Monitor.SlackDays())
				assert.Equal(t, 5*time.Minute, cfg.Monitor.Tiers.RealTime)
				assert.Equal(t, time.Hour, cfg.Monitor.Tiers.Hourly)
				assert.Equal(t, 24*time.Hour, cfg.Monitor.Tiers.Daily)
				assert.Equal(t, 168*time.Hour, cfg.Monitor.Tiers.Weekly)
				assert.Equal(t, 6*time.Hour, cfg.Schedule.AnalysisInterval)
				assert.Equal(t, 24*time.Hour, cfg.Schedule.CleanupInterval)
				assert.Equal(t, 168*time.Hour, cfg.Alerts.TriggeredTTL)
				assert.Equal(t, 2160*time.Hour, cfg.Alerts.PriceRetention)
				assert.Equal(t, 720*time.Hour, cfg.Alerts.TrendWindow)
				assert.Equal(t, 3, cfg.Delivery.MaxRetries)
				assert.Equal(t, 500*time.Millisecond, cfg.Delivery.InitialBackoff)
				assert.Equal(t, 10*time.Second, cfg.Delivery.MaxBackoff)
				assert.Equal(t, "flight-price-tracker", cfg.Events.Exchange)
				assert.Equal(t, "flight-price-tracker", cfg.Telemetry.ServiceName)
				assert.Equal(t, "info", cfg.Logging.Level)
				assert.Equal(t, "text", cfg.Logging.Format)
				assert.False(t, cfg.Redis.Enabled())
			},
		},
		{
			name: "env var substitution",
			yaml: `
database:
  host: localhost
  name: testdb
  user: testuser
  password: "${TEST_DB_PASSWORD}"
`,
			envVars: map[string]string{
				"TEST_DB_PASSWORD": "secret123",
			},
			checkFunc: func(t *testing.T, cfg *Config) {
				t.Helper()
				assert.Equal(t, "secret123", cfg.Database.Password)
			},
		},
		{
			name: "FPT environment overrides",
			yaml: `
database:
  driver: postgres
  host: localhost
  name: testdb
  user: testuser
logging:
  level: info
`,
			envVars: map[string]string{
				"FPT_LOG_LEVEL":           "debug",
				"FPT_DATABASE_DRIVER":     "sqlite",
				"FPT_DATABASE_PATH":       "/tmp/fpt.db",
				"FPT_MONITOR_CONCURRENCY": "3",
				"FPT_REDIS_ADDR":          "localhost:6379",
			},
			checkFunc: func(t *testing.T, cfg *Config) {
				t.Helper()
				assert.Equal(t, "debug", cfg.Logging.Level)
				assert.Equal(t, DriverSQLite, cfg.Database.Driver)
				assert.Equal(t, "/tmp/fpt.db", cfg.Database.Path)
				assert.Equal(t, 3, cfg.Monitor.Concurrency)
				assert.True(t, cfg.Redis.Enabled())
			},
		},
		{
			name: "missing required database.host",
			yaml: `
database:
  name: testdb
  user: testuser
`,
			wantErr: "database.host is required",
		},
		{
			name: "missing required database.name",
			yaml: `
database:
  host: localhost
  user: testuser
`,
			wantErr: "database.name is required",
		},
		{
			name: "missing required database.user",
			yaml: `
database:
  host: localhost
  name: testdb
`,
			wantErr: "database.user is required",
		},
		{
			name: "sqlite without path",
			yaml: `
database:
  driver: sqlite
`,
			wantErr: "database.path is required when driver is sqlite",
		},
		{
			name: "invalid database driver",
			yaml: `
database:
  driver: mysql
`,
			wantErr: `database.driver must be one of: postgres, sqlite, memory (got "mysql")`,
		},
		{
			name: "enabled provider without base_url",
			yaml: `
database:
  driver: memory
providers:
  seatgeek:
    enabled: true
`,
			wantErr: "providers.seatgeek.base_url is required when enabled",
		},
		{
			name: "non-positive currency rate",
			yaml: `
database:
  driver: memory
currency:
  base: USD
  rates:
    EUR: 0
`,
			wantErr: "currency.rates.EUR must be positive",
		},
		{
			name: "telegram enabled without token",
			yaml: `
database:
  driver: memory
delivery:
  telegram:
    enabled: true
`,
			wantErr: "delivery.telegram.bot_token is required when enabled",
		},
		{
			name: "events enabled without url",
			yaml: `
database:
  driver: memory
events:
  enabled: true
`,
			wantErr: "events.url is required when events are enabled",
		},
		{
			name: "invalid logging format",
			yaml: `
database:
  driver: memory
logging:
  format: xml
`,
			wantErr: `logging.format must be text or json (got "xml")`,
		},
		{
			name:    "invalid YAML",
			yaml:    `{{{not valid yaml`,
			wantErr: "parsing config YAML",
		},
		{
			name: "full config with overrides",
			yaml: `
server:
  host: "127.0.0.1"
  port: 9090
  read_timeout: 60s
  write_timeout: 60s
database:
  host: db.example.com
  port: 5433
  name: flights_prod
  user: admin
  password: pass
  sslmode: require
  pool_size: 20
redis:
  addr: redis:6379
  db: 2
providers:
  timeout: 5s
  cache_ttl: 30s
  skyscanner:
    enabled: true
    base_url: https://partners.example.com/skyscanner
    api_key: sky-key
    rate_limit:
      per_second: 2
      burst: 4
      daily_limit: 1000
currency:
  base: USD
  rates:
    EUR: 0.92
    GBP: 0.79
monitor:
  concurrency: 16
  max_checks_per_cycle: 50
  tiers:
    real_time: 2m
schedule:
  analysis_interval: 12h
alerts:
  triggered_ttl: 48h
delivery:
  max_retries: 5
  discord:
    enabled: true
    webhook_url: https://discord.com/api/webhooks/123
  browser:
    enabled: true
    secret: s3cret
logging:
  level: debug
  format: json
`,
			checkFunc: func(t *testing.T, cfg *Config) {
				t.Helper()
				assert.Equal(t, "127.0.0.1", cfg.Server.Host)
				assert.Equal(t, 9090, cfg.Server.Port)
				assert.Equal(t, 60*time.Second, cfg.Server.ReadTimeout)
				assert.Equal(t, "db.example.com", cfg.Database.Host)
				assert.Equal(t, 5433, cfg.Database.Port)
				assert.Equal(t, "require", cfg.Database.SSLMode)
				assert.Equal(t, 20, cfg.Database.PoolSize)
				assert.Equal(t, "redis:6379", cfg.Redis.Addr)
				assert.Equal(t, 2, cfg.Redis.DB)
				assert.Equal(t, 5*time.Second, cfg.Providers.Timeout)
				assert.True(t, cfg.Providers.Skyscanner.Enabled)
				assert.Equal(t, "sky-key", cfg.Providers.Skyscanner.APIKey)
				assert.Equal(t, int64(1000), cfg.Providers.Skyscanner.RateLimit.DailyLimit)
				assert.False(t, cfg.Providers.StubHub.Enabled)
				assert.InDelta(t, 0.92, cfg.Currency.Rates["EUR"], 0.0001)
				assert.Equal(t, 16, cfg.Monitor.Concurrency)
				assert.Equal(t, 50, cfg.Monitor.MaxChecksPerCycle)
				assert.Equal(t, 2*time.Minute, cfg.Monitor.Tiers.RealTime)
				assert.Equal(t, time.Hour, cfg.Monitor.Tiers.Hourly)
				assert.Equal(t, 12*time.Hour, cfg.Schedule.AnalysisInterval)
				assert.Equal(t, 48*time.Hour, cfg.Alerts.TriggeredTTL)
				assert.Equal(t, 5, cfg.Delivery.MaxRetries)
				assert.True(t, cfg.Delivery.Discord.Enabled)
				assert.Equal(t, "https://discord.com/api/webhooks/123", cfg.Delivery.Discord.WebhookURL)
				assert.Equal(t, "s3cret", cfg.Delivery.Browser.Secret)
				assert.Equal(t, "debug", cfg.Logging.Level)
				assert.Equal(t, "json", cfg.Logging.Format)
			},
		},
		{
			name: "explicit zero slack kept",
			yaml: `
database:
  driver: memory
monitor:
  flexible_date_slack_days: 0
`,
			checkFunc: func(t *testing.T, cfg *Config) {
				t.Helper()
				assert.Zero(t, cfg.Monitor.SlackDays())
			},
		},
		{
			name: "negative slack rejected",
			yaml: `
database:
  driver: memory
monitor:
  flexible_date_slack_days: -1
`,
			wantErr: "monitor.flexible_date_slack_days must not be negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Only parallelize tests that don't modify env vars.
			if len(tt.envVars) == 0 {
				t.Parallel()
			}

			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			dir := t.TempDir()
			path := filepath.Join(dir, "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.yaml), 0o644))

			cfg, err := Load(path)

			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, cfg)

			if tt.checkFunc != nil {
				tt.checkFunc(t, cfg)
			}
		})
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	t.Parallel()

	_, err := Load("/nonexistent/path/config.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading config file")
}

func TestDatabaseConfig_DSN(t *testing.T) {
	t.Parallel()

	cfg := DatabaseConfig{
		Host:     "db.example.com",
		Port:     5433,
		Name:     "flights",
		User:     "admin",
		Password: "s3cret",
		SSLMode:  "require",
	}
	assert.Equal(t,
		"host=db.example.com port=5433 dbname=flights user=admin password=s3cret sslmode=require",
		cfg.DSN(),
	)
}

func TestProvidersConfig_All(t *testing.T) {
	t.Parallel()

	var p ProvidersConfig
	all := p.All()
	assert.Len(t, all, 5)
	all["stubhub"].Enabled = true
	assert.True(t, p.StubHub.Enabled, "All returns pointers into the config")
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("FPT_DOTENV_TEST_VALUE=from-file\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("FPT_DOTENV_TEST_VALUE") })

	require.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env"), path))
	assert.Equal(t, "from-file", os.Getenv("FPT_DOTENV_TEST_VALUE"))
}
