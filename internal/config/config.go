// Package config handles loading and validating the application configuration
// from YAML files with environment variable substitution.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Providers ProvidersConfig `yaml:"providers"`
	Currency  CurrencyConfig  `yaml:"currency"`
	Monitor   MonitorConfig   `yaml:"monitor"`
	Schedule  ScheduleConfig  `yaml:"schedule"`
	Alerts    AlertsConfig    `yaml:"alerts"`
	Delivery  DeliveryConfig  `yaml:"delivery"`
	Events    EventsConfig    `yaml:"events"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig defines the Echo HTTP server settings.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// Database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

// DatabaseConfig defines persistence settings.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // postgres, sqlite, memory
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
	PoolSize int    `yaml:"pool_size"`
	Path     string `yaml:"path"` // sqlite file
}

// DSN returns a PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		d.Host, d.Port, d.Name, d.User, d.Password, d.SSLMode,
	)
}

// RedisConfig defines the optional Redis connection used for the quote cache
// and delivery claims. An empty Addr disables Redis.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// Enabled reports whether a Redis address is configured.
func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

// ProvidersConfig defines the quote providers.
type ProvidersConfig struct {
	Timeout      time.Duration  `yaml:"timeout"`
	CacheTTL     time.Duration  `yaml:"cache_ttl"`
	Skyscanner   ProviderConfig `yaml:"skyscanner"`
	Ticketmaster ProviderConfig `yaml:"ticketmaster"`
	SeatGeek     ProviderConfig `yaml:"seatgeek"`
	StubHub      ProviderConfig `yaml:"stubhub"`
	VividSeats   ProviderConfig `yaml:"vividseats"`
}

// All returns every provider config keyed by provider name.
func (p *ProvidersConfig) All() map[string]*ProviderConfig {
	return map[string]*ProviderConfig{
		"skyscanner":   &p.Skyscanner,
		"ticketmaster": &p.Ticketmaster,
		"seatgeek":     &p.SeatGeek,
		"stubhub":      &p.StubHub,
		"vividseats":   &p.VividSeats,
	}
}

// ProviderConfig defines one vendor endpoint.
type ProviderConfig struct {
	Enabled   bool            `yaml:"enabled"`
	BaseURL   string          `yaml:"base_url"`
	APIKey    string          `yaml:"api_key"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig defines a per-provider rate budget.
type RateLimitConfig struct {
	PerSecond  float64 `yaml:"per_second"`
	Burst      int     `yaml:"burst"`
	DailyLimit int64   `yaml:"daily_limit"`
}

// CurrencyConfig is the fixed conversion snapshot. Rates are units of each
// currency per one unit of Base.
type CurrencyConfig struct {
	Base  string             `yaml:"base"`
	Rates map[string]float64 `yaml:"rates"`
}

// MonitorConfig defines the poll loop.
type MonitorConfig struct {
	TickInterval          time.Duration `yaml:"tick_interval"`
	Concurrency           int           `yaml:"concurrency"`
	CheckTimeout          time.Duration `yaml:"check_timeout"`
	MaxChecksPerCycle     int           `yaml:"max_checks_per_cycle"`
	PersistTimeout        time.Duration `yaml:"persist_timeout"`
	OutageThreshold       int           `yaml:"outage_threshold"`
	MaxBackoffFactor      int           `yaml:"max_backoff_factor"`
	FlexibleDateSlackDays *int          `yaml:"flexible_date_slack_days"`
	Tiers                 TierConfig    `yaml:"tiers"`
}

const defaultFlexibleDateSlackDays = 3

// SlackDays returns the flexible date slack. An explicit zero disables it.
func (m *MonitorConfig) SlackDays() int {
	if m.FlexibleDateSlackDays == nil {
		return defaultFlexibleDateSlackDays
	}
	return *m.FlexibleDateSlackDays
}

// TierConfig maps frequency tiers to check intervals.
type TierConfig struct {
	RealTime time.Duration `yaml:"real_time"`
	Hourly   time.Duration `yaml:"hourly"`
	Daily    time.Duration `yaml:"daily"`
	Weekly   time.Duration `yaml:"weekly"`
}

// ScheduleConfig defines cron intervals for the background jobs.
type ScheduleConfig struct {
	AnalysisInterval time.Duration `yaml:"analysis_interval"`
	CleanupInterval  time.Duration `yaml:"cleanup_interval"`
	JobTimeout       time.Duration `yaml:"job_timeout"`
}

// AlertsConfig defines alert lifecycle housekeeping.
type AlertsConfig struct {
	TriggeredTTL   time.Duration `yaml:"triggered_ttl"`   // default: 168h
	PriceRetention time.Duration `yaml:"price_retention"` // default: 2160h
	TrendWindow    time.Duration `yaml:"trend_window"`    // default: 720h
}

// DeliveryConfig defines the dispatcher and its channels.
type DeliveryConfig struct {
	MaxRetries     int            `yaml:"max_retries"`
	InitialBackoff time.Duration  `yaml:"initial_backoff"`
	MaxBackoff     time.Duration  `yaml:"max_backoff"`
	SendTimeout    time.Duration  `yaml:"send_timeout"`
	Email          EmailConfig    `yaml:"email"`
	SMS            SMSConfig      `yaml:"sms"`
	Push           PushConfig     `yaml:"push"`
	Browser        BrowserConfig  `yaml:"browser"`
	Telegram       TelegramConfig `yaml:"telegram"`
	Discord        DiscordConfig  `yaml:"discord"`
}

// EmailConfig defines Gmail API delivery.
type EmailConfig struct {
	Enabled      bool   `yaml:"enabled"`
	From         string `yaml:"from"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RefreshToken string `yaml:"refresh_token"`
}

// SMSConfig defines the HTTP SMS gateway.
type SMSConfig struct {
	Enabled   bool   `yaml:"enabled"`
	URL       string `yaml:"url"`
	AccountID string `yaml:"account_id"`
	AuthToken string `yaml:"auth_token"`
	From      string `yaml:"from"`
}

// PushConfig defines the HTTP push gateway.
type PushConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	APIKey  string `yaml:"api_key"`
}

// BrowserConfig defines the signed web push relay.
type BrowserConfig struct {
	Enabled bool   `yaml:"enabled"`
	Secret  string `yaml:"secret"`
}

// TelegramConfig defines Telegram bot delivery.
type TelegramConfig struct {
	Enabled  bool   `yaml:"enabled"`
	BotToken string `yaml:"bot_token"`
}

// DiscordConfig defines Discord webhook delivery. WebhookURL is used when a
// filter does not carry its own webhook.
type DiscordConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
}

// EventsConfig defines analytics event publishing.
type EventsConfig struct {
	Enabled  bool   `yaml:"enabled"`
	URL      string `yaml:"url"`
	Exchange string `yaml:"exchange"`
}

// TelemetryConfig defines OpenTelemetry export.
type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Endpoint    string `yaml:"endpoint"`
	Insecure    bool   `yaml:"insecure"`
	ServiceName string `yaml:"service_name"`
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// Load reads and parses a YAML config file, performing environment variable
// substitution, FPT_* overrides and validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // config path from trusted CLI flag
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the YAML content.
	expanded := os.ExpandEnv(string(data))

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("applying environment overrides: %w", err)
	}

	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	applyServerDefaults(&cfg.Server)
	applyDatabaseDefaults(&cfg.Database)
	applyProvidersDefaults(&cfg.Providers)
	applyCurrencyDefaults(&cfg.Currency)
	applyMonitorDefaults(&cfg.Monitor)
	applyScheduleDefaults(&cfg.Schedule)
	applyAlertsDefaults(&cfg.Alerts)
	applyDeliveryDefaults(&cfg.Delivery)
	applyEventsDefaults(&cfg.Events)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyLoggingDefaults(&cfg.Logging)
}

func applyServerDefaults(s *ServerConfig) {
	if s.Host == "" {
		s.Host = "0.0.0.0"
	}
	if s.Port == 0 {
		s.Port = 8080
	}
	if s.ReadTimeout == 0 {
		s.ReadTimeout = 30 * time.Second
	}
	if s.WriteTimeout == 0 {
		s.WriteTimeout = 30 * time.Second
	}
}

func applyDatabaseDefaults(d *DatabaseConfig) {
	if d.Driver == "" {
		d.Driver = DriverPostgres
	}
	if d.Port == 0 {
		d.Port = 5432
	}
	if d.SSLMode == "" {
		d.SSLMode = "disable"
	}
	if d.PoolSize == 0 {
		d.PoolSize = 10
	}
}

func applyProvidersDefaults(p *ProvidersConfig) {
	if p.Timeout == 0 {
		p.Timeout = 10 * time.Second
	}
	if p.CacheTTL == 0 {
		p.CacheTTL = 2 * time.Minute
	}
	for _, pc := range p.All() {
		applyRateLimitDefaults(&pc.RateLimit)
	}
}

func applyRateLimitDefaults(r *RateLimitConfig) {
	if r.PerSecond == 0 {
		r.PerSecond = 5.0
	}
	if r.Burst == 0 {
		r.Burst = 10
	}
	if r.DailyLimit == 0 {
		r.DailyLimit = 5000
	}
}

func applyCurrencyDefaults(c *CurrencyConfig) {
	if c.Base == "" {
		c.Base = "USD"
	}
}

func applyMonitorDefaults(m *MonitorConfig) {
	if m.TickInterval == 0 {
		m.TickInterval = time.Minute
	}
	if m.Concurrency == 0 {
		m.Concurrency = 8
	}
	if m.CheckTimeout == 0 {
		m.CheckTimeout = 45 * time.Second
	}
	if m.MaxChecksPerCycle == 0 {
		m.MaxChecksPerCycle = 200
	}
	if m.PersistTimeout == 0 {
		m.PersistTimeout = 5 * time.Second
	}
	if m.OutageThreshold == 0 {
		m.OutageThreshold = 3
	}
	if m.MaxBackoffFactor == 0 {
		m.MaxBackoffFactor = 16
	}
	if m.FlexibleDateSlackDays == nil {
		slack := defaultFlexibleDateSlackDays
		m.FlexibleDateSlackDays = &slack
	}
	if m.Tiers.RealTime == 0 {
		m.Tiers.RealTime = 5 * time.Minute
	}
	if m.Tiers.Hourly == 0 {
		m.Tiers.Hourly = time.Hour
	}
	if m.Tiers.Daily == 0 {
		m.Tiers.Daily = 24 * time.Hour
	}
	if m.Tiers.Weekly == 0 {
		m.Tiers.Weekly = 7 * 24 * time.Hour
	}
}

func applyScheduleDefaults(s *ScheduleConfig) {
	if s.AnalysisInterval == 0 {
		s.AnalysisInterval = 6 * time.Hour
	}
	if s.CleanupInterval == 0 {
		s.CleanupInterval = 24 * time.Hour
	}
	if s.JobTimeout == 0 {
		s.JobTimeout = 30 * time.Minute
	}
}

func applyAlertsDefaults(a *AlertsConfig) {
	if a.TriggeredTTL == 0 {
		a.TriggeredTTL = 7 * 24 * time.Hour
	}
	if a.PriceRetention == 0 {
		a.PriceRetention = 90 * 24 * time.Hour
	}
	if a.TrendWindow == 0 {
		a.TrendWindow = 30 * 24 * time.Hour
	}
}

func applyDeliveryDefaults(d *DeliveryConfig) {
	if d.MaxRetries == 0 {
		d.MaxRetries = 3
	}
	if d.InitialBackoff == 0 {
		d.InitialBackoff = 500 * time.Millisecond
	}
	if d.MaxBackoff == 0 {
		d.MaxBackoff = 10 * time.Second
	}
	if d.SendTimeout == 0 {
		d.SendTimeout = 15 * time.Second
	}
}

func applyEventsDefaults(e *EventsConfig) {
	if e.Exchange == "" {
		e.Exchange = "flight-price-tracker"
	}
}

func applyTelemetryDefaults(t *TelemetryConfig) {
	if t.ServiceName == "" {
		t.ServiceName = "flight-price-tracker"
	}
	if t.Endpoint == "" {
		t.Endpoint = "localhost:4317"
	}
}

func applyLoggingDefaults(l *LoggingConfig) {
	if l.Level == "" {
		l.Level = "info"
	}
	if l.Format == "" {
		l.Format = "text"
	}
}

func validate(cfg *Config) error {
	var errs []error

	switch cfg.Database.Driver {
	case DriverPostgres:
		if cfg.Database.Host == "" {
			errs = append(errs, fmt.Errorf("database.host is required"))
		}
		if cfg.Database.Name == "" {
			errs = append(errs, fmt.Errorf("database.name is required"))
		}
		if cfg.Database.User == "" {
			errs = append(errs, fmt.Errorf("database.user is required"))
		}
	case DriverSQLite:
		if cfg.Database.Path == "" {
			errs = append(errs, fmt.Errorf("database.path is required when driver is sqlite"))
		}
	case DriverMemory:
	default:
		errs = append(
			errs,
			fmt.Errorf(
				"database.driver must be one of: postgres, sqlite, memory (got %q)",
				cfg.Database.Driver,
			),
		)
	}

	for name, pc := range cfg.Providers.All() {
		if pc.Enabled && pc.BaseURL == "" {
			errs = append(errs, fmt.Errorf("providers.%s.base_url is required when enabled", name))
		}
	}

	for code, rate := range cfg.Currency.Rates {
		if rate <= 0 {
			errs = append(errs, fmt.Errorf("currency.rates.%s must be positive", code))
		}
	}

	if cfg.Monitor.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("monitor.concurrency must be at least 1"))
	}
	if cfg.Monitor.MaxBackoffFactor < 1 {
		errs = append(errs, fmt.Errorf("monitor.max_backoff_factor must be at least 1"))
	}
	if cfg.Monitor.SlackDays() < 0 {
		errs = append(errs, fmt.Errorf("monitor.flexible_date_slack_days must not be negative"))
	}
	if cfg.Delivery.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("delivery.max_retries must not be negative"))
	}

	errs = append(errs, validateDelivery(&cfg.Delivery)...)

	if cfg.Events.Enabled && cfg.Events.URL == "" {
		errs = append(errs, fmt.Errorf("events.url is required when events are enabled"))
	}

	if !slices.Contains([]string{"text", "json"}, cfg.Logging.Format) {
		errs = append(errs, fmt.Errorf("logging.format must be text or json (got %q)", cfg.Logging.Format))
	}

	return errors.Join(errs...)
}

func validateDelivery(d *DeliveryConfig) []error {
	var errs []error
	if d.Email.Enabled && (d.Email.ClientID == "" || d.Email.RefreshToken == "") {
		errs = append(errs, fmt.Errorf("delivery.email.client_id and refresh_token are required when enabled"))
	}
	if d.SMS.Enabled && d.SMS.URL == "" {
		errs = append(errs, fmt.Errorf("delivery.sms.url is required when enabled"))
	}
	if d.Push.Enabled && d.Push.URL == "" {
		errs = append(errs, fmt.Errorf("delivery.push.url is required when enabled"))
	}
	if d.Browser.Enabled && d.Browser.Secret == "" {
		errs = append(errs, fmt.Errorf("delivery.browser.secret is required when enabled"))
	}
	if d.Telegram.Enabled && d.Telegram.BotToken == "" {
		errs = append(errs, fmt.Errorf("delivery.telegram.bot_token is required when enabled"))
	}
	return errs
}
