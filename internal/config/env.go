package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is the prefix for environment overrides, e.g. FPT_LOG_LEVEL.
const EnvPrefix = "FPT"

// envOverrides are applied on top of the YAML file. Zero values mean unset.
type envOverrides struct {
	LogLevel     string `envconfig:"LOG_LEVEL"`
	LogFormat    string `envconfig:"LOG_FORMAT"`
	ServerHost   string `envconfig:"SERVER_HOST"`
	ServerPort   int    `envconfig:"SERVER_PORT"`
	DBDriver     string `envconfig:"DATABASE_DRIVER"`
	DBHost       string `envconfig:"DATABASE_HOST"`
	DBName       string `envconfig:"DATABASE_NAME"`
	DBUser       string `envconfig:"DATABASE_USER"`
	DBPassword   string `envconfig:"DATABASE_PASSWORD"`
	DBPath       string `envconfig:"DATABASE_PATH"`
	RedisAddr    string `envconfig:"REDIS_ADDR"`
	EventsURL    string `envconfig:"EVENTS_URL"`
	OTLPEndpoint string `envconfig:"OTLP_ENDPOINT"`
	Concurrency  int    `envconfig:"MONITOR_CONCURRENCY"`
}

func applyEnvOverrides(cfg *Config) error {
	var o envOverrides
	if err := envconfig.Process(EnvPrefix, &o); err != nil {
		return err
	}

	setString(&cfg.Logging.Level, o.LogLevel)
	setString(&cfg.Logging.Format, o.LogFormat)
	setString(&cfg.Server.Host, o.ServerHost)
	setInt(&cfg.Server.Port, o.ServerPort)
	setString(&cfg.Database.Driver, o.DBDriver)
	setString(&cfg.Database.Host, o.DBHost)
	setString(&cfg.Database.Name, o.DBName)
	setString(&cfg.Database.User, o.DBUser)
	setString(&cfg.Database.Password, o.DBPassword)
	setString(&cfg.Database.Path, o.DBPath)
	setString(&cfg.Redis.Addr, o.RedisAddr)
	setString(&cfg.Events.URL, o.EventsURL)
	setString(&cfg.Telemetry.Endpoint, o.OTLPEndpoint)
	setInt(&cfg.Monitor.Concurrency, o.Concurrency)
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

// LoadDotEnv loads KEY=VALUE pairs from the given files into the process
// environment. Missing files are ignored; existing variables win.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("loading %s: %w", p, err)
		}
	}
	return nil
}
