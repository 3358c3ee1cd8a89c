package observability

import (
	"strings"

	"github.com/smallbiznis/bootcamp/internal/config"
)

const defaultServiceName = "bootcamp"

// Config is the slice of application config the logging, tracing and
// metrics providers read.
type Config struct {
	ServiceName string
	Environment string
	Version     string

	Log       config.LogConfig
	Telemetry config.TelemetryConfig
}

func LoadConfig(cfg config.Config) Config {
	name := strings.TrimSpace(cfg.AppName)
	if name == "" {
		name = defaultServiceName
	}
	return Config{
		ServiceName: name,
		Environment: strings.TrimSpace(cfg.Environment),
		Version:     strings.TrimSpace(cfg.AppVersion),
		Log:         cfg.Log,
		Telemetry:   cfg.Telemetry,
	}
}

// Debug turns on stack traces and request error stacks.
func (c Config) Debug() bool {
	return c.Log.Level == "debug" || config.IsDevEnvironment(c.Environment)
}
