package edgetap

import (
	"github.com/ghalamif/EdgeTap/internal/adapters/observability"
	"github.com/ghalamif/EdgeTap/internal/adapters/opcua"
	"github.com/ghalamif/EdgeTap/internal/app/config"
	"github.com/ghalamif/EdgeTap/internal/ports"
)

// Config re-exports the root configuration struct so downstream projects can
// construct or modify it programmatically.
type Config = config.Config

type (
	SourceConfig    = config.SourceConfig
	SerialConfig    = config.SerialConfig
	BufferConfig    = config.BufferConfig
	LogConfig       = config.LogConfig
	PlaybackConfig  = config.PlaybackConfig
	ForwardConfig   = config.ForwardConfig
	TimescaleConfig = config.TimescaleConfig
	MQTTConfig      = config.MQTTConfig
	RedisConfig     = config.RedisConfig
	HTTPConfig      = config.HTTPConfig
	// LoggingConfig selects the service's own diagnostic log output.
	LoggingConfig = observability.LogConfig
	// Policy controls the forward queue.
	Policy = ports.Policy
	// OPCUAConfig holds connection + node details.
	OPCUAConfig = opcua.Config
	// OPCUANodeConfig describes a monitored tag.
	OPCUANodeConfig = opcua.NodeConfig
)

const (
	SourceSerial = config.SourceSerial
	SourceOPCUA  = config.SourceOPCUA
)

// LoadConfig loads YAML from disk, applies defaults and validates it.
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}

// ParseConfig is LoadConfig for an in-memory document.
func ParseConfig(raw []byte) (*Config, error) {
	return config.Parse(raw)
}
