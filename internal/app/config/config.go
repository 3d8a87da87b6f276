package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ghalamif/EdgeTap/internal/adapters/observability"
	"github.com/ghalamif/EdgeTap/internal/adapters/opcua"
	"github.com/ghalamif/EdgeTap/internal/ports"
	"gopkg.in/yaml.v3"
)

const (
	SourceSerial = "serial"
	SourceOPCUA  = "opcua"
)

type Config struct {
	Source   SourceConfig            `yaml:"source"`
	Serial   SerialConfig            `yaml:"serial"`
	Buffer   BufferConfig            `yaml:"buffer"`
	Log      LogConfig               `yaml:"log"`
	Playback PlaybackConfig          `yaml:"playback"`
	OPCUA    opcua.Config            `yaml:"opcua"`
	Forward  ForwardConfig           `yaml:"forward"`
	HTTP     HTTPConfig              `yaml:"http"`
	Logging  observability.LogConfig `yaml:"logging"`
}

type SourceConfig struct {
	Kind string `yaml:"kind"` // "serial" or "opcua"
}

type SerialConfig struct {
	Port         string        `yaml:"port"`
	BaudRate     int           `yaml:"baud_rate"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	MaxLineBytes int           `yaml:"max_line_bytes"`
}

type BufferConfig struct {
	Capacity int `yaml:"capacity"`
}

// LogConfig locates the durable telemetry log.
type LogConfig struct {
	Path string `yaml:"path"`
}

type PlaybackConfig struct {
	Window           int     `yaml:"window"`
	AnomalyThreshold float64 `yaml:"anomaly_threshold"`
}

// ForwardConfig enables downstream sinks. A sink is enabled by setting its
// address; with none set nothing is forwarded.
type ForwardConfig struct {
	Policy    ports.Policy    `yaml:"policy"`
	Timescale TimescaleConfig `yaml:"timescale"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Redis     RedisConfig     `yaml:"redis"`
}

type TimescaleConfig struct {
	ConnString string `yaml:"conn_string"`
	Table      string `yaml:"table"`
}

type MQTTConfig struct {
	Broker string `yaml:"broker"`
	Topic  string `yaml:"topic"`
	QoS    byte   `yaml:"qos"`
}

type RedisConfig struct {
	URL  string `yaml:"url"`
	List string `yaml:"list"`
}

type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// Enabled reports whether any forward sink is configured.
func (f ForwardConfig) Enabled() bool {
	return f.Timescale.ConnString != "" || f.MQTT.Broker != "" || f.Redis.URL != ""
}

func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(raw)
}

// Parse decodes a YAML document, applies defaults and validates the result.
func Parse(raw []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) ApplyDefaults() {
	if c.Source.Kind == "" {
		c.Source.Kind = SourceSerial
	}
	if c.Serial.BaudRate == 0 {
		c.Serial.BaudRate = 115200
	}
	if c.Serial.ReadTimeout == 0 {
		c.Serial.ReadTimeout = time.Second
	}
	if c.Serial.MaxLineBytes == 0 {
		c.Serial.MaxLineBytes = 64 << 10
	}
	if c.Buffer.Capacity == 0 {
		c.Buffer.Capacity = 200
	}
	if c.Log.Path == "" {
		c.Log.Path = "./data/sensor_data.jsonl"
	}
	if c.Playback.Window == 0 {
		c.Playback.Window = 200
	}
	if c.Playback.AnomalyThreshold == 0 {
		c.Playback.AnomalyThreshold = 0.5
	}
	if c.Forward.Policy.MaxQueueLen == 0 {
		c.Forward.Policy.MaxQueueLen = 10_000
	}
	if c.Forward.Policy.MaxBatchSize == 0 {
		c.Forward.Policy.MaxBatchSize = 500
	}
	if c.Forward.Policy.IdleSleep == 0 {
		c.Forward.Policy.IdleSleep = 5 * time.Millisecond
	}
	if c.Forward.Policy.OnQueueFull == "" {
		c.Forward.Policy.OnQueueFull = "drop"
	}
	if c.Forward.Timescale.Table == "" {
		c.Forward.Timescale.Table = "telemetry"
	}
	if c.Forward.MQTT.Topic == "" {
		c.Forward.MQTT.Topic = "edgetap/telemetry"
	}
	if c.Forward.Redis.List == "" {
		c.Forward.Redis.List = "edgetap_telemetry"
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":9100"
	}

	c.Logging.ApplyDefaults()
	if c.Source.Kind == SourceOPCUA {
		c.OPCUA.ApplyDefaults()
	}
}

func (c *Config) Validate() error {
	switch c.Source.Kind {
	case SourceSerial:
		if c.Serial.Port == "" {
			return fmt.Errorf("serial.port is required")
		}
	case SourceOPCUA:
		if err := c.OPCUA.Validate(); err != nil {
			return fmt.Errorf("opcua config: %w", err)
		}
	default:
		return fmt.Errorf("source.kind %q is not supported", c.Source.Kind)
	}
	if c.Serial.BaudRate < 0 {
		return fmt.Errorf("serial.baud_rate must be positive")
	}
	if c.Serial.ReadTimeout < 0 {
		return fmt.Errorf("serial.read_timeout must be positive")
	}
	if c.Buffer.Capacity < 0 {
		return fmt.Errorf("buffer.capacity must be positive")
	}
	if c.Playback.Window < 0 {
		return fmt.Errorf("playback.window must be positive")
	}
	switch c.Forward.Policy.OnQueueFull {
	case "drop", "block":
	default:
		return fmt.Errorf("forward.policy.on_queue_full %q must be drop or block", c.Forward.Policy.OnQueueFull)
	}
	if c.Forward.MQTT.QoS > 2 {
		return fmt.Errorf("forward.mqtt.qos must be 0, 1 or 2")
	}
	if c.HTTP.Addr == "" {
		return fmt.Errorf("http.addr is required")
	}
	return nil
}
