package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type MQTTConfig struct {
	Server   string `json:"server" yaml:"server"`
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
	ClientID string `json:"client_id" yaml:"client_id"`
	Topic    string `json:"topic" yaml:"topic"`
	// DiscoveryPrefix enables Home Assistant MQTT discovery when set
	// (usually "homeassistant"). One retained config message is published
	// per sensor field at connect time.
	DiscoveryPrefix string `json:"discovery_prefix,omitempty" yaml:"discovery_prefix,omitempty"`
}

type OutputConfig struct {
	Type       string      `json:"type" yaml:"type" validate:"oneof=console mqtt"`
	IntervalMs int         `json:"interval_ms,omitempty" yaml:"interval_ms,omitempty"`
	MQTT       *MQTTConfig `json:"mqtt,omitempty" yaml:"mqtt,omitempty"`
}

// PowerConfig configures the INA226 power monitor backend.
type PowerConfig struct {
	Enabled             bool   `json:"enabled" yaml:"enabled"`
	I2CBus              string `json:"i2c_bus" yaml:"i2c_bus"`
	Address             int    `json:"i2c_address" yaml:"i2c_address" validate:"min=0,max=127"`
	ShuntMilliohms      int    `json:"shunt_milliohms" yaml:"shunt_milliohms" validate:"min=1"`
	CurrentLSBMicroamps int    `json:"current_lsb_microamps" yaml:"current_lsb_microamps" validate:"min=1"`
}

// ClimateConfig configures the AHT20 temperature/humidity backend.
type ClimateConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	I2CBus  string `json:"i2c_bus" yaml:"i2c_bus"`
	Address int    `json:"i2c_address" yaml:"i2c_address" validate:"min=0,max=127"`
}

type PersistenceConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Dir     string `json:"dir" yaml:"dir"`
}

type Config struct {
	SensorType         string            `json:"sensor_type" yaml:"sensor_type" validate:"oneof=real fake"`
	SampleIntervalMs   int               `json:"sample_interval_ms" yaml:"sample_interval_ms" validate:"min=1"`
	SnapshotIntervalMs int               `json:"snapshot_interval_ms" yaml:"snapshot_interval_ms" validate:"min=1"`
	PersistIntervalMs  int               `json:"persist_interval_ms" yaml:"persist_interval_ms" validate:"min=1"`
	ErrorLogThrottle   int               `json:"error_log_throttle" yaml:"error_log_throttle" validate:"min=1"`
	Power              PowerConfig       `json:"power" yaml:"power"`
	Climate            ClimateConfig     `json:"climate" yaml:"climate"`
	Persistence        PersistenceConfig `json:"persistence" yaml:"persistence"`
	Outputs            []OutputConfig    `json:"outputs" yaml:"outputs" validate:"dive"`
}

func DefaultConfig() Config {
	return Config{
		SensorType:         "real",
		SampleIntervalMs:   1000,
		SnapshotIntervalMs: 5000,
		PersistIntervalMs:  10000,
		ErrorLogThrottle:   10,
		Power: PowerConfig{
			Enabled:             true,
			I2CBus:              "1",
			Address:             0x40,
			ShuntMilliohms:      100,
			CurrentLSBMicroamps: 100,
		},
		Climate: ClimateConfig{
			Enabled: true,
			I2CBus:  "1",
			Address: 0x38,
		},
		Persistence: PersistenceConfig{Enabled: true, Dir: "data"},
		Outputs:     []OutputConfig{{Type: "console", IntervalMs: 5000}},
	}
}

// Load reads a config file into cfg. The format is chosen by extension:
// .yaml/.yml is parsed as YAML, anything else as JSON.
func Load(path string, cfg *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return fmt.Errorf("parse yaml config: %w", err)
		}
	default:
		if err := json.Unmarshal(b, cfg); err != nil {
			return fmt.Errorf("parse json config: %w", err)
		}
	}
	return nil
}

// Validate checks field constraints declared on the config structs.
func Validate(cfg *Config) error {
	return validator.New().Struct(cfg)
}

// LoadFromFlags loads configuration from an optional config file and flags.
// Flags override values present in the file.
func LoadFromFlags() (Config, error) {
	cfgPath := flag.String("config", "", "Path to JSON or YAML config file")
	flagSensorType := flag.String("sensor-type", "", "sensor type: real|fake")
	flagSampleMs := flag.Int("sample-interval-ms", -1, "sample interval in ms")
	flagSnapshotMs := flag.Int("snapshot-interval-ms", -1, "snapshot log interval in ms")
	flagPersistMs := flag.Int("persist-interval-ms", -1, "persistence interval in ms")
	flagPersistDir := flag.String("persist-dir", "", "directory for session CSV files")
	flagNoPersist := flag.Bool("no-persist", false, "disable CSV persistence")
	flagI2CBus := flag.String("i2c-bus", "", "I2C bus for both sensors (e.g. '1' -> /dev/i2c-1)")
	flagPowerAddr := flag.String("power-address", "", "INA226 I2C address (decimal or 0x hex)")
	flagClimateAddr := flag.String("climate-address", "", "AHT20 I2C address (decimal or 0x hex)")
	flagOutputs := flag.String("outputs", "", "Comma-separated outputs (console,mqtt)")
	flagMQTTServer := flag.String("mqtt-server", "", "MQTT server (tcp://host:port)")
	flagMQTTUser := flag.String("mqtt-user", "", "MQTT username")
	flagMQTTPass := flag.String("mqtt-pass", "", "MQTT password")
	flagClientID := flag.String("mqtt-client-id", "", "MQTT client id")
	flagTopic := flag.String("mqtt-topic", "", "MQTT topic base")

	flag.Parse()

	cfg := DefaultConfig()

	if *cfgPath != "" {
		if err := Load(*cfgPath, &cfg); err != nil {
			return cfg, err
		}
	}

	if *flagSensorType != "" {
		cfg.SensorType = *flagSensorType
	}
	if *flagSampleMs != -1 {
		cfg.SampleIntervalMs = *flagSampleMs
	}
	if *flagSnapshotMs != -1 {
		cfg.SnapshotIntervalMs = *flagSnapshotMs
	}
	if *flagPersistMs != -1 {
		cfg.PersistIntervalMs = *flagPersistMs
	}
	if *flagPersistDir != "" {
		cfg.Persistence.Dir = *flagPersistDir
	}
	if *flagNoPersist {
		cfg.Persistence.Enabled = false
	}
	if *flagI2CBus != "" {
		cfg.Power.I2CBus = *flagI2CBus
		cfg.Climate.I2CBus = *flagI2CBus
	}
	if *flagPowerAddr != "" {
		v, err := parseIntOrHex(*flagPowerAddr)
		if err != nil {
			return cfg, fmt.Errorf("power-address: %w", err)
		}
		cfg.Power.Address = v
	}
	if *flagClimateAddr != "" {
		v, err := parseIntOrHex(*flagClimateAddr)
		if err != nil {
			return cfg, fmt.Errorf("climate-address: %w", err)
		}
		cfg.Climate.Address = v
	}
	if *flagOutputs != "" {
		parts := parseCSV(*flagOutputs)
		outs := make([]OutputConfig, 0, len(parts))
		for _, p := range parts {
			outs = append(outs, OutputConfig{Type: p})
		}
		cfg.Outputs = outs
	}
	if *flagMQTTServer != "" || *flagMQTTUser != "" || *flagMQTTPass != "" || *flagClientID != "" || *flagTopic != "" {
		applyMQTTFlags(&cfg, *flagMQTTServer, *flagMQTTUser, *flagMQTTPass, *flagClientID, *flagTopic)
	}

	// ensure outputs have an interval default
	for i := range cfg.Outputs {
		if cfg.Outputs[i].IntervalMs == 0 {
			cfg.Outputs[i].IntervalMs = cfg.SnapshotIntervalMs
		}
	}

	if err := Validate(&cfg); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// applyMQTTFlags applies MQTT flags to every mqtt output, creating one if
// none is configured.
func applyMQTTFlags(cfg *Config, server, user, pass, clientID, topic string) {
	applied := false
	for i := range cfg.Outputs {
		if strings.ToLower(cfg.Outputs[i].Type) != "mqtt" {
			continue
		}
		if cfg.Outputs[i].MQTT == nil {
			cfg.Outputs[i].MQTT = &MQTTConfig{}
		}
		setMQTTFields(cfg.Outputs[i].MQTT, server, user, pass, clientID, topic)
		applied = true
	}
	if !applied {
		out := OutputConfig{Type: "mqtt", IntervalMs: cfg.SnapshotIntervalMs, MQTT: &MQTTConfig{}}
		setMQTTFields(out.MQTT, server, user, pass, clientID, topic)
		cfg.Outputs = append(cfg.Outputs, out)
	}
}

func setMQTTFields(m *MQTTConfig, server, user, pass, clientID, topic string) {
	if server != "" {
		m.Server = server
	}
	if user != "" {
		m.Username = user
	}
	if pass != "" {
		m.Password = pass
	}
	if clientID != "" {
		m.ClientID = clientID
	}
	if topic != "" {
		m.Topic = topic
	}
}

func parseIntOrHex(s string) (int, error) {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		v, err := strconv.ParseInt(s[2:], 16, 0)
		return int(v), err
	}
	v, err := strconv.Atoi(s)
	return v, err
}

func parseCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
