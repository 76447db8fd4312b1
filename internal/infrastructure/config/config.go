package config

import (
	"fmt"
	"net/netip"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for focuserd.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Focuser   FocuserConfig   `yaml:"focuser"`
	MCU       MCUConfig       `yaml:"mcu"`
	Thermal   ThermalConfig   `yaml:"thermal"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// FocuserConfig contains the command and coordination settings of the daemon.
type FocuserConfig struct {
	// ID names this focuser in MQTT topics and telemetry tags.
	ID string `yaml:"id"`

	// ControlMachines lists the addresses (or CIDR prefixes) allowed to
	// issue commands. Status reads are not restricted.
	ControlMachines []string `yaml:"control_machines"`

	// LoopDelay is the status publication period.
	LoopDelay time.Duration `yaml:"loop_delay"`

	// PollInterval is the period of the homing wait loops.
	PollInterval time.Duration `yaml:"poll_interval"`

	// MoveTimeout bounds the return-to-position phase of homing.
	MoveTimeout time.Duration `yaml:"move_timeout"`

	// HomeTimeout bounds the endstop search phase of homing.
	HomeTimeout time.Duration `yaml:"home_timeout"`

	// PositionFile is the JSON file holding the last set positions.
	PositionFile string `yaml:"position_file"`

	// LockFile guards against two daemons driving the same hardware.
	LockFile string `yaml:"lock_file"`
}

// MCUConfig describes the microcontroller link and the hardware behind it.
type MCUConfig struct {
	// Backend selects the motion/sensor implementation. Only "sim" ships with the daemon.
	Backend  string                   `yaml:"backend"`
	Steppers map[string]StepperConfig `yaml:"steppers"`
	Probes   map[string]ProbeConfig   `yaml:"probes"`
	Fan      *OutputConfig            `yaml:"fan,omitempty"`
	Light    *OutputConfig            `yaml:"light,omitempty"`
}

// StepperConfig contains the settings for one stepper channel.
type StepperConfig struct {
	Label string `yaml:"label"`

	// EndstopPin is optional. Channels without an endstop are never homed
	// and have their position restored from the position file instead.
	EndstopPin string `yaml:"endstop_pin,omitempty"`

	PositionMin float64 `yaml:"position_min"`
	PositionMax float64 `yaml:"position_max"`
	Speed       float64 `yaml:"speed"`

	// Acceleration in units/s². Zero moves at constant speed.
	Acceleration  float64 `yaml:"acceleration"`
	HomingBackoff float64 `yaml:"homing_backoff"`
}

// HasEndstop reports whether the stepper has a physical limit switch.
func (s StepperConfig) HasEndstop() bool {
	return s.EndstopPin != ""
}

// ProbeConfig contains the settings for one temperature probe.
type ProbeConfig struct {
	Label string `yaml:"label"`
}

// OutputConfig describes a digital output (fan, light).
type OutputConfig struct {
	Pin string `yaml:"pin"`
}

// ThermalConfig contains the cooling fan control loop settings.
type ThermalConfig struct {
	// IdleTimeout keeps the fan running this long after the last channel activity.
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// Tick is the poll period of the fan control loop.
	Tick time.Duration `yaml:"tick"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`

	// PanelDir serves the status panel from disk instead of the embedded copy.
	PanelDir string `yaml:"panel_dir"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
//
// Write must exceed home_timeout + move_timeout or homing responses are cut off.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval"`
	PongTimeout    int `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: FOCUSERD_SECTION_KEY
// For example: FOCUSERD_DATABASE_PATH, FOCUSERD_MQTT_HOST
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Focuser: FocuserConfig{
			ID:              "focuser",
			ControlMachines: []string{"127.0.0.1", "::1"},
			LoopDelay:       time.Second,
			PollInterval:    100 * time.Millisecond,
			MoveTimeout:     60 * time.Second,
			HomeTimeout:     120 * time.Second,
			PositionFile:    "./data/positions.json",
			LockFile:        "./data/focuserd.lock",
		},
		MCU: MCUConfig{
			Backend: "sim",
		},
		Thermal: ThermalConfig{
			IdleTimeout: 5 * time.Minute,
			Tick:        time.Second,
		},
		Database: DatabaseConfig{
			Path:        "./data/focuserd.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "focuserd",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 9031,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 300,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: FOCUSERD_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FOCUSERD_POSITION_FILE"); v != "" {
		cfg.Focuser.PositionFile = v
	}

	if v := os.Getenv("FOCUSERD_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	if v := os.Getenv("FOCUSERD_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("FOCUSERD_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("FOCUSERD_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	if v := os.Getenv("FOCUSERD_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("FOCUSERD_API_PANEL_DIR"); v != "" {
		cfg.API.PanelDir = v
	}

	if v := os.Getenv("FOCUSERD_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of every validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Focuser.ID == "" {
		errs = append(errs, "focuser.id is required")
	}
	if _, err := ParseControlMachines(c.Focuser.ControlMachines); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Focuser.PollInterval <= 0 {
		errs = append(errs, "focuser.poll_interval must be positive")
	}
	if c.Focuser.MoveTimeout <= 0 {
		errs = append(errs, "focuser.move_timeout must be positive")
	}
	if c.Focuser.HomeTimeout <= 0 {
		errs = append(errs, "focuser.home_timeout must be positive")
	}
	if c.Focuser.LoopDelay <= 0 {
		errs = append(errs, "focuser.loop_delay must be positive")
	}
	if c.Focuser.PositionFile == "" {
		errs = append(errs, "focuser.position_file is required")
	}

	errs = append(errs, c.MCU.validate()...)

	if c.Thermal.IdleTimeout < 0 {
		errs = append(errs, "thermal.idle_timeout must not be negative")
	}
	if c.Thermal.Tick <= 0 {
		errs = append(errs, "thermal.tick must be positive")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// validate checks the MCU section and returns one message per problem.
func (m MCUConfig) validate() []string {
	var errs []string

	if m.Backend != "sim" {
		errs = append(errs, fmt.Sprintf("mcu.backend %q is not supported", m.Backend))
	}
	if len(m.Steppers) == 0 {
		errs = append(errs, "mcu.steppers must define at least one stepper")
	}

	// Sorted so the error message is stable.
	for _, name := range m.StepperNames() {
		s := m.Steppers[name]
		if s.PositionMax <= s.PositionMin {
			errs = append(errs, fmt.Sprintf("mcu.steppers.%s.position_max must exceed position_min", name))
		}
		if s.Speed <= 0 {
			errs = append(errs, fmt.Sprintf("mcu.steppers.%s.speed must be positive", name))
		}
		if s.Acceleration < 0 {
			errs = append(errs, fmt.Sprintf("mcu.steppers.%s.acceleration must not be negative", name))
		}
		if s.HasEndstop() && s.HomingBackoff <= 0 {
			errs = append(errs, fmt.Sprintf("mcu.steppers.%s.homing_backoff must be positive when endstop_pin is set", name))
		}
	}
	if m.Fan != nil && m.Fan.Pin == "" {
		errs = append(errs, "mcu.fan.pin is required when the fan is configured")
	}
	if m.Light != nil && m.Light.Pin == "" {
		errs = append(errs, "mcu.light.pin is required when the light is configured")
	}

	return errs
}

// StepperNames returns the configured stepper keys in sorted order.
func (m MCUConfig) StepperNames() []string {
	names := make([]string, 0, len(m.Steppers))
	for name := range m.Steppers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ParseControlMachines converts the control_machines entries into prefixes.
// Plain addresses become single-address prefixes.
func ParseControlMachines(machines []string) ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(machines))
	for _, m := range machines {
		if strings.Contains(m, "/") {
			p, err := netip.ParsePrefix(m)
			if err != nil {
				return nil, fmt.Errorf("focuser.control_machines: invalid prefix %q", m)
			}
			prefixes = append(prefixes, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(m)
		if err != nil {
			return nil, fmt.Errorf("focuser.control_machines: invalid address %q", m)
		}
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
