package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v2"
)

const (
	defaultLogLevel       = "INFO"
	defaultLogFormat      = "text"
	defaultLogOutput      = "stderr"
	defaultReconnectDelay = 10 * time.Second
)

type Config struct {
	Global GlobalConfig `yaml:"global" json:"global"`
	Lanes  []LaneConfig `yaml:"lanes" json:"lanes"`

	// cache
	ConfigPath string `yaml:"-" json:"-"`
}

type GlobalConfig struct {
	LogLevel        string        `yaml:"log_level" json:"log_level"`
	LogFormat       string        `yaml:"log_format" json:"log_format"`
	LogOutput       string        `yaml:"log_output" json:"log_output"`
	EnableTelemetry bool          `yaml:"enable_telemetry" json:"enable_telemetry"`
	ReconnectDelay  time.Duration `yaml:"reconnect_delay" json:"reconnect_delay"`
}

func DefaultConfig(configPath string) Config {
	return Config{
		Global:     newDefaultGlobalConfig(),
		Lanes:      []LaneConfig{},
		ConfigPath: configPath,
	}
}

// newDefaultGlobalConfig returns a global config with defaults set
func newDefaultGlobalConfig() GlobalConfig {
	return GlobalConfig{
		LogLevel:       defaultLogLevel,
		LogFormat:      defaultLogFormat,
		LogOutput:      defaultLogOutput,
		ReconnectDelay: defaultReconnectDelay,
	}
}

// LoadConfig reads the config file at configPath. A missing file yields the default config.
func LoadConfig(configPath string) (*Config, error) {
	bz, err := os.ReadFile(configPath)
	if os.IsNotExist(err) {
		c := DefaultConfig(configPath)
		return &c, nil
	} else if err != nil {
		return nil, errors.Wrapf(err, "failed to read config file: %s", configPath)
	}
	c, err := UnmarshalYAML(bz)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to unmarshal config file: %s", configPath)
	}
	c.ConfigPath = configPath
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// UnmarshalYAML decodes a config and fills unset global fields with their defaults
func UnmarshalYAML(bz []byte) (*Config, error) {
	c := Config{Global: newDefaultGlobalConfig()}
	if err := yaml.UnmarshalStrict(bz, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func MarshalYAML(c Config) ([]byte, error) {
	return yaml.Marshal(c)
}

// Save writes the config to ConfigPath, creating its directory if needed
func (c *Config) Save() error {
	if c.ConfigPath == "" {
		return errors.New("config path is not set")
	}
	bz, err := MarshalYAML(*c)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(c.ConfigPath), os.ModePerm); err != nil {
		return err
	}
	return os.WriteFile(c.ConfigPath, bz, 0600)
}

func (c *Config) Validate() error {
	if c.Global.ReconnectDelay < 0 {
		return errors.New("global.reconnect_delay must not be negative")
	}
	names := make(map[string]struct{}, len(c.Lanes))
	for _, lane := range c.Lanes {
		if _, ok := names[lane.Name]; ok {
			return errors.Newf("lane '%s' is configured more than once", lane.Name)
		}
		names[lane.Name] = struct{}{}
		if err := lane.Validate(); err != nil {
			return errors.Wrapf(err, "invalid lane '%s'", lane.Name)
		}
	}
	return nil
}

// GetLane returns the lane with a given name
func (c *Config) GetLane(name string) (*LaneConfig, error) {
	for i := range c.Lanes {
		if c.Lanes[i].Name == name {
			return &c.Lanes[i], nil
		}
	}
	return nil, errors.Newf("lane '%s' not found", name)
}

// AddLane adds an additional lane to the config
func (c *Config) AddLane(lane LaneConfig) error {
	if _, err := c.GetLane(lane.Name); err == nil {
		return errors.Newf("lane with name %s already exists in config", lane.Name)
	}
	if err := lane.Validate(); err != nil {
		return err
	}
	c.Lanes = append(c.Lanes, lane)
	return nil
}
