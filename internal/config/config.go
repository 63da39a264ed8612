package config

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/jeongseonghan/iqmodem/internal/modem"
)

// Config represents the iqmodem configuration
type Config struct {
	Modem struct {
		Modulation string `yaml:"modulation"`
		Workers    int    `yaml:"workers"`
	} `yaml:"modem"`

	Channel struct {
		// SNRDB is Es/N0 in dB. Noiseless disables the noise model.
		SNRDB     float64 `yaml:"snr_db"`
		Seed      int64   `yaml:"seed"`
		Noiseless bool    `yaml:"noiseless"`
	} `yaml:"channel"`

	Server struct {
		BindAddress string `yaml:"bind_address"`
		Port        int    `yaml:"port"`
	} `yaml:"server"`

	Storage struct {
		DatabasePath string `yaml:"database_path"`
		MaxTrials    int    `yaml:"max_trials"`
	} `yaml:"storage"`

	Logging struct {
		Level      string `yaml:"level"`
		File       string `yaml:"file"`
		Console    bool   `yaml:"console"`
		Structured bool   `yaml:"structured"`
		MaxSize    int    `yaml:"max_size"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAge     int    `yaml:"max_age"`
		Compress   bool   `yaml:"compress"`
	} `yaml:"logging"`
}

// Default returns a configuration with every default applied
func Default() *Config {
	var config Config
	config.applyDefaults()
	return &config
}

// LoadConfig loads configuration from a YAML file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyDefaults()
	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Modem.Modulation == "" {
		c.Modem.Modulation = "16-QAM"
	}
	if c.Modem.Workers == 0 {
		c.Modem.Workers = 1
	}
	if c.Channel.SNRDB == 0 && !c.Channel.Noiseless {
		c.Channel.SNRDB = 20
	}
	if c.Channel.Seed == 0 {
		c.Channel.Seed = 42
	}
	if c.Server.BindAddress == "" {
		c.Server.BindAddress = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Storage.DatabasePath == "" {
		c.Storage.DatabasePath = "./iqmodem.db"
	}
	if c.Storage.MaxTrials == 0 {
		c.Storage.MaxTrials = 10000
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.MaxSize == 0 {
		c.Logging.MaxSize = 10
	}
	if c.Logging.MaxBackups == 0 {
		c.Logging.MaxBackups = 3
	}
	if c.Logging.MaxAge == 0 {
		c.Logging.MaxAge = 28
	}
}

// Modulation parses the configured modulation name
func (c *Config) Modulation() (modem.Modulation, error) {
	return modem.ParseModulation(c.Modem.Modulation)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	mod, err := c.Modulation()
	if err != nil {
		return fmt.Errorf("modem modulation: %w", err)
	}
	if _, err := mod.Constellation(); err != nil {
		return fmt.Errorf("modem modulation %s: %w", mod, err)
	}
	if c.Modem.Workers < 1 {
		return fmt.Errorf("modem workers must be at least 1, got %d", c.Modem.Workers)
	}
	if math.IsNaN(c.Channel.SNRDB) || math.IsInf(c.Channel.SNRDB, 0) {
		return fmt.Errorf("channel snr_db must be finite")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}
	if c.Storage.MaxTrials < 1 {
		return fmt.Errorf("storage max_trials must be positive, got %d", c.Storage.MaxTrials)
	}
	return nil
}
