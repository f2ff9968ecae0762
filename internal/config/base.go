package config

import (
	"fmt"

	"github.com/spf13/viper"
)

type BaseConfig struct {
	ShutdownTimeout string `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	// Language is a BCP 47 tag for profile ordering and labels.
	Language string `mapstructure:"language" yaml:"language"`

	Log      LogConfig      `mapstructure:"log"      yaml:"log"`
	Metadata MetadataConfig `mapstructure:"metadata" yaml:"metadata"`
	Transfer TransferConfig `mapstructure:"transfer" yaml:"transfer"`
	Metrics  MetricsConfig  `mapstructure:"metrics"  yaml:"metrics"`
	Agent    AgentConfig    `mapstructure:"agent"    yaml:"agent"`
}

func LoadConfig() (*BaseConfig, error) {
	cfg := &BaseConfig{}

	setDefaults()

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	return cfg, nil
}
