package config

// MetadataConfig holds the profile and history store configuration
type MetadataConfig struct {
	Type   string               `mapstructure:"type"   yaml:"type"`
	SQLite MetadataSQLiteConfig `mapstructure:"sqlite" yaml:"sqlite"`
}

type MetadataSQLiteConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}
