package config

// TransferConfig tunes how the synchronization engine moves files.
type TransferConfig struct {
	RetryCount          int      `mapstructure:"retry_count"          yaml:"retry_count"`
	UploadDirectly      bool     `mapstructure:"upload_directly"      yaml:"upload_directly"`
	PreservePermissions bool     `mapstructure:"preserve_permissions" yaml:"preserve_permissions"`
	MemoryThreshold     int64    `mapstructure:"memory_threshold"     yaml:"memory_threshold"`
	TempDir             string   `mapstructure:"temp_dir"             yaml:"temp_dir"`
	ShowHidden          bool     `mapstructure:"show_hidden"          yaml:"show_hidden"`
	Ignores             []string `mapstructure:"ignores"              yaml:"ignores"`
}

type MetricsConfig struct {
	Address string `mapstructure:"address" yaml:"address"`
}

// AgentConfig drives the upload loop of `goremote agent`. With Watch set,
// local changes are uploaded once they settled for Debounce, in addition to
// the periodic run.
type AgentConfig struct {
	Interval string   `mapstructure:"interval" yaml:"interval"`
	Paths    []string `mapstructure:"paths"    yaml:"paths"`
	Watch    bool     `mapstructure:"watch"    yaml:"watch"`
	Debounce string   `mapstructure:"debounce" yaml:"debounce"`
}
