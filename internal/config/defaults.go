package config

import "github.com/spf13/viper"

func GetDefault() BaseConfig {
	return BaseConfig{
		ShutdownTimeout: "10s",

		Log: LogConfig{
			Level:      "INFO",
			TimeFormat: "2006-01-02 15:04:05",
			File:       "",
			NoColor:    false,
			JSON:       false,
			NoTerminal: false,
			Rotation: LogRotationConfig{
				MaxSize:    128,
				MaxBackups: 5,
				MaxAge:     16,
				Compress:   false,
			},
		},
		Metadata: MetadataConfig{
			Type: "sqlite",
			SQLite: MetadataSQLiteConfig{
				Path: "goremote.db",
			},
		},
		Transfer: TransferConfig{
			RetryCount:          3,
			UploadDirectly:      false,
			PreservePermissions: false,
			MemoryThreshold:     500 * 1024,
			TempDir:             "",
			ShowHidden:          false,
			Ignores:             []string{},
		},
		Metrics: MetricsConfig{
			Address: "",
		},
		Agent: AgentConfig{
			Interval: "5m",
			Paths:    []string{},
			Watch:    false,
			Debounce: "2s",
		},
	}
}

func setDefaults() {
	defaults := GetDefault()

	viper.SetDefault("shutdown_timeout", defaults.ShutdownTimeout)
	viper.SetDefault("language", defaults.Language)

	viper.SetDefault("log.level", defaults.Log.Level)
	viper.SetDefault("log.time_format", defaults.Log.TimeFormat)
	viper.SetDefault("log.file", defaults.Log.File)
	viper.SetDefault("log.no_color", defaults.Log.NoColor)
	viper.SetDefault("log.json", defaults.Log.JSON)
	viper.SetDefault("log.no_terminal", defaults.Log.NoTerminal)
	viper.SetDefault("log.rotation.max_size", defaults.Log.Rotation.MaxSize)
	viper.SetDefault("log.rotation.max_backups", defaults.Log.Rotation.MaxBackups)
	viper.SetDefault("log.rotation.max_age", defaults.Log.Rotation.MaxAge)
	viper.SetDefault("log.rotation.compress", defaults.Log.Rotation.Compress)

	viper.SetDefault("metadata.type", defaults.Metadata.Type)
	viper.SetDefault("metadata.sqlite.path", defaults.Metadata.SQLite.Path)

	viper.SetDefault("transfer.retry_count", defaults.Transfer.RetryCount)
	viper.SetDefault("transfer.upload_directly", defaults.Transfer.UploadDirectly)
	viper.SetDefault("transfer.preserve_permissions", defaults.Transfer.PreservePermissions)
	viper.SetDefault("transfer.memory_threshold", defaults.Transfer.MemoryThreshold)
	viper.SetDefault("transfer.temp_dir", defaults.Transfer.TempDir)
	viper.SetDefault("transfer.show_hidden", defaults.Transfer.ShowHidden)
	viper.SetDefault("transfer.ignores", defaults.Transfer.Ignores)

	viper.SetDefault("metrics.address", defaults.Metrics.Address)

	viper.SetDefault("agent.interval", defaults.Agent.Interval)
	viper.SetDefault("agent.paths", defaults.Agent.Paths)
	viper.SetDefault("agent.watch", defaults.Agent.Watch)
	viper.SetDefault("agent.debounce", defaults.Agent.Debounce)
}
