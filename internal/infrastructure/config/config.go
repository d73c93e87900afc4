package config

type Config struct {
	// Global configuration
	App       AppConfig       `mapstructure:"app"`
	Agent     AgentConfig     `mapstructure:"agent"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`

	// Domain configuration
	Privacy     PrivacyConfig     `mapstructure:"privacy"`
	Performance PerformanceConfig `mapstructure:"performance"`
	Replay      ReplayConfig      `mapstructure:"replay"`
	Resilience  ResilienceConfig  `mapstructure:"resilience"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Log         LogConfig         `mapstructure:"log"`
}
