package config

type StorageConfig struct {
	// Driver selects the offline queue backing store: "memory" or "postgres".
	Driver string `mapstructure:"driver" validate:"omitempty,oneof=memory postgres"`

	// MaxBytes caps the total offline store size. Oldest items in the lowest
	// non-empty priority band are evicted first once the cap is exceeded.
	MaxBytes int64 `mapstructure:"max_bytes"`

	// Dir holds the local key-value state (device id, last-sync timestamp).
	Dir string `mapstructure:"dir"`

	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	Pool     struct {
		Idle     int `mapstructure:"idle"`
		Max      int `mapstructure:"max"`
		Lifetime int `mapstructure:"lifetime"`
	} `mapstructure:"pool"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}
