package config

// AgentConfig is the init record of the monitoring agent. ApiKey is the only
// required field; everything else carries a working default.
type AgentConfig struct {
	ApiKey            string   `mapstructure:"api_key" json:"api_key" validate:"required"`
	ApiUrl            string   `mapstructure:"api_url" json:"api_url" validate:"omitempty,url"`
	Environment       string   `mapstructure:"environment" json:"environment" validate:"omitempty,oneof=development staging production"`
	Debug             bool     `mapstructure:"debug" json:"debug"`
	SampleRate        float64  `mapstructure:"sample_rate" json:"sample_rate" validate:"gte=0,lte=1"`
	SessionSampleRate float64  `mapstructure:"session_sample_rate" json:"session_sample_rate" validate:"gte=0,lte=1"`
	MaxBreadcrumbs    int      `mapstructure:"max_breadcrumbs" json:"max_breadcrumbs" validate:"gte=0"`
	ExcludeUrls       []string `mapstructure:"exclude_urls" json:"exclude_urls"`
}
