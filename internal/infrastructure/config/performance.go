package config

type PerformanceConfig struct {
	CaptureWebVitals        bool `mapstructure:"capture_web_vitals" json:"capture_web_vitals"`
	CaptureResourceTiming   bool `mapstructure:"capture_resource_timing" json:"capture_resource_timing"`
	CaptureNavigationTiming bool `mapstructure:"capture_navigation_timing" json:"capture_navigation_timing"`
}
