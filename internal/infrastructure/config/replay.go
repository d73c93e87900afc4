package config

type ReplayConfig struct {
	Enabled       bool `mapstructure:"enabled" json:"enabled"`
	MaskAllInputs bool `mapstructure:"mask_all_inputs" json:"mask_all_inputs"`
	MaskAllText   bool `mapstructure:"mask_all_text" json:"mask_all_text"`
}
