package profiles

// MotorProfile describes one actuator model: known-good travel times and
// the feature set the motor supports. Profiles are shipped as YAML files
// and give freshly paired covers sane defaults before calibration.
type MotorProfile struct {
	Name     string   `yaml:"name" json:"name"`
	Vendor   string   `yaml:"vendor,omitempty" json:"vendor,omitempty"`
	Model    string   `yaml:"model,omitempty" json:"model,omitempty"`
	Travel   Travel   `yaml:"travel,omitempty" json:"travel,omitempty"`
	Features []string `yaml:"features,omitempty" json:"features,omitempty"`
	Notes    string   `yaml:"notes,omitempty" json:"notes,omitempty"`
}

type Travel struct {
	OpenTimeSeconds  float64 `yaml:"open_time_seconds,omitempty" json:"open_time_seconds,omitempty"`
	CloseTimeSeconds float64 `yaml:"close_time_seconds,omitempty" json:"close_time_seconds,omitempty"`
}
