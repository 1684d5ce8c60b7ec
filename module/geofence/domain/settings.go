package domain

type NightMode struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Start   string `json:"start" yaml:"start"`
	End     string `json:"end" yaml:"end"`
}

// AppSettings is the subset of the app's settings blob the monitor honours.
type AppSettings struct {
	SoundEffects    bool      `json:"soundEffects"`
	NightMode       NightMode `json:"nightMode"`
	AntiSpamMinutes int       `json:"antiSpamMinutes"`
}
