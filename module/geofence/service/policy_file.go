package service

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nandanugg/marah/module/geofence/domain"
)

type policyFile struct {
	AntiSpamMinutes  *int              `yaml:"anti_spam_minutes"`
	SameScreenBypass string            `yaml:"same_screen_bypass"`
	SameScreen       map[string]string `yaml:"same_screen"`
	NightMode        *domain.NightMode `yaml:"night_mode"`
	SeverityRules    map[string]string `yaml:"severity_rules"`
	Default          string            `yaml:"default"`
	Timezone         string            `yaml:"timezone"`
}

// LoadPolicyFile overlays the YAML policy at path on base.
func LoadPolicyFile(path string, base PolicyConfig) (PolicyConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("read policy file: %w", err)
	}
	return ParsePolicy(data, base)
}

func ParsePolicy(data []byte, base PolicyConfig) (PolicyConfig, error) {
	var f policyFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return base, fmt.Errorf("parse policy: %w", err)
	}

	cfg := base
	if f.AntiSpamMinutes != nil {
		if *f.AntiSpamMinutes < 0 {
			return base, fmt.Errorf("anti_spam_minutes: must not be negative")
		}
		cfg.AntiSpam = time.Duration(*f.AntiSpamMinutes) * time.Minute
	}
	if f.SameScreenBypass != "" {
		sev := domain.ParseSeverity(f.SameScreenBypass)
		if sev == domain.SeverityUnknown {
			return base, fmt.Errorf("same_screen_bypass: unknown severity %q", f.SameScreenBypass)
		}
		cfg.SameScreenBypass = sev
	}
	if f.SameScreen != nil {
		cfg.SameScreen = make(map[domain.Category]string, len(f.SameScreen))
		for cat, page := range f.SameScreen {
			cfg.SameScreen[domain.Category(cat)] = page
		}
	}
	if f.NightMode != nil {
		cfg.NightMode = *f.NightMode
	}
	if f.SeverityRules != nil {
		cfg.SeverityRules = make(map[domain.Severity]domain.Intensity, len(f.SeverityRules))
		for name, intensity := range f.SeverityRules {
			sev := domain.ParseSeverity(name)
			if sev == domain.SeverityUnknown {
				return base, fmt.Errorf("severity_rules: unknown severity %q", name)
			}
			cfg.SeverityRules[sev] = domain.Intensity(intensity)
		}
	}
	if f.Default != "" {
		cfg.DefaultIntensity = domain.Intensity(f.Default)
	}
	if f.Timezone != "" {
		loc, err := time.LoadLocation(f.Timezone)
		if err != nil {
			return base, fmt.Errorf("timezone: %w", err)
		}
		cfg.Location = loc
	}
	if in := criticalIntensity(cfg); in == "" || in == domain.IntensitySilent {
		return base, fmt.Errorf("severity_rules: critical alerts must not be silent")
	}
	return cfg, nil
}

func criticalIntensity(cfg PolicyConfig) domain.Intensity {
	if in, ok := cfg.SeverityRules[domain.SeverityCritical]; ok {
		return in
	}
	return cfg.DefaultIntensity
}
