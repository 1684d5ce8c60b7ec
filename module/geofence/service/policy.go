package service

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/nandanugg/marah/module/geofence/domain"
)

const DefaultAntiSpam = 20 * time.Minute

type PolicyConfig struct {
	// SameScreen maps an alert category to the page that already shows it.
	SameScreen map[domain.Category]string
	// SameScreenBypass is the lowest severity still surfaced on its own page.
	SameScreenBypass domain.Severity
	NightMode        domain.NightMode
	AntiSpam         time.Duration
	SeverityRules    map[domain.Severity]domain.Intensity
	DefaultIntensity domain.Intensity
	// Location is the timezone the night window is read in. Nil means time.Local.
	Location *time.Location
}

func DefaultPolicyConfig() PolicyConfig {
	return PolicyConfig{
		SameScreen: map[domain.Category]string{
			domain.CategoryGPS:    "GPS",
			domain.CategoryHealth: "القطيع",
		},
		SameScreenBypass: domain.SeverityCritical,
		NightMode:        domain.NightMode{Enabled: true, Start: "21:00", End: "06:00"},
		AntiSpam:         DefaultAntiSpam,
		SeverityRules: map[domain.Severity]domain.Intensity{
			domain.SeverityLow:      domain.IntensitySoft,
			domain.SeverityMedium:   domain.IntensitySoft,
			domain.SeverityHigh:     domain.IntensityLoud,
			domain.SeverityCritical: domain.IntensityAlarm,
		},
		DefaultIntensity: domain.IntensitySoft,
	}
}

type AlertContext struct {
	ActivePage string
	Now        time.Time
}

// AlertPolicy decides whether a candidate alert becomes a notification.
// The configuration can be swapped at runtime when settings change.
type AlertPolicy struct {
	mu  sync.RWMutex
	cfg PolicyConfig
}

func NewAlertPolicy(cfg PolicyConfig) *AlertPolicy {
	return &AlertPolicy{cfg: cfg}
}

func (p *AlertPolicy) Config() PolicyConfig {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cfg
}

func (p *AlertPolicy) SetConfig(cfg PolicyConfig) {
	p.mu.Lock()
	p.cfg = cfg
	p.mu.Unlock()
}

// ShouldEmit runs the suppression rules in order: same screen, night window,
// per-category cooldown. The first rule that matches wins. Only an emitted
// decision touches state. A critical alert is never mapped to silent.
func (p *AlertPolicy) ShouldEmit(c domain.AlertCandidate, actx AlertContext, state *domain.PolicyState) domain.Decision {
	cfg := p.Config()
	critical := c.Severity == domain.SeverityCritical
	d := domain.Decision{Candidate: c}

	if page, ok := cfg.SameScreen[c.Category]; ok && actx.ActivePage != "" && samePage(page, actx.ActivePage) {
		if c.Severity < cfg.SameScreenBypass {
			d.Reason = domain.ReasonSameScreen
			return d
		}
	}

	now := actx.Now
	if now.IsZero() {
		now = time.Now()
	}

	if !critical && cfg.NightMode.Enabled && IsNight(now, cfg.NightMode, cfg.Location) {
		d.Reason = domain.ReasonNightMode
		return d
	}

	if !critical && state != nil {
		if last, ok := state.LastEmitted(c.Category); ok && now.Sub(last) < cfg.AntiSpam {
			d.Reason = domain.ReasonCooldown
			return d
		}
	}

	intensity, ok := cfg.SeverityRules[c.Severity]
	if !ok {
		intensity = cfg.DefaultIntensity
	}
	if critical && (intensity == "" || intensity == domain.IntensitySilent) {
		intensity = domain.IntensityAlarm
	}
	if intensity == "" || intensity == domain.IntensitySilent {
		d.Reason = domain.ReasonSilent
		return d
	}

	d.Emit = true
	d.Intensity = intensity
	if state != nil {
		state.MarkEmitted(c.Category, now)
	}
	return d
}

// samePage compares page names the way they render, so composed and
// decomposed Arabic spellings match.
func samePage(a, b string) bool {
	return norm.NFC.String(strings.TrimSpace(a)) == norm.NFC.String(strings.TrimSpace(b))
}

// IsNight reports whether now falls in the window, which may wrap midnight.
// A window that cannot be parsed is never night.
func IsNight(now time.Time, w domain.NightMode, loc *time.Location) bool {
	start, ok := ParseClock(w.Start)
	if !ok {
		return false
	}
	end, ok := ParseClock(w.End)
	if !ok {
		return false
	}
	if loc != nil {
		now = now.In(loc)
	}
	mins := now.Hour()*60 + now.Minute()
	if start > end {
		return mins >= start || mins < end
	}
	return mins >= start && mins < end
}

// ParseClock turns "HH:MM" into minutes after midnight.
func ParseClock(v string) (int, bool) {
	h, m, found := strings.Cut(strings.TrimSpace(v), ":")
	if !found {
		return 0, false
	}
	hour, err := strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 23 {
		return 0, false
	}
	minute, err := strconv.Atoi(m)
	if err != nil || minute < 0 || minute > 59 {
		return 0, false
	}
	return hour*60 + minute, true
}
