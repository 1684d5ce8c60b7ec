package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nandanugg/marah/module/geofence/domain"
)

func at(hour, minute int) time.Time {
	return time.Date(2026, 3, 14, hour, minute, 0, 0, time.UTC)
}

func TestIsNight_WrapsMidnight(t *testing.T) {
	w := domain.NightMode{Enabled: true, Start: "21:00", End: "06:00"}

	cases := []struct {
		name  string
		now   time.Time
		night bool
	}{
		{"late evening", at(23, 0), true},
		{"window start", at(21, 0), true},
		{"just before end", at(5, 59), true},
		{"window end", at(6, 0), false},
		{"midday", at(12, 0), false},
		{"just before start", at(20, 59), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.night, IsNight(tc.now, w, nil))
		})
	}
}

func TestIsNight_SameDayWindow(t *testing.T) {
	w := domain.NightMode{Enabled: true, Start: "13:00", End: "15:00"}
	assert.True(t, IsNight(at(14, 0), w, nil))
	assert.False(t, IsNight(at(15, 0), w, nil))
	assert.False(t, IsNight(at(12, 59), w, nil))
}

func TestIsNight_MalformedClock(t *testing.T) {
	assert.False(t, IsNight(at(23, 0), domain.NightMode{Enabled: true, Start: "9pm", End: "06:00"}, nil))
	assert.False(t, IsNight(at(23, 0), domain.NightMode{Enabled: true, Start: "21:00", End: "25:00"}, nil))
}

func TestIsNight_Location(t *testing.T) {
	loc := time.FixedZone("UTC+1", 3600)
	w := domain.NightMode{Enabled: true, Start: "21:00", End: "06:00"}
	// 20:30 UTC is 21:30 one hour east.
	assert.True(t, IsNight(at(20, 30), w, loc))
	assert.False(t, IsNight(at(20, 30), w, nil))
}

func TestParseClock(t *testing.T) {
	m, ok := ParseClock("06:30")
	require.True(t, ok)
	assert.Equal(t, 390, m)

	for _, v := range []string{"", "6", "24:00", "12:60", "ab:cd", "-1:00"} {
		_, ok := ParseClock(v)
		assert.False(t, ok, v)
	}
}

func newDayPolicy() *AlertPolicy {
	cfg := DefaultPolicyConfig()
	cfg.Location = time.UTC
	return NewAlertPolicy(cfg)
}

func TestShouldEmit_IntensityTable(t *testing.T) {
	p := newDayPolicy()
	cases := map[domain.Severity]domain.Intensity{
		domain.SeverityLow:      domain.IntensitySoft,
		domain.SeverityMedium:   domain.IntensitySoft,
		domain.SeverityHigh:     domain.IntensityLoud,
		domain.SeverityCritical: domain.IntensityAlarm,
	}
	for sev, want := range cases {
		d := p.ShouldEmit(domain.AlertCandidate{Severity: sev, Category: domain.CategoryHealth}, AlertContext{Now: at(12, 0)}, domain.NewPolicyState())
		assert.True(t, d.Emit, sev.String())
		assert.Equal(t, want, d.Intensity, sev.String())
	}
}

func TestShouldEmit_UnknownSeverityUsesDefault(t *testing.T) {
	p := newDayPolicy()
	d := p.ShouldEmit(domain.AlertCandidate{Severity: domain.SeverityUnknown, Category: domain.CategoryHealth}, AlertContext{Now: at(12, 0)}, nil)
	assert.True(t, d.Emit)
	assert.Equal(t, domain.IntensitySoft, d.Intensity)
}

func TestShouldEmit_SameScreen(t *testing.T) {
	p := newDayPolicy()
	state := domain.NewPolicyState()
	actx := AlertContext{ActivePage: "GPS", Now: at(12, 0)}

	d := p.ShouldEmit(domain.AlertCandidate{Severity: domain.SeverityHigh, Category: domain.CategoryGPS}, actx, state)
	assert.False(t, d.Emit)
	assert.Equal(t, domain.ReasonSameScreen, d.Reason)
	_, marked := state.LastEmitted(domain.CategoryGPS)
	assert.False(t, marked, "suppressed alerts must not start a cooldown")

	d = p.ShouldEmit(domain.AlertCandidate{Severity: domain.SeverityCritical, Category: domain.CategoryGPS}, actx, state)
	assert.True(t, d.Emit)
	assert.Equal(t, domain.IntensityAlarm, d.Intensity)

	// a health alert is not on the GPS page
	d = p.ShouldEmit(domain.AlertCandidate{Severity: domain.SeverityLow, Category: domain.CategoryHealth}, actx, state)
	assert.True(t, d.Emit)
}

func TestShouldEmit_SameScreenOtherPage(t *testing.T) {
	p := newDayPolicy()
	d := p.ShouldEmit(
		domain.AlertCandidate{Severity: domain.SeverityLow, Category: domain.CategoryGPS},
		AlertContext{ActivePage: "الرئيسية", Now: at(12, 0)},
		domain.NewPolicyState(),
	)
	assert.True(t, d.Emit)
}

func TestShouldEmit_SameScreenNormalizesPageNames(t *testing.T) {
	cfg := DefaultPolicyConfig()
	cfg.SameScreen[domain.CategoryHealth] = "\u0623\u062e\u0628\u0627\u0631"
	p := NewAlertPolicy(cfg)

	// alef followed by a combining hamza composes to the same page name
	d := p.ShouldEmit(
		domain.AlertCandidate{Severity: domain.SeverityLow, Category: domain.CategoryHealth},
		AlertContext{ActivePage: "\u0627\u0654\u062e\u0628\u0627\u0631 ", Now: at(12, 0)},
		nil,
	)
	assert.False(t, d.Emit)
	assert.Equal(t, domain.ReasonSameScreen, d.Reason)
}

func TestShouldEmit_NightMode(t *testing.T) {
	p := newDayPolicy()
	state := domain.NewPolicyState()

	d := p.ShouldEmit(domain.AlertCandidate{Severity: domain.SeverityHigh, Category: domain.CategoryHealth}, AlertContext{Now: at(23, 0)}, state)
	assert.False(t, d.Emit)
	assert.Equal(t, domain.ReasonNightMode, d.Reason)

	d = p.ShouldEmit(domain.AlertCandidate{Severity: domain.SeverityCritical, Category: domain.CategoryGPS}, AlertContext{Now: at(23, 0)}, state)
	assert.True(t, d.Emit)
	assert.Equal(t, domain.IntensityAlarm, d.Intensity)
}

func TestShouldEmit_NightModeDisabled(t *testing.T) {
	cfg := DefaultPolicyConfig()
	cfg.NightMode.Enabled = false
	p := NewAlertPolicy(cfg)

	d := p.ShouldEmit(domain.AlertCandidate{Severity: domain.SeverityLow, Category: domain.CategoryHealth}, AlertContext{Now: at(23, 0)}, nil)
	assert.True(t, d.Emit)
}

func TestShouldEmit_AntiSpam(t *testing.T) {
	cfg := DefaultPolicyConfig()
	cfg.AntiSpam = 5 * time.Minute
	p := NewAlertPolicy(cfg)
	state := domain.NewPolicyState()
	c := domain.AlertCandidate{Severity: domain.SeverityMedium, Category: domain.CategoryHealth}

	d := p.ShouldEmit(c, AlertContext{Now: at(10, 0)}, state)
	require.True(t, d.Emit)

	d = p.ShouldEmit(c, AlertContext{Now: at(10, 3)}, state)
	assert.False(t, d.Emit)
	assert.Equal(t, domain.ReasonCooldown, d.Reason)

	// suppression did not move the cooldown start
	d = p.ShouldEmit(c, AlertContext{Now: at(10, 5)}, state)
	assert.True(t, d.Emit)

	// other categories have their own cooldown
	d = p.ShouldEmit(domain.AlertCandidate{Severity: domain.SeverityMedium, Category: domain.CategoryGPS}, AlertContext{Now: at(10, 6)}, state)
	assert.True(t, d.Emit)
}

func TestShouldEmit_CriticalIgnoresCooldown(t *testing.T) {
	p := newDayPolicy()
	state := domain.NewPolicyState()
	c := domain.AlertCandidate{Severity: domain.SeverityCritical, Category: domain.CategoryGPS}

	for i := 0; i < 3; i++ {
		d := p.ShouldEmit(c, AlertContext{Now: at(10, i)}, state)
		assert.True(t, d.Emit)
	}
	last, ok := state.LastEmitted(domain.CategoryGPS)
	require.True(t, ok)
	assert.Equal(t, at(10, 2), last)
}

func TestShouldEmit_SilentIntensity(t *testing.T) {
	cfg := DefaultPolicyConfig()
	cfg.SeverityRules[domain.SeverityLow] = domain.IntensitySilent
	p := NewAlertPolicy(cfg)
	state := domain.NewPolicyState()

	d := p.ShouldEmit(domain.AlertCandidate{Severity: domain.SeverityLow, Category: domain.CategoryHealth}, AlertContext{Now: at(12, 0)}, state)
	assert.False(t, d.Emit)
	assert.Equal(t, domain.ReasonSilent, d.Reason)
	_, marked := state.LastEmitted(domain.CategoryHealth)
	assert.False(t, marked)
}

func TestShouldEmit_CriticalNeverSilent(t *testing.T) {
	cases := map[string]func(*PolicyConfig){
		"silent rule": func(c *PolicyConfig) {
			c.SeverityRules[domain.SeverityCritical] = domain.IntensitySilent
		},
		"empty rule": func(c *PolicyConfig) {
			c.SeverityRules[domain.SeverityCritical] = ""
		},
		"silent default": func(c *PolicyConfig) {
			delete(c.SeverityRules, domain.SeverityCritical)
			c.DefaultIntensity = domain.IntensitySilent
		},
	}
	for name, tweak := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultPolicyConfig()
			tweak(&cfg)
			state := domain.NewPolicyState()

			d := NewAlertPolicy(cfg).ShouldEmit(domain.AlertCandidate{Severity: domain.SeverityCritical, Category: domain.CategoryGPS}, AlertContext{Now: at(23, 0)}, state)
			assert.True(t, d.Emit)
			assert.Equal(t, domain.IntensityAlarm, d.Intensity)
			_, marked := state.LastEmitted(domain.CategoryGPS)
			assert.True(t, marked)
		})
	}
}

func TestShouldEmit_NilState(t *testing.T) {
	p := newDayPolicy()
	c := domain.AlertCandidate{Severity: domain.SeverityLow, Category: domain.CategoryHealth}
	assert.True(t, p.ShouldEmit(c, AlertContext{Now: at(12, 0)}, nil).Emit)
	assert.True(t, p.ShouldEmit(c, AlertContext{Now: at(12, 1)}, nil).Emit)
}

func TestSetConfig(t *testing.T) {
	p := newDayPolicy()
	cfg := p.Config()
	cfg.AntiSpam = time.Hour
	p.SetConfig(cfg)
	assert.Equal(t, time.Hour, p.Config().AntiSpam)
}

func TestShouldEmit_CooldownOneMinuteApart(t *testing.T) {
	cfg := DefaultPolicyConfig()
	cfg.AntiSpam = 5 * time.Minute
	p := NewAlertPolicy(cfg)
	state := domain.NewPolicyState()

	medium := domain.AlertCandidate{Severity: domain.SeverityMedium, Category: domain.CategoryHealth}
	require.True(t, p.ShouldEmit(medium, AlertContext{Now: at(10, 0)}, state).Emit)
	assert.False(t, p.ShouldEmit(medium, AlertContext{Now: at(10, 1)}, state).Emit)

	critical := domain.AlertCandidate{Severity: domain.SeverityCritical, Category: domain.CategoryHealth}
	first := at(11, 0)
	require.True(t, p.ShouldEmit(critical, AlertContext{Now: first}, state).Emit)
	assert.True(t, p.ShouldEmit(critical, AlertContext{Now: first.Add(time.Second)}, state).Emit)
}
