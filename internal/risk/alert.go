package risk

import "time"

// Default alerting parameters.
const (
	DefaultAlertThreshold = 0.7
	DefaultAlertCooldown  = 60 * time.Second
)

// alertMachine implements the two-state crossing detector. Only an upward
// crossing fires: once above, the score must first drop below the threshold
// before another crossing can fire, and a crossing inside the cooldown window
// is consumed without firing.
type alertMachine struct {
	threshold float64
	cooldown  time.Duration
	enabled   bool
	above     bool
	lastFired time.Time
	hasFired  bool
}

func newAlertMachine() alertMachine {
	return alertMachine{
		threshold: DefaultAlertThreshold,
		cooldown:  DefaultAlertCooldown,
		enabled:   true,
	}
}

// observe feeds one score sample and reports whether an alert fires.
func (m *alertMachine) observe(score float64, now time.Time) bool {
	if score < m.threshold {
		m.above = false
		return false
	}

	if m.above {
		return false
	}
	m.above = true

	if !m.enabled {
		return false
	}
	if m.hasFired && now.Sub(m.lastFired) < m.cooldown {
		return false
	}

	m.lastFired = now
	m.hasFired = true
	return true
}
