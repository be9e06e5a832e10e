package power

import (
	"context"
	"strings"
)

// Reading is one observed power status. Status carries the raw status tokens
// as reported by the UPS driver (e.g. "OL", "OB DISCHRG", "OB LB").
type Reading struct {
	Status    string
	Simulated bool
}

// Source abstracts where the status comes from (hub endpoint or direct NUT
// query) so the decision logic and tests stay independent of the transport.
type Source interface {
	Read(ctx context.Context) (Reading, error)
}

// OnBattery reports whether the OB token is present.
func (r Reading) OnBattery() bool {
	return r.hasToken("OB")
}

// LowBattery reports whether the LB token is present.
func (r Reading) LowBattery() bool {
	return r.hasToken("LB")
}

// LowPower is the condition that arms the countdown: running on battery and
// battery below the critical threshold.
func (r Reading) LowPower() bool {
	return r.OnBattery() && r.LowBattery()
}

// EffectiveLowPower applies the simulation-ignore rule: a simulated reading
// counts as restored power when the configuration says to ignore simulated
// events.
func (r Reading) EffectiveLowPower(ignoreSimulated bool) bool {
	if r.Simulated && ignoreSimulated {
		return false
	}
	return r.LowPower()
}

func (r Reading) hasToken(token string) bool {
	for _, t := range strings.Fields(r.Status) {
		if t == token {
			return true
		}
	}
	return false
}
