package engine

import (
	"fmt"
	"math"
	"math/rand"
)

// Rounding turns a fractional recovery quota (|I|·k) into a count.
type Rounding uint8

const (
	RoundCeil       Rounding = iota // ceil(|I|·k)
	RoundFloor                      // floor(|I|·k)
	RoundStochastic                 // floor or ceil with equal probability, one draw per day
)

// quotaEpsilon absorbs float error in |I|·k, so 30×0.1 counts as 3.
const quotaEpsilon = 1e-9

// Count returns the number of individuals to move given n candidates and
// rate k. The result is always within [0, n].
func (r Rounding) Count(n int, k float64, rng *rand.Rand) int {
	x := float64(n) * k
	if near := math.Round(x); math.Abs(x-near) < quotaEpsilon {
		x = near
	}
	var c int
	switch r {
	case RoundFloor:
		c = int(math.Floor(x))
	case RoundStochastic:
		if rng.Intn(2) == 0 {
			c = int(math.Ceil(x))
		} else {
			c = int(math.Floor(x))
		}
	default:
		c = int(math.Ceil(x))
	}
	if c < 0 {
		return 0
	}
	if c > n {
		return n
	}
	return c
}

func (r Rounding) String() string {
	switch r {
	case RoundFloor:
		return "floor"
	case RoundStochastic:
		return "stochastic"
	}
	return "ceil"
}

// ParseRounding maps a config name to a Rounding. The empty string selects def.
func ParseRounding(s string, def Rounding) (Rounding, error) {
	switch s {
	case "":
		return def, nil
	case "ceil":
		return RoundCeil, nil
	case "floor":
		return RoundFloor, nil
	case "stochastic":
		return RoundStochastic, nil
	}
	return 0, fmt.Errorf("%w: unknown rounding %q", ErrInvalidConfig, s)
}

// Ordering decides which individuals transmit on a day that also recovers
// some of them.
type Ordering uint8

const (
	OrderSnapshot     Ordering = iota // Infected at day start transmit, same-day recoveries included
	OrderRecoverFirst                 // Only individuals still infected after recovery transmit
)

func (o Ordering) String() string {
	if o == OrderRecoverFirst {
		return "recover-first"
	}
	return "snapshot"
}

// ParseOrdering maps a config name to an Ordering.
func ParseOrdering(s string) (Ordering, error) {
	switch s {
	case "", "snapshot":
		return OrderSnapshot, nil
	case "recover-first":
		return OrderRecoverFirst, nil
	}
	return 0, fmt.Errorf("%w: unknown ordering %q", ErrInvalidConfig, s)
}

// InfectionRule decides whether a susceptible grid cell with n infected
// neighbors is infected, given one uniform draw u and probability p.
type InfectionRule uint8

const (
	RuleIndependent InfectionRule = iota // u <= 1-(1-p)^n: n independent trials
	RulePower                            // u^n <= p: reproduces the legacy grid outputs
)

// Infects applies the rule. RulePower is kept exact, including u^0 = 1 <= p
// infecting isolated cells when p = 1.
func (r InfectionRule) Infects(u float64, n int, p float64) bool {
	if r == RulePower {
		return math.Pow(u, float64(n)) <= p
	}
	if n <= 0 {
		return false
	}
	return u < 1-math.Pow(1-p, float64(n))
}

func (r InfectionRule) String() string {
	if r == RulePower {
		return "power"
	}
	return "independent"
}

// ParseInfectionRule maps a config name to an InfectionRule.
func ParseInfectionRule(s string) (InfectionRule, error) {
	switch s {
	case "", "independent":
		return RuleIndependent, nil
	case "power":
		return RulePower, nil
	}
	return 0, fmt.Errorf("%w: unknown infection rule %q", ErrInvalidConfig, s)
}
