package ai

import "math/rand"

// ConfigKey names a tunable a dual-mode node parameter may reference
// instead of a numeric literal. Resolution happens at tick time as a
// plain field lookup; mapping a key string to a ConfigKey happens once
// at parse time.
type ConfigKey int

const (
	ConfigNone ConfigKey = iota // literal value, no config lookup
	ConfigMeleeTriggerDistance
	ConfigShootRate
	ConfigMeleeAggression
	ConfigDodgeRate
	ConfigMeleeDefense
)

// configKeyNames maps the serialized key strings to ConfigKeys.
var configKeyNames = map[string]ConfigKey{
	"CONFIG_MELEE":            ConfigMeleeTriggerDistance,
	"CONFIG_SHOOT":            ConfigShootRate,
	"CONFIG_MELEE_AGGRESSION": ConfigMeleeAggression,
	"CONFIG_DODGE":            ConfigDodgeRate,
	"CONFIG_MELEE_DEFENSE":    ConfigMeleeDefense,
}

// Config is the per-unit tunable record. The five fields correspond 1:1
// to the named config keys resolvable in node parameters.
type Config struct {
	MeleeTriggerDistance float64
	ShootRate            float64
	MeleeAggression      float64
	DodgeRate            float64
	MeleeDefense         float64
}

// Value resolves a ConfigKey against this record. ConfigNone returns 0;
// callers holding a literal never reach this path.
func (c Config) Value(k ConfigKey) float64 {
	switch k {
	case ConfigMeleeTriggerDistance:
		return c.MeleeTriggerDistance
	case ConfigShootRate:
		return c.ShootRate
	case ConfigMeleeAggression:
		return c.MeleeAggression
	case ConfigDodgeRate:
		return c.DodgeRate
	case ConfigMeleeDefense:
		return c.MeleeDefense
	default:
		return 0
	}
}

// Actions is the callback bundle through which the tree requests side
// effects. The simulation layer supplies implementations that perform the
// actual state transition; the tree invokes at most one of them per tick.
type Actions struct {
	Evade  func(rainbow bool)
	Melee  func(kind string)
	Shoot  func()
	Dash   func()
	Ascend func()
	Idle   func()
}

// Context is the per-tick, per-unit snapshot supplied by the simulation
// layer. It is constructed (or refreshed) before each tick and must not be
// retained by any node past that tick. Nodes never mutate it except through
// the Actions callbacks.
type Context struct {
	UnitID int64
	Config Config

	State         string  // current high-level AI state name, e.g. "IDLE", "MELEE"
	StateDuration float64 // ticks spent in the current state
	DistToTarget  float64
	Boost         float64
	Ammo          int
	ShootCooldown float64

	HasThreat       bool
	IsMeleeTargeted bool
	CanAct          bool
	CanDefend       bool
	HasFired        bool

	// Melee sub-state. Phase names are a loosely structured string space
	// matched by substring ("LUNGE"/"SLASH"), not a closed enum.
	MeleePhase string
	MeleeTimer float64
	IsMeleeHit bool

	// Rand is the randomness source for Probability and ActionMelee.
	// Hosts supply a seeded source for reproducible runs.
	Rand *rand.Rand

	Actions Actions
}
