package sim

import (
	"math"
	"sync/atomic"

	"github.com/hazuki-games/steelduel/server/game/ai"
)

// instIDCounter generates unique unit instance IDs.
var instIDCounter int64

func nextInstID() int64 {
	return atomic.AddInt64(&instIDCounter, 1)
}

// High-level AI state names. The melee phase strings below are matched by
// the AI core via substring, so new phases must keep LUNGE/SLASH in their
// names to take part in whiff detection.
const (
	StateIdle    = "IDLE"
	StateDash    = "DASH"
	StateAscend  = "ASCEND"
	StateEvade   = "EVADE"
	StateMelee   = "MELEE"
	StateShoot   = "SHOOT"
	StateStagger = "STAGGER"
)

const (
	MeleeKindSide  = "SIDE"
	MeleeKindLunge = "LUNGE"
)

// Simulation tuning. Timers are in ticks (20 TPS).
const (
	unitMaxHP  = 1000
	maxBoost   = 100.0
	boostRegen = 0.5
	maxAmmo    = 16

	dashSpeed        = 4.5
	dashBoostDrain   = 1.2
	dashMaxTicks     = 30
	ascendSpeed      = 3.0
	ascendBoostDrain = 0.8
	ascendMaxTicks   = 20
	evadeImpulse      = 5.0
	evadeBoostCost    = 15.0
	rainbowBoostCost  = 25.0
	rainbowImpulse    = 8.0
	evadeTicks        = 14
	staggerTicks      = 18
	shootRecoverTicks = 8

	lungeSpeed  = 6.0
	lungeTicks  = 24
	slashTicks  = 12
	meleeRange  = 8.0
	meleeDamage = 220

	shootCooldownTicks = 30
	idleDrag           = 0.85
)

// Vec3 is a point-mass position/velocity in arena space. Y is up.
type Vec3 struct {
	X, Y, Z float64
}

func (v Vec3) Add(o Vec3) Vec3      { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }
func (v Vec3) Sub(o Vec3) Vec3      { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }
func (v Vec3) Scale(s float64) Vec3 { return Vec3{v.X * s, v.Y * s, v.Z * s} }
func (v Vec3) Len() float64         { return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z) }

// Norm returns the unit vector, or zero for a zero vector.
func (v Vec3) Norm() Vec3 {
	l := v.Len()
	if l == 0 {
		return Vec3{}
	}
	return v.Scale(1 / l)
}

// UnitRuntime is the live state of one simulated mech. All mutation happens
// on the arena tick goroutine; external readers go through Arena snapshots.
type UnitRuntime struct {
	InstID   int64
	Name     string
	TreeName string

	tree *ai.Tree
	cfg  ai.Config

	Pos Vec3
	Vel Vec3

	HP            int
	MaxHP         int
	Boost         float64
	Ammo          int
	ShootCooldown float64

	State      string
	StateTicks float64

	MeleeKind  string
	MeleePhase string
	MeleeTimer float64
	MeleeHit   bool

	TargetID  int64
	liveShots int // projectiles in flight owned by this unit
	Kills     int
}

// NewUnit creates a fresh unit at the given position, driven by the given
// parsed tree. The tree may be shared with other units.
func NewUnit(name, treeName string, tree *ai.Tree, cfg ai.Config, pos Vec3) *UnitRuntime {
	return &UnitRuntime{
		InstID:   nextInstID(),
		Name:     name,
		TreeName: treeName,
		tree:     tree,
		cfg:      cfg,
		Pos:      pos,
		HP:       unitMaxHP,
		MaxHP:    unitMaxHP,
		Boost:    maxBoost,
		Ammo:     maxAmmo,
		State:    StateIdle,
	}
}

// enter transitions the unit to a new high-level state.
func (u *UnitRuntime) enter(state string) {
	u.State = state
	u.StateTicks = 0
}

func (u *UnitRuntime) spendBoost(cost float64) {
	u.Boost -= cost
	if u.Boost < 0 {
		u.Boost = 0
	}
}

// ---- action callbacks (the ai.Actions surface) ----

func (u *UnitRuntime) evade(a *Arena, rainbow bool) {
	cost, impulse := evadeBoostCost, evadeImpulse
	if rainbow {
		cost, impulse = rainbowBoostCost, rainbowImpulse
	}
	u.spendBoost(cost)

	// Sidestep perpendicular to the target direction, random side.
	dir := Vec3{0, 0, 1}
	if t := a.unit(u.TargetID); t != nil {
		dir = t.Pos.Sub(u.Pos).Norm()
	}
	side := Vec3{-dir.Z, 0, dir.X}
	if a.rng.Float64() < 0.5 {
		side = side.Scale(-1)
	}
	u.Vel = side.Scale(impulse)
	u.enter(StateEvade)
	a.publish("evade", u, map[string]interface{}{"rainbow": rainbow})
}

func (u *UnitRuntime) melee(a *Arena, kind string) {
	u.MeleeKind = kind
	if kind == MeleeKindSide {
		u.MeleePhase = "SIDE_LUNGE"
	} else {
		u.MeleePhase = "LUNGE"
	}
	u.MeleeTimer = lungeTicks
	u.MeleeHit = false
	u.enter(StateMelee)
	a.publish("melee", u, map[string]interface{}{"kind": kind})
}

func (u *UnitRuntime) shoot(a *Arena) {
	if u.Ammo <= 0 {
		return
	}
	u.Ammo--
	u.ShootCooldown = shootCooldownTicks
	a.spawnProjectile(u)
	u.liveShots++
	u.enter(StateShoot)
	a.publish("shoot", u, map[string]interface{}{"ammo": u.Ammo})
}

func (u *UnitRuntime) dash(a *Arena) {
	dir := Vec3{1, 0, 0}
	if t := a.unit(u.TargetID); t != nil {
		dir = t.Pos.Sub(u.Pos).Norm()
	}
	u.Vel = dir.Scale(dashSpeed)
	u.enter(StateDash)
}

func (u *UnitRuntime) ascend(a *Arena) {
	u.Vel = Vec3{u.Vel.X, ascendSpeed, u.Vel.Z}
	u.enter(StateAscend)
}

func (u *UnitRuntime) idle(a *Arena) {
	u.enter(StateIdle)
}

// stagger interrupts whatever the unit was doing. Melee sub-state is
// cleared so a stale phase cannot satisfy whiff checks later.
func (u *UnitRuntime) stagger() {
	u.MeleePhase = ""
	u.MeleeTimer = 0
	u.enter(StateStagger)
}

// step advances the unit one tick. It runs after the AI tick, so action
// transitions take effect the same frame they are requested.
func (u *UnitRuntime) step(a *Arena) {
	u.StateTicks++
	if u.ShootCooldown > 0 {
		u.ShootCooldown--
	}

	switch u.State {
	case StateMelee:
		u.stepMelee(a)
	case StateDash:
		u.spendBoost(dashBoostDrain)
		if u.Boost <= 0 || u.StateTicks >= dashMaxTicks {
			u.enter(StateIdle)
		}
	case StateAscend:
		u.spendBoost(ascendBoostDrain)
		if u.Boost <= 0 || u.StateTicks >= ascendMaxTicks {
			u.Vel.Y = 0
			u.enter(StateIdle)
		}
	case StateEvade:
		if u.StateTicks >= evadeTicks {
			u.enter(StateIdle)
		}
	case StateShoot:
		if u.StateTicks >= shootRecoverTicks {
			u.enter(StateIdle)
		}
	case StateStagger:
		if u.StateTicks >= staggerTicks {
			u.enter(StateIdle)
		}
	default: // IDLE
		u.Vel = u.Vel.Scale(idleDrag)
	}

	// Boost regenerates whenever it is not being drained.
	if u.State != StateDash && u.State != StateAscend && u.State != StateEvade {
		u.Boost += boostRegen
		if u.Boost > maxBoost {
			u.Boost = maxBoost
		}
	}

	u.Pos = u.Pos.Add(u.Vel)
	a.clamp(&u.Pos)
	if u.Pos.Y < 0 {
		u.Pos.Y = 0
		u.Vel.Y = 0
	}
}

// stepMelee drives the melee phase chain:
//
//	LUNGE      → SLASH_1 → SLASH_2 → IDLE
//	SIDE_LUNGE → SIDE_SLASH        → IDLE
//
// A lunge that runs out its timer without closing the distance whiffs back
// to IDLE; the AI's CheckMeleeWhiff sees the countdown drop below its
// threshold before that happens and can bail out with an evade.
func (u *UnitRuntime) stepMelee(a *Arena) {
	target := a.unit(u.TargetID)
	u.MeleeTimer--

	inLunge := u.MeleePhase == "LUNGE" || u.MeleePhase == "SIDE_LUNGE"
	if inLunge {
		if target != nil {
			u.Vel = target.Pos.Sub(u.Pos).Norm().Scale(lungeSpeed)
			if target.Pos.Sub(u.Pos).Len() < meleeRange {
				u.advanceSlash()
				return
			}
		}
		if u.MeleeTimer <= 0 {
			// Lunge expired without reaching the target.
			u.Vel = Vec3{}
			u.enter(StateIdle)
		}
		return
	}

	// Slash phases.
	u.Vel = u.Vel.Scale(idleDrag)
	if target != nil && !u.MeleeHit && target.Pos.Sub(u.Pos).Len() < meleeRange {
		u.MeleeHit = true
		a.applyMeleeHit(u, target)
	}
	if u.MeleeTimer <= 0 {
		switch u.MeleePhase {
		case "SLASH_1":
			u.MeleePhase = "SLASH_2"
			u.MeleeTimer = slashTicks
			u.MeleeHit = false
		default: // SLASH_2, SIDE_SLASH
			u.MeleePhase = ""
			u.enter(StateIdle)
		}
	}
}

func (u *UnitRuntime) advanceSlash() {
	if u.MeleeKind == MeleeKindSide {
		u.MeleePhase = "SIDE_SLASH"
	} else {
		u.MeleePhase = "SLASH_1"
	}
	u.MeleeTimer = slashTicks
	u.MeleeHit = false
	u.Vel = Vec3{}
}

// TakeDamage applies damage. Returns true if HP reached 0.
func (u *UnitRuntime) TakeDamage(dmg int) bool {
	u.HP -= dmg
	if u.HP < 0 {
		u.HP = 0
	}
	return u.HP == 0
}
