package ai

import "strings"

// Kind tags a node variant. The set is closed: the interpreter dispatches
// over it exhaustively, and unrecognized serialized types map to KindUnknown.
type Kind int

const (
	KindUnknown Kind = iota

	// Composites
	KindSelector
	KindSequence

	// Conditions
	KindCheckThreat
	KindCheckMeleeTargeted
	KindCheckState
	KindCheckStateDuration
	KindCheckShotFired
	KindCheckMeleeWhiff
	KindCheckAmmo
	KindCheckBoost
	KindCheckDistance
	KindCheckCanAct
	KindCheckCanDefend
	KindCheckShootCooldown
	KindProbability

	// Actions
	KindActionEvade
	KindActionMelee
	KindActionShoot
	KindActionDash
	KindActionAscend
	KindActionIdle
)

// ValueSource is a two-case sum: a numeric literal, or a reference to a
// named config field resolved against the tick context. Which case applies
// is decided once at parse time.
type ValueSource struct {
	Key     ConfigKey // ConfigNone → Literal is used
	Literal float64
}

// Literal wraps a plain number as a ValueSource.
func Literal(v float64) ValueSource { return ValueSource{Literal: v} }

// ConfigRef wraps a config key as a ValueSource.
func ConfigRef(k ConfigKey) ValueSource { return ValueSource{Key: k} }

// Resolve returns the value this source yields under the given config.
func (v ValueSource) Resolve(cfg Config) float64 {
	if v.Key == ConfigNone {
		return v.Literal
	}
	return cfg.Value(v.Key)
}

// Node is one live behavior tree node. It is a tagged variant: Kind selects
// the behavior and which of the parameter fields are meaningful. Nodes are
// immutable after construction and hold no per-tick state, so one parsed
// tree may back any number of units simultaneously.
type Node struct {
	Kind     Kind
	Children []*Node // composites only, evaluated in order

	State     string      // CheckState
	Threshold float64     // CheckBoost
	Min       float64     // CheckStateDuration
	Operator  string      // CheckDistance: "<" or ">"
	Value     ValueSource // CheckDistance
	Chance    ValueSource // Probability
	Rainbow   bool        // ActionEvade
}

// Timer thresholds below which a melee phase is judged a whiff: a lunge
// about to time out without reaching the target, or a slash window closing
// without a registered hit.
const (
	lungeWhiffTimer = 10
	slashWhiffTimer = 8
)

// Tick evaluates this node against the context and returns its status.
// Evaluation is synchronous and depth-first; the only side effects are the
// Actions callbacks invoked by action leaves.
func (n *Node) Tick(ctx *Context) Status {
	switch n.Kind {
	case KindSelector:
		// First non-failure wins; all-fail (or empty) fails.
		for _, c := range n.Children {
			if st := c.Tick(ctx); st != StatusFailure {
				return st
			}
		}
		return StatusFailure

	case KindSequence:
		// First non-success stops the chain; all-success (or empty) succeeds.
		for _, c := range n.Children {
			if st := c.Tick(ctx); st != StatusSuccess {
				return st
			}
		}
		return StatusSuccess

	case KindCheckThreat:
		return boolStatus(ctx.HasThreat)
	case KindCheckMeleeTargeted:
		return boolStatus(ctx.IsMeleeTargeted)
	case KindCheckCanAct:
		return boolStatus(ctx.CanAct)
	case KindCheckCanDefend:
		return boolStatus(ctx.CanDefend)
	case KindCheckShootCooldown:
		return boolStatus(ctx.ShootCooldown <= 0)
	case KindCheckAmmo:
		return boolStatus(ctx.Ammo > 0)
	case KindCheckShotFired:
		return boolStatus(ctx.HasFired)
	case KindCheckState:
		return boolStatus(ctx.State == n.State)
	case KindCheckStateDuration:
		return boolStatus(ctx.StateDuration >= n.Min)
	case KindCheckBoost:
		return boolStatus(ctx.Boost > n.Threshold)

	case KindCheckDistance:
		v := n.Value.Resolve(ctx.Config)
		if n.Operator == ">" {
			return boolStatus(ctx.DistToTarget > v)
		}
		return boolStatus(ctx.DistToTarget < v)

	case KindProbability:
		p := n.Chance.Resolve(ctx.Config)
		return boolStatus(ctx.Rand.Float64() < p)

	case KindCheckMeleeWhiff:
		if ctx.State != "MELEE" {
			return StatusFailure
		}
		switch {
		case strings.Contains(ctx.MeleePhase, "LUNGE"):
			return boolStatus(ctx.MeleeTimer < lungeWhiffTimer)
		case strings.Contains(ctx.MeleePhase, "SLASH"):
			return boolStatus(!ctx.IsMeleeHit && ctx.MeleeTimer < slashWhiffTimer)
		default:
			return StatusFailure
		}

	case KindActionEvade:
		ctx.Actions.Evade(n.Rainbow)
		return StatusSuccess
	case KindActionMelee:
		kind := "SIDE"
		if ctx.Rand.Float64() < 0.5 {
			kind = "LUNGE"
		}
		ctx.Actions.Melee(kind)
		return StatusSuccess
	case KindActionShoot:
		ctx.Actions.Shoot()
		return StatusSuccess
	case KindActionDash:
		ctx.Actions.Dash()
		return StatusSuccess
	case KindActionAscend:
		ctx.Actions.Ascend()
		return StatusSuccess
	case KindActionIdle:
		ctx.Actions.Idle()
		return StatusSuccess

	default:
		// KindUnknown: the stub substituted for unrecognized serialized
		// types. Always fails so a malformed subtree degrades gracefully.
		return StatusFailure
	}
}

func boolStatus(ok bool) Status {
	if ok {
		return StatusSuccess
	}
	return StatusFailure
}

// Tree wraps a root node. A nil root always fails.
type Tree struct {
	Root *Node
}

// Tick runs one evaluation of the whole tree.
func (t *Tree) Tick(ctx *Context) Status {
	if t == nil || t.Root == nil {
		return StatusFailure
	}
	return t.Root.Tick(ctx)
}
