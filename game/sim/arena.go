package sim

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"github.com/hazuki-games/steelduel/server/cache"
	"github.com/hazuki-games/steelduel/server/game/ai"
	"go.uber.org/zap"
)

const tickInterval = 50 * time.Millisecond // 20 TPS

const (
	arenaHalfExtent = 400.0
	arenaCeiling    = 120.0

	projectileSpeed     = 9.0
	projectileTTL       = 80
	projectileDamage    = 90
	projectileHitRadius = 6.0
	threatRange         = 45.0
	hitStopTicks        = 6
	maxMatchTicks       = 20 * 60 * 5 // 5 minute cap
)

// EventChannel is the pubsub channel arena events are published on.
const EventChannel = "arena_events"

// DefaultConfig is the tunable record units spawn with unless the spawn
// request overrides it.
func DefaultConfig() ai.Config {
	return ai.Config{
		MeleeTriggerDistance: 60,
		ShootRate:            0.6,
		MeleeAggression:      0.35,
		DodgeRate:            0.7,
		MeleeDefense:         0.5,
	}
}

// Projectile is a live shot in flight.
type Projectile struct {
	ID       int64
	OwnerID  int64
	TargetID int64
	Pos      Vec3
	Vel      Vec3
	TTL      int
}

// Store is the arena-wide mutable state outside any single unit: current
// targets are held on the units, projectiles and the hit-stop counter here.
type Store struct {
	Projectiles map[int64]*Projectile
	HitStop     int
}

// MatchSummary describes a finished match.
type MatchSummary struct {
	ArenaID    string
	WinnerTree string
	LoserTree  string
	WinnerName string
	Ticks      int64
	Draw       bool
}

// Arena hosts one match: two or more tree-driven units, their projectiles,
// and a fixed-rate tick loop. Trees are read-only and may be shared across
// units; all per-unit state lives in the units and the per-tick contexts.
type Arena struct {
	ID string

	mu       sync.RWMutex
	units    map[int64]*UnitRuntime
	order    []int64 // deterministic tick order
	store    Store
	rng      *rand.Rand
	ticks    int64
	finished bool

	pubsub   cache.PubSub
	onFinish func(MatchSummary)
	stopCh   chan struct{}
	stopOnce sync.Once
	logger   *zap.Logger

	projIDSeq int64
}

// NewArena creates an arena but does not start its loop.
func NewArena(id string, seed int64, ps cache.PubSub, logger *zap.Logger) *Arena {
	return &Arena{
		ID:     id,
		units:  make(map[int64]*UnitRuntime),
		store:  Store{Projectiles: make(map[int64]*Projectile)},
		rng:    rand.New(rand.NewSource(seed)),
		pubsub: ps,
		stopCh: make(chan struct{}),
		logger: logger,
	}
}

// SetOnFinish registers the match-result callback. Call before Run.
func (a *Arena) SetOnFinish(fn func(MatchSummary)) { a.onFinish = fn }

// AddUnit registers a unit. Units added after Run started still join the
// tick order on the next frame.
func (a *Arena) AddUnit(u *UnitRuntime) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.units[u.InstID] = u
	a.order = append(a.order, u.InstID)
	// Pair up targets: each unit targets the first other unit.
	for _, id := range a.order {
		if a.units[id].TargetID == 0 {
			for _, other := range a.order {
				if other != id {
					a.units[id].TargetID = other
					break
				}
			}
		}
	}
}

// Run drives the 20 TPS loop. Call in a goroutine.
func (a *Arena) Run() {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			a.Tick()
		case <-a.stopCh:
			return
		}
	}
}

// Stop signals the loop to exit. Safe to call from any number of
// goroutines: match end, manager teardown, and the REST delete handler can
// all race here.
func (a *Arena) Stop() {
	a.stopOnce.Do(func() { close(a.stopCh) })
}

// StopChan is closed when the arena has stopped.
func (a *Arena) StopChan() <-chan struct{} { return a.stopCh }

// Tick advances the simulation one frame: threat flags, one AI tick per
// unit, physics, projectiles, win condition. Exported so tests can drive
// the arena without the wall-clock ticker.
func (a *Arena) Tick() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.finished {
		return
	}
	a.ticks++

	if a.store.HitStop > 0 {
		a.store.HitStop--
		return
	}

	for _, id := range a.order {
		u := a.units[id]
		if u.HP <= 0 {
			continue
		}
		ctx := a.buildContext(u)
		if u.tree != nil {
			u.tree.Tick(ctx)
		}
		u.step(a)
	}

	a.stepProjectiles()
	a.checkMatchEnd()
}

// unit looks up a live unit by ID. Callers already hold the arena lock.
func (a *Arena) unit(id int64) *UnitRuntime {
	u, ok := a.units[id]
	if !ok || u.HP <= 0 {
		return nil
	}
	return u
}

// buildContext assembles the fresh per-tick snapshot the AI core consumes.
func (a *Arena) buildContext(u *UnitRuntime) *ai.Context {
	target := a.unit(u.TargetID)
	dist := 0.0
	if target != nil {
		dist = target.Pos.Sub(u.Pos).Len()
	}

	canAct := u.State != StateStagger
	ctx := &ai.Context{
		UnitID:          u.InstID,
		Config:          u.cfg,
		State:           u.State,
		StateDuration:   u.StateTicks,
		DistToTarget:    dist,
		Boost:           u.Boost,
		Ammo:            u.Ammo,
		ShootCooldown:   u.ShootCooldown,
		HasThreat:       a.threatened(u),
		IsMeleeTargeted: a.meleeTargeted(u),
		CanAct:          canAct,
		CanDefend:       canAct && u.Boost >= evadeBoostCost,
		HasFired:        u.liveShots > 0,
		MeleePhase:      u.MeleePhase,
		MeleeTimer:      u.MeleeTimer,
		IsMeleeHit:      u.MeleeHit,
		Rand:            a.rng,
	}
	ctx.Actions = ai.Actions{
		Evade:  func(rainbow bool) { u.evade(a, rainbow) },
		Melee:  func(kind string) { u.melee(a, kind) },
		Shoot:  func() { u.shoot(a) },
		Dash:   func() { u.dash(a) },
		Ascend: func() { u.ascend(a) },
		Idle:   func() { u.idle(a) },
	}
	return ctx
}

// threatened reports whether a live projectile is closing on the unit.
func (a *Arena) threatened(u *UnitRuntime) bool {
	for _, p := range a.store.Projectiles {
		if p.TargetID != u.InstID {
			continue
		}
		if p.Pos.Sub(u.Pos).Len() < threatRange {
			return true
		}
	}
	return false
}

// meleeTargeted reports whether another unit is mid-melee with this unit
// as its target.
func (a *Arena) meleeTargeted(u *UnitRuntime) bool {
	for _, other := range a.units {
		if other.InstID == u.InstID || other.HP <= 0 {
			continue
		}
		if other.State == StateMelee && other.TargetID == u.InstID {
			return true
		}
	}
	return false
}

func (a *Arena) spawnProjectile(owner *UnitRuntime) {
	target := a.unit(owner.TargetID)
	dir := Vec3{1, 0, 0}
	if target != nil {
		dir = target.Pos.Sub(owner.Pos).Norm()
	}
	a.projIDSeq++
	p := &Projectile{
		ID:       a.projIDSeq,
		OwnerID:  owner.InstID,
		TargetID: owner.TargetID,
		Pos:      owner.Pos,
		Vel:      dir.Scale(projectileSpeed),
		TTL:      projectileTTL,
	}
	a.store.Projectiles[p.ID] = p
}

func (a *Arena) stepProjectiles() {
	for id, p := range a.store.Projectiles {
		p.TTL--
		p.Pos = p.Pos.Add(p.Vel)
		target := a.unit(p.TargetID)

		hit := target != nil && target.Pos.Sub(p.Pos).Len() < projectileHitRadius
		if hit {
			ko := target.TakeDamage(projectileDamage)
			target.stagger()
			if owner := a.unit(p.OwnerID); owner != nil {
				a.publish("projectile_hit", owner, map[string]interface{}{
					"target": target.InstID, "hp": target.HP,
				})
				if ko {
					owner.Kills++
				}
			}
		}
		if hit || p.TTL <= 0 || !a.inBounds(p.Pos) {
			if owner, ok := a.units[p.OwnerID]; ok && owner.liveShots > 0 {
				owner.liveShots--
			}
			delete(a.store.Projectiles, id)
		}
	}
}

func (a *Arena) applyMeleeHit(attacker, target *UnitRuntime) {
	ko := target.TakeDamage(meleeDamage)
	target.stagger()
	a.store.HitStop = hitStopTicks
	if ko {
		attacker.Kills++
	}
	a.publish("melee_hit", attacker, map[string]interface{}{
		"target": target.InstID, "hp": target.HP, "phase": attacker.MeleePhase,
	})
}

func (a *Arena) checkMatchEnd() {
	var alive []*UnitRuntime
	for _, id := range a.order {
		if a.units[id].HP > 0 {
			alive = append(alive, a.units[id])
		}
	}
	timeout := a.ticks >= maxMatchTicks

	if len(alive) > 1 && !timeout {
		return
	}
	a.finished = true

	sum := MatchSummary{ArenaID: a.ID, Ticks: a.ticks, Draw: true}
	if len(alive) == 1 {
		winner := alive[0]
		sum.Draw = false
		sum.WinnerTree = winner.TreeName
		sum.WinnerName = winner.Name
		for _, id := range a.order {
			if u := a.units[id]; u.InstID != winner.InstID {
				sum.LoserTree = u.TreeName
			}
		}
	}
	a.publish("match_end", nil, map[string]interface{}{
		"winner": sum.WinnerName, "ticks": a.ticks, "draw": sum.Draw,
	})
	a.logger.Info("match finished",
		zap.String("arena_id", a.ID),
		zap.String("winner", sum.WinnerName),
		zap.Int64("ticks", a.ticks))
	if a.onFinish != nil {
		go a.onFinish(sum)
	}
	go a.Stop()
}

func (a *Arena) inBounds(p Vec3) bool {
	return p.X >= -arenaHalfExtent && p.X <= arenaHalfExtent &&
		p.Z >= -arenaHalfExtent && p.Z <= arenaHalfExtent &&
		p.Y >= -1 && p.Y <= arenaCeiling*2
}

func (a *Arena) clamp(p *Vec3) {
	if p.X > arenaHalfExtent {
		p.X = arenaHalfExtent
	}
	if p.X < -arenaHalfExtent {
		p.X = -arenaHalfExtent
	}
	if p.Z > arenaHalfExtent {
		p.Z = arenaHalfExtent
	}
	if p.Z < -arenaHalfExtent {
		p.Z = -arenaHalfExtent
	}
	if p.Y > arenaCeiling {
		p.Y = arenaCeiling
	}
}

// publish emits an arena event on the pubsub channel (best-effort).
func (a *Arena) publish(event string, u *UnitRuntime, fields map[string]interface{}) {
	if a.pubsub == nil {
		return
	}
	payload := map[string]interface{}{
		"arena_id": a.ID,
		"event":    event,
		"tick":     a.ticks,
	}
	if u != nil {
		payload["unit_id"] = u.InstID
		payload["unit"] = u.Name
	}
	for k, v := range fields {
		payload[k] = v
	}
	data, _ := json.Marshal(payload)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := a.pubsub.Publish(ctx, EventChannel, string(data)); err != nil {
		a.logger.Debug("event publish failed", zap.Error(err))
	}
}

// UnitSnapshot is the client-visible unit state for REST responses.
type UnitSnapshot struct {
	InstID   int64   `json:"inst_id"`
	Name     string  `json:"name"`
	TreeName string  `json:"tree"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Z        float64 `json:"z"`
	HP       int     `json:"hp"`
	MaxHP    int     `json:"max_hp"`
	Boost    float64 `json:"boost"`
	Ammo     int     `json:"ammo"`
	State    string  `json:"state"`
	Phase    string  `json:"melee_phase,omitempty"`
	Kills    int     `json:"kills"`
}

// Snapshot returns the current unit states in tick order.
func (a *Arena) Snapshot() []UnitSnapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]UnitSnapshot, 0, len(a.order))
	for _, id := range a.order {
		u := a.units[id]
		out = append(out, UnitSnapshot{
			InstID:   u.InstID,
			Name:     u.Name,
			TreeName: u.TreeName,
			X:        u.Pos.X, Y: u.Pos.Y, Z: u.Pos.Z,
			HP:    u.HP,
			MaxHP: u.MaxHP,
			Boost: u.Boost,
			Ammo:  u.Ammo,
			State: u.State,
			Phase: u.MeleePhase,
			Kills: u.Kills,
		})
	}
	return out
}

// Finished reports whether the match has concluded.
func (a *Arena) Finished() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.finished
}

// Ticks returns the frame counter.
func (a *Arena) Ticks() int64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.ticks
}

// ReplaceTree hot-swaps the parsed tree for every unit spawned from the
// named tree. Used when the editor saves a new revision mid-match.
func (a *Arena) ReplaceTree(name string, tree *ai.Tree) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, u := range a.units {
		if u.TreeName == name {
			u.tree = tree
			n++
		}
	}
	return n
}
