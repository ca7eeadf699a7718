package sim

import (
	"testing"

	"go.uber.org/zap"
)

func testArena(units ...*UnitRuntime) *Arena {
	a := NewArena("test-arena", 1, nil, zap.NewNop())
	for _, u := range units {
		a.AddUnit(u)
	}
	return a
}

// pair spawns two tree-less units dist apart on the X axis and returns them
// with their arena. Tree-less units never act on their own, so tests drive
// them through the action methods directly.
func pair(dist float64) (*Arena, *UnitRuntime, *UnitRuntime) {
	u1 := NewUnit("alpha", "t1", nil, DefaultConfig(), Vec3{})
	u2 := NewUnit("beta", "t2", nil, DefaultConfig(), Vec3{X: dist})
	a := testArena(u1, u2)
	return a, u1, u2
}

func TestNewUnitDefaults(t *testing.T) {
	u := NewUnit("alpha", "default", nil, DefaultConfig(), Vec3{X: 5})
	if u.HP != unitMaxHP || u.MaxHP != unitMaxHP {
		t.Fatalf("HP = %d/%d, want %d", u.HP, u.MaxHP, unitMaxHP)
	}
	if u.Boost != maxBoost {
		t.Fatalf("Boost = %v, want %v", u.Boost, maxBoost)
	}
	if u.Ammo != maxAmmo {
		t.Fatalf("Ammo = %d, want %d", u.Ammo, maxAmmo)
	}
	if u.State != StateIdle {
		t.Fatalf("State = %q, want IDLE", u.State)
	}
	if u.InstID == 0 {
		t.Fatal("InstID not assigned")
	}
}

func TestTargetPairing(t *testing.T) {
	_, u1, u2 := pair(100)
	if u1.TargetID != u2.InstID {
		t.Errorf("u1 target = %d, want %d", u1.TargetID, u2.InstID)
	}
	if u2.TargetID != u1.InstID {
		t.Errorf("u2 target = %d, want %d", u2.TargetID, u1.InstID)
	}
}

func TestMeleeLungeChain(t *testing.T) {
	// Attacker starts inside melee range, so the lunge connects on the
	// first step and the full LUNGE → SLASH_1 → SLASH_2 chain plays out.
	a, u1, u2 := pair(meleeRange / 2)

	u1.melee(a, MeleeKindLunge)
	if u1.State != StateMelee || u1.MeleePhase != "LUNGE" {
		t.Fatalf("after melee: state=%q phase=%q", u1.State, u1.MeleePhase)
	}

	u1.step(a)
	if u1.MeleePhase != "SLASH_1" {
		t.Fatalf("phase = %q, want SLASH_1", u1.MeleePhase)
	}

	// SLASH_1 lands a hit on the next step (target still in range).
	u1.step(a)
	if !u1.MeleeHit {
		t.Fatal("SLASH_1 did not register a hit")
	}
	if u2.HP != unitMaxHP-meleeDamage {
		t.Fatalf("target HP = %d, want %d", u2.HP, unitMaxHP-meleeDamage)
	}
	if u2.State != StateStagger {
		t.Fatalf("target state = %q, want STAGGER", u2.State)
	}

	// Run out SLASH_1 → SLASH_2 → IDLE.
	for i := 0; i < slashTicks; i++ {
		u1.step(a)
	}
	if u1.MeleePhase != "SLASH_2" {
		t.Fatalf("phase = %q, want SLASH_2", u1.MeleePhase)
	}
	for i := 0; i < slashTicks+1; i++ {
		u1.step(a)
	}
	if u1.State != StateIdle || u1.MeleePhase != "" {
		t.Fatalf("after chain: state=%q phase=%q, want IDLE", u1.State, u1.MeleePhase)
	}
}

func TestMeleeSideChain(t *testing.T) {
	a, u1, _ := pair(meleeRange / 2)

	u1.melee(a, MeleeKindSide)
	if u1.MeleePhase != "SIDE_LUNGE" {
		t.Fatalf("phase = %q, want SIDE_LUNGE", u1.MeleePhase)
	}

	u1.step(a)
	if u1.MeleePhase != "SIDE_SLASH" {
		t.Fatalf("phase = %q, want SIDE_SLASH", u1.MeleePhase)
	}

	// Side attacks have a single slash window, then return to idle.
	for i := 0; i < slashTicks+1; i++ {
		u1.step(a)
	}
	if u1.State != StateIdle {
		t.Fatalf("state = %q, want IDLE", u1.State)
	}
}

func TestMeleeLungeWhiffsOnTimeout(t *testing.T) {
	// Target far enough that lungeSpeed*lungeTicks cannot close the gap.
	a, u1, u2 := pair(lungeSpeed*lungeTicks + 100)

	u1.melee(a, MeleeKindLunge)
	for i := 0; i < lungeTicks; i++ {
		u1.step(a)
	}
	if u1.State != StateIdle {
		t.Fatalf("state = %q, want IDLE after whiffed lunge", u1.State)
	}
	if u2.HP != unitMaxHP {
		t.Fatalf("target took damage on a whiff: HP = %d", u2.HP)
	}
}

func TestDashDrainsBoostAndExpires(t *testing.T) {
	a, u1, _ := pair(200)

	u1.dash(a)
	if u1.State != StateDash {
		t.Fatalf("state = %q, want DASH", u1.State)
	}
	startX := u1.Pos.X
	for i := 0; i < dashMaxTicks; i++ {
		u1.step(a)
	}
	if u1.State != StateIdle {
		t.Fatalf("state = %q, want IDLE after dash expires", u1.State)
	}
	if u1.Boost >= maxBoost {
		t.Fatalf("boost = %v, expected drain below %v", u1.Boost, maxBoost)
	}
	if u1.Pos.X <= startX {
		t.Fatal("dash did not move the unit toward its target")
	}
}

func TestAscendLiftsAndExpires(t *testing.T) {
	a, u1, _ := pair(200)

	u1.ascend(a)
	for i := 0; i < ascendMaxTicks; i++ {
		u1.step(a)
	}
	if u1.State != StateIdle {
		t.Fatalf("state = %q, want IDLE after ascend expires", u1.State)
	}
	if u1.Pos.Y <= 0 {
		t.Fatalf("Y = %v, expected altitude gain", u1.Pos.Y)
	}
	if u1.Vel.Y != 0 {
		t.Fatalf("vertical velocity %v not cleared on expiry", u1.Vel.Y)
	}
}

func TestEvadeCosts(t *testing.T) {
	a, u1, _ := pair(50)

	u1.evade(a, false)
	if got := maxBoost - u1.Boost; got != evadeBoostCost {
		t.Fatalf("normal evade cost = %v, want %v", got, evadeBoostCost)
	}
	if u1.State != StateEvade {
		t.Fatalf("state = %q, want EVADE", u1.State)
	}

	for i := 0; i < evadeTicks; i++ {
		u1.step(a)
	}
	if u1.State != StateIdle {
		t.Fatalf("state = %q, want IDLE after evade window", u1.State)
	}

	u2 := NewUnit("gamma", "t3", nil, DefaultConfig(), Vec3{Z: 30})
	a.AddUnit(u2)
	u2.evade(a, true)
	if got := maxBoost - u2.Boost; got != rainbowBoostCost {
		t.Fatalf("rainbow evade cost = %v, want %v", got, rainbowBoostCost)
	}
	if u2.Vel.Len() <= evadeImpulse {
		t.Fatalf("rainbow impulse %v, expected > %v", u2.Vel.Len(), evadeImpulse)
	}
}

func TestShootSpawnsProjectile(t *testing.T) {
	a, u1, _ := pair(100)

	u1.shoot(a)
	if u1.Ammo != maxAmmo-1 {
		t.Fatalf("ammo = %d, want %d", u1.Ammo, maxAmmo-1)
	}
	if u1.ShootCooldown != shootCooldownTicks {
		t.Fatalf("cooldown = %v, want %v", u1.ShootCooldown, shootCooldownTicks)
	}
	if len(a.store.Projectiles) != 1 {
		t.Fatalf("projectiles = %d, want 1", len(a.store.Projectiles))
	}
	if u1.liveShots != 1 {
		t.Fatalf("liveShots = %d, want 1", u1.liveShots)
	}

	for i := 0; i < shootRecoverTicks; i++ {
		u1.step(a)
	}
	if u1.State != StateIdle {
		t.Fatalf("state = %q, want IDLE after shoot recovery", u1.State)
	}
}

func TestShootWithoutAmmoIsNoop(t *testing.T) {
	a, u1, _ := pair(100)
	u1.Ammo = 0

	u1.shoot(a)
	if len(a.store.Projectiles) != 0 {
		t.Fatal("projectile spawned with no ammo")
	}
	if u1.State != StateIdle {
		t.Fatalf("state = %q, want IDLE", u1.State)
	}
}

func TestStaggerClearsMeleePhase(t *testing.T) {
	a, u1, _ := pair(50)

	u1.melee(a, MeleeKindLunge)
	u1.stagger()
	if u1.MeleePhase != "" || u1.MeleeTimer != 0 {
		t.Fatalf("melee sub-state not cleared: phase=%q timer=%v", u1.MeleePhase, u1.MeleeTimer)
	}
	if u1.State != StateStagger {
		t.Fatalf("state = %q, want STAGGER", u1.State)
	}

	for i := 0; i < staggerTicks; i++ {
		u1.step(a)
	}
	if u1.State != StateIdle {
		t.Fatalf("state = %q, want IDLE after stagger", u1.State)
	}
}

func TestBoostRegenWhileIdle(t *testing.T) {
	a, u1, _ := pair(50)
	u1.Boost = 10

	u1.step(a)
	if u1.Boost != 10+boostRegen {
		t.Fatalf("boost = %v, want %v", u1.Boost, 10+boostRegen)
	}

	u1.Boost = maxBoost
	u1.step(a)
	if u1.Boost != maxBoost {
		t.Fatalf("boost = %v, regen past cap", u1.Boost)
	}
}

func TestTakeDamage(t *testing.T) {
	u := NewUnit("alpha", "t", nil, DefaultConfig(), Vec3{})
	if u.TakeDamage(500) {
		t.Fatal("unexpected KO at half HP")
	}
	if !u.TakeDamage(9999) {
		t.Fatal("expected KO")
	}
	if u.HP != 0 {
		t.Fatalf("HP = %d, want clamp at 0", u.HP)
	}
}
