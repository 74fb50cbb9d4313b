package sim

import "time"

// Exact simulation constants. These values are load-bearing for
// determinism across client and server; do not retune without
// updating every fixture that asserts on tick-by-tick state.
const (
	TurnRateRadPerSec   = 3.8
	ForwardAccel        = 55.0
	ReverseAccel        = 28.0
	DragPerSecond       = 0.18
	MaxSpeed            = 32.0
	PlayerRadius        = 2.5
	ProjectileRadius    = 0.8
	PickupRadius        = 2.8
	ArenaExtent         = 100.0
	ProjectileSpeed     = 70.0
	ProjectileTTLMs     = 1200.0
	ProjectileDamage    = 30.0
	FireCooldownMs      = 160.0
	MaxLagCompMs        = 120.0
	MaxHP               = 100.0
	PickupSpawnPeriod   = 120 // simulation ticks
	MaxSimultaneousPickups = 3
	UsesPerPickup       = 3

	LaserDPS            = 80.0
	LaserRange           = 55.0
	LaserHalfWidth       = 0.6
	LaserBurnDurationMs  = 2000.0

	BombSpeed  = 50.0
	BombDamage = 60.0
	BombRadius = 8.0
	BombTTLMs  = 1600.0

	NovaDamage = 50.0
	NovaRadius = 15.0

	RoundDurationMs = 180000.0

	// PositionHistoryCapacity is the number of per-tick position
	// samples retained per ship for lag-compensated rewind.
	PositionHistoryCapacity = 30

	// TickIntervalMs is the nominal simulation step at the default 60 Hz
	// sim rate, used for test dt-stepping. It is a fixed constant and
	// does not follow a configured SimHz.
	TickIntervalMs = 1000.0 / 60.0

	// LagTickMs is the fixed 16ms substep size the rewind math (lag
	// compensated hit-scan discretization and position-history
	// ticks-back lookup) is specified against. It is a hardcoded
	// constant independent of the configured sim rate, not a derived
	// value, so it does not drift if SimHz is ever retuned.
	LagTickMs = 16.0

	// quantizeFactor is the resolution all mutated floats are snapped
	// to after each tick, so that replays are bit-identical.
	quantizeFactor = 10000.0
)

// NovaCooldownMs is the post-fire cooldown applied after a nova burst.
func NovaCooldownMs() float64 { return 3 * FireCooldownMs }

// spawnInset is the margin kept from the arena edge when placing pickups.
const spawnInset = PickupRadius + 5

// tinyImpactProjectileTTLMs is the ttl of the cosmetic marker projectile
// left behind by an instant-rewind hit-scan.
const tinyImpactProjectileTTLMs = 50.0

// explosionEffectTTLMs / novaEffectTTLMs are the ttl of the visual
// markers left behind by bomb detonation and nova bursts.
const (
	explosionEffectTTLMs = 500.0
	novaEffectTTLMs      = 400.0
)

// DefaultRoundDuration mirrors RoundDurationMs as a time.Duration for
// callers that want a Go duration rather than a raw ms float.
const DefaultRoundDuration = 180 * time.Second
