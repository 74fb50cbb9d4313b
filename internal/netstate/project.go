// Package netstate projects the simulation's internal World into the
// shape sent over the wire, and computes/apply diffs between two such
// projections. Grounded on the teacher's internal/network/delta_tracker.go
// idiom of "track the last-sent shape and diff against it", adapted from
// per-client threshold dirty-checking to an exact, pure comparison over
// two full projected snapshots (see delta.go).
package netstate

import "github.com/mtomcal/usion-arena-server/internal/sim"

// Ship is the network-visible projection of sim.Ship: position history
// and per-input transient fields are server-only and stripped.
type Ship struct {
	Position sim.Vector2   `json:"position"`
	Velocity sim.Vector2   `json:"velocity"`
	Angle    float64       `json:"angle"`
	HP       float64       `json:"hp"`
	Alive    bool          `json:"alive"`
	Special  sim.SpecialWeapon `json:"special"`
	SpecialUses int        `json:"specialUses"`
	Stats    sim.Stats     `json:"stats"`
}

// Projectile is the network-visible projection of sim.Projectile.
type Projectile struct {
	ID       string            `json:"id"`
	OwnerID  string            `json:"ownerId"`
	Position sim.Vector2       `json:"position"`
	Velocity sim.Vector2       `json:"velocity"`
	Kind     sim.ProjectileKind `json:"kind"`
}

// Pickup is the network-visible projection of sim.Pickup.
type Pickup struct {
	ID       string            `json:"id"`
	Position sim.Vector2       `json:"position"`
	Type     sim.SpecialWeapon `json:"type"`
	Value    int               `json:"value"`
}

// Effect is the network-visible projection of sim.Effect.
type Effect struct {
	ID     string         `json:"id"`
	Kind   sim.EffectKind `json:"kind"`
	Center sim.Vector2    `json:"center"`
	TTLMs  float64        `json:"ttlMs"`
}

// WorldState is the complete network-visible projection of a World at
// one instant, used both as the "full_state" payload of a snapshot
// frame and as the input/output of BuildDelta/ApplyDelta.
type WorldState struct {
	Phase       sim.Phase              `json:"phase"`
	Tick        int64                  `json:"tick"`
	RemainingMs float64                `json:"remainingMs"`
	Players     map[string]Ship        `json:"players"`
	Projectiles map[string]Projectile  `json:"projectiles"`
	Pickups     map[string]Pickup      `json:"pickups"`
	Effects     map[string]Effect      `json:"effects"`
}

// Project builds the network-visible snapshot of a simulation World.
func Project(w *sim.World) *WorldState {
	ns := &WorldState{
		Phase:       w.Phase,
		Tick:        w.Tick,
		RemainingMs: w.RemainingMs,
		Players:     make(map[string]Ship, len(w.Players)),
		Projectiles: make(map[string]Projectile, len(w.Projectiles)),
		Pickups:     make(map[string]Pickup, len(w.Pickups)),
		Effects:     make(map[string]Effect, len(w.Effects)),
	}
	for id, s := range w.Players {
		ns.Players[id] = Ship{
			Position:    s.Position,
			Velocity:    s.Velocity,
			Angle:       s.Angle,
			HP:          s.HP,
			Alive:       s.Alive,
			Special:     s.Special,
			SpecialUses: s.SpecialUses,
			Stats:       s.Stats,
		}
	}
	for _, p := range w.Projectiles {
		ns.Projectiles[p.ID] = Projectile{ID: p.ID, OwnerID: p.OwnerID, Position: p.Position, Velocity: p.Velocity, Kind: p.Kind}
	}
	for _, p := range w.Pickups {
		ns.Pickups[p.ID] = Pickup{ID: p.ID, Position: p.Position, Type: p.Type, Value: p.Value}
	}
	for _, e := range w.Effects {
		ns.Effects[e.ID] = Effect{ID: e.ID, Kind: e.Kind, Center: e.Center, TTLMs: e.TTLMs}
	}
	return ns
}
