package netstate

import "github.com/mtomcal/usion-arena-server/internal/sim"

// Delta is the result of BuildDelta: per-tick changed and removed
// entities, keyed the same way the outbound state_delta frame is.
type Delta struct {
	Changed map[string]any      `json:"changed_entities"`
	Removed map[string][]string `json:"removed_entities"`
}

// BuildDelta computes the diff between two consecutive network
// projections. When prev is nil, everything in next is reported as
// changed and nothing is reported as removed, matching the "no prior
// snapshot" rule for a fresh state_snapshot frame's first delta.
func BuildDelta(prev, next *WorldState) Delta {
	changed := map[string]any{}
	removed := map[string][]string{}

	if prev == nil {
		changed["phase"] = next.Phase
		changed["tick"] = next.Tick
		changed["remainingMs"] = next.RemainingMs
		if len(next.Players) > 0 {
			changed["players"] = next.Players
		}
		if len(next.Projectiles) > 0 {
			changed["projectiles"] = next.Projectiles
		}
		if len(next.Pickups) > 0 {
			changed["pickups"] = next.Pickups
		}
		if len(next.Effects) > 0 {
			changed["effects"] = next.Effects
		}
		return Delta{Changed: changed, Removed: removed}
	}

	if prev.Phase != next.Phase {
		changed["phase"] = next.Phase
	}
	if prev.Tick != next.Tick {
		changed["tick"] = next.Tick
	}
	if prev.RemainingMs != next.RemainingMs {
		changed["remainingMs"] = next.RemainingMs
	}

	if patch := diffPlayers(prev.Players, next.Players); len(patch) > 0 {
		changed["players"] = patch
	}

	if c, r := diffProjectiles(prev.Projectiles, next.Projectiles); len(c) > 0 || len(r) > 0 {
		if len(c) > 0 {
			changed["projectiles"] = c
		}
		if len(r) > 0 {
			removed["projectiles"] = r
		}
	}

	if c, r := diffPickups(prev.Pickups, next.Pickups); len(c) > 0 || len(r) > 0 {
		if len(c) > 0 {
			changed["pickups"] = c
		}
		if len(r) > 0 {
			removed["pickups"] = r
		}
	}

	if c, r := diffEffects(prev.Effects, next.Effects); len(c) > 0 || len(r) > 0 {
		if len(c) > 0 {
			changed["effects"] = c
		}
		if len(r) > 0 {
			removed["effects"] = r
		}
	}

	return Delta{Changed: changed, Removed: removed}
}

func diffPlayers(prev, next map[string]Ship) map[string]Ship {
	patch := map[string]Ship{}
	for id, n := range next {
		if p, ok := prev[id]; !ok || p != n {
			patch[id] = n
		}
	}
	return patch
}

func diffProjectiles(prev, next map[string]Projectile) (map[string]Projectile, []string) {
	changed := map[string]Projectile{}
	for id, n := range next {
		if p, ok := prev[id]; !ok || p != n {
			changed[id] = n
		}
	}
	var removed []string
	for id := range prev {
		if _, ok := next[id]; !ok {
			removed = append(removed, id)
		}
	}
	return changed, removed
}

func diffPickups(prev, next map[string]Pickup) (map[string]Pickup, []string) {
	changed := map[string]Pickup{}
	for id, n := range next {
		if p, ok := prev[id]; !ok || p != n {
			changed[id] = n
		}
	}
	var removed []string
	for id := range prev {
		if _, ok := next[id]; !ok {
			removed = append(removed, id)
		}
	}
	return changed, removed
}

func diffEffects(prev, next map[string]Effect) (map[string]Effect, []string) {
	changed := map[string]Effect{}
	for id, n := range next {
		if p, ok := prev[id]; !ok || p != n {
			changed[id] = n
		}
	}
	var removed []string
	for id := range prev {
		if _, ok := next[id]; !ok {
			removed = append(removed, id)
		}
	}
	return changed, removed
}

// ApplyDelta reconstructs the next WorldState from prev and a Delta
// produced in-process by BuildDelta, used by the round-trip property:
// ApplyDelta(prev, BuildDelta(prev, next)) == next. It is not meant to
// decode a Delta that has round-tripped through JSON on the wire: the
// client side of that boundary is out of scope for this server.
func ApplyDelta(prev *WorldState, d Delta) *WorldState {
	next := &WorldState{
		Phase:       prev.Phase,
		Tick:        prev.Tick,
		RemainingMs: prev.RemainingMs,
		Players:     cloneShips(prev.Players),
		Projectiles: cloneProjectiles(prev.Projectiles),
		Pickups:     clonePickups(prev.Pickups),
		Effects:     cloneEffects(prev.Effects),
	}

	if v, ok := d.Changed["phase"]; ok {
		next.Phase = v.(sim.Phase)
	}
	if v, ok := d.Changed["tick"]; ok {
		next.Tick = v.(int64)
	}
	if v, ok := d.Changed["remainingMs"]; ok {
		next.RemainingMs = v.(float64)
	}
	if v, ok := d.Changed["players"]; ok {
		for id, ship := range v.(map[string]Ship) {
			next.Players[id] = ship
		}
	}
	if v, ok := d.Changed["projectiles"]; ok {
		for id, p := range v.(map[string]Projectile) {
			next.Projectiles[id] = p
		}
	}
	for _, id := range d.Removed["projectiles"] {
		delete(next.Projectiles, id)
	}
	if v, ok := d.Changed["pickups"]; ok {
		for id, p := range v.(map[string]Pickup) {
			next.Pickups[id] = p
		}
	}
	for _, id := range d.Removed["pickups"] {
		delete(next.Pickups, id)
	}
	if v, ok := d.Changed["effects"]; ok {
		for id, e := range v.(map[string]Effect) {
			next.Effects[id] = e
		}
	}
	for _, id := range d.Removed["effects"] {
		delete(next.Effects, id)
	}

	return next
}

func cloneShips(m map[string]Ship) map[string]Ship {
	out := make(map[string]Ship, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneProjectiles(m map[string]Projectile) map[string]Projectile {
	out := make(map[string]Projectile, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func clonePickups(m map[string]Pickup) map[string]Pickup {
	out := make(map[string]Pickup, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneEffects(m map[string]Effect) map[string]Effect {
	out := make(map[string]Effect, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
