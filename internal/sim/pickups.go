package sim

import "math"

// spawnPickups places a new pickup every PickupSpawnPeriod ticks while
// fewer than MaxSimultaneousPickups exist, using the reproducible
// pseudo-random stream derived from the room seed and current tick.
func spawnPickups(w *World) {
	if w.Tick%PickupSpawnPeriod != 0 {
		return
	}
	if len(w.Pickups) >= MaxSimultaneousPickups {
		return
	}

	r := pickupRandoms(w.Seed, w.Tick)
	span := ArenaExtent - 2*spawnInset
	pos := Vector2{
		X: spawnInset + r[0]*span,
		Y: spawnInset + r[1]*span,
	}

	types := [3]SpecialWeapon{WeaponLaser, WeaponBomb, WeaponNova}
	idx := int(math.Floor(r[2] * 3))
	if idx > 2 {
		idx = 2
	}

	w.Pickups = append(w.Pickups, &Pickup{
		ID:       newID(),
		Position: pos,
		Type:     types[idx],
		Value:    UsesPerPickup,
	})
}

// collectPickups grants the pickup's weapon to the first alive ship
// (in insertion order) whose circle overlaps it, then removes it.
func collectPickups(w *World) {
	if len(w.Pickups) == 0 {
		return
	}
	kept := w.Pickups[:0]
	for _, pickup := range w.Pickups {
		collected := false
		for _, id := range w.playerOrder {
			ship := w.Players[id]
			if !ship.Alive {
				continue
			}
			dist := math.Hypot(ship.Position.X-pickup.Position.X, ship.Position.Y-pickup.Position.Y)
			if dist <= PlayerRadius+PickupRadius {
				ship.Special = pickup.Type
				ship.SpecialUses = pickup.Value
				ship.LaserActiveMs = 0
				ship.Stats.PickupsCollected++
				collected = true
				break
			}
		}
		if !collected {
			kept = append(kept, pickup)
		}
	}
	w.Pickups = kept
}
