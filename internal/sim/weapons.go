package sim

import "math"

// tickShipWeapons handles one ship's firing and laser-beam logic for
// the current tick: a fresh trigger press dispatches either a special
// weapon or a standard projectile (subject to fire cooldown); an
// actively-held laser continues to accumulate damage and burn time
// independent of the cooldown gate.
func tickShipWeapons(w *World, ship *Ship, dt, dtMs float64) {
	if ship.Input.FirePressed && ship.FireCooldownMs == 0 {
		fireTriggered(w, ship)
	}
	ship.Input.FirePressed = false

	if ship.Special == WeaponLaser && ship.Input.Fire && ship.SpecialUses > 0 {
		applyLaserDamage(w, ship, dt)
		ship.LaserActiveMs += dtMs
		if ship.LaserActiveMs >= LaserBurnDurationMs {
			consumeSpecialUse(ship)
			ship.LaserActiveMs = 0
		}
	}
}

func fireTriggered(w *World, ship *Ship) {
	switch ship.Special {
	case WeaponBomb:
		spawnBomb(w, ship)
		consumeSpecialUse(ship)
		ship.FireCooldownMs = FireCooldownMs * 2
	case WeaponNova:
		fireNova(w, ship)
		consumeSpecialUse(ship)
		ship.NovaCooldownMs = NovaCooldownMs()
		ship.FireCooldownMs = FireCooldownMs
	case WeaponLaser:
		// Laser fires continuously while held; a press alone spawns
		// nothing and only starts the standard fire cooldown.
		ship.FireCooldownMs = FireCooldownMs
	default:
		spawnProjectile(w, ship)
		ship.FireCooldownMs = FireCooldownMs
	}
}

// consumeSpecialUse decrements the ship's remaining special-weapon
// uses, reverting to WeaponNone once exhausted.
func consumeSpecialUse(ship *Ship) {
	ship.SpecialUses--
	if ship.SpecialUses <= 0 {
		ship.SpecialUses = 0
		ship.Special = WeaponNone
		ship.LaserActiveMs = 0
	}
}

func otherAliveShips(w *World, excludeID string) []*Ship {
	out := make([]*Ship, 0, len(w.playerOrder))
	for _, id := range w.playerOrder {
		if id == excludeID {
			continue
		}
		if s := w.Players[id]; s.Alive {
			out = append(out, s)
		}
	}
	return out
}

func awardDamage(attacker, victim *Ship, dmg float64) {
	victim.HP -= dmg
	attacker.Stats.DamageDealt += dmg
	if victim.HP <= 0 {
		victim.HP = 0
		if victim.Alive {
			victim.Alive = false
			victim.Stats.Deaths++
			attacker.Stats.Kills++
		}
	}
}

func spawnBomb(w *World, ship *Ship) {
	facing := Vector2{X: math.Cos(ship.Angle), Y: math.Sin(ship.Angle)}
	spawnPos := clampIntoArena(Vector2{
		X: ship.Position.X + facing.X*(PlayerRadius+0.5),
		Y: ship.Position.Y + facing.Y*(PlayerRadius+0.5),
	})
	proj := &Projectile{
		ID:       newID(),
		OwnerID:  ship.UserID,
		Position: spawnPos,
		Velocity: Vector2{X: facing.X * BombSpeed, Y: facing.Y * BombSpeed},
		TTLMs:    BombTTLMs,
		Damage:   BombDamage,
		Kind:     ProjectileBomb,
	}
	w.Projectiles = append(w.Projectiles, proj)
}

// detonateBomb applies the bomb's area-of-effect damage centered on
// center, including owner self-damage at half the damage the owner's
// distance from center would otherwise deal.
func detonateBomb(w *World, ownerID string, center Vector2) {
	owner := w.Players[ownerID]
	for _, id := range w.playerOrder {
		ship := w.Players[id]
		if !ship.Alive {
			continue
		}
		dist := math.Hypot(ship.Position.X-center.X, ship.Position.Y-center.Y)
		if dist > BombRadius {
			continue
		}
		falloff := 1.0 - 0.6*(dist/BombRadius) // linear fall-off to 40% at the edge
		dmg := BombDamage * falloff
		if id == ownerID {
			dmg *= 0.5
		}
		if owner != nil {
			awardDamage(owner, ship, dmg)
		}
	}
	w.Effects = append(w.Effects, &Effect{ID: newID(), Kind: EffectExplosion, Center: center, TTLMs: explosionEffectTTLMs})
}

func applyLaserDamage(w *World, ship *Ship, dt float64) {
	facing := Vector2{X: math.Cos(ship.Angle), Y: math.Sin(ship.Angle)}
	for _, target := range otherAliveShips(w, ship.UserID) {
		pos := rewindPosition(target, ship.Input.LagCompMs)
		rel := Vector2{X: pos.X - ship.Position.X, Y: pos.Y - ship.Position.Y}
		proj := rel.X*facing.X + rel.Y*facing.Y
		if proj < 0 || proj > LaserRange {
			continue
		}
		perp := math.Abs(rel.X*facing.Y - rel.Y*facing.X)
		if perp > LaserHalfWidth+PlayerRadius {
			continue
		}
		awardDamage(ship, target, LaserDPS*dt)
	}
}

func fireNova(w *World, ship *Ship) {
	for _, target := range otherAliveShips(w, ship.UserID) {
		pos := rewindPosition(target, ship.Input.LagCompMs)
		dist := math.Hypot(pos.X-ship.Position.X, pos.Y-ship.Position.Y)
		if dist > NovaRadius {
			continue
		}
		falloff := 1.0 - 0.5*(dist/NovaRadius) // linear fall-off to 50% at the edge
		awardDamage(ship, target, NovaDamage*falloff)
	}
	w.Effects = append(w.Effects, &Effect{ID: newID(), Kind: EffectNova, Center: ship.Position, TTLMs: novaEffectTTLMs})
}

func clampIntoArena(v Vector2) Vector2 {
	lo, hi := PlayerRadius, ArenaExtent-PlayerRadius
	if v.X < lo {
		v.X = lo
	} else if v.X > hi {
		v.X = hi
	}
	if v.Y < lo {
		v.Y = lo
	} else if v.Y > hi {
		v.Y = hi
	}
	return v
}
