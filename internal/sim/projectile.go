package sim

import "math"

// spawnProjectile handles a standard-weapon trigger press: it places a
// new bullet at the ship's nose and, when the input carries lag
// compensation, performs an instant rewind hit-scan across the lag
// window before the projectile is ever visible to other observers.
func spawnProjectile(w *World, ship *Ship) {
	facing := Vector2{X: math.Cos(ship.Angle), Y: math.Sin(ship.Angle)}
	spawnPos := clampIntoArena(Vector2{
		X: ship.Position.X + facing.X*(PlayerRadius+0.5),
		Y: ship.Position.Y + facing.Y*(PlayerRadius+0.5),
	})
	velocity := Vector2{X: facing.X * ProjectileSpeed, Y: facing.Y * ProjectileSpeed}
	lagMs := clamp(ship.Input.LagCompMs, 0, MaxLagCompMs)

	if lagMs <= 0 {
		w.Projectiles = append(w.Projectiles, &Projectile{
			ID:        newID(),
			OwnerID:   ship.UserID,
			Position:  spawnPos,
			Velocity:  velocity,
			TTLMs:     ProjectileTTLMs,
			Damage:    ProjectileDamage,
			Kind:      ProjectileBullet,
			LagCompMs: 0,
		})
		return
	}

	if hitAt, victim, ok := rewindHitScan(w, ship, spawnPos, velocity, lagMs); ok {
		awardDamage(ship, victim, ProjectileDamage)
		w.Projectiles = append(w.Projectiles, &Projectile{
			ID:       newID(),
			OwnerID:  ship.UserID,
			Position: hitAt,
			Velocity: Vector2{},
			TTLMs:    tinyImpactProjectileTTLMs,
			Damage:   0,
			Kind:     ProjectileBullet,
		})
		return
	}

	advanced := Vector2{
		X: spawnPos.X + velocity.X*(lagMs/1000.0),
		Y: spawnPos.Y + velocity.Y*(lagMs/1000.0),
	}
	w.Projectiles = append(w.Projectiles, &Projectile{
		ID:        newID(),
		OwnerID:   ship.UserID,
		Position:  advanced,
		Velocity:  velocity,
		TTLMs:     ProjectileTTLMs - lagMs,
		Damage:    ProjectileDamage,
		Kind:      ProjectileBullet,
		LagCompMs: lagMs,
	})
}

// rewindHitScan discretizes the lag window into 16ms substeps and, at
// each substep, tests the hypothetical projectile position against
// every other alive ship's rewound position. The first hit found wins.
func rewindHitScan(w *World, shooter *Ship, spawnPos, velocity Vector2, lagMs float64) (Vector2, *Ship, bool) {
	steps := int(math.Ceil(lagMs / LagTickMs))
	for s := 0; s < steps; s++ {
		elapsed := float64(s+1) * LagTickMs / 1000.0
		scanPos := Vector2{X: spawnPos.X + velocity.X*elapsed, Y: spawnPos.Y + velocity.Y*elapsed}

		agoMs := math.Max(0, lagMs-float64(s+1)*LagTickMs)
		for _, target := range otherAliveShips(w, shooter.UserID) {
			rewound := rewindPosition(target, agoMs)
			if math.Hypot(scanPos.X-rewound.X, scanPos.Y-rewound.Y) <= PlayerRadius+ProjectileRadius {
				return scanPos, target, true
			}
		}
	}
	return Vector2{}, nil, false
}

// updateProjectiles advances every projectile by one tick, removing
// those that expire, leave the arena, or land a hit; bombs detonate
// via any of those three removal paths.
func updateProjectiles(w *World, dtMs float64) {
	kept := w.Projectiles[:0]
	for _, p := range w.Projectiles {
		p.TTLMs -= dtMs
		if p.TTLMs <= 0 {
			detonateIfBomb(w, p)
			continue
		}

		dt := dtMs / 1000.0
		p.Position.X += p.Velocity.X * dt
		p.Position.Y += p.Velocity.Y * dt

		lo, hi := ProjectileRadius, ArenaExtent-ProjectileRadius
		if p.Position.X < lo || p.Position.X > hi || p.Position.Y < lo || p.Position.Y > hi {
			detonateIfBomb(w, p)
			continue
		}

		owner := w.Players[p.OwnerID]
		hit := false
		for _, id := range w.playerOrder {
			target := w.Players[id]
			if id == p.OwnerID || !target.Alive {
				continue
			}
			inRangeOfCurrent := math.Hypot(p.Position.X-target.Position.X, p.Position.Y-target.Position.Y) <= PlayerRadius+ProjectileRadius
			inRangeOfRewound := false
			if p.LagCompMs > 0 {
				rewound := rewindPosition(target, p.LagCompMs)
				inRangeOfRewound = math.Hypot(p.Position.X-rewound.X, p.Position.Y-rewound.Y) <= PlayerRadius+ProjectileRadius
			}
			if inRangeOfCurrent || inRangeOfRewound {
				if owner != nil {
					awardDamage(owner, target, p.Damage)
				}
				if p.Kind == ProjectileBomb {
					detonateBomb(w, p.OwnerID, p.Position)
				}
				hit = true
				break
			}
		}
		if hit {
			continue
		}

		kept = append(kept, p)
	}
	w.Projectiles = kept
}

func detonateIfBomb(w *World, p *Projectile) {
	if p.Kind == ProjectileBomb {
		detonateBomb(w, p.OwnerID, p.Position)
	}
}
