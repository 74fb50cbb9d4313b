package sim

import (
	"log"
	"math"
)

// Init builds a fresh World for exactly two (or fewer, for test
// convenience) player ids. The first id spawns on the left facing
// right; the second spawns on the right facing left.
func Init(playerIDs []string, seed int64) *World {
	w := &World{
		Phase:       PhasePlaying,
		Seed:        seed,
		Tick:        0,
		RemainingMs: RoundDurationMs,
		Players:     make(map[string]*Ship, len(playerIDs)),
	}

	spawns := []struct {
		pos   Vector2
		angle float64
	}{
		{Vector2{X: 18, Y: 50}, 0},
		{Vector2{X: 82, Y: 50}, math.Pi},
	}

	for i, id := range playerIDs {
		spawn := spawns[i%len(spawns)]
		ship := &Ship{
			UserID:   id,
			Position: spawn.pos,
			Angle:    spawn.angle,
			HP:       MaxHP,
			Alive:    true,
			Special:  WeaponNone,
		}
		ship.History.Append(ship.Position)
		w.Players[id] = ship
		w.playerOrder = append(w.playerOrder, id)
	}

	return w
}

// ApplyInput stores a clamped input snapshot into the named ship's
// input slot. It is a no-op if the ship is absent or dead.
func ApplyInput(w *World, userID string, in Input) {
	ship, ok := w.Players[userID]
	if !ok || !ship.Alive {
		return
	}
	ship.Input = Input{
		Turn:        clamp(in.Turn, -1, 1),
		Thrust:      clamp(in.Thrust, -1, 1),
		Fire:        in.Fire,
		FirePressed: in.FirePressed,
		FireSeq:     in.FireSeq,
		LagCompMs:   clamp(in.LagCompMs, 0, MaxLagCompMs),
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// TerminalInfo is the result of IsTerminal.
type TerminalInfo struct {
	Terminal    bool
	WinnerIDs   []string
	Reason      TerminationReason
	FinalTick   int64
	RemainingMs float64
}

// IsTerminal reports the World's current termination status without
// mutating it (terminal state, once reached by Tick, is sticky).
func IsTerminal(w *World) TerminalInfo {
	if w.Phase == PhaseFinished {
		return TerminalInfo{
			Terminal:    true,
			WinnerIDs:   append([]string(nil), w.WinnerIDs...),
			Reason:      w.Reason,
			FinalTick:   w.Tick,
			RemainingMs: w.RemainingMs,
		}
	}
	return TerminalInfo{Terminal: false, FinalTick: w.Tick, RemainingMs: w.RemainingMs}
}

// Tick advances the World by one fixed simulation step of dtMs
// milliseconds, mutating it in place. The ordering below is the
// complete, authoritative tick algorithm: decrement the clock, expire
// effects, advance every alive ship's movement and weapons in
// insertion order, advance projectiles, spawn and collect pickups,
// then resolve termination.
func Tick(w *World, dtMs float64) {
	if w.Phase == PhaseFinished {
		return
	}

	dt := dtMs / 1000.0

	w.RemainingMs -= dtMs
	if w.RemainingMs < 0 {
		w.RemainingMs = 0
	}
	w.Tick++

	tickEffects(w, dtMs)

	for _, id := range w.playerOrder {
		ship := w.Players[id]
		if !ship.Alive {
			continue
		}
		tickShipMovement(ship, dt, dtMs)
		tickShipWeapons(w, ship, dt, dtMs)
	}

	updateProjectiles(w, dtMs)
	spawnPickups(w)
	collectPickups(w)

	resolveTerminal(w)
}

func tickEffects(w *World, dtMs float64) {
	kept := w.Effects[:0]
	for _, e := range w.Effects {
		e.TTLMs -= dtMs
		if e.TTLMs > 0 {
			kept = append(kept, e)
		}
	}
	w.Effects = kept
}

func tickShipMovement(ship *Ship, dt, dtMs float64) {
	prevAngle, prevVelocity, prevPosition := ship.Angle, ship.Velocity, ship.Position

	ship.Angle = normalizeAngle(ship.Angle + ship.Input.Turn*TurnRateRadPerSec*dt)

	accel := ForwardAccel
	if ship.Input.Thrust < 0 {
		accel = ReverseAccel
	}
	facing := Vector2{X: math.Cos(ship.Angle), Y: math.Sin(ship.Angle)}
	ship.Velocity.X += facing.X * accel * ship.Input.Thrust * dt
	ship.Velocity.Y += facing.Y * accel * ship.Input.Thrust * dt

	drag := math.Exp(-DragPerSecond * dt)
	ship.Velocity.X *= drag
	ship.Velocity.Y *= drag

	if speed := math.Hypot(ship.Velocity.X, ship.Velocity.Y); speed > MaxSpeed {
		scale := MaxSpeed / speed
		ship.Velocity.X *= scale
		ship.Velocity.Y *= scale
	}

	newPos := Vector2{
		X: ship.Position.X + ship.Velocity.X*dt,
		Y: ship.Position.Y + ship.Velocity.Y*dt,
	}
	lo, hi := PlayerRadius, ArenaExtent-PlayerRadius
	if newPos.X < lo {
		newPos.X = lo
		ship.Velocity.X = 0
	} else if newPos.X > hi {
		newPos.X = hi
		ship.Velocity.X = 0
	}
	if newPos.Y < lo {
		newPos.Y = lo
		ship.Velocity.Y = 0
	} else if newPos.Y > hi {
		newPos.Y = hi
		ship.Velocity.Y = 0
	}
	ship.Position = newPos

	// Last-resort safety net before the tick's result reaches the
	// broadcast path (§7: SimulationPanic must not occur): a NaN/Inf
	// angle, position, or velocity is a simulation defect, logged and
	// clamped to the ship's last-known-good value rather than allowed
	// to propagate and corrupt the quantized, wire-serialized state.
	if sanitized, bad := sanitize(ship.Angle, prevAngle); bad {
		log.Printf("sim: ship %s angle was NaN/Inf, clamped to last-known-good", ship.UserID)
		ship.Angle = sanitized
	}
	if sanitized, bad := sanitizeVec(ship.Velocity, prevVelocity); bad {
		log.Printf("sim: ship %s velocity was NaN/Inf, clamped to last-known-good", ship.UserID)
		ship.Velocity = sanitized
	}
	if sanitized, bad := sanitizeVec(ship.Position, prevPosition); bad {
		log.Printf("sim: ship %s position was NaN/Inf, clamped to last-known-good", ship.UserID)
		ship.Position = sanitized
	}

	ship.Position = quantizeVec(ship.Position)
	ship.Velocity = quantizeVec(ship.Velocity)
	ship.Angle = quantize(ship.Angle)

	ship.History.Append(ship.Position)

	ship.FireCooldownMs = math.Max(0, ship.FireCooldownMs-dtMs)
	ship.NovaCooldownMs = math.Max(0, ship.NovaCooldownMs-dtMs)
}

func normalizeAngle(a float64) float64 {
	for a > math.Pi {
		a -= 2 * math.Pi
	}
	for a < -math.Pi {
		a += 2 * math.Pi
	}
	return a
}
