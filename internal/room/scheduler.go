package room

import (
	"time"

	"github.com/mtomcal/usion-arena-server/internal/netstate"
	"github.com/mtomcal/usion-arena-server/internal/sim"
)

// runScheduler drives the room's fixed-step simulation at the
// configured sim rate, per §4.5.2: after each tick, the next firing is
// scheduled at max(0, targetPeriod - elapsedSinceTickStart) using a
// monotonic (real wall-clock) timer, and the dtMs passed to the
// simulation is the measured interval since the prior tick start,
// clamped to [period, 2*period]. Never more than one tick runs
// concurrently, since this goroutine is the sole caller of doTick.
func (r *Room) runScheduler() {
	defer r.wg.Done()

	simHz := r.cfg.SimHz
	if simHz <= 0 {
		simHz = 60
	}
	period := time.Second / time.Duration(simHz)

	lastTickStart := time.Now()
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-timer.C:
			tickStart := time.Now()
			elapsedSincePrior := tickStart.Sub(lastTickStart)
			lastTickStart = tickStart

			dtMs := float64(elapsedSincePrior.Milliseconds())
			periodMs := float64(period.Milliseconds())
			if dtMs < periodMs {
				dtMs = periodMs
			}
			if dtMs > 2*periodMs {
				dtMs = 2 * periodMs
			}

			terminal := r.doTick(dtMs)

			processingElapsed := time.Since(tickStart)
			next := period - processingElapsed
			if next < 0 {
				next = 0
			}
			if terminal.Terminal {
				return
			}
			timer.Reset(next)
		}
	}
}

// doTick runs the tick body (§4.5.3) once: applies the accumulated
// world mutation, emits a network frame at the configured cadence, and
// checks for termination. It never sleeps and never touches a socket's
// transport directly, so it is safe to call from tests without a real
// scheduler running.
func (r *Room) doTick(dtMs float64) sim.TerminalInfo {
	r.mu.Lock()
	if !r.running || r.finished {
		r.mu.Unlock()
		return sim.TerminalInfo{Terminal: true}
	}

	sim.Tick(r.world, dtMs)
	r.simTick = r.world.Tick
	r.netTick++

	netEvery := int64(1)
	if r.cfg.SimHz > 0 && r.cfg.NetHz > 0 {
		netEvery = int64(r.cfg.SimHz / r.cfg.NetHz)
		if netEvery < 1 {
			netEvery = 1
		}
	}

	if r.simTick%netEvery == 0 {
		r.emitNetworkFrameLocked()
	}

	info := sim.IsTerminal(r.world)
	r.mu.Unlock()

	if info.Terminal {
		// endMatch stops the scheduler and waits for it to exit, so it
		// must not run on the scheduler goroutine itself.
		go r.endMatch(info.Reason, info.WinnerIDs)
	}

	return info
}

func (r *Room) emitNetworkFrameLocked() {
	next := netstate.Project(r.world)

	snapshotEvery := int64(r.cfg.FullSnapshotIntervalNetTicks)
	if snapshotEvery < 1 {
		snapshotEvery = 1
	}

	base := map[string]any{
		"room_id":          r.id,
		"protocol_version": r.cfg.ProtocolVersion,
		"server_ts":        r.clk.NowMs(),
		"server_tick":      r.simTick,
		"ack_seq_by_player": copyUint64Map(r.ackSeq),
		"deploy_region":    r.cfg.Deploy.Region,
		"sim_hz":           r.cfg.Deploy.SimHz,
		"net_hz":           r.cfg.Deploy.NetHz,
	}

	if r.prevNet == nil || r.netTick%snapshotEvery == 0 {
		base["full_state"] = next
		r.broadcastLocked("state_snapshot", base)
	} else {
		d := netstate.BuildDelta(r.prevNet, next)
		base["changed_entities"] = d.Changed
		base["removed_entities"] = d.Removed
		r.broadcastLocked("state_delta", base)
	}

	r.prevNet = next
}

func copyUint64Map(m map[string]uint64) map[string]uint64 {
	out := make(map[string]uint64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
