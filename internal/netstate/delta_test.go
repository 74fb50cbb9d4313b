package netstate

import (
	"testing"

	"github.com/mtomcal/usion-arena-server/internal/sim"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDeltaWithNoPriorSnapshotEmitsEverything(t *testing.T) {
	w := sim.Init([]string{"a", "b"}, 1)
	next := Project(w)

	d := BuildDelta(nil, next)

	assert.Empty(t, d.Removed)
	assert.Contains(t, d.Changed, "phase")
	assert.Contains(t, d.Changed, "tick")
	assert.Contains(t, d.Changed, "remainingMs")
	assert.Contains(t, d.Changed, "players")
}

func TestBuildDeltaOnlyReportsDifferences(t *testing.T) {
	w := sim.Init([]string{"a", "b"}, 1)
	prev := Project(w)
	sim.Tick(w, sim.TickIntervalMs)
	next := Project(w)

	d := BuildDelta(prev, next)

	assert.Contains(t, d.Changed, "tick")
	assert.NotContains(t, d.Changed, "phase")
}

func TestRoundTripApplyDeltaEqualsNext(t *testing.T) {
	w := sim.Init([]string{"a", "b"}, sim.SeedFromRoomID("rt-room"))
	sim.ApplyInput(w, "a", sim.Input{Thrust: 1, Turn: 0.3, Fire: true, FirePressed: true})
	prev := Project(w)

	for i := 0; i < 200; i++ {
		sim.Tick(w, sim.TickIntervalMs)
		next := Project(w)
		d := BuildDelta(prev, next)
		reconstructed := ApplyDelta(prev, d)
		require.Equal(t, next, reconstructed)
		prev = next
	}
}

func TestRemovedEntitiesReportedWhenProjectileDisappears(t *testing.T) {
	w := sim.Init([]string{"a", "b"}, 1)
	sim.ApplyInput(w, "a", sim.Input{Fire: true, FirePressed: true})
	sim.Tick(w, sim.TickIntervalMs)
	prev := Project(w)
	require.NotEmpty(t, prev.Projectiles)

	// Run until the projectile leaves the list (ttl expiry or impact).
	var next *WorldState
	for i := 0; i < 200; i++ {
		sim.Tick(w, sim.TickIntervalMs)
		next = Project(w)
		if len(next.Projectiles) < len(prev.Projectiles) {
			break
		}
	}

	d := BuildDelta(prev, next)
	assert.NotEmpty(t, d.Removed["projectiles"])
}
