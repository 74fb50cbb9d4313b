package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLagCompensatedPointBlankHit(t *testing.T) {
	w := Init([]string{"a", "b"}, 1)
	a := w.Players["a"]
	b := w.Players["b"]

	a.Position = Vector2{X: 0, Y: 50}
	a.Angle = 0
	b.Position = Vector2{X: 6, Y: 50}
	// seed some history so the rewind has something to rewind to.
	for i := 0; i < 5; i++ {
		b.History.Append(b.Position)
	}

	ApplyInput(w, "a", Input{Fire: true, FirePressed: true, LagCompMs: 80})
	Tick(w, TickIntervalMs)

	assert.Equal(t, 70.0, b.HP)
}

func TestBombDetonationDamagesOwnerAtHalfRate(t *testing.T) {
	w := Init([]string{"a", "b"}, 1)
	a := w.Players["a"]
	b := w.Players["b"]
	a.Special = WeaponBomb
	a.SpecialUses = 3
	a.Position = Vector2{X: 50, Y: 50}
	a.Angle = 0
	b.Position = Vector2{X: 51, Y: 50}

	// Detonate midway between them so both sit at the same fall-off
	// distance and only the owner's half-rate differs.
	detonateBomb(w, "a", Vector2{X: 50.5, Y: 50})

	assert.Less(t, b.HP, 100.0)
	assert.Less(t, a.HP, 100.0)
	ownerDamage := 100.0 - a.HP
	victimDamage := 100.0 - b.HP
	assert.InDelta(t, ownerDamage, victimDamage*0.5, 1.0)
}

func TestNovaFalloffWithDistance(t *testing.T) {
	w := Init([]string{"a", "b"}, 1)
	a := w.Players["a"]
	b := w.Players["b"]
	a.Position = Vector2{X: 50, Y: 50}
	b.Position = Vector2{X: 50, Y: 50 + NovaRadius}

	fireNova(w, a)

	require.Less(t, b.HP, 100.0)
	dmg := 100.0 - b.HP
	assert.InDelta(t, NovaDamage*0.5, dmg, 1e-6)
}

func TestConsumeSpecialUseRevertsToNone(t *testing.T) {
	ship := &Ship{Special: WeaponLaser, SpecialUses: 1}
	consumeSpecialUse(ship)
	assert.Equal(t, WeaponNone, ship.Special)
	assert.Equal(t, 0, ship.SpecialUses)
}
