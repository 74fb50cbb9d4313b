package sim

import "math"

// resolveTerminal checks the two termination conditions in order:
// elimination (at most one ship alive) takes priority over timeout.
func resolveTerminal(w *World) {
	alive := make([]string, 0, len(w.playerOrder))
	for _, id := range w.playerOrder {
		if w.Players[id].Alive {
			alive = append(alive, id)
		}
	}

	if len(w.playerOrder) > 1 && len(alive) <= 1 {
		w.Phase = PhaseFinished
		w.WinnerIDs = alive
		w.Reason = ReasonElimination
		return
	}

	if w.RemainingMs <= 0 {
		w.Phase = PhaseFinished
		w.Reason = ReasonTimeout
		w.WinnerIDs = topHPTiedWinners(w)
	}
}

// topHPTiedWinners ranks ships by hp and returns every id tied for the
// top value within a 1e-4 tolerance.
func topHPTiedWinners(w *World) []string {
	best := math.Inf(-1)
	for _, id := range w.playerOrder {
		if hp := w.Players[id].HP; hp > best {
			best = hp
		}
	}
	var winners []string
	for _, id := range w.playerOrder {
		if math.Abs(w.Players[id].HP-best) <= 1e-4 {
			winners = append(winners, id)
		}
	}
	return winners
}
