package room

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/mtomcal/usion-arena-server/internal/clock"
	"github.com/mtomcal/usion-arena-server/internal/netstate"
	"github.com/mtomcal/usion-arena-server/internal/sim"
	"github.com/mtomcal/usion-arena-server/internal/webhook"
)

const maxParticipants = 2

// latencyEMAOldWeight/NewWeight implement the spec's 0.8-old/0.2-new
// exponential moving average for per-user client-to-server latency.
const (
	latencyEMAOldWeight = 0.8
	latencyEMANewWeight = 0.2
	latencyMinMs        = 0.0
	latencyMaxMs        = 120.0
	staleInputToleranceMs = 2000.0
)

// envelope is the outbound {type, payload} wire shape.
type envelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Room owns one match's lifecycle: participants, input admission, the
// deterministic simulation, and broadcast fan-out. All exported methods
// are safe for concurrent use; the simulation itself only ever advances
// from inside the tick scheduler goroutine.
type Room struct {
	id  string
	cfg Config
	clk clock.Clock

	signer   *webhook.Signer
	onEmpty  func(roomID string)

	mu sync.Mutex

	sessions        map[string]*Session // sessionID -> session
	activeSession   map[string]string   // userID -> current sessionID
	participantOrd  []string            // user ids in join order, len <= 2

	lastSeq map[string]uint64
	ackSeq  map[string]uint64
	latency map[string]float64

	world        *sim.World
	prevNet      *netstate.WorldState
	simTick      int64
	netTick      int64
	running      bool
	finished     bool

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New builds a Room bound to id, not yet running. The simulation world
// is created lazily once two participants have joined (MaybeStart).
func New(id string, cfg Config, clk clock.Clock, signer *webhook.Signer, onEmpty func(string)) *Room {
	return &Room{
		id:            id,
		cfg:           cfg,
		clk:           clk,
		signer:        signer,
		onEmpty:       onEmpty,
		sessions:      make(map[string]*Session),
		activeSession: make(map[string]string),
		lastSeq:       make(map[string]uint64),
		ackSeq:        make(map[string]uint64),
		latency:       make(map[string]float64),
	}
}

// ID returns the room's opaque id.
func (r *Room) ID() string { return r.id }

// UpsertSession registers sock under sessionID for userID, or, if
// sessionID is already bound, returns the current joined snapshot
// (idempotent reconnect) without re-registering anything.
func (r *Room) UpsertSession(sessionID, userID string, sock Socket) (JoinedInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.sessions[sessionID]; ok && existing.UserID == userID {
		return r.joinedInfoLocked(userID, true), nil
	}

	if _, known := r.activeSession[userID]; !known && len(r.participantOrd) >= maxParticipants {
		return JoinedInfo{}, ErrRoomFull
	}

	r.sessions[sessionID] = &Session{ID: sessionID, UserID: userID, Socket: sock}
	if !containsString(r.participantOrd, userID) {
		r.participantOrd = append(r.participantOrd, userID)
	}
	r.activeSession[userID] = sessionID

	info := r.joinedInfoLocked(userID, false)

	r.broadcastLocked("player_joined", map[string]any{
		"room_id":     r.id,
		"player_id":   userID,
		"player_ids":  append([]string(nil), r.participantOrd...),
		"waiting_for": maxParticipants - len(r.participantOrd),
	})

	return info, nil
}

func (r *Room) joinedInfoLocked(userID string, reconnected bool) JoinedInfo {
	return JoinedInfo{
		RoomID:      r.id,
		PlayerID:    userID,
		PlayerIDs:   append([]string(nil), r.participantOrd...),
		WaitingFor:  maxParticipants - len(r.participantOrd),
		Reconnected: reconnected,
	}
}

// RemoveSession tears down sessionID. If it was the only session for
// its user and the match is running, the room ends the match with
// reason player_disconnected. If the room has no sessions left
// afterward, it is torn down via onEmpty regardless of match state.
func (r *Room) RemoveSession(sessionID string) {
	r.mu.Lock()

	sess, ok := r.sessions[sessionID]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.sessions, sessionID)

	userID := sess.UserID
	lastForUser := r.activeSession[userID] == sessionID
	if lastForUser {
		delete(r.activeSession, userID)
	}

	r.broadcastLocked("player_left", map[string]any{
		"room_id":   r.id,
		"player_id": userID,
	})

	midMatchDrop := r.running && !r.finished && lastForUser && len(r.activeSession) < maxParticipants
	empty := len(r.sessions) == 0

	if midMatchDrop {
		survivors := make([]string, 0, len(r.activeSession))
		for uid := range r.activeSession {
			survivors = append(survivors, uid)
		}
		r.mu.Unlock()
		r.endMatch(sim.ReasonPlayerDisconnected, survivors)
		r.mu.Lock()
		for _, s := range r.sessions {
			s.Socket.Close(4001, string(sim.ReasonPlayerDisconnected))
		}
		r.sessions = make(map[string]*Session)
		r.activeSession = make(map[string]string)
		r.mu.Unlock()
		if r.onEmpty != nil {
			r.onEmpty(r.id)
		}
		return
	}

	r.mu.Unlock()
	if empty && r.onEmpty != nil {
		r.onEmpty(r.id)
	}
}

// MaybeStart starts the tick scheduler once exactly two distinct users
// have an active session and the room is not already running/finished.
func (r *Room) MaybeStart() {
	r.mu.Lock()
	if r.running || r.finished || len(r.activeSession) < maxParticipants {
		r.mu.Unlock()
		return
	}

	playerIDs := append([]string(nil), r.participantOrd...)
	r.world = sim.Init(playerIDs, sim.SeedFromRoomID(r.id))
	r.running = true
	r.stopCh = make(chan struct{})
	r.mu.Unlock()

	r.broadcast("game_start", map[string]any{
		"room_id":      r.id,
		"player_ids":   playerIDs,
		"deploy_region": r.cfg.Deploy.Region,
		"sim_hz":        r.cfg.Deploy.SimHz,
		"net_hz":        r.cfg.Deploy.NetHz,
	})

	r.wg.Add(1)
	go r.runScheduler()
}

// EnqueueInput admits one user's latest input, per §4.5.1.
func (r *Room) EnqueueInput(userID string, seq uint64, payload InputPayload) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running || r.finished {
		return newRoomNotRunningError()
	}
	if seq <= r.lastSeq[userID] {
		return newStaleInputError(r.lastSeq[userID])
	}

	r.lastSeq[userID] = seq
	r.ackSeq[userID] = seq

	lagCompMs := r.smoothedLatencyLocked(userID, payload.ClientSentAtMs)

	sim.ApplyInput(r.world, userID, sim.Input{
		Turn:        payload.Turn,
		Thrust:      payload.Thrust,
		Fire:        payload.Fire,
		FirePressed: payload.FirePressed,
		FireSeq:     payload.FireSeq,
		LagCompMs:   lagCompMs,
	})

	return nil
}

func (r *Room) smoothedLatencyLocked(userID string, clientSentAtMs *int64) float64 {
	prev := r.latency[userID]
	if clientSentAtMs == nil {
		return prev
	}

	nowMs := float64(r.clk.NowMs())
	ageMs := nowMs - float64(*clientSentAtMs)
	if ageMs < 0 {
		ageMs = -ageMs
	}
	if ageMs > staleInputToleranceMs {
		return prev
	}

	smoothed := latencyEMAOldWeight*prev + latencyEMANewWeight*ageMs
	if smoothed < latencyMinMs {
		smoothed = latencyMinMs
	}
	if smoothed > latencyMaxMs {
		smoothed = latencyMaxMs
	}
	r.latency[userID] = smoothed
	return smoothed
}

// Broadcast serializes {type, payload} once and fans it out to every
// open socket in the room, per §4.5.4.
func (r *Room) broadcast(msgType string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.broadcastLocked(msgType, payload)
}

func (r *Room) broadcastLocked(msgType string, payload any) {
	frame, err := json.Marshal(envelope{Type: msgType, Payload: payload})
	if err != nil {
		log.Printf("room %s: marshal %s: %v", r.id, msgType, err)
		return
	}
	for _, s := range r.sessions {
		s.Socket.Send(frame)
	}
}

// Stop halts the tick scheduler if running and waits for it to exit.
func (r *Room) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	close(r.stopCh)
	r.mu.Unlock()
	r.wg.Wait()
}

// endMatch builds final_stats, broadcasts match_end, submits the
// webhook (logged on failure, never altering the outcome), and stops
// the scheduler. Safe to call with the room mutex unlocked.
func (r *Room) endMatch(reason sim.TerminationReason, winnerIDs []string) {
	r.mu.Lock()
	if r.finished {
		r.mu.Unlock()
		return
	}
	r.finished = true
	participants := append([]string(nil), r.participantOrd...)
	stats := map[string]sim.Stats{}
	if r.world != nil {
		for id, ship := range r.world.Players {
			stats[id] = ship.Stats
		}
	}
	sessionID := ""
	for _, s := range r.sessions {
		sessionID = s.ID
		break
	}
	r.mu.Unlock()

	r.broadcast("match_end", map[string]any{
		"room_id":          r.id,
		"protocol_version": r.cfg.ProtocolVersion,
		"server_ts":        r.clk.NowMs(),
		"server_tick":      r.currentSimTick(),
		"winner_ids":       winnerIDs,
		"reason":           reason,
		"final_stats":      stats,
	})

	if r.signer != nil && r.cfg.APIURL != "" {
		_, err := r.signer.Submit(webhook.Result{
			RoomID:       r.id,
			SessionID:    sessionID,
			WinnerIDs:    winnerIDs,
			Participants: participants,
			Reason:       reason,
			FinalStats:   stats,
		})
		if err != nil {
			log.Printf("room %s: webhook submit failed: %v", r.id, err)
		}
	}

	r.Stop()
}

func (r *Room) currentSimTick() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.simTick
}

// Pong replies directly to sessionID with a pong frame, per §4.6.
func (r *Room) Pong(sessionID string) {
	r.mu.Lock()
	sess, ok := r.sessions[sessionID]
	tick := r.simTick
	r.mu.Unlock()
	if !ok {
		return
	}

	frame, err := json.Marshal(envelope{Type: "pong", Payload: map[string]any{
		"room_id":       r.id,
		"server_tick":   tick,
		"server_ts":     r.clk.NowMs(),
		"deploy_region": r.cfg.Deploy.Region,
		"sim_hz":        r.cfg.Deploy.SimHz,
		"net_hz":        r.cfg.Deploy.NetHz,
	}})
	if err != nil {
		log.Printf("room %s: marshal pong: %v", r.id, err)
		return
	}
	sess.Socket.Send(frame)
}

// IsEmpty reports whether the room currently has no bound sessions.
func (r *Room) IsEmpty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions) == 0
}

func containsString(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}
