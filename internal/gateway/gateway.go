// Package gateway implements the Connection Gateway (§4.6): socket
// upgrade on /ws, token verification with a pre-auth frame buffer,
// claim binding, and dispatch by message type into the Room Registry.
// Grounded on the teacher's internal/network/websocket_handler.go
// (gorilla/websocket upgrade, a buffered SendChan plus a dedicated
// writer goroutine, a JSON envelope read loop dispatching on
// msg.Type), adapted to add token verification ahead of dispatch and
// a bounded pre-auth buffer for frames that arrive before it
// completes (§5 suspension point (c): token verification is network
// I/O and must not block other sessions).
package gateway

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/mtomcal/usion-arena-server/internal/auth"
	"github.com/mtomcal/usion-arena-server/internal/room"
)

// preAuthBufferCap bounds how many inbound frames are queued while a
// session's token verification is outstanding, so a client that floods
// frames before authenticating cannot exhaust memory.
const preAuthBufferCap = 64

// sendChanCap is the writer goroutine's outbound buffer. A client slow
// enough to fill it is treated as unresponsive; its frames are dropped
// silently per §4.5.4, mirroring the teacher's SendChan idiom.
const sendChanCap = 256

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// inboundFrame is the shape of every inbound control message (§6):
// {type, room_id?, seq, ts, session_id?, protocol_version?, payload}.
type inboundFrame struct {
	Type            string          `json:"type"`
	RoomID          string          `json:"room_id"`
	Seq             uint64          `json:"seq"`
	Ts              int64           `json:"ts"`
	SessionID       string          `json:"session_id"`
	ProtocolVersion string          `json:"protocol_version"`
	Payload         json.RawMessage `json:"payload"`
}

// inputPayload is the wire shape of an `input` message's payload field.
// Actual action data is found at payload.action_data, falling back to
// payload itself when action_data is absent (§4.6).
type inputPayload struct {
	ActionData *actionData `json:"action_data"`
	actionData
}

type actionData struct {
	Turn           float64 `json:"turn"`
	Thrust         float64 `json:"thrust"`
	Fire           bool    `json:"fire"`
	FirePressed    bool    `json:"fire_pressed"`
	FireSeq        uint64  `json:"fire_seq"`
	ClientSentAtMs *int64  `json:"client_sent_at_ms"`
}

func (p inputPayload) resolve() actionData {
	if p.ActionData != nil {
		return *p.ActionData
	}
	return p.actionData
}

// errorPayload is the `error` frame's payload shape (§4.6/§6).
type errorPayload struct {
	Code       string `json:"code"`
	Message    string `json:"message,omitempty"`
	Reason     string `json:"reason,omitempty"`
	ExpectedGt uint64 `json:"expectedGt,omitempty"`
}

// envelope is the outbound {type, payload} wire shape.
type envelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Config parameterizes a Gateway: the token verification contract
// (§4.1) plus the static deploy profile every outbound frame carries
// (§4.5.3/§4.6).
type Config struct {
	ExpectedIssuer         string
	ExpectedAudiencePrefix string
	ExpectedServiceID      string

	ProtocolVersion string
	DeployRegion    string
	SimHz           int
	NetHz           int
}

// Gateway upgrades sockets on /ws and dispatches authenticated frames
// into the Room Registry.
type Gateway struct {
	registry *room.Registry
	verifier *auth.Verifier
	cfg      Config
}

// New builds a Gateway backed by registry and verifier.
func New(registry *room.Registry, verifier *auth.Verifier, cfg Config) *Gateway {
	return &Gateway{registry: registry, verifier: verifier, cfg: cfg}
}

// verifyResult carries the outcome of the background token-verification
// call back to the session's dispatch loop.
type verifyResult struct {
	claims auth.ClaimSet
	err    error
}

// ServeHTTP upgrades the request to a WebSocket connection and runs
// the per-socket session loop. It is wired at exactly the /ws path;
// any other path returns 404 before this handler is ever reached
// (enforced by the caller's mux registration, §4.6).
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("gateway: upgrade failed: %v", err)
		return
	}

	sess := newSocketSession(conn)
	go sess.writeLoop()
	defer sess.stop()

	done := make(chan struct{})
	defer close(done)

	token := r.URL.Query().Get("token")
	if token == "" {
		sess.sendError("NO_TOKEN", "", "")
		return
	}

	// Reading starts immediately, in parallel with verification (§5
	// suspension point (c): verification is network I/O to the key-set
	// endpoint and must not stall the session's own socket reads).
	// Frames that arrive before the result comes back are held in a
	// bounded pre-auth buffer (§3 Session: "auth complete" bool plus a
	// finite pre-auth buffer of deferred frames) and replayed in
	// arrival order the instant verification succeeds.
	frameCh := make(chan inboundFrame)
	go func() {
		defer close(frameCh)
		for {
			frame, ok := sess.readFrame()
			if !ok {
				return
			}
			select {
			case frameCh <- frame:
			case <-done:
				return
			}
		}
	}()

	var (
		userID, roomID, sessionID string
		boundRoom                 *room.Room
		authComplete              bool
		preAuth                   []inboundFrame
	)

	resultCh := make(chan verifyResult, 1)
	go func() {
		claims, err := g.verifier.Verify(token, auth.VerifyOptions{
			ExpectedIssuer:         g.cfg.ExpectedIssuer,
			ExpectedAudiencePrefix: g.cfg.ExpectedAudiencePrefix,
			ExpectedServiceID:      g.cfg.ExpectedServiceID,
			ExpectedRoomID:         roomID,
		})
		resultCh <- verifyResult{claims: claims, err: err}
	}()

	for {
		select {
		case res := <-resultCh:
			resultCh = nil // already consumed; never selected again
			if res.err != nil {
				sess.sendError("INVALID_TOKEN", res.err.Error(), "")
				if boundRoom != nil {
					boundRoom.RemoveSession(sessionID)
				}
				return
			}
			userID = res.claims.Subject
			roomID = res.claims.RoomID
			sessionID = res.claims.SessionID
			if sessionID == "" {
				sessionID = uuid.NewString()
			}
			authComplete = true
			for _, buffered := range preAuth {
				boundRoom = g.dispatch(sess, buffered, userID, &roomID, boundRoom, sessionID)
			}
			preAuth = nil

		case frame, ok := <-frameCh:
			if !ok {
				if boundRoom != nil {
					boundRoom.RemoveSession(sessionID)
				}
				return
			}
			if !authComplete {
				if len(preAuth) < preAuthBufferCap {
					preAuth = append(preAuth, frame)
				}
				continue
			}
			if frame.Type == "leave" {
				if boundRoom != nil {
					boundRoom.RemoveSession(sessionID)
				}
				return
			}
			boundRoom = g.dispatch(sess, frame, userID, &roomID, boundRoom, sessionID)
		}
	}
}

// dispatch handles one post-auth frame by msg.type (§4.6) and returns
// the (possibly newly bound) room for this session. "leave" is handled
// by the caller for the live read path (it terminates the session
// loop); if replayed from the pre-auth buffer it is treated here as a
// plain RemoveSession with no further effect on the loop.
func (g *Gateway) dispatch(sess *socketSession, frame inboundFrame, userID string, roomID *string, boundRoom *room.Room, sessionID string) *room.Room {
	switch frame.Type {
	case "join":
		// The room is always the claim-bound value verified at connect
		// time (§4.6 step 3); a join frame's own room_id, if any, is
		// ignored rather than letting a client redirect itself into an
		// arbitrary room it was never issued a token for.
		r := g.registry.GetOrCreate(*roomID)
		info, err := r.UpsertSession(sessionID, userID, sess)
		if err != nil {
			sess.sendError("ROOM_FULL", err.Error(), "")
			return boundRoom
		}
		sess.send("joined", g.joinedPayload(info))
		if !info.Reconnected {
			r.MaybeStart()
		}
		return r

	case "input":
		if boundRoom == nil {
			sess.sendError("INPUT_REJECTED", "", string(room.ReasonRoomNotRunning))
			return boundRoom
		}
		var payload inputPayload
		if err := json.Unmarshal(frame.Payload, &payload); err != nil {
			return boundRoom // MalformedFrame: dropped silently, not surfaced (§7)
		}
		data := payload.resolve()
		err := boundRoom.EnqueueInput(userID, frame.Seq, room.InputPayload{
			Turn:           data.Turn,
			Thrust:         data.Thrust,
			Fire:           data.Fire,
			FirePressed:    data.FirePressed,
			FireSeq:        data.FireSeq,
			ClientSentAtMs: data.ClientSentAtMs,
		})
		if err != nil {
			sess.sendInputRejected(err)
		}
		return boundRoom

	case "ping":
		if boundRoom != nil {
			boundRoom.Pong(sessionID)
		}
		return boundRoom

	case "leave":
		if boundRoom != nil {
			boundRoom.RemoveSession(sessionID)
		}
		return boundRoom

	default:
		// Unknown types are ignored (§4.6).
		return boundRoom
	}
}

func (g *Gateway) joinedPayload(info room.JoinedInfo) map[string]any {
	return map[string]any{
		"room_id":       info.RoomID,
		"player_id":     info.PlayerID,
		"player_ids":    info.PlayerIDs,
		"waiting_for":   info.WaitingFor,
		"deploy_region": g.cfg.DeployRegion,
		"sim_hz":        g.cfg.SimHz,
		"net_hz":        g.cfg.NetHz,
	}
}

// sendInputRejected builds the {code: INPUT_REJECTED, reason, expectedGt?}
// error payload (§4.6/§6) from a room.InputRejectedError.
func (s *socketSession) sendInputRejected(err error) {
	ire, ok := err.(*room.InputRejectedError)
	if !ok {
		s.send("error", errorPayload{Code: "INPUT_REJECTED", Reason: "Unknown"})
		return
	}
	payload := errorPayload{Code: "INPUT_REJECTED", Reason: string(ire.Reason)}
	if ire.HasExpectedGt {
		payload.ExpectedGt = ire.ExpectedGt
	}
	s.send("error", payload)
}
