// Package room implements the Room Runtime and Room Registry: per-match
// session bookkeeping, input admission, the self-correcting 60Hz tick
// scheduler, delta/snapshot broadcast, and termination handling.
// Grounded on the teacher's internal/game/room.go + match.go (mutex-guarded
// Room/RoomManager, SendChan-per-player fan-out with recover-guarded
// non-blocking sends) and internal/game/gameserver.go (ticker-driven tick
// loop under a context.Context + sync.WaitGroup), generalized from an
// open-ended multi-room deathmatch lobby to the spec's lazily-created,
// exactly-two-participant room with a deterministic simulation core.
package room

import (
	"errors"

	"github.com/mtomcal/usion-arena-server/internal/sim"
)

// Socket is the room's view of a connected client's writer side. The
// Connection Gateway supplies the concrete (gorilla/websocket-backed)
// implementation; the room never touches the transport directly.
type Socket interface {
	// Send enqueues a frame for delivery. It must never block the
	// caller; implementations drop the frame (and log) on backpressure
	// or a closed connection, mirroring the teacher's SendChan-with-
	// default-case idiom.
	Send(frame []byte)
	// Close closes the underlying connection with the given WebSocket
	// close code and reason.
	Close(code int, reason string)
}

// Session is a single connected socket's binding to a room and user.
type Session struct {
	ID     string
	UserID string
	Socket Socket
}

// InputPayload is the wire shape of an `input` message's payload, before
// the room's admission logic turns it into a sim.Input.
type InputPayload struct {
	Turn            float64
	Thrust          float64
	Fire            bool
	FirePressed     bool
	FireSeq         uint64
	ClientSentAtMs  *int64
}

// DeployProfile is the static per-process info every outbound frame
// carries (§4.5.3/§4.6): deployment region and the configured tick rates.
type DeployProfile struct {
	Region string
	SimHz  int
	NetHz  int
}

// Config bundles the per-room tunables sourced from process config.
type Config struct {
	SimHz                        int
	NetHz                        int
	FullSnapshotIntervalNetTicks int
	ProtocolVersion              string
	Deploy                       DeployProfile

	ServiceID     string
	APIURL        string
	SigningKeyID  string
	SigningSecret string
}

// JoinedInfo is returned by UpsertSession, shaping the `joined` reply.
type JoinedInfo struct {
	RoomID       string
	PlayerID     string
	PlayerIDs    []string
	WaitingFor   int
	Reconnected  bool
}

var (
	// ErrRoomFull is returned by UpsertSession when a third distinct
	// user id attempts to join a room that already has two participants.
	ErrRoomFull = errors.New("room: full")
	// ErrRoomNotRunning names the not-yet-running rejection. EnqueueInput
	// itself reports it as an *InputRejectedError with ReasonRoomNotRunning.
	ErrRoomNotRunning = errors.New("room: not running")
	// ErrStaleInput names the non-monotone-seq rejection. EnqueueInput
	// itself reports it as an *InputRejectedError with ReasonStaleInput.
	ErrStaleInput = errors.New("room: stale input")
)

// RejectionReason names the `error` payload reason for a rejected input.
type RejectionReason string

const (
	ReasonRoomNotRunning RejectionReason = "RoomNotRunning"
	ReasonStaleInput     RejectionReason = "StaleInput"
)

// InputRejectedError carries enough detail to build the gateway's
// {code: "INPUT_REJECTED", reason, expectedGt?} error payload.
type InputRejectedError struct {
	Reason     RejectionReason
	ExpectedGt uint64
	HasExpectedGt bool
}

func (e *InputRejectedError) Error() string { return string(e.Reason) }

func newStaleInputError(lastSeq uint64) *InputRejectedError {
	return &InputRejectedError{Reason: ReasonStaleInput, ExpectedGt: lastSeq, HasExpectedGt: true}
}

func newRoomNotRunningError() *InputRejectedError {
	return &InputRejectedError{Reason: ReasonRoomNotRunning}
}

// finalStats names the per-player record carried in match_end's
// final_stats; endMatch builds that map from sim.Stats directly.
type finalStats = sim.Stats
