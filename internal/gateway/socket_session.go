package gateway

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mtomcal/usion-arena-server/internal/room"
)

// socketSession wraps one gorilla/websocket connection: a buffered
// send channel plus a dedicated writer goroutine, mirroring the
// teacher's websocket_handler.go SendChan idiom (§5 suspension point
// (b): writing to a socket never blocks the caller of Send).
type socketSession struct {
	conn     *websocket.Conn
	sendChan chan []byte

	mu     sync.Mutex
	closed bool
}

var _ room.Socket = (*socketSession)(nil)

func newSocketSession(conn *websocket.Conn) *socketSession {
	return &socketSession{
		conn:     conn,
		sendChan: make(chan []byte, sendChanCap),
	}
}

// Send enqueues frame for delivery. It never blocks: a full buffer
// (an unresponsive client) drops the frame with a log line, per
// §4.5.4's "closed or mid-closing sockets are skipped silently" and
// the teacher's select-with-default backpressure handling. Sends
// after the session has closed are dropped the same way.
func (s *socketSession) Send(frame []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	select {
	case s.sendChan <- frame:
	default:
		log.Printf("gateway: dropping frame for slow/closed socket")
	}
}

// Close closes the underlying connection with a WebSocket close code
// and reason (service-defined 4001 for mid-match disconnect per §7).
func (s *socketSession) Close(code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	s.stop()
}

func (s *socketSession) stop() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	close(s.sendChan)
	s.conn.Close()
}

func (s *socketSession) writeLoop() {
	for frame := range s.sendChan {
		if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			return
		}
	}
}

// readFrame blocks for the next inbound frame, parsing it into the
// wire envelope. Malformed (non-JSON or wrong-shape) frames are
// dropped silently per §7's MalformedFrame taxonomy entry; the loop
// simply reads the next one. ok is false once the connection is
// closed or errors.
func (s *socketSession) readFrame() (inboundFrame, bool) {
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return inboundFrame{}, false
		}
		var frame inboundFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			continue
		}
		return frame, true
	}
}

func (s *socketSession) send(msgType string, payload any) {
	frame, err := json.Marshal(envelope{Type: msgType, Payload: payload})
	if err != nil {
		log.Printf("gateway: marshal %s: %v", msgType, err)
		return
	}
	s.Send(frame)
}

func (s *socketSession) sendError(code, message, reason string) {
	s.send("error", errorPayload{Code: code, Message: message, Reason: reason})
}
