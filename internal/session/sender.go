package session

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/voicerelay/gateway/internal/protocol"
)

var errSenderClosed = errors.New("session connection closed")

// sender serializes outbound envelope writes so envelopes from the pipeline
// are never interleaved mid-message on the wire. Once closed, all further
// sends fail fast and nothing is written to a torn-down connection.
type sender struct {
	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
}

func newSender(conn *websocket.Conn) *sender {
	return &sender{conn: conn}
}

// Send marshals and writes one envelope as a single text message.
func (s *sender) Send(env protocol.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errSenderClosed
	}
	if err = s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		// A failed write means the transport is gone; stop all future sends.
		s.closed = true
		return err
	}
	return nil
}

// Close marks the sender dead without touching the connection; the read loop
// owns the actual close.
func (s *sender) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}
