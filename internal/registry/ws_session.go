package registry

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const writeTimeout = 10 * time.Second

// WSSession adapts a websocket connection to the Session interface.
// gorilla/websocket allows only one concurrent writer, so all writes
// go through the mutex.
type WSSession struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func NewWSSession(conn *websocket.Conn) *WSSession {
	return &WSSession{conn: conn}
}

func (s *WSSession) Send(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return s.conn.WriteJSON(v)
}

func (s *WSSession) Close() error {
	return s.conn.Close()
}
