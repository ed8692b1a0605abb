package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// MaxMessageSize bounds inbound frames.
	MaxMessageSize = 8 * 1024

	defaultQueueSize = 64
)

// Message is one encoded event queued for a session.
type Message struct {
	Type EventType
	Data []byte
}

// Session is one connected client. Events queued to it are written in order.
type Session struct {
	ID       string
	UserID   string
	IsDriver bool

	conn *websocket.Conn
	send chan Message

	closeOnce sync.Once
	done      chan struct{}
}

// NewSession wraps a websocket connection.
func NewSession(id, userID string, isDriver bool, conn *websocket.Conn) *Session {
	return newSession(id, userID, isDriver, conn, defaultQueueSize)
}

func newSession(id, userID string, isDriver bool, conn *websocket.Conn, queue int) *Session {
	return &Session{
		ID:       id,
		UserID:   userID,
		IsDriver: isDriver,
		conn:     conn,
		send:     make(chan Message, queue),
		done:     make(chan struct{}),
	}
}

// Messages exposes the outbound queue. It is closed when the session is unregistered.
func (s *Session) Messages() <-chan Message {
	return s.send
}

// Done is closed once the session has been unregistered.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) enqueue(msg Message) bool {
	select {
	case s.send <- msg:
		return true
	default:
		return false
	}
}

// close must only be called by the Hub while holding its write lock.
func (s *Session) close() {
	s.closeOnce.Do(func() {
		close(s.send)
		close(s.done)
	})
}

// WritePump drains the queue to the connection until the queue is closed,
// ctx ends or a write fails.
func (s *Session) WritePump(ctx context.Context) error {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return nil
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, msg.Data); err != nil {
				return err
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// PrepareRead sets the read limit and keeps the read deadline alive on pongs.
func (s *Session) PrepareRead() {
	s.conn.SetReadLimit(MaxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
}

// ReadMessage reads the next inbound frame.
func (s *Session) ReadMessage() ([]byte, error) {
	_, data, err := s.conn.ReadMessage()
	return data, err
}
