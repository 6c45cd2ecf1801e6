// session/session.go
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/wfunc/bingo/network"
	"golang.org/x/time/rate"
)

const DefaultQueueSize = 64

var (
	ErrSessionClosed = errors.New("session closed")
	ErrSendQueueFull = errors.New("send queue full")
)

type outbound struct {
	msgID uint16
	data  []byte
}

// Session is one transport connection. Its ID is the connection identity the
// room roster refers to.
type Session struct {
	ID        string
	Conn      network.Connection
	CreatedAt time.Time

	roomID     string
	playerName string
	lastActive time.Time
	closed     bool
	outbox     chan outbound
	limiter    *rate.Limiter
	done       chan struct{}
	mutex      sync.RWMutex
}

type Option func(*Session)

// WithQueueSize bounds the number of frames waiting for the write pump.
func WithQueueSize(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.outbox = make(chan outbound, n)
		}
	}
}

// WithRateLimit caps inbound messages per second with the given burst.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(s *Session) {
		if perSecond > 0 {
			s.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
		}
	}
}

func NewSession(id string, conn network.Connection, opts ...Option) *Session {
	now := time.Now()
	s := &Session{
		ID:         id,
		Conn:       conn,
		CreatedAt:  now,
		lastActive: now,
		outbox:     make(chan outbound, DefaultQueueSize),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) GetID() string {
	return s.ID
}

// Send queues a frame for the write pump and never blocks. A session whose
// queue is full is closed; the connection itself is torn down in the
// background so a caller holding a room lock is not held up by the socket.
func (s *Session) Send(msgID uint16, data []byte) error {
	s.mutex.RLock()
	if s.closed {
		s.mutex.RUnlock()
		return ErrSessionClosed
	}
	select {
	case s.outbox <- outbound{msgID: msgID, data: data}:
		s.mutex.RUnlock()
		return nil
	default:
	}
	s.mutex.RUnlock()

	if s.shutdown() {
		go s.Conn.Close()
	}
	return ErrSendQueueFull
}

// WritePump drains the send queue onto the connection until the session
// closes, then closes the connection.
func (s *Session) WritePump() {
	for msg := range s.outbox {
		if err := s.Conn.Send(msg.msgID, msg.data); err != nil {
			s.Close()
			return
		}
	}
	s.Conn.Close()
}

func (s *Session) Ping() error {
	return s.Conn.Ping()
}

// Allow reports whether another inbound message fits the rate limit.
func (s *Session) Allow() bool {
	if s.limiter == nil {
		return true
	}
	return s.limiter.Allow()
}

func (s *Session) Touch() {
	s.mutex.Lock()
	s.lastActive = time.Now()
	s.mutex.Unlock()
}

func (s *Session) LastActive() time.Time {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.lastActive
}

// Bind records the room and player name this connection was admitted as.
func (s *Session) Bind(roomID, playerName string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.roomID = roomID
	s.playerName = playerName
}

func (s *Session) Unbind() {
	s.Bind("", "")
}

// Release drops the binding only if it still points at roomID, so a
// concurrent join into another room is not undone.
func (s *Session) Release(roomID string) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if roomID == "" || s.roomID != roomID {
		return false
	}
	s.roomID, s.playerName = "", ""
	return true
}

// Room returns the bound room id and player name, empty if unbound.
func (s *Session) Room() (roomID, playerName string) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.roomID, s.playerName
}

// Done is closed when the session closes.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Finish stops accepting frames. The write pump flushes what is already
// queued and then closes the connection.
func (s *Session) Finish() {
	s.shutdown()
}

func (s *Session) Close() error {
	if !s.shutdown() {
		return nil
	}
	return s.Conn.Close()
}

// shutdown marks the session closed once and reports whether this call did it.
func (s *Session) shutdown() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.closed {
		return false
	}
	s.closed = true
	close(s.outbox)
	close(s.done)
	return true
}

// Session管理器
type Manager struct {
	sessions map[string]*Session
	mutex    sync.RWMutex
}

func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
	}
}

func (m *Manager) Add(session *Session) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.sessions[session.ID] = session
}

func (m *Manager) Remove(sessionID string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.sessions, sessionID)
}

func (m *Manager) Get(sessionID string) (*Session, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	session, exists := m.sessions[sessionID]
	return session, exists
}

func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.sessions)
}

// All returns a snapshot of every session.
func (m *Manager) All() []*Session {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	result := make([]*Session, 0, len(m.sessions))
	for _, session := range m.sessions {
		result = append(result, session)
	}
	return result
}

// Idle returns sessions with no inbound activity for longer than maxIdle.
func (m *Manager) Idle(now time.Time, maxIdle time.Duration) []*Session {
	var result []*Session
	for _, session := range m.All() {
		if now.Sub(session.LastActive()) > maxIdle {
			result = append(result, session)
		}
	}
	return result
}
