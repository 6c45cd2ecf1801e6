// broadcast/broadcast.go
package broadcast

import (
	"errors"

	"github.com/wfunc/bingo/logger"
	"github.com/wfunc/bingo/session"
)

var (
	ErrSessionNotFound = errors.New("session not found")
)

// 广播接口
type Broadcaster interface {
	SendTo(sessionIDs []string, msgID uint16, data []byte) error
}

// Delivered is reported for every frame handed to a session queue.
type Delivered func(msgID uint16, recipients int)

// 基于会话的广播器. Sends only enqueue, so a slow or dead session never
// holds up the others.
type SessionBroadcaster struct {
	sessionManager *session.Manager
	onDelivered    Delivered
}

func NewSessionBroadcaster(sessionManager *session.Manager, onDelivered Delivered) *SessionBroadcaster {
	return &SessionBroadcaster{
		sessionManager: sessionManager,
		onDelivered:    onDelivered,
	}
}

// SendTo queues the frame on each listed session. Missing sessions are
// skipped; the first failure is returned after every session was tried.
func (b *SessionBroadcaster) SendTo(sessionIDs []string, msgID uint16, data []byte) error {
	var firstErr error
	delivered := 0
	for _, id := range sessionIDs {
		s, exists := b.sessionManager.Get(id)
		if !exists {
			if firstErr == nil {
				firstErr = ErrSessionNotFound
			}
			continue
		}
		if err := s.Send(msgID, data); err != nil {
			logger.Log.Warnf("Dropping frame %d for session %s: %v", msgID, id, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		delivered++
	}
	if b.onDelivered != nil && delivered > 0 {
		b.onDelivered(msgID, delivered)
	}
	return firstErr
}
