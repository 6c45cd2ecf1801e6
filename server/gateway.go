package server

import (
	"encoding/json"
	"errors"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/wfunc/bingo/logger"
	"github.com/wfunc/bingo/network"
	"github.com/wfunc/bingo/room"
	"github.com/wfunc/bingo/session"
)

func (s *GameServer) handleWebSocket(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Log.Infof("Failed to upgrade connection: %v", err)
		return
	}
	s.handleConnection(conn)
}

func (s *GameServer) handleConnection(conn *websocket.Conn) {
	wsConn := network.NewWSConnection(conn)
	sess := session.NewSession(uuid.New().String(), wsConn,
		session.WithQueueSize(s.cfg.Server.SendQueueSize),
		session.WithRateLimit(s.cfg.Server.RateLimit, s.cfg.Server.RateBurst),
	)
	wsConn.OnPong = sess.Touch
	wsConn.SetHeartbeat(s.cfg.Server.HeartbeatInterval)

	s.sessionManager.Add(sess)
	s.monitor.IncOnlinePlayers()
	go sess.WritePump()

	logger.Log.Infof("New connection from %s, session ID: %s", wsConn.RemoteAddr(), sess.GetID())

	defer func() {
		logger.Log.Infof("Connection closed from %s, session ID: %s", wsConn.RemoteAddr(), sess.GetID())
		if _, err := s.coordinator.Disconnect(sess); err != nil {
			logger.Log.Warnf("Disconnect of session %s: %v", sess.GetID(), err)
		}
		s.sessionManager.Remove(sess.GetID())
		s.monitor.DecOnlinePlayers()
		sess.Close()
	}()

	// ReadPacket 阻塞; 退出靠关闭连接 (Shutdown 或 reaper), 读取随之失败
	for {
		packet, err := wsConn.ReadPacket()
		if errors.Is(err, io.ErrShortBuffer) {
			s.sendError(sess, "bad_request", "malformed frame")
			continue
		}
		if err != nil {
			return
		}
		sess.Touch()
		s.handlePacket(sess, packet)
	}
}

func (s *GameServer) handlePacket(sess *session.Session, packet *network.Packet) {
	start := time.Now()
	defer func() { s.monitor.ObserveMessageLatency(time.Since(start)) }()
	s.monitor.IncMessagesReceived()

	if packet.MsgID == network.MsgTypeHeartbeat {
		sess.Send(network.MsgTypeHeartbeat, nil)
		return
	}
	if !sess.Allow() {
		s.sendError(sess, "rate_limited", "too many messages")
		return
	}

	switch packet.MsgID {
	case network.MsgTypeJoinRoom:
		s.handleJoinRoom(sess, packet)
	case network.MsgTypeLeaveRoom:
		s.handleLeaveRoom(sess, packet)
	case network.MsgTypeNumber:
		s.handleNumber(sess, packet)
	case network.MsgTypeWin:
		s.handleWin(sess, packet)
	default:
		logger.Log.Infof("Unknown message type %d from session %s", packet.MsgID, sess.GetID())
		s.sendError(sess, "bad_request", "unknown message type")
	}
}

func (s *GameServer) handleJoinRoom(sess *session.Session, packet *network.Packet) {
	var req network.JoinRequest
	if !s.decode(sess, packet, &req) {
		return
	}
	if _, err := s.coordinator.Join(sess, req.Room, req.Name); err != nil {
		s.sendRoomError(sess, err)
	}
}

func (s *GameServer) handleLeaveRoom(sess *session.Session, packet *network.Packet) {
	var req network.LeaveRequest
	if !s.decode(sess, packet, &req) {
		return
	}
	if err := s.coordinator.Leave(sess, req.Room); err != nil {
		s.sendRoomError(sess, err)
	}
}

func (s *GameServer) handleNumber(sess *session.Session, packet *network.Packet) {
	var req network.NumberRequest
	if !s.decode(sess, packet, &req) {
		return
	}
	if _, err := s.coordinator.Turn(sess, req.Room, req.Number, req.NextPlayer); err != nil {
		s.sendRoomError(sess, err)
	}
}

// handleWin credits the player bound to this connection; a differing name in
// the request is only logged.
func (s *GameServer) handleWin(sess *session.Session, packet *network.Packet) {
	var req network.WinRequest
	if !s.decode(sess, packet, &req) {
		return
	}
	if _, bound := sess.Room(); req.Name != "" && req.Name != bound {
		logger.Log.Warnf("Session %s reported a win as %q but plays as %q", sess.GetID(), req.Name, bound)
	}
	if _, err := s.coordinator.Win(sess, req.Room); err != nil {
		s.sendRoomError(sess, err)
	}
}

func (s *GameServer) decode(sess *session.Session, packet *network.Packet, v interface{}) bool {
	if err := json.Unmarshal(packet.Data, v); err != nil {
		s.sendError(sess, "bad_request", err.Error())
		return false
	}
	return true
}

func (s *GameServer) sendRoomError(sess *session.Session, err error) {
	s.sendError(sess, room.Code(err), err.Error())
}

// sendError answers the requester only.
func (s *GameServer) sendError(sess *session.Session, code, message string) {
	data, err := json.Marshal(network.ErrorNotice{Code: code, Message: message})
	if err != nil {
		return
	}
	if err := sess.Send(network.MsgTypeErrorNotice, data); err != nil {
		logger.Log.Debugf("Error notice to session %s dropped: %v", sess.GetID(), err)
	}
}
