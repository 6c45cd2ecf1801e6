package state

import (
	"encoding/json"

	"github.com/wfunc/bingo/logger"
	"github.com/wfunc/bingo/network"
)

const (
	PhaseWaiting  = "waiting"
	PhasePlaying  = "playing"
	PhaseFinished = "finished"
)

// WaitingState 等待玩家加入
type WaitingState struct {
	RoomStateBase
}

func NewWaitingState(room RoomContext) *WaitingState {
	return &WaitingState{RoomStateBase{ID: PhaseWaiting, Room: room}}
}

// PlayingState 游戏进行状态. Entering it is the one point where players are
// told to generate their boards.
type PlayingState struct {
	RoomStateBase
}

func NewPlayingState(room RoomContext) *PlayingState {
	return &PlayingState{RoomStateBase{ID: PhasePlaying, Room: room}}
}

func (s *PlayingState) OnEnter() {
	players := s.Room.Players()
	if len(players) == 0 {
		return
	}
	s.Room.SetActivePlayer(players[0].Name)

	logger.Log.Infof("Room %s started with %d players, %s goes first",
		s.Room.GetID(), len(players), players[0].Name)

	broadcastJSON(s.Room, network.MsgTypeGameStart, network.GameStart{
		RoomID:       s.Room.GetID(),
		ActivePlayer: players[0].Name,
		Players:      players,
		Board:        s.Room.BoardSettings(),
	})
}

// FinishedState 游戏结束
type FinishedState struct {
	RoomStateBase
}

func NewFinishedState(room RoomContext) *FinishedState {
	return &FinishedState{RoomStateBase{ID: PhaseFinished, Room: room}}
}

func (s *FinishedState) OnEnter() {
	winners := s.Room.Winners()
	won := make(map[string]bool, len(winners))
	for _, name := range winners {
		won[name] = true
	}

	var loser string
	for _, p := range s.Room.Players() {
		if !won[p.Name] {
			loser = p.Name
			break
		}
	}

	logger.Log.Infof("Room %s finished, winners %v, loser %q", s.Room.GetID(), winners, loser)

	broadcastJSON(s.Room, network.MsgTypeGameOver, network.GameOver{
		RoomID:  s.Room.GetID(),
		Winners: winners,
		Loser:   loser,
	})
}

// NewRoomStateMachine wires waiting -> playing -> finished. Playing starts only
// on a full roster and finishes once all but one player has won.
func NewRoomStateMachine(room RoomContext) *Machine {
	m := NewMachine(NewWaitingState(room), NewPlayingState(room), NewFinishedState(room))
	m.Allow(PhaseWaiting, PhasePlaying, func() bool {
		return len(room.Players()) >= room.GetMaxPlayers()
	})
	m.Allow(PhasePlaying, PhaseFinished, func() bool {
		return len(room.Winners()) >= room.GetMaxPlayers()-1
	})
	return m
}

func broadcastJSON(room RoomContext, msgID uint16, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		logger.Log.Errorf("Error marshalling message %d for room %s: %v", msgID, room.GetID(), err)
		return
	}
	if err := room.Broadcast(msgID, data); err != nil {
		logger.Log.Warnf("Broadcast %d to room %s failed: %v", msgID, room.GetID(), err)
	}
}
