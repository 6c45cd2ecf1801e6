package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"

	"github.com/wfunc/bingo/board"
	"github.com/wfunc/bingo/logger"
	"github.com/wfunc/bingo/network"
)

var errJoinRejected = errors.New("join rejected")

// Bot plays one seat: it keeps its own board, calls a random remaining number
// on its turn and claims the win once its tracker reaches the threshold.
type Bot struct {
	Name   string
	RoomID string

	send    func(msgID uint16, v interface{}) error
	rng     *rand.Rand
	tracker *board.Tracker
	players []string
	joined  bool
	claimed bool
}

func NewBot(name, roomID string, rng *rand.Rand, send func(msgID uint16, v interface{}) error) *Bot {
	return &Bot{Name: name, RoomID: roomID, rng: rng, send: send}
}

func (b *Bot) Join() error {
	return b.send(network.MsgTypeJoinRoom, network.JoinRequest{Name: b.Name, Room: b.RoomID})
}

// Handle reacts to one server frame. done is true once the game is over for
// this bot.
func (b *Bot) Handle(packet *network.Packet) (done bool, err error) {
	switch packet.MsgID {
	case network.MsgTypeHeartbeat:
		return false, nil

	case network.MsgTypeRosterUpdate:
		var msg network.RosterUpdate
		if err := json.Unmarshal(packet.Data, &msg); err != nil {
			return false, err
		}
		b.joined = true
		b.setPlayers(msg.Players)
		logger.Log.Infof("Room %s: %d/%d players", msg.RoomID, len(msg.Players), msg.Capacity)

	case network.MsgTypeGameStart:
		var msg network.GameStart
		if err := json.Unmarshal(packet.Data, &msg); err != nil {
			return false, err
		}
		grid, err := board.Generate(msg.Board.GridSize, msg.Board.MaxNumber, b.rng)
		if err != nil {
			return false, err
		}
		b.tracker = board.NewTracker(grid, msg.Board.StrikesToWin)
		b.setPlayers(msg.Players)
		logger.Log.Infof("Game started, %s goes first", msg.ActivePlayer)
		if msg.ActivePlayer == b.Name {
			return false, b.play()
		}

	case network.MsgTypeTurn:
		var msg network.Turn
		if err := json.Unmarshal(packet.Data, &msg); err != nil {
			return false, err
		}
		b.setPlayers(msg.Players)
		if b.tracker == nil {
			return false, nil
		}
		res := b.tracker.Mark(msg.Number)
		if res.Won && !b.claimed {
			b.claimed = true
			logger.Log.Infof("%d strikes, claiming the win", res.Strikes)
			if err := b.send(network.MsgTypeWin, network.WinRequest{Name: b.Name, Room: b.RoomID}); err != nil {
				return false, err
			}
		}
		if msg.ActivePlayer == b.Name {
			return false, b.play()
		}

	case network.MsgTypeWinNotice:
		var msg network.WinNotice
		if err := json.Unmarshal(packet.Data, &msg); err != nil {
			return false, err
		}
		logger.Log.Infof("%s won, winners so far %v", msg.Name, msg.Winners)

	case network.MsgTypePlayerDisconnected:
		var msg network.PlayerDisconnected
		if err := json.Unmarshal(packet.Data, &msg); err != nil {
			return false, err
		}
		b.setPlayers(msg.RemainingPlayers)
		logger.Log.Infof("%s left", msg.PlayerName)
		if msg.NextActivePlayer == b.Name {
			return false, b.play()
		}

	case network.MsgTypeGameOver:
		var msg network.GameOver
		if err := json.Unmarshal(packet.Data, &msg); err != nil {
			return false, err
		}
		logger.Log.Infof("Game over, winners %v, loser %s", msg.Winners, msg.Loser)
		return true, nil

	case network.MsgTypeRoomClosed:
		var msg network.RoomClosed
		if err := json.Unmarshal(packet.Data, &msg); err != nil {
			return false, err
		}
		logger.Log.Infof("Room closed: %s", msg.Reason)
		return true, nil

	case network.MsgTypeErrorNotice:
		var msg network.ErrorNotice
		if err := json.Unmarshal(packet.Data, &msg); err != nil {
			return false, err
		}
		if !b.joined {
			return true, fmt.Errorf("%w: %s (%s)", errJoinRejected, msg.Code, msg.Message)
		}
		logger.Log.Warnf("Server error %s: %s", msg.Code, msg.Message)

	default:
		logger.Log.Debugf("Ignoring message %d", packet.MsgID)
	}
	return false, nil
}

// play calls a random number still on this bot's board and hands the turn to
// the next seat.
func (b *Bot) play() error {
	if b.tracker == nil {
		return nil
	}
	remaining := b.tracker.Board().Remaining()
	if len(remaining) == 0 {
		return nil
	}
	number := remaining[b.rng.Intn(len(remaining))]
	return b.send(network.MsgTypeNumber, network.NumberRequest{
		Number:     number,
		Room:       b.RoomID,
		NextPlayer: b.nextPlayer(),
	})
}

func (b *Bot) nextPlayer() string {
	for i, name := range b.players {
		if name == b.Name {
			return b.players[(i+1)%len(b.players)]
		}
	}
	return ""
}

func (b *Bot) setPlayers(players []network.PlayerInfo) {
	b.players = b.players[:0]
	for _, p := range players {
		b.players = append(b.players, p.Name)
	}
}
