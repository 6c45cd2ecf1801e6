// state/interfaces.go
package state

import "github.com/wfunc/bingo/network"

// RoomContext defines what the room states need from a Room.
// Implementations are called with the room lock already held.
type RoomContext interface {
	GetID() string
	GetMaxPlayers() int
	Players() []network.PlayerInfo
	Winners() []string
	BoardSettings() network.BoardSettings
	SetActivePlayer(name string)
	Broadcast(msgID uint16, data []byte) error
}
