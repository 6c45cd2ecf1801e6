// room/room.go
package room

import (
	"encoding/json"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/wfunc/bingo/logger"
	"github.com/wfunc/bingo/network"
	"github.com/wfunc/bingo/state"
)

// Player 是房间里的一个玩家，由一个连接持有
type Player struct {
	Name         string
	ConnectionID string
	JoinedAt     time.Time
}

// Settings are fixed for every room a Manager creates.
type Settings struct {
	MinNameLength int
	MaxNameLength int
	Board         network.BoardSettings
}

// Snapshot is a copy of a room's state taken under its lock.
type Snapshot struct {
	ID           string
	Capacity     int
	Phase        string
	Players      []network.PlayerInfo
	Winners      []string
	ActivePlayer string
	CreatedAt    time.Time
	StartedAt    time.Time
	LastActivity time.Time
}

// AdmitResult is returned by a successful admission.
type AdmitResult struct {
	Player  Player
	Started bool
	Room    Snapshot
}

// TurnResult is returned by a turn action.
type TurnResult struct {
	Player       string
	Number       int
	ActivePlayer string
	HintAccepted bool
}

// WinResult is returned by a win report.
type WinResult struct {
	Winner    string
	Duplicate bool
	Finished  bool
	Room      Snapshot
}

// DepartResult is returned when a connection leaves the roster.
type DepartResult struct {
	Player     Player
	Index      int
	Empty      bool
	NextActive string
	Room       Snapshot
}

// Room 是游戏房间的核心结构. Every exported operation is atomic under the
// room mutex, and frames are enqueued before the mutex is released so all
// members observe them in emission order.
type Room struct {
	ID        string
	Capacity  int
	CreatedAt time.Time

	settings     Settings
	roster       []Player
	winners      []string
	activePlayer string
	startedAt    time.Time
	lastActivity time.Time
	closed       bool
	machine      *state.Machine
	broadcaster  Broadcaster
	now          func() time.Time
	mutex        sync.Mutex
}

// NewRoom 创建一个新房间
func NewRoom(id string, capacity int, settings Settings, broadcaster Broadcaster, now func() time.Time) *Room {
	if now == nil {
		now = time.Now
	}
	created := now()
	r := &Room{
		ID:           id,
		Capacity:     capacity,
		CreatedAt:    created,
		lastActivity: created,
		settings:     settings,
		roster:       make([]Player, 0, capacity),
		broadcaster:  broadcaster,
		now:          now,
	}
	r.machine = state.NewRoomStateMachine(&lockedRoom{r})
	return r
}

// Admit appends a player to the roster. The capacity check and the append
// happen under one lock so concurrent joins can never overfill the room.
func (r *Room) Admit(name, connectionID string) (AdmitResult, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.closed {
		return AdmitResult{}, ErrStaleReference
	}
	name, ok := r.validName(name)
	if !ok {
		return AdmitResult{}, ErrInvalidName
	}
	if len(r.roster) >= r.Capacity {
		return AdmitResult{}, ErrRoomFull
	}
	if r.phase() != state.PhaseWaiting {
		return AdmitResult{}, ErrGameInProgress
	}
	for _, p := range r.roster {
		if p.Name == name {
			return AdmitResult{}, ErrNameTaken
		}
		if p.ConnectionID == connectionID {
			return AdmitResult{}, ErrAlreadyInRoom
		}
	}

	player := Player{Name: name, ConnectionID: connectionID, JoinedAt: r.now()}
	r.roster = append(r.roster, player)
	r.lastActivity = player.JoinedAt

	logger.Log.Infof("Player %s joined room %s (%d/%d)", name, r.ID, len(r.roster), r.Capacity)
	r.broadcastRoster()

	started := false
	if len(r.roster) == r.Capacity {
		if err := r.machine.Advance(state.PhasePlaying); err != nil {
			logger.Log.Errorf("Room %s could not start: %v", r.ID, err)
		} else {
			r.startedAt = r.now()
			started = true
		}
	}

	return AdmitResult{Player: player, Started: started, Room: r.snapshot()}, nil
}

// PlayTurn records a called number and hands the turn on. The hint is used
// only when it names a current roster member, otherwise the player after the
// active one takes the turn.
func (r *Room) PlayTurn(connectionID string, number int, hint string) (TurnResult, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.closed {
		return TurnResult{}, ErrStaleReference
	}
	if r.phase() != state.PhasePlaying {
		return TurnResult{}, ErrNotPlaying
	}
	idx := r.indexOf(connectionID)
	if idx < 0 {
		return TurnResult{}, ErrPlayerNotFound
	}

	next, accepted := r.nextPlayer(hint)
	r.activePlayer = next
	r.lastActivity = r.now()

	logger.Log.Debugf("Room %s: %s called %d, next %s (hint %q accepted=%t)",
		r.ID, r.roster[idx].Name, number, next, hint, accepted)

	r.broadcast(r.connectionIDs(""), network.MsgTypeTurn, network.Turn{
		RoomID:       r.ID,
		ActivePlayer: next,
		Number:       number,
		Players:      r.playerInfos(),
	})

	return TurnResult{
		Player:       r.roster[idx].Name,
		Number:       number,
		ActivePlayer: next,
		HintAccepted: accepted,
	}, nil
}

// RecordWin appends the reporting player to the winners. Once all but one
// player has won the room moves to finished and is closed.
func (r *Room) RecordWin(connectionID string) (WinResult, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.closed {
		return WinResult{}, ErrStaleReference
	}
	if r.phase() != state.PhasePlaying {
		return WinResult{}, ErrNotPlaying
	}
	idx := r.indexOf(connectionID)
	if idx < 0 {
		return WinResult{}, ErrPlayerNotFound
	}

	winner := r.roster[idx].Name
	for _, w := range r.winners {
		if w == winner {
			return WinResult{Winner: winner, Duplicate: true, Room: r.snapshot()}, nil
		}
	}

	r.winners = append(r.winners, winner)
	r.lastActivity = r.now()
	logger.Log.Infof("Room %s: %s won (%d/%d)", r.ID, winner, len(r.winners), r.Capacity-1)

	r.broadcast(r.connectionIDs(connectionID), network.MsgTypeWinNotice, network.WinNotice{
		RoomID:  r.ID,
		Name:    winner,
		Winners: append([]string(nil), r.winners...),
	})

	finished := false
	if len(r.winners) >= r.Capacity-1 {
		if err := r.machine.Advance(state.PhaseFinished); err != nil {
			logger.Log.Errorf("Room %s could not finish: %v", r.ID, err)
		} else {
			finished = true
			r.closed = true
		}
	}

	return WinResult{Winner: winner, Finished: finished, Room: r.snapshot()}, nil
}

// Depart removes the player owned by connectionID. While playing, the player
// now at the departed index takes the turn.
func (r *Room) Depart(connectionID string) (DepartResult, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.closed {
		return DepartResult{}, ErrStaleReference
	}
	idx := r.indexOf(connectionID)
	if idx < 0 {
		return DepartResult{}, ErrPlayerNotFound
	}

	player := r.roster[idx]
	r.roster = append(r.roster[:idx], r.roster[idx+1:]...)
	r.lastActivity = r.now()

	result := DepartResult{Player: player, Index: idx}
	if len(r.roster) == 0 {
		r.closed = true
		r.activePlayer = ""
		result.Empty = true
		result.Room = r.snapshot()
		logger.Log.Infof("Room %s: %s left, room is empty", r.ID, player.Name)
		return result, nil
	}

	// 位置规则在两个阶段都上报; 只有 playing 才真正交出回合
	result.NextActive = r.roster[idx%len(r.roster)].Name
	if r.phase() == state.PhasePlaying {
		r.activePlayer = result.NextActive
	}
	logger.Log.Infof("Room %s: %s left, %d remaining, next %q", r.ID, player.Name, len(r.roster), result.NextActive)

	r.broadcast(r.connectionIDs(""), network.MsgTypePlayerDisconnected, network.PlayerDisconnected{
		RoomID:           r.ID,
		PlayerName:       player.Name,
		RemainingPlayers: r.playerInfos(),
		NextActivePlayer: result.NextActive,
	})

	result.Room = r.snapshot()
	return result, nil
}

// Close marks the room closed; later operations fail with ErrStaleReference.
// Members are told why when notify is set. Reports whether the room was open.
func (r *Room) Close(reason string, notify bool) bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.closed {
		return false
	}
	r.closed = true
	if notify {
		r.broadcast(r.connectionIDs(""), network.MsgTypeRoomClosed, network.RoomClosed{
			RoomID: r.ID,
			Reason: reason,
		})
	}
	return true
}

// Touch refreshes the idle clock.
func (r *Room) Touch() {
	r.mutex.Lock()
	r.lastActivity = r.now()
	r.mutex.Unlock()
}

func (r *Room) LastActivity() time.Time {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.lastActivity
}

func (r *Room) Phase() string {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.phase()
}

func (r *Room) Closed() bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.closed
}

func (r *Room) Snapshot() Snapshot {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.snapshot()
}

// --- helpers, called with the mutex held ---

func (r *Room) phase() string {
	return r.machine.Phase()
}

func (r *Room) validName(name string) (string, bool) {
	name = strings.TrimSpace(name)
	n := utf8.RuneCountInString(name)
	if n == 0 || n < r.settings.MinNameLength {
		return "", false
	}
	if r.settings.MaxNameLength > 0 && n > r.settings.MaxNameLength {
		return "", false
	}
	return name, true
}

func (r *Room) indexOf(connectionID string) int {
	for i, p := range r.roster {
		if p.ConnectionID == connectionID {
			return i
		}
	}
	return -1
}

func (r *Room) nextPlayer(hint string) (string, bool) {
	for _, p := range r.roster {
		if p.Name == hint {
			return hint, true
		}
	}
	for i, p := range r.roster {
		if p.Name == r.activePlayer {
			return r.roster[(i+1)%len(r.roster)].Name, false
		}
	}
	return r.roster[0].Name, false
}

func (r *Room) connectionIDs(except string) []string {
	ids := make([]string, 0, len(r.roster))
	for _, p := range r.roster {
		if p.ConnectionID != except {
			ids = append(ids, p.ConnectionID)
		}
	}
	return ids
}

func (r *Room) playerInfos() []network.PlayerInfo {
	infos := make([]network.PlayerInfo, len(r.roster))
	for i, p := range r.roster {
		infos[i] = network.PlayerInfo{Name: p.Name, JoinedAt: p.JoinedAt}
	}
	return infos
}

func (r *Room) snapshot() Snapshot {
	return Snapshot{
		ID:           r.ID,
		Capacity:     r.Capacity,
		Phase:        r.phase(),
		Players:      r.playerInfos(),
		Winners:      append([]string(nil), r.winners...),
		ActivePlayer: r.activePlayer,
		CreatedAt:    r.CreatedAt,
		StartedAt:    r.startedAt,
		LastActivity: r.lastActivity,
	}
}

func (r *Room) broadcastRoster() {
	r.broadcast(r.connectionIDs(""), network.MsgTypeRosterUpdate, network.RosterUpdate{
		RoomID:       r.ID,
		Phase:        r.phase(),
		Capacity:     r.Capacity,
		Players:      r.playerInfos(),
		ActivePlayer: r.activePlayer,
		Board:        r.settings.Board,
	})
}

func (r *Room) broadcast(ids []string, msgID uint16, payload interface{}) {
	if r.broadcaster == nil || len(ids) == 0 {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		logger.Log.Errorf("Error marshalling message %d for room %s: %v", msgID, r.ID, err)
		return
	}
	if err := r.broadcaster.SendTo(ids, msgID, data); err != nil {
		logger.Log.Warnf("Broadcast %d to room %s: %v", msgID, r.ID, err)
	}
}

// lockedRoom exposes a Room to its state machine. The state hooks run inside
// Room operations, so it reads fields directly instead of locking again.
type lockedRoom struct {
	r *Room
}

func (l *lockedRoom) GetID() string                        { return l.r.ID }
func (l *lockedRoom) GetMaxPlayers() int                   { return l.r.Capacity }
func (l *lockedRoom) Players() []network.PlayerInfo        { return l.r.playerInfos() }
func (l *lockedRoom) Winners() []string                    { return append([]string(nil), l.r.winners...) }
func (l *lockedRoom) BoardSettings() network.BoardSettings { return l.r.settings.Board }
func (l *lockedRoom) SetActivePlayer(name string)          { l.r.activePlayer = name }

func (l *lockedRoom) Broadcast(msgID uint16, data []byte) error {
	if l.r.broadcaster == nil {
		return nil
	}
	return l.r.broadcaster.SendTo(l.r.connectionIDs(""), msgID, data)
}
