// services/coordinator.go
package services

import (
	"errors"
	"sync"
	"time"

	"github.com/wfunc/bingo/logger"
	"github.com/wfunc/bingo/monitor"
	"github.com/wfunc/bingo/room"
)

// Member is a connection as the coordinator sees it. session.Session
// implements it.
type Member interface {
	GetID() string
	Bind(roomID, playerName string)
	Unbind()
	Room() (roomID, playerName string)
	// Release clears the binding only while it still names roomID.
	Release(roomID string) bool
}

// MemberSource lists the live members; the coordinator uses it to release
// everyone bound to a room it tears down.
type MemberSource func() []Member

type Option func(*Coordinator)

func WithMembers(src MemberSource) Option {
	return func(c *Coordinator) {
		c.members = src
	}
}

// Coordinator drives every room operation. Per-room atomicity comes from the
// room itself; the coordinator keeps the registry and connection bindings in
// step with the outcome.
type Coordinator struct {
	rooms   *room.Manager
	history *HistoryService
	monitor *monitor.Monitor
	members MemberSource
	now     func() time.Time

	// wins in flight; Shutdown waits for them before closing the history
	mutex    sync.Mutex
	closing  bool
	inflight sync.WaitGroup
}

func NewCoordinator(rooms *room.Manager, history *HistoryService, mon *monitor.Monitor, opts ...Option) *Coordinator {
	c := &Coordinator{
		rooms:   rooms,
		history: history,
		monitor: mon,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateRoom allocates a room; capacity is clamped, never rejected.
func (c *Coordinator) CreateRoom(capacity int) room.Snapshot {
	r := c.rooms.CreateRoom(capacity)
	c.monitor.SetActiveRooms(c.rooms.Count())
	return r.Snapshot()
}

func (c *Coordinator) GetRoom(roomID string) (room.Snapshot, error) {
	r, err := c.rooms.GetRoom(roomID)
	if err != nil {
		return room.Snapshot{}, err
	}
	return r.Snapshot(), nil
}

func (c *Coordinator) Rooms() []room.Snapshot {
	return c.rooms.Snapshots()
}

// Join admits the member under name. A member still bound to a live room is
// rejected; a binding to a room that is gone is dropped first.
func (c *Coordinator) Join(m Member, roomID, name string) (room.AdmitResult, error) {
	if bound, _ := m.Room(); bound != "" {
		if _, err := c.rooms.GetRoom(bound); err == nil {
			c.rejectJoin(m, roomID, room.ErrAlreadyInRoom)
			return room.AdmitResult{}, room.ErrAlreadyInRoom
		}
		m.Unbind()
	}

	r, err := c.rooms.GetRoom(roomID)
	if err != nil {
		c.rejectJoin(m, roomID, err)
		return room.AdmitResult{}, err
	}

	res, err := r.Admit(name, m.GetID())
	if err != nil {
		c.rejectJoin(m, roomID, err)
		return room.AdmitResult{}, err
	}

	m.Bind(roomID, res.Player.Name)
	if res.Started {
		logger.Log.Infof("Room %s is playing, %s goes first", roomID, res.Room.ActivePlayer)
	}
	return res, nil
}

// Turn reports a called number and hands the turn to the validated next player.
func (c *Coordinator) Turn(m Member, roomID string, number int, hint string) (room.TurnResult, error) {
	r, err := c.rooms.GetRoom(roomID)
	if err != nil {
		return room.TurnResult{}, err
	}
	return r.PlayTurn(m.GetID(), number, hint)
}

// Win records a win for the member's player. The room is retired once all
// but one player has won and its record is saved in the background.
func (c *Coordinator) Win(m Member, roomID string) (room.WinResult, error) {
	if !c.begin() {
		return room.WinResult{}, room.ErrStaleReference
	}
	defer c.inflight.Done()

	r, err := c.rooms.GetRoom(roomID)
	if err != nil {
		return room.WinResult{}, err
	}

	res, err := r.RecordWin(m.GetID())
	if err != nil {
		return res, err
	}
	if res.Duplicate {
		logger.Log.Debugf("Room %s: duplicate win from %s ignored", roomID, res.Winner)
		return res, nil
	}

	if res.Finished {
		c.rooms.Delete(r)
		m.Release(roomID)
		c.release(roomID)
		c.monitor.IncGamesFinished()
		c.monitor.SetActiveRooms(c.rooms.Count())
		if c.history != nil {
			c.history.SaveAsync(BuildRecord(res.Room, c.now()))
		}
		logger.Log.Infof("Room %s finished and removed, winners %v", roomID, res.Room.Winners)
	}
	return res, nil
}

// Leave is an explicit disconnect from roomID.
func (c *Coordinator) Leave(m Member, roomID string) error {
	bound, _ := m.Room()
	if bound == "" || (roomID != "" && roomID != bound) {
		return room.ErrPlayerNotFound
	}
	_, err := c.Disconnect(m)
	return err
}

// Disconnect removes the member's player from its room. A member without a
// room, or whose room is already gone, is a no-op.
func (c *Coordinator) Disconnect(m Member) (room.DepartResult, error) {
	roomID, _ := m.Room()
	if roomID == "" {
		return room.DepartResult{}, nil
	}
	m.Unbind()

	r, err := c.rooms.GetRoom(roomID)
	if err != nil {
		return room.DepartResult{}, nil
	}

	res, err := r.Depart(m.GetID())
	if errors.Is(err, room.ErrPlayerNotFound) || errors.Is(err, room.ErrStaleReference) {
		return room.DepartResult{}, nil
	}
	if err != nil {
		return res, err
	}

	if res.Empty {
		c.rooms.Delete(r)
		c.monitor.SetActiveRooms(c.rooms.Count())
		logger.Log.Infof("Room %s removed after its last player left", roomID)
	}
	return res, nil
}

// Sweep drops idle rooms, whatever their phase.
func (c *Coordinator) Sweep() []string {
	ids := c.rooms.Sweep()
	c.release(ids...)
	c.monitor.AddRoomsSwept(len(ids))
	c.monitor.SetActiveRooms(c.rooms.Count())
	return ids
}

// CloseRoom removes a room on request, telling its members why.
func (c *Coordinator) CloseRoom(roomID, reason string) error {
	if err := c.rooms.RemoveRoom(roomID, reason); err != nil {
		return err
	}
	c.release(roomID)
	c.monitor.SetActiveRooms(c.rooms.Count())
	return nil
}

// Shutdown refuses new wins, waits for those in flight, closes every room
// and then waits for the pending history saves.
func (c *Coordinator) Shutdown(reason string) {
	c.mutex.Lock()
	c.closing = true
	c.mutex.Unlock()
	c.inflight.Wait()

	snaps := c.rooms.Snapshots()
	n := c.rooms.CloseAll(reason)
	ids := make([]string, len(snaps))
	for i, snap := range snaps {
		ids[i] = snap.ID
	}
	c.release(ids...)
	c.monitor.SetActiveRooms(0)
	if c.history != nil {
		c.history.Close()
	}
	logger.Log.Infof("Closed %d rooms: %s", n, reason)
}

func (c *Coordinator) begin() bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.closing {
		return false
	}
	c.inflight.Add(1)
	return true
}

// release unbinds every member still bound to one of roomIDs.
func (c *Coordinator) release(roomIDs ...string) {
	if c.members == nil || len(roomIDs) == 0 {
		return
	}
	gone := make(map[string]bool, len(roomIDs))
	for _, id := range roomIDs {
		gone[id] = true
	}
	for _, m := range c.members() {
		if id, _ := m.Room(); gone[id] {
			m.Release(id)
		}
	}
}

func (c *Coordinator) rejectJoin(m Member, roomID string, err error) {
	code := room.Code(err)
	c.monitor.IncJoinsRejected(code)
	logger.Log.Infof("Join to room %s from %s rejected: %s", roomID, m.GetID(), code)
}
