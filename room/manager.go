// room/manager.go
package room

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wfunc/bingo/logger"
	"github.com/wfunc/bingo/network"
)

// Config bounds the rooms a Manager creates.
type Config struct {
	MinPlayers    int
	MaxPlayers    int
	IdleTimeout   time.Duration
	MinNameLength int
	MaxNameLength int
	Board         network.BoardSettings
}

// Manager 管理所有房间. It is the only owner of the room table.
type Manager struct {
	rooms       map[string]*Room
	config      Config
	broadcaster Broadcaster
	now         func() time.Time
	newID       func() string
	mutex       sync.RWMutex
}

type ManagerOption func(*Manager)

// WithClock replaces time.Now, used by tests to drive idle expiry.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

func WithIDGenerator(newID func() string) ManagerOption {
	return func(m *Manager) { m.newID = newID }
}

// NewRoomManager 创建一个新的房间管理器
func NewRoomManager(config Config, broadcaster Broadcaster, opts ...ManagerOption) *Manager {
	m := &Manager{
		rooms:       make(map[string]*Room),
		config:      config,
		broadcaster: broadcaster,
		now:         time.Now,
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ClampCapacity forces a requested player count into [MinPlayers, MaxPlayers].
func (m *Manager) ClampCapacity(capacity int) int {
	if capacity < m.config.MinPlayers {
		return m.config.MinPlayers
	}
	if capacity > m.config.MaxPlayers {
		return m.config.MaxPlayers
	}
	return capacity
}

// CreateRoom allocates a room with a clamped capacity and starts its idle clock.
func (m *Manager) CreateRoom(capacity int) *Room {
	settings := Settings{
		MinNameLength: m.config.MinNameLength,
		MaxNameLength: m.config.MaxNameLength,
		Board:         m.config.Board,
	}
	room := NewRoom(m.newID(), m.ClampCapacity(capacity), settings, m.broadcaster, m.now)

	m.mutex.Lock()
	m.rooms[room.ID] = room
	m.mutex.Unlock()

	logger.Log.Infof("Room %s created for %d players (requested %d)", room.ID, room.Capacity, capacity)
	return room
}

// GetRoom 从管理器中获取一个房间
func (m *Manager) GetRoom(id string) (*Room, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	room, exists := m.rooms[id]
	if !exists {
		return nil, ErrRoomNotFound
	}
	return room, nil
}

// Touch refreshes the idle clock of a room.
func (m *Manager) Touch(id string) error {
	room, err := m.GetRoom(id)
	if err != nil {
		return err
	}
	room.Touch()
	return nil
}

// Delete drops the given room from the table. A room registered under the
// same id by someone else is left alone.
func (m *Manager) Delete(room *Room) bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if current, exists := m.rooms[room.ID]; exists && current == room {
		delete(m.rooms, room.ID)
		return true
	}
	return false
}

// RemoveRoom 从管理器中移除并关闭一个房间, notifying its members.
func (m *Manager) RemoveRoom(id, reason string) error {
	room, err := m.GetRoom(id)
	if err != nil {
		return err
	}
	if !m.Delete(room) {
		return ErrRoomNotFound
	}
	room.Close(reason, true)
	logger.Log.Infof("Room %s removed: %s", id, reason)
	return nil
}

// Sweep removes every room idle for longer than the idle timeout, whatever
// its phase, and returns their ids.
func (m *Manager) Sweep() []string {
	now := m.now()

	var expired []*Room
	for _, room := range m.list() {
		if now.Sub(room.LastActivity()) > m.config.IdleTimeout {
			expired = append(expired, room)
		}
	}

	ids := make([]string, 0, len(expired))
	for _, room := range expired {
		if !m.Delete(room) {
			continue
		}
		room.Close("idle timeout", true)
		ids = append(ids, room.ID)
		logger.Log.Infof("Room %s swept after %s idle", room.ID, m.config.IdleTimeout)
	}
	return ids
}

// CloseAll removes every room, used on shutdown.
func (m *Manager) CloseAll(reason string) int {
	m.mutex.Lock()
	rooms := m.rooms
	m.rooms = make(map[string]*Room)
	m.mutex.Unlock()

	for _, room := range rooms {
		room.Close(reason, true)
	}
	return len(rooms)
}

func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.rooms)
}

// Snapshots returns the state of every room, oldest first.
func (m *Manager) Snapshots() []Snapshot {
	rooms := m.list()
	result := make([]Snapshot, 0, len(rooms))
	for _, room := range rooms {
		result = append(result, room.Snapshot())
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}

func (m *Manager) list() []*Room {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	rooms := make([]*Room, 0, len(m.rooms))
	for _, room := range m.rooms {
		rooms = append(rooms, room)
	}
	return rooms
}
