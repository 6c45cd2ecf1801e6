package state

import (
	"errors"
	"fmt"
)

var (
	// ErrTransitionNotAllowed is returned for an unregistered edge or a guard that refuses.
	ErrTransitionNotAllowed = errors.New("state transition not allowed")
	ErrUnknownState         = errors.New("unknown state")
)

// 状态接口
type State interface {
	OnEnter()
	OnExit()
	GetID() string
}

// Guard decides, at the moment of the transition, whether it may fire.
type Guard func() bool

type edge struct {
	from, to string
}

// Machine holds one instance of every state and moves only along registered
// edges, so there is no way back to an earlier phase unless an edge says so.
// It does no locking: the owner serializes calls (a room does it under its
// own mutex).
type Machine struct {
	current State
	states  map[string]State
	edges   map[edge]Guard
	path    []string
}

// NewMachine registers every state and enters initial.
func NewMachine(initial State, others ...State) *Machine {
	m := &Machine{
		states: make(map[string]State, len(others)+1),
		edges:  make(map[edge]Guard),
	}
	for _, s := range append([]State{initial}, others...) {
		m.states[s.GetID()] = s
	}
	m.enter(initial)
	return m
}

// Allow registers from -> to. A nil guard always passes.
func (m *Machine) Allow(from, to string, guard Guard) error {
	if _, ok := m.states[from]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownState, from)
	}
	if _, ok := m.states[to]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownState, to)
	}
	m.edges[edge{from, to}] = guard
	return nil
}

// Advance moves to the state registered under id, running OnExit then OnEnter.
// On refusal nothing runs and the current state is kept.
func (m *Machine) Advance(id string) error {
	next, ok := m.states[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownState, id)
	}
	guard, ok := m.edges[edge{m.current.GetID(), id}]
	if !ok || (guard != nil && !guard()) {
		return ErrTransitionNotAllowed
	}

	m.current.OnExit()
	m.enter(next)
	return nil
}

func (m *Machine) enter(s State) {
	m.current = s
	m.path = append(m.path, s.GetID())
	s.OnEnter()
}

func (m *Machine) Current() State {
	return m.current
}

// Phase is the id of the current state.
func (m *Machine) Phase() string {
	return m.current.GetID()
}

// Path lists every state entered so far, in order.
func (m *Machine) Path() []string {
	return append([]string(nil), m.path...)
}

// 房间状态基础结构
type RoomStateBase struct {
	ID   string
	Room RoomContext
}

func (s *RoomStateBase) GetID() string {
	return s.ID
}

func (s *RoomStateBase) OnEnter() {}

func (s *RoomStateBase) OnExit() {}
