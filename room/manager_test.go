package room

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/bingo/network"
	"github.com/wfunc/bingo/state"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

var testConfig = Config{
	MinPlayers:    2,
	MaxPlayers:    6,
	IdleTimeout:   30 * time.Minute,
	MinNameLength: 2,
	MaxNameLength: 20,
	Board:         network.BoardSettings{GridSize: 5, MaxNumber: 25, StrikesToWin: 5},
}

func newTestManager() (*Manager, *MockBroadcaster, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	var seq int64
	b := &MockBroadcaster{}
	m := NewRoomManager(testConfig, b,
		WithClock(clock.Now),
		WithIDGenerator(func() string {
			return fmt.Sprintf("room-%d", atomic.AddInt64(&seq, 1))
		}),
	)
	return m, b, clock
}

func TestManager_CreateClampsCapacity(t *testing.T) {
	m, _, _ := newTestManager()

	cases := map[int]int{-1: 2, 0: 2, 1: 2, 2: 2, 4: 4, 6: 6, 7: 6, 100: 6}
	for requested, want := range cases {
		r := m.CreateRoom(requested)
		assert.Equal(t, want, r.Capacity, "requested %d", requested)
	}
	assert.Equal(t, len(cases), m.Count())
}

func TestManager_GetRoom(t *testing.T) {
	m, _, _ := newTestManager()
	r := m.CreateRoom(3)

	got, err := m.GetRoom(r.ID)
	require.NoError(t, err)
	assert.Same(t, r, got)

	_, err = m.GetRoom("missing")
	assert.True(t, errors.Is(err, ErrRoomNotFound))
	assert.ErrorIs(t, m.Touch("missing"), ErrRoomNotFound)
}

func TestManager_SweepIgnoresPhase(t *testing.T) {
	m, b, clock := newTestManager()

	idleWaiting := m.CreateRoom(3)
	_, err := idleWaiting.Admit("Ann", "c1")
	require.NoError(t, err)

	idlePlaying := m.CreateRoom(2)
	_, err = idlePlaying.Admit("Bo", "c2")
	require.NoError(t, err)
	_, err = idlePlaying.Admit("Cy", "c3")
	require.NoError(t, err)
	require.Equal(t, state.PhasePlaying, idlePlaying.Phase())

	clock.Advance(20 * time.Minute)
	active := m.CreateRoom(2)

	clock.Advance(15 * time.Minute)
	require.NoError(t, m.Touch(active.ID))

	b.Reset()
	swept := m.Sweep()
	assert.ElementsMatch(t, []string{idleWaiting.ID, idlePlaying.ID}, swept)
	assert.Equal(t, 1, m.Count())

	_, err = m.GetRoom(idlePlaying.ID)
	assert.ErrorIs(t, err, ErrRoomNotFound)

	_, err = idlePlaying.PlayTurn("c2", 5, "")
	assert.ErrorIs(t, err, ErrStaleReference, "held references must go stale")

	closedFrames := 0
	for _, f := range b.Frames() {
		if f.msgID == network.MsgTypeRoomClosed {
			closedFrames++
		}
	}
	assert.Equal(t, 2, closedFrames, "members of swept rooms are told")

	assert.Empty(t, m.Sweep())
}

func TestManager_RemoveRoom(t *testing.T) {
	m, _, _ := newTestManager()
	r := m.CreateRoom(2)

	require.NoError(t, m.RemoveRoom(r.ID, "closed by admin"))
	assert.True(t, r.Closed())
	assert.ErrorIs(t, m.RemoveRoom(r.ID, "again"), ErrRoomNotFound)
}

func TestManager_DeleteOnlyMatchingRoom(t *testing.T) {
	m, _, _ := newTestManager()
	r := m.CreateRoom(2)
	impostor := NewRoom(r.ID, 2, testSettings, nil, nil)

	assert.False(t, m.Delete(impostor))
	assert.True(t, m.Delete(r))
	assert.Equal(t, 0, m.Count())
}

func TestManager_SnapshotsAndCloseAll(t *testing.T) {
	m, _, clock := newTestManager()
	first := m.CreateRoom(2)
	clock.Advance(time.Second)
	second := m.CreateRoom(3)

	snaps := m.Snapshots()
	require.Len(t, snaps, 2)
	assert.Equal(t, first.ID, snaps[0].ID)
	assert.Equal(t, second.ID, snaps[1].ID)
	assert.Equal(t, state.PhaseWaiting, snaps[1].Phase)

	assert.Equal(t, 2, m.CloseAll("server shutting down"))
	assert.Equal(t, 0, m.Count())
	assert.True(t, first.Closed())
}

func TestManager_ConcurrentRooms(t *testing.T) {
	m, _, _ := newTestManager()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r := m.CreateRoom(2)
			_, _ = r.Admit("Ann", r.ID+"-a")
			_, _ = r.Admit("Bo", r.ID+"-b")
			_, _ = r.PlayTurn(r.ID+"-a", 3, "Bo")
		}()
	}
	wg.Wait()

	for _, snap := range m.Snapshots() {
		assert.Equal(t, state.PhasePlaying, snap.Phase)
		assert.Equal(t, "Bo", snap.ActivePlayer)
	}
}
