package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/bingo/board"
	"github.com/wfunc/bingo/models"
	"github.com/wfunc/bingo/monitor"
	"github.com/wfunc/bingo/network"
	"github.com/wfunc/bingo/persistence"
	"github.com/wfunc/bingo/room"
	"github.com/wfunc/bingo/state"
)

type frame struct {
	to    string
	msgID uint16
	data  []byte
}

// inbox records every frame per connection.
type inbox struct {
	mu     sync.Mutex
	frames []frame
}

func (b *inbox) SendTo(ids []string, msgID uint16, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, id := range ids {
		b.frames = append(b.frames, frame{id, msgID, data})
	}
	return nil
}

func (b *inbox) For(id string) []frame {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []frame
	for _, f := range b.frames {
		if f.to == id {
			out = append(out, f)
		}
	}
	return out
}

func (b *inbox) LastFor(id string) frame {
	frames := b.For(id)
	if len(frames) == 0 {
		return frame{}
	}
	return frames[len(frames)-1]
}

type member struct {
	id     string
	mu     sync.Mutex
	roomID string
	name   string
}

func (m *member) GetID() string { return m.id }
func (m *member) Bind(roomID, name string) {
	m.mu.Lock()
	m.roomID, m.name = roomID, name
	m.mu.Unlock()
}
func (m *member) Unbind() { m.Bind("", "") }
func (m *member) Room() (string, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.roomID, m.name
}
func (m *member) Release(roomID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if roomID == "" || m.roomID != roomID {
		return false
	}
	m.roomID, m.name = "", ""
	return true
}

type fixture struct {
	coord *Coordinator
	rooms *room.Manager
	inbox *inbox
	store *persistence.MemoryStore
	hist  *HistoryService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ib := &inbox{}
	rooms := room.NewRoomManager(room.Config{
		MinPlayers:    2,
		MaxPlayers:    6,
		IdleTimeout:   30 * time.Minute,
		MinNameLength: 2,
		MaxNameLength: 20,
		Board:         network.BoardSettings{GridSize: 5, MaxNumber: 25, StrikesToWin: 5},
	}, ib)
	store := persistence.NewMemoryStore(0)
	hist := NewHistoryService(store)
	mon := monitor.NewMonitor("bingo_test", prometheus.NewRegistry())
	return &fixture{
		coord: NewCoordinator(rooms, hist, mon),
		rooms: rooms,
		inbox: ib,
		store: store,
		hist:  hist,
	}
}

func TestCoordinator_AnnAndBo(t *testing.T) {
	f := newFixture(t)
	roomID := f.coord.CreateRoom(2).ID
	ann, bo := &member{id: "c-ann"}, &member{id: "c-bo"}

	_, err := f.coord.Join(ann, roomID, "Ann")
	require.NoError(t, err)
	res, err := f.coord.Join(bo, roomID, "Bo")
	require.NoError(t, err)
	require.True(t, res.Started)
	assert.Equal(t, state.PhasePlaying, res.Room.Phase)
	assert.Equal(t, "Ann", res.Room.ActivePlayer)

	// Bo's board has 7 at row 2; the board is local to Bo.
	rows := [][]int{
		{1, 2, 3, 4, 5},
		{6, 8, 9, 10, 11},
		{7, 12, 13, 14, 15},
		{16, 17, 18, 19, 20},
		{21, 22, 23, 24, 25},
	}
	boBoard, err := board.FromRows(rows)
	require.NoError(t, err)
	tracker := board.NewTracker(boBoard, 5)

	turn, err := f.coord.Turn(ann, roomID, 7, "Bo")
	require.NoError(t, err)
	assert.Equal(t, "Bo", turn.ActivePlayer)

	var msg network.Turn
	last := f.inbox.LastFor("c-bo")
	require.Equal(t, uint16(network.MsgTypeTurn), last.msgID)
	require.NoError(t, json.Unmarshal(last.data, &msg))
	mark := tracker.Mark(msg.Number)
	assert.True(t, mark.Found)
	assert.Empty(t, mark.Lines)
	assert.Equal(t, board.Position{Row: 2, Col: 0}, mustLookup(t, boBoard, 7))
	assert.Equal(t, board.Cleared, boBoard.Cell(2, 0))

	dep, err := f.coord.Disconnect(bo)
	require.NoError(t, err)
	assert.False(t, dep.Empty)
	assert.Equal(t, "Ann", dep.NextActive)

	snap, err := f.coord.GetRoom(roomID)
	require.NoError(t, err, "room persists with one player")
	assert.Equal(t, "Ann", snap.ActivePlayer)
	require.Len(t, snap.Players, 1)

	var gone network.PlayerDisconnected
	require.NoError(t, json.Unmarshal(f.inbox.LastFor("c-ann").data, &gone))
	assert.Equal(t, "Bo", gone.PlayerName)
	assert.Equal(t, "Ann", gone.NextActivePlayer)

	_, err = f.coord.Disconnect(ann)
	require.NoError(t, err)
	_, err = f.coord.GetRoom(roomID)
	assert.ErrorIs(t, err, room.ErrRoomNotFound, "empty room is deleted")
}

func mustLookup(t *testing.T, b *board.Board, n int) board.Position {
	t.Helper()
	pos, ok := b.Lookup(n)
	require.True(t, ok)
	return pos
}

func TestCoordinator_JoinErrors(t *testing.T) {
	f := newFixture(t)
	roomID := f.coord.CreateRoom(2).ID

	_, err := f.coord.Join(&member{id: "x"}, "nope", "Ann")
	assert.ErrorIs(t, err, room.ErrRoomNotFound)

	ann := &member{id: "c1"}
	_, err = f.coord.Join(ann, roomID, "Ann")
	require.NoError(t, err)

	_, err = f.coord.Join(&member{id: "c2"}, roomID, "Ann")
	assert.ErrorIs(t, err, room.ErrNameTaken)
	assert.Empty(t, f.inbox.For("c2"), "rejected joiners are not in the room")

	other := f.coord.CreateRoom(3).ID
	_, err = f.coord.Join(ann, other, "Ann")
	assert.ErrorIs(t, err, room.ErrAlreadyInRoom)

	_, err = f.coord.Join(&member{id: "c3"}, roomID, " ")
	assert.ErrorIs(t, err, room.ErrInvalidName)

	// rejected attempts are reported to nobody in the room
	for _, fr := range f.inbox.For("c1") {
		assert.Equal(t, uint16(network.MsgTypeRosterUpdate), fr.msgID)
	}
	assert.Len(t, f.inbox.For("c1"), 1)
}

func TestCoordinator_StaleBindingIsCleared(t *testing.T) {
	f := newFixture(t)
	first := f.coord.CreateRoom(2).ID
	m := &member{id: "c1"}
	_, err := f.coord.Join(m, first, "Ann")
	require.NoError(t, err)

	require.NoError(t, f.coord.CloseRoom(first, "closed by admin"))
	var closed network.RoomClosed
	require.NoError(t, json.Unmarshal(f.inbox.LastFor("c1").data, &closed))
	assert.Equal(t, "closed by admin", closed.Reason)

	second := f.coord.CreateRoom(2).ID
	_, err = f.coord.Join(m, second, "Ann")
	require.NoError(t, err)
	bound, _ := m.Room()
	assert.Equal(t, second, bound)
}

func TestCoordinator_ConcurrentJoins(t *testing.T) {
	f := newFixture(t)
	roomID := f.coord.CreateRoom(5).ID

	const attempts = 40
	var wg sync.WaitGroup
	errs := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.coord.Join(&member{id: fmt.Sprintf("c%d", i)}, roomID, fmt.Sprintf("p%02d", i))
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	ok, full := 0, 0
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case assert.ErrorIs(t, err, room.ErrRoomFull):
			full++
		}
	}
	assert.Equal(t, 5, ok)
	assert.Equal(t, attempts-5, full)

	snap, err := f.coord.GetRoom(roomID)
	require.NoError(t, err)
	assert.Len(t, snap.Players, 5)
	assert.Equal(t, state.PhasePlaying, snap.Phase)
}

func TestCoordinator_ThreeWinsRetireRoomOfFour(t *testing.T) {
	f := newFixture(t)
	roomID := f.coord.CreateRoom(4).ID
	members := make([]*member, 4)
	for i, name := range []string{"Ann", "Bo", "Cy", "Di"} {
		members[i] = &member{id: "c-" + name}
		_, err := f.coord.Join(members[i], roomID, name)
		require.NoError(t, err)
	}

	_, err := f.coord.Win(members[1], roomID)
	require.NoError(t, err)
	dup, err := f.coord.Win(members[1], roomID)
	require.NoError(t, err)
	assert.True(t, dup.Duplicate)

	_, err = f.coord.Win(members[3], roomID)
	require.NoError(t, err)
	res, err := f.coord.Win(members[0], roomID)
	require.NoError(t, err)
	assert.True(t, res.Finished)

	_, err = f.coord.GetRoom(roomID)
	assert.ErrorIs(t, err, room.ErrRoomNotFound, "the fourth player never acted")

	_, err = f.coord.Turn(members[2], roomID, 3, "")
	assert.ErrorIs(t, err, room.ErrRoomNotFound)

	var over network.GameOver
	require.NoError(t, json.Unmarshal(f.inbox.LastFor("c-Cy").data, &over))
	assert.Equal(t, []string{"Bo", "Di", "Ann"}, over.Winners)
	assert.Equal(t, "Cy", over.Loser)

	f.hist.Wait()
	rec, err := f.hist.Get(context.Background(), roomID)
	require.NoError(t, err)
	assert.Equal(t, "Cy", rec.Loser)
	require.Len(t, rec.Players, 4)
	assert.Equal(t, models.PlayerResult{Name: "Cy", JoinedAt: rec.Players[2].JoinedAt, Outcome: models.OutcomeLose, Place: 4}, rec.Players[2])
	assert.Equal(t, 3, rec.Players[0].Place)

	// the fixture has no member source, so only the reporting winner was
	// released; the loser's stale binding is cleared by the next join
	id, _ := members[0].Room()
	assert.Empty(t, id)
	id, _ = members[2].Room()
	assert.Equal(t, roomID, id)
	next := f.coord.CreateRoom(2).ID
	_, err = f.coord.Join(members[2], next, "Cy")
	assert.NoError(t, err)
}

func TestCoordinator_TurnAndWinOutsidePlaying(t *testing.T) {
	f := newFixture(t)
	roomID := f.coord.CreateRoom(3).ID
	ann := &member{id: "c1"}
	_, err := f.coord.Join(ann, roomID, "Ann")
	require.NoError(t, err)

	_, err = f.coord.Turn(ann, roomID, 5, "")
	assert.ErrorIs(t, err, room.ErrNotPlaying)
	_, err = f.coord.Win(ann, roomID)
	assert.ErrorIs(t, err, room.ErrNotPlaying)
	_, err = f.coord.Win(&member{id: "ghost"}, "missing")
	assert.ErrorIs(t, err, room.ErrRoomNotFound)
}

func TestCoordinator_TurnFromNonMember(t *testing.T) {
	f := newFixture(t)
	roomID := f.coord.CreateRoom(2).ID
	for i, name := range []string{"Ann", "Bo"} {
		_, err := f.coord.Join(&member{id: fmt.Sprintf("c%d", i)}, roomID, name)
		require.NoError(t, err)
	}
	_, err := f.coord.Turn(&member{id: "intruder"}, roomID, 5, "Ann")
	assert.ErrorIs(t, err, room.ErrPlayerNotFound)
}

func TestCoordinator_DisconnectKeepsTurnInRoster(t *testing.T) {
	f := newFixture(t)
	roomID := f.coord.CreateRoom(4).ID
	members := map[string]*member{}
	for _, name := range []string{"Ann", "Bo", "Cy", "Di"} {
		members[name] = &member{id: "c-" + name}
		_, err := f.coord.Join(members[name], roomID, name)
		require.NoError(t, err)
	}
	_, err := f.coord.Turn(members["Ann"], roomID, 1, "Di")
	require.NoError(t, err)

	// Di is active and last; removing Di wraps to the first player.
	dep, err := f.coord.Disconnect(members["Di"])
	require.NoError(t, err)
	assert.Equal(t, "Ann", dep.NextActive)

	// positional: Ann leaves from index 0, Bo now sits there
	dep, err = f.coord.Disconnect(members["Ann"])
	require.NoError(t, err)
	assert.Equal(t, "Bo", dep.NextActive)

	snap, err := f.coord.GetRoom(roomID)
	require.NoError(t, err)
	found := false
	for _, p := range snap.Players {
		found = found || p.Name == snap.ActivePlayer
	}
	assert.True(t, found, "active player must be in the roster")

	// second disconnect of the same member is a no-op
	dep, err = f.coord.Disconnect(members["Ann"])
	assert.NoError(t, err)
	assert.Empty(t, dep.Player.Name)
}

func TestCoordinator_Leave(t *testing.T) {
	f := newFixture(t)
	roomID := f.coord.CreateRoom(3).ID
	ann, bo := &member{id: "c1"}, &member{id: "c2"}
	_, err := f.coord.Join(ann, roomID, "Ann")
	require.NoError(t, err)
	_, err = f.coord.Join(bo, roomID, "Bo")
	require.NoError(t, err)

	assert.ErrorIs(t, f.coord.Leave(ann, "other-room"), room.ErrPlayerNotFound)
	require.NoError(t, f.coord.Leave(ann, roomID))

	snap, err := f.coord.GetRoom(roomID)
	require.NoError(t, err)
	require.Len(t, snap.Players, 1)
	assert.Equal(t, "Bo", snap.Players[0].Name)

	_, err = f.coord.Join(ann, roomID, "Ann")
	assert.NoError(t, err, "a player who left may join again while waiting")
}

func TestCoordinator_SweepAndShutdown(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	rooms := room.NewRoomManager(room.Config{MinPlayers: 2, MaxPlayers: 6, IdleTimeout: time.Minute}, &inbox{}, room.WithClock(clock))
	coord := NewCoordinator(rooms, nil, nil)

	stale := coord.CreateRoom(2).ID
	mu.Lock()
	now = now.Add(2 * time.Minute)
	mu.Unlock()
	fresh := coord.CreateRoom(2).ID

	assert.Equal(t, []string{stale}, coord.Sweep())
	_, err := coord.GetRoom(fresh)
	assert.NoError(t, err)

	coord.Shutdown("server shutting down")
	assert.Empty(t, coord.Rooms())
}

func TestCoordinator_TeardownReleasesMembers(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	rooms := room.NewRoomManager(room.Config{MinPlayers: 2, MaxPlayers: 6, IdleTimeout: time.Minute}, &inbox{}, room.WithClock(clock))

	var all []*member
	coord := NewCoordinator(rooms, nil, nil, WithMembers(func() []Member {
		out := make([]Member, len(all))
		for i, m := range all {
			out[i] = m
		}
		return out
	}))
	seat := func(roomID string, names ...string) []*member {
		var seated []*member
		for _, name := range names {
			m := &member{id: "c-" + name}
			_, err := coord.Join(m, roomID, name)
			require.NoError(t, err)
			all = append(all, m)
			seated = append(seated, m)
		}
		return seated
	}
	bound := func(m *member) string {
		id, _ := m.Room()
		return id
	}

	finished := coord.CreateRoom(3).ID
	closed := coord.CreateRoom(3).ID
	swept := coord.CreateRoom(3).ID
	f := seat(finished, "Ann", "Bo", "Cy")
	c := seat(closed, "Di", "Ed")
	w := seat(swept, "Fay")

	_, err := coord.Win(f[0], finished)
	require.NoError(t, err)
	res, err := coord.Win(f[1], finished)
	require.NoError(t, err)
	require.True(t, res.Finished)
	for _, m := range f {
		assert.Empty(t, bound(m), "%s still bound to a finished room", m.id)
	}
	assert.Equal(t, closed, bound(c[0]), "other rooms keep their members")

	require.NoError(t, coord.CloseRoom(closed, "closed by operator"))
	for _, m := range c {
		assert.Empty(t, bound(m))
	}
	assert.Equal(t, swept, bound(w[0]))

	mu.Lock()
	now = now.Add(2 * time.Minute)
	mu.Unlock()
	assert.Equal(t, []string{swept}, coord.Sweep())
	assert.Empty(t, bound(w[0]))

	last := coord.CreateRoom(2).ID
	g := seat(last, "Gus")
	coord.Shutdown("server shutting down")
	assert.Empty(t, bound(g[0]))
}

func TestCoordinator_ShutdownWaitsForWins(t *testing.T) {
	f := newFixture(t)
	const n = 20
	type game struct {
		roomID string
		winner *member
	}
	games := make([]game, n)
	for i := range games {
		roomID := f.coord.CreateRoom(2).ID
		a, b := &member{id: fmt.Sprintf("a%d", i)}, &member{id: fmt.Sprintf("b%d", i)}
		_, err := f.coord.Join(a, roomID, "Ann")
		require.NoError(t, err)
		_, err = f.coord.Join(b, roomID, "Bo")
		require.NoError(t, err)
		games[i] = game{roomID, a}
	}

	var wg sync.WaitGroup
	results := make([]bool, n)
	for i, g := range games {
		wg.Add(1)
		go func(i int, g game) {
			defer wg.Done()
			res, err := f.coord.Win(g.winner, g.roomID)
			results[i] = err == nil && res.Finished
		}(i, g)
	}
	f.coord.Shutdown("server shutting down")
	wg.Wait()

	for i, g := range games {
		if !results[i] {
			continue
		}
		_, err := f.store.LoadGameRecord(context.Background(), g.roomID)
		assert.NoError(t, err, "finished game %s lost its record", g.roomID)
	}

	_, err := f.coord.Win(games[0].winner, games[0].roomID)
	assert.ErrorIs(t, err, room.ErrStaleReference)
	assert.False(t, f.hist.SaveAsync(&models.GameRecord{RoomID: "late"}))
}

func TestBuildRecord(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rec := BuildRecord(room.Snapshot{
		ID:        "r1",
		Capacity:  3,
		Players:   []network.PlayerInfo{{Name: "Ann"}, {Name: "Bo"}, {Name: "Cy"}},
		Winners:   []string{"Cy", "Ann"},
		StartedAt: start,
	}, start.Add(time.Minute))

	assert.Equal(t, "Bo", rec.Loser)
	assert.Equal(t, time.Minute, rec.Duration())
	assert.Equal(t, 2, rec.Players[0].Place)
	assert.Equal(t, 3, rec.Players[1].Place)
	assert.Equal(t, models.OutcomeLose, rec.Players[1].Outcome)
	assert.Equal(t, 1, rec.Players[2].Place)
}
