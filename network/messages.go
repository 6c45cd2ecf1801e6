package network

import "time"

// Inbound payloads.

type JoinRequest struct {
	Name string `json:"name"`
	Room string `json:"room"`
}

type LeaveRequest struct {
	Room string `json:"room"`
}

// NumberRequest carries the called number and the caller's guess at who goes next.
// The server only uses NextPlayer if it names a current roster entry.
type NumberRequest struct {
	Number     int    `json:"number"`
	Room       string `json:"room"`
	NextPlayer string `json:"next_player"`
}

type WinRequest struct {
	Name string `json:"name"`
	Room string `json:"room"`
}

// Outbound payloads.

type PlayerInfo struct {
	Name     string    `json:"name"`
	JoinedAt time.Time `json:"joined_at"`
}

type BoardSettings struct {
	GridSize     int `json:"grid_size"`
	MaxNumber    int `json:"max_number"`
	StrikesToWin int `json:"strikes_to_win"`
}

type RosterUpdate struct {
	RoomID       string        `json:"room_id"`
	Phase        string        `json:"phase"`
	Capacity     int           `json:"capacity"`
	Players      []PlayerInfo  `json:"players"`
	ActivePlayer string        `json:"active_player,omitempty"`
	Board        BoardSettings `json:"board"`
}

type GameStart struct {
	RoomID       string        `json:"room_id"`
	ActivePlayer string        `json:"active_player"`
	Players      []PlayerInfo  `json:"players"`
	Board        BoardSettings `json:"board"`
}

type Turn struct {
	RoomID       string       `json:"room_id"`
	ActivePlayer string       `json:"active_player"`
	Number       int          `json:"number"`
	Players      []PlayerInfo `json:"players"`
}

type WinNotice struct {
	RoomID  string   `json:"room_id"`
	Name    string   `json:"name"`
	Winners []string `json:"winners"`
}

type GameOver struct {
	RoomID  string   `json:"room_id"`
	Winners []string `json:"winners"`
	Loser   string   `json:"loser,omitempty"`
}

type PlayerDisconnected struct {
	RoomID           string       `json:"room_id"`
	PlayerName       string       `json:"player_name"`
	RemainingPlayers []PlayerInfo `json:"remaining_players"`
	NextActivePlayer string       `json:"next_active_player,omitempty"`
}

type RoomClosed struct {
	RoomID string `json:"room_id"`
	Reason string `json:"reason"`
}

type ErrorNotice struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
