// models/models.go
package models

import (
	"time"
)

const (
	OutcomeWin  = "win"
	OutcomeLose = "lose"
)

// GameRecord 游戏记录模型, written once when a room finishes.
type GameRecord struct {
	RoomID     string         `json:"room_id"`
	Capacity   int            `json:"capacity"`
	Players    []PlayerResult `json:"players"`
	Winners    []string       `json:"winners"`
	Loser      string         `json:"loser"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
}

// PlayerResult 玩家结果（用于游戏记录）. Place is the 1-based win order; the
// loser has place len(Winners)+1.
type PlayerResult struct {
	Name     string    `json:"name"`
	JoinedAt time.Time `json:"joined_at"`
	Outcome  string    `json:"outcome"`
	Place    int       `json:"place"`
}

// Duration returns how long the game ran.
func (r *GameRecord) Duration() time.Duration {
	if r.StartedAt.IsZero() || r.FinishedAt.Before(r.StartedAt) {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
