// models/gorm_models.go
package models

import (
	"time"

	"gorm.io/gorm"
)

// GormGameRecord 游戏记录模型
type GormGameRecord struct {
	gorm.Model
	RoomID     string         `gorm:"uniqueIndex;not null"`
	Capacity   int            `gorm:"not null"`
	Players    []PlayerResult `gorm:"serializer:json;type:jsonb;not null"`
	Winners    []string       `gorm:"serializer:json;type:jsonb;not null"`
	Loser      string
	StartedAt  time.Time
	FinishedAt time.Time `gorm:"index"`
	Duration   int       `gorm:"default:0"` // 游戏时长(秒)
}

func (GormGameRecord) TableName() string {
	return "game_records"
}

func NewGormGameRecord(r *GameRecord) *GormGameRecord {
	return &GormGameRecord{
		RoomID:     r.RoomID,
		Capacity:   r.Capacity,
		Players:    r.Players,
		Winners:    r.Winners,
		Loser:      r.Loser,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		Duration:   int(r.Duration().Seconds()),
	}
}

func (g *GormGameRecord) GameRecord() GameRecord {
	return GameRecord{
		RoomID:     g.RoomID,
		Capacity:   g.Capacity,
		Players:    g.Players,
		Winners:    g.Winners,
		Loser:      g.Loser,
		StartedAt:  g.StartedAt,
		FinishedAt: g.FinishedAt,
	}
}
