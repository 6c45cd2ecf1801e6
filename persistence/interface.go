// persistence/interface.go
package persistence

import (
	"context"
	"errors"

	"github.com/wfunc/bingo/models"
)

// Store keeps finished games. Rooms themselves are never persisted.
type Store interface {
	SaveGameRecord(ctx context.Context, record *models.GameRecord) error
	LoadGameRecord(ctx context.Context, roomID string) (*models.GameRecord, error)
	RecentGameRecords(ctx context.Context, limit int) ([]models.GameRecord, error)
	Close() error
}

// 错误定义
var (
	ErrRecordNotFound = errors.New("record not found")
	ErrInvalidRecord  = errors.New("invalid game record")
)

func validate(record *models.GameRecord) error {
	if record == nil || record.RoomID == "" {
		return ErrInvalidRecord
	}
	return nil
}
