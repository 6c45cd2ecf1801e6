// persistence/memory.go
package persistence

import (
	"context"
	"sync"

	"github.com/wfunc/bingo/models"
)

// MemoryStore keeps the most recent records in process memory.
type MemoryStore struct {
	records []models.GameRecord
	limit   int
	mutex   sync.RWMutex
}

// NewMemoryStore keeps at most limit records; limit <= 0 means unbounded.
func NewMemoryStore(limit int) *MemoryStore {
	return &MemoryStore{limit: limit}
}

func (m *MemoryStore) SaveGameRecord(ctx context.Context, record *models.GameRecord) error {
	if err := validate(record); err != nil {
		return err
	}
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.records = append(m.records, copyRecord(record))
	if m.limit > 0 && len(m.records) > m.limit {
		m.records = append([]models.GameRecord(nil), m.records[len(m.records)-m.limit:]...)
	}
	return nil
}

func (m *MemoryStore) LoadGameRecord(ctx context.Context, roomID string) (*models.GameRecord, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	for i := len(m.records) - 1; i >= 0; i-- {
		if m.records[i].RoomID == roomID {
			record := copyRecord(&m.records[i])
			return &record, nil
		}
	}
	return nil, ErrRecordNotFound
}

// RecentGameRecords returns newest first.
func (m *MemoryStore) RecentGameRecords(ctx context.Context, limit int) ([]models.GameRecord, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	if limit <= 0 || limit > len(m.records) {
		limit = len(m.records)
	}
	result := make([]models.GameRecord, 0, limit)
	for i := len(m.records) - 1; i >= 0 && len(result) < limit; i-- {
		result = append(result, copyRecord(&m.records[i]))
	}
	return result, nil
}

func (m *MemoryStore) Close() error {
	return nil
}

func copyRecord(r *models.GameRecord) models.GameRecord {
	c := *r
	c.Players = append([]models.PlayerResult(nil), r.Players...)
	c.Winners = append([]string(nil), r.Winners...)
	return c
}
