// services/history_service.go
package services

import (
	"context"
	"sync"
	"time"

	"github.com/wfunc/bingo/logger"
	"github.com/wfunc/bingo/models"
	"github.com/wfunc/bingo/persistence"
	"github.com/wfunc/bingo/room"
)

const saveTimeout = 5 * time.Second

// HistoryService records finished games. Nothing about a live room is stored.
type HistoryService struct {
	store   persistence.Store
	mutex   sync.Mutex
	closed  bool
	pending sync.WaitGroup
}

func NewHistoryService(store persistence.Store) *HistoryService {
	return &HistoryService{store: store}
}

// BuildRecord turns the final snapshot of a room into a game record.
func BuildRecord(snap room.Snapshot, finishedAt time.Time) *models.GameRecord {
	place := make(map[string]int, len(snap.Winners))
	for i, name := range snap.Winners {
		place[name] = i + 1
	}

	record := &models.GameRecord{
		RoomID:     snap.ID,
		Capacity:   snap.Capacity,
		Players:    make([]models.PlayerResult, 0, len(snap.Players)),
		Winners:    append([]string(nil), snap.Winners...),
		StartedAt:  snap.StartedAt,
		FinishedAt: finishedAt,
	}
	for _, p := range snap.Players {
		result := models.PlayerResult{Name: p.Name, JoinedAt: p.JoinedAt, Outcome: models.OutcomeWin, Place: place[p.Name]}
		if result.Place == 0 {
			result.Outcome = models.OutcomeLose
			result.Place = len(snap.Winners) + 1
			if record.Loser == "" {
				record.Loser = p.Name
			}
		}
		record.Players = append(record.Players, result)
	}
	return record
}

func (s *HistoryService) Save(ctx context.Context, record *models.GameRecord) error {
	return s.store.SaveGameRecord(ctx, record)
}

// SaveAsync stores the record in the background. Failures are only logged.
// After Close nothing is accepted and it reports false.
func (s *HistoryService) SaveAsync(record *models.GameRecord) bool {
	s.mutex.Lock()
	if s.closed {
		s.mutex.Unlock()
		logger.Log.Warnf("History closed, game record for room %s dropped", record.RoomID)
		return false
	}
	s.pending.Add(1)
	s.mutex.Unlock()

	go func() {
		defer s.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
		defer cancel()

		if err := s.store.SaveGameRecord(ctx, record); err != nil {
			logger.Log.Errorf("Failed to save game record for room %s: %v", record.RoomID, err)
			return
		}
		logger.Log.Debugf("Saved game record for room %s", record.RoomID)
	}()
	return true
}

// Wait blocks until every background save started so far has finished.
func (s *HistoryService) Wait() {
	s.pending.Wait()
}

// Close stops accepting saves and waits for the pending ones. The store
// itself stays open; its owner closes it.
func (s *HistoryService) Close() {
	s.mutex.Lock()
	s.closed = true
	s.mutex.Unlock()
	s.pending.Wait()
}

func (s *HistoryService) Recent(ctx context.Context, limit int) ([]models.GameRecord, error) {
	return s.store.RecentGameRecords(ctx, limit)
}

func (s *HistoryService) Get(ctx context.Context, roomID string) (*models.GameRecord, error) {
	return s.store.LoadGameRecord(ctx, roomID)
}
