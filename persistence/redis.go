// persistence/redis.go
package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/wfunc/bingo/models"
)

const recordTTL = 7 * 24 * time.Hour

// RedisStore keeps a capped list of recent games plus one key per room.
type RedisStore struct {
	rdb        *redis.Client
	key        string
	maxRecords int64
}

// NewRedisStore connects and pings the server.
func NewRedisStore(ctx context.Context, addr, password string, db int, key string, maxRecords int64) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, err
	}
	return NewRedisStoreWithClient(rdb, key, maxRecords), nil
}

func NewRedisStoreWithClient(rdb *redis.Client, key string, maxRecords int64) *RedisStore {
	if key == "" {
		key = "bingo:games"
	}
	if maxRecords <= 0 {
		maxRecords = 100
	}
	return &RedisStore{rdb: rdb, key: key, maxRecords: maxRecords}
}

func (s *RedisStore) recordKey(roomID string) string {
	return s.key + ":" + roomID
}

func (s *RedisStore) SaveGameRecord(ctx context.Context, record *models.GameRecord) error {
	if err := validate(record); err != nil {
		return err
	}
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, s.key, data)
		pipe.LTrim(ctx, s.key, 0, s.maxRecords-1)
		pipe.Set(ctx, s.recordKey(record.RoomID), data, recordTTL)
		return nil
	})
	return err
}

func (s *RedisStore) LoadGameRecord(ctx context.Context, roomID string) (*models.GameRecord, error) {
	data, err := s.rdb.Get(ctx, s.recordKey(roomID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	var record models.GameRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// RecentGameRecords returns newest first.
func (s *RedisStore) RecentGameRecords(ctx context.Context, limit int) ([]models.GameRecord, error) {
	stop := int64(limit) - 1
	if limit <= 0 {
		stop = -1
	}
	items, err := s.rdb.LRange(ctx, s.key, 0, stop).Result()
	if err != nil {
		return nil, err
	}
	result := make([]models.GameRecord, 0, len(items))
	for _, item := range items {
		var record models.GameRecord
		if err := json.Unmarshal([]byte(item), &record); err != nil {
			return nil, err
		}
		result = append(result, record)
	}
	return result, nil
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
