// persistence/postgresql.go
package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	// PostgreSQL 驱动
	_ "github.com/lib/pq"
	"github.com/wfunc/bingo/models"
)

// PostgreSQL 数据库实现
type PostgreSQL struct {
	db *sql.DB
}

// NewPostgreSQL 创建 PostgreSQL 数据库连接
func NewPostgreSQL(host string, port int, user, password, dbname string) (*PostgreSQL, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	// 设置连接池参数
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	// 初始化表结构
	if err := initTables(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &PostgreSQL{db: db}, nil
}

// initTables 初始化数据库表结构
func initTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
        CREATE TABLE IF NOT EXISTS game_records (
            id SERIAL PRIMARY KEY,
            room_id VARCHAR(64) UNIQUE NOT NULL,
            capacity INT NOT NULL,
            players JSONB NOT NULL,
            winners JSONB NOT NULL,
            loser VARCHAR(64) NOT NULL DEFAULT '',
            started_at TIMESTAMPTZ,
            finished_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
        )
    `)
	if err != nil {
		return err
	}

	// 创建索引以提高查询性能
	_, err = db.ExecContext(ctx, `
        CREATE INDEX IF NOT EXISTS idx_game_records_finished_at ON game_records(finished_at);
    `)
	return err
}

// SaveGameRecord 保存游戏记录
func (p *PostgreSQL) SaveGameRecord(ctx context.Context, record *models.GameRecord) error {
	if err := validate(record); err != nil {
		return err
	}
	players, err := json.Marshal(record.Players)
	if err != nil {
		return err
	}
	winners, err := json.Marshal(record.Winners)
	if err != nil {
		return err
	}

	query := `
        INSERT INTO game_records (room_id, capacity, players, winners, loser, started_at, finished_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        ON CONFLICT (room_id) DO NOTHING
    `
	_, err = p.db.ExecContext(ctx, query,
		record.RoomID, record.Capacity, players, winners, record.Loser,
		nullTime(record.StartedAt), record.FinishedAt)
	return err
}

// LoadGameRecord 加载游戏记录
func (p *PostgreSQL) LoadGameRecord(ctx context.Context, roomID string) (*models.GameRecord, error) {
	query := `
        SELECT room_id, capacity, players, winners, loser, started_at, finished_at
        FROM game_records WHERE room_id = $1
    `
	record, err := scanRecord(p.db.QueryRowContext(ctx, query, roomID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return record, nil
}

// RecentGameRecords returns newest first.
func (p *PostgreSQL) RecentGameRecords(ctx context.Context, limit int) ([]models.GameRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := p.db.QueryContext(ctx, `
        SELECT room_id, capacity, players, winners, loser, started_at, finished_at
        FROM game_records ORDER BY finished_at DESC LIMIT $1
    `, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []models.GameRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *record)
	}
	return result, rows.Err()
}

// Close 关闭数据库连接
func (p *PostgreSQL) Close() error {
	return p.db.Close()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (*models.GameRecord, error) {
	var (
		record    models.GameRecord
		players   []byte
		winners   []byte
		startedAt sql.NullTime
	)
	if err := row.Scan(&record.RoomID, &record.Capacity, &players, &winners,
		&record.Loser, &startedAt, &record.FinishedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(players, &record.Players); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(winners, &record.Winners); err != nil {
		return nil, err
	}
	if startedAt.Valid {
		record.StartedAt = startedAt.Time
	}
	return &record, nil
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
