package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Room     RoomConfig     `mapstructure:"room"`
	Game     GameConfig     `mapstructure:"game"`
	Database DatabaseConfig `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	HTTPAddress       string        `mapstructure:"http_address"`
	RPCAddress        string        `mapstructure:"rpc_address"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	SendQueueSize     int           `mapstructure:"send_queue_size"`
	RateLimit         float64       `mapstructure:"rate_limit"`
	RateBurst         int           `mapstructure:"rate_burst"`
	AllowedOrigins    []string      `mapstructure:"allowed_origins"`
}

type RoomConfig struct {
	MinPlayers    int           `mapstructure:"min_players"`
	MaxPlayers    int           `mapstructure:"max_players"`
	IdleTimeout   time.Duration `mapstructure:"idle_timeout"`
	SweepSchedule string        `mapstructure:"sweep_schedule"`
	MinNameLength int           `mapstructure:"min_name_length"`
	MaxNameLength int           `mapstructure:"max_name_length"`
}

type GameConfig struct {
	GridSize     int `mapstructure:"grid_size"`
	MaxNumber    int `mapstructure:"max_number"`
	StrikesToWin int `mapstructure:"strikes_to_win"`
}

type DatabaseConfig struct {
	Driver   string         `mapstructure:"driver"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
}

type RedisConfig struct {
	Addr       string `mapstructure:"addr"`
	Password   string `mapstructure:"password"`
	DB         int    `mapstructure:"db"`
	Key        string `mapstructure:"key"`
	MaxRecords int64  `mapstructure:"max_records"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.http_address", ":8080")
	v.SetDefault("server.rpc_address", ":9090")
	v.SetDefault("server.heartbeat_interval", 30*time.Second)
	v.SetDefault("server.send_queue_size", 64)
	v.SetDefault("server.rate_limit", 10.0)
	v.SetDefault("server.rate_burst", 20)
	v.SetDefault("server.allowed_origins", []string{"*"})

	v.SetDefault("room.min_players", 2)
	v.SetDefault("room.max_players", 6)
	v.SetDefault("room.idle_timeout", 30*time.Minute)
	v.SetDefault("room.sweep_schedule", "@every 5m")
	v.SetDefault("room.min_name_length", 2)
	v.SetDefault("room.max_name_length", 20)

	v.SetDefault("game.grid_size", 5)
	v.SetDefault("game.max_number", 25)
	v.SetDefault("game.strikes_to_win", 5)

	v.SetDefault("database.driver", "memory")
	v.SetDefault("database.postgres.host", "localhost")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.redis.addr", "localhost:6379")
	v.SetDefault("database.redis.key", "bingo:games")
	v.SetDefault("database.redis.max_records", 1000)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}

// LoadConfig reads config.yaml from path. A missing file falls back to defaults
// and BINGO_* environment variables.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("bingo")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch {
	case c.Game.GridSize <= 0 || c.Game.GridSize*c.Game.GridSize != c.Game.MaxNumber:
		return fmt.Errorf("%w: game.max_number (%d) must be game.grid_size (%d) squared",
			ErrInvalidConfig, c.Game.MaxNumber, c.Game.GridSize)
	case c.Game.StrikesToWin <= 0:
		return fmt.Errorf("%w: game.strikes_to_win must be positive", ErrInvalidConfig)
	case c.Room.MinPlayers < 2:
		return fmt.Errorf("%w: room.min_players must be at least 2", ErrInvalidConfig)
	case c.Room.MinPlayers > c.Room.MaxPlayers:
		return fmt.Errorf("%w: room.min_players (%d) exceeds room.max_players (%d)",
			ErrInvalidConfig, c.Room.MinPlayers, c.Room.MaxPlayers)
	case c.Room.IdleTimeout <= 0:
		return fmt.Errorf("%w: room.idle_timeout must be positive", ErrInvalidConfig)
	case c.Room.MinNameLength < 1 || c.Room.MinNameLength > c.Room.MaxNameLength:
		return fmt.Errorf("%w: room name length bounds %d..%d", ErrInvalidConfig,
			c.Room.MinNameLength, c.Room.MaxNameLength)
	case c.Server.HeartbeatInterval <= 0:
		return fmt.Errorf("%w: server.heartbeat_interval must be positive", ErrInvalidConfig)
	case c.Server.SendQueueSize <= 0:
		return fmt.Errorf("%w: server.send_queue_size must be positive", ErrInvalidConfig)
	}
	return nil
}
