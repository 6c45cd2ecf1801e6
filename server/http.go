package server

import (
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/wfunc/bingo/logger"
	"github.com/wfunc/bingo/persistence"
	"github.com/wfunc/bingo/room"
	"go.uber.org/zap"
)

type createRoomRequest struct {
	MaxPlayers int `json:"max_players"`
}

type createRoomResponse struct {
	RoomID     string `json:"room_id"`
	MaxPlayers int    `json:"max_players"`
}

type roomView struct {
	RoomID       string    `json:"room_id"`
	Capacity     int       `json:"max_players"`
	Phase        string    `json:"phase"`
	Players      []string  `json:"players"`
	Winners      []string  `json:"winners"`
	ActivePlayer string    `json:"active_player,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

func newRoomView(snap room.Snapshot) roomView {
	players := make([]string, len(snap.Players))
	for i, p := range snap.Players {
		players[i] = p.Name
	}
	return roomView{
		RoomID:       snap.ID,
		Capacity:     snap.Capacity,
		Phase:        snap.Phase,
		Players:      players,
		Winners:      snap.Winners,
		ActivePlayer: snap.ActivePlayer,
		CreatedAt:    snap.CreatedAt,
	}
}

func (s *GameServer) newRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())
	router.Use(cors.New(corsConfig(s.cfg.Server.AllowedOrigins)))

	router.POST("/rooms", s.handleCreateRoom)
	router.GET("/create", s.handleCreateRoomQuery)
	router.GET("/rooms", s.handleListRooms)
	router.GET("/rooms/:id", s.handleGetRoom)
	router.GET("/games", s.handleRecentGames)
	router.GET("/games/:id", s.handleGetGame)
	router.GET("/ws", s.handleWebSocket)
	router.GET("/healthz", s.handleHealth)
	router.GET("/metrics", gin.WrapH(s.monitor.Handler()))
	router.GET("/debug/vars", gin.WrapH(s.monitor.VarsHandler()))

	return router
}

// requestLogger logs one line per request with typed fields.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		c.Next()
		logger.Log.Desugar().Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if allowAll(origins) {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

func allowAll(origins []string) bool {
	if len(origins) == 0 {
		return true
	}
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}

// originChecker accepts websocket upgrades from the configured origins.
// Requests without an Origin header are not from a browser and pass.
func originChecker(origins []string) func(r *http.Request) bool {
	if allowAll(origins) {
		return func(r *http.Request) bool { return true }
	}
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return allowed[u.Scheme+"://"+u.Host]
	}
}

func (s *GameServer) handleCreateRoom(c *gin.Context) {
	var req createRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request", "message": err.Error()})
		return
	}
	if req.MaxPlayers == 0 {
		req.MaxPlayers = s.cfg.Room.MaxPlayers
	}

	snap := s.coordinator.CreateRoom(req.MaxPlayers)
	c.JSON(http.StatusCreated, createRoomResponse{RoomID: snap.ID, MaxPlayers: snap.Capacity})
}

// handleCreateRoomQuery keeps the GET /create?maxPlayers=N form; a missing or
// unparsable count asks for the largest room.
func (s *GameServer) handleCreateRoomQuery(c *gin.Context) {
	maxPlayers, err := strconv.Atoi(c.Query("maxPlayers"))
	if err != nil || maxPlayers == 0 {
		maxPlayers = s.cfg.Room.MaxPlayers
	}

	snap := s.coordinator.CreateRoom(maxPlayers)
	c.JSON(http.StatusOK, gin.H{
		"roomId":      snap.ID,
		"room_id":     snap.ID,
		"max_players": snap.Capacity,
	})
}

func (s *GameServer) handleListRooms(c *gin.Context) {
	snaps := s.coordinator.Rooms()
	views := make([]roomView, 0, len(snaps))
	for _, snap := range snaps {
		views = append(views, newRoomView(snap))
	}
	c.JSON(http.StatusOK, gin.H{"rooms": views})
}

func (s *GameServer) handleGetRoom(c *gin.Context) {
	snap, err := s.coordinator.GetRoom(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": room.Code(err)})
		return
	}
	c.JSON(http.StatusOK, newRoomView(snap))
}

const defaultRecentGames = 20

func (s *GameServer) handleRecentGames(c *gin.Context) {
	limit, err := strconv.Atoi(c.Query("limit"))
	if err != nil || limit <= 0 {
		limit = defaultRecentGames
	}
	games, err := s.history.Recent(c.Request.Context(), limit)
	if err != nil {
		logger.Log.Errorf("Failed to load recent games: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"games": games})
}

func (s *GameServer) handleGetGame(c *gin.Context) {
	game, err := s.history.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, persistence.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "game_not_found"})
		return
	}
	if err != nil {
		logger.Log.Errorf("Failed to load game %s: %v", c.Param("id"), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
		return
	}
	c.JSON(http.StatusOK, game)
}

func (s *GameServer) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"rooms":    len(s.coordinator.Rooms()),
		"sessions": s.sessionManager.Count(),
	})
}
