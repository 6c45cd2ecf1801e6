package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/robfig/cron/v3"
	"github.com/wfunc/bingo/broadcast"
	"github.com/wfunc/bingo/config"
	"github.com/wfunc/bingo/logger"
	"github.com/wfunc/bingo/monitor"
	"github.com/wfunc/bingo/network"
	"github.com/wfunc/bingo/persistence"
	"github.com/wfunc/bingo/room"
	"github.com/wfunc/bingo/rpc"
	"github.com/wfunc/bingo/services"
	"github.com/wfunc/bingo/session"
	"github.com/wfunc/bingo/timer"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

type GameServer struct {
	cfg            *config.Config
	upgrader       websocket.Upgrader
	router         *gin.Engine
	roomManager    *room.Manager
	sessionManager *session.Manager
	coordinator    *services.Coordinator
	history        *services.HistoryService
	broadcaster    broadcast.Broadcaster
	monitor        *monitor.Monitor
	timers         *timer.Manager
	scheduler      *cron.Cron
	httpServer     *http.Server
	rpcServer      *rpc.Server
	shutdownOnce   sync.Once
}

// NewGameServer wires the room engine to its transport. Nothing listens or
// runs in the background until Run.
func NewGameServer(cfg *config.Config, store persistence.Store, mon *monitor.Monitor) *GameServer {
	if store == nil {
		store = persistence.NewMemoryStore(1000)
	}

	s := &GameServer{
		cfg:            cfg,
		sessionManager: session.NewManager(),
		history:        services.NewHistoryService(store),
		monitor:        mon,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(cfg.Server.AllowedOrigins),
		},
	}

	// 初始化广播器
	s.broadcaster = broadcast.NewSessionBroadcaster(s.sessionManager, mon.AddMessagesSent)

	s.roomManager = room.NewRoomManager(room.Config{
		MinPlayers:    cfg.Room.MinPlayers,
		MaxPlayers:    cfg.Room.MaxPlayers,
		IdleTimeout:   cfg.Room.IdleTimeout,
		MinNameLength: cfg.Room.MinNameLength,
		MaxNameLength: cfg.Room.MaxNameLength,
		Board: network.BoardSettings{
			GridSize:     cfg.Game.GridSize,
			MaxNumber:    cfg.Game.MaxNumber,
			StrikesToWin: cfg.Game.StrikesToWin,
		},
	}, s.broadcaster)
	s.coordinator = services.NewCoordinator(s.roomManager, s.history, mon, services.WithMembers(s.members))
	s.router = s.newRouter()

	return s
}

// Handler serves the HTTP routes, websocket upgrade included.
func (s *GameServer) Handler() http.Handler {
	return s.router
}

func (s *GameServer) Coordinator() *services.Coordinator {
	return s.coordinator
}

// Run serves HTTP and RPC until ctx is done or one of them fails.
func (s *GameServer) Run(ctx context.Context) error {
	if err := s.startJobs(); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	s.httpServer = &http.Server{
		Addr:    s.cfg.Server.HTTPAddress,
		Handler: s.router,
	}
	g.Go(func() error {
		logger.Log.Infof("Game server listening on %s", s.cfg.Server.HTTPAddress)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if s.cfg.Server.RPCAddress != "" {
		rpcServer, err := rpc.NewServer(s.cfg.Server.RPCAddress, rpc.NewAdminService(s.coordinator, s.history))
		if err != nil {
			s.Shutdown()
			return err
		}
		s.rpcServer = rpcServer
		g.Go(rpcServer.Start)
	}

	g.Go(func() error {
		<-ctx.Done()
		s.Shutdown()
		return nil
	})

	return g.Wait()
}

// startJobs schedules the idle sweep and the heartbeat reaper.
func (s *GameServer) startJobs() error {
	s.scheduler = cron.New()
	if _, err := s.scheduler.AddFunc(s.cfg.Room.SweepSchedule, s.sweep); err != nil {
		return err
	}
	s.scheduler.Start()

	interval := s.cfg.Server.HeartbeatInterval
	s.timers = timer.NewManager()
	s.timers.Every(interval, s.reapSessions)
	return nil
}

func (s *GameServer) sweep() {
	if ids := s.coordinator.Sweep(); len(ids) > 0 {
		logger.Log.Infof("Idle sweep removed %d rooms", len(ids))
	}
}

// reapSessions closes sessions silent for two heartbeats and pings the rest.
// Closing ends the read loop, which runs the normal disconnect path.
func (s *GameServer) reapSessions() {
	maxIdle := 2 * s.cfg.Server.HeartbeatInterval
	for _, sess := range s.sessionManager.Idle(time.Now(), maxIdle) {
		logger.Log.Infof("Session %s idle since %s, closing", sess.GetID(), sess.LastActive().Format(time.RFC3339))
		sess.Close()
	}

	for _, sess := range s.sessionManager.All() {
		select {
		case <-sess.Done():
			continue
		default:
		}
		if err := sess.Ping(); err != nil {
			logger.Log.Debugf("Ping to session %s failed: %v", sess.GetID(), err)
			sess.Close()
		}
	}
}

func (s *GameServer) members() []services.Member {
	sessions := s.sessionManager.All()
	out := make([]services.Member, len(sessions))
	for i, sess := range sessions {
		out[i] = sess
	}
	return out
}

func (s *GameServer) Shutdown() {
	s.shutdownOnce.Do(func() {
		if s.scheduler != nil {
			<-s.scheduler.Stop().Done()
		}
		if s.timers != nil {
			s.timers.Stop()
		}

		s.coordinator.Shutdown("server shutting down")

		if s.httpServer != nil {
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			if err := s.httpServer.Shutdown(ctx); err != nil {
				logger.Log.Warnf("HTTP shutdown: %v", err)
			}
			cancel()
		}
		if s.rpcServer != nil {
			s.rpcServer.Stop()
		}

		// 已排队的 RoomClosed 先写完再断开
		for _, sess := range s.sessionManager.All() {
			sess.Finish()
		}
	})
}
