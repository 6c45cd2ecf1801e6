package rpc

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/wfunc/bingo/logger"
	"github.com/wfunc/bingo/room"
	"github.com/wfunc/bingo/services"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const defaultRecentGames = 20

// Server manages the RPC listener.
type Server struct {
	grpcServer *grpc.Server
	listener   net.Listener
	address    string
}

// NewServer listens on addr and serves the admin service.
func NewServer(addr string, admin RoomAdminServer) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return NewServerWithListener(listener, admin), nil
}

// NewServerWithListener serves the admin service on an existing listener.
func NewServerWithListener(listener net.Listener, admin RoomAdminServer) *Server {
	gs := grpc.NewServer(grpc.ChainUnaryInterceptor(logInterceptor))
	gs.RegisterService(&RoomAdminServiceDesc, admin)
	return &Server{
		grpcServer: gs,
		listener:   listener,
		address:    listener.Addr().String(),
	}
}

// Start serves until Stop is called.
func (s *Server) Start() error {
	logger.Log.Infof("RPC server listening on %s", s.address)
	if err := s.grpcServer.Serve(s.listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

// Stop drains in-flight calls and closes the listener.
func (s *Server) Stop() {
	logger.Log.Info("Stopping RPC server.")
	s.grpcServer.GracefulStop()
}

func logInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	if err != nil {
		logger.Log.Warnf("RPC %s failed after %s: %v", info.FullMethod, time.Since(start), err)
	} else {
		logger.Log.Debugf("RPC %s served in %s", info.FullMethod, time.Since(start))
	}
	return resp, err
}

// AdminService exposes the coordinator to operators.
type AdminService struct {
	coordinator *services.Coordinator
	history     *services.HistoryService
}

func NewAdminService(coordinator *services.Coordinator, history *services.HistoryService) *AdminService {
	return &AdminService{coordinator: coordinator, history: history}
}

func (a *AdminService) ListRooms(ctx context.Context, _ *ListRoomsRequest) (*ListRoomsResponse, error) {
	snaps := a.coordinator.Rooms()
	resp := &ListRoomsResponse{Rooms: make([]RoomInfo, 0, len(snaps))}
	for _, snap := range snaps {
		resp.Rooms = append(resp.Rooms, roomInfo(snap))
	}
	return resp, nil
}

func (a *AdminService) GetRoom(ctx context.Context, req *GetRoomRequest) (*RoomInfo, error) {
	snap, err := a.coordinator.GetRoom(req.RoomID)
	if err != nil {
		return nil, toStatus(err)
	}
	info := roomInfo(snap)
	return &info, nil
}

func (a *AdminService) CloseRoom(ctx context.Context, req *CloseRoomRequest) (*CloseRoomResponse, error) {
	if req.RoomID == "" {
		return nil, status.Error(codes.InvalidArgument, "room_id is required")
	}
	reason := req.Reason
	if reason == "" {
		reason = "closed by admin"
	}
	if err := a.coordinator.CloseRoom(req.RoomID, reason); err != nil {
		return nil, toStatus(err)
	}
	return &CloseRoomResponse{Closed: true}, nil
}

func (a *AdminService) RecentGames(ctx context.Context, req *RecentGamesRequest) (*RecentGamesResponse, error) {
	if a.history == nil {
		return &RecentGamesResponse{}, nil
	}
	limit := req.Limit
	if limit <= 0 {
		limit = defaultRecentGames
	}
	games, err := a.history.Recent(ctx, limit)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "load games: %v", err)
	}
	return &RecentGamesResponse{Games: games}, nil
}

func roomInfo(snap room.Snapshot) RoomInfo {
	players := make([]string, len(snap.Players))
	for i, p := range snap.Players {
		players[i] = p.Name
	}
	return RoomInfo{
		RoomID:       snap.ID,
		Capacity:     snap.Capacity,
		Phase:        snap.Phase,
		Players:      players,
		Winners:      snap.Winners,
		ActivePlayer: snap.ActivePlayer,
		CreatedAt:    snap.CreatedAt,
		LastActivity: snap.LastActivity,
	}
}

func toStatus(err error) error {
	if errors.Is(err, room.ErrRoomNotFound) {
		return status.Error(codes.NotFound, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}
