package rpc

import (
	"context"
	"time"

	"github.com/wfunc/bingo/models"
	"google.golang.org/grpc"
)

const serviceName = "bingo.admin.RoomAdmin"

type RoomInfo struct {
	RoomID       string    `json:"room_id"`
	Capacity     int       `json:"capacity"`
	Phase        string    `json:"phase"`
	Players      []string  `json:"players"`
	Winners      []string  `json:"winners"`
	ActivePlayer string    `json:"active_player"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
}

type ListRoomsRequest struct{}

type ListRoomsResponse struct {
	Rooms []RoomInfo `json:"rooms"`
}

type GetRoomRequest struct {
	RoomID string `json:"room_id"`
}

type CloseRoomRequest struct {
	RoomID string `json:"room_id"`
	Reason string `json:"reason"`
}

type CloseRoomResponse struct {
	Closed bool `json:"closed"`
}

type RecentGamesRequest struct {
	Limit int `json:"limit"`
}

type RecentGamesResponse struct {
	Games []models.GameRecord `json:"games"`
}

// RoomAdminServer is the admin surface over the live room table.
type RoomAdminServer interface {
	ListRooms(context.Context, *ListRoomsRequest) (*ListRoomsResponse, error)
	GetRoom(context.Context, *GetRoomRequest) (*RoomInfo, error)
	CloseRoom(context.Context, *CloseRoomRequest) (*CloseRoomResponse, error)
	RecentGames(context.Context, *RecentGamesRequest) (*RecentGamesResponse, error)
}

// RoomAdminServiceDesc is registered with grpc.Server.RegisterService.
var RoomAdminServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*RoomAdminServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ListRooms", Handler: unaryHandler("ListRooms", RoomAdminServer.ListRooms)},
		{MethodName: "GetRoom", Handler: unaryHandler("GetRoom", RoomAdminServer.GetRoom)},
		{MethodName: "CloseRoom", Handler: unaryHandler("CloseRoom", RoomAdminServer.CloseRoom)},
		{MethodName: "RecentGames", Handler: unaryHandler("RecentGames", RoomAdminServer.RecentGames)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "bingo/admin",
}

func fullMethod(method string) string {
	return "/" + serviceName + "/" + method
}

func unaryHandler[Req, Resp any](method string, call func(RoomAdminServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(RoomAdminServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(method)}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(RoomAdminServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// RoomAdminClient calls the admin service over any client connection.
type RoomAdminClient struct {
	cc grpc.ClientConnInterface
}

func NewRoomAdminClient(cc grpc.ClientConnInterface) *RoomAdminClient {
	return &RoomAdminClient{cc: cc}
}

func (c *RoomAdminClient) invoke(ctx context.Context, method string, in, out interface{}, opts ...grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(codecName)}, opts...)
	return c.cc.Invoke(ctx, fullMethod(method), in, out, opts...)
}

func (c *RoomAdminClient) ListRooms(ctx context.Context, in *ListRoomsRequest, opts ...grpc.CallOption) (*ListRoomsResponse, error) {
	out := new(ListRoomsResponse)
	if err := c.invoke(ctx, "ListRooms", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *RoomAdminClient) GetRoom(ctx context.Context, in *GetRoomRequest, opts ...grpc.CallOption) (*RoomInfo, error) {
	out := new(RoomInfo)
	if err := c.invoke(ctx, "GetRoom", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *RoomAdminClient) CloseRoom(ctx context.Context, in *CloseRoomRequest, opts ...grpc.CallOption) (*CloseRoomResponse, error) {
	out := new(CloseRoomResponse)
	if err := c.invoke(ctx, "CloseRoom", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *RoomAdminClient) RecentGames(ctx context.Context, in *RecentGamesRequest, opts ...grpc.CallOption) (*RecentGamesResponse, error) {
	out := new(RecentGamesResponse)
	if err := c.invoke(ctx, "RecentGames", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
