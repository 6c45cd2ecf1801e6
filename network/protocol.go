package network

const (
	MsgTypeHeartbeat = 1

	// client -> server
	MsgTypeJoinRoom  = 101
	MsgTypeLeaveRoom = 102
	MsgTypeNumber    = 201
	MsgTypeWin       = 202

	// server -> client
	MsgTypeRosterUpdate       = 301
	MsgTypeGameStart          = 303
	MsgTypeTurn               = 304
	MsgTypeGameOver           = 305
	MsgTypeWinNotice          = 306
	MsgTypePlayerDisconnected = 307
	MsgTypeRoomClosed         = 308
	MsgTypeErrorNotice        = 399
)
