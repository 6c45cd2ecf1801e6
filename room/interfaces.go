package room

// Broadcaster delivers a frame to a set of connections.
// This is defined here to break the import cycle between room and broadcast.
type Broadcaster interface {
	SendTo(sessionIDs []string, msgID uint16, data []byte) error
}
