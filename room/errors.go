package room

import "errors"

var (
	ErrRoomNotFound   = errors.New("room not found")
	ErrRoomFull       = errors.New("room is full")
	ErrInvalidName    = errors.New("invalid player name")
	ErrNameTaken      = errors.New("name already taken")
	ErrStaleReference = errors.New("room no longer exists")
	ErrPlayerNotFound = errors.New("player not found in room")
	ErrGameInProgress = errors.New("game already in progress")
	ErrNotPlaying     = errors.New("room is not playing")
	ErrAlreadyInRoom  = errors.New("connection already in a room")
)

var errorCodes = []struct {
	err  error
	code string
}{
	{ErrRoomNotFound, "room_not_found"},
	{ErrRoomFull, "room_full"},
	{ErrInvalidName, "invalid_name"},
	{ErrNameTaken, "name_taken"},
	{ErrStaleReference, "stale_reference"},
	{ErrPlayerNotFound, "player_not_found"},
	{ErrGameInProgress, "game_in_progress"},
	{ErrNotPlaying, "not_playing"},
	{ErrAlreadyInRoom, "already_in_room"},
}

// Code maps a room error to its stable wire code, "internal" otherwise.
func Code(err error) string {
	for _, c := range errorCodes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "internal"
}
