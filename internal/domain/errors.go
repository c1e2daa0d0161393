package domain

import "errors"

// Matchmaking and relay rejections. Handlers classify with errors.Is and map
// these to wire errors / HTTP status codes.
var (
	ErrAlreadyInRoom   = errors.New("user already in an active room")
	ErrNotInQueue      = errors.New("user not in queue")
	ErrRoomNotFound    = errors.New("room not found")
	ErrRoomEnded       = errors.New("room already ended")
	ErrNotAParticipant = errors.New("sender is not a room participant")
	ErrInvalidTarget   = errors.New("target is not the other room participant")
	ErrEmptyMessage    = errors.New("empty message")
)
