package session

import "errors"

var (
	ErrEmptyInput        = errors.New("room code is empty")
	ErrRoomNotFound      = errors.New("room not found")
	ErrRoomFull          = errors.New("room is full")
	ErrNotCancelable     = errors.New("room can only be canceled by its host before anyone joins")
	ErrNotInRoom         = errors.New("not in a room")
	ErrAlreadyInRoom     = errors.New("already in a room")
	ErrRevealUnavailable = errors.New("reveal is not available")
)
