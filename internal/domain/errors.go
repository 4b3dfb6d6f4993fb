package domain

import "errors"

var (
	ErrEmptyRoomID    = errors.New("empty room id")
	ErrRoomNotOpen    = errors.New("room not open")
	ErrInvalidPage    = errors.New("invalid page request")
	ErrNotConnected   = errors.New("transport not connected")
	ErrUnknownMessage = errors.New("unknown message")
)
