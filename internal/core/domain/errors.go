package domain

import "errors"

var (
	ErrRoomNotFound        = errors.New("room not found")
	ErrConnectionNotFound  = errors.New("connection not found")
	ErrNotInRoom           = errors.New("connection is not a room member")
	ErrMessageNotPersisted = errors.New("message could not be persisted")
)
