package ports

import (
	"context"

	"classrelay/internal/core/domain"
)

// RoomRegistry owns the meeting room map. All mutating operations are
// serialized internally; callers never hold references into the registry's
// own state (participant slices are copies).
type RoomRegistry interface {
	// Join inserts the participant, creating the room if absent, and
	// returns the roster as it was before the join.
	Join(roomID domain.RoomID, info *domain.ParticipantInfo) []*domain.ParticipantInfo

	// Leave removes the connection from the room. removed reports whether
	// the connection was actually a member (false makes double cleanup a
	// no-op); empty reports whether the room was deleted as a result.
	Leave(roomID domain.RoomID, connID domain.ConnectionID) (removed bool, empty bool)

	Participants(roomID domain.RoomID) []*domain.ParticipantInfo
	Contains(roomID domain.RoomID) bool

	// SetStreamStatus records the last reported media state on the roster
	// entry. Returns false if the room or participant is gone.
	SetStreamStatus(roomID domain.RoomID, connID domain.ConnectionID, audio, video bool) bool

	RoomCount() int
}

// PresenceRegistry owns the userId -> active-connection-set map.
type PresenceRegistry interface {
	// Add registers a connection and reports whether the user transitioned
	// from offline to online (the 0 -> 1 edge, exactly once).
	Add(userID domain.UserID, connID domain.ConnectionID) (cameOnline bool)

	// Remove deregisters a connection and reports whether the user
	// transitioned to offline (the N -> 0 edge, exactly once). Removing an
	// unknown connection is a no-op.
	Remove(userID domain.UserID, connID domain.ConnectionID) (wentOffline bool)

	IsOnline(userID domain.UserID) bool
	OnlineCount() int
}

// MessageStore is the external persistence collaborator. Both chat paths go
// through it: group messages and one-to-one messages persist before any
// broadcast happens.
type MessageStore interface {
	CreateGroupMessage(ctx context.Context, groupID domain.GroupID, sender domain.SenderSummary, content string, att *domain.Attachment) (*domain.StoredMessage, error)
	CreateDirectMessage(ctx context.Context, roomID domain.ChatRoomID, sender domain.SenderSummary, content string) (*domain.StoredMessage, error)
}
