package memory

import (
	"sync"

	"classrelay/internal/core/domain"
	"classrelay/internal/core/ports"
)

// RoomRegistry keeps the meeting room map in process memory. Rooms are
// created lazily on first join and deleted, not merely emptied, when the
// last participant leaves.
type RoomRegistry struct {
	rooms map[domain.RoomID]*domain.MeetingRoom
	mu    sync.RWMutex
}

func NewRoomRegistry() ports.RoomRegistry {
	return &RoomRegistry{
		rooms: make(map[domain.RoomID]*domain.MeetingRoom),
	}
}

func (r *RoomRegistry) Join(roomID domain.RoomID, info *domain.ParticipantInfo) []*domain.ParticipantInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, exists := r.rooms[roomID]
	if !exists {
		room = &domain.MeetingRoom{
			ID:           roomID,
			Participants: make(map[domain.ConnectionID]*domain.ParticipantInfo),
		}
		r.rooms[roomID] = room
	}

	existing := make([]*domain.ParticipantInfo, 0, len(room.Participants))
	for _, p := range room.Participants {
		cp := *p
		existing = append(existing, &cp)
	}

	cp := *info
	room.Participants[info.ConnectionID] = &cp
	return existing
}

func (r *RoomRegistry) Leave(roomID domain.RoomID, connID domain.ConnectionID) (removed bool, empty bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, exists := r.rooms[roomID]
	if !exists {
		return false, false
	}
	if _, member := room.Participants[connID]; !member {
		return false, false
	}

	delete(room.Participants, connID)
	if len(room.Participants) == 0 {
		delete(r.rooms, roomID)
		return true, true
	}
	return true, false
}

func (r *RoomRegistry) Participants(roomID domain.RoomID) []*domain.ParticipantInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room, exists := r.rooms[roomID]
	if !exists {
		return nil
	}

	out := make([]*domain.ParticipantInfo, 0, len(room.Participants))
	for _, p := range room.Participants {
		cp := *p
		out = append(out, &cp)
	}
	return out
}

func (r *RoomRegistry) Contains(roomID domain.RoomID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.rooms[roomID]
	return exists
}

func (r *RoomRegistry) SetStreamStatus(roomID domain.RoomID, connID domain.ConnectionID, audio, video bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, exists := r.rooms[roomID]
	if !exists {
		return false
	}
	p, member := room.Participants[connID]
	if !member {
		return false
	}

	p.AudioEnabled = audio
	p.VideoEnabled = video
	return true
}

func (r *RoomRegistry) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.rooms)
}
