package memory

import (
	"sync"

	"classrelay/internal/core/domain"
	"classrelay/internal/core/ports"
)

// PresenceRegistry tracks which users have at least one live connection.
// Entries are created on a user's first connection and discarded when the
// active set becomes empty, so the online/offline edges fire exactly once
// regardless of how many devices a user holds.
type PresenceRegistry struct {
	entries map[domain.UserID]*domain.PresenceEntry
	mu      sync.RWMutex
}

func NewPresenceRegistry() ports.PresenceRegistry {
	return &PresenceRegistry{
		entries: make(map[domain.UserID]*domain.PresenceEntry),
	}
}

func (r *PresenceRegistry) Add(userID domain.UserID, connID domain.ConnectionID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, exists := r.entries[userID]
	if !exists {
		entry = &domain.PresenceEntry{
			UserID:            userID,
			ActiveConnections: make(map[domain.ConnectionID]struct{}),
		}
		r.entries[userID] = entry
	}

	cameOnline := len(entry.ActiveConnections) == 0
	entry.ActiveConnections[connID] = struct{}{}
	return cameOnline
}

func (r *PresenceRegistry) Remove(userID domain.UserID, connID domain.ConnectionID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, exists := r.entries[userID]
	if !exists {
		return false
	}
	if _, active := entry.ActiveConnections[connID]; !active {
		return false
	}

	delete(entry.ActiveConnections, connID)
	if len(entry.ActiveConnections) == 0 {
		delete(r.entries, userID)
		return true
	}
	return false
}

func (r *PresenceRegistry) IsOnline(userID domain.UserID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.entries[userID]
	return exists
}

func (r *PresenceRegistry) OnlineCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.entries)
}
