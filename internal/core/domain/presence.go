package domain

// PresenceEntry tracks the live connections of one user. The entry exists
// while the set is non-empty; the registry discards it when the last
// connection goes away.
type PresenceEntry struct {
	UserID            UserID
	ActiveConnections map[ConnectionID]struct{}
}

type PresenceStatus string

const (
	StatusOnline  PresenceStatus = "online"
	StatusOffline PresenceStatus = "offline"
)
