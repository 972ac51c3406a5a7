package domain

type UserID string

// ConnectionID is the opaque per-transport-session identifier. A user with
// several devices holds several connection ids at once.
type ConnectionID string

// Identity is produced once per connection by the connection gate and never
// changes for the lifetime of that connection.
type Identity struct {
	UserID      UserID
	DisplayName string
	RawClaims   map[string]interface{}
}
