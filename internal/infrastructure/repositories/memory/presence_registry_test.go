package memory

import (
	"fmt"
	"testing"

	"classrelay/internal/core/domain"

	"github.com/stretchr/testify/assert"
)

func TestPresenceRegistry_OnlineFiresOnlyOnFirstConnection(t *testing.T) {
	reg := NewPresenceRegistry()
	user := domain.UserID("alice")

	assert.True(t, reg.Add(user, "d1"), "0 -> 1 must report online")
	assert.False(t, reg.Add(user, "d2"), "second device must not report online")
	assert.False(t, reg.Add(user, "d3"))
	assert.True(t, reg.IsOnline(user))
	assert.Equal(t, 1, reg.OnlineCount())
}

func TestPresenceRegistry_OfflineFiresOnlyOnLastDisconnect(t *testing.T) {
	reg := NewPresenceRegistry()
	user := domain.UserID("alice")

	reg.Add(user, "d1")
	reg.Add(user, "d2")

	assert.False(t, reg.Remove(user, "d1"), "one device still active")
	assert.True(t, reg.IsOnline(user))

	assert.True(t, reg.Remove(user, "d2"), "last device must report offline")
	assert.False(t, reg.IsOnline(user))
	assert.Equal(t, 0, reg.OnlineCount())
}

func TestPresenceRegistry_ExactlyOnceForNConnections(t *testing.T) {
	reg := NewPresenceRegistry()
	user := domain.UserID("alice")

	const n = 10
	online := 0
	for i := 0; i < n; i++ {
		if reg.Add(user, domain.ConnectionID(fmt.Sprintf("d%d", i))) {
			online++
		}
	}
	assert.Equal(t, 1, online, "online must fire exactly once for %d connections", n)

	offline := 0
	for i := 0; i < n; i++ {
		if reg.Remove(user, domain.ConnectionID(fmt.Sprintf("d%d", i))) {
			offline++
		}
	}
	assert.Equal(t, 1, offline, "offline must fire exactly once for %d connections", n)
}

func TestPresenceRegistry_RemoveUnknownIsNoOp(t *testing.T) {
	reg := NewPresenceRegistry()

	assert.False(t, reg.Remove("ghost", "d1"))

	reg.Add("alice", "d1")
	assert.False(t, reg.Remove("alice", "other-conn"))
	assert.True(t, reg.IsOnline("alice"))
}
