package monitoring

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.ConnectionOpened("groups")
	c.ConnectionOpened("groups")
	c.ConnectionClosed("groups")
	c.MessagePersisted("group")
	c.PersistenceFailed("direct")
	c.SignalRelayed("offer")
	c.RelayFailed()
	c.AuthRejected("chat")
	c.EventDropped("meetings")
	c.SetMeetingRooms(3)
	c.SetUsersOnline(7)

	assert.Equal(t, float64(1), testutil.ToFloat64(c.connectionsActive.WithLabelValues("groups")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.messagesPersisted.WithLabelValues("group")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.persistenceFailures.WithLabelValues("direct")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.signalsRelayed.WithLabelValues("offer")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.relayFailures))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.authRejections.WithLabelValues("chat")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.eventsDropped.WithLabelValues("meetings")))
	assert.Equal(t, float64(3), testutil.ToFloat64(c.meetingRooms))
	assert.Equal(t, float64(7), testutil.ToFloat64(c.usersOnline))
}

func TestCollectorsWithSeparateRegistriesCoexist(t *testing.T) {
	// Construction must not fight over a shared default registry.
	a := NewCollector(prometheus.NewRegistry())
	b := NewCollector(prometheus.NewRegistry())
	require.NotNil(t, a)
	require.NotNil(t, b)
}

func TestHealthCheckerReportsDegradedCheck(t *testing.T) {
	h := NewHealthChecker()
	h.AddCheck("store", func(ctx context.Context) error { return nil }, time.Second)
	h.AddCheck("redis", func(ctx context.Context) error { return errors.New("connection refused") }, time.Second)
	h.AddStat(func() (string, int) { return "group_connections", 4 })

	status := h.CheckAll(context.Background())

	assert.Equal(t, "degraded", status.Status)
	assert.Equal(t, "ok", status.Checks["store"])
	assert.Contains(t, status.Checks["redis"], "connection refused")
	assert.Equal(t, 4, status.Stats["group_connections"])
}

func TestHealthCheckerHealthyWhenAllChecksPass(t *testing.T) {
	h := NewHealthChecker()
	h.AddCheck("store", func(ctx context.Context) error { return nil }, time.Second)

	status := h.CheckAll(context.Background())
	assert.Equal(t, "healthy", status.Status)
	assert.False(t, status.Timestamp.IsZero())
}

func TestHealthCheckerCheckTimeout(t *testing.T) {
	h := NewHealthChecker()
	h.AddCheck("slow", func(ctx context.Context) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Second):
			return nil
		}
	}, 50*time.Millisecond)

	status := h.CheckAll(context.Background())
	assert.Equal(t, "degraded", status.Status)
}
