package signal

import (
	"testing"

	"classrelay/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMeeting_JoinRosterAndLeaveLifecycle(t *testing.T) {
	env := newTestEnv(t)
	roomID := domain.MeetingRoomID("42")

	a := env.dial("/ws/meetings", "alice", "Alice")
	sendEvent(t, a, EventMeetingJoin, map[string]string{"meetingId": "42"})

	// First joiner gets an empty roster; the room now exists.
	roster := expectEvent(t, a, EventExistingParticipants)
	assert.Equal(t, "meeting_42", roster["roomId"])
	assert.Empty(t, roster["participants"])
	waitFor(t, func() bool { return env.rooms.Contains(roomID) }, "room should exist after first join")

	b := env.dial("/ws/meetings", "bob", "Bob")
	sendEvent(t, b, EventMeetingJoin, map[string]string{"meetingId": "42"})

	// A is told about B; B's roster holds A only.
	joined := expectEvent(t, a, EventMeetingUserJoined)
	assert.Equal(t, "Bob", joined["displayName"])
	require.NotEmpty(t, joined["connectionId"])

	roster = expectEvent(t, b, EventExistingParticipants)
	parts, ok := roster["participants"].([]interface{})
	require.True(t, ok)
	require.Len(t, parts, 1)
	first := parts[0].(map[string]interface{})
	assert.Equal(t, "Alice", first["displayName"])
	assert.Equal(t, "alice", first["userId"])
	assert.Equal(t, false, first["isHost"])
	aConnID := first["connectionId"].(string)

	// A drops its transport; B is told exactly once and the room survives.
	require.NoError(t, a.Close())
	left := expectEvent(t, b, EventMeetingUserLeft)
	assert.Equal(t, aConnID, left["connectionId"])
	waitFor(t, func() bool {
		return len(env.rooms.Participants(roomID)) == 1
	}, "room should retain the other participant")
	assert.True(t, env.rooms.Contains(roomID))

	// B leaves explicitly, then disconnects. The room is deleted once and
	// the later disconnect cleanup finds nothing left to do.
	sendEvent(t, b, EventLeaveMeeting, nil)
	waitFor(t, func() bool { return !env.rooms.Contains(roomID) }, "empty room should be deleted")
	require.NoError(t, b.Close())
	waitFor(t, func() bool { return env.meetings.ConnCount() == 0 }, "connections should unregister")
	assert.Equal(t, 0, env.rooms.RoomCount())
}

func TestMeeting_SignalRelayIsPointToPoint(t *testing.T) {
	env := newTestEnv(t)

	a := env.dial("/ws/meetings", "alice", "Alice")
	sendEvent(t, a, EventMeetingJoin, map[string]string{"meetingId": "demo"})
	expectEvent(t, a, EventExistingParticipants)

	b := env.dial("/ws/meetings", "bob", "Bob")
	sendEvent(t, b, EventMeetingJoin, map[string]string{"meetingId": "demo"})
	bJoined := expectEvent(t, a, EventMeetingUserJoined)
	bConnID := bJoined["connectionId"].(string)
	roster := expectEvent(t, b, EventExistingParticipants)
	aConnID := roster["participants"].([]interface{})[0].(map[string]interface{})["connectionId"].(string)

	c := env.dial("/ws/meetings", "carol", "Carol")
	sendEvent(t, c, EventMeetingJoin, map[string]string{"meetingId": "demo"})
	expectEvent(t, a, EventMeetingUserJoined)
	expectEvent(t, b, EventMeetingUserJoined)
	expectEvent(t, c, EventExistingParticipants)

	// Offer goes to its target only, tagged with the sender's connection id.
	sendEvent(t, a, EventOffer, map[string]interface{}{
		"target": bConnID,
		"offer":  map[string]string{"type": "offer", "sdp": "v=0"},
	})
	got := expectEvent(t, b, EventOffer)
	assert.Equal(t, aConnID, got["from"])
	offer := got["offer"].(map[string]interface{})
	assert.Equal(t, "v=0", offer["sdp"])

	// Answer travels the other way.
	sendEvent(t, b, EventAnswer, map[string]interface{}{
		"target": aConnID,
		"answer": map[string]string{"type": "answer", "sdp": "v=1"},
	})
	got = expectEvent(t, a, EventAnswer)
	assert.Equal(t, bConnID, got["from"])

	// ICE candidates use the same relay.
	sendEvent(t, a, EventICECandidate, map[string]interface{}{
		"target":    bConnID,
		"candidate": map[string]interface{}{"candidate": "candidate:0 1 udp", "sdpMLineIndex": 0},
	})
	got = expectEvent(t, b, EventICECandidate)
	assert.Equal(t, aConnID, got["from"])

	// The third participant never saw any of it.
	expectSilence(t, c)
}

func TestMeeting_RelayToDeadTargetNotifiesSender(t *testing.T) {
	env := newTestEnv(t)

	a := env.dial("/ws/meetings", "alice", "Alice")
	sendEvent(t, a, EventMeetingJoin, map[string]string{"meetingId": "demo"})
	expectEvent(t, a, EventExistingParticipants)

	sendEvent(t, a, EventOffer, map[string]interface{}{
		"target": "no-such-conn",
		"offer":  map[string]string{"sdp": "v=0"},
	})

	failed := expectEvent(t, a, EventRelayFailed)
	assert.Equal(t, "no-such-conn", failed["target"])
	assert.Equal(t, EventOffer, failed["kind"])
}

func TestMeeting_StreamStatusPersistsAndFansOut(t *testing.T) {
	env := newTestEnv(t)
	roomID := domain.MeetingRoomID("demo")

	a := env.dial("/ws/meetings", "alice", "Alice")
	sendEvent(t, a, EventMeetingJoin, map[string]string{"meetingId": "demo"})
	expectEvent(t, a, EventExistingParticipants)

	b := env.dial("/ws/meetings", "bob", "Bob")
	sendEvent(t, b, EventMeetingJoin, map[string]string{"meetingId": "demo"})
	bJoined := expectEvent(t, a, EventMeetingUserJoined)
	bConnID := bJoined["connectionId"].(string)
	expectEvent(t, b, EventExistingParticipants)

	sendEvent(t, b, EventStreamStatus, map[string]interface{}{
		"audio": false,
		"video": true,
	})

	status := expectEvent(t, a, EventParticipantStreamState)
	assert.Equal(t, bConnID, status["connectionId"])
	assert.Equal(t, false, status["audio"])
	assert.Equal(t, true, status["video"])

	// The roster keeps the reported state for late joiners.
	waitFor(t, func() bool {
		for _, p := range env.rooms.Participants(roomID) {
			if string(p.ConnectionID) == bConnID {
				return !p.AudioEnabled && p.VideoEnabled
			}
		}
		return false
	}, "stream status should be recorded on the roster entry")

	c := env.dial("/ws/meetings", "carol", "Carol")
	sendEvent(t, c, EventMeetingJoin, map[string]string{"meetingId": "demo"})
	roster := expectEvent(t, c, EventExistingParticipants)
	for _, raw := range roster["participants"].([]interface{}) {
		p := raw.(map[string]interface{})
		if p["connectionId"] == bConnID {
			assert.Equal(t, false, p["audioEnabled"])
			assert.Equal(t, true, p["videoEnabled"])
		}
	}
}

func TestMeeting_JoinSecondMeetingLeavesFirst(t *testing.T) {
	env := newTestEnv(t)
	roomOne := domain.MeetingRoomID("one")
	roomTwo := domain.MeetingRoomID("two")

	b := env.dial("/ws/meetings", "bob", "Bob")
	sendEvent(t, b, EventMeetingJoin, map[string]string{"meetingId": "one"})
	expectEvent(t, b, EventExistingParticipants)

	a := env.dial("/ws/meetings", "alice", "Alice")
	sendEvent(t, a, EventMeetingJoin, map[string]string{"meetingId": "one"})
	joined := expectEvent(t, b, EventMeetingUserJoined)
	aConnID := joined["connectionId"].(string)
	expectEvent(t, a, EventExistingParticipants)

	// Switching meetings without an explicit leave runs the leave path for
	// the first room: B hears user-left and the roster drops A's entry.
	sendEvent(t, a, EventMeetingJoin, map[string]string{"meetingId": "two"})
	roster := expectEvent(t, a, EventExistingParticipants)
	assert.Equal(t, "meeting_two", roster["roomId"])
	assert.Empty(t, roster["participants"])

	left := expectEvent(t, b, EventMeetingUserLeft)
	assert.Equal(t, aConnID, left["connectionId"])
	waitFor(t, func() bool {
		return len(env.rooms.Participants(roomOne)) == 1
	}, "first room should hold the remaining participant only")
	assert.True(t, env.rooms.Contains(roomTwo))

	// A was the second room's only member, so its disconnect deletes it.
	require.NoError(t, a.Close())
	waitFor(t, func() bool { return !env.rooms.Contains(roomTwo) }, "second room should be deleted")
	require.NoError(t, b.Close())
	waitFor(t, func() bool { return env.meetings.ConnCount() == 0 }, "connections should unregister")
	assert.Equal(t, 0, env.rooms.RoomCount())
}

func TestMeeting_RejoinSameMeetingKeepsRosterExact(t *testing.T) {
	env := newTestEnv(t)
	roomID := domain.MeetingRoomID("demo")

	a := env.dial("/ws/meetings", "alice", "Alice")
	sendEvent(t, a, EventMeetingJoin, map[string]string{"meetingId": "demo"})
	expectEvent(t, a, EventExistingParticipants)

	b := env.dial("/ws/meetings", "bob", "Bob")
	sendEvent(t, b, EventMeetingJoin, map[string]string{"meetingId": "demo"})
	joined := expectEvent(t, a, EventMeetingUserJoined)
	bConnID := joined["connectionId"].(string)
	expectEvent(t, b, EventExistingParticipants)

	// A re-joins the room it is already in. Its roster must list B only,
	// never its own stale entry.
	sendEvent(t, a, EventMeetingJoin, map[string]string{"meetingId": "demo"})
	roster := expectEvent(t, a, EventExistingParticipants)
	parts, ok := roster["participants"].([]interface{})
	require.True(t, ok)
	require.Len(t, parts, 1)
	assert.Equal(t, bConnID, parts[0].(map[string]interface{})["connectionId"])

	assert.Len(t, env.rooms.Participants(roomID), 2)

	// B hears nothing: no duplicate user-joined, no spurious user-left.
	expectSilence(t, b)
}

func TestMeeting_JoinWithoutMeetingIDIsSilentNoOp(t *testing.T) {
	env := newTestEnv(t)

	a := env.dial("/ws/meetings", "alice", "Alice")
	sendEvent(t, a, EventMeetingJoin, map[string]string{})

	assert.Equal(t, 0, env.rooms.RoomCount())
	expectSilence(t, a)
}

func TestMeeting_StreamStatusBeforeJoinIsIgnored(t *testing.T) {
	env := newTestEnv(t)

	a := env.dial("/ws/meetings", "alice", "Alice")
	sendEvent(t, a, EventStreamStatus, map[string]interface{}{"audio": true, "video": true})

	expectSilence(t, a)
}
