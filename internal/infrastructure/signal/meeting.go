package signal

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"classrelay/internal/core/domain"
	"classrelay/internal/core/ports"
	"classrelay/internal/infrastructure/monitoring"
	apperrors "classrelay/pkg/errors"

	"go.uber.org/zap"
)

// Meeting namespace events. The join event keeps its historical name: the
// web clients have always sent "joinGroup" to join a meeting room.
const (
	EventMeetingJoin  = "joinGroup"
	EventOffer        = "offer"
	EventAnswer       = "answer"
	EventICECandidate = "ice-candidate"
	EventStreamStatus = "stream-status"
	EventLeaveMeeting = "leave-meeting"

	EventMeetingUserJoined      = "user-joined"
	EventExistingParticipants   = "existing-participants"
	EventMeetingUserLeft        = "user-left"
	EventParticipantStreamState = "participant-stream-status"
	EventRelayFailed            = "relay-failed"
)

// MeetingManager serves the meeting namespace: room rosters, point-to-point
// WebRTC signaling relay and stream-status fan-out. Rooms move
// empty -> active -> empty; the empty transition deletes the room.
type MeetingManager struct {
	hub     *Hub
	rooms   ports.RoomRegistry
	logger  *zap.SugaredLogger
	metrics *monitoring.Collector
}

func NewMeetingManager(hub *Hub, rooms ports.RoomRegistry, logger *zap.SugaredLogger, metrics *monitoring.Collector) *MeetingManager {
	return &MeetingManager{
		hub:     hub,
		rooms:   rooms,
		logger:  logger,
		metrics: metrics,
	}
}

func (m *MeetingManager) HandleConnect(c *Conn) {}

func (m *MeetingManager) HandleDisconnect(c *Conn) {
	m.leave(c)
}

func (m *MeetingManager) HandleEvent(c *Conn, event string, data json.RawMessage) error {
	switch event {
	case EventMeetingJoin:
		return m.handleJoin(c, data)
	case EventOffer, EventAnswer, EventICECandidate:
		return m.handleRelay(c, event, data)
	case EventStreamStatus:
		return m.handleStreamStatus(c, data)
	case EventLeaveMeeting:
		m.leave(c)
		return nil
	default:
		return apperrors.NewInvalidInputError(fmt.Sprintf("unknown event: %s", event))
	}
}

type meetingJoinRequest struct {
	GroupID   string `json:"groupId"`
	UserID    string `json:"userId"`
	MeetingID string `json:"meetingId"`
}

// handleJoin creates the room lazily, broadcasts the arrival to existing
// members and hands the full roster back to the joining connection only.
// Host assignment is an external policy decision, so isHost starts false.
func (m *MeetingManager) handleJoin(c *Conn, data json.RawMessage) error {
	var req meetingJoinRequest
	if err := json.Unmarshal(data, &req); err != nil || req.MeetingID == "" {
		return nil
	}

	roomID := domain.MeetingRoomID(req.MeetingID)

	// A connection is a member of at most one meeting. Joining a different
	// meeting runs the full leave path for the current one first, so the old
	// room's roster stays exact and its members get their user-left.
	current := c.Room()
	if current != "" && current != roomID {
		m.leave(c)
	}
	rejoin := current == roomID

	info := &domain.ParticipantInfo{
		ConnectionID: c.ID(),
		UserID:       c.Identity().UserID,
		DisplayName:  c.Identity().DisplayName,
		IsHost:       false,
	}

	existing := m.rooms.Join(roomID, info)
	m.hub.Join(c, string(roomID))
	c.SetRoom(roomID)

	// On a re-join the registry roster still held this connection's own
	// entry; peers must not include it.
	peers := make([]*domain.ParticipantInfo, 0, len(existing))
	for _, p := range existing {
		if p.ConnectionID != c.ID() {
			peers = append(peers, p)
		}
	}

	if !rejoin {
		m.hub.Broadcast(string(roomID), EventMeetingUserJoined, map[string]interface{}{
			"connectionId": c.ID(),
			"displayName":  c.Identity().DisplayName,
			"timestamp":    time.Now().UTC(),
		}, c.ID())
	}

	c.Emit(EventExistingParticipants, map[string]interface{}{
		"participants": peers,
		"roomId":       roomID,
	})

	if m.metrics != nil {
		m.metrics.SetMeetingRooms(m.rooms.RoomCount())
	}
	m.logger.Infow("participant joined meeting",
		"room_id", roomID,
		"connection_id", c.ID(),
		"user_id", c.Identity().UserID,
	)
	return nil
}

type relayRequest struct {
	Target    domain.ConnectionID `json:"target"`
	Offer     json.RawMessage     `json:"offer,omitempty"`
	Answer    json.RawMessage     `json:"answer,omitempty"`
	Candidate json.RawMessage     `json:"candidate,omitempty"`
}

// handleRelay forwards a signaling payload verbatim to the single target
// connection, tagged with the sender's connection id. SDP and ICE content
// are never interpreted here. A dead target is reported back to the sender
// as a non-fatal notice instead of being dropped on the floor.
func (m *MeetingManager) handleRelay(c *Conn, kind string, data json.RawMessage) error {
	var req relayRequest
	if err := json.Unmarshal(data, &req); err != nil || req.Target == "" {
		return nil
	}

	payload := map[string]interface{}{
		"from": c.ID(),
	}
	switch kind {
	case EventOffer:
		payload["offer"] = req.Offer
	case EventAnswer:
		payload["answer"] = req.Answer
	case EventICECandidate:
		payload["candidate"] = req.Candidate
	}

	if err := m.hub.SendTo(req.Target, kind, payload); err != nil {
		if errors.Is(err, domain.ErrConnectionNotFound) {
			if m.metrics != nil {
				m.metrics.RelayFailed()
			}
			m.logger.Warnw("signaling target no longer connected",
				"kind", kind,
				"from", c.ID(),
				"target", req.Target,
			)
			c.Emit(EventRelayFailed, map[string]interface{}{
				"target": req.Target,
				"kind":   kind,
			})
		}
		return nil
	}

	if m.metrics != nil {
		m.metrics.SignalRelayed(kind)
	}
	return nil
}

type streamStatusRequest struct {
	Audio bool `json:"audio"`
	Video bool `json:"video"`
}

// handleStreamStatus records the media state on the roster entry and fans
// the change out to the rest of the room.
func (m *MeetingManager) handleStreamStatus(c *Conn, data json.RawMessage) error {
	var req streamStatusRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil
	}

	roomID := c.Room()
	if roomID == "" {
		return nil
	}

	m.rooms.SetStreamStatus(roomID, c.ID(), req.Audio, req.Video)
	m.hub.Broadcast(string(roomID), EventParticipantStreamState, map[string]interface{}{
		"connectionId": c.ID(),
		"audio":        req.Audio,
		"video":        req.Video,
	}, c.ID())
	return nil
}

// leave is the unified cleanup for explicit leave-meeting and transport
// disconnect. It is idempotent: the registry reports whether the connection
// was still a member, and a second invocation finds no recorded room.
func (m *MeetingManager) leave(c *Conn) {
	roomID := c.Room()
	if roomID == "" {
		return
	}
	c.SetRoom("")

	removed, empty := m.rooms.Leave(roomID, c.ID())
	m.hub.Leave(c, string(roomID))
	if !removed {
		return
	}

	m.hub.Broadcast(string(roomID), EventMeetingUserLeft, map[string]interface{}{
		"connectionId": c.ID(),
		"timestamp":    time.Now().UTC(),
	}, c.ID())

	if m.metrics != nil {
		m.metrics.SetMeetingRooms(m.rooms.RoomCount())
	}
	m.logger.Infow("participant left meeting",
		"room_id", roomID,
		"connection_id", c.ID(),
		"room_deleted", empty,
	)
}
