package signal

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"classrelay/internal/core/domain"
	"classrelay/internal/core/ports"
	"classrelay/internal/infrastructure/monitoring"
	apperrors "classrelay/pkg/errors"

	"go.uber.org/zap"
)

// One-to-one chat namespace events.
const (
	EventJoinRoom         = "join_room"
	EventLeaveRoom        = "leave_room"
	EventChatSendMessage  = "send_message"
	EventSendVoiceMessage = "send_voice_message"
	EventTyping           = "typing"
	EventChatStopTyping   = "stop_typing"

	EventUserStatus          = "user_status"
	EventUserJoined          = "user_joined"
	EventUserLeft            = "user_left"
	EventReceiveMessage      = "receive_message"
	EventReceiveVoiceMessage = "receive_voice_message"
)

// ChatPresence serves the one-to-one chat namespace: multi-device presence
// transitions, chat-room membership, text and voice message relay.
type ChatPresence struct {
	hub            *Hub
	presence       ports.PresenceRegistry
	store          ports.MessageStore
	persistTimeout time.Duration
	logger         *zap.SugaredLogger
	metrics        *monitoring.Collector
}

func NewChatPresence(hub *Hub, presence ports.PresenceRegistry, store ports.MessageStore, persistTimeout time.Duration, logger *zap.SugaredLogger, metrics *monitoring.Collector) *ChatPresence {
	return &ChatPresence{
		hub:            hub,
		presence:       presence,
		store:          store,
		persistTimeout: persistTimeout,
		logger:         logger,
		metrics:        metrics,
	}
}

func chatScope(id domain.ChatRoomID) string {
	return "chat:" + string(id)
}

// userScope is the private per-user scope every connection auto-joins for
// out-of-band direct notifications, independent of any chat room.
func userScope(id domain.UserID) string {
	return "user:" + string(id)
}

// HandleConnect auto-joins the private scope and fires the online transition
// when this is the user's first live connection.
func (p *ChatPresence) HandleConnect(c *Conn) {
	userID := c.Identity().UserID
	p.hub.Join(c, userScope(userID))

	if p.presence.Add(userID, c.ID()) {
		p.hub.BroadcastAll(EventUserStatus, map[string]interface{}{
			"userId": userID,
			"status": domain.StatusOnline,
		}, c.ID())
		p.logger.Infow("user came online", "user_id", userID)
	}
	if p.metrics != nil {
		p.metrics.SetUsersOnline(p.presence.OnlineCount())
	}
}

// HandleDisconnect fires the offline transition only when the last of the
// user's connections goes away.
func (p *ChatPresence) HandleDisconnect(c *Conn) {
	userID := c.Identity().UserID

	if p.presence.Remove(userID, c.ID()) {
		p.hub.BroadcastAll(EventUserStatus, map[string]interface{}{
			"userId": userID,
			"status": domain.StatusOffline,
		}, c.ID())
		p.logger.Infow("user went offline", "user_id", userID)
	}
	if p.metrics != nil {
		p.metrics.SetUsersOnline(p.presence.OnlineCount())
	}
}

func (p *ChatPresence) HandleEvent(c *Conn, event string, data json.RawMessage) error {
	switch event {
	case EventJoinRoom:
		return p.handleJoinRoom(c, data)
	case EventLeaveRoom:
		return p.handleLeaveRoom(c, data)
	case EventChatSendMessage:
		return p.handleSendMessage(c, data)
	case EventSendVoiceMessage:
		return p.handleSendVoiceMessage(c, data)
	case EventTyping:
		return p.handleTyping(c, data, EventTyping)
	case EventChatStopTyping:
		return p.handleTyping(c, data, EventChatStopTyping)
	default:
		return apperrors.NewInvalidInputError(fmt.Sprintf("unknown event: %s", event))
	}
}

type chatRoomRef struct {
	ChatRoomID domain.ChatRoomID `json:"chatRoomId"`
}

func (p *ChatPresence) handleJoinRoom(c *Conn, data json.RawMessage) error {
	var ref chatRoomRef
	if err := json.Unmarshal(data, &ref); err != nil || ref.ChatRoomID == "" {
		return nil
	}

	p.hub.Join(c, chatScope(ref.ChatRoomID))
	p.hub.Broadcast(chatScope(ref.ChatRoomID), EventUserJoined, map[string]interface{}{
		"chatRoomId": ref.ChatRoomID,
		"userId":     c.Identity().UserID,
	}, c.ID())
	return nil
}

func (p *ChatPresence) handleLeaveRoom(c *Conn, data json.RawMessage) error {
	var ref chatRoomRef
	if err := json.Unmarshal(data, &ref); err != nil || ref.ChatRoomID == "" {
		return nil
	}

	p.hub.Leave(c, chatScope(ref.ChatRoomID))
	p.hub.Broadcast(chatScope(ref.ChatRoomID), EventUserLeft, map[string]interface{}{
		"chatRoomId": ref.ChatRoomID,
		"userId":     c.Identity().UserID,
	}, c.ID())
	return nil
}

type directMessageRequest struct {
	ChatRoomID domain.ChatRoomID `json:"chatRoomId"`
	Content    string            `json:"content"`
}

// handleSendMessage persists through the same store collaborator as group
// chat, then broadcasts the envelope to the room, sender included, and
// clears the sender's typing indicator.
func (p *ChatPresence) handleSendMessage(c *Conn, data json.RawMessage) error {
	var req directMessageRequest
	if err := json.Unmarshal(data, &req); err != nil || req.ChatRoomID == "" {
		return nil
	}

	sender := domain.SenderSummary{
		UserID:      c.Identity().UserID,
		DisplayName: c.Identity().DisplayName,
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.persistTimeout)
	defer cancel()

	stored, err := p.store.CreateDirectMessage(ctx, req.ChatRoomID, sender, req.Content)
	if err != nil {
		if p.metrics != nil {
			p.metrics.PersistenceFailed("direct")
		}
		p.logger.Errorw("direct message persistence failed",
			"chat_room_id", req.ChatRoomID,
			"user_id", sender.UserID,
			"error", err,
		)
		c.EmitError(apperrors.NewPersistenceError("failed to send message"))
		return nil
	}

	if p.metrics != nil {
		p.metrics.MessagePersisted("direct")
	}

	envelope := domain.ChatEnvelope{
		ChatRoomID: req.ChatRoomID,
		Content:    req.Content,
		SenderID:   sender.UserID,
		SentAt:     stored.CreatedAt,
		Status:     domain.MessageStatusSent,
	}
	p.hub.Broadcast(chatScope(req.ChatRoomID), EventReceiveMessage, envelope)

	p.hub.Broadcast(chatScope(req.ChatRoomID), EventChatStopTyping, map[string]interface{}{
		"chatRoomId": req.ChatRoomID,
		"userId":     sender.UserID,
	}, c.ID())
	return nil
}

type voiceMessageRequest struct {
	ChatRoomID domain.ChatRoomID `json:"chatRoomId"`
	Audio      []byte            `json:"audioBuffer"`
	Duration   float64           `json:"duration,omitempty"`
}

// handleSendVoiceMessage relays the opaque audio payload to the room. No
// transcoding, validation or persistence happens on this path.
func (p *ChatPresence) handleSendVoiceMessage(c *Conn, data json.RawMessage) error {
	var req voiceMessageRequest
	if err := json.Unmarshal(data, &req); err != nil || req.ChatRoomID == "" {
		return nil
	}

	envelope := domain.VoiceEnvelope{
		ChatRoomID: req.ChatRoomID,
		Audio:      req.Audio,
		Duration:   req.Duration,
		SenderID:   c.Identity().UserID,
		SentAt:     time.Now().UTC(),
		Status:     domain.MessageStatusSent,
	}
	p.hub.Broadcast(chatScope(req.ChatRoomID), EventReceiveVoiceMessage, envelope)
	return nil
}

func (p *ChatPresence) handleTyping(c *Conn, data json.RawMessage, event string) error {
	var ref chatRoomRef
	if err := json.Unmarshal(data, &ref); err != nil || ref.ChatRoomID == "" {
		return nil
	}

	p.hub.Broadcast(chatScope(ref.ChatRoomID), event, map[string]interface{}{
		"chatRoomId": ref.ChatRoomID,
		"userId":     c.Identity().UserID,
	}, c.ID())
	return nil
}
