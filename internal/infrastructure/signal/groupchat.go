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

// Group chat namespace events.
const (
	EventJoinGroup   = "joinGroup"
	EventLeaveGroup  = "leaveGroup"
	EventStartTyping = "startTyping"
	EventStopTyping  = "stopTyping"
	EventSendMessage = "sendMessage"

	EventUserTyping        = "userTyping"
	EventUserStoppedTyping = "userStoppedTyping"
	EventMessageReceived   = "messageReceived"
)

// GroupChatRelay serves the group chat namespace: per-group broadcast scopes,
// fire-and-forget typing signals, and persist-then-broadcast messaging.
type GroupChatRelay struct {
	hub            *Hub
	store          ports.MessageStore
	persistTimeout time.Duration
	logger         *zap.SugaredLogger
	metrics        *monitoring.Collector
}

func NewGroupChatRelay(hub *Hub, store ports.MessageStore, persistTimeout time.Duration, logger *zap.SugaredLogger, metrics *monitoring.Collector) *GroupChatRelay {
	return &GroupChatRelay{
		hub:            hub,
		store:          store,
		persistTimeout: persistTimeout,
		logger:         logger,
		metrics:        metrics,
	}
}

func groupScope(id domain.GroupID) string {
	return "group:" + string(id)
}

func (g *GroupChatRelay) HandleConnect(c *Conn) {}

func (g *GroupChatRelay) HandleDisconnect(c *Conn) {}

func (g *GroupChatRelay) HandleEvent(c *Conn, event string, data json.RawMessage) error {
	switch event {
	case EventJoinGroup:
		return g.handleJoin(c, data)
	case EventLeaveGroup:
		return g.handleLeave(c, data)
	case EventStartTyping:
		return g.handleTyping(c, data, true)
	case EventStopTyping:
		return g.handleTyping(c, data, false)
	case EventSendMessage:
		return g.handleSendMessage(c, data)
	default:
		return apperrors.NewInvalidInputError(fmt.Sprintf("unknown event: %s", event))
	}
}

type groupRef struct {
	GroupID domain.GroupID `json:"groupId"`
}

// handleJoin is idempotent; a missing groupId is a silent no-op so stale
// client state cannot error the connection.
func (g *GroupChatRelay) handleJoin(c *Conn, data json.RawMessage) error {
	var ref groupRef
	if err := json.Unmarshal(data, &ref); err != nil || ref.GroupID == "" {
		return nil
	}
	g.hub.Join(c, groupScope(ref.GroupID))
	return nil
}

func (g *GroupChatRelay) handleLeave(c *Conn, data json.RawMessage) error {
	var ref groupRef
	if err := json.Unmarshal(data, &ref); err != nil || ref.GroupID == "" {
		return nil
	}
	g.hub.Leave(c, groupScope(ref.GroupID))
	return nil
}

// handleTyping relays a typing-state signal to everyone else in the group.
// No state is retained.
func (g *GroupChatRelay) handleTyping(c *Conn, data json.RawMessage, started bool) error {
	var ref groupRef
	if err := json.Unmarshal(data, &ref); err != nil || ref.GroupID == "" {
		return nil
	}

	event := EventUserStoppedTyping
	payload := map[string]interface{}{
		"groupId": ref.GroupID,
		"userId":  c.Identity().UserID,
	}
	if started {
		event = EventUserTyping
		payload["displayName"] = c.Identity().DisplayName
	}

	g.hub.Broadcast(groupScope(ref.GroupID), event, payload, c.ID())
	return nil
}

type sendMessageRequest struct {
	GroupID  domain.GroupID `json:"groupId"`
	Content  string         `json:"content"`
	FileURL  string         `json:"fileUrl,omitempty"`
	FileName string         `json:"fileName,omitempty"`
	FileType string         `json:"fileType,omitempty"`
}

// handleSendMessage persists through the external store first, then
// broadcasts the stored record to the group's current members, sender
// included. The store call is a suspension point: membership is looked up
// fresh at broadcast time rather than trusted from before the call.
func (g *GroupChatRelay) handleSendMessage(c *Conn, data json.RawMessage) error {
	var req sendMessageRequest
	if err := json.Unmarshal(data, &req); err != nil || req.GroupID == "" {
		return nil
	}

	var att *domain.Attachment
	if req.FileURL != "" {
		att = &domain.Attachment{
			FileURL:  req.FileURL,
			FileName: req.FileName,
			FileType: req.FileType,
		}
	}

	sender := domain.SenderSummary{
		UserID:      c.Identity().UserID,
		DisplayName: c.Identity().DisplayName,
	}

	ctx, cancel := context.WithTimeout(context.Background(), g.persistTimeout)
	defer cancel()

	stored, err := g.store.CreateGroupMessage(ctx, req.GroupID, sender, req.Content, att)
	if err != nil {
		if g.metrics != nil {
			g.metrics.PersistenceFailed("group")
		}
		g.logger.Errorw("group message persistence failed",
			"group_id", req.GroupID,
			"user_id", sender.UserID,
			"error", err,
		)
		c.EmitError(apperrors.NewPersistenceError("failed to send message"))
		return nil
	}

	if g.metrics != nil {
		g.metrics.MessagePersisted("group")
	}
	g.hub.Broadcast(groupScope(req.GroupID), EventMessageReceived, stored)
	return nil
}
