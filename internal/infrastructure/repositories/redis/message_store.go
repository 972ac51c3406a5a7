package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"classrelay/internal/core/domain"
	"classrelay/internal/core/ports"
	"classrelay/pkg/utils"

	"github.com/redis/go-redis/v9"
)

// MessageStore persists chat messages as JSON entries appended to per-scope
// lists. It is the production implementation of the persistence collaborator
// invoked before any message broadcast.
type MessageStore struct {
	client *redis.Client
	prefix string
}

func NewMessageStore(client *redis.Client) ports.MessageStore {
	return &MessageStore{
		client: client,
		prefix: "classrelay:",
	}
}

func (s *MessageStore) groupKey(id domain.GroupID) string {
	return s.prefix + "groupmsg:" + string(id)
}

func (s *MessageStore) chatKey(id domain.ChatRoomID) string {
	return s.prefix + "chatmsg:" + string(id)
}

func (s *MessageStore) CreateGroupMessage(ctx context.Context, groupID domain.GroupID, sender domain.SenderSummary, content string, att *domain.Attachment) (*domain.StoredMessage, error) {
	msg := &domain.StoredMessage{
		ID:         utils.NewMessageID(),
		GroupID:    groupID,
		Sender:     sender,
		Content:    content,
		Attachment: att,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.push(ctx, s.groupKey(groupID), msg); err != nil {
		return nil, err
	}
	return msg, nil
}

func (s *MessageStore) CreateDirectMessage(ctx context.Context, roomID domain.ChatRoomID, sender domain.SenderSummary, content string) (*domain.StoredMessage, error) {
	msg := &domain.StoredMessage{
		ID:         utils.NewMessageID(),
		ChatRoomID: roomID,
		Sender:     sender,
		Content:    content,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.push(ctx, s.chatKey(roomID), msg); err != nil {
		return nil, err
	}
	return msg, nil
}

func (s *MessageStore) push(ctx context.Context, key string, msg *domain.StoredMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	if err := s.client.RPush(ctx, key, data).Err(); err != nil {
		return fmt.Errorf("failed to append message to %s: %w", key, err)
	}
	return nil
}
