package memory

import (
	"context"
	"sync"
	"time"

	"classrelay/internal/core/domain"
	"classrelay/internal/core/ports"
	"classrelay/pkg/utils"
)

// MessageStore is the in-process MessageStore used when Redis is disabled
// and in tests. FailNext lets tests exercise the persistence-failure path.
type MessageStore struct {
	messages []*domain.StoredMessage
	failNext error
	mu       sync.Mutex
}

func NewMessageStore() *MessageStore {
	return &MessageStore{}
}

// FailNext arranges for the next create call to fail with err.
func (s *MessageStore) FailNext(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = err
}

func (s *MessageStore) CreateGroupMessage(ctx context.Context, groupID domain.GroupID, sender domain.SenderSummary, content string, att *domain.Attachment) (*domain.StoredMessage, error) {
	return s.append(&domain.StoredMessage{
		ID:         utils.NewMessageID(),
		GroupID:    groupID,
		Sender:     sender,
		Content:    content,
		Attachment: att,
		CreatedAt:  time.Now().UTC(),
	})
}

func (s *MessageStore) CreateDirectMessage(ctx context.Context, roomID domain.ChatRoomID, sender domain.SenderSummary, content string) (*domain.StoredMessage, error) {
	return s.append(&domain.StoredMessage{
		ID:         utils.NewMessageID(),
		ChatRoomID: roomID,
		Sender:     sender,
		Content:    content,
		CreatedAt:  time.Now().UTC(),
	})
}

func (s *MessageStore) append(msg *domain.StoredMessage) (*domain.StoredMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failNext != nil {
		err := s.failNext
		s.failNext = nil
		return nil, err
	}

	s.messages = append(s.messages, msg)
	return msg, nil
}

// Messages returns a snapshot, oldest first.
func (s *MessageStore) Messages() []*domain.StoredMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*domain.StoredMessage, len(s.messages))
	copy(out, s.messages)
	return out
}

var _ ports.MessageStore = (*MessageStore)(nil)
