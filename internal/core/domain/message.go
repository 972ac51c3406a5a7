package domain

import "time"

type GroupID string

type ChatRoomID string

// SenderSummary is the denormalized sender info attached to stored messages
// so clients can render without a user lookup.
type SenderSummary struct {
	UserID      UserID `json:"userId"`
	DisplayName string `json:"displayName"`
}

// Attachment carries file metadata for group chat messages. The file itself
// lives in external storage; this layer only relays the reference.
type Attachment struct {
	FileURL  string `json:"fileUrl"`
	FileName string `json:"fileName,omitempty"`
	FileType string `json:"fileType,omitempty"`
}

// StoredMessage is the record returned by the message store after a
// successful persist. The full record is what gets broadcast.
type StoredMessage struct {
	ID         string      `json:"id"`
	GroupID    GroupID     `json:"groupId,omitempty"`
	ChatRoomID ChatRoomID  `json:"chatRoomId,omitempty"`
	Sender     SenderSummary `json:"sender"`
	Content    string      `json:"content"`
	Attachment *Attachment `json:"attachment,omitempty"`
	CreatedAt  time.Time   `json:"createdAt"`
}

const MessageStatusSent = "sent"

// ChatEnvelope is the one-to-one message shape broadcast to a chat room.
type ChatEnvelope struct {
	ChatRoomID ChatRoomID `json:"chatRoomId"`
	Content    string     `json:"content"`
	SenderID   UserID     `json:"senderId"`
	SentAt     time.Time  `json:"sentAt"`
	Status     string     `json:"status"`
}

// VoiceEnvelope relays an opaque audio payload. No transcoding or
// validation happens here.
type VoiceEnvelope struct {
	ChatRoomID ChatRoomID `json:"chatRoomId"`
	Audio      []byte     `json:"audioBuffer"`
	Duration   float64    `json:"duration,omitempty"`
	SenderID   UserID     `json:"senderId"`
	SentAt     time.Time  `json:"sentAt"`
	Status     string     `json:"status"`
}
