// File: internal/domain/message.go
package domain

import "time"

// MaxMessageLength is the most characters a message may carry.
const MaxMessageLength = 500

// Message is a chat message as the chat API returns it. ChatroomID is not part
// of the production payload; clients fill it from the room they asked for.
type Message struct {
	ID         int64     `json:"id"`
	ChatroomID int64     `json:"chatroom_id,omitempty"`
	SenderID   int64     `json:"sender_id"`
	SenderName string    `json:"sender"`
	Content    string    `json:"content"`
	Timestamp  time.Time `json:"timestamp"`
}

// ChatMessage is the reference backend's stored message.
type ChatMessage struct {
	ID        uint   `gorm:"primarykey"`
	RoomID    uint   `gorm:"index;not null"`
	SenderID  uint   `gorm:"index;not null"`
	Sender    User   `gorm:"foreignKey:SenderID"`
	Content   string `gorm:"not null;size:500"`
	IsRead    bool   `gorm:"not null;default:false;index"`
	CreatedAt time.Time
}

// Wire converts a stored message to its API form.
func (m *ChatMessage) Wire() Message {
	return Message{
		ID:         int64(m.ID),
		ChatroomID: int64(m.RoomID),
		SenderID:   int64(m.SenderID),
		SenderName: m.Sender.Username,
		Content:    m.Content,
		Timestamp:  m.CreatedAt,
	}
}

// Summary converts a stored message to a room preview.
func (m *ChatMessage) Summary() *MessageSummary {
	return &MessageSummary{Content: m.Content, Sender: m.Sender.Username, Timestamp: m.CreatedAt}
}
