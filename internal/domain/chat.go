// File: internal/domain/chat.go
package domain

import (
	"encoding/json"
	"time"
)

// Chatroom is a conversation as the chat API returns it.
type Chatroom struct {
	ID           int64           `json:"id"`
	Participants []Participant   `json:"participants"`
	LastMessage  *MessageSummary `json:"last_message"`
	CreatedAt    time.Time       `json:"created_at"`
	LastActivity *time.Time      `json:"last_activity,omitempty"`
}

// HasParticipant reports whether username takes part in the room.
func (c Chatroom) HasParticipant(username string) bool {
	for _, p := range c.Participants {
		if p.Username == username {
			return true
		}
	}
	return false
}

// Others returns the participants other than username.
func (c Chatroom) Others(username string) []Participant {
	out := make([]Participant, 0, len(c.Participants))
	for _, p := range c.Participants {
		if p.Username != username {
			out = append(out, p)
		}
	}
	return out
}

// Participant is a chatroom member. The production API sends bare usernames,
// the reference backend sends objects; both decode here.
type Participant struct {
	ID       int64  `json:"id,omitempty"`
	Username string `json:"username"`
}

func (p *Participant) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		*p = Participant{Username: name}
		return nil
	}
	type plain Participant
	var v plain
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*p = Participant(v)
	return nil
}

// MessageSummary is the preview of a room's newest message.
type MessageSummary struct {
	Content   string    `json:"content"`
	Sender    string    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
}

// UnreadCounts maps chatroom id to its unread message count.
type UnreadCounts map[int64]int

// Clone returns an independent copy.
func (u UnreadCounts) Clone() UnreadCounts {
	out := make(UnreadCounts, len(u))
	for k, v := range u {
		out[k] = v
	}
	return out
}

// TypingUser is one participant currently typing in a room.
type TypingUser struct {
	UserID    int64     `json:"user_id"`
	Username  string    `json:"username"`
	Timestamp time.Time `json:"timestamp"`
}

// Room is the reference backend's stored chatroom.
type Room struct {
	ID           uint   `gorm:"primarykey"`
	Participants []User `gorm:"many2many:room_participants;"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
