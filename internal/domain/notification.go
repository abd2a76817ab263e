package domain

import "time"

// Notification is an entry in the user's notification bell.
type Notification struct {
	ID        int64     `json:"id" gorm:"primarykey"`
	UserID    uint      `json:"-" gorm:"index;not null"`
	Message   string    `json:"message" gorm:"not null"`
	IsRead    bool      `json:"is_read" gorm:"not null;default:false"`
	CreatedAt time.Time `json:"created_at"`
}
