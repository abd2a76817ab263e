// File: internal/domain/session.go
package domain

import "time"

// Session is a refresh-token lineage on the reference backend. Logging out
// revokes it, after which its refresh token stops working.
type Session struct {
	ID        string     `gorm:"primaryKey;size:36"`
	UserID    uint       `gorm:"index;not null"`
	ExpiresAt time.Time  `gorm:"index;not null"`
	RevokedAt *time.Time `gorm:"default:null"`
	CreatedAt time.Time
}

// IsValid reports whether the session can still mint access tokens.
func (s *Session) IsValid(now time.Time) bool {
	return s.RevokedAt == nil && now.Before(s.ExpiresAt)
}

// Revoke marks the session as ended. Revoking twice keeps the first time.
func (s *Session) Revoke(now time.Time) {
	if s.RevokedAt == nil {
		s.RevokedAt = &now
	}
}
