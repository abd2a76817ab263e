package domain

import "time"

// Credential is the locally persisted access/refresh token pair. Only one row
// is ever stored.
type Credential struct {
	ID           uint `gorm:"primarykey"`
	AccessToken  string
	RefreshToken string
	UpdatedAt    time.Time
}

// Empty reports whether there is nothing to authenticate with.
func (c *Credential) Empty() bool {
	return c == nil || (c.AccessToken == "" && c.RefreshToken == "")
}

// Preference is a small user-preference flag, read on load and written on change.
type Preference struct {
	Name      string `gorm:"primaryKey;size:64"`
	Value     string
	UpdatedAt time.Time
}

const PreferenceSoundEnabled = "sound_notifications_enabled"
