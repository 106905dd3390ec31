package entities

import "time"

type RefreshToken struct {
	ID        int64     `gorm:"primaryKey"`
	Token     string    `gorm:"not null;index"`
	ExpiresAt time.Time `gorm:"not null"`
	UserID    int64     `gorm:"not null"`
	User      *User
}

// Expired reports whether the token expiry lies before now.
func (t RefreshToken) Expired(now time.Time) bool {
	return t.ExpiresAt.Before(now)
}
