package entities

import "time"

// Participant links a user to an event. Its identity is its own surrogate key,
// so the pair (UserID, EventID) is not unique at the storage level.
type Participant struct {
	ID               int64 `gorm:"primaryKey"`
	EventID          int64 `gorm:"not null;index"`
	Event            *Event
	UserID           int64 `gorm:"not null;index"`
	User             *User
	RegistrationDate time.Time `gorm:"not null"`
}
