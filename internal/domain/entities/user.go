package entities

import "time"

// Role is the authorization role stored on a user.
type Role string

const (
	RoleDefaultUser Role = "DefaultUser"
	RoleAdmin       Role = "Admin"
)

func (r Role) Valid() bool {
	return r == RoleDefaultUser || r == RoleAdmin
}

type User struct {
	ID               int64     `gorm:"primaryKey"`
	FirstName        string    `gorm:"size:150;not null"`
	LastName         string    `gorm:"size:150;not null"`
	DateOfBirth      time.Time `gorm:"not null"`
	Email            string    `gorm:"size:150;not null;uniqueIndex"`
	PasswordHash     string    `gorm:"size:255;not null"`
	IsEmailConfirmed bool      `gorm:"not null;default:false"`
	Role             Role      `gorm:"size:32;not null;default:DefaultUser"`

	Participants  []Participant  `gorm:"constraint:OnDelete:CASCADE"`
	RefreshTokens []RefreshToken `gorm:"constraint:OnDelete:CASCADE"`
}
