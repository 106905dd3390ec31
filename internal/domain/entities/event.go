package entities

import "time"

type Event struct {
	ID              int64     `gorm:"primaryKey"`
	Title           string    `gorm:"size:200;not null"`
	Description     string    `gorm:"size:1000"`
	Location        string    `gorm:"size:200;not null"`
	DateTime        time.Time `gorm:"not null;index"`
	MaxParticipants int       `gorm:"not null"`
	ImagePath       *string

	CategoryID int64 `gorm:"not null"`
	Category   *Category

	Participants []Participant `gorm:"constraint:OnDelete:CASCADE"`
}
