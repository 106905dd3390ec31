package entities

type Category struct {
	ID   int64  `gorm:"primaryKey"`
	Name string `gorm:"size:100;not null"`

	Events []Event `gorm:"constraint:OnDelete:RESTRICT"`
}
