package model

import "gorm.io/gorm"

const (
	CoachStatusActive   = "active"
	CoachStatusInactive = "inactive"
)

type Coach struct {
	gorm.Model
	Name  string `json:"name" gorm:"not null"`
	Email string `json:"email" gorm:"uniqueIndex;not null"`
	// Percentage of each referred subscription payment credited to the
	// coach's wallet, 0-100.
	CommissionPercentage float64 `json:"commission_percentage" gorm:"not null"`
	Status               string  `json:"status" gorm:"default:'active'"`
	Bio                  string  `json:"bio"`
	Avatar               string  `json:"avatar"`

	Users []User `json:"-" gorm:"foreignKey:CoachID"`
}
