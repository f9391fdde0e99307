package model

import (
	"gorm.io/gorm"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type User struct {
	gorm.Model
	Email    string `json:"email" gorm:"uniqueIndex;not null"`
	Password string `json:"-" gorm:"not null"`
	Name     string `json:"name" gorm:"not null"`
	Role     string `json:"role" gorm:"default:'user'"`

	// Optional profile fields
	PhoneNumber string `json:"phone_number"`
	Avatar      string `json:"avatar"`

	// Assigned coach, if any. The commission percentage is snapshotted onto
	// the subscription at payment time, not read live from here.
	CoachID *uint  `json:"coach_id"`
	Coach   *Coach `json:"-" gorm:"foreignKey:CoachID"`

	ResetToken string `json:"-"`

	Subscriptions []Subscription `json:"-"`
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

func (u *User) GetPublicProfile() map[string]interface{} {
	return map[string]interface{}{
		"id":           u.ID,
		"email":        u.Email,
		"name":         u.Name,
		"phone_number": u.PhoneNumber,
		"avatar":       u.Avatar,
		"coach_id":     u.CoachID,
	}
}
