package model

import "gorm.io/gorm"

// Setting is a free-form key/value platform setting managed from the admin
// panel.
type Setting struct {
	gorm.Model
	Key   string `json:"key" gorm:"uniqueIndex;not null"`
	Value string `json:"value"`
}

// PaymentSetting stores per-provider gateway configuration so admins can
// rotate keys without a deploy. Secrets are write-only through the API.
type PaymentSetting struct {
	gorm.Model
	Provider    PaymentProvider `json:"provider" gorm:"uniqueIndex;not null"`
	APIKey      string          `json:"-"`
	IPNSecret   string          `json:"-"`
	CallbackURL string          `json:"callback_url"`
	Mode        string          `json:"mode" gorm:"default:'test'"`
	Enabled     bool            `json:"enabled" gorm:"default:false"`
}
