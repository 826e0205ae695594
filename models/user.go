package models

import (
	"time"

	"gorm.io/gorm"
)

// User represents a registered university member
type User struct {
	ID                uint           `gorm:"primaryKey" json:"id"`
	Auth0ID           string         `gorm:"uniqueIndex;not null" json:"auth0_id"` // Auth0 user ID (from 'sub' claim)
	Name              string         `gorm:"not null" json:"name"`
	Nickname          string         `json:"nickname"`
	Email             string         `gorm:"uniqueIndex;not null" json:"email"`
	Role              string         `gorm:"not null;default:'member'" json:"role"` // "member" or "admin"
	Banned            bool           `gorm:"not null;default:false" json:"banned"`
	PostNotifications bool           `gorm:"not null;default:true" json:"post_notifications"` // email me when someone messages about my post
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
	DeletedAt         gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for the User model
func (User) TableName() string {
	return "users"
}
