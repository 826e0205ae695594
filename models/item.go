package models

import (
	"time"

	"gorm.io/gorm"
)

// Item represents a lost-or-found post on the marketplace. Item CRUD lives
// outside the messaging core; messages only reference items by id.
type Item struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	Title       string         `gorm:"size:100;not null" json:"title"`
	Description string         `gorm:"type:text" json:"description"`
	Category    string         `json:"category"`
	Type        string         `json:"type"` // "lost" or "found"
	ImageS3Key  *string        `json:"image_s3_key,omitempty"`
	OwnerID     uint           `gorm:"not null;index" json:"owner_id"`
	Owner       User           `gorm:"foreignKey:OwnerID" json:"owner"`
	SharedAt    time.Time      `json:"shared_at"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for the Item model
func (Item) TableName() string {
	return "items"
}
