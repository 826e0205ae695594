package models

import "time"

// UserBlock records that one user has blocked another. A block in either
// direction prevents messages between the pair.
type UserBlock struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	BlockerID uint      `gorm:"not null;index:idx_blocker_blocked,unique" json:"blocker_id"`
	Blocker   User      `gorm:"foreignKey:BlockerID" json:"-"`
	BlockedID uint      `gorm:"not null;index:idx_blocker_blocked,unique" json:"blocked_id"`
	Blocked   User      `gorm:"foreignKey:BlockedID" json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for the UserBlock model
func (UserBlock) TableName() string {
	return "user_blocks"
}
