package models

import "time"

// MessageImage is a binary attachment owned by exactly one message. The
// bytes live in S3; the row only carries the key. Attachments are removed in
// lockstep with hard deletion of the parent message, never independently.
type MessageImage struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	MessageID uint      `gorm:"not null;index" json:"message_id"`
	Message   Message   `gorm:"foreignKey:MessageID" json:"-"`
	S3Key     string    `gorm:"not null" json:"s3_key"`
	URL       string    `gorm:"-" json:"url,omitempty"` // computed, presigned
	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for the MessageImage model
func (MessageImage) TableName() string {
	return "message_images"
}
