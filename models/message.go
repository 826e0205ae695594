package models

import "time"

// Message represents a direct message between two users. Visibility is
// tracked per side: each participant can hide a message from their own view
// without affecting the other side, and DeletedCompletely marks rows that are
// hidden from both sides but retained because a moderation report cites them.
type Message struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	SenderID         uint           `gorm:"not null;index" json:"sender_id"`
	Sender           User           `gorm:"foreignKey:SenderID" json:"sender"`
	ReceiverID       uint           `gorm:"not null;index" json:"receiver_id"`
	Receiver         User           `gorm:"foreignKey:ReceiverID" json:"receiver"`
	Text             string         `gorm:"type:text" json:"text"`
	SentAt           time.Time      `gorm:"not null;index" json:"sent_at"`
	IsRead           bool           `gorm:"not null;default:false" json:"is_read"`
	ReferencedItemID *uint          `gorm:"index" json:"referenced_item_id,omitempty"` // the post this message is about
	ReferencedItem   *Item          `gorm:"foreignKey:ReferencedItemID" json:"referenced_item,omitempty"`
	ReplyToMessageID *uint          `gorm:"index" json:"reply_to_message_id,omitempty"` // forms a reply tree, edges only point at existing rows
	Images           []MessageImage `gorm:"foreignKey:MessageID" json:"images,omitempty"`

	DeletedForSender   bool       `gorm:"not null;default:false" json:"-"`
	DeletedForReceiver bool       `gorm:"not null;default:false" json:"-"`
	DeletedCompletely  bool       `gorm:"not null;default:false" json:"-"`
	DeletedAt          *time.Time `json:"-"` // first hide transition, any side

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for the Message model
func (Message) TableName() string {
	return "messages"
}

// VisibleTo reports whether the message is visible to the given viewer.
// Exactly one per-side flag is consulted, chosen by the viewer's role in
// this specific row.
func (m *Message) VisibleTo(viewerID uint) bool {
	if m.DeletedCompletely {
		return false
	}
	if m.SenderID == viewerID && m.DeletedForSender {
		return false
	}
	if m.ReceiverID == viewerID && m.DeletedForReceiver {
		return false
	}
	return true
}

// CounterpartID returns the participant that is not the viewer, or 0 if the
// viewer is not a participant.
func (m *Message) CounterpartID(viewerID uint) uint {
	switch viewerID {
	case m.SenderID:
		return m.ReceiverID
	case m.ReceiverID:
		return m.SenderID
	}
	return 0
}
