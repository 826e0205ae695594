package models

import "time"

// Report statuses. A report is "open" only while pending; once reviewed,
// dismissed, or acted on it no longer holds message retention.
const (
	ReportStatusPending     = "pending"
	ReportStatusReviewed    = "reviewed"
	ReportStatusDismissed   = "dismissed"
	ReportStatusActionTaken = "action_taken"
)

// Report is a moderation report filed by one user against another,
// optionally citing messages as evidence.
type Report struct {
	ID           uint              `gorm:"primaryKey" json:"id"`
	ReportedID   uint              `gorm:"not null;index" json:"reported_id"`
	Reported     User              `gorm:"foreignKey:ReportedID" json:"reported"`
	ReporterID   uint              `gorm:"not null;index" json:"reporter_id"`
	Reporter     User              `gorm:"foreignKey:ReporterID" json:"reporter"`
	Reason       string            `gorm:"not null" json:"reason"`
	Description  string            `gorm:"type:text" json:"description"`
	Status       string            `gorm:"not null;default:'pending';index" json:"status"`
	ReviewedAt   *time.Time        `json:"reviewed_at,omitempty"`
	ReviewedByID *uint             `json:"reviewed_by_id,omitempty"`
	Messages     []ReportedMessage `gorm:"foreignKey:ReportID" json:"messages"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// TableName specifies the table name for the Report model
func (Report) TableName() string {
	return "reports"
}

// ReportedMessage cites a message id as evidence for a report. The message id
// is stored bare rather than as a foreign key so the citation survives hard
// deletion attempts and keeps working for soft-collapsed rows.
type ReportedMessage struct {
	ID        uint `gorm:"primaryKey" json:"id"`
	ReportID  uint `gorm:"not null;index" json:"report_id"`
	MessageID uint `gorm:"not null;index" json:"message_id"`
}

// TableName specifies the table name for the ReportedMessage model
func (ReportedMessage) TableName() string {
	return "reported_messages"
}
