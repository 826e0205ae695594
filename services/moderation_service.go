package services

import (
	"fmt"

	"github.com/campusfind/campusfind-api/models"
	"gorm.io/gorm"
)

// ModerationLedger answers whether a message is cited as evidence by an open
// report. The messaging core only reads the ledger; delete operations never
// mutate it.
type ModerationLedger interface {
	// IsMessageReferencedByOpenReport reports whether any pending report
	// cites the message id as evidence
	IsMessageReferencedByOpenReport(messageID uint) (bool, error)

	// WithTx returns a ledger bound to the given transaction, so retention
	// checks inside a delete cascade run on the same connection as the
	// cascade's writes
	WithTx(tx *gorm.DB) ModerationLedger
}

// DBModerationLedger implements ModerationLedger over the reports and
// reported_messages tables.
type DBModerationLedger struct {
	db *gorm.DB
}

var moderationLedgerInstance ModerationLedger

// InitModerationLedger initializes the moderation ledger with a database handle
func InitModerationLedger(db *gorm.DB) ModerationLedger {
	moderationLedgerInstance = &DBModerationLedger{db: db}
	return moderationLedgerInstance
}

// GetModerationLedger returns the initialized moderation ledger instance
func GetModerationLedger() ModerationLedger {
	return moderationLedgerInstance
}

// SetModerationLedger sets the moderation ledger instance (primarily for testing)
func SetModerationLedger(ledger ModerationLedger) {
	moderationLedgerInstance = ledger
}

// WithTx returns a ledger reading through the given transaction handle
func (l *DBModerationLedger) WithTx(tx *gorm.DB) ModerationLedger {
	return &DBModerationLedger{db: tx}
}

// IsMessageReferencedByOpenReport reports whether any pending report cites
// the message id as evidence
func (l *DBModerationLedger) IsMessageReferencedByOpenReport(messageID uint) (bool, error) {
	var count int64
	err := l.db.Model(&models.ReportedMessage{}).
		Joins("JOIN reports ON reports.id = reported_messages.report_id").
		Where("reported_messages.message_id = ? AND reports.status = ?", messageID, models.ReportStatusPending).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check report references for message %d: %w", messageID, err)
	}
	return count > 0, nil
}
