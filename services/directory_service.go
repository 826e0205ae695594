package services

import (
	"errors"
	"fmt"

	"github.com/campusfind/campusfind-api/models"
	"gorm.io/gorm"
)

// UserDirectory resolves user identity, block relationships, and
// notification preferences for the messaging core.
type UserDirectory interface {
	// FindByID returns the user with the given id
	FindByID(id uint) (*models.User, error)

	// IsBlocked reports whether blocker has blocked blocked
	IsBlocked(blockerID, blockedID uint) (bool, error)

	// Block records that blocker has blocked blocked; idempotent
	Block(blockerID, blockedID uint) error

	// Unblock removes a block if present; idempotent
	Unblock(blockerID, blockedID uint) error
}

// DBUserDirectory implements UserDirectory over the users and user_blocks
// tables.
type DBUserDirectory struct {
	db *gorm.DB
}

var userDirectoryInstance UserDirectory

// InitUserDirectory initializes the user directory with a database handle
func InitUserDirectory(db *gorm.DB) UserDirectory {
	userDirectoryInstance = &DBUserDirectory{db: db}
	return userDirectoryInstance
}

// GetUserDirectory returns the initialized user directory instance
func GetUserDirectory() UserDirectory {
	return userDirectoryInstance
}

// SetUserDirectory sets the user directory instance (primarily for testing)
func SetUserDirectory(directory UserDirectory) {
	userDirectoryInstance = directory
}

// FindByID returns the user with the given id
func (d *DBUserDirectory) FindByID(id uint) (*models.User, error) {
	var user models.User
	if err := d.db.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load user %d: %w", id, err)
	}
	return &user, nil
}

// IsBlocked reports whether blocker has blocked blocked
func (d *DBUserDirectory) IsBlocked(blockerID, blockedID uint) (bool, error) {
	var count int64
	err := d.db.Model(&models.UserBlock{}).
		Where("blocker_id = ? AND blocked_id = ?", blockerID, blockedID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check block state: %w", err)
	}
	return count > 0, nil
}

// Block records that blocker has blocked blocked
func (d *DBUserDirectory) Block(blockerID, blockedID uint) error {
	blocked, err := d.IsBlocked(blockerID, blockedID)
	if err != nil {
		return err
	}
	if blocked {
		return nil
	}
	block := models.UserBlock{BlockerID: blockerID, BlockedID: blockedID}
	if err := d.db.Create(&block).Error; err != nil {
		return fmt.Errorf("failed to create block: %w", err)
	}
	return nil
}

// Unblock removes a block if present
func (d *DBUserDirectory) Unblock(blockerID, blockedID uint) error {
	err := d.db.
		Where("blocker_id = ? AND blocked_id = ?", blockerID, blockedID).
		Delete(&models.UserBlock{}).Error
	if err != nil {
		return fmt.Errorf("failed to remove block: %w", err)
	}
	return nil
}
