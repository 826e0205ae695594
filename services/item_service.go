package services

import (
	"errors"
	"fmt"

	"github.com/campusfind/campusfind-api/models"
	"gorm.io/gorm"
)

// ItemDirectory resolves item references at send time. Item lifecycle is not
// the messaging core's concern.
type ItemDirectory interface {
	// FindByID returns the item with the given id
	FindByID(id uint) (*models.Item, error)
}

// DBItemDirectory implements ItemDirectory over the items table.
type DBItemDirectory struct {
	db *gorm.DB
}

var itemDirectoryInstance ItemDirectory

// InitItemDirectory initializes the item directory with a database handle
func InitItemDirectory(db *gorm.DB) ItemDirectory {
	itemDirectoryInstance = &DBItemDirectory{db: db}
	return itemDirectoryInstance
}

// GetItemDirectory returns the initialized item directory instance
func GetItemDirectory() ItemDirectory {
	return itemDirectoryInstance
}

// SetItemDirectory sets the item directory instance (primarily for testing)
func SetItemDirectory(directory ItemDirectory) {
	itemDirectoryInstance = directory
}

// FindByID returns the item with the given id
func (d *DBItemDirectory) FindByID(id uint) (*models.Item, error) {
	var item models.Item
	if err := d.db.First(&item, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("item %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load item %d: %w", id, err)
	}
	return &item, nil
}
