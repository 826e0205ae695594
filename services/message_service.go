package services

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/campusfind/campusfind-api/models"
	"github.com/campusfind/campusfind-api/utils"
	"gorm.io/gorm"
)

// Conversation is one row of a user's conversation list: the counterpart,
// the most recent message still visible to the viewer, and the number of
// unread messages from that counterpart.
type Conversation struct {
	Counterpart models.User    `json:"counterpart"`
	LastMessage models.Message `json:"last_message"`
	UnreadCount int64          `json:"unread_count"`
}

// MessageService is the messaging core: sending, visibility-aware reads,
// conversation aggregation, and the three delete semantics.
type MessageService interface {
	// Send persists a new message after checking blocks and resolving the
	// optional item reference and reply target. imagesBase64 carries PNG
	// attachments as base64 payloads.
	Send(senderID, receiverID uint, text string, referencedItemID, replyToMessageID *uint, imagesBase64 []string) (*models.Message, error)

	// ThreadBetween returns the messages between two users that are visible
	// to the viewer, ascending by sent time
	ThreadBetween(userAID, userBID, viewerID uint) ([]models.Message, error)

	// MarkRead flips unread messages from sender to receiver to read; idempotent
	MarkRead(receiverID, senderID uint) error

	// CountUnread counts unread messages from sender to receiver that are
	// not hidden from the receiver
	CountUnread(receiverID, senderID uint) (int64, error)

	// Conversations reduces the viewer's visible messages to one entry per
	// counterpart
	Conversations(viewerID uint) ([]Conversation, error)

	// ClearConversation hides every message between the viewer and the other
	// user from the viewer's side only
	ClearConversation(viewerID, otherID uint) error

	// DeleteForSelf hides one message and its whole reply subtree from the
	// viewer's side only
	DeleteForSelf(messageID, viewerID uint) error

	// DeleteForEveryone removes a message and its reply subtree for both
	// sides. Messages cited by an open moderation report are soft-collapsed
	// and retained; the rest are hard-deleted with their attachments.
	DeleteForEveryone(messageID, actorID uint) error

	// FindByID returns a message by id regardless of visibility
	FindByID(messageID uint) (*models.Message, error)

	// ImagesFor returns the attachments of a message
	ImagesFor(messageID uint) ([]models.MessageImage, error)
}

// DBMessageService implements MessageService over gorm with injected
// collaborators for identity, items, moderation, attachments, and
// notifications.
type DBMessageService struct {
	db        *gorm.DB
	directory UserDirectory
	items     ItemDirectory
	ledger    ModerationLedger
	images    ImageService
	gate      *NotificationGate
}

var messageServiceInstance MessageService

// InitMessageService initializes the message service with its collaborators
func InitMessageService(db *gorm.DB, directory UserDirectory, items ItemDirectory, ledger ModerationLedger, images ImageService, gate *NotificationGate) MessageService {
	messageServiceInstance = &DBMessageService{
		db:        db,
		directory: directory,
		items:     items,
		ledger:    ledger,
		images:    images,
		gate:      gate,
	}
	return messageServiceInstance
}

// GetMessageService returns the initialized message service instance
func GetMessageService() MessageService {
	return messageServiceInstance
}

// SetMessageService sets the message service instance (primarily for testing)
func SetMessageService(service MessageService) {
	messageServiceInstance = service
}

// visibleScope filters a messages query down to rows visible to the viewer:
// rows collapsed for everyone are excluded, and the per-side flag matching
// the viewer's role in each row is consulted.
func visibleScope(viewerID uint) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.
			Where("deleted_completely = ?", false).
			Where("NOT (sender_id = ? AND deleted_for_sender = ?)", viewerID, true).
			Where("NOT (receiver_id = ? AND deleted_for_receiver = ?)", viewerID, true)
	}
}

// betweenScope filters a messages query to the pair of users, either direction.
func betweenScope(userAID, userBID uint) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where(
			"(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)",
			userAID, userBID, userBID, userAID,
		)
	}
}

// Send persists a new message after checking blocks and resolving references
func (s *DBMessageService) Send(senderID, receiverID uint, text string, referencedItemID, replyToMessageID *uint, imagesBase64 []string) (*models.Message, error) {
	sender, err := s.directory.FindByID(senderID)
	if err != nil {
		return nil, err
	}
	receiver, err := s.directory.FindByID(receiverID)
	if err != nil {
		return nil, err
	}

	// A block in either direction refuses the send. This is a snapshot read;
	// a concurrent block may let one last message through, which is accepted.
	for _, pair := range [][2]uint{{senderID, receiverID}, {receiverID, senderID}} {
		blocked, err := s.directory.IsBlocked(pair[0], pair[1])
		if err != nil {
			return nil, err
		}
		if blocked {
			return nil, fmt.Errorf("messages between users %d and %d: %w", senderID, receiverID, ErrBlocked)
		}
	}

	var item *models.Item
	if referencedItemID != nil {
		item, err = s.items.FindByID(*referencedItemID)
		if err != nil {
			return nil, err
		}
	}

	if replyToMessageID != nil {
		var replyTo models.Message
		if err := s.db.First(&replyTo, *replyToMessageID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("reply target %d: %w", *replyToMessageID, ErrNotFound)
			}
			return nil, fmt.Errorf("failed to load reply target: %w", err)
		}
	}

	// Decode and validate attachments before anything is persisted so a bad
	// payload cannot leave a half-written message behind
	attachments := make([][]byte, 0, len(imagesBase64))
	for _, encoded := range imagesBase64 {
		data, err := utils.DecodeBase64Image(encoded)
		if err != nil {
			return nil, err
		}
		if err := utils.ValidateImageData(data); err != nil {
			return nil, err
		}
		attachments = append(attachments, data)
	}

	message := models.Message{
		SenderID:         senderID,
		ReceiverID:       receiverID,
		Text:             text,
		SentAt:           time.Now(),
		IsRead:           false,
		ReferencedItemID: referencedItemID,
		ReplyToMessageID: replyToMessageID,
	}
	if err := s.db.Create(&message).Error; err != nil {
		return nil, fmt.Errorf("failed to create message: %w", err)
	}

	for _, data := range attachments {
		key, err := s.images.UploadImage(data)
		if err != nil {
			// The message stands; a failed attachment upload is not worth
			// losing the text over
			log.Printf("warning: failed to store attachment for message %d: %v", message.ID, err)
			continue
		}
		image := models.MessageImage{MessageID: message.ID, S3Key: key}
		if err := s.db.Create(&image).Error; err != nil {
			log.Printf("warning: failed to record attachment for message %d: %v", message.ID, err)
		}
	}

	itemTitle := ""
	if item != nil {
		itemTitle = item.Title
	}
	s.gate.NotifyIfEligible(&message, sender, receiver, itemTitle)

	return &message, nil
}

// ThreadBetween returns the messages between two users visible to the viewer
func (s *DBMessageService) ThreadBetween(userAID, userBID, viewerID uint) ([]models.Message, error) {
	var messages []models.Message
	err := s.db.
		Scopes(betweenScope(userAID, userBID), visibleScope(viewerID)).
		Preload("Sender").
		Preload("Receiver").
		Preload("ReferencedItem").
		Order("sent_at ASC, id ASC").
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch thread: %w", err)
	}
	return messages, nil
}

// MarkRead flips unread messages from sender to receiver to read
func (s *DBMessageService) MarkRead(receiverID, senderID uint) error {
	err := s.db.Model(&models.Message{}).
		Where("receiver_id = ? AND sender_id = ? AND is_read = ?", receiverID, senderID, false).
		Update("is_read", true).Error
	if err != nil {
		return fmt.Errorf("failed to mark messages read: %w", err)
	}
	return nil
}

// CountUnread counts unread messages from sender to receiver not hidden from
// the receiver
func (s *DBMessageService) CountUnread(receiverID, senderID uint) (int64, error) {
	var count int64
	err := s.db.Model(&models.Message{}).
		Where("receiver_id = ? AND sender_id = ? AND is_read = ?", receiverID, senderID, false).
		Where("deleted_completely = ? AND deleted_for_receiver = ?", false, false).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count unread messages: %w", err)
	}
	return count, nil
}

// Conversations reduces the viewer's visible messages to one entry per
// counterpart, carrying the latest message and the unread count
func (s *DBMessageService) Conversations(viewerID uint) ([]Conversation, error) {
	var messages []models.Message
	err := s.db.
		Where("sender_id = ? OR receiver_id = ?", viewerID, viewerID).
		Scopes(visibleScope(viewerID)).
		Preload("Sender").
		Preload("Receiver").
		Preload("ReferencedItem").
		Order("sent_at DESC, id DESC").
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch conversations: %w", err)
	}

	conversations := make([]Conversation, 0)
	seen := make(map[uint]bool)
	for i := range messages {
		message := &messages[i]

		// A missing endpoint is a data-integrity violation; skip the row
		// rather than failing the whole listing
		if message.SenderID == 0 || message.ReceiverID == 0 {
			log.Printf("warning: message %d has a missing sender or receiver, skipping", message.ID)
			continue
		}

		counterpartID := message.CounterpartID(viewerID)
		if seen[counterpartID] {
			continue
		}
		seen[counterpartID] = true

		counterpart := message.Sender
		if message.SenderID == viewerID {
			counterpart = message.Receiver
		}

		unread, err := s.CountUnread(viewerID, counterpartID)
		if err != nil {
			return nil, err
		}

		conversations = append(conversations, Conversation{
			Counterpart: counterpart,
			LastMessage: *message,
			UnreadCount: unread,
		})
	}

	return conversations, nil
}

// ClearConversation hides every message between viewer and other from the
// viewer's side only. Idempotent per message; never touches the other side.
func (s *DBMessageService) ClearConversation(viewerID, otherID uint) error {
	if _, err := s.directory.FindByID(otherID); err != nil {
		return err
	}

	now := time.Now()
	return s.db.Transaction(func(tx *gorm.DB) error {
		// Viewer was the sender of these rows
		err := tx.Model(&models.Message{}).
			Where("sender_id = ? AND receiver_id = ? AND deleted_for_sender = ?", viewerID, otherID, false).
			Updates(map[string]interface{}{
				"deleted_for_sender": true,
				"deleted_at":         gorm.Expr("COALESCE(deleted_at, ?)", now),
			}).Error
		if err != nil {
			return fmt.Errorf("failed to clear sent messages: %w", err)
		}

		// Viewer was the receiver of these rows
		err = tx.Model(&models.Message{}).
			Where("sender_id = ? AND receiver_id = ? AND deleted_for_receiver = ?", otherID, viewerID, false).
			Updates(map[string]interface{}{
				"deleted_for_receiver": true,
				"deleted_at":           gorm.Expr("COALESCE(deleted_at, ?)", now),
			}).Error
		if err != nil {
			return fmt.Errorf("failed to clear received messages: %w", err)
		}
		return nil
	})
}

// DeleteForSelf hides one message and its reply subtree from the viewer's
// side only
func (s *DBMessageService) DeleteForSelf(messageID, viewerID uint) error {
	message, err := s.loadForDelete(messageID)
	if err != nil || message == nil {
		return err
	}

	if message.SenderID != viewerID && message.ReceiverID != viewerID {
		return fmt.Errorf("user %d is not a participant of message %d: %w", viewerID, messageID, ErrForbidden)
	}

	now := time.Now()
	return s.db.Transaction(func(tx *gorm.DB) error {
		// Root first, then replies: visibility cascades run parents before
		// children
		subtree, err := collectReplySubtree(tx, messageID)
		if err != nil {
			return err
		}

		err = tx.Model(&models.Message{}).
			Where("id IN ? AND sender_id = ? AND deleted_for_sender = ?", subtree, viewerID, false).
			Updates(map[string]interface{}{
				"deleted_for_sender": true,
				"deleted_at":         gorm.Expr("COALESCE(deleted_at, ?)", now),
			}).Error
		if err != nil {
			return fmt.Errorf("failed to hide messages for sender: %w", err)
		}

		err = tx.Model(&models.Message{}).
			Where("id IN ? AND receiver_id = ? AND deleted_for_receiver = ?", subtree, viewerID, false).
			Updates(map[string]interface{}{
				"deleted_for_receiver": true,
				"deleted_at":           gorm.Expr("COALESCE(deleted_at, ?)", now),
			}).Error
		if err != nil {
			return fmt.Errorf("failed to hide messages for receiver: %w", err)
		}
		return nil
	})
}

// DeleteForEveryone removes a message and its reply subtree for both sides.
// Only the sender of the root message may invoke it. The subtree is
// processed children-first; each node cited by an open moderation report is
// soft-collapsed and retained, the rest are hard-deleted together with their
// attachments.
func (s *DBMessageService) DeleteForEveryone(messageID, actorID uint) error {
	message, err := s.loadForDelete(messageID)
	if err != nil || message == nil {
		return err
	}

	if message.SenderID != actorID {
		return fmt.Errorf("user %d is not the sender of message %d: %w", actorID, messageID, ErrForbidden)
	}

	now := time.Now()
	var orphanedKeys []string
	err = s.db.Transaction(func(tx *gorm.DB) error {
		orphanedKeys = orphanedKeys[:0]
		ledger := s.ledger.WithTx(tx)

		subtree, err := collectReplySubtree(tx, messageID)
		if err != nil {
			return err
		}

		// Children before parents, so a child's retention check runs while
		// its parent row still exists
		for i := len(subtree) - 1; i >= 0; i-- {
			id := subtree[i]

			held, err := ledger.IsMessageReferencedByOpenReport(id)
			if err != nil {
				return err
			}

			if held {
				// Evidence in an open report: collapse for both sides but
				// keep the row for moderation inspection
				err := tx.Model(&models.Message{}).
					Where("id = ?", id).
					Updates(map[string]interface{}{
						"deleted_for_sender":   true,
						"deleted_for_receiver": true,
						"deleted_completely":   true,
						"deleted_at":           gorm.Expr("COALESCE(deleted_at, ?)", now),
					}).Error
				if err != nil {
					return fmt.Errorf("failed to collapse message %d: %w", id, err)
				}
				continue
			}

			keys, err := s.hardDelete(tx, id)
			if err != nil {
				return err
			}
			orphanedKeys = append(orphanedKeys, keys...)
		}
		return nil
	})
	if err != nil {
		return err
	}

	// Storage objects go only after the transaction commits; a rollback must
	// never leave rows pointing at deleted objects. Orphaned storage objects
	// are preferable to a failed delete.
	for _, key := range orphanedKeys {
		if err := s.images.DeleteImage(key); err != nil {
			log.Printf("warning: failed to delete attachment %s: %v", key, err)
		}
	}
	return nil
}

// hardDelete physically removes one message and its attachment rows,
// returning the S3 keys whose objects should be removed once the enclosing
// transaction commits. An absent row short-circuits to a no-op so concurrent
// cascades over overlapping subtrees stay idempotent.
func (s *DBMessageService) hardDelete(tx *gorm.DB, messageID uint) ([]string, error) {
	var message models.Message
	if err := tx.First(&message, messageID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load message %d for deletion: %w", messageID, err)
	}

	var images []models.MessageImage
	if err := tx.Where("message_id = ?", messageID).Find(&images).Error; err != nil {
		return nil, fmt.Errorf("failed to load attachments of message %d: %w", messageID, err)
	}
	keys := make([]string, 0, len(images))
	for _, image := range images {
		keys = append(keys, image.S3Key)
	}
	if err := tx.Where("message_id = ?", messageID).Delete(&models.MessageImage{}).Error; err != nil {
		return nil, fmt.Errorf("failed to delete attachment rows of message %d: %w", messageID, err)
	}

	if err := tx.Delete(&models.Message{}, messageID).Error; err != nil {
		return nil, fmt.Errorf("failed to delete message %d: %w", messageID, err)
	}
	return keys, nil
}

// loadForDelete fetches a message for a delete operation. A missing id is a
// logged no-op, not a failure, so cascades stay idempotent under retry.
func (s *DBMessageService) loadForDelete(messageID uint) (*models.Message, error) {
	var message models.Message
	if err := s.db.First(&message, messageID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("warning: delete requested for missing message %d, ignoring", messageID)
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load message %d: %w", messageID, err)
	}
	return &message, nil
}

// collectReplySubtree returns the id of the root message followed by every
// message transitively replying to it, in breadth-first order. The traversal
// is an explicit worklist so pathological reply chains cannot exhaust the
// stack.
func collectReplySubtree(tx *gorm.DB, rootID uint) ([]uint, error) {
	subtree := []uint{rootID}
	frontier := []uint{rootID}
	for len(frontier) > 0 {
		var replyIDs []uint
		err := tx.Model(&models.Message{}).
			Where("reply_to_message_id IN ?", frontier).
			Order("id ASC").
			Pluck("id", &replyIDs).Error
		if err != nil {
			return nil, fmt.Errorf("failed to collect replies: %w", err)
		}
		subtree = append(subtree, replyIDs...)
		frontier = replyIDs
	}
	return subtree, nil
}

// FindByID returns a message by id regardless of visibility
func (s *DBMessageService) FindByID(messageID uint) (*models.Message, error) {
	var message models.Message
	if err := s.db.First(&message, messageID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("message %d: %w", messageID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load message %d: %w", messageID, err)
	}
	return &message, nil
}

// ImagesFor returns the attachments of a message
func (s *DBMessageService) ImagesFor(messageID uint) ([]models.MessageImage, error) {
	var images []models.MessageImage
	if err := s.db.Where("message_id = ?", messageID).Find(&images).Error; err != nil {
		return nil, fmt.Errorf("failed to load attachments of message %d: %w", messageID, err)
	}
	return images, nil
}
