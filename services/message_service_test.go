package services

import (
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"github.com/campusfind/campusfind-api/models"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// messageServiceFixture bundles the service under test with its collaborators
type messageServiceFixture struct {
	db      *gorm.DB
	svc     MessageService
	mailer  *MockMailer
	images  *MockImageService
	alice   models.User
	bob     models.User
	charlie models.User
}

func setupMessageServiceTest(t *testing.T) *messageServiceFixture {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	// Auto-migrate all models
	if err := db.AutoMigrate(
		&models.User{},
		&models.UserBlock{},
		&models.Item{},
		&models.Message{},
		&models.MessageImage{},
		&models.Report{},
		&models.ReportedMessage{},
	); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	directory := InitUserDirectory(db)
	items := InitItemDirectory(db)
	ledger := InitModerationLedger(db)
	mailer := NewMockMailer()
	gate := InitNotificationGate(mailer)
	images := NewMockImageService()
	images.SetAsMockForTesting()
	svc := InitMessageService(db, directory, items, ledger, images, gate)

	f := &messageServiceFixture{db: db, svc: svc, mailer: mailer, images: images}

	f.alice = models.User{Auth0ID: "auth0|alice", Name: "Alice Aydin", Email: "alice@uni.example", Role: "member", PostNotifications: true}
	db.Create(&f.alice)
	f.bob = models.User{Auth0ID: "auth0|bob", Name: "Bob Demir", Email: "bob@uni.example", Role: "member", PostNotifications: true}
	db.Create(&f.bob)
	f.charlie = models.User{Auth0ID: "auth0|charlie", Name: "Charlie Kaya", Email: "charlie@uni.example", Role: "member", PostNotifications: false}
	db.Create(&f.charlie)

	return f
}

// send is a fixture helper that fails the test on error
func (f *messageServiceFixture) send(t *testing.T, senderID, receiverID uint, text string) *models.Message {
	t.Helper()
	message, err := f.svc.Send(senderID, receiverID, text, nil, nil, nil)
	if err != nil {
		t.Fatalf("Failed to send message: %v", err)
	}
	return message
}

// reply is a fixture helper sending a reply to another message
func (f *messageServiceFixture) reply(t *testing.T, senderID, receiverID uint, text string, replyTo uint) *models.Message {
	t.Helper()
	message, err := f.svc.Send(senderID, receiverID, text, nil, &replyTo, nil)
	if err != nil {
		t.Fatalf("Failed to send reply: %v", err)
	}
	return message
}

// openReportCiting files a pending report citing the given message ids
func (f *messageServiceFixture) openReportCiting(t *testing.T, reporterID, reportedID uint, messageIDs ...uint) models.Report {
	t.Helper()
	report := models.Report{
		ReportedID: reportedID,
		ReporterID: reporterID,
		Reason:     "harassment",
		Status:     models.ReportStatusPending,
	}
	for _, id := range messageIDs {
		report.Messages = append(report.Messages, models.ReportedMessage{MessageID: id})
	}
	if err := f.db.Create(&report).Error; err != nil {
		t.Fatalf("Failed to create report: %v", err)
	}
	return report
}

func pngBase64() string {
	pngBytes := []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0x00, 0x00, 0x00, 0x0D}
	return base64.StdEncoding.EncodeToString(pngBytes)
}

func TestSendMessage(t *testing.T) {
	f := setupMessageServiceTest(t)

	message := f.send(t, f.alice.ID, f.bob.ID, "Did you find a black wallet?")

	assert.NotZero(t, message.ID)
	assert.Equal(t, f.alice.ID, message.SenderID)
	assert.Equal(t, f.bob.ID, message.ReceiverID)
	assert.False(t, message.IsRead)
	assert.False(t, message.SentAt.IsZero())

	// The row is persisted
	stored, err := f.svc.FindByID(message.ID)
	assert.NoError(t, err)
	assert.Equal(t, "Did you find a black wallet?", stored.Text)
}

func TestSendMessageReplyTargetMustExist(t *testing.T) {
	f := setupMessageServiceTest(t)

	missing := uint(999)
	_, err := f.svc.Send(f.alice.ID, f.bob.ID, "replying to nothing", nil, &missing, nil)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSendMessageReceiverMustExist(t *testing.T) {
	f := setupMessageServiceTest(t)

	_, err := f.svc.Send(f.alice.ID, 999, "hello?", nil, nil, nil)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSendMessageBlockEnforcement(t *testing.T) {
	f := setupMessageServiceTest(t)

	tests := []struct {
		name      string
		blockerID uint
		blockedID uint
	}{
		{name: "sender blocks receiver", blockerID: f.alice.ID, blockedID: f.bob.ID},
		{name: "receiver blocks sender", blockerID: f.bob.ID, blockedID: f.alice.ID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			block := models.UserBlock{BlockerID: tt.blockerID, BlockedID: tt.blockedID}
			f.db.Create(&block)
			defer f.db.Delete(&block)

			_, err := f.svc.Send(f.alice.ID, f.bob.ID, "should not go through", nil, nil, nil)
			assert.True(t, errors.Is(err, ErrBlocked))

			// No row was persisted
			var count int64
			f.db.Model(&models.Message{}).Count(&count)
			assert.Equal(t, int64(0), count)
		})
	}
}

func TestSendMessageWithAttachments(t *testing.T) {
	f := setupMessageServiceTest(t)

	message, err := f.svc.Send(f.alice.ID, f.bob.ID, "photo of the wallet", nil, nil, []string{pngBase64()})
	assert.NoError(t, err)

	images, err := f.svc.ImagesFor(message.ID)
	assert.NoError(t, err)
	assert.Len(t, images, 1)
	assert.True(t, f.images.HasImage(images[0].S3Key))
}

func TestSendMessageRejectsNonPNGAttachment(t *testing.T) {
	f := setupMessageServiceTest(t)

	notPNG := base64.StdEncoding.EncodeToString([]byte("definitely a jpeg"))
	_, err := f.svc.Send(f.alice.ID, f.bob.ID, "bad payload", nil, nil, []string{notPNG})
	assert.Error(t, err)

	// Nothing was persisted
	var count int64
	f.db.Model(&models.Message{}).Count(&count)
	assert.Equal(t, int64(0), count)
}

func TestThreadBetweenPerSideVisibility(t *testing.T) {
	f := setupMessageServiceTest(t)

	message := f.send(t, f.alice.ID, f.bob.ID, "seen it near the library")

	// Alice hides the message for herself
	assert.NoError(t, f.svc.DeleteForSelf(message.ID, f.alice.ID))

	aliceThread, err := f.svc.ThreadBetween(f.alice.ID, f.bob.ID, f.alice.ID)
	assert.NoError(t, err)
	assert.Len(t, aliceThread, 0, "Alice should no longer see the message")

	bobThread, err := f.svc.ThreadBetween(f.alice.ID, f.bob.ID, f.bob.ID)
	assert.NoError(t, err)
	assert.Len(t, bobThread, 1, "Bob's view is unaffected")
	assert.Equal(t, message.ID, bobThread[0].ID)
}

func TestThreadBetweenEvaluatesRoleMessageByMessage(t *testing.T) {
	f := setupMessageServiceTest(t)

	sent := f.send(t, f.alice.ID, f.bob.ID, "from alice")
	received := f.send(t, f.bob.ID, f.alice.ID, "from bob")

	// Hide only the message Alice sent, for Alice
	assert.NoError(t, f.svc.DeleteForSelf(sent.ID, f.alice.ID))

	aliceThread, err := f.svc.ThreadBetween(f.alice.ID, f.bob.ID, f.alice.ID)
	assert.NoError(t, err)
	assert.Len(t, aliceThread, 1)
	assert.Equal(t, received.ID, aliceThread[0].ID)
}

func TestThreadBetweenBreaksTimestampTiesByID(t *testing.T) {
	f := setupMessageServiceTest(t)

	first := f.send(t, f.alice.ID, f.bob.ID, "first")
	second := f.send(t, f.bob.ID, f.alice.ID, "second")

	// Pin both rows to the same instant; ordering must fall back to id
	instant := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	assert.NoError(t, f.db.Model(&models.Message{}).
		Where("id IN ?", []uint{first.ID, second.ID}).
		Update("sent_at", instant).Error)

	thread, err := f.svc.ThreadBetween(f.alice.ID, f.bob.ID, f.alice.ID)
	assert.NoError(t, err)
	assert.Len(t, thread, 2)
	assert.Equal(t, []uint{first.ID, second.ID}, []uint{thread[0].ID, thread[1].ID})
}

func TestThreadBetweenOrdering(t *testing.T) {
	f := setupMessageServiceTest(t)

	first := f.send(t, f.alice.ID, f.bob.ID, "first")
	second := f.send(t, f.bob.ID, f.alice.ID, "second")
	third := f.send(t, f.alice.ID, f.bob.ID, "third")

	thread, err := f.svc.ThreadBetween(f.alice.ID, f.bob.ID, f.alice.ID)
	assert.NoError(t, err)
	assert.Len(t, thread, 3)
	assert.Equal(t, []uint{first.ID, second.ID, third.ID}, []uint{thread[0].ID, thread[1].ID, thread[2].ID})
}

func TestDeleteForSelfCascadesOverReplySubtree(t *testing.T) {
	f := setupMessageServiceTest(t)

	root := f.send(t, f.alice.ID, f.bob.ID, "root")
	child := f.reply(t, f.bob.ID, f.alice.ID, "reply", root.ID)
	grandchild := f.reply(t, f.alice.ID, f.bob.ID, "reply to reply", child.ID)

	assert.NoError(t, f.svc.DeleteForSelf(root.ID, f.alice.ID))

	aliceThread, err := f.svc.ThreadBetween(f.alice.ID, f.bob.ID, f.alice.ID)
	assert.NoError(t, err)
	assert.Len(t, aliceThread, 0, "whole subtree hidden from Alice")

	bobThread, err := f.svc.ThreadBetween(f.alice.ID, f.bob.ID, f.bob.ID)
	assert.NoError(t, err)
	assert.Len(t, bobThread, 3, "Bob still sees root, reply, and nested reply")

	// Rows still exist in storage
	for _, id := range []uint{root.ID, child.ID, grandchild.ID} {
		_, err := f.svc.FindByID(id)
		assert.NoError(t, err)
	}
}

func TestDeleteForSelfRequiresParticipant(t *testing.T) {
	f := setupMessageServiceTest(t)

	message := f.send(t, f.alice.ID, f.bob.ID, "private")

	err := f.svc.DeleteForSelf(message.ID, f.charlie.ID)
	assert.True(t, errors.Is(err, ErrForbidden))

	// No mutation happened
	thread, err := f.svc.ThreadBetween(f.alice.ID, f.bob.ID, f.alice.ID)
	assert.NoError(t, err)
	assert.Len(t, thread, 1)
}

func TestDeleteForSelfMissingMessageIsNoOp(t *testing.T) {
	f := setupMessageServiceTest(t)

	assert.NoError(t, f.svc.DeleteForSelf(12345, f.alice.ID))
}

func TestDeleteForEveryoneHardDeletesUnreferenced(t *testing.T) {
	f := setupMessageServiceTest(t)

	message, err := f.svc.Send(f.alice.ID, f.bob.ID, "with attachment", nil, nil, []string{pngBase64()})
	assert.NoError(t, err)

	images, err := f.svc.ImagesFor(message.ID)
	assert.NoError(t, err)
	assert.Len(t, images, 1)
	imageKey := images[0].S3Key

	assert.NoError(t, f.svc.DeleteForEveryone(message.ID, f.alice.ID))

	// Row and attachments are gone
	_, err = f.svc.FindByID(message.ID)
	assert.True(t, errors.Is(err, ErrNotFound))

	remaining, err := f.svc.ImagesFor(message.ID)
	assert.NoError(t, err)
	assert.Len(t, remaining, 0)
	assert.False(t, f.images.HasImage(imageKey), "attachment removed from storage")
}

func TestDeleteForEveryoneRetainsReportedMessage(t *testing.T) {
	f := setupMessageServiceTest(t)

	message := f.send(t, f.alice.ID, f.bob.ID, "abusive content")
	f.openReportCiting(t, f.bob.ID, f.alice.ID, message.ID)

	assert.NoError(t, f.svc.DeleteForEveryone(message.ID, f.alice.ID))

	// The row survives for moderation inspection
	stored, err := f.svc.FindByID(message.ID)
	assert.NoError(t, err)
	assert.True(t, stored.DeletedCompletely)
	assert.True(t, stored.DeletedForSender)
	assert.True(t, stored.DeletedForReceiver)
	assert.NotNil(t, stored.DeletedAt)

	// But it is invisible to both participants
	for _, viewer := range []uint{f.alice.ID, f.bob.ID} {
		thread, err := f.svc.ThreadBetween(f.alice.ID, f.bob.ID, viewer)
		assert.NoError(t, err)
		assert.Len(t, thread, 0)
	}
}

func TestDeleteForEveryoneReleasedHoldAllowsHardDelete(t *testing.T) {
	f := setupMessageServiceTest(t)

	message := f.send(t, f.alice.ID, f.bob.ID, "reported then cleared")
	report := f.openReportCiting(t, f.bob.ID, f.alice.ID, message.ID)

	// Review the report; the retention hold is released
	f.db.Model(&report).Update("status", models.ReportStatusDismissed)

	assert.NoError(t, f.svc.DeleteForEveryone(message.ID, f.alice.ID))

	_, err := f.svc.FindByID(message.ID)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestDeleteForEveryoneMixedSubtree(t *testing.T) {
	f := setupMessageServiceTest(t)

	root := f.send(t, f.alice.ID, f.bob.ID, "root")
	held := f.reply(t, f.bob.ID, f.alice.ID, "reported reply", root.ID)
	free := f.reply(t, f.alice.ID, f.bob.ID, "unreported reply", held.ID)
	f.openReportCiting(t, f.alice.ID, f.bob.ID, held.ID)

	assert.NoError(t, f.svc.DeleteForEveryone(root.ID, f.alice.ID))

	// Root and the unreported leaf are physically gone
	_, err := f.svc.FindByID(root.ID)
	assert.True(t, errors.Is(err, ErrNotFound))
	_, err = f.svc.FindByID(free.ID)
	assert.True(t, errors.Is(err, ErrNotFound))

	// The reported reply is collapsed but retained
	stored, err := f.svc.FindByID(held.ID)
	assert.NoError(t, err)
	assert.True(t, stored.DeletedCompletely)
}

func TestDeleteForEveryoneSenderOnly(t *testing.T) {
	f := setupMessageServiceTest(t)

	message := f.send(t, f.alice.ID, f.bob.ID, "mine to delete")

	err := f.svc.DeleteForEveryone(message.ID, f.bob.ID)
	assert.True(t, errors.Is(err, ErrForbidden))

	// The message is untouched
	stored, err := f.svc.FindByID(message.ID)
	assert.NoError(t, err)
	assert.False(t, stored.DeletedCompletely)
	assert.False(t, stored.DeletedForSender)
	assert.False(t, stored.DeletedForReceiver)
}

func TestModerationLedgerReadsThroughTransaction(t *testing.T) {
	f := setupMessageServiceTest(t)
	message := f.send(t, f.alice.ID, f.bob.ID, "cited in flight")

	err := f.db.Transaction(func(tx *gorm.DB) error {
		report := models.Report{
			ReportedID: f.alice.ID,
			ReporterID: f.bob.ID,
			Reason:     "spam",
			Status:     models.ReportStatusPending,
			Messages:   []models.ReportedMessage{{MessageID: message.ID}},
		}
		if err := tx.Create(&report).Error; err != nil {
			return err
		}

		// The citation is not committed yet; only a ledger bound to this
		// transaction can see it
		held, err := GetModerationLedger().WithTx(tx).IsMessageReferencedByOpenReport(message.ID)
		assert.NoError(t, err)
		assert.True(t, held, "uncommitted citation should hold retention inside its transaction")
		return nil
	})
	assert.NoError(t, err)
}

// failingLedger errors its retention check for one message id, letting tests
// abort a delete cascade partway through
type failingLedger struct{ failID uint }

func (l *failingLedger) IsMessageReferencedByOpenReport(messageID uint) (bool, error) {
	if messageID == l.failID {
		return false, errors.New("report store unavailable")
	}
	return false, nil
}

func (l *failingLedger) WithTx(tx *gorm.DB) ModerationLedger { return l }

func TestDeleteForEveryoneRollbackKeepsAttachmentObjects(t *testing.T) {
	f := setupMessageServiceTest(t)

	root := f.send(t, f.alice.ID, f.bob.ID, "root")
	child, err := f.svc.Send(f.alice.ID, f.bob.ID, "photo reply", nil, &root.ID, []string{pngBase64()})
	assert.NoError(t, err)

	var attachments []models.MessageImage
	assert.NoError(t, f.db.Where("message_id = ?", child.ID).Find(&attachments).Error)
	assert.Len(t, attachments, 1)
	key := attachments[0].S3Key

	// Children are processed before parents, so failing the root's retention
	// check aborts the cascade after the child was already hard-deleted
	f.svc = InitMessageService(f.db, InitUserDirectory(f.db), InitItemDirectory(f.db),
		&failingLedger{failID: root.ID}, f.images, InitNotificationGate(f.mailer))

	assert.Error(t, f.svc.DeleteForEveryone(root.ID, f.alice.ID))

	// The rollback restores the child row, so its storage object must still
	// be there
	stored, err := f.svc.FindByID(child.ID)
	assert.NoError(t, err)
	assert.NotNil(t, stored)
	assert.True(t, f.images.HasImage(key), "attachment object should survive a rolled-back cascade")
}

func TestDeleteForEveryoneMissingMessageIsNoOp(t *testing.T) {
	f := setupMessageServiceTest(t)

	assert.NoError(t, f.svc.DeleteForEveryone(54321, f.alice.ID))
}

func TestClearConversation(t *testing.T) {
	f := setupMessageServiceTest(t)

	f.send(t, f.alice.ID, f.bob.ID, "one")
	f.send(t, f.bob.ID, f.alice.ID, "two")
	f.send(t, f.alice.ID, f.charlie.ID, "other thread")

	assert.NoError(t, f.svc.ClearConversation(f.alice.ID, f.bob.ID))

	aliceThread, err := f.svc.ThreadBetween(f.alice.ID, f.bob.ID, f.alice.ID)
	assert.NoError(t, err)
	assert.Len(t, aliceThread, 0)

	// Bob keeps his view
	bobThread, err := f.svc.ThreadBetween(f.alice.ID, f.bob.ID, f.bob.ID)
	assert.NoError(t, err)
	assert.Len(t, bobThread, 2)

	// The unrelated thread is untouched
	charlieThread, err := f.svc.ThreadBetween(f.alice.ID, f.charlie.ID, f.alice.ID)
	assert.NoError(t, err)
	assert.Len(t, charlieThread, 1)

	// Clearing again is a no-op
	assert.NoError(t, f.svc.ClearConversation(f.alice.ID, f.bob.ID))
}

func TestClearConversationKeepsFirstDeletedAtStamp(t *testing.T) {
	f := setupMessageServiceTest(t)

	message := f.send(t, f.alice.ID, f.bob.ID, "stamped once")

	assert.NoError(t, f.svc.ClearConversation(f.alice.ID, f.bob.ID))
	first, err := f.svc.FindByID(message.ID)
	assert.NoError(t, err)
	assert.NotNil(t, first.DeletedAt)

	time.Sleep(10 * time.Millisecond)

	// The other side clearing later must not move the stamp
	assert.NoError(t, f.svc.ClearConversation(f.bob.ID, f.alice.ID))
	second, err := f.svc.FindByID(message.ID)
	assert.NoError(t, err)
	assert.NotNil(t, second.DeletedAt)
	assert.Equal(t, first.DeletedAt.Unix(), second.DeletedAt.Unix())
}

func TestConversationsAggregation(t *testing.T) {
	f := setupMessageServiceTest(t)

	f.send(t, f.bob.ID, f.alice.ID, "oldest")
	f.send(t, f.alice.ID, f.bob.ID, "middle")
	latest := f.send(t, f.bob.ID, f.alice.ID, "latest")

	conversations, err := f.svc.Conversations(f.alice.ID)
	assert.NoError(t, err)
	assert.Len(t, conversations, 1, "exactly one entry per counterpart")
	assert.Equal(t, f.bob.ID, conversations[0].Counterpart.ID)
	assert.Equal(t, latest.ID, conversations[0].LastMessage.ID)
}

func TestConversationsMultipleCounterparts(t *testing.T) {
	f := setupMessageServiceTest(t)

	f.send(t, f.bob.ID, f.alice.ID, "from bob")
	f.send(t, f.charlie.ID, f.alice.ID, "from charlie")

	conversations, err := f.svc.Conversations(f.alice.ID)
	assert.NoError(t, err)
	assert.Len(t, conversations, 2)
}

func TestConversationsExcludeHiddenMessages(t *testing.T) {
	f := setupMessageServiceTest(t)

	older := f.send(t, f.bob.ID, f.alice.ID, "older")
	newer := f.send(t, f.bob.ID, f.alice.ID, "newer")

	// Alice hides the newer message; the older one becomes her latest
	assert.NoError(t, f.svc.DeleteForSelf(newer.ID, f.alice.ID))

	conversations, err := f.svc.Conversations(f.alice.ID)
	assert.NoError(t, err)
	assert.Len(t, conversations, 1)
	assert.Equal(t, older.ID, conversations[0].LastMessage.ID)

	// After clearing the whole thread the conversation disappears entirely
	assert.NoError(t, f.svc.ClearConversation(f.alice.ID, f.bob.ID))
	conversations, err = f.svc.Conversations(f.alice.ID)
	assert.NoError(t, err)
	assert.Len(t, conversations, 0)
}

func TestConversationsSkipMalformedRows(t *testing.T) {
	f := setupMessageServiceTest(t)

	good := f.send(t, f.bob.ID, f.alice.ID, "good row")

	// Force a corrupt row past the model layer
	future := time.Now().Add(time.Hour)
	f.db.Exec(
		"INSERT INTO messages (sender_id, receiver_id, text, sent_at, is_read, deleted_for_sender, deleted_for_receiver, deleted_completely, created_at, updated_at) VALUES (0, ?, 'corrupt', ?, 0, 0, 0, 0, ?, ?)",
		f.alice.ID, future, future, future,
	)

	conversations, err := f.svc.Conversations(f.alice.ID)
	assert.NoError(t, err, "a corrupt row must not fail the listing")
	assert.Len(t, conversations, 1)
	assert.Equal(t, good.ID, conversations[0].LastMessage.ID)
}

func TestUnreadCounting(t *testing.T) {
	f := setupMessageServiceTest(t)

	f.send(t, f.bob.ID, f.alice.ID, "one")
	f.send(t, f.bob.ID, f.alice.ID, "two")
	f.send(t, f.bob.ID, f.alice.ID, "three")

	count, err := f.svc.CountUnread(f.alice.ID, f.bob.ID)
	assert.NoError(t, err)
	assert.Equal(t, int64(3), count)

	// Reading the thread clears the counter
	assert.NoError(t, f.svc.MarkRead(f.alice.ID, f.bob.ID))
	count, err = f.svc.CountUnread(f.alice.ID, f.bob.ID)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), count)

	// A later message restores it to one
	f.send(t, f.bob.ID, f.alice.ID, "four")
	count, err = f.svc.CountUnread(f.alice.ID, f.bob.ID)
	assert.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestUnreadCountingIsDirectional(t *testing.T) {
	f := setupMessageServiceTest(t)

	f.send(t, f.bob.ID, f.alice.ID, "to alice")
	f.send(t, f.alice.ID, f.bob.ID, "to bob")

	// Alice reading her side must not mark Bob's incoming message
	assert.NoError(t, f.svc.MarkRead(f.alice.ID, f.bob.ID))

	bobUnread, err := f.svc.CountUnread(f.bob.ID, f.alice.ID)
	assert.NoError(t, err)
	assert.Equal(t, int64(1), bobUnread)
}

func TestUnreadCountingExcludesHidden(t *testing.T) {
	f := setupMessageServiceTest(t)

	hidden := f.send(t, f.bob.ID, f.alice.ID, "hidden unread")
	f.send(t, f.bob.ID, f.alice.ID, "visible unread")

	assert.NoError(t, f.svc.DeleteForSelf(hidden.ID, f.alice.ID))

	count, err := f.svc.CountUnread(f.alice.ID, f.bob.ID)
	assert.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestNotificationGating(t *testing.T) {
	f := setupMessageServiceTest(t)

	item := models.Item{Title: "Black Wallet", Type: "found", OwnerID: f.bob.ID, SharedAt: time.Now()}
	f.db.Create(&item)

	tests := []struct {
		name         string
		receiverID   uint
		itemID       *uint
		expectedMail int
	}{
		{name: "item reference and notifications on", receiverID: f.bob.ID, itemID: &item.ID, expectedMail: 1},
		{name: "no item reference", receiverID: f.bob.ID, itemID: nil, expectedMail: 0},
		{name: "notifications off", receiverID: f.charlie.ID, itemID: &item.ID, expectedMail: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := len(f.mailer.Sent())
			_, err := f.svc.Send(f.alice.ID, tt.receiverID, "about your post", tt.itemID, nil, nil)
			assert.NoError(t, err)
			assert.Equal(t, tt.expectedMail, len(f.mailer.Sent())-before)
		})
	}
}

func TestNotificationCarriesItemAndSender(t *testing.T) {
	f := setupMessageServiceTest(t)

	item := models.Item{Title: "Student ID Card", Type: "found", OwnerID: f.bob.ID, SharedAt: time.Now()}
	f.db.Create(&item)

	_, err := f.svc.Send(f.alice.ID, f.bob.ID, "I think this is yours", &item.ID, nil, nil)
	assert.NoError(t, err)

	sent := f.mailer.Sent()
	assert.Len(t, sent, 1)
	assert.Equal(t, f.bob.Email, sent[0].To)
	assert.Equal(t, f.alice.Name, sent[0].SenderName)
	assert.Equal(t, "Student ID Card", sent[0].ItemTitle)
	assert.Equal(t, "I think this is yours", sent[0].BodyPreview)
}

func TestMailerFailureDoesNotFailSend(t *testing.T) {
	f := setupMessageServiceTest(t)

	item := models.Item{Title: "Umbrella", Type: "lost", OwnerID: f.bob.ID, SharedAt: time.Now()}
	f.db.Create(&item)

	f.mailer.FailNext()
	message, err := f.svc.Send(f.alice.ID, f.bob.ID, "found your umbrella", &item.ID, nil, nil)
	assert.NoError(t, err, "a mailer failure must never fail the send")

	// The row exists despite the failed notification
	_, err = f.svc.FindByID(message.ID)
	assert.NoError(t, err)
}

func TestSendMessageNonexistentItemReference(t *testing.T) {
	f := setupMessageServiceTest(t)

	missing := uint(404)
	_, err := f.svc.Send(f.alice.ID, f.bob.ID, "about a ghost post", &missing, nil, nil)
	assert.True(t, errors.Is(err, ErrNotFound))
}
