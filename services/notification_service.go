package services

import (
	"fmt"
	"log"
	"net/smtp"

	"github.com/campusfind/campusfind-api/config"
	"github.com/campusfind/campusfind-api/models"
)

// Mailer delivers out-of-band notifications. Delivery is fire-and-forget
// from the messaging core's perspective.
type Mailer interface {
	// NotifyPostMessage emails the recipient that someone messaged them
	// about one of their posts
	NotifyPostMessage(toAddress, senderName, itemTitle, bodyPreview string) error
}

// NotificationGate decides, per sent message, whether an email notification
// should fire, and hands delivery off to the Mailer. A mailer failure never
// fails the send; notification is best-effort.
type NotificationGate struct {
	mailer Mailer
}

var notificationGateInstance *NotificationGate

// InitNotificationGate initializes the notification gate with a mailer
func InitNotificationGate(mailer Mailer) *NotificationGate {
	notificationGateInstance = &NotificationGate{mailer: mailer}
	return notificationGateInstance
}

// GetNotificationGate returns the initialized notification gate instance
func GetNotificationGate() *NotificationGate {
	return notificationGateInstance
}

// SetNotificationGate sets the notification gate instance (primarily for testing)
func SetNotificationGate(gate *NotificationGate) {
	notificationGateInstance = gate
}

// ShouldNotify reports whether a notification should fire for the message:
// the message must reference an item and the receiver must have post
// notifications enabled.
func (g *NotificationGate) ShouldNotify(message *models.Message, receiver *models.User) bool {
	return message.ReferencedItemID != nil && receiver.PostNotifications
}

// NotifyIfEligible applies the gate and dispatches the mail. Failures from
// the mailer are logged and swallowed so message delivery is never coupled
// to mail infrastructure availability.
func (g *NotificationGate) NotifyIfEligible(message *models.Message, sender, receiver *models.User, itemTitle string) {
	if !g.ShouldNotify(message, receiver) {
		return
	}
	if err := g.mailer.NotifyPostMessage(receiver.Email, sender.Name, itemTitle, message.Text); err != nil {
		log.Printf("warning: failed to send post message notification to %s: %v", receiver.Email, err)
	}
}

// SMTPMailer implements Mailer over plain SMTP.
type SMTPMailer struct {
	host string
	port string
	user string
	pass string
	from string
}

// NewSMTPMailer creates a mailer from the application configuration
func NewSMTPMailer(cfg *config.Config) *SMTPMailer {
	return &SMTPMailer{
		host: cfg.SMTPHost,
		port: cfg.SMTPPort,
		user: cfg.SMTPUsername,
		pass: cfg.SMTPPassword,
		from: cfg.SMTPFromAddress,
	}
}

// NotifyPostMessage emails the recipient that someone messaged them about
// one of their posts
func (m *SMTPMailer) NotifyPostMessage(toAddress, senderName, itemTitle, bodyPreview string) error {
	if m.host == "" {
		return fmt.Errorf("SMTP host not configured")
	}

	subject := fmt.Sprintf("New message about \"%s\"", itemTitle)
	body := fmt.Sprintf("%s sent you a message about your post \"%s\":\r\n\r\n%s\r\n", senderName, itemTitle, bodyPreview)
	msg := []byte(fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s", m.from, toAddress, subject, body))

	addr := m.host + ":" + m.port
	var auth smtp.Auth
	if m.user != "" {
		auth = smtp.PlainAuth("", m.user, m.pass, m.host)
	}

	if err := smtp.SendMail(addr, auth, m.from, []string{toAddress}, msg); err != nil {
		return fmt.Errorf("failed to send mail: %w", err)
	}
	return nil
}
