package services

import (
	"fmt"
	"sync"
)

// MockMailer is a mock implementation of Mailer for testing
type MockMailer struct {
	mu       sync.Mutex
	sent     []MockMail
	failNext bool
}

// MockMail records one delivered notification
type MockMail struct {
	To          string
	SenderName  string
	ItemTitle   string
	BodyPreview string
}

// NewMockMailer creates a new mock mailer
func NewMockMailer() *MockMailer {
	return &MockMailer{}
}

// FailNext makes the next delivery attempt return an error
func (m *MockMailer) FailNext() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = true
}

// Sent returns a copy of the delivered notifications
func (m *MockMailer) Sent() []MockMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockMail, len(m.sent))
	copy(out, m.sent)
	return out
}

// NotifyPostMessage records the notification or fails if FailNext was called
func (m *MockMailer) NotifyPostMessage(toAddress, senderName, itemTitle, bodyPreview string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failNext {
		m.failNext = false
		return fmt.Errorf("simulated mailer failure")
	}
	m.sent = append(m.sent, MockMail{
		To:          toAddress,
		SenderName:  senderName,
		ItemTitle:   itemTitle,
		BodyPreview: bodyPreview,
	})
	return nil
}
