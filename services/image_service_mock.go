package services

import (
	"fmt"
	"sync"

	"github.com/campusfind/campusfind-api/utils"
)

// MockImageService is a mock implementation of ImageService for testing
type MockImageService struct {
	uploadedImages map[string][]byte // map of image key to content
	mu             sync.RWMutex
	counter        int
}

// NewMockImageService creates a new mock image service
func NewMockImageService() *MockImageService {
	return &MockImageService{
		uploadedImages: make(map[string][]byte),
	}
}

// SetAsMockForTesting sets this mock as the global image service instance for testing
func (m *MockImageService) SetAsMockForTesting() {
	SetImageService(m)
}

// UploadImage simulates uploading an image
func (m *MockImageService) UploadImage(data []byte) (string, error) {
	// Validate the image bytes like the real service does
	if err := utils.ValidateImageData(data); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.counter++
	key := fmt.Sprintf("messages/mock_%d.png", m.counter)
	stored := make([]byte, len(data))
	copy(stored, data)
	m.uploadedImages[key] = stored

	return key, nil
}

// GetImageURL returns a fake URL for an uploaded image
func (m *MockImageService) GetImageURL(imageKey string) (string, error) {
	if imageKey == "" {
		return "", nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, exists := m.uploadedImages[imageKey]; !exists {
		return "", fmt.Errorf("image not found: %s", imageKey)
	}
	return fmt.Sprintf("https://mock-bucket.example/%s", imageKey), nil
}

// DeleteImage removes an image from the mock store
func (m *MockImageService) DeleteImage(imageKey string) error {
	if imageKey == "" {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.uploadedImages, imageKey)
	return nil
}

// HasImage reports whether the mock store holds the given key
func (m *MockImageService) HasImage(imageKey string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, exists := m.uploadedImages[imageKey]
	return exists
}

// ImageCount returns the number of stored images
func (m *MockImageService) ImageCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.uploadedImages)
}
