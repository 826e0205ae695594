package utils

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"strings"
)

// MaxImageSize is the maximum accepted attachment size (5 MB)
const MaxImageSize = 5 * 1024 * 1024

// pngMagic is the 8-byte PNG file signature
var pngMagic = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}

// ValidateImageData checks that the bytes are a PNG image within the size limit
func ValidateImageData(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("image data is empty")
	}

	if len(data) > MaxImageSize {
		return fmt.Errorf("image exceeds maximum size of %d bytes", MaxImageSize)
	}

	// Check the PNG signature; extension and declared content type are not
	// trusted for base64 payloads
	if len(data) < len(pngMagic) || !bytes.Equal(data[:len(pngMagic)], pngMagic) {
		return fmt.Errorf("only PNG images are supported")
	}

	return nil
}

// DecodeBase64Image decodes a base64 image payload, tolerating an optional
// data URL prefix (e.g. "data:image/png;base64,....")
func DecodeBase64Image(encoded string) ([]byte, error) {
	if encoded == "" {
		return nil, fmt.Errorf("image payload is empty")
	}

	if idx := strings.Index(encoded, ","); idx != -1 && strings.HasPrefix(encoded, "data:") {
		encoded = encoded[idx+1:]
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 image payload: %w", err)
	}

	return data, nil
}
