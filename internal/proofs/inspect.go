// Package proofs validates and stores payment proof images.
package proofs

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	pkgerrors "github.com/angelmondragon/carrental-backend/pkg/errors"
)

// DefaultMaxBytes is the proof size cap when none is configured.
const DefaultMaxBytes = 5 << 20

var allowedImageTypes = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}

// File is an accepted proof with its sniffed type and content digest.
type File struct {
	Content     []byte
	ContentType string
	Extension   string
	SHA256      string
}

// Size returns the payload length in bytes.
func (f File) Size() int {
	return len(f.Content)
}

// Inspector accepts image uploads up to a size cap.
type Inspector struct {
	maxBytes int64
}

// NewInspector builds an inspector; maxBytes <= 0 falls back to DefaultMaxBytes.
func NewInspector(maxBytes int64) *Inspector {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Inspector{maxBytes: maxBytes}
}

// MaxBytes reports the configured cap.
func (i *Inspector) MaxBytes() int64 {
	return i.maxBytes
}

// Inspect sniffs content and rejects anything that is not an allowed image.
// The declared file name is never trusted for the type.
func (i *Inspector) Inspect(content []byte) (File, error) {
	if len(content) == 0 {
		return File{}, pkgerrors.New(pkgerrors.CodeValidation, "proof file is empty")
	}
	if int64(len(content)) > i.maxBytes {
		return File{}, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("proof file exceeds %d bytes", i.maxBytes)).
			WithDetails(map[string]any{"max_bytes": i.maxBytes, "size": len(content)})
	}

	detected := mimetype.Detect(content)
	if !isAllowed(detected) {
		return File{}, pkgerrors.New(pkgerrors.CodeValidation, "proof must be a JPEG, PNG, GIF or WebP image").
			WithDetails(map[string]any{"detected": detected.String()})
	}

	sum := sha256.Sum256(content)
	return File{
		Content:     content,
		ContentType: baseType(detected.String()),
		Extension:   strings.TrimPrefix(detected.Extension(), "."),
		SHA256:      hex.EncodeToString(sum[:]),
	}, nil
}

func isAllowed(detected *mimetype.MIME) bool {
	for _, allowed := range allowedImageTypes {
		if detected.Is(allowed) {
			return true
		}
	}
	return false
}

func baseType(value string) string {
	if idx := strings.Index(value, ";"); idx >= 0 {
		value = value[:idx]
	}
	return strings.ToLower(strings.TrimSpace(value))
}
