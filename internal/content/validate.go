package content

import (
	"bytes"
	"fmt"

	"go.uber.org/zap"
)

// DefaultMaxBytes is the upload size ceiling: 50 MiB.
const DefaultMaxBytes int64 = 50 << 20

// ValidationError rejects an upload the user can correct: too large, not an
// image, or an unsupported image format. The HTTP surface maps it to a 4xx.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// FileInfo is the outcome of a successful validation.
type FileInfo struct {
	DeclaredType string
	DetectedType string
	SizeBytes    int64
}

type signature struct {
	mediaType string
	prefix    []byte
	offset    int
}

// Magic-number table for the supported image formats. WebP shares the RIFF
// prefix with other container formats, so it also checks bytes 8-11.
var signatures = []signature{
	{"image/jpeg", []byte{0xFF, 0xD8, 0xFF}, 0},
	{"image/png", []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, 0},
	{"image/gif", []byte("GIF87a"), 0},
	{"image/gif", []byte("GIF89a"), 0},
	{"image/bmp", []byte{0x42, 0x4D}, 0},
	{"image/tiff", []byte{0x49, 0x49, 0x2A, 0x00}, 0},
	{"image/tiff", []byte{0x4D, 0x4D, 0x00, 0x2A}, 0},
}

// Sniff inspects the leading bytes of data and returns the detected media
// type. ok is false when no known signature matches.
func Sniff(data []byte) (string, bool) {
	for _, sig := range signatures {
		end := sig.offset + len(sig.prefix)
		if len(data) >= end && bytes.Equal(data[sig.offset:end], sig.prefix) {
			return sig.mediaType, true
		}
	}
	// WebP: "RIFF" ???? "WEBP"
	if len(data) >= 12 && bytes.Equal(data[0:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WEBP")) {
		return "image/webp", true
	}
	return "", false
}

var allowedTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
	"image/bmp":  true,
	"image/tiff": true,
}

// Validate checks an upload against the size ceiling and the image allow-list.
// The detected type always wins over the caller-declared type; a mismatch is
// logged but not rejected. maxBytes <= 0 falls back to DefaultMaxBytes.
func Validate(data []byte, declaredType string, maxBytes int64) (*FileInfo, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if int64(len(data)) > maxBytes {
		return nil, &ValidationError{Reason: fmt.Sprintf("file exceeds maximum size of %d bytes", maxBytes)}
	}

	detected, ok := Sniff(data)
	if !ok {
		return nil, &ValidationError{Reason: "unable to determine file type"}
	}
	if !allowedTypes[detected] {
		return nil, &ValidationError{Reason: fmt.Sprintf("unsupported file type %s", detected)}
	}

	if declaredType != "" && declaredType != detected {
		zap.L().Warn("declared media type does not match detected type",
			zap.String("declared", declaredType),
			zap.String("detected", detected),
		)
	}

	return &FileInfo{
		DeclaredType: declaredType,
		DetectedType: detected,
		SizeBytes:    int64(len(data)),
	}, nil
}
