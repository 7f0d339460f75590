// Package upload stores submitted photos and returns the URLs recorded on
// the ledger.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/proofofsteak/steakboard/internal/models"
)

const (
	MaxSize = 10 * 1024 * 1024
	Folder  = "proof-of-stake/submissions"
)

var (
	ErrEmpty           = errors.New("no image provided")
	ErrTooLarge        = fmt.Errorf("image too large (max %dMB)", MaxSize/1024/1024)
	ErrUnsupportedType = errors.New("invalid file type; only JPEG, PNG and WebP images are allowed")
	ErrNotConfigured   = errors.New("image storage is not configured")
)

var allowedTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
	"image/webp": true,
}

// Metadata travels with the stored image.
type Metadata struct {
	Filename    string
	Name        string
	Location    string
	Description string
}

func (m Metadata) values() map[string]string {
	out := make(map[string]string)
	for k, v := range map[string]string{
		"name":        m.Name,
		"location":    m.Location,
		"description": m.Description,
		"filename":    m.Filename,
	} {
		if v = strings.TrimSpace(v); v != "" {
			out[k] = v
		}
	}
	return out
}

// Result is a stored image and its resized variants.
type Result = models.UploadedImage

// Storage is an image hosting backend.
type Storage interface {
	Upload(ctx context.Context, r io.Reader, meta Metadata) (*Result, error)
}

// Validate checks the declared content type and size of an upload.
func Validate(contentType string, size int64) error {
	if size <= 0 {
		return ErrEmpty
	}
	if size > MaxSize {
		return ErrTooLarge
	}
	mediaType := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	if !allowedTypes[mediaType] {
		return fmt.Errorf("%w: %s", ErrUnsupportedType, contentType)
	}
	return nil
}
