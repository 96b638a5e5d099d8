// internal/infrastructure/storage/local.go
package storage

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/your-org/storefront-backend/internal/config"
)

const imageDir = "images/products"

var (
	// ErrInvalidDataURL is returned for input that is not a base64 image data URL
	ErrInvalidDataURL = errors.New("invalid image data URL")
	// ErrImageTooLarge is returned when a decoded image exceeds the configured limit
	ErrImageTooLarge = errors.New("image exceeds maximum size")
)

var extensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/jpg":  ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// LocalStore writes product images to the local filesystem and serves them
// under a public URL prefix
type LocalStore struct {
	root     string
	prefix   string
	maxBytes int
}

// NewLocalStore creates a store rooted at the configured local path
func NewLocalStore(cfg *config.Config) *LocalStore {
	return &LocalStore{
		root:     cfg.Storage.LocalPath,
		prefix:   strings.TrimRight(cfg.Storage.PublicPrefix, "/"),
		maxBytes: cfg.Storage.MaxImageBytes,
	}
}

// SaveDataURL decodes a data:<mime>;base64,<payload> URL, writes it to disk
// and returns its public URL
func (s *LocalStore) SaveDataURL(dataURL string) (string, error) {
	mime, payload, err := parseDataURL(dataURL)
	if err != nil {
		return "", err
	}

	if s.maxBytes > 0 && base64.StdEncoding.DecodedLen(len(payload)) > s.maxBytes+2 {
		return "", ErrImageTooLarge
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidDataURL, err)
	}
	if s.maxBytes > 0 && len(data) > s.maxBytes {
		return "", ErrImageTooLarge
	}

	ext, ok := extensions[mime]
	if !ok {
		ext = ".png"
	}
	filename := fmt.Sprintf("%d_%s%s", time.Now().UnixMilli(), uuid.NewString(), ext)

	dir := filepath.Join(s.root, filepath.FromSlash(imageDir))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, filename), data, 0644); err != nil {
		return "", fmt.Errorf("failed to save image: %w", err)
	}

	return path.Join(s.prefix, imageDir, filename), nil
}

// Remove deletes the file behind a URL returned by SaveDataURL. URLs that
// point elsewhere are ignored.
func (s *LocalStore) Remove(url string) error {
	rel, ok := strings.CutPrefix(url, s.prefix+"/"+imageDir+"/")
	if !ok || rel == "" || strings.ContainsAny(rel, `/\`) || strings.Contains(rel, "..") {
		return nil
	}

	err := os.Remove(filepath.Join(s.root, filepath.FromSlash(imageDir), rel))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove image: %w", err)
	}
	return nil
}

func parseDataURL(dataURL string) (mime, payload string, err error) {
	rest, ok := strings.CutPrefix(dataURL, "data:")
	if !ok {
		return "", "", ErrInvalidDataURL
	}
	header, payload, ok := strings.Cut(rest, ",")
	if !ok || payload == "" {
		return "", "", ErrInvalidDataURL
	}
	mime, ok = strings.CutSuffix(header, ";base64")
	if !ok || !strings.HasPrefix(mime, "image/") {
		return "", "", ErrInvalidDataURL
	}
	return strings.ToLower(mime), payload, nil
}
