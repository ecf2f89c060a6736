// Package storage keeps uploaded puzzle images on local disk and maps
// them to the public /uploads/ URL space.
package storage

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// URLPrefix is the public path images are served under.
const URLPrefix = "/uploads/"

var allowedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

// ImageStore writes uploaded images into a single directory, naming
// each file with a fresh uuid so uploads can never collide or traverse
// paths.
type ImageStore struct {
	dir     string
	maxSize int64
}

// NewImageStore creates the upload directory if needed. maxSize caps a
// single upload in bytes.
func NewImageStore(dir string, maxSize int64) (*ImageStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &ImageStore{dir: dir, maxSize: maxSize}, nil
}

// MaxSize returns the per-upload byte cap, for request body limits.
func (s *ImageStore) MaxSize() int64 {
	return s.maxSize
}

// Save stores one uploaded image and returns its public URL. The
// original filename contributes only its extension, which must be on
// the image allowlist.
func (s *ImageStore) Save(file multipart.File, header *multipart.FileHeader) (string, error) {
	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !allowedExtensions[ext] {
		return "", fmt.Errorf("unsupported image type %q", ext)
	}
	if s.maxSize > 0 && header.Size > s.maxSize {
		return "", fmt.Errorf("image exceeds %d byte limit", s.maxSize)
	}

	name := uuid.NewString() + ext
	path := filepath.Join(s.dir, name)

	dst, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create image file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, file); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to write image: %w", err)
	}

	log.Debug().Str("file", name).Int64("bytes", header.Size).Msg("image stored")
	return URLPrefix + name, nil
}

// Remove deletes the image behind a previously returned URL. URLs
// outside the upload space are ignored, as are missing files.
func (s *ImageStore) Remove(url string) {
	if !strings.HasPrefix(url, URLPrefix) {
		return
	}
	name := filepath.Base(strings.TrimPrefix(url, URLPrefix))
	if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Str("file", name).Msg("failed to remove image")
	}
}

// Dir returns the directory images are stored in, for static serving.
func (s *ImageStore) Dir() string {
	return s.dir
}
