// Package avatars stores uploaded profile pictures on disk and serves them
// back under a stable URL path.
package avatars

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// URLPrefix is the path under which stored avatars are served.
const URLPrefix = "/avatars/"

// MaxUploadSize caps avatar uploads at 5 MiB.
const MaxUploadSize = 5 << 20

var allowedExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".webp": true,
}

// Store saves avatar files under a directory.
type Store struct {
	dir string
}

// NewStore creates the avatar directory if needed and returns a store.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create avatar directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Save writes an uploaded file to disk under a random name and returns the
// URL path it will be served from.
func (s *Store) Save(file multipart.File, header *multipart.FileHeader) (string, error) {
	if header.Size > MaxUploadSize {
		return "", fmt.Errorf("avatar exceeds %d bytes", MaxUploadSize)
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !allowedExtensions[ext] {
		return "", fmt.Errorf("unsupported avatar type %q", ext)
	}

	name := uuid.NewString() + ext
	dst, err := os.Create(filepath.Join(s.dir, name))
	if err != nil {
		return "", fmt.Errorf("create avatar file: %w", err)
	}
	defer func() {
		_ = dst.Close()
	}()

	if _, err := io.Copy(dst, io.LimitReader(file, MaxUploadSize)); err != nil {
		return "", fmt.Errorf("write avatar file: %w", err)
	}

	return URLPrefix + name, nil
}

// Handler serves stored avatars as static files.
func (s *Store) Handler() http.Handler {
	return http.StripPrefix(URLPrefix, http.FileServer(http.Dir(s.dir)))
}
