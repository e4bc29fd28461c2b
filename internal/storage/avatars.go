// Package storage persists avatar uploads on local disk. Files are served
// back under /uploads by the HTTP layer; the database keeps the relative
// reference only.
package storage

import (
	"errors"
	"io"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

var (
	ErrTooLarge        = errors.New("avatar exceeds size limit")
	ErrUnsupportedType = errors.New("unsupported avatar content type")
)

var allowedTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
	"image/gif":  {},
	"image/webp": {},
}

type AvatarStore struct {
	dir      string
	maxBytes int64
}

// NewAvatarStore creates <dir>/avatars if missing.
func NewAvatarStore(dir string, maxBytes int64) (*AvatarStore, error) {
	err := os.MkdirAll(filepath.Join(dir, "avatars"), 0o755)

	if err != nil {
		return nil, err
	}

	return &AvatarStore{dir: dir, maxBytes: maxBytes}, nil
}

// Dir is the filesystem root served under /uploads.
func (s *AvatarStore) Dir() string {
	return s.dir
}

// Save validates size and sniffed content type before anything touches disk,
// then writes the file and returns its relative URL path.
func (s *AvatarStore) Save(r io.Reader) (string, error) {
	// read one byte past the cap to detect oversize without buffering more
	data, err := io.ReadAll(io.LimitReader(r, s.maxBytes+1))

	if err != nil {
		return "", err
	}

	if int64(len(data)) > s.maxBytes {
		return "", ErrTooLarge
	}

	mtype := mimetype.Detect(data)

	_, ok := allowedTypes[mtype.String()]

	if !ok {
		return "", ErrUnsupportedType
	}

	name := uuid.NewString() + mtype.Extension()

	err = os.WriteFile(filepath.Join(s.dir, "avatars", name), data, 0o644)

	if err != nil {
		return "", err
	}

	return "/uploads/avatars/" + name, nil
}
