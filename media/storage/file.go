package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mediakit/picserve/media/domain"
)

var _ Backend = (*File)(nil)

// File stores canonical bytes as files under the images root, named
// {id:07d}_0.{ext} with the extension inferred from the mime type.
type File struct {
	root string
}

// NewFile creates a filesystem storage backend rooted at dir.
func NewFile(dir string) *File {
	return &File{root: dir}
}

// Path returns the canonical file path for a picture.
func (s *File) Path(pictureID int, mimeType string) string {
	ext := domain.FileExtensionFromMimeType(mimeType)
	return filepath.Join(s.root, fmt.Sprintf("%07d_0.%s", pictureID, ext))
}

func (s *File) Load(_ context.Context, pictureID int, mimeType string) ([]byte, error) {
	data, err := os.ReadFile(s.Path(pictureID, mimeType))
	if err != nil {
		return nil, fmt.Errorf("failed to read picture file %d: %w", pictureID, err)
	}

	return data, nil
}

// Save writes the file atomically: the bytes land in a temp file first and
// become visible only through the final rename.
func (s *File) Save(_ context.Context, pictureID int, data []byte, mimeType string) error {
	if err := os.MkdirAll(s.root, 0755); err != nil {
		return fmt.Errorf("failed to create images directory: %w", err)
	}

	return WriteFileAtomic(s.Path(pictureID, mimeType), data)
}

func (s *File) Delete(_ context.Context, pictureID int, mimeType string) error {
	err := os.Remove(s.Path(pictureID, mimeType))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove picture file %d: %w", pictureID, err)
	}

	return nil
}

// WriteFileAtomic writes data to path via a temp file and rename, so a
// concurrent reader never observes a partially written file.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to move temp file into place: %w", err)
	}

	return nil
}
