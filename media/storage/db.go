package storage

import (
	"context"
	"fmt"

	"github.com/mediakit/picserve/media/domain"
)

var _ Backend = (*DB)(nil)

// DB stores canonical bytes in the picture_binaries table.
type DB struct {
	repo domain.PictureRepository
}

// NewDB creates a database-backed storage backend over the picture repository.
func NewDB(repo domain.PictureRepository) *DB {
	return &DB{repo: repo}
}

// Load returns the binary row's bytes. A picture without a binary row (or
// with a placeholder row) yields empty bytes, not an error.
func (s *DB) Load(ctx context.Context, pictureID int, _ string) ([]byte, error) {
	binary, err := s.repo.GetBinaryByPictureID(ctx, pictureID)
	if err != nil {
		return nil, fmt.Errorf("failed to load picture binary %d: %w", pictureID, err)
	}

	if binary == nil {
		return []byte{}, nil
	}

	return binary.BinaryData, nil
}

func (s *DB) Save(ctx context.Context, pictureID int, data []byte, _ string) error {
	err := s.repo.UpsertBinary(ctx, &domain.PictureBinary{
		PictureID:  pictureID,
		BinaryData: data,
	})
	if err != nil {
		return fmt.Errorf("failed to save picture binary %d: %w", pictureID, err)
	}

	return nil
}

// Delete zeroes the binary row rather than removing it, preserving the
// one-binary-per-picture invariant.
func (s *DB) Delete(ctx context.Context, pictureID int, _ string) error {
	err := s.repo.UpsertBinary(ctx, &domain.PictureBinary{
		PictureID:  pictureID,
		BinaryData: []byte{},
	})
	if err != nil {
		return fmt.Errorf("failed to clear picture binary %d: %w", pictureID, err)
	}

	return nil
}
