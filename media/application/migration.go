package application

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/mediakit/picserve/media/domain"
	"github.com/mediakit/picserve/media/storage"
)

// migrationPageSize is how many picture rows a backend switch processes per
// page.
const migrationPageSize = 400

// legacyExtensions are the raster formats the mutation sweep converts to
// WebP.
var legacyExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".gif": true, ".png": true,
	".tiff": true, ".tif": true, ".bmp": true, ".jpe": true,
	".jfif": true, ".pjpeg": true, ".pjp": true,
}

// PictureFailure records a per-picture error from a best-effort batch job.
type PictureFailure struct {
	PictureID int
	Err       error
}

// MigrationResult reports the outcome of a backend-switch migration. Failed
// pictures keep their bytes on the previous backend and can be retried by
// flipping the setting again.
type MigrationResult struct {
	Migrated int
	Skipped  int
	Failed   []PictureFailure
}

// SetStoreInDB flips the authoritative backend for canonical bytes and moves
// every picture's bytes to the new backend, page by page. Pictures with a
// virtual path override are skipped. Each row is committed independently;
// per-row errors are collected rather than aborting the run, so a partial
// migration is observable and restartable.
func (s *PictureService) SetStoreInDB(ctx context.Context, storeInDB bool) (*MigrationResult, error) {
	result := &MigrationResult{}

	if s.StoreInDB(ctx) == storeInDB {
		return result, nil
	}

	if err := s.settings.Set(ctx, domain.SettingStoreInDB, strconv.FormatBool(storeInDB)); err != nil {
		return nil, fmt.Errorf("failed to persist storage mode: %w", err)
	}

	oldBackend := s.backendFor(!storeInDB)
	newBackend := s.backendFor(storeInDB)

	for pageIndex := 0; ; pageIndex++ {
		pictures, err := s.repo.GetPicturesPage(ctx, "", pageIndex, migrationPageSize)
		if err != nil {
			return result, fmt.Errorf("failed to page pictures during migration: %w", err)
		}
		if len(pictures) == 0 {
			break
		}

		for _, pic := range pictures {
			if pic.VirtualPath != "" {
				result.Skipped++
				continue
			}

			if err := s.migratePicture(ctx, pic, oldBackend, newBackend); err != nil {
				log.Error().Err(err).Int("picture_id", pic.ID).Msg("Failed to migrate picture")
				result.Failed = append(result.Failed, PictureFailure{PictureID: pic.ID, Err: err})
				continue
			}
			result.Migrated++
		}
	}

	return result, nil
}

// migratePicture copies one picture's canonical bytes to the new backend and
// clears the old side. The write happens before the clear: a crash in
// between leaves a transient duplicate, never data loss.
func (s *PictureService) migratePicture(ctx context.Context, pic *domain.Picture, oldBackend, newBackend storage.Backend) error {
	data, err := oldBackend.Load(ctx, pic.ID, pic.MimeType)
	if err != nil {
		return err
	}

	if err := newBackend.Save(ctx, pic.ID, data, pic.MimeType); err != nil {
		return err
	}

	if err := oldBackend.Delete(ctx, pic.ID, pic.MimeType); err != nil {
		return err
	}

	pic.IsNew = true
	return s.repo.UpdatePicture(ctx, pic)
}

// FileFailure records a per-file error from the filesystem mutation sweep.
type FileFailure struct {
	Path string
	Err  error
}

// MutationResult reports the outcome of a format mutation run.
type MutationResult struct {
	FilesConverted int
	RowsConverted  int
	FailedFiles    []FileFailure
	FailedRows     []PictureFailure
}

// ApplyMutation re-encodes every legacy-format image to WebP: first a
// recursive sweep of the images root (canonical files and cached
// derivatives), then a sweep of database rows whose mime type is not WebP.
// Both sweeps are idempotent; an interrupted run can simply be restarted.
func (s *PictureService) ApplyMutation(ctx context.Context) (*MutationResult, error) {
	result := &MutationResult{}

	if err := s.mutateImageFiles(ctx, result); err != nil {
		return result, err
	}

	if err := s.mutateImageRows(ctx, result); err != nil {
		return result, err
	}

	return result, nil
}

// mutateImageFiles walks the images root and converts every legacy-extension
// file to a WebP sibling, deleting the original. Already-converted files no
// longer match the extension check, which makes reprocessing a no-op.
func (s *PictureService) mutateImageFiles(ctx context.Context, result *MutationResult) error {
	err := filepath.WalkDir(s.cfg.ImagesDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return filepath.SkipAll
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		if !legacyExtensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}

		if err := s.convertFileToWebP(ctx, path); err != nil {
			log.Error().Err(err).Str("path", path).Msg("Failed to convert image file")
			result.FailedFiles = append(result.FailedFiles, FileFailure{Path: path, Err: err})
			return nil
		}
		result.FilesConverted++

		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to sweep images directory: %w", err)
	}

	return nil
}

func (s *PictureService) convertFileToWebP(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	img, _, err := s.codec.Decode(data)
	if err != nil {
		return err
	}

	converted, err := s.codec.Encode(img, s.quality(ctx))
	if err != nil {
		return err
	}

	target := strings.TrimSuffix(path, filepath.Ext(path)) + ".webp"
	if err := storage.WriteFileAtomic(target, converted); err != nil {
		return err
	}

	return os.Remove(path)
}

// mutateImageRows re-encodes the binary of every non-WebP picture row in
// place and updates its mime type. Rows whose bytes live on the filesystem
// only get the mime type update; the file sweep already converted the bytes.
func (s *PictureService) mutateImageRows(ctx context.Context, result *MutationResult) error {
	pictures, err := s.repo.ListPicturesNotMimeType(ctx, domain.MimeTypeWebP)
	if err != nil {
		return fmt.Errorf("failed to list legacy-format pictures: %w", err)
	}

	for _, pic := range pictures {
		if err := s.mutatePictureRow(ctx, pic); err != nil {
			log.Error().Err(err).Int("picture_id", pic.ID).Msg("Failed to convert picture row")
			result.FailedRows = append(result.FailedRows, PictureFailure{PictureID: pic.ID, Err: err})
			continue
		}
		result.RowsConverted++
	}

	return nil
}

func (s *PictureService) mutatePictureRow(ctx context.Context, pic *domain.Picture) error {
	binary, err := s.repo.GetBinaryByPictureID(ctx, pic.ID)
	if err != nil {
		return err
	}

	if binary != nil && len(binary.BinaryData) > 0 {
		img, _, err := s.codec.Decode(binary.BinaryData)
		if err != nil {
			return err
		}

		converted, err := s.codec.Encode(img, s.quality(ctx))
		if err != nil {
			return err
		}

		binary.BinaryData = converted
		if err := s.repo.UpsertBinary(ctx, binary); err != nil {
			return err
		}
	}

	pic.MimeType = domain.MimeTypeWebP
	return s.repo.UpdatePicture(ctx, pic)
}
