// Package application contains the picture service: lazy derivative
// generation with per-file locking, dual-backend canonical storage, and the
// batch migration and format mutation jobs.
package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mediakit/picserve/media/codec"
	"github.com/mediakit/picserve/media/domain"
	"github.com/mediakit/picserve/media/storage"
	"github.com/mediakit/picserve/shared/keymutex"
)

// PictureType selects which default image stands in for a missing picture.
type PictureType int

const (
	PictureTypeEntity PictureType = iota
	PictureTypeAvatar
)

const (
	defaultImageFileName  = "default-image.png"
	defaultAvatarFileName = "default-avatar.gif"

	// thumbDirPrefixLength is the shard-key length when thumbs are spread
	// over multiple subdirectories.
	thumbDirPrefixLength = 3

	defaultMaximumImageSize = 1980
	defaultLockTimeout      = 30 * time.Second

	maxMimeTypeLength    = 20
	maxSeoFilenameLength = 100
)

// allowedUploadExtensions is the accept list for the upload endpoint.
var allowedUploadExtensions = []string{
	".bmp", ".gif", ".jpeg", ".jpg", ".jpe", ".jfif",
	".pjpeg", ".pjp", ".png", ".tiff", ".tif", ".webp",
}

// Config holds the filesystem and URL layout of the picture service.
type Config struct {
	// ImagesDir is the root for canonical image files, default images and
	// the thumbs directory.
	ImagesDir string

	// BaseURL is the public prefix under which ImagesDir is served. It must
	// end with a slash.
	BaseURL string

	// LockTimeout bounds the wait for a derivative's generation lock. On
	// timeout the request degrades to the default-picture URL instead of
	// stalling behind a wedged generator.
	LockTimeout time.Duration
}

// PictureService resolves picture URLs, generating and caching resized
// derivatives on demand, and owns the picture CRUD operations.
type PictureService struct {
	repo     domain.PictureRepository
	settings domain.SettingStore
	codec    domain.ImageCodec
	cfg      Config

	// locks serializes generation per derivative filename only; unrelated
	// derivatives proceed independently.
	locks *keymutex.KeyMutex

	dbStore   *storage.DB
	fileStore *storage.File
}

// NewPictureService wires the picture service over its repository, settings
// store and codec.
func NewPictureService(repo domain.PictureRepository, settings domain.SettingStore, imageCodec domain.ImageCodec, cfg Config) *PictureService {
	if cfg.ImagesDir == "" {
		cfg.ImagesDir = "./images"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "/images/"
	}
	if cfg.LockTimeout <= 0 {
		cfg.LockTimeout = defaultLockTimeout
	}

	return &PictureService{
		repo:      repo,
		settings:  settings,
		codec:     imageCodec,
		cfg:       cfg,
		locks:     keymutex.New(),
		dbStore:   storage.NewDB(repo),
		fileStore: storage.NewFile(cfg.ImagesDir),
	}
}

// StoreInDB reports whether the database backend is currently authoritative
// for canonical bytes.
func (s *PictureService) StoreInDB(ctx context.Context) bool {
	return s.settings.GetBool(ctx, domain.SettingStoreInDB, true)
}

func (s *PictureService) backendFor(fromDB bool) storage.Backend {
	if fromDB {
		return s.dbStore
	}
	return s.fileStore
}

// LoadPictureBinary returns the canonical bytes for a picture from the
// active backend.
func (s *PictureService) LoadPictureBinary(ctx context.Context, pic *domain.Picture) ([]byte, error) {
	return s.loadPictureBinary(ctx, pic, s.StoreInDB(ctx))
}

func (s *PictureService) loadPictureBinary(ctx context.Context, pic *domain.Picture, fromDB bool) ([]byte, error) {
	if pic == nil {
		return nil, fmt.Errorf("picture cannot be nil")
	}

	return s.backendFor(fromDB).Load(ctx, pic.ID, pic.MimeType)
}

// loadBinaryOrEmpty degrades load failures to empty bytes so URL resolution
// can fall back to the default picture.
func (s *PictureService) loadBinaryOrEmpty(ctx context.Context, pic *domain.Picture) []byte {
	data, err := s.LoadPictureBinary(ctx, pic)
	if err != nil {
		log.Warn().Err(err).Int("picture_id", pic.ID).Msg("Failed to load canonical picture bytes")
		return nil
	}
	return data
}

// thumbFileName builds the deterministic derivative filename
// {id:07d}[_{seo}][_{size}].{ext}.
func thumbFileName(pic *domain.Picture, targetSize int) string {
	ext := domain.FileExtensionFromMimeType(pic.MimeType)

	switch {
	case targetSize == 0 && pic.SeoFilename != "":
		return fmt.Sprintf("%07d_%s.%s", pic.ID, pic.SeoFilename, ext)
	case targetSize == 0:
		return fmt.Sprintf("%07d.%s", pic.ID, ext)
	case pic.SeoFilename != "":
		return fmt.Sprintf("%07d_%s_%d.%s", pic.ID, pic.SeoFilename, targetSize, ext)
	default:
		return fmt.Sprintf("%07d_%d.%s", pic.ID, targetSize, ext)
	}
}

func (s *PictureService) thumbsDir() string {
	return filepath.Join(s.cfg.ImagesDir, "thumbs")
}

// thumbShard returns the subdirectory name for a thumb file, or "" when
// sharding is off or the stem is too short.
func (s *PictureService) thumbShard(ctx context.Context, fileName string) string {
	if !s.settings.GetBool(ctx, domain.SettingMultipleThumbDirs, false) {
		return ""
	}

	stem := strings.TrimSuffix(fileName, filepath.Ext(fileName))
	if len(stem) <= thumbDirPrefixLength {
		return ""
	}

	return stem[:thumbDirPrefixLength]
}

// thumbLocalPath returns the on-disk location for a thumb file, honoring the
// multiple-subdirectory setting.
func (s *PictureService) thumbLocalPath(ctx context.Context, fileName string) string {
	if shard := s.thumbShard(ctx, fileName); shard != "" {
		return filepath.Join(s.thumbsDir(), shard, fileName)
	}
	return filepath.Join(s.thumbsDir(), fileName)
}

// thumbURL returns the public URL for a thumb file. Consumers cache these
// URLs, so the shape must stay stable.
func (s *PictureService) thumbURL(ctx context.Context, fileName string) string {
	url := s.cfg.BaseURL + "thumbs/"
	if shard := s.thumbShard(ctx, fileName); shard != "" {
		url += shard + "/"
	}
	return url + fileName
}

func thumbExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// saveThumb writes derivative bytes with atomic visibility: a reader that
// sees the file sees all of it.
func saveThumb(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create thumbs directory: %w", err)
	}

	return storage.WriteFileAtomic(path, data)
}

// deleteThumbs removes every cached derivative for a picture. Derivatives are
// regenerable, so this is always safe.
func (s *PictureService) deleteThumbs(pic *domain.Picture) error {
	prefix := fmt.Sprintf("%07d", pic.ID)

	err := filepath.WalkDir(s.thumbsDir(), func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return filepath.SkipAll
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.HasPrefix(d.Name(), prefix) {
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete thumbs for picture %d: %w", pic.ID, err)
	}

	return nil
}

// DefaultPictureURL returns the URL of the default picture for the given
// type, generating and caching a resized derivative when targetSize is not
// zero. An empty string is returned when no default asset exists.
func (s *PictureService) DefaultPictureURL(ctx context.Context, targetSize int, defaultType PictureType) (string, error) {
	name := s.defaultImageName(ctx, defaultType)
	filePath := filepath.Join(s.cfg.ImagesDir, name)
	if !thumbExists(filePath) {
		return "", nil
	}

	if targetSize == 0 {
		return s.cfg.BaseURL + name, nil
	}

	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	fileName := fmt.Sprintf("%s_%d%s", stem, targetSize, ext)
	path := s.thumbLocalPath(ctx, fileName)

	if !thumbExists(path) {
		data, err := os.ReadFile(filePath)
		if err != nil {
			return "", fmt.Errorf("failed to read default image: %w", err)
		}

		resized, err := s.resizeToTarget(ctx, data, targetSize)
		if err != nil {
			return "", err
		}

		if err := saveThumb(path, resized); err != nil {
			return "", err
		}
	}

	return s.thumbURL(ctx, fileName), nil
}

func (s *PictureService) defaultImageName(ctx context.Context, defaultType PictureType) string {
	if defaultType == PictureTypeAvatar {
		return s.settings.GetString(ctx, domain.SettingDefaultAvatarName, defaultAvatarFileName)
	}
	return s.settings.GetString(ctx, domain.SettingDefaultImageName, defaultImageFileName)
}

func (s *PictureService) defaultOrEmpty(ctx context.Context, targetSize int, showDefault bool, defaultType PictureType) (string, error) {
	if !showDefault {
		return "", nil
	}
	return s.DefaultPictureURL(ctx, targetSize, defaultType)
}

// PictureURLByID resolves a picture by id and returns its derivative URL for
// the target size.
func (s *PictureService) PictureURLByID(ctx context.Context, pictureID, targetSize int, showDefault bool, defaultType PictureType) (string, error) {
	var pic *domain.Picture
	if pictureID != 0 {
		var err error
		pic, err = s.repo.GetPictureByID(ctx, pictureID)
		if err != nil && !errors.Is(err, domain.ErrPictureNotFound) {
			return "", err
		}
	}

	url, _, err := s.PictureURL(ctx, pic, targetSize, showDefault, defaultType)
	return url, err
}

// PictureURL returns the derivative URL for a picture at the target size,
// generating the derivative on a cache miss. A targetSize of zero means the
// original, unresized bytes. The possibly updated picture is returned
// alongside the URL: first materialization clears IsNew.
//
// For a fixed derivative filename at most one generation runs at a time;
// requests for other derivatives are not serialized.
func (s *PictureService) PictureURL(ctx context.Context, pic *domain.Picture, targetSize int, showDefault bool, defaultType PictureType) (string, *domain.Picture, error) {
	if pic == nil {
		url, err := s.defaultOrEmpty(ctx, targetSize, showDefault, defaultType)
		return url, nil, err
	}

	var binary []byte
	if pic.IsNew {
		// First materialization: stale derivatives from a previous life of
		// this id must not be served.
		if err := s.deleteThumbs(pic); err != nil {
			return "", pic, err
		}

		binary = s.loadBinaryOrEmpty(ctx, pic)
		if len(binary) == 0 {
			url, err := s.defaultOrEmpty(ctx, targetSize, showDefault, defaultType)
			return url, pic, err
		}

		updated, err := s.UpdatePicture(ctx, pic.ID, binary, pic.MimeType, pic.SeoFilename,
			pic.AltAttribute, pic.TitleAttribute, false)
		if err != nil {
			return "", pic, err
		}
		pic = updated
	}

	fileName := thumbFileName(pic, targetSize)
	path := s.thumbLocalPath(ctx, fileName)

	// Fast path, no lock taken.
	if thumbExists(path) {
		return s.thumbURL(ctx, fileName), pic, nil
	}

	lockCtx, cancel := context.WithTimeout(ctx, s.cfg.LockTimeout)
	defer cancel()
	if err := s.locks.Lock(lockCtx, fileName); err != nil {
		log.Warn().Str("thumb", fileName).Msg("Timed out waiting for derivative lock, serving default")
		url, derr := s.defaultOrEmpty(ctx, targetSize, showDefault, defaultType)
		return url, pic, derr
	}
	defer s.locks.Unlock(fileName)

	// Another request may have generated the file while we waited.
	if !thumbExists(path) {
		if binary == nil {
			binary = s.loadBinaryOrEmpty(ctx, pic)
		}
		if len(binary) == 0 {
			url, err := s.defaultOrEmpty(ctx, targetSize, showDefault, defaultType)
			return url, pic, err
		}

		derivative := binary
		if targetSize != 0 {
			resized, err := s.resizeToTarget(ctx, binary, targetSize)
			if err != nil {
				return "", pic, err
			}
			derivative = resized
		}

		if err := saveThumb(path, derivative); err != nil {
			return "", pic, err
		}
	}

	return s.thumbURL(ctx, fileName), pic, nil
}

// resizeToTarget decodes source bytes, scales the longest side to targetSize
// and re-encodes at the configured quality.
func (s *PictureService) resizeToTarget(ctx context.Context, data []byte, targetSize int) ([]byte, error) {
	img, _, err := s.codec.Decode(data)
	if err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	size, err := codec.CalculateDimensions(
		domain.Size{Width: bounds.Dx(), Height: bounds.Dy()},
		targetSize,
		domain.ResizeLongestSide,
	)
	if err != nil {
		return nil, err
	}

	return s.codec.Encode(s.codec.Resize(img, size), s.quality(ctx))
}

func (s *PictureService) quality(ctx context.Context) int {
	return s.settings.GetInt(ctx, domain.SettingImageQuality, codec.DefaultQuality)
}

// InsertPicture stores a new picture. Oversized mime type and SEO filename
// values are silently truncated; the canonical bytes go to whichever backend
// is active.
func (s *PictureService) InsertPicture(ctx context.Context, data []byte, mimeType, seoFilename, altAttribute, titleAttribute string, isNew bool) (*domain.Picture, error) {
	mimeType = truncate(mimeType, maxMimeTypeLength)
	seoFilename = truncate(seoFilename, maxSeoFilenameLength)

	pic, err := s.repo.InsertPicture(ctx, &domain.Picture{
		MimeType:       mimeType,
		SeoFilename:    seoFilename,
		AltAttribute:   altAttribute,
		TitleAttribute: titleAttribute,
		IsNew:          isNew,
	})
	if err != nil {
		return nil, err
	}

	if err := s.writeCanonical(ctx, pic, data); err != nil {
		return nil, err
	}

	return pic, nil
}

// InsertPictureFromUpload converts an uploaded file to WebP at the configured
// quality (capped to the maximum image size) and stores it. The SEO filename
// comes from the client filename hint, falling back to fallbackName and then
// to a generated name.
func (s *PictureService) InsertPictureFromUpload(ctx context.Context, file *multipart.FileHeader, fallbackName, virtualPath string) (*domain.Picture, error) {
	fileName := file.Filename
	if fileName == "" {
		fileName = fallbackName
	}
	// strip any client-supplied path
	fileName = filepath.Base(fileName)

	ext := strings.ToLower(filepath.Ext(fileName))
	if !extensionAllowed(ext) {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedFileType, ext)
	}

	src, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open uploaded file: %w", err)
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return nil, fmt.Errorf("failed to read uploaded file: %w", err)
	}

	converted, err := s.ValidatePicture(ctx, data)
	if err != nil {
		return nil, err
	}

	seoFilename := strings.TrimSuffix(fileName, filepath.Ext(fileName))
	if seoFilename == "" || seoFilename == "." {
		seoFilename = uuid.NewString()
	}

	pic, err := s.InsertPicture(ctx, converted, domain.MimeTypeWebP, seoFilename, "", "", true)
	if err != nil {
		return nil, err
	}

	if virtualPath != "" {
		pic.VirtualPath = virtualPath
		if err := s.repo.UpdatePicture(ctx, pic); err != nil {
			return nil, err
		}
	}

	return pic, nil
}

// UpdatePicture rewrites a picture's metadata and canonical bytes. A changed
// SEO filename invalidates all cached derivatives, since the derivative
// filename embeds it.
func (s *PictureService) UpdatePicture(ctx context.Context, pictureID int, data []byte, mimeType, seoFilename, altAttribute, titleAttribute string, isNew bool) (*domain.Picture, error) {
	mimeType = truncate(mimeType, maxMimeTypeLength)
	seoFilename = truncate(seoFilename, maxSeoFilenameLength)

	pic, err := s.repo.GetPictureByID(ctx, pictureID)
	if err != nil {
		return nil, err
	}

	if seoFilename != pic.SeoFilename {
		if err := s.deleteThumbs(pic); err != nil {
			return nil, err
		}
	}

	pic.MimeType = mimeType
	pic.SeoFilename = seoFilename
	pic.AltAttribute = altAttribute
	pic.TitleAttribute = titleAttribute
	pic.IsNew = isNew

	if err := s.repo.UpdatePicture(ctx, pic); err != nil {
		return nil, err
	}

	if err := s.writeCanonical(ctx, pic, data); err != nil {
		return nil, err
	}

	return pic, nil
}

// writeCanonical persists canonical bytes to the active backend, keeping the
// inactive side empty so exactly one backend stays authoritative.
func (s *PictureService) writeCanonical(ctx context.Context, pic *domain.Picture, data []byte) error {
	if s.StoreInDB(ctx) {
		return s.dbStore.Save(ctx, pic.ID, data, pic.MimeType)
	}

	if err := s.dbStore.Save(ctx, pic.ID, []byte{}, pic.MimeType); err != nil {
		return err
	}
	return s.fileStore.Save(ctx, pic.ID, data, pic.MimeType)
}

// SetSeoFilename renames a picture's SEO filename, reloading and rewriting
// the canonical bytes so old derivatives are invalidated.
func (s *PictureService) SetSeoFilename(ctx context.Context, pictureID int, seoFilename string) (*domain.Picture, error) {
	pic, err := s.repo.GetPictureByID(ctx, pictureID)
	if err != nil {
		return nil, err
	}

	if seoFilename == pic.SeoFilename {
		return pic, nil
	}

	binary, err := s.LoadPictureBinary(ctx, pic)
	if err != nil {
		return nil, err
	}

	return s.UpdatePicture(ctx, pic.ID, binary, pic.MimeType, seoFilename,
		pic.AltAttribute, pic.TitleAttribute, true)
}

// DeletePicture removes a picture, its canonical bytes on the active backend
// and all cached derivatives.
func (s *PictureService) DeletePicture(ctx context.Context, pic *domain.Picture) error {
	if pic == nil {
		return fmt.Errorf("picture cannot be nil")
	}

	if err := s.deleteThumbs(pic); err != nil {
		return err
	}

	if !s.StoreInDB(ctx) {
		if err := s.fileStore.Delete(ctx, pic.ID, pic.MimeType); err != nil {
			return err
		}
	}

	return s.repo.DeletePicture(ctx, pic.ID)
}

// PicturesByProduct returns a product's pictures in display order. A limit
// of zero or less returns all of them.
func (s *PictureService) PicturesByProduct(ctx context.Context, productID, limit int) ([]*domain.Picture, error) {
	return s.repo.GetPicturesByProduct(ctx, productID, limit)
}

// ValidatePicture decodes image bytes, scales them down to the configured
// maximum size when needed and re-encodes them as WebP.
func (s *PictureService) ValidatePicture(ctx context.Context, data []byte) ([]byte, error) {
	img, _, err := s.codec.Decode(data)
	if err != nil {
		return nil, err
	}

	maxSize := s.settings.GetInt(ctx, domain.SettingMaximumImageSize, defaultMaximumImageSize)
	bounds := img.Bounds()
	if bounds.Dx() > maxSize || bounds.Dy() > maxSize {
		size, err := codec.CalculateDimensions(
			domain.Size{Width: bounds.Dx(), Height: bounds.Dy()},
			maxSize,
			domain.ResizeLongestSide,
		)
		if err != nil {
			return nil, err
		}
		img = s.codec.Resize(img, size)
	}

	return s.codec.Encode(img, s.quality(ctx))
}

func extensionAllowed(ext string) bool {
	for _, allowed := range allowedUploadExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

func truncate(s string, max int) string {
	if len(s) > max {
		return s[:max]
	}
	return s
}
