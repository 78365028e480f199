package application

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/mediakit/picserve/media/codec"
	"github.com/mediakit/picserve/media/domain"
)

// pngTestBytes renders a solid-color PNG of the given size.
func pngTestBytes(t *testing.T, width, height int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: 20, G: 180, B: 90, A: 255})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("Failed to encode test PNG: %v", err)
	}

	return buf.Bytes()
}

// assertExactlyOneBackend verifies that canonical bytes live on exactly one
// side for a picture.
func assertExactlyOneBackend(t *testing.T, env *testEnv, pic *domain.Picture, wantDB bool) {
	t.Helper()
	ctx := context.Background()

	binary, err := env.repo.GetBinaryByPictureID(ctx, pic.ID)
	if err != nil {
		t.Fatalf("Failed to get binary for picture %d: %v", pic.ID, err)
	}
	dbHasBytes := binary != nil && len(binary.BinaryData) > 0

	ext := domain.FileExtensionFromMimeType(pic.MimeType)
	filePath := filepath.Join(env.imagesDir, fmt.Sprintf("%07d_0.%s", pic.ID, ext))
	_, statErr := os.Stat(filePath)
	fileHasBytes := statErr == nil

	if dbHasBytes == fileHasBytes {
		t.Fatalf("Picture %d: db=%v file=%v, want exactly one backend populated", pic.ID, dbHasBytes, fileHasBytes)
	}
	if dbHasBytes != wantDB {
		t.Errorf("Picture %d bytes on db=%v, want db=%v", pic.ID, dbHasBytes, wantDB)
	}
}

func TestSetStoreInDB_RoundTrip(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	var pics []*domain.Picture
	for i := 0; i < 3; i++ {
		pic, err := env.service.InsertPicture(ctx, jpegBytes(t, 40, 30), "image/jpeg", fmt.Sprintf("pic%d", i), "", "", false)
		if err != nil {
			t.Fatalf("Failed to insert picture: %v", err)
		}
		pics = append(pics, pic)
	}

	// database is authoritative by default
	for _, pic := range pics {
		assertExactlyOneBackend(t, env, pic, true)
	}

	result, err := env.service.SetStoreInDB(ctx, false)
	if err != nil {
		t.Fatalf("Failed to switch to file storage: %v", err)
	}
	if result.Migrated != 3 {
		t.Errorf("Migrated = %d, want 3", result.Migrated)
	}
	if len(result.Failed) != 0 {
		t.Errorf("Failed = %d, want 0", len(result.Failed))
	}
	if env.service.StoreInDB(ctx) {
		t.Error("StoreInDB still true after switching to files")
	}

	for _, pic := range pics {
		assertExactlyOneBackend(t, env, pic, false)
	}

	// migrated pictures are flagged for derivative invalidation
	reloaded, err := env.repo.GetPictureByID(ctx, pics[0].ID)
	if err != nil {
		t.Fatalf("Failed to reload picture: %v", err)
	}
	if !reloaded.IsNew {
		t.Error("Migrated picture not flagged as new")
	}

	// and back again
	result, err = env.service.SetStoreInDB(ctx, true)
	if err != nil {
		t.Fatalf("Failed to switch back to db storage: %v", err)
	}
	if result.Migrated != 3 {
		t.Errorf("Migrated = %d, want 3", result.Migrated)
	}

	for _, pic := range pics {
		assertExactlyOneBackend(t, env, pic, true)
	}
}

func TestSetStoreInDB_NoChange(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.service.InsertPicture(ctx, jpegBytes(t, 10, 10), "image/jpeg", "stay", "", "", false); err != nil {
		t.Fatalf("Failed to insert picture: %v", err)
	}

	result, err := env.service.SetStoreInDB(ctx, true)
	if err != nil {
		t.Fatalf("SetStoreInDB returned error: %v", err)
	}
	if result.Migrated != 0 || result.Skipped != 0 || len(result.Failed) != 0 {
		t.Errorf("Same-mode switch touched pictures: %+v", result)
	}
}

func TestSetStoreInDB_SkipsVirtualPath(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	pic, err := env.service.InsertPicture(ctx, jpegBytes(t, 10, 10), "image/jpeg", "external", "", "", false)
	if err != nil {
		t.Fatalf("Failed to insert picture: %v", err)
	}
	pic.VirtualPath = "content/brand"
	if err := env.repo.UpdatePicture(ctx, pic); err != nil {
		t.Fatalf("Failed to set virtual path: %v", err)
	}

	result, err := env.service.SetStoreInDB(ctx, false)
	if err != nil {
		t.Fatalf("Failed to switch to file storage: %v", err)
	}
	if result.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1", result.Skipped)
	}
	if result.Migrated != 0 {
		t.Errorf("Migrated = %d, want 0", result.Migrated)
	}

	filePath := filepath.Join(env.imagesDir, fmt.Sprintf("%07d_0.jpeg", pic.ID))
	if _, err := os.Stat(filePath); !os.IsNotExist(err) {
		t.Error("Virtual-path picture was written to the filesystem")
	}
}

func TestApplyMutation_DatabaseRows(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	pic, err := env.service.InsertPicture(ctx, pngTestBytes(t, 30, 20), "image/png", "legacy", "", "", false)
	if err != nil {
		t.Fatalf("Failed to insert picture: %v", err)
	}

	// a loose legacy file in the images root
	if err := os.MkdirAll(env.imagesDir, 0755); err != nil {
		t.Fatalf("Failed to create images dir: %v", err)
	}
	loosePath := filepath.Join(env.imagesDir, "banner.png")
	if err := os.WriteFile(loosePath, pngTestBytes(t, 12, 12), 0644); err != nil {
		t.Fatalf("Failed to write loose file: %v", err)
	}

	result, err := env.service.ApplyMutation(ctx)
	if err != nil {
		t.Fatalf("Failed to apply mutation: %v", err)
	}

	if result.FilesConverted != 1 {
		t.Errorf("FilesConverted = %d, want 1", result.FilesConverted)
	}
	if result.RowsConverted != 1 {
		t.Errorf("RowsConverted = %d, want 1", result.RowsConverted)
	}
	if len(result.FailedFiles) != 0 || len(result.FailedRows) != 0 {
		t.Errorf("Mutation reported failures: %+v", result)
	}

	if _, err := os.Stat(loosePath); !os.IsNotExist(err) {
		t.Error("Original loose file survived conversion")
	}
	if _, err := os.Stat(filepath.Join(env.imagesDir, "banner.webp")); err != nil {
		t.Errorf("Converted loose file missing: %v", err)
	}

	reloaded, err := env.repo.GetPictureByID(ctx, pic.ID)
	if err != nil {
		t.Fatalf("Failed to reload picture: %v", err)
	}
	if reloaded.MimeType != domain.MimeTypeWebP {
		t.Errorf("MimeType = %q, want %q", reloaded.MimeType, domain.MimeTypeWebP)
	}

	binary, err := env.repo.GetBinaryByPictureID(ctx, pic.ID)
	if err != nil {
		t.Fatalf("Failed to get binary: %v", err)
	}
	if _, format, err := codec.NewWebP().Decode(binary.BinaryData); err != nil || format != "webp" {
		t.Errorf("Converted binary format = %q (err %v), want webp", format, err)
	}

	// a second run finds nothing left to convert
	result, err = env.service.ApplyMutation(ctx)
	if err != nil {
		t.Fatalf("Failed to re-apply mutation: %v", err)
	}
	if result.FilesConverted != 0 || result.RowsConverted != 0 {
		t.Errorf("Second mutation run converted again: %+v", result)
	}
}

func TestApplyMutation_FileBackedPictures(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// file storage from the start, no migration involved
	if err := env.settings.Set(ctx, domain.SettingStoreInDB, "false"); err != nil {
		t.Fatalf("Failed to set storage mode: %v", err)
	}

	pic, err := env.service.InsertPicture(ctx, pngTestBytes(t, 30, 20), "image/png", "ondisk", "", "", false)
	if err != nil {
		t.Fatalf("Failed to insert picture: %v", err)
	}

	result, err := env.service.ApplyMutation(ctx)
	if err != nil {
		t.Fatalf("Failed to apply mutation: %v", err)
	}
	if result.FilesConverted != 1 {
		t.Errorf("FilesConverted = %d, want 1", result.FilesConverted)
	}
	if result.RowsConverted != 1 {
		t.Errorf("RowsConverted = %d, want 1", result.RowsConverted)
	}

	oldPath := filepath.Join(env.imagesDir, fmt.Sprintf("%07d_0.png", pic.ID))
	if _, err := os.Stat(oldPath); !os.IsNotExist(err) {
		t.Error("Legacy canonical file survived conversion")
	}

	reloaded, err := env.repo.GetPictureByID(ctx, pic.ID)
	if err != nil {
		t.Fatalf("Failed to reload picture: %v", err)
	}
	if reloaded.MimeType != domain.MimeTypeWebP {
		t.Errorf("MimeType = %q, want %q", reloaded.MimeType, domain.MimeTypeWebP)
	}

	// the converted file is loadable under the updated mime type
	data, err := env.service.LoadPictureBinary(ctx, reloaded)
	if err != nil {
		t.Fatalf("Failed to load converted picture: %v", err)
	}
	if _, format, err := codec.NewWebP().Decode(data); err != nil || format != "webp" {
		t.Errorf("Converted file format = %q (err %v), want webp", format, err)
	}
}
