package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/mediakit/picserve/media/domain"
	"github.com/mediakit/picserve/media/persistence"
	"github.com/mediakit/picserve/shared/db/sqlite"
)

func setupDBBackend(t *testing.T) (*DB, domain.PictureRepository) {
	t.Helper()

	database := sqlite.NewSQLiteDB(&sqlite.SQLiteConfig{
		Path: filepath.Join(t.TempDir(), "test.db"),
	})
	if err := database.Connect(); err != nil {
		t.Fatalf("Failed to connect to database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	repo := persistence.NewPictureRepository(database.DB())
	return NewDB(repo), repo
}

func TestDB_SaveLoadDelete(t *testing.T) {
	backend, repo := setupDBBackend(t)
	ctx := context.Background()

	pic, err := repo.InsertPicture(ctx, &domain.Picture{MimeType: "image/webp"})
	if err != nil {
		t.Fatalf("Failed to insert picture: %v", err)
	}

	data := []byte("canonical bytes")
	if err := backend.Save(ctx, pic.ID, data, "image/webp"); err != nil {
		t.Fatalf("Failed to save: %v", err)
	}

	loaded, err := backend.Load(ctx, pic.ID, "image/webp")
	if err != nil {
		t.Fatalf("Failed to load: %v", err)
	}
	if string(loaded) != string(data) {
		t.Errorf("Loaded %q, want %q", loaded, data)
	}

	if err := backend.Delete(ctx, pic.ID, "image/webp"); err != nil {
		t.Fatalf("Failed to delete: %v", err)
	}

	// delete zeroes the row instead of removing it
	binary, err := repo.GetBinaryByPictureID(ctx, pic.ID)
	if err != nil {
		t.Fatalf("Failed to get binary: %v", err)
	}
	if binary == nil {
		t.Fatal("Binary row removed by delete, want zeroed row")
	}
	if len(binary.BinaryData) != 0 {
		t.Errorf("Binary has %d bytes after delete, want 0", len(binary.BinaryData))
	}
}

func TestDB_LoadMissingYieldsEmpty(t *testing.T) {
	backend, _ := setupDBBackend(t)

	data, err := backend.Load(context.Background(), 999, "image/webp")
	if err != nil {
		t.Fatalf("Load of absent picture returned error: %v", err)
	}
	if len(data) != 0 {
		t.Errorf("Load of absent picture returned %d bytes, want 0", len(data))
	}
}
