// Package storage holds the two canonical-byte backends. Exactly one backend
// is authoritative for a picture at any time; the picture service selects the
// active one from the storage mode setting at call time.
package storage

import "context"

// Backend persists and retrieves the canonical image bytes for a picture id.
type Backend interface {
	// Load returns the canonical bytes. A missing entry yields empty bytes
	// from the DB variant and an error from the file variant.
	Load(ctx context.Context, pictureID int, mimeType string) ([]byte, error)

	// Save writes the canonical bytes, creating any needed directory
	// structure for the file variant.
	Save(ctx context.Context, pictureID int, data []byte, mimeType string) error

	// Delete removes the canonical bytes. Deleting an absent entry is not an
	// error.
	Delete(ctx context.Context, pictureID int, mimeType string) error
}
