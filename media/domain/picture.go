package domain

import (
	"context"
)

// Picture represents the metadata for a stored image.
// The canonical image bytes live either in the picture_binaries table or on
// the filesystem, depending on the active storage mode; a Picture row always
// has exactly one associated PictureBinary row (possibly zero-length when the
// bytes live on disk).
type Picture struct {
	ID             int
	MimeType       string
	SeoFilename    string
	AltAttribute   string
	TitleAttribute string
	// IsNew is true until the binary has been materialized through the URL
	// resolution path at least once.
	IsNew       bool
	VirtualPath string
}

// PictureBinary holds the canonical image bytes for a picture when the
// database backend is active. In file mode BinaryData is an empty placeholder.
type PictureBinary struct {
	PictureID  int
	BinaryData []byte
}

// ProductPicture links a picture to a product with an explicit display order.
type ProductPicture struct {
	ID           int
	ProductID    int
	PictureID    int
	DisplayOrder int
}

type PictureRepository interface {
	// InsertPicture stores the metadata row and returns the picture with its
	// assigned id.
	InsertPicture(ctx context.Context, p *Picture) (*Picture, error)

	// UpdatePicture rewrites all mutable fields of an existing row.
	UpdatePicture(ctx context.Context, p *Picture) error

	// GetPictureByID returns ErrPictureNotFound for an unknown id.
	GetPictureByID(ctx context.Context, id int) (*Picture, error)

	// DeletePicture removes the metadata row and its binary row.
	DeletePicture(ctx context.Context, id int) error

	// GetPicturesPage returns one page of pictures ordered by id descending.
	// An empty virtualPath matches all pictures.
	GetPicturesPage(ctx context.Context, virtualPath string, pageIndex, pageSize int) ([]*Picture, error)

	// GetPicturesByProduct returns pictures for a product ordered by display
	// order then id. A limit <= 0 means unlimited.
	GetPicturesByProduct(ctx context.Context, productID, limit int) ([]*Picture, error)

	// ListPicturesNotMimeType returns pictures whose mime type differs from
	// the given one. Used by the format mutation sweep.
	ListPicturesNotMimeType(ctx context.Context, mimeType string) ([]*Picture, error)

	// GetBinaryByPictureID returns the binary row, or nil when none exists.
	GetBinaryByPictureID(ctx context.Context, pictureID int) (*PictureBinary, error)

	// UpsertBinary inserts or replaces the binary row for a picture.
	UpsertBinary(ctx context.Context, b *PictureBinary) error

	// InsertProductPicture links a picture to a product.
	InsertProductPicture(ctx context.Context, pp *ProductPicture) error
}
