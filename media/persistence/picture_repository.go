package persistence

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mediakit/picserve/media/domain"
	"github.com/mediakit/picserve/shared/db"
)

var _ domain.PictureRepository = (*SQLitePictureRepository)(nil)

// SQLitePictureRepository implements domain.PictureRepository using SQL
// database (SQLite)
type SQLitePictureRepository struct {
	db *sql.DB
}

// NewPictureRepository creates a new SQLitePictureRepository from a standard
// sql.DB
func NewPictureRepository(sqlDB *sql.DB) *SQLitePictureRepository {
	return &SQLitePictureRepository{
		db: sqlDB,
	}
}

const insertPictureQuery = `
	INSERT INTO pictures (mime_type, seo_filename, alt_attribute, title_attribute, is_new, virtual_path)
	VALUES (?, ?, ?, ?, ?, ?)
`

// InsertPicture stores the metadata row together with an empty binary
// placeholder, so every picture has exactly one binary row from birth.
func (r *SQLitePictureRepository) InsertPicture(ctx context.Context, p *domain.Picture) (*domain.Picture, error) {
	if p == nil {
		return nil, fmt.Errorf("picture cannot be nil")
	}

	inserted := *p
	err := db.RunInTransaction(ctx, r.db, func(txCtx context.Context) error {
		executor := db.GetExecutor(txCtx, r.db)
		res, err := executor.ExecContext(txCtx, insertPictureQuery,
			p.MimeType,
			p.SeoFilename,
			p.AltAttribute,
			p.TitleAttribute,
			p.IsNew,
			p.VirtualPath,
		)
		if err != nil {
			return fmt.Errorf("failed to insert picture: %w", err)
		}

		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get inserted picture id: %w", err)
		}
		inserted.ID = int(id)

		_, err = executor.ExecContext(txCtx, upsertBinaryQuery, inserted.ID, []byte{})
		if err != nil {
			return fmt.Errorf("failed to insert picture binary placeholder: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return &inserted, nil
}

const updatePictureQuery = `
	UPDATE pictures
	SET mime_type = ?, seo_filename = ?, alt_attribute = ?, title_attribute = ?, is_new = ?, virtual_path = ?
	WHERE id = ?
`

// UpdatePicture rewrites all mutable fields of an existing picture row
func (r *SQLitePictureRepository) UpdatePicture(ctx context.Context, p *domain.Picture) error {
	if p == nil {
		return fmt.Errorf("picture cannot be nil")
	}

	executor := db.GetExecutor(ctx, r.db)
	res, err := executor.ExecContext(ctx, updatePictureQuery,
		p.MimeType,
		p.SeoFilename,
		p.AltAttribute,
		p.TitleAttribute,
		p.IsNew,
		p.VirtualPath,
		p.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update picture %d: %w", p.ID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update of picture %d: %w", p.ID, err)
	}
	if affected == 0 {
		return fmt.Errorf("picture %d: %w", p.ID, domain.ErrPictureNotFound)
	}

	return nil
}

const getPictureQuery = `
	SELECT id, mime_type, seo_filename, alt_attribute, title_attribute, is_new, virtual_path
	FROM pictures
	WHERE id = ?
`

// GetPictureByID retrieves a single picture by id
func (r *SQLitePictureRepository) GetPictureByID(ctx context.Context, id int) (*domain.Picture, error) {
	var row pictureRow
	err := r.db.QueryRowContext(ctx, getPictureQuery, id).Scan(
		&row.ID,
		&row.MimeType,
		&row.SeoFilename,
		&row.AltAttribute,
		&row.TitleAttribute,
		&row.IsNew,
		&row.VirtualPath,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("picture %d: %w", id, domain.ErrPictureNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get picture %d: %w", id, err)
	}

	return row.toDomain(), nil
}

const deletePictureQuery = `
	DELETE FROM pictures WHERE id = ?
`

const deleteBinaryQuery = `
	DELETE FROM picture_binaries WHERE picture_id = ?
`

const deleteProductPicturesQuery = `
	DELETE FROM product_pictures WHERE picture_id = ?
`

// DeletePicture removes the metadata row, its binary row and any product
// mappings within a transaction
func (r *SQLitePictureRepository) DeletePicture(ctx context.Context, id int) error {
	return db.RunInTransaction(ctx, r.db, func(txCtx context.Context) error {
		executor := db.GetExecutor(txCtx, r.db)

		if _, err := executor.ExecContext(txCtx, deleteBinaryQuery, id); err != nil {
			return fmt.Errorf("failed to delete picture binary %d: %w", id, err)
		}

		if _, err := executor.ExecContext(txCtx, deleteProductPicturesQuery, id); err != nil {
			return fmt.Errorf("failed to delete product mappings for picture %d: %w", id, err)
		}

		res, err := executor.ExecContext(txCtx, deletePictureQuery, id)
		if err != nil {
			return fmt.Errorf("failed to delete picture %d: %w", id, err)
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to check deletion of picture %d: %w", id, err)
		}
		if affected == 0 {
			return fmt.Errorf("picture %d: %w", id, domain.ErrPictureNotFound)
		}

		return nil
	})
}

const getPicturesPageQuery = `
	SELECT id, mime_type, seo_filename, alt_attribute, title_attribute, is_new, virtual_path
	FROM pictures
	WHERE (? = '' OR virtual_path = ? OR virtual_path LIKE ? || '%')
	ORDER BY id DESC
	LIMIT ? OFFSET ?
`

// GetPicturesPage returns one page of pictures ordered by id descending.
// The ordering is stable across pages, which the backend migration relies on.
func (r *SQLitePictureRepository) GetPicturesPage(ctx context.Context, virtualPath string, pageIndex, pageSize int) ([]*domain.Picture, error) {
	if pageIndex < 0 {
		pageIndex = 0
	}
	if pageSize <= 0 {
		pageSize = 50
	}

	rows, err := r.db.QueryContext(ctx, getPicturesPageQuery,
		virtualPath, virtualPath, virtualPath,
		pageSize, pageIndex*pageSize,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list pictures: %w", err)
	}
	defer rows.Close()

	return scanPictures(rows)
}

const getPicturesByProductQuery = `
	SELECT p.id, p.mime_type, p.seo_filename, p.alt_attribute, p.title_attribute, p.is_new, p.virtual_path
	FROM pictures p
	JOIN product_pictures pp ON pp.picture_id = p.id
	WHERE pp.product_id = ?
	ORDER BY pp.display_order, pp.id
`

// GetPicturesByProduct returns pictures for a product ordered by display
// order then mapping id. A limit <= 0 means unlimited.
func (r *SQLitePictureRepository) GetPicturesByProduct(ctx context.Context, productID, limit int) ([]*domain.Picture, error) {
	if productID == 0 {
		return []*domain.Picture{}, nil
	}

	query := getPicturesByProductQuery
	args := []any{productID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list pictures for product %d: %w", productID, err)
	}
	defer rows.Close()

	return scanPictures(rows)
}

const listPicturesNotMimeTypeQuery = `
	SELECT id, mime_type, seo_filename, alt_attribute, title_attribute, is_new, virtual_path
	FROM pictures
	WHERE LOWER(mime_type) != LOWER(?)
	ORDER BY id
`

// ListPicturesNotMimeType returns pictures whose mime type differs from the
// given one
func (r *SQLitePictureRepository) ListPicturesNotMimeType(ctx context.Context, mimeType string) ([]*domain.Picture, error) {
	rows, err := r.db.QueryContext(ctx, listPicturesNotMimeTypeQuery, mimeType)
	if err != nil {
		return nil, fmt.Errorf("failed to list pictures by mime type: %w", err)
	}
	defer rows.Close()

	return scanPictures(rows)
}

const getBinaryQuery = `
	SELECT picture_id, binary_data
	FROM picture_binaries
	WHERE picture_id = ?
`

// GetBinaryByPictureID returns the binary row for a picture, or nil when no
// row exists
func (r *SQLitePictureRepository) GetBinaryByPictureID(ctx context.Context, pictureID int) (*domain.PictureBinary, error) {
	binary := &domain.PictureBinary{}
	err := r.db.QueryRowContext(ctx, getBinaryQuery, pictureID).Scan(
		&binary.PictureID,
		&binary.BinaryData,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get picture binary %d: %w", pictureID, err)
	}

	return binary, nil
}

const upsertBinaryQuery = `
	INSERT INTO picture_binaries (picture_id, binary_data)
	VALUES (?, ?)
	ON CONFLICT(picture_id) DO UPDATE SET
		binary_data = excluded.binary_data
`

// UpsertBinary inserts or replaces the binary row for a picture
func (r *SQLitePictureRepository) UpsertBinary(ctx context.Context, b *domain.PictureBinary) error {
	if b == nil {
		return fmt.Errorf("picture binary cannot be nil")
	}

	executor := db.GetExecutor(ctx, r.db)
	_, err := executor.ExecContext(ctx, upsertBinaryQuery, b.PictureID, b.BinaryData)
	if err != nil {
		return fmt.Errorf("failed to upsert picture binary %d: %w", b.PictureID, err)
	}

	return nil
}

const insertProductPictureQuery = `
	INSERT INTO product_pictures (product_id, picture_id, display_order)
	VALUES (?, ?, ?)
`

// InsertProductPicture links a picture to a product
func (r *SQLitePictureRepository) InsertProductPicture(ctx context.Context, pp *domain.ProductPicture) error {
	if pp == nil {
		return fmt.Errorf("product picture cannot be nil")
	}

	executor := db.GetExecutor(ctx, r.db)
	_, err := executor.ExecContext(ctx, insertProductPictureQuery,
		pp.ProductID,
		pp.PictureID,
		pp.DisplayOrder,
	)
	if err != nil {
		return fmt.Errorf("failed to insert product picture mapping: %w", err)
	}

	return nil
}

func scanPictures(rows *sql.Rows) ([]*domain.Picture, error) {
	pictures := make([]*domain.Picture, 0)
	for rows.Next() {
		var row pictureRow
		err := rows.Scan(
			&row.ID,
			&row.MimeType,
			&row.SeoFilename,
			&row.AltAttribute,
			&row.TitleAttribute,
			&row.IsNew,
			&row.VirtualPath,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan picture row: %w", err)
		}
		pictures = append(pictures, row.toDomain())
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating picture rows: %w", err)
	}

	return pictures, nil
}

// pictureRow is a private struct used to scan database rows
type pictureRow struct {
	ID             int            `db:"id"`
	MimeType       string         `db:"mime_type"`
	SeoFilename    string         `db:"seo_filename"`
	AltAttribute   sql.NullString `db:"alt_attribute"`
	TitleAttribute sql.NullString `db:"title_attribute"`
	IsNew          bool           `db:"is_new"`
	VirtualPath    string         `db:"virtual_path"`
}

// toDomain converts a pictureRow to a domain.Picture, handling nullable text
func (pr *pictureRow) toDomain() *domain.Picture {
	pic := &domain.Picture{
		ID:          pr.ID,
		MimeType:    pr.MimeType,
		SeoFilename: pr.SeoFilename,
		IsNew:       pr.IsNew,
		VirtualPath: pr.VirtualPath,
	}

	if pr.AltAttribute.Valid {
		pic.AltAttribute = pr.AltAttribute.String
	}
	if pr.TitleAttribute.Valid {
		pic.TitleAttribute = pr.TitleAttribute.String
	}

	return pic
}
