package postgres

import (
	"context"
	"fmt"

	"github.com/JonMunkholm/PostImport/internal/core"
	"github.com/jackc/pgx/v5/pgtype"
)

// Assets is a core.AssetStore over the assets table. Bytes go to blobs.
type Assets struct {
	db    DBTX
	blobs core.BlobStore
}

func NewAssets(db DBTX, blobs core.BlobStore) *Assets {
	return &Assets{db: db, blobs: blobs}
}

// FindByDerivedName returns the oldest asset with the name.
func (s *Assets) FindByDerivedName(ctx context.Context, name string) (*core.Asset, error) {
	var a core.Asset
	err := s.db.QueryRow(ctx,
		`SELECT id, derived_name, guid, filename, path, mime_type, size_bytes, width, height
		FROM assets WHERE derived_name = $1 ORDER BY id LIMIT 1`, name,
	).Scan(&a.ID, &a.DerivedName, &a.GUID, &a.Filename, &a.Path, &a.MimeType, &a.Size, &a.Width, &a.Height)
	if err != nil {
		return nil, notFound(err)
	}
	return &a, nil
}

func (s *Assets) Store(ctx context.Context, in core.NewAsset) (*core.Asset, error) {
	path, err := s.blobs.Put(ctx, in.Filename, in.Data)
	if err != nil {
		return nil, err
	}

	a := core.Asset{
		DerivedName: in.DerivedName,
		GUID:        in.GUID,
		Filename:    in.Filename,
		Path:        path,
		MimeType:    in.MimeType,
		Size:        int64(len(in.Data)),
	}
	postID := pgtype.Int8{Int64: in.RecordID, Valid: in.RecordID != 0}

	err = s.db.QueryRow(ctx,
		`INSERT INTO assets (derived_name, guid, filename, path, mime_type, size_bytes, post_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		a.DerivedName, a.GUID, a.Filename, a.Path, a.MimeType, a.Size, postID,
	).Scan(&a.ID)
	if err != nil {
		return nil, fmt.Errorf("insert asset %s: %w", a.Filename, err)
	}
	return &a, nil
}

func (s *Assets) GenerateMetadata(ctx context.Context, assetID int64) error {
	var path string
	if err := s.db.QueryRow(ctx, `SELECT path FROM assets WHERE id = $1`, assetID).Scan(&path); err != nil {
		return notFound(err)
	}

	w, h, err := s.blobs.Dimensions(ctx, path)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(ctx, `UPDATE assets SET width = $2, height = $3 WHERE id = $1`, assetID, w, h)
	return err
}
