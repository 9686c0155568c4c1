package postgres

import (
	"context"
	"fmt"

	"github.com/JonMunkholm/PostImport/internal/core"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const recordColumns = `id, title, content, post_type, status, post_date, featured_asset_id, gallery_asset_ids`

// Records is a core.RecordStore over the posts table.
type Records struct {
	db DBTX
}

func NewRecords(db DBTX) *Records {
	return &Records{db: db}
}

func (s *Records) FindByID(ctx context.Context, id int64) (*core.Record, error) {
	row := s.db.QueryRow(ctx, `SELECT `+recordColumns+` FROM posts WHERE id = $1`, id)
	return scanRecord(row)
}

// FindByTitleAndType returns the lowest-id match.
func (s *Records) FindByTitleAndType(ctx context.Context, title, recordType string) (*core.Record, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+recordColumns+` FROM posts WHERE title = $1 AND post_type = $2 ORDER BY id LIMIT 1`,
		title, recordType)
	return scanRecord(row)
}

func (s *Records) Upsert(ctx context.Context, rec *core.Record) (int64, error) {
	featured := pgtype.Int8{Int64: rec.FeaturedAssetID, Valid: rec.FeaturedAssetID != 0}
	gallery := rec.GalleryAssetIDs
	if gallery == nil {
		gallery = []int64{}
	}

	if rec.ID == 0 {
		var id int64
		err := s.db.QueryRow(ctx,
			`INSERT INTO posts (title, content, post_type, status, post_date, featured_asset_id, gallery_asset_ids)
			VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
			rec.Title, rec.Content, rec.Type, rec.Status, rec.Date, featured, gallery,
		).Scan(&id)
		if err != nil {
			return 0, fmt.Errorf("insert post: %w", err)
		}
		return id, nil
	}

	tag, err := s.db.Exec(ctx,
		`UPDATE posts SET title = $2, content = $3, post_type = $4, status = $5, post_date = $6,
			featured_asset_id = $7, gallery_asset_ids = $8, updated_at = now()
		WHERE id = $1`,
		rec.ID, rec.Title, rec.Content, rec.Type, rec.Status, rec.Date, featured, gallery)
	if err != nil {
		return 0, fmt.Errorf("update post %d: %w", rec.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return 0, core.ErrNotFound
	}
	return rec.ID, nil
}

func scanRecord(row pgx.Row) (*core.Record, error) {
	var (
		rec      core.Record
		featured pgtype.Int8
	)
	err := row.Scan(&rec.ID, &rec.Title, &rec.Content, &rec.Type, &rec.Status, &rec.Date,
		&featured, &rec.GalleryAssetIDs)
	if err != nil {
		return nil, notFound(err)
	}
	if featured.Valid {
		rec.FeaturedAssetID = featured.Int64
	}
	if len(rec.GalleryAssetIDs) == 0 {
		rec.GalleryAssetIDs = nil
	}
	rec.Date = rec.Date.UTC()
	return &rec, nil
}
