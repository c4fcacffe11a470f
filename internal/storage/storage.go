// internal/storage/storage.go
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"editorimages/internal/models"
)

type Storage struct {
	pool *pgxpool.Pool
	db   *sql.DB // For migrations
}

func NewStorage(dsn string) (*Storage, error) {
	const op = "storage.NewStorage"

	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: %v", op, err)
	}

	db := stdlib.OpenDBFromPool(pool)
	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: %v", op, err)
	}

	return &Storage{pool: pool, db: db}, nil
}

func (s *Storage) Close() {
	s.db.Close()
	s.pool.Close()
}

// Pool exposes the underlying connection pool so the content catalog can
// share it.
func (s *Storage) Pool() *pgxpool.Pool {
	return s.pool
}

func (s *Storage) SaveImage(ctx context.Context, img *models.EditorImage) error {
	const op = "storage.SaveImage"

	err := s.pool.QueryRow(ctx,
		`INSERT INTO editor_images (file_path, url, thumbnail_path, status, uploaded_by)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, uploaded_at`,
		img.FilePath, img.URL, img.ThumbnailPath, img.Status, img.UploadedBy,
	).Scan(&img.ID, &img.UploadedAt)
	if err != nil {
		return fmt.Errorf("%s: %v", op, err)
	}
	return nil
}

func (s *Storage) GetImage(ctx context.Context, id int64) (*models.EditorImage, error) {
	const op = "storage.GetImage"

	var img models.EditorImage
	err := s.pool.QueryRow(ctx,
		`SELECT id, file_path, url, thumbnail_path, status, uploaded_by, uploaded_at
		 FROM editor_images WHERE id = $1`,
		id).Scan(&img.ID, &img.FilePath, &img.URL, &img.ThumbnailPath, &img.Status,
		&img.UploadedBy, &img.UploadedAt)
	if err != nil {
		return nil, fmt.Errorf("%s: %v", op, err)
	}
	return &img, nil
}

// ListImages returns every uploaded image, newest first.
func (s *Storage) ListImages(ctx context.Context) ([]models.EditorImage, error) {
	const op = "storage.ListImages"

	rows, err := s.pool.Query(ctx,
		`SELECT id, file_path, url, thumbnail_path, status, uploaded_by, uploaded_at
		 FROM editor_images ORDER BY uploaded_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("%s: %v", op, err)
	}
	defer rows.Close()

	var images []models.EditorImage
	for rows.Next() {
		var img models.EditorImage
		if err := rows.Scan(&img.ID, &img.FilePath, &img.URL, &img.ThumbnailPath,
			&img.Status, &img.UploadedBy, &img.UploadedAt); err != nil {
			return nil, fmt.Errorf("%s: %v", op, err)
		}
		images = append(images, img)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %v", op, err)
	}
	return images, nil
}

func (s *Storage) CountImages(ctx context.Context) (int, error) {
	const op = "storage.CountImages"

	var n int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM editor_images`).Scan(&n); err != nil {
		return 0, fmt.Errorf("%s: %v", op, err)
	}
	return n, nil
}

func (s *Storage) UpdateImage(ctx context.Context, img *models.EditorImage) error {
	const op = "storage.UpdateImage"

	_, err := s.pool.Exec(ctx,
		`UPDATE editor_images SET thumbnail_path = $2, status = $3 WHERE id = $1`,
		img.ID, img.ThumbnailPath, img.Status)
	if err != nil {
		return fmt.Errorf("%s: %v", op, err)
	}
	return nil
}

// DeleteImage removes the database record. Deleting an id that is already
// gone is a no-op, so two overlapping cleanup runs cannot trip each other.
func (s *Storage) DeleteImage(ctx context.Context, id int64) error {
	const op = "storage.DeleteImage"

	_, err := s.pool.Exec(ctx, `DELETE FROM editor_images WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("%s: %v", op, err)
	}
	return nil
}

// DeleteImageFile removes the stored file and thumbnail for an image. A
// missing file is reported back so callers can decide how loudly to warn.
func (s *Storage) DeleteImageFile(ctx context.Context, img models.EditorImage) error {
	const op = "storage.DeleteImageFile"

	if img.ThumbnailPath != "" {
		os.Remove(img.ThumbnailPath)
	}
	if err := os.Remove(img.FilePath); err != nil {
		return fmt.Errorf("%s: %v", op, err)
	}
	return nil
}
