package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"slideflow/internal/models"
)

var ErrVideoNotFound = errors.New("source video not found")

type VideoRepository struct {
	pool *pgxpool.Pool
}

func NewVideoRepository(pool *pgxpool.Pool) *VideoRepository {
	return &VideoRepository{pool: pool}
}

func (r *VideoRepository) Create(ctx context.Context, video models.SourceVideo) error {
	const query = `
		INSERT INTO source_videos (
			id, share_url, author_handle, caption, cover_url, original_images, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, NOW())
	`
	_, err := r.pool.Exec(ctx, query,
		video.ID,
		video.ShareURL,
		video.AuthorHandle,
		video.Caption,
		video.CoverURL,
		video.OriginalImages,
	)
	return err
}

func (r *VideoRepository) GetByID(ctx context.Context, id string) (models.SourceVideo, error) {
	const query = `
		SELECT id, share_url, author_handle, caption, cover_url, original_images, created_at
		FROM source_videos WHERE id = $1
	`
	row := r.pool.QueryRow(ctx, query, id)
	var video models.SourceVideo
	if err := row.Scan(
		&video.ID,
		&video.ShareURL,
		&video.AuthorHandle,
		&video.Caption,
		&video.CoverURL,
		&video.OriginalImages,
		&video.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.SourceVideo{}, ErrVideoNotFound
		}
		return models.SourceVideo{}, err
	}
	return video, nil
}

func (r *VideoRepository) List(ctx context.Context, limit, offset int) ([]models.SourceVideo, error) {
	const query = `
		SELECT id, share_url, author_handle, caption, cover_url, original_images, created_at
		FROM source_videos
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var videos []models.SourceVideo
	for rows.Next() {
		var video models.SourceVideo
		if err := rows.Scan(
			&video.ID,
			&video.ShareURL,
			&video.AuthorHandle,
			&video.Caption,
			&video.CoverURL,
			&video.OriginalImages,
			&video.CreatedAt,
		); err != nil {
			return nil, err
		}
		videos = append(videos, video)
	}
	return videos, rows.Err()
}
