package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"slideflow/internal/models"
)

var ErrImageNotFound = errors.New("generated image not found")

const imageColumns = `
	id, set_id, slide_index, image_url, prompt_override, overlay_url,
	status, error_message, created_at
`

type ImageRepository struct {
	pool *pgxpool.Pool
}

func NewImageRepository(pool *pgxpool.Pool) *ImageRepository {
	return &ImageRepository{pool: pool}
}

func (r *ImageRepository) CreateBatch(ctx context.Context, images []models.GeneratedImage) error {
	const query = `
		INSERT INTO generated_images (
			id, set_id, slide_index, image_url, prompt_override, overlay_url,
			status, error_message, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
	`
	batch := &pgx.Batch{}
	for _, image := range images {
		batch.Queue(query,
			image.ID,
			image.SetID,
			image.SlideIndex,
			image.ImageURL,
			image.PromptOverride,
			image.OverlayURL,
			image.Status,
			image.ErrorMessage,
		)
	}
	return r.pool.SendBatch(ctx, batch).Close()
}

func (r *ImageRepository) GetByID(ctx context.Context, id string) (models.GeneratedImage, error) {
	query := `SELECT ` + imageColumns + ` FROM generated_images WHERE id = $1`

	row := r.pool.QueryRow(ctx, query, id)
	image, err := scanImage(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.GeneratedImage{}, ErrImageNotFound
		}
		return models.GeneratedImage{}, err
	}
	return image, nil
}

// ListSlice returns the set's rows ordered by slide_index, starting at the
// zero-based offset. The slice spans all rows, not just pending ones, so
// batch offsets stay stable across chain links.
func (r *ImageRepository) ListSlice(ctx context.Context, setID string, offset, limit int) ([]models.GeneratedImage, error) {
	query := `SELECT ` + imageColumns + `
		FROM generated_images
		WHERE set_id = $1
		ORDER BY slide_index ASC
		LIMIT $2 OFFSET $3`

	rows, err := r.pool.Query(ctx, query, setID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectImages(rows)
}

func (r *ImageRepository) ListBySet(ctx context.Context, setID string) ([]models.GeneratedImage, error) {
	query := `SELECT ` + imageColumns + `
		FROM generated_images
		WHERE set_id = $1
		ORDER BY slide_index ASC`

	rows, err := r.pool.Query(ctx, query, setID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectImages(rows)
}

func (r *ImageRepository) CountBySet(ctx context.Context, setID string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM generated_images WHERE set_id = $1`, setID).Scan(&count)
	return count, err
}

// StatusesBySet returns every child status in slide order, the input to the
// set-status reducer.
func (r *ImageRepository) StatusesBySet(ctx context.Context, setID string) ([]models.ImageStatus, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT status FROM generated_images WHERE set_id = $1 ORDER BY slide_index ASC`, setID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var statuses []models.ImageStatus
	for rows.Next() {
		var status models.ImageStatus
		if err := rows.Scan(&status); err != nil {
			return nil, err
		}
		statuses = append(statuses, status)
	}
	return statuses, rows.Err()
}

func (r *ImageRepository) MarkGenerating(ctx context.Context, id string) error {
	const query = `
		UPDATE generated_images
		SET status = $2, error_message = ''
		WHERE id = $1
	`
	_, err := r.pool.Exec(ctx, query, id, models.ImageStatusGenerating)
	return err
}

func (r *ImageRepository) MarkCompleted(ctx context.Context, id string, imageURL string) error {
	const query = `
		UPDATE generated_images
		SET status = $2, image_url = $3, error_message = ''
		WHERE id = $1
	`
	_, err := r.pool.Exec(ctx, query, id, models.ImageStatusCompleted, imageURL)
	return err
}

func (r *ImageRepository) MarkFailed(ctx context.Context, id string, message string) error {
	const query = `
		UPDATE generated_images
		SET status = $2, error_message = $3
		WHERE id = $1
	`
	_, err := r.pool.Exec(ctx, query, id, models.ImageStatusFailed, message)
	return err
}

// ResetForRetry re-enters a failed row into the pending cycle.
func (r *ImageRepository) ResetForRetry(ctx context.Context, id string) error {
	const query = `
		UPDATE generated_images
		SET status = $2, error_message = '', image_url = NULL
		WHERE id = $1 AND status = $3
	`
	tag, err := r.pool.Exec(ctx, query, id, models.ImageStatusPending, models.ImageStatusFailed)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrImageNotFound
	}
	return nil
}

func scanImage(row pgx.Row) (models.GeneratedImage, error) {
	var image models.GeneratedImage
	err := row.Scan(
		&image.ID,
		&image.SetID,
		&image.SlideIndex,
		&image.ImageURL,
		&image.PromptOverride,
		&image.OverlayURL,
		&image.Status,
		&image.ErrorMessage,
		&image.CreatedAt,
	)
	return image, err
}

func collectImages(rows pgx.Rows) ([]models.GeneratedImage, error) {
	var images []models.GeneratedImage
	for rows.Next() {
		image, err := scanImage(rows)
		if err != nil {
			return nil, err
		}
		images = append(images, image)
	}
	return images, rows.Err()
}
