package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"slideflow/internal/models"
)

var (
	ErrHookSessionNotFound = errors.New("hook session not found")
	ErrHookVideoNotFound   = errors.New("hook video not found")
)

const hookVideoColumns = `
	id, session_id, source_image_url, replicate_prediction_id,
	status, video_url, error_message, used_at, created_at
`

type HookRepository struct {
	pool *pgxpool.Pool
}

func NewHookRepository(pool *pgxpool.Pool) *HookRepository {
	return &HookRepository{pool: pool}
}

func (r *HookRepository) CreateSession(ctx context.Context, session models.HookSession) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO hook_sessions (id, status, created_at) VALUES ($1, $2, NOW())`,
		session.ID, session.Status)
	return err
}

func (r *HookRepository) GetSession(ctx context.Context, id string) (models.HookSession, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, status, created_at FROM hook_sessions WHERE id = $1`, id)

	var session models.HookSession
	if err := row.Scan(&session.ID, &session.Status, &session.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.HookSession{}, ErrHookSessionNotFound
		}
		return models.HookSession{}, err
	}
	return session, nil
}

func (r *HookRepository) UpdateSessionStatus(ctx context.Context, id string, status models.HookSessionStatus) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE hook_sessions SET status = $2 WHERE id = $1`, id, status)
	return err
}

func (r *HookRepository) CreateVideo(ctx context.Context, video models.HookGeneratedVideo) error {
	const query = `
		INSERT INTO hook_generated_videos (
			id, session_id, source_image_url, replicate_prediction_id,
			status, video_url, error_message, used_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
	`
	_, err := r.pool.Exec(ctx, query,
		video.ID,
		video.SessionID,
		video.SourceImageURL,
		video.PredictionID,
		video.Status,
		video.VideoURL,
		video.ErrorMessage,
		video.UsedAt,
	)
	return err
}

func (r *HookRepository) AttachPrediction(ctx context.Context, id string, predictionID string) error {
	const query = `
		UPDATE hook_generated_videos
		SET replicate_prediction_id = $2, status = $3
		WHERE id = $1
	`
	_, err := r.pool.Exec(ctx, query, id, predictionID, models.HookVideoStatusGenerating)
	return err
}

func (r *HookRepository) GetVideoByPrediction(ctx context.Context, predictionID string) (models.HookGeneratedVideo, error) {
	query := `SELECT ` + hookVideoColumns + `
		FROM hook_generated_videos
		WHERE replicate_prediction_id = $1`

	row := r.pool.QueryRow(ctx, query, predictionID)
	video, err := scanHookVideo(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.HookGeneratedVideo{}, ErrHookVideoNotFound
		}
		return models.HookGeneratedVideo{}, err
	}
	return video, nil
}

// CompleteVideo records the permanent URL, only while the row is still
// in flight. A false return means the row already reached a terminal state
// and the delivery is a duplicate.
func (r *HookRepository) CompleteVideo(ctx context.Context, id string, videoURL string) (bool, error) {
	const query = `
		UPDATE hook_generated_videos
		SET status = $2, video_url = $3, error_message = ''
		WHERE id = $1 AND status = ANY($4)
	`
	tag, err := r.pool.Exec(ctx, query, id, models.HookVideoStatusCompleted, videoURL, inFlightHookStates())
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *HookRepository) FailVideo(ctx context.Context, id string, message string) (bool, error) {
	const query = `
		UPDATE hook_generated_videos
		SET status = $2, error_message = $3
		WHERE id = $1 AND status = ANY($4)
	`
	tag, err := r.pool.Exec(ctx, query, id, models.HookVideoStatusFailed, message, inFlightHookStates())
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *HookRepository) MarkVideoUsed(ctx context.Context, id string, usedAt time.Time) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE hook_generated_videos SET used_at = $2 WHERE id = $1`, id, usedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrHookVideoNotFound
	}
	return nil
}

// ListStaleGenerating returns in-flight videos whose prediction started
// before the threshold, the candidates for the lost-webhook sweep.
func (r *HookRepository) ListStaleGenerating(ctx context.Context, olderThan time.Duration) ([]models.HookGeneratedVideo, error) {
	query := `SELECT ` + hookVideoColumns + `
		FROM hook_generated_videos
		WHERE status = $1
		  AND replicate_prediction_id IS NOT NULL
		  AND created_at < $2
		ORDER BY created_at ASC`

	rows, err := r.pool.Query(ctx, query,
		models.HookVideoStatusGenerating, time.Now().UTC().Add(-olderThan))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var videos []models.HookGeneratedVideo
	for rows.Next() {
		video, err := scanHookVideo(rows)
		if err != nil {
			return nil, err
		}
		videos = append(videos, video)
	}
	return videos, rows.Err()
}

func (r *HookRepository) ListVideosBySession(ctx context.Context, sessionID string) ([]models.HookGeneratedVideo, error) {
	query := `SELECT ` + hookVideoColumns + `
		FROM hook_generated_videos
		WHERE session_id = $1
		ORDER BY created_at ASC`

	rows, err := r.pool.Query(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var videos []models.HookGeneratedVideo
	for rows.Next() {
		video, err := scanHookVideo(rows)
		if err != nil {
			return nil, err
		}
		videos = append(videos, video)
	}
	return videos, rows.Err()
}

func inFlightHookStates() []string {
	return []string{
		string(models.HookVideoStatusPending),
		string(models.HookVideoStatusGenerating),
	}
}

func scanHookVideo(row pgx.Row) (models.HookGeneratedVideo, error) {
	var video models.HookGeneratedVideo
	err := row.Scan(
		&video.ID,
		&video.SessionID,
		&video.SourceImageURL,
		&video.PredictionID,
		&video.Status,
		&video.VideoURL,
		&video.ErrorMessage,
		&video.UsedAt,
		&video.CreatedAt,
	)
	return video, err
}
