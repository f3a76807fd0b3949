package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"slideflow/internal/models"
)

var ErrSetNotFound = errors.New("generation set not found")

const setColumns = `
	id, source_video_id, batch_id, prompt_first_slide, prompt_other_slides,
	quality_input, quality_output, output_format, selected_indexes,
	status, progress_current, progress_total, channel, scheduled_at,
	posted_at, notes, created_at, updated_at
`

type SetRepository struct {
	pool *pgxpool.Pool
}

func NewSetRepository(pool *pgxpool.Pool) *SetRepository {
	return &SetRepository{pool: pool}
}

type SetFilter struct {
	Status  string
	Channel string
	BatchID string
	Limit   int
	Offset  int
}

func (r *SetRepository) Create(ctx context.Context, set models.GenerationSet) error {
	const query = `
		INSERT INTO generation_sets (
			id, source_video_id, batch_id, prompt_first_slide, prompt_other_slides,
			quality_input, quality_output, output_format, selected_indexes,
			status, progress_current, progress_total, channel, scheduled_at,
			posted_at, notes, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9,
			$10, $11, $12, $13, $14, $15, $16, NOW(), NOW()
		)
	`
	_, err := r.pool.Exec(ctx, query,
		set.ID,
		set.SourceVideoID,
		set.BatchID,
		set.PromptFirstSlide,
		set.PromptOtherSlides,
		set.QualityInput,
		set.QualityOutput,
		set.OutputFormat,
		set.SelectedIndexes,
		set.Status,
		set.ProgressCurrent,
		set.ProgressTotal,
		set.Channel,
		set.ScheduledAt,
		set.PostedAt,
		set.Notes,
	)
	return err
}

func (r *SetRepository) GetByID(ctx context.Context, id string) (models.GenerationSet, error) {
	query := `SELECT ` + setColumns + ` FROM generation_sets WHERE id = $1`

	row := r.pool.QueryRow(ctx, query, id)
	set, err := scanSet(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.GenerationSet{}, ErrSetNotFound
		}
		return models.GenerationSet{}, err
	}
	return set, nil
}

func (r *SetRepository) List(ctx context.Context, filter SetFilter) ([]models.GenerationSet, error) {
	query := `SELECT ` + setColumns + `
		FROM generation_sets
		WHERE ($1 = '' OR status = $1)
		  AND ($2 = '' OR channel = $2)
		  AND ($3 = '' OR batch_id = $3)
		ORDER BY created_at DESC
		LIMIT $4 OFFSET $5`

	rows, err := r.pool.Query(ctx, query,
		filter.Status, filter.Channel, filter.BatchID, filter.Limit, filter.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sets []models.GenerationSet
	for rows.Next() {
		set, err := scanSet(rows)
		if err != nil {
			return nil, err
		}
		sets = append(sets, set)
	}
	return sets, rows.Err()
}

func (r *SetRepository) Count(ctx context.Context, filter SetFilter) (int, error) {
	const query = `
		SELECT COUNT(*) FROM generation_sets
		WHERE ($1 = '' OR status = $1)
		  AND ($2 = '' OR channel = $2)
		  AND ($3 = '' OR batch_id = $3)
	`
	var count int
	err := r.pool.QueryRow(ctx, query, filter.Status, filter.Channel, filter.BatchID).Scan(&count)
	return count, err
}

type SetUpdate struct {
	Channel     *string
	ScheduledAt *time.Time
	PostedAt    *time.Time
	Notes       *string
	Status      *models.SetStatus
}

func (r *SetRepository) Update(ctx context.Context, id string, update SetUpdate) error {
	const query = `
		UPDATE generation_sets
		SET channel      = COALESCE($2, channel),
		    scheduled_at = COALESCE($3, scheduled_at),
		    posted_at    = COALESCE($4, posted_at),
		    notes        = COALESCE($5, notes),
		    status       = COALESCE($6, status),
		    updated_at   = NOW()
		WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query, id,
		update.Channel, update.ScheduledAt, update.PostedAt, update.Notes, update.Status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSetNotFound
	}
	return nil
}

// Delete removes the set; generated_images rows cascade via their foreign key.
func (r *SetRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM generation_sets WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSetNotFound
	}
	return nil
}

// TransitionStatus applies a compare-and-set status write: the new status is
// written only while the current status is one of from. Returns whether the
// row was updated, so a duplicate chain link can detect it lost the race.
func (r *SetRepository) TransitionStatus(ctx context.Context, id string, to models.SetStatus, from ...models.SetStatus) (bool, error) {
	const query = `
		UPDATE generation_sets
		SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = ANY($3)
	`
	states := make([]string, len(from))
	for i, s := range from {
		states[i] = string(s)
	}
	tag, err := r.pool.Exec(ctx, query, id, to, states)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// UpdateProgress persists the terminal-row count. GREATEST keeps the counter
// monotone when duplicate chain links recompute an older value.
func (r *SetRepository) UpdateProgress(ctx context.Context, id string, current int) error {
	const query = `
		UPDATE generation_sets
		SET progress_current = GREATEST(progress_current, $2),
		    updated_at = NOW()
		WHERE id = $1
	`
	_, err := r.pool.Exec(ctx, query, id, current)
	return err
}

// SweepStale fails sets stuck at processing whose last write is older than
// the threshold. Catches chain links hard-killed before their failure write.
func (r *SetRepository) SweepStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	const query = `
		UPDATE generation_sets
		SET status = $1, updated_at = NOW()
		WHERE status = $2 AND updated_at < $3
	`
	tag, err := r.pool.Exec(ctx, query,
		models.SetStatusFailed, models.SetStatusProcessing, time.Now().UTC().Add(-olderThan))
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ListDueForPublish returns finished sets whose schedule has elapsed and that
// have not been posted yet.
func (r *SetRepository) ListDueForPublish(ctx context.Context, now time.Time) ([]models.GenerationSet, error) {
	query := `SELECT ` + setColumns + `
		FROM generation_sets
		WHERE scheduled_at IS NOT NULL
		  AND scheduled_at <= $1
		  AND posted_at IS NULL
		  AND status = ANY($2)
		ORDER BY scheduled_at ASC`

	rows, err := r.pool.Query(ctx, query, now,
		[]string{string(models.SetStatusCompleted), string(models.SetStatusPartial)})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sets []models.GenerationSet
	for rows.Next() {
		set, err := scanSet(rows)
		if err != nil {
			return nil, err
		}
		sets = append(sets, set)
	}
	return sets, rows.Err()
}

func (r *SetRepository) MarkPosted(ctx context.Context, id string, postedAt time.Time) error {
	const query = `
		UPDATE generation_sets
		SET posted_at = $2, updated_at = NOW()
		WHERE id = $1 AND posted_at IS NULL
	`
	_, err := r.pool.Exec(ctx, query, id, postedAt)
	return err
}

func scanSet(row pgx.Row) (models.GenerationSet, error) {
	var set models.GenerationSet
	err := row.Scan(
		&set.ID,
		&set.SourceVideoID,
		&set.BatchID,
		&set.PromptFirstSlide,
		&set.PromptOtherSlides,
		&set.QualityInput,
		&set.QualityOutput,
		&set.OutputFormat,
		&set.SelectedIndexes,
		&set.Status,
		&set.ProgressCurrent,
		&set.ProgressTotal,
		&set.Channel,
		&set.ScheduledAt,
		&set.PostedAt,
		&set.Notes,
		&set.CreatedAt,
		&set.UpdatedAt,
	)
	return set, err
}
