package generation

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"slideflow/internal/ids"
	"slideflow/internal/models"
	"slideflow/internal/repository"
)

// CreateSetsRequest is one accepted generation request. Variants is how many
// sibling sets to create; they share a batch id and fire independent chains.
type CreateSetsRequest struct {
	SourceVideoID     string
	Variants          int
	PromptFirstSlide  string
	PromptOtherSlides string
	QualityInput      string
	QualityOutput     string
	OutputFormat      string
	SelectedIndexes   []int
	Channel           string
	Draft             bool
}

// Service accepts generation requests: it persists the sets and their
// pending image rows, then hands each set's first chain link to the queue.
type Service struct {
	sets     *repository.SetRepository
	images   *repository.ImageRepository
	videos   *repository.VideoRepository
	enqueuer ChainEnqueuer
	log      zerolog.Logger
}

func NewService(sets *repository.SetRepository, images *repository.ImageRepository, videos *repository.VideoRepository, enqueuer ChainEnqueuer, log zerolog.Logger) *Service {
	return &Service{
		sets:     sets,
		images:   images,
		videos:   videos,
		enqueuer: enqueuer,
		log:      log,
	}
}

func (s *Service) CreateSets(ctx context.Context, req CreateSetsRequest) ([]models.GenerationSet, error) {
	if req.Variants <= 0 {
		req.Variants = 1
	}
	if len(req.SelectedIndexes) == 0 {
		return nil, fmt.Errorf("no slides selected")
	}
	if req.OutputFormat == "" {
		req.OutputFormat = "png"
	}

	video, err := s.videos.GetByID(ctx, req.SourceVideoID)
	if err != nil {
		return nil, err
	}
	for _, index := range req.SelectedIndexes {
		if index < 0 || index >= len(video.OriginalImages) {
			return nil, fmt.Errorf("slide index %d outside post (%d slides)", index, len(video.OriginalImages))
		}
	}

	status := models.SetStatusQueued
	if req.Draft {
		status = models.SetStatusEditorDraft
	}

	batchID := ids.New()
	sets := make([]models.GenerationSet, 0, req.Variants)

	for i := 0; i < req.Variants; i++ {
		set := models.GenerationSet{
			ID:                ids.New(),
			SourceVideoID:     &video.ID,
			BatchID:           batchID,
			PromptFirstSlide:  req.PromptFirstSlide,
			PromptOtherSlides: req.PromptOtherSlides,
			QualityInput:      req.QualityInput,
			QualityOutput:     req.QualityOutput,
			OutputFormat:      req.OutputFormat,
			SelectedIndexes:   req.SelectedIndexes,
			Status:            status,
			ProgressCurrent:   0,
			ProgressTotal:     len(req.SelectedIndexes),
			Channel:           req.Channel,
		}

		if err := s.sets.Create(ctx, set); err != nil {
			return sets, fmt.Errorf("create set: %w", err)
		}

		rows := make([]models.GeneratedImage, 0, len(req.SelectedIndexes))
		for _, index := range req.SelectedIndexes {
			rows = append(rows, models.GeneratedImage{
				ID:         ids.New(),
				SetID:      set.ID,
				SlideIndex: index,
				Status:     models.ImageStatusPending,
			})
		}
		if err := s.images.CreateBatch(ctx, rows); err != nil {
			return sets, fmt.Errorf("create image rows: %w", err)
		}

		sets = append(sets, set)

		if req.Draft {
			continue
		}
		if err := s.enqueuer.EnqueueLink(ctx, set.ID, 0); err != nil {
			// The set exists but its chain never started; fail it now rather
			// than leaving it queued forever.
			s.log.Error().Err(err).Str("set_id", set.ID).Msg("first chain link enqueue failed")
			if _, ferr := s.sets.TransitionStatus(ctx, set.ID, models.SetStatusFailed, models.SetStatusQueued); ferr != nil {
				s.log.Error().Err(ferr).Str("set_id", set.ID).Msg("failure containment write failed")
			}
		}
	}

	return sets, nil
}
