package hooks

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"slideflow/internal/ai"
	"slideflow/internal/ids"
	"slideflow/internal/models"
)

// VideoJobSubmitter submits one image-to-video job; satisfied by
// ai.ReplicateClient.
type VideoJobSubmitter interface {
	CreateVideoJob(ctx context.Context, input ai.VideoJobInput) (string, error)
}

// SessionStore is the slice of hook persistence session creation needs.
type SessionStore interface {
	CreateSession(ctx context.Context, session models.HookSession) error
	CreateVideo(ctx context.Context, video models.HookGeneratedVideo) error
	AttachPrediction(ctx context.Context, id string, predictionID string) error
	FailVideo(ctx context.Context, id string, message string) (bool, error)
	UpdateSessionStatus(ctx context.Context, id string, status models.HookSessionStatus) error
}

// Service creates hook sessions and delegates their videos to the async
// video-generation provider. Results come back through the webhook.
type Service struct {
	repo       SessionStore
	submitter  VideoJobSubmitter
	webhookURL string
	log        zerolog.Logger
}

func NewService(repo SessionStore, submitter VideoJobSubmitter, publicURL string, log zerolog.Logger) *Service {
	return &Service{
		repo:       repo,
		submitter:  submitter,
		webhookURL: strings.TrimSuffix(publicURL, "/") + "/api/v1/webhooks/replicate",
		log:        log,
	}
}

type CreateSessionRequest struct {
	ImageURLs []string
	Prompt    string
}

func (s *Service) CreateSession(ctx context.Context, req CreateSessionRequest) (models.HookSession, []models.HookGeneratedVideo, error) {
	if len(req.ImageURLs) == 0 {
		return models.HookSession{}, nil, fmt.Errorf("no source images")
	}

	session := models.HookSession{
		ID:     ids.New(),
		Status: models.HookSessionStatusPending,
	}
	if err := s.repo.CreateSession(ctx, session); err != nil {
		return models.HookSession{}, nil, fmt.Errorf("create session: %w", err)
	}

	videos := make([]models.HookGeneratedVideo, 0, len(req.ImageURLs))
	for _, imageURL := range req.ImageURLs {
		video := models.HookGeneratedVideo{
			ID:             ids.New(),
			SessionID:      session.ID,
			SourceImageURL: imageURL,
			Status:         models.HookVideoStatusPending,
		}
		if err := s.repo.CreateVideo(ctx, video); err != nil {
			return session, videos, fmt.Errorf("create video row: %w", err)
		}

		predictionID, err := s.submitter.CreateVideoJob(ctx, ai.VideoJobInput{
			ImageURL:   imageURL,
			Prompt:     req.Prompt,
			WebhookURL: s.webhookURL,
		})
		if err != nil {
			s.log.Error().Err(err).Str("video_id", video.ID).Msg("video job submission failed")
			if _, ferr := s.repo.FailVideo(ctx, video.ID, err.Error()); ferr != nil {
				s.log.Error().Err(ferr).Str("video_id", video.ID).Msg("fail write failed")
			}
			video.Status = models.HookVideoStatusFailed
			video.ErrorMessage = err.Error()
			videos = append(videos, video)
			continue
		}

		if err := s.repo.AttachPrediction(ctx, video.ID, predictionID); err != nil {
			return session, videos, fmt.Errorf("attach prediction: %w", err)
		}
		video.PredictionID = &predictionID
		video.Status = models.HookVideoStatusGenerating
		videos = append(videos, video)
	}

	// No webhook will ever arrive for a session whose every submission
	// failed, so its terminal state must be written here.
	session.Status = models.HookSessionStatusFailed
	for _, video := range videos {
		if !video.Status.Terminal() {
			session.Status = models.HookSessionStatusProcessing
			break
		}
	}
	if err := s.repo.UpdateSessionStatus(ctx, session.ID, session.Status); err != nil {
		return session, videos, fmt.Errorf("update session: %w", err)
	}

	return session, videos, nil
}
