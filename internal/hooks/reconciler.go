package hooks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"slideflow/internal/ai"
	"slideflow/internal/models"
	"slideflow/internal/repository"
)

// Store is the slice of hook persistence the reconciler needs.
type Store interface {
	GetVideoByPrediction(ctx context.Context, predictionID string) (models.HookGeneratedVideo, error)
	CompleteVideo(ctx context.Context, id string, videoURL string) (bool, error)
	FailVideo(ctx context.Context, id string, message string) (bool, error)
	ListVideosBySession(ctx context.Context, sessionID string) ([]models.HookGeneratedVideo, error)
	UpdateSessionStatus(ctx context.Context, id string, status models.HookSessionStatus) error
}

type BlobStore interface {
	Upload(ctx context.Context, bucket string, data []byte, ext string, folder string) (string, error)
	Download(ctx context.Context, url string) ([]byte, error)
	HooksBucket() string
}

// WebhookEvent is the parsed shape of one prediction callback.
type WebhookEvent struct {
	PredictionID string
	Status       string
	OutputURL    string
	Error        string
}

func ParseWebhookPayload(body []byte) (WebhookEvent, error) {
	var payload struct {
		ID     string          `json:"id"`
		Status string          `json:"status"`
		Output json.RawMessage `json:"output"`
		Error  string          `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return WebhookEvent{}, fmt.Errorf("decode webhook payload: %w", err)
	}
	if payload.ID == "" {
		return WebhookEvent{}, fmt.Errorf("webhook payload missing prediction id")
	}
	return WebhookEvent{
		PredictionID: payload.ID,
		Status:       payload.Status,
		OutputURL:    ai.FirstOutputURL(payload.Output),
		Error:        payload.Error,
	}, nil
}

// Reconciler maps prediction callbacks onto hook video rows. Deliveries are
// at-least-once, so every write is conditional on the row still being in
// flight and a repeat delivery falls through as a no-op.
type Reconciler struct {
	store Store
	blobs BlobStore
	log   zerolog.Logger
}

func NewReconciler(store Store, blobs BlobStore, log zerolog.Logger) *Reconciler {
	return &Reconciler{store: store, blobs: blobs, log: log}
}

func (r *Reconciler) Reconcile(ctx context.Context, event WebhookEvent) error {
	video, err := r.store.GetVideoByPrediction(ctx, event.PredictionID)
	if err != nil {
		if errors.Is(err, repository.ErrHookVideoNotFound) {
			// Row deleted, or a late delivery after cleanup.
			r.log.Info().Str("prediction_id", event.PredictionID).Msg("webhook for unknown prediction, ignoring")
			return nil
		}
		return fmt.Errorf("lookup prediction: %w", err)
	}

	if video.Status.Terminal() {
		r.log.Debug().Str("video_id", video.ID).Msg("duplicate webhook delivery, row already terminal")
		return nil
	}

	switch event.Status {
	case ai.PredictionSucceeded:
		r.reconcileSuccess(ctx, video, event)
	default:
		message := event.Error
		if message == "" {
			message = fmt.Sprintf("prediction ended with status %q", event.Status)
		}
		if _, err := r.store.FailVideo(ctx, video.ID, message); err != nil {
			return fmt.Errorf("fail video: %w", err)
		}
	}

	return r.aggregateSession(ctx, video.SessionID)
}

// reconcileSuccess moves the provider's temporary asset into our blob store.
// A download or upload failure fails the row instead of leaving it stuck at
// generating.
func (r *Reconciler) reconcileSuccess(ctx context.Context, video models.HookGeneratedVideo, event WebhookEvent) {
	if event.OutputURL == "" {
		if _, err := r.store.FailVideo(ctx, video.ID, "prediction succeeded without output"); err != nil {
			r.log.Error().Err(err).Str("video_id", video.ID).Msg("fail write failed")
		}
		return
	}

	data, err := r.blobs.Download(ctx, event.OutputURL)
	if err == nil {
		var url string
		url, err = r.blobs.Upload(ctx, r.blobs.HooksBucket(), data, "mp4", video.SessionID)
		if err == nil {
			applied, cerr := r.store.CompleteVideo(ctx, video.ID, url)
			if cerr != nil {
				r.log.Error().Err(cerr).Str("video_id", video.ID).Msg("complete write failed")
			} else if !applied {
				r.log.Debug().Str("video_id", video.ID).Msg("lost completion race, row already terminal")
			}
			return
		}
	}

	if _, ferr := r.store.FailVideo(ctx, video.ID, fmt.Sprintf("store asset: %v", err)); ferr != nil {
		r.log.Error().Err(ferr).Str("video_id", video.ID).Msg("fail write failed")
	}
}

func (r *Reconciler) aggregateSession(ctx context.Context, sessionID string) error {
	videos, err := r.store.ListVideosBySession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("list session videos: %w", err)
	}
	for _, video := range videos {
		if !video.Status.Terminal() {
			return nil
		}
	}
	if err := r.store.UpdateSessionStatus(ctx, sessionID, models.HookSessionStatusCompleted); err != nil {
		return fmt.Errorf("complete session: %w", err)
	}
	return nil
}
