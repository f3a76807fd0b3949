package hooks

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"slideflow/internal/ai"
	"slideflow/internal/models"
)

// PredictionReader polls provider job state; satisfied by ai.ReplicateClient.
type PredictionReader interface {
	GetPrediction(ctx context.Context, id string) (status string, output string, jobErr string, err error)
}

// SweepStore is the slice of hook persistence the sweep reads.
type SweepStore interface {
	ListStaleGenerating(ctx context.Context, olderThan time.Duration) ([]models.HookGeneratedVideo, error)
}

// Sweeper reconciles hook videos whose webhook delivery never arrived. It
// polls the provider for predictions still marked generating past the
// staleness threshold and feeds terminal results through the same
// reconciler the webhook uses, so redelivery semantics are identical.
type Sweeper struct {
	store       SweepStore
	predictions PredictionReader
	reconciler  EventReconciler
	log         zerolog.Logger
}

func NewSweeper(store SweepStore, predictions PredictionReader, reconciler EventReconciler, log zerolog.Logger) *Sweeper {
	return &Sweeper{
		store:       store,
		predictions: predictions,
		reconciler:  reconciler,
		log:         log,
	}
}

// Sweep returns how many stale videos reached a terminal state.
func (s *Sweeper) Sweep(ctx context.Context, olderThan time.Duration) (int, error) {
	videos, err := s.store.ListStaleGenerating(ctx, olderThan)
	if err != nil {
		return 0, fmt.Errorf("list stale videos: %w", err)
	}

	reconciled := 0
	for _, video := range videos {
		if video.PredictionID == nil {
			continue
		}

		status, output, jobErr, err := s.predictions.GetPrediction(ctx, *video.PredictionID)
		if err != nil {
			s.log.Warn().Err(err).Str("video_id", video.ID).Msg("prediction poll failed")
			continue
		}

		switch status {
		case ai.PredictionSucceeded, ai.PredictionFailed, ai.PredictionCanceled:
		default:
			// Still running; the webhook may yet arrive.
			continue
		}

		event := WebhookEvent{
			PredictionID: *video.PredictionID,
			Status:       status,
			OutputURL:    output,
			Error:        jobErr,
		}
		if err := s.reconciler.Reconcile(ctx, event); err != nil {
			s.log.Error().Err(err).Str("video_id", video.ID).Msg("stale video reconciliation failed")
			continue
		}
		reconciled++
	}
	return reconciled, nil
}
