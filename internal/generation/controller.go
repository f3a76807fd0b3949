package generation

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"slideflow/internal/models"
	"slideflow/internal/repository"
)

// BatchRunner is what the controller drives; satisfied by Processor.
type BatchRunner interface {
	ProcessBatch(ctx context.Context, setID string, batchStart int) (BatchResult, error)
}

// ChainEnqueuer hands the continuation to the task queue. Delivery is
// at-least-once; the processor's guarded writes make duplicate links safe.
type ChainEnqueuer interface {
	EnqueueLink(ctx context.Context, setID string, batchStart int) error
}

// Controller executes one chain link: run a batch, enqueue the continuation,
// contain failures. A set's processing spans as many links as it has slices.
type Controller struct {
	runner   BatchRunner
	enqueuer ChainEnqueuer
	sets     SetStore
	log      zerolog.Logger
}

func NewController(runner BatchRunner, enqueuer ChainEnqueuer, sets SetStore, log zerolog.Logger) *Controller {
	return &Controller{
		runner:   runner,
		enqueuer: enqueuer,
		sets:     sets,
		log:      log,
	}
}

// RunLink processes one slice and schedules the next. On processor or
// enqueue failure the set is failed through a compare-and-set write that
// only fires while the set is still in flight, so a late duplicate link
// cannot drag a finished set back to failed.
func (c *Controller) RunLink(ctx context.Context, setID string, batchStart int) (BatchResult, error) {
	result, err := c.runner.ProcessBatch(ctx, setID, batchStart)
	if err != nil {
		if errors.Is(err, repository.ErrSetNotFound) {
			// Operator deleted the set mid-chain. There is nothing to fail;
			// the caller decides whether this is a 404 or a clean stop.
			c.log.Info().Str("set_id", setID).Msg("chain link found no set, stopping")
			return BatchResult{}, err
		}
		c.containFailure(ctx, setID, err, "batch processing failed")
		return BatchResult{}, err
	}

	if result.HasMore {
		if err := c.enqueuer.EnqueueLink(ctx, setID, result.NextBatchStart); err != nil {
			c.containFailure(ctx, setID, err, "chain continuation enqueue failed")
			return result, err
		}
	}

	return result, nil
}

func (c *Controller) containFailure(ctx context.Context, setID string, cause error, msg string) {
	c.log.Error().Err(cause).Str("set_id", setID).Msg(msg)

	applied, err := c.sets.TransitionStatus(ctx, setID, models.SetStatusFailed,
		models.SetStatusQueued, models.SetStatusProcessing)
	if err != nil {
		c.log.Error().Err(err).Str("set_id", setID).Msg("failure containment write failed")
		return
	}
	if !applied {
		c.log.Debug().Str("set_id", setID).Msg("set already terminal, skipping failure write")
	}
}
