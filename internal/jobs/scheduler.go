package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"slideflow/internal/config"
	"slideflow/internal/repository"
)

// HookSweeper reconciles hook videos whose webhook never arrived;
// satisfied by hooks.Sweeper.
type HookSweeper interface {
	Sweep(ctx context.Context, olderThan time.Duration) (int, error)
}

// Scheduler runs the periodic maintenance the pipeline cannot do from
// within a chain link or a webhook: sweeping sets orphaned by a hard-killed
// link, polling predictions with lost webhooks, and marking scheduled posts
// as published once their slot elapses.
type Scheduler struct {
	cron  *cron.Cron
	sets  *repository.SetRepository
	hooks HookSweeper
	cfg   config.GenerationConfig
	log   zerolog.Logger
}

func NewScheduler(sets *repository.SetRepository, hooks HookSweeper, cfg config.GenerationConfig, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:  cron.New(cron.WithSeconds()),
		sets:  sets,
		hooks: hooks,
		cfg:   cfg,
		log:   log,
	}
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.cfg.SweepSchedule, s.sweepStaleSets); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(s.cfg.SweepSchedule, s.sweepStaleHookVideos); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(s.cfg.PublishSchedule, s.publishDueSets); err != nil {
		return err
	}

	s.cron.Start()
	return nil
}

// Stop waits for in-flight jobs, but not past the shutdown budget.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
	}
}

// sweepStaleSets fails sets stuck at processing past the staleness
// threshold. A chain link killed before its failure-containment write is
// the only way a set gets here.
func (s *Scheduler) sweepStaleSets() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	swept, err := s.sets.SweepStale(ctx, s.cfg.StaleAfter)
	if err != nil {
		s.log.Error().Err(err).Msg("stale set sweep failed")
		return
	}
	if swept > 0 {
		s.log.Warn().Int64("count", swept).Msg("swept stale processing sets to failed")
	}
}

// sweepStaleHookVideos polls the provider for hook videos stuck at
// generating past the threshold and reconciles any terminal result, the
// recovery path for lost webhook deliveries.
func (s *Scheduler) sweepStaleHookVideos() {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	reconciled, err := s.hooks.Sweep(ctx, s.cfg.StaleAfter)
	if err != nil {
		s.log.Error().Err(err).Msg("stale hook video sweep failed")
		return
	}
	if reconciled > 0 {
		s.log.Info().Int("count", reconciled).Msg("reconciled hook videos with lost webhooks")
	}
}

func (s *Scheduler) publishDueSets() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	due, err := s.sets.ListDueForPublish(ctx, time.Now().UTC())
	if err != nil {
		s.log.Error().Err(err).Msg("list due sets failed")
		return
	}

	for _, set := range due {
		if err := s.sets.MarkPosted(ctx, set.ID, time.Now().UTC()); err != nil {
			s.log.Error().Err(err).Str("set_id", set.ID).Msg("mark posted failed")
			continue
		}
		s.log.Info().
			Str("set_id", set.ID).
			Str("channel", set.Channel).
			Msg("scheduled set published")
	}
}
