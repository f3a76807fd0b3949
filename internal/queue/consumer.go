package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"slideflow/internal/generation"
	"slideflow/internal/repository"
)

// LinkRunner executes one chain link; satisfied by generation.Controller.
type LinkRunner interface {
	RunLink(ctx context.Context, setID string, batchStart int) (generation.BatchResult, error)
}

// Consumer reads chain links from the stream's consumer group. Messages are
// acked even when the link failed: the controller has already contained the
// failure on the set, and redelivery would only repeat the same failure.
type Consumer struct {
	client        *redis.Client
	stream        string
	group         string
	consumer      string
	claimInterval time.Duration
	logger        zerolog.Logger
	runner        LinkRunner
}

func NewConsumer(client *redis.Client, stream, group, consumer string, claimInterval time.Duration, logger zerolog.Logger, runner LinkRunner) *Consumer {
	return &Consumer{
		client:        client,
		stream:        stream,
		group:         group,
		consumer:      consumer,
		claimInterval: claimInterval,
		logger:        logger,
		runner:        runner,
	}
}

func (c *Consumer) Start(ctx context.Context) error {
	if err := c.ensureGroup(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(c.claimInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			if err := c.read(ctx); err != nil && !errors.Is(err, context.Canceled) {
				c.logger.Error().Err(err).Msg("stream read error")
				time.Sleep(2 * time.Second)
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			_ = c.claimStalled(ctx)
		default:
		}
	}
}

func (c *Consumer) ensureGroup(ctx context.Context) error {
	err := c.client.XGroupCreateMkStream(ctx, c.stream, c.group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create consumer group: %w", err)
	}
	return nil
}

func (c *Consumer) read(ctx context.Context) error {
	result, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.group,
		Consumer: c.consumer,
		Streams:  []string{c.stream, ">"},
		Count:    10,
		Block:    5 * time.Second,
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}

	for _, stream := range result {
		for _, msg := range stream.Messages {
			c.handleMessage(ctx, msg)
			if err := c.client.XAck(ctx, c.stream, c.group, msg.ID).Err(); err != nil {
				c.logger.Error().Err(err).Str("message_id", msg.ID).Msg("ack failed")
			}
		}
	}
	return nil
}

func (c *Consumer) handleMessage(ctx context.Context, msg redis.XMessage) {
	setID, batchStart, err := parseLink(msg)
	if err != nil {
		c.logger.Error().Err(err).Str("message_id", msg.ID).Msg("malformed chain link")
		return
	}

	if _, err := c.runner.RunLink(ctx, setID, batchStart); err != nil {
		if errors.Is(err, repository.ErrSetNotFound) {
			// Set deleted after its link was enqueued; drop the message.
			c.logger.Debug().Str("set_id", setID).Msg("chain link for deleted set dropped")
			return
		}
		// Already contained on the set by the controller; log only.
		c.logger.Error().
			Err(err).
			Str("set_id", setID).
			Int("batch_start", batchStart).
			Msg("chain link failed")
	}
}

func (c *Consumer) claimStalled(ctx context.Context) error {
	pending, err := c.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: c.stream,
		Group:  c.group,
		Start:  "-",
		End:    "+",
		Count:  10,
	}).Result()
	if err != nil {
		return err
	}

	for _, entry := range pending {
		if entry.Idle < c.claimInterval {
			continue
		}
		msgs, err := c.client.XClaim(ctx, &redis.XClaimArgs{
			Stream:   c.stream,
			Group:    c.group,
			Consumer: c.consumer,
			MinIdle:  c.claimInterval,
			Messages: []string{entry.ID},
		}).Result()
		if err != nil {
			c.logger.Error().Err(err).Msg("claim error")
			continue
		}
		for _, msg := range msgs {
			c.handleMessage(ctx, msg)
			if err := c.client.XAck(ctx, c.stream, c.group, msg.ID).Err(); err != nil {
				c.logger.Error().Err(err).Str("message_id", msg.ID).Msg("ack claimed failed")
			}
		}
	}
	return nil
}

func parseLink(msg redis.XMessage) (string, int, error) {
	setID, ok := msg.Values["setId"].(string)
	if !ok || setID == "" {
		return "", 0, fmt.Errorf("missing setId")
	}

	batchStart := 0
	if raw, ok := msg.Values["batchStart"].(string); ok && raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return "", 0, fmt.Errorf("bad batchStart %q: %w", raw, err)
		}
		batchStart = parsed
	}
	return setID, batchStart, nil
}
