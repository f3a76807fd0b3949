package generation

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	_ "image/gif"

	"github.com/rs/zerolog"

	"slideflow/internal/ai"
	"slideflow/internal/models"
)

// SetStore is the slice of set persistence the pipeline needs.
type SetStore interface {
	GetByID(ctx context.Context, id string) (models.GenerationSet, error)
	TransitionStatus(ctx context.Context, id string, to models.SetStatus, from ...models.SetStatus) (bool, error)
	UpdateProgress(ctx context.Context, id string, current int) error
}

type ImageStore interface {
	ListSlice(ctx context.Context, setID string, offset, limit int) ([]models.GeneratedImage, error)
	CountBySet(ctx context.Context, setID string) (int, error)
	StatusesBySet(ctx context.Context, setID string) ([]models.ImageStatus, error)
	GetByID(ctx context.Context, id string) (models.GeneratedImage, error)
	MarkGenerating(ctx context.Context, id string) error
	MarkCompleted(ctx context.Context, id string, imageURL string) error
	MarkFailed(ctx context.Context, id string, message string) error
	ResetForRetry(ctx context.Context, id string) error
}

type VideoStore interface {
	GetByID(ctx context.Context, id string) (models.SourceVideo, error)
}

type Editor interface {
	Edit(ctx context.Context, input ai.EditInput) ([]byte, error)
}

type BlobStore interface {
	Upload(ctx context.Context, bucket string, data []byte, ext string, folder string) (string, error)
	Download(ctx context.Context, url string) ([]byte, error)
	SlidesBucket() string
}

type BatchResult struct {
	Processed      int  `json:"processed"`
	HasMore        bool `json:"hasMore"`
	NextBatchStart int  `json:"nextBatchStart"`
}

// Processor runs one bounded slice of a set's image generation. Rows are
// generated sequentially behind the provider gate; a row failure is recorded
// and never aborts the slice.
type Processor struct {
	sets           SetStore
	images         ImageStore
	videos         VideoStore
	editor         Editor
	blobs          BlobStore
	gate           chan struct{}
	batchSize      int
	fallbackPrompt string
	log            zerolog.Logger
}

func NewProcessor(sets SetStore, images ImageStore, videos VideoStore, editor Editor, blobs BlobStore, batchSize, providerSlots int, fallbackPrompt string, log zerolog.Logger) *Processor {
	if batchSize <= 0 {
		batchSize = 3
	}
	if providerSlots <= 0 {
		providerSlots = 1
	}
	return &Processor{
		sets:           sets,
		images:         images,
		videos:         videos,
		editor:         editor,
		blobs:          blobs,
		gate:           make(chan struct{}, providerSlots),
		batchSize:      batchSize,
		fallbackPrompt: fallbackPrompt,
		log:            log,
	}
}

func (p *Processor) BatchSize() int {
	return p.batchSize
}

// ProcessBatch handles the slice of rows starting at batchStart. Only
// infrastructure errors escape; generation failures land on the row.
func (p *Processor) ProcessBatch(ctx context.Context, setID string, batchStart int) (BatchResult, error) {
	set, err := p.sets.GetByID(ctx, setID)
	if err != nil {
		return BatchResult{}, err
	}

	if batchStart == 0 {
		if _, err := p.sets.TransitionStatus(ctx, setID, models.SetStatusProcessing, models.SetStatusQueued); err != nil {
			return BatchResult{}, fmt.Errorf("mark processing: %w", err)
		}
	}

	total, err := p.images.CountBySet(ctx, setID)
	if err != nil {
		return BatchResult{}, fmt.Errorf("count images: %w", err)
	}
	if total == 0 || batchStart >= total {
		// Late or duplicate link; nothing left at this offset. Re-derive the
		// aggregate so an earlier crash between slice and status write heals.
		if total > 0 {
			if err := p.finalize(ctx, setID); err != nil {
				return BatchResult{}, err
			}
		}
		return BatchResult{Processed: 0, HasMore: false, NextBatchStart: batchStart}, nil
	}

	slice, err := p.images.ListSlice(ctx, setID, batchStart, p.batchSize)
	if err != nil {
		return BatchResult{}, fmt.Errorf("load slice: %w", err)
	}

	processed := 0
	for _, row := range slice {
		if row.Status != models.ImageStatusPending {
			continue
		}
		if err := p.generateRow(ctx, set, row); err != nil {
			return BatchResult{}, err
		}
		processed++
	}

	if err := p.updateProgress(ctx, setID); err != nil {
		return BatchResult{}, err
	}

	hasMore := batchStart+p.batchSize < total
	if !hasMore {
		if err := p.finalize(ctx, setID); err != nil {
			return BatchResult{}, err
		}
	}

	return BatchResult{
		Processed:      processed,
		HasMore:        hasMore,
		NextBatchStart: batchStart + p.batchSize,
	}, nil
}

// RetryImage re-runs a single failed row, then re-derives the set aggregate
// so a partial set can become completed without regenerating its siblings.
func (p *Processor) RetryImage(ctx context.Context, setID, imageID string) error {
	set, err := p.sets.GetByID(ctx, setID)
	if err != nil {
		return err
	}

	row, err := p.images.GetByID(ctx, imageID)
	if err != nil {
		return err
	}
	if row.SetID != setID {
		return fmt.Errorf("image %s does not belong to set %s", imageID, setID)
	}

	if err := p.images.ResetForRetry(ctx, imageID); err != nil {
		return err
	}
	row.Status = models.ImageStatusPending
	row.ErrorMessage = ""

	if err := p.generateRow(ctx, set, row); err != nil {
		return err
	}

	if err := p.updateProgress(ctx, setID); err != nil {
		return err
	}
	return p.finalize(ctx, setID)
}

// generateRow drives one image through generating to a terminal state. The
// returned error is nil for generation failures, which are persisted on the
// row; only store write errors propagate.
func (p *Processor) generateRow(ctx context.Context, set models.GenerationSet, row models.GeneratedImage) error {
	if err := p.images.MarkGenerating(ctx, row.ID); err != nil {
		return fmt.Errorf("mark generating: %w", err)
	}

	imageURL, genErr := p.generate(ctx, set, row)
	if genErr != nil {
		p.log.Warn().
			Err(genErr).
			Str("set_id", set.ID).
			Str("image_id", row.ID).
			Int("slide_index", row.SlideIndex).
			Msg("slide generation failed")
		if err := p.images.MarkFailed(ctx, row.ID, genErr.Error()); err != nil {
			return fmt.Errorf("mark failed: %w", err)
		}
		return nil
	}

	if err := p.images.MarkCompleted(ctx, row.ID, imageURL); err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}
	return nil
}

func (p *Processor) generate(ctx context.Context, set models.GenerationSet, row models.GeneratedImage) (string, error) {
	original, err := p.resolveOriginal(ctx, set, row)
	if err != nil {
		return "", err
	}

	var overlay []byte
	if row.OverlayURL != nil && *row.OverlayURL != "" {
		overlay, err = p.blobs.Download(ctx, *row.OverlayURL)
		if err != nil {
			return "", fmt.Errorf("fetch overlay: %w", err)
		}
	}

	select {
	case p.gate <- struct{}{}:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	edited, err := p.editor.Edit(ctx, ai.EditInput{
		Original:      original,
		Overlay:       overlay,
		Prompt:        p.resolvePrompt(set, row),
		QualityInput:  set.QualityInput,
		QualityOutput: set.QualityOutput,
		OutputFormat:  set.OutputFormat,
	})
	<-p.gate
	if err != nil {
		return "", err
	}
	if len(edited) == 0 {
		return "", errors.New("editor returned no data")
	}

	edited = normalizeImage(edited, set.OutputFormat)

	url, err := p.blobs.Upload(ctx, p.blobs.SlidesBucket(), edited, set.OutputFormat, set.ID)
	if err != nil {
		return "", fmt.Errorf("store slide: %w", err)
	}
	return url, nil
}

func (p *Processor) resolveOriginal(ctx context.Context, set models.GenerationSet, row models.GeneratedImage) ([]byte, error) {
	if set.SourceVideoID == nil {
		return nil, errors.New("set has no source video")
	}

	video, err := p.videos.GetByID(ctx, *set.SourceVideoID)
	if err != nil {
		return nil, fmt.Errorf("load source video: %w", err)
	}
	if row.SlideIndex < 0 || row.SlideIndex >= len(video.OriginalImages) {
		return nil, fmt.Errorf("slide index %d outside original images (%d)", row.SlideIndex, len(video.OriginalImages))
	}

	data, err := p.blobs.Download(ctx, video.OriginalImages[row.SlideIndex])
	if err != nil {
		return nil, fmt.Errorf("fetch original slide: %w", err)
	}
	return data, nil
}

func (p *Processor) resolvePrompt(set models.GenerationSet, row models.GeneratedImage) string {
	if row.PromptOverride != nil && *row.PromptOverride != "" {
		return *row.PromptOverride
	}
	if row.SlideIndex == 0 && set.PromptFirstSlide != "" {
		return set.PromptFirstSlide
	}
	if set.PromptOtherSlides != "" {
		return set.PromptOtherSlides
	}
	return p.fallbackPrompt
}

func (p *Processor) updateProgress(ctx context.Context, setID string) error {
	statuses, err := p.images.StatusesBySet(ctx, setID)
	if err != nil {
		return fmt.Errorf("read statuses: %w", err)
	}
	current := 0
	for _, status := range statuses {
		if status.Terminal() {
			current++
		}
	}
	if err := p.sets.UpdateProgress(ctx, setID, current); err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	return nil
}

// finalize re-derives the aggregate status and applies it only while the set
// is still in flight, so a duplicate link cannot resurrect a finished set.
func (p *Processor) finalize(ctx context.Context, setID string) error {
	statuses, err := p.images.StatusesBySet(ctx, setID)
	if err != nil {
		return fmt.Errorf("read statuses: %w", err)
	}

	derived := DeriveSetStatus(statuses)
	if derived == models.SetStatusProcessing {
		return nil
	}

	if _, err := p.sets.TransitionStatus(ctx, setID, derived,
		models.SetStatusQueued, models.SetStatusProcessing, models.SetStatusPartial, models.SetStatusFailed); err != nil {
		return fmt.Errorf("finalize status: %w", err)
	}
	return nil
}

// normalizeImage re-encodes the provider bytes to strip embedded metadata.
// Formats the stdlib cannot round-trip pass through untouched.
func normalizeImage(data []byte, format string) []byte {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return data
	}

	var buf bytes.Buffer
	switch format {
	case "jpg", "jpeg":
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90})
	case "png":
		err = png.Encode(&buf, img)
	default:
		return data
	}
	if err != nil {
		return data
	}
	return buf.Bytes()
}
