package generation

import (
	"context"
	"fmt"
	"testing"

	"github.com/rs/zerolog"

	"slideflow/internal/models"
)

func testFixture(slides int) (*fakeSetStore, *fakeImageStore, *fakeVideoStore) {
	videoID := "video-1"
	originals := make([]string, slides)
	indexes := make([]int, slides)
	for i := 0; i < slides; i++ {
		originals[i] = fmt.Sprintf("https://blob.test/originals/slide-%d.png", i)
		indexes[i] = i
	}

	set := &models.GenerationSet{
		ID:                "set-1",
		SourceVideoID:     &videoID,
		PromptFirstSlide:  "hook prompt",
		PromptOtherSlides: "body prompt",
		OutputFormat:      "png",
		SelectedIndexes:   indexes,
		Status:            models.SetStatusQueued,
		ProgressTotal:     slides,
	}

	images := make([]*models.GeneratedImage, 0, slides)
	for i := 0; i < slides; i++ {
		images = append(images, &models.GeneratedImage{
			ID:         fmt.Sprintf("img-%d", i),
			SetID:      set.ID,
			SlideIndex: i,
			Status:     models.ImageStatusPending,
		})
	}

	return newFakeSetStore(set),
		newFakeImageStore(images...),
		&fakeVideoStore{videos: map[string]models.SourceVideo{
			videoID: {ID: videoID, OriginalImages: originals},
		}}
}

func newTestProcessor(sets *fakeSetStore, images *fakeImageStore, videos *fakeVideoStore, editor Editor, blobs BlobStore) *Processor {
	return NewProcessor(sets, images, videos, editor, blobs, 3, 1, "fallback prompt", zerolog.Nop())
}

func TestProcessBatchTwoSlices(t *testing.T) {
	sets, images, videos := testFixture(5)
	p := newTestProcessor(sets, images, videos, &fakeEditor{}, &fakeBlobStore{})
	ctx := context.Background()

	first, err := p.ProcessBatch(ctx, "set-1", 0)
	if err != nil {
		t.Fatalf("first batch: %v", err)
	}
	if first.Processed != 3 || !first.HasMore || first.NextBatchStart != 3 {
		t.Fatalf("first batch = %+v, want processed=3 hasMore=true next=3", first)
	}

	set, _ := sets.GetByID(ctx, "set-1")
	if set.Status != models.SetStatusProcessing {
		t.Fatalf("after first slice status = %s, want processing", set.Status)
	}
	if set.ProgressCurrent != 3 {
		t.Fatalf("after first slice progress = %d, want 3", set.ProgressCurrent)
	}

	second, err := p.ProcessBatch(ctx, "set-1", first.NextBatchStart)
	if err != nil {
		t.Fatalf("second batch: %v", err)
	}
	if second.Processed != 2 || second.HasMore {
		t.Fatalf("second batch = %+v, want processed=2 hasMore=false", second)
	}

	set, _ = sets.GetByID(ctx, "set-1")
	if set.Status != models.SetStatusCompleted {
		t.Fatalf("final status = %s, want completed", set.Status)
	}
	if set.ProgressCurrent != 5 {
		t.Fatalf("final progress = %d, want 5", set.ProgressCurrent)
	}

	for i := 0; i < 5; i++ {
		image, _ := images.GetByID(ctx, fmt.Sprintf("img-%d", i))
		if image.Status != models.ImageStatusCompleted {
			t.Errorf("img-%d status = %s, want completed", i, image.Status)
		}
		if image.ImageURL == nil || *image.ImageURL == "" {
			t.Errorf("img-%d has no stored URL", i)
		}
	}
}

func TestProcessBatchPartialFailure(t *testing.T) {
	sets, images, videos := testFixture(5)
	editor := &fakeEditor{failMarker: "slide-2"}
	p := newTestProcessor(sets, images, videos, editor, &fakeBlobStore{})
	ctx := context.Background()

	result, err := p.ProcessBatch(ctx, "set-1", 0)
	if err != nil {
		t.Fatalf("first batch: %v", err)
	}
	if _, err := p.ProcessBatch(ctx, "set-1", result.NextBatchStart); err != nil {
		t.Fatalf("second batch: %v", err)
	}

	failed, _ := images.GetByID(ctx, "img-2")
	if failed.Status != models.ImageStatusFailed {
		t.Fatalf("img-2 status = %s, want failed", failed.Status)
	}
	if failed.ErrorMessage == "" {
		t.Fatal("img-2 has empty error message")
	}

	for _, id := range []string{"img-0", "img-1", "img-3", "img-4"} {
		image, _ := images.GetByID(ctx, id)
		if image.Status != models.ImageStatusCompleted {
			t.Errorf("%s status = %s, want completed", id, image.Status)
		}
	}

	set, _ := sets.GetByID(ctx, "set-1")
	if set.Status != models.SetStatusPartial {
		t.Fatalf("set status = %s, want partial", set.Status)
	}
}

func TestProcessBatchBeyondRowCount(t *testing.T) {
	setStore, imageStore, videoStore := testFixture(5)
	p := newTestProcessor(setStore, imageStore, videoStore, &fakeEditor{}, &fakeBlobStore{})

	result, err := p.ProcessBatch(context.Background(), "set-1", 99)
	if err != nil {
		t.Fatalf("beyond-count batch: %v", err)
	}
	if result.Processed != 0 || result.HasMore {
		t.Fatalf("beyond-count batch = %+v, want processed=0 hasMore=false", result)
	}
}

func TestProgressMonotone(t *testing.T) {
	sets, images, videos := testFixture(7)
	p := newTestProcessor(sets, images, videos, &fakeEditor{}, &fakeBlobStore{})
	ctx := context.Background()

	last := 0
	batchStart := 0
	for {
		result, err := p.ProcessBatch(ctx, "set-1", batchStart)
		if err != nil {
			t.Fatalf("batch at %d: %v", batchStart, err)
		}

		set, _ := sets.GetByID(ctx, "set-1")
		if set.ProgressCurrent < last {
			t.Fatalf("progress regressed from %d to %d", last, set.ProgressCurrent)
		}
		if set.ProgressCurrent > set.ProgressTotal {
			t.Fatalf("progress %d exceeds total %d", set.ProgressCurrent, set.ProgressTotal)
		}
		last = set.ProgressCurrent

		if !result.HasMore {
			break
		}
		batchStart = result.NextBatchStart
	}

	if last != 7 {
		t.Fatalf("final progress = %d, want 7", last)
	}
}

func TestDuplicateLinkDoesNotReprocess(t *testing.T) {
	sets, images, videos := testFixture(3)
	editor := &fakeEditor{}
	p := newTestProcessor(sets, images, videos, editor, &fakeBlobStore{})
	ctx := context.Background()

	if _, err := p.ProcessBatch(ctx, "set-1", 0); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	calls := editor.calls

	// At-least-once delivery replays the same link; completed rows are not
	// pending anymore and must be skipped.
	result, err := p.ProcessBatch(ctx, "set-1", 0)
	if err != nil {
		t.Fatalf("duplicate delivery: %v", err)
	}
	if result.Processed != 0 {
		t.Fatalf("duplicate delivery processed %d rows, want 0", result.Processed)
	}
	if editor.calls != calls {
		t.Fatalf("duplicate delivery invoked the editor %d extra times", editor.calls-calls)
	}
}

func TestRetryImageHealsPartialSet(t *testing.T) {
	sets, images, videos := testFixture(4)
	editor := &fakeEditor{failMarker: "slide-1"}
	p := newTestProcessor(sets, images, videos, editor, &fakeBlobStore{})
	ctx := context.Background()

	result, err := p.ProcessBatch(ctx, "set-1", 0)
	if err != nil {
		t.Fatalf("first batch: %v", err)
	}
	if _, err := p.ProcessBatch(ctx, "set-1", result.NextBatchStart); err != nil {
		t.Fatalf("second batch: %v", err)
	}

	set, _ := sets.GetByID(ctx, "set-1")
	if set.Status != models.SetStatusPartial {
		t.Fatalf("pre-retry status = %s, want partial", set.Status)
	}

	editor.failMarker = ""
	if err := p.RetryImage(ctx, "set-1", "img-1"); err != nil {
		t.Fatalf("retry: %v", err)
	}

	image, _ := images.GetByID(ctx, "img-1")
	if image.Status != models.ImageStatusCompleted {
		t.Fatalf("retried image status = %s, want completed", image.Status)
	}
	if image.ErrorMessage != "" {
		t.Fatalf("retried image kept error %q", image.ErrorMessage)
	}

	set, _ = sets.GetByID(ctx, "set-1")
	if set.Status != models.SetStatusCompleted {
		t.Fatalf("post-retry status = %s, want completed", set.Status)
	}
}

func TestResolvePrompt(t *testing.T) {
	override := "per-slide prompt"
	p := newTestProcessor(newFakeSetStore(), newFakeImageStore(), &fakeVideoStore{}, &fakeEditor{}, &fakeBlobStore{})

	set := models.GenerationSet{PromptFirstSlide: "first", PromptOtherSlides: "other"}

	if got := p.resolvePrompt(set, models.GeneratedImage{SlideIndex: 0, PromptOverride: &override}); got != override {
		t.Errorf("override prompt = %q", got)
	}
	if got := p.resolvePrompt(set, models.GeneratedImage{SlideIndex: 0}); got != "first" {
		t.Errorf("first-slide prompt = %q", got)
	}
	if got := p.resolvePrompt(set, models.GeneratedImage{SlideIndex: 3}); got != "other" {
		t.Errorf("other-slide prompt = %q", got)
	}
	if got := p.resolvePrompt(models.GenerationSet{}, models.GeneratedImage{SlideIndex: 3}); got != "fallback prompt" {
		t.Errorf("fallback prompt = %q", got)
	}
}

func TestSlideIndexOutsideOriginalsFailsRow(t *testing.T) {
	sets, images, videos := testFixture(2)
	// Shrink the source post so index 1 is out of range.
	video := videos.videos["video-1"]
	video.OriginalImages = video.OriginalImages[:1]
	videos.videos["video-1"] = video

	p := newTestProcessor(sets, images, videos, &fakeEditor{}, &fakeBlobStore{})

	if _, err := p.ProcessBatch(context.Background(), "set-1", 0); err != nil {
		t.Fatalf("batch: %v", err)
	}

	image, _ := images.GetByID(context.Background(), "img-1")
	if image.Status != models.ImageStatusFailed {
		t.Fatalf("out-of-range row status = %s, want failed", image.Status)
	}
	ok, _ := images.GetByID(context.Background(), "img-0")
	if ok.Status != models.ImageStatusCompleted {
		t.Fatalf("in-range row status = %s, want completed", ok.Status)
	}
}
