package generation

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"slideflow/internal/ai"
	"slideflow/internal/models"
	"slideflow/internal/repository"
)

type fakeSetStore struct {
	mu   sync.Mutex
	sets map[string]*models.GenerationSet
}

func newFakeSetStore(sets ...*models.GenerationSet) *fakeSetStore {
	store := &fakeSetStore{sets: make(map[string]*models.GenerationSet)}
	for _, set := range sets {
		store.sets[set.ID] = set
	}
	return store
}

func (s *fakeSetStore) GetByID(_ context.Context, id string) (models.GenerationSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.sets[id]
	if !ok {
		return models.GenerationSet{}, repository.ErrSetNotFound
	}
	return *set, nil
}

func (s *fakeSetStore) TransitionStatus(_ context.Context, id string, to models.SetStatus, from ...models.SetStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.sets[id]
	if !ok {
		return false, nil
	}
	for _, candidate := range from {
		if set.Status == candidate {
			set.Status = to
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeSetStore) UpdateProgress(_ context.Context, id string, current int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.sets[id]
	if !ok {
		return repository.ErrSetNotFound
	}
	if current > set.ProgressCurrent {
		set.ProgressCurrent = current
	}
	return nil
}

type fakeImageStore struct {
	mu     sync.Mutex
	images map[string]*models.GeneratedImage
}

func newFakeImageStore(images ...*models.GeneratedImage) *fakeImageStore {
	store := &fakeImageStore{images: make(map[string]*models.GeneratedImage)}
	for _, image := range images {
		store.images[image.ID] = image
	}
	return store
}

func (s *fakeImageStore) ordered(setID string) []*models.GeneratedImage {
	var rows []*models.GeneratedImage
	for _, image := range s.images {
		if image.SetID == setID {
			rows = append(rows, image)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].SlideIndex < rows[j].SlideIndex })
	return rows
}

func (s *fakeImageStore) ListSlice(_ context.Context, setID string, offset, limit int) ([]models.GeneratedImage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.ordered(setID)
	if offset >= len(rows) {
		return nil, nil
	}
	end := offset + limit
	if end > len(rows) {
		end = len(rows)
	}
	out := make([]models.GeneratedImage, 0, end-offset)
	for _, row := range rows[offset:end] {
		out = append(out, *row)
	}
	return out, nil
}

func (s *fakeImageStore) CountBySet(_ context.Context, setID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ordered(setID)), nil
}

func (s *fakeImageStore) StatusesBySet(_ context.Context, setID string) ([]models.ImageStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var statuses []models.ImageStatus
	for _, row := range s.ordered(setID) {
		statuses = append(statuses, row.Status)
	}
	return statuses, nil
}

func (s *fakeImageStore) GetByID(_ context.Context, id string) (models.GeneratedImage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	image, ok := s.images[id]
	if !ok {
		return models.GeneratedImage{}, repository.ErrImageNotFound
	}
	return *image, nil
}

func (s *fakeImageStore) MarkGenerating(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.images[id].Status = models.ImageStatusGenerating
	s.images[id].ErrorMessage = ""
	return nil
}

func (s *fakeImageStore) MarkCompleted(_ context.Context, id string, imageURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.images[id].Status = models.ImageStatusCompleted
	s.images[id].ImageURL = &imageURL
	s.images[id].ErrorMessage = ""
	return nil
}

func (s *fakeImageStore) MarkFailed(_ context.Context, id string, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.images[id].Status = models.ImageStatusFailed
	s.images[id].ErrorMessage = message
	return nil
}

func (s *fakeImageStore) ResetForRetry(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	image, ok := s.images[id]
	if !ok || image.Status != models.ImageStatusFailed {
		return repository.ErrImageNotFound
	}
	image.Status = models.ImageStatusPending
	image.ErrorMessage = ""
	image.ImageURL = nil
	return nil
}

type fakeVideoStore struct {
	videos map[string]models.SourceVideo
}

func (s *fakeVideoStore) GetByID(_ context.Context, id string) (models.SourceVideo, error) {
	video, ok := s.videos[id]
	if !ok {
		return models.SourceVideo{}, repository.ErrVideoNotFound
	}
	return video, nil
}

// fakeEditor echoes the original bytes back, failing for any original whose
// payload contains a configured marker.
type fakeEditor struct {
	failMarker string
	calls      int
}

func (e *fakeEditor) Edit(_ context.Context, input ai.EditInput) ([]byte, error) {
	e.calls++
	if e.failMarker != "" && strings.Contains(string(input.Original), e.failMarker) {
		return nil, fmt.Errorf("provider rejected request")
	}
	return append([]byte("edited:"), input.Original...), nil
}

// fakeBlobStore serves downloads by echoing the URL as bytes and records
// uploads.
type fakeBlobStore struct {
	mu      sync.Mutex
	uploads int
	failURL string
}

func (s *fakeBlobStore) Upload(_ context.Context, bucket string, data []byte, ext string, folder string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploads++
	return fmt.Sprintf("https://blob.test/%s/%s/%d.%s", bucket, folder, s.uploads, ext), nil
}

func (s *fakeBlobStore) Download(_ context.Context, url string) ([]byte, error) {
	if s.failURL != "" && url == s.failURL {
		return nil, fmt.Errorf("fetch %s: status 404", url)
	}
	return []byte(url), nil
}

func (s *fakeBlobStore) SlidesBucket() string { return "slides" }

// fakeEnqueuer records chain links and optionally fails.
type fakeEnqueuer struct {
	links []string
	err   error
}

func (e *fakeEnqueuer) EnqueueLink(_ context.Context, setID string, batchStart int) error {
	if e.err != nil {
		return e.err
	}
	e.links = append(e.links, fmt.Sprintf("%s@%d", setID, batchStart))
	return nil
}
